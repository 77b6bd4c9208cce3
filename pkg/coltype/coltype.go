// Package coltype resolves per-column value converters. A Converter turns
// the canonical text of a JSON value into a typed column value, and renders
// a typed value back into JSON. Converters are resolved once per column when
// a copy starts and reused for every row.
package coltype

import (
	"github.com/ajitpratap0/nebula-copy/pkg/json"
)

// Converter converts column values to and from their external forms.
type Converter interface {
	// FromText parses the text representation of a value.
	FromText(text string) (any, error)
	// AppendJSON appends the JSON form of a non-nil value to dst.
	AppendJSON(dst []byte, v any) ([]byte, error)
}

// Resolver finds the Converter for a declared column type.
type Resolver interface {
	Resolve(typeName string) (Converter, error)
}

// TextConverter keeps values as text on input and marshals arbitrary Go
// values on output. It serves columns without a declared type.
type TextConverter struct{}

// FromText returns text unchanged.
func (TextConverter) FromText(text string) (any, error) {
	return text, nil
}

// AppendJSON appends the JSON encoding of v.
func (TextConverter) AppendJSON(dst []byte, v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return append(dst, "null"...), nil
	case string:
		return json.AppendString(dst, val), nil
	case []byte:
		return json.AppendString(dst, string(val)), nil
	}
	b, err := json.MarshalNoEscape(v)
	if err != nil {
		return dst, err
	}
	return append(dst, b...), nil
}
