package json

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	gojson "github.com/goccy/go-json"
)

// ErrNotObject is returned by Parse when the text is valid JSON but not an
// object.
var ErrNotObject = errors.New("json: value is not an object")

// ErrInvalidUTF8 is returned by Parse when the line is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("json: invalid UTF-8 in input")

// Kind is the type of a JSON value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is one top-level member of a Document. It aliases the parsed line
// and is only valid until the Document is parsed again.
type Value struct {
	raw gojson.RawMessage
}

// Kind reports the JSON type of the value.
func (v Value) Kind() Kind {
	if len(v.raw) == 0 {
		return KindNull
	}
	switch v.raw[0] {
	case 'n':
		return KindNull
	case 't', 'f':
		return KindBool
	case '"':
		return KindString
	case '{':
		return KindObject
	case '[':
		return KindArray
	default:
		return KindNumber
	}
}

// IsNull reports whether the value is JSON null.
func (v Value) IsNull() bool { return v.Kind() == KindNull }

// Raw returns the JSON text of the value.
func (v Value) Raw() []byte { return v.raw }

// Text renders the value in its canonical text form: strings unescaped,
// booleans as true/false, numbers in plain decimal notation, objects and
// arrays as compact JSON. Null renders as the empty string.
func (v Value) Text() (string, error) {
	switch v.Kind() {
	case KindNull:
		return "", nil
	case KindBool:
		if v.raw[0] == 't' {
			return "true", nil
		}
		return "false", nil
	case KindString:
		var s string
		if err := gojson.Unmarshal(v.raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case KindNumber:
		return CanonicalNumber(string(v.raw))
	default:
		out, err := AppendCompact(nil, v.raw)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

// Document is a JSON object parsed once for repeated lookup by key. A
// Document can be reused across lines; each Parse discards the previous
// members.
type Document struct {
	fields map[string]gojson.RawMessage
}

// NewDocument creates an empty Document.
func NewDocument() *Document {
	return &Document{fields: make(map[string]gojson.RawMessage)}
}

// Parse replaces the document content with the object in line. Blank input,
// invalid UTF-8, malformed JSON and non-object values are errors. When a key repeats, the
// last occurrence wins.
func (d *Document) Parse(line []byte) error {
	clear(d.fields)

	if !utf8.Valid(line) {
		return ErrInvalidUTF8
	}

	trimmed := bytes.TrimLeft(line, " \t\r\n")
	if len(trimmed) == 0 {
		return errors.New("json: empty input")
	}
	if trimmed[0] != '{' {
		if !gojson.Valid(trimmed) {
			return errors.New("json: invalid syntax")
		}
		return ErrNotObject
	}
	if err := gojson.Unmarshal(line, &d.fields); err != nil {
		return err
	}
	if d.fields == nil {
		d.fields = make(map[string]gojson.RawMessage)
	}
	return nil
}

// Get looks up a top-level key.
func (d *Document) Get(key string) (Value, bool) {
	raw, ok := d.fields[key]
	if !ok {
		return Value{}, false
	}
	return Value{raw: raw}, true
}

// Len returns the number of distinct top-level keys.
func (d *Document) Len() int { return len(d.fields) }
