package jsonlines

import (
	"fmt"

	"github.com/ajitpratap0/nebula-copy/pkg/coltype"
	"github.com/ajitpratap0/nebula-copy/pkg/copyformat"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/ajitpratap0/nebula-copy/pkg/json"
)

// rowEncoder renders a row as one JSON object line. Keys are encoded once
// at construction.
type rowEncoder struct {
	columns    []copyformat.Column
	converters []coltype.Converter
	keys       [][]byte
	buf        []byte
}

func newRowEncoder(columns []copyformat.Column, converters []coltype.Converter) *rowEncoder {
	keys := make([][]byte, len(columns))
	for i, col := range columns {
		keys[i] = append(json.AppendString(nil, col.Name), ':')
	}
	return &rowEncoder{
		columns:    columns,
		converters: converters,
		keys:       keys,
		buf:        make([]byte, 0, initialLineSize),
	}
}

// encode returns the row as a complete line including the trailing newline.
// The slice is reused by the next call.
func (e *rowEncoder) encode(values []any, nulls []bool) ([]byte, error) {
	b := append(e.buf[:0], '{')
	for i, col := range e.columns {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, e.keys[i]...)

		if nulls[i] || values[i] == nil {
			b = append(b, "null"...)
			continue
		}

		var err error
		b, err = e.converters[i].AppendJSON(b, values[i])
		if err != nil {
			e.buf = b[:0]
			return nil, errors.Wrap(err, errors.ErrorTypeData,
				fmt.Sprintf("could not convert value of column \"%s\" to json", col.Name)).
				WithDetail("column", col.Name)
		}
	}
	b = append(b, '}', '\n')
	e.buf = b
	return b, nil
}
