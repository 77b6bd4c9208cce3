package jsonlines

import (
	"fmt"

	"github.com/ajitpratap0/nebula-copy/pkg/coltype"
	"github.com/ajitpratap0/nebula-copy/pkg/copyformat"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/ajitpratap0/nebula-copy/pkg/json"
)

// rowDecoder maps the top-level keys of one JSON object onto the columns of
// the row descriptor.
type rowDecoder struct {
	columns    []copyformat.Column
	converters []coltype.Converter
	doc        *json.Document
}

func newRowDecoder(columns []copyformat.Column, converters []coltype.Converter) *rowDecoder {
	return &rowDecoder{
		columns:    columns,
		converters: converters,
		doc:        json.NewDocument(),
	}
}

// decode fills every slot of values and nulls. A key that is absent or
// holds null yields a null cell.
func (d *rowDecoder) decode(line []byte, values []any, nulls []bool) *errors.Error {
	if err := d.doc.Parse(line); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "invalid data for jsonb value")
	}

	for i, col := range d.columns {
		v, ok := d.doc.Get(col.Name)
		if !ok || v.IsNull() {
			values[i] = nil
			nulls[i] = true
			continue
		}

		text, err := v.Text()
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "invalid data for jsonb value").
				WithDetail("column", col.Name)
		}

		val, err := d.converters[i].FromText(text)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData,
				fmt.Sprintf("could not convert jsonb value \"%s\" to data for column \"%s\"", text, col.Name)).
				WithDetail("column", col.Name)
		}
		values[i] = val
		nulls[i] = false
	}
	return nil
}
