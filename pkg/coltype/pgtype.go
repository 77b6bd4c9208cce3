package coltype

import (
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/ajitpratap0/nebula-copy/pkg/json"
	"github.com/jackc/pgx/v5/pgtype"
)

// sqlAliases maps SQL spellings to the type names registered in pgtype.
var sqlAliases = map[string]string{
	"int":                         "int4",
	"integer":                     "int4",
	"smallint":                    "int2",
	"bigint":                      "int8",
	"boolean":                     "bool",
	"real":                        "float4",
	"float":                       "float8",
	"double precision":            "float8",
	"decimal":                     "numeric",
	"character varying":           "varchar",
	"character":                   "bpchar",
	"timestamp without time zone": "timestamp",
	"timestamp with time zone":    "timestamptz",
	"time without time zone":      "time",
}

// NormalizeTypeName lowercases a SQL type name, strips any type modifier
// and maps SQL aliases onto pgtype names. Array types are written either
// "int4[]" or "_int4".
func NormalizeTypeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	array := false
	if strings.HasSuffix(name, "[]") {
		array = true
		name = strings.TrimSpace(strings.TrimSuffix(name, "[]"))
	}
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	if alias, ok := sqlAliases[name]; ok {
		name = alias
	}
	if array {
		name = "_" + name
	}
	return name
}

// PgResolver resolves converters from the PostgreSQL types registered in a
// pgtype.Map. It is not safe for concurrent use; each copy owns one.
type PgResolver struct {
	m *pgtype.Map
}

// NewPgResolver creates a resolver over a fresh pgtype.Map.
func NewPgResolver() *PgResolver {
	return &PgResolver{m: pgtype.NewMap()}
}

// Resolve returns the converter for a SQL type name. An empty name resolves
// to TextConverter.
func (r *PgResolver) Resolve(typeName string) (Converter, error) {
	if strings.TrimSpace(typeName) == "" {
		return TextConverter{}, nil
	}
	t, ok := r.m.TypeForName(NormalizeTypeName(typeName))
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "type %q does not exist", typeName).
			WithDetail("type", typeName)
	}
	return &pgConverter{m: r.m, typ: t}, nil
}

// TypeName returns the registered name of a type OID.
func (r *PgResolver) TypeName(oid uint32) (string, bool) {
	t, ok := r.m.TypeForOID(oid)
	if !ok {
		return "", false
	}
	return t.Name, true
}

type pgConverter struct {
	m   *pgtype.Map
	typ *pgtype.Type
}

func (c *pgConverter) FromText(text string) (any, error) {
	src := []byte(text)
	switch c.typ.OID {
	case pgtype.TimestampOID, pgtype.TimestamptzOID:
		// ISO 8601 separator
		if len(src) > 10 && src[10] == 'T' {
			src[10] = ' '
		}
	}
	return c.typ.Codec.DecodeValue(c.m, c.typ.OID, pgtype.TextFormatCode, src)
}

func (c *pgConverter) AppendJSON(dst []byte, v any) ([]byte, error) {
	if v == nil {
		return append(dst, "null"...), nil
	}

	switch c.typ.OID {
	case pgtype.BoolOID:
		if b, ok := v.(bool); ok {
			if b {
				return append(dst, "true"...), nil
			}
			return append(dst, "false"...), nil
		}
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID,
		pgtype.Float4OID, pgtype.Float8OID, pgtype.NumericOID:
		text, err := c.encodeText(v)
		if err != nil {
			return dst, err
		}
		switch text {
		case "NaN", "Infinity", "-Infinity":
			return json.AppendString(dst, text), nil
		}
		return append(dst, text...), nil
	case pgtype.JSONOID, pgtype.JSONBOID:
		text, err := c.encodeText(v)
		if err != nil {
			return dst, err
		}
		return json.AppendCompact(dst, []byte(text))
	case pgtype.DateOID:
		if t, ok := v.(time.Time); ok {
			return json.AppendString(dst, t.Format("2006-01-02")), nil
		}
	case pgtype.TimestampOID:
		if t, ok := v.(time.Time); ok {
			return json.AppendString(dst, t.Format("2006-01-02T15:04:05.999999")), nil
		}
	case pgtype.TimestamptzOID:
		if t, ok := v.(time.Time); ok {
			return json.AppendString(dst, t.Format("2006-01-02T15:04:05.999999Z07:00")), nil
		}
	}

	text, err := c.encodeText(v)
	if err != nil {
		return dst, err
	}
	return json.AppendString(dst, text), nil
}

func (c *pgConverter) encodeText(v any) (string, error) {
	buf, err := c.m.Encode(c.typ.OID, pgtype.TextFormatCode, v, nil)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
