package pipeline

import (
	"context"

	"github.com/ajitpratap0/nebula-copy/pkg/copyformat"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
)

const columnsQuery = `SELECT a.attname, format_type(a.atttypid, a.atttypmod)
FROM pg_catalog.pg_attribute a
WHERE a.attrelid = $1::regclass
  AND a.attnum > 0
  AND NOT a.attisdropped
  AND a.attgenerated = ''
ORDER BY a.attnum`

// DiscoverColumns returns the insertable columns of table in table order.
func DiscoverColumns(ctx context.Context, conn Conn, table string) ([]copyformat.Column, error) {
	rows, err := conn.Query(ctx, columnsQuery, ParseIdentifier(table).Sanitize())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to discover table columns").
			WithDetail("table", table)
	}
	defer rows.Close()

	var columns []copyformat.Column
	for rows.Next() {
		var c copyformat.Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to scan column description")
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to discover table columns").
			WithDetail("table", table)
	}
	if len(columns) == 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "table %q has no columns", table)
	}
	return columns, nil
}
