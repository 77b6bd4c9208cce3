package pipeline

import (
	"context"

	"github.com/ajitpratap0/nebula-copy/pkg/coltype"
	"github.com/ajitpratap0/nebula-copy/pkg/copyformat"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// TableQuery returns the query that selects a whole table.
func TableQuery(table string) string {
	return "SELECT * FROM " + ParseIdentifier(table).Sanitize()
}

// Export runs query and writes its rows to sink through the write side of
// the format. Column names and types come from the result description;
// opts.Columns overrides the types of columns with the same name. The
// caller commits or aborts the sink according to the returned error.
func Export(ctx context.Context, conn Conn, query string, sink copyformat.Sink, opts Options) (Result, error) {
	r := newRun(ctx, opts, "to")

	var res Result
	_, err := r.tracer.TraceCopy(ctx, "export", func(ctx context.Context) (int64, error) {
		routine, err := r.registry(opts).ToRoutine(opts.Format)
		if err != nil {
			return 0, err
		}

		state := routine.NewState(r.env(opts))
		defer state.End()

		if err := copyformat.ApplyOptions(state, opts.FormatOptions); err != nil {
			return 0, err
		}

		rows, err := conn.Query(ctx, query)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeConnection, "query failed")
		}
		defer rows.Close()

		w := &rowWriter{state: state, sink: sink, run: r, overrides: opts.Columns}
		for rows.Next() {
			if err := ctx.Err(); err != nil {
				return w.rows, err
			}
			if err := w.start(rows.FieldDescriptions()); err != nil {
				return w.rows, err
			}
			values, err := rows.Values()
			if err != nil {
				return w.rows, errors.Wrap(err, errors.ErrorTypeData, "could not read row values")
			}
			if err := w.write(values); err != nil {
				res.Rows = w.rows
				res.Bytes = state.BytesWritten()
				return w.rows, err
			}
		}
		if err := rows.Err(); err != nil {
			res.Rows = w.rows
			return w.rows, errors.Wrap(err, errors.ErrorTypeConnection, "query failed")
		}

		// a query without rows still produces a valid, possibly empty stream
		if err := w.start(rows.FieldDescriptions()); err != nil {
			return 0, err
		}
		if err := state.End(); err != nil {
			return w.rows, err
		}

		res.Rows = w.rows
		res.Bytes = state.BytesWritten()
		return w.rows, nil
	})

	r.finish(&res, err)
	return res, err
}

// rowWriter starts the write state on the first row, once the result
// description is known.
type rowWriter struct {
	state     copyformat.ToState
	sink      copyformat.Sink
	run       *run
	overrides []copyformat.Column
	resolver  *coltype.PgResolver

	started bool
	nulls   []bool
	rows    int64
}

func (w *rowWriter) start(fields []pgconn.FieldDescription) error {
	if w.started {
		return nil
	}
	w.started = true

	w.resolver = coltype.NewPgResolver()
	columns := make([]copyformat.Column, len(fields))
	for i, fd := range fields {
		columns[i].Name = fd.Name
		if name, ok := w.resolver.TypeName(fd.DataTypeOID); ok {
			columns[i].Type = name
		}
		for _, o := range w.overrides {
			if o.Name == fd.Name && o.Type != "" {
				columns[i].Type = o.Type
			}
		}
	}

	w.nulls = make([]bool, len(columns))
	if err := w.state.Start(copyformat.ToStart{Sink: w.sink, Columns: columns}); err != nil {
		return err
	}
	w.run.op.LogStart("copy started", zap.Int("columns", len(columns)))
	return nil
}

func (w *rowWriter) write(values []any) error {
	for i := range w.nulls {
		w.nulls[i] = i >= len(values) || values[i] == nil
	}
	if err := w.state.OneRow(values, w.nulls); err != nil {
		return err
	}

	w.rows++
	if w.rows%progressEvery == 0 {
		w.run.progress.Add(progressEvery, w.state.BytesWritten())
	}
	return nil
}
