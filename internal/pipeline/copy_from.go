package pipeline

import (
	"context"

	"github.com/ajitpratap0/nebula-copy/pkg/copyformat"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"go.uber.org/zap"
)

// rowSource feeds decoded rows to pgx CopyFrom. The values slice is reused
// for every row; pgx encodes a row before asking for the next one.
type rowSource struct {
	ctx      context.Context
	state    copyformat.FromState
	run      *run
	strict   bool
	values   []any
	nulls    []bool
	row      []any
	rows     int64
	lastLine int64
	err      error
}

func newRowSource(ctx context.Context, state copyformat.FromState, r *run, columns int, strict bool) *rowSource {
	return &rowSource{
		ctx:    ctx,
		state:  state,
		run:    r,
		strict: strict,
		values: make([]any, columns),
		nulls:  make([]bool, columns),
		row:    make([]any, columns),
	}
}

func (s *rowSource) Next() bool {
	if s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}

	info, ok, err := s.state.OneRow(s.values, s.nulls)
	if err != nil {
		s.err = err
		return false
	}
	if !ok {
		if n := s.state.Truncated(); n > 0 && s.strict {
			s.err = errors.New(errors.ErrorTypeData, "input ends with an unterminated line").
				WithDetail("bytes", n).
				WithDetail("after_line", s.lastLine)
		}
		return false
	}

	for i := range s.row {
		if s.nulls[i] {
			s.row[i] = nil
		} else {
			s.row[i] = s.values[i]
		}
	}

	s.rows++
	s.lastLine = info.LineNo
	if s.rows%progressEvery == 0 {
		s.run.progress.Add(progressEvery, s.state.BytesProcessed())
	}
	return true
}

func (s *rowSource) Values() ([]any, error) {
	return s.row, nil
}

func (s *rowSource) Err() error {
	return s.err
}

// drain reads every row without sending it anywhere.
func (s *rowSource) drain() error {
	for s.Next() {
	}
	return s.err
}

// Import copies a source into table through the read side of the format.
func Import(ctx context.Context, conn Conn, table string, src NamedSource, opts Options) (Result, error) {
	r := newRun(ctx, opts, "from", zap.String("table", table), zap.String("source", src.Name()))

	var res Result
	_, err := r.tracer.TraceCopy(ctx, "import", func(ctx context.Context) (int64, error) {
		columns := opts.Columns
		if len(columns) == 0 {
			var err error
			columns, err = DiscoverColumns(ctx, conn, table)
			if err != nil {
				return 0, err
			}
		}

		state, err := r.startFrom(opts, src, columns)
		if err != nil {
			return 0, err
		}
		defer state.End()

		r.op.LogStart("copy started", zap.Int("columns", len(columns)))

		rs := newRowSource(ctx, state, r, len(columns), opts.Strict)
		copied, err := conn.CopyFrom(ctx, ParseIdentifier(table), columnNames(columns), rs)

		res.Rows = rs.rows
		res.Bytes = state.BytesProcessed()
		res.Truncated = state.Truncated()

		if rs.err != nil {
			return res.Rows, rs.err
		}
		if err != nil {
			return res.Rows, errors.Wrap(err, errors.ErrorTypeConnection, "COPY FROM failed").
				WithDetail("table", table).
				WithDetail("last_line", rs.lastLine)
		}
		res.Rows = copied
		return copied, nil
	})

	r.finish(&res, err)
	return res, err
}

// Check decodes a source with the given columns without a database. It
// reports the row count and any truncated tail.
func Check(ctx context.Context, src NamedSource, opts Options) (Result, error) {
	r := newRun(ctx, opts, "from", zap.String("source", src.Name()), zap.Bool("check", true))

	var res Result
	_, err := r.tracer.TraceCopy(ctx, "check", func(ctx context.Context) (int64, error) {
		state, err := r.startFrom(opts, src, opts.Columns)
		if err != nil {
			return 0, err
		}
		defer state.End()

		rs := newRowSource(ctx, state, r, len(opts.Columns), opts.Strict)
		err = rs.drain()

		res.Rows = rs.rows
		res.Bytes = state.BytesProcessed()
		res.Truncated = state.Truncated()
		return res.Rows, err
	})

	r.finish(&res, err)
	return res, err
}

// startFrom creates, configures and starts a read state. The state is ended
// when Start fails.
func (r *run) startFrom(opts Options, src NamedSource, columns []copyformat.Column) (copyformat.FromState, error) {
	routine, err := r.registry(opts).FromRoutine(opts.Format)
	if err != nil {
		return nil, err
	}

	state := routine.NewState(r.env(opts))
	if err := copyformat.ApplyOptions(state, opts.FormatOptions); err != nil {
		_ = state.End()
		return nil, err
	}

	if err := state.Start(copyformat.FromStart{
		Filename: src.Name(),
		Source:   src,
		Columns:  columns,
	}); err != nil {
		_ = state.End()
		return nil, err
	}

	r.logger.Debug("read state started",
		zap.Int("estimated_state_bytes", routine.EstimateStateSpace(opts.Buffers)))
	return state, nil
}
