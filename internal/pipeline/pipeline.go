// Package pipeline drives copy formats against PostgreSQL. It runs the
// start/one-row/end sequence of a format and bridges the rows to pgx:
//
//   - Import streams a source through a read state into CopyFrom.
//   - Export streams query rows through a write state into a sink.
//   - Check decodes a source without a database.
//
// Every run records Prometheus metrics, a trace span and periodic progress
// logs, and always ends the format state.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-copy/pkg/copyformat"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/ajitpratap0/nebula-copy/pkg/logger"
	"github.com/ajitpratap0/nebula-copy/pkg/metrics"
	"github.com/ajitpratap0/nebula-copy/pkg/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Conn is the part of a pgx connection or pool a copy needs.
// *pgxpool.Pool, *pgxpool.Conn and *pgx.Conn satisfy it.
type Conn interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// NamedSource is a copy source that knows its name. The read side of a
// format may derive settings such as compression from the name.
type NamedSource interface {
	copyformat.Source
	Name() string
}

// Options configures one copy.
type Options struct {
	Format        string
	FormatOptions map[string]string
	// Columns restricts and types the copied columns. Import discovers them
	// from the table when empty.
	Columns []copyformat.Column
	Buffers copyformat.BufferSizes
	// Strict turns a discarded unterminated final line into an error.
	Strict bool

	Logger           *zap.Logger
	Registry         *copyformat.Registry
	ProgressInterval time.Duration
}

// Result summarises a finished copy.
type Result struct {
	CopyID    string
	Rows      int64
	Bytes     int64
	Truncated int64
	Duration  time.Duration
}

const progressEvery = 1024

// run holds what every copy direction shares.
type run struct {
	id        string
	format    string
	direction string
	logger    *zap.Logger
	collector *metrics.Collector
	tracer    *observability.CopyTracer
	op        *observability.OperationLogger
	progress  *observability.Progress
}

func newRun(ctx context.Context, opts Options, direction string, fields ...zap.Field) *run {
	id := uuid.NewString()

	base := opts.Logger
	if base == nil {
		base = logger.WithContext(ctx)
	}
	l := base.With(append(fields,
		zap.String("copy_id", id),
		zap.String("format", opts.Format),
		zap.String("direction", direction))...)

	op := observability.NewOperationLogger(l, "copy_"+direction)
	progress := observability.NewProgress(op)
	if opts.ProgressInterval > 0 {
		progress.SetLogInterval(opts.ProgressInterval)
	}

	return &run{
		id:        id,
		format:    opts.Format,
		direction: direction,
		logger:    l,
		collector: metrics.NewCollector(opts.Format, direction),
		tracer:    observability.NewCopyTracer(opts.Format, direction),
		op:        op,
		progress:  progress,
	}
}

// finish records the outcome of the run.
func (r *run) finish(res *Result, err error) {
	r.collector.AddRows(res.Rows)
	r.collector.AddBytes(res.Bytes)
	r.collector.AddTruncated(res.Truncated)

	errType := ""
	if err != nil {
		errType = errorType(err)
	}
	res.CopyID = r.id
	res.Duration = r.collector.Finish(err != nil, errType)

	if err != nil {
		r.op.LogError("copy failed", err,
			zap.Int64("rows", res.Rows),
			zap.String("error_type", errType))
		return
	}
	r.progress.Add(res.Rows-r.progress.Rows(), res.Bytes)
	r.progress.LogFinal(zap.Int64("truncated_bytes", res.Truncated))
}

func (r *run) registry(opts Options) *copyformat.Registry {
	if opts.Registry != nil {
		return opts.Registry
	}
	return copyformat.GetRegistry()
}

func (r *run) env(opts Options) copyformat.Env {
	return copyformat.Env{
		Logger:  r.logger,
		Buffers: opts.Buffers,
	}
}

func errorType(err error) string {
	var e *errors.Error
	if errors.As(err, &e) {
		return string(e.Type)
	}
	return "unknown"
}

// ParseIdentifier splits a possibly schema-qualified table name.
func ParseIdentifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

func columnNames(columns []copyformat.Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}
