package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// WithTrace adds the trace and span ids of ctx to logger
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// OperationLogger provides operation-specific logging
type OperationLogger struct {
	logger    *zap.Logger
	operation string
	startTime time.Time
}

// NewOperationLogger creates a logger for one operation
func NewOperationLogger(logger *zap.Logger, operation string) *OperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationLogger{
		logger:    logger.With(zap.String("operation", operation)),
		operation: operation,
		startTime: time.Now(),
	}
}

// Logger returns the underlying logger
func (ol *OperationLogger) Logger() *zap.Logger {
	return ol.logger
}

// LogStart logs the start of an operation
func (ol *OperationLogger) LogStart(msg string, fields ...zap.Field) {
	allFields := append(fields, zap.String("phase", "start"))
	ol.logger.Info(msg, allFields...)
}

// LogComplete logs the completion of an operation
func (ol *OperationLogger) LogComplete(msg string, fields ...zap.Field) {
	allFields := append(fields,
		zap.String("phase", "complete"),
		zap.Duration("total_duration", time.Since(ol.startTime)),
	)
	ol.logger.Info(msg, allFields...)
}

// LogError logs an operation error
func (ol *OperationLogger) LogError(msg string, err error, fields ...zap.Field) {
	allFields := append(fields,
		zap.String("phase", "error"),
		zap.Duration("duration_before_error", time.Since(ol.startTime)),
		zap.Error(err),
	)
	ol.logger.Error(msg, allFields...)
}

// Progress counts rows and bytes and logs progress at intervals
type Progress struct {
	logger      *OperationLogger
	rowsTotal   int64
	bytesTotal  int64
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	now         func() time.Time
}

// NewProgress creates a progress logger that logs every 30 seconds
func NewProgress(logger *OperationLogger) *Progress {
	now := time.Now()
	return &Progress{
		logger:      logger,
		startTime:   now,
		lastLogTime: now,
		logInterval: 30 * time.Second,
		now:         time.Now,
	}
}

// SetLogInterval sets the interval for progress logging
func (p *Progress) SetLogInterval(interval time.Duration) {
	p.logInterval = interval
}

// Add records rows and the current byte total. It logs when the interval
// has passed since the last progress line.
func (p *Progress) Add(rows int64, bytesTotal int64) {
	p.rowsTotal += rows
	p.bytesTotal = bytesTotal

	if now := p.now(); now.Sub(p.lastLogTime) >= p.logInterval {
		p.LogProgress()
		p.lastLogTime = now
	}
}

// Rows returns the rows recorded so far
func (p *Progress) Rows() int64 { return p.rowsTotal }

// LogProgress logs current progress
func (p *Progress) LogProgress() {
	elapsed := p.now().Sub(p.startTime)
	p.logger.logger.Info("copy progress",
		zap.Int64("rows", p.rowsTotal),
		zap.Int64("bytes", p.bytesTotal),
		zap.Float64("rows_per_second", rate(p.rowsTotal, elapsed)),
		zap.Duration("elapsed", elapsed),
	)
}

// LogFinal logs final statistics
func (p *Progress) LogFinal(fields ...zap.Field) {
	elapsed := p.now().Sub(p.startTime)
	allFields := append(fields,
		zap.Int64("total_rows", p.rowsTotal),
		zap.Int64("total_bytes", p.bytesTotal),
		zap.Float64("avg_rows_per_second", rate(p.rowsTotal, elapsed)),
		zap.Float64("avg_bytes_per_second", rate(p.bytesTotal, elapsed)),
	)
	p.logger.LogComplete("copy completed", allFields...)
}

func rate(n int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(n) / elapsed.Seconds()
}
