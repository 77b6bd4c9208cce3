package jsonlines

import (
	"github.com/ajitpratap0/nebula-copy/pkg/coltype"
	"github.com/ajitpratap0/nebula-copy/pkg/compression"
	"github.com/ajitpratap0/nebula-copy/pkg/copyformat"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"go.uber.org/zap"
)

// ToRoutine creates JSON Lines write states.
type ToRoutine struct{}

// EstimateStateSpace returns the buffer bytes a write state allocates.
func (ToRoutine) EstimateStateSpace(sizes copyformat.BufferSizes) int {
	return orDefault(sizes.OutputChunk, compression.DefaultChunkSize) + initialLineSize
}

// NewState creates a write state.
func (ToRoutine) NewState(env copyformat.Env) copyformat.ToState {
	return NewWriter(env)
}

// Writer encodes rows as JSON Lines into a Sink, optionally through gzip.
type Writer struct {
	logger   *zap.Logger
	resolver coltype.Resolver
	sizes    copyformat.BufferSizes

	algorithm compression.Algorithm
	detail    string

	sink     copyformat.Sink
	encoder  *rowEncoder
	deflater *compression.Deflater
	written  int64
	rows     int64

	started bool
	failed  bool
	ended   bool
}

// NewWriter creates an uncompressed Writer. A nil logger or resolver
// selects zap.NewNop and coltype.NewPgResolver.
func NewWriter(env copyformat.Env) *Writer {
	w := &Writer{
		logger:    env.Logger,
		resolver:  env.Resolver,
		sizes:     env.Buffers,
		algorithm: compression.None,
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	if w.resolver == nil {
		w.resolver = coltype.NewPgResolver()
	}
	return w
}

// ProcessOption handles compression and compression_detail. The detail is
// validated against the algorithm at Start.
func (w *Writer) ProcessOption(name, value string) (bool, error) {
	switch name {
	case OptionCompression:
		algorithm, err := compression.ParseAlgorithm(value)
		if err != nil {
			return true, err
		}
		if err := algorithm.Supported(); err != nil {
			return true, err
		}
		w.algorithm = algorithm
		return true, nil
	case OptionCompressionDetail:
		w.detail = value
		return true, nil
	default:
		return false, nil
	}
}

// OutFunc resolves the converter for a column.
func (w *Writer) OutFunc(col copyformat.Column) (coltype.Converter, error) {
	return w.resolver.Resolve(col.Type)
}

// Start validates the compression specification and prepares the encoder.
// When out.Converters is nil the converters are resolved with OutFunc.
func (w *Writer) Start(out copyformat.ToStart) error {
	if w.started {
		return errors.New(errors.ErrorTypeInternal, "jsonlines writer already started")
	}
	if out.Sink == nil {
		return errors.New(errors.ErrorTypeConfig, "jsonlines writer requires a sink")
	}

	spec, err := compression.ParseSpec(w.algorithm, w.detail)
	if err != nil {
		return err
	}

	converters := out.Converters
	if converters == nil {
		converters = make([]coltype.Converter, len(out.Columns))
		for i, col := range out.Columns {
			c, err := w.OutFunc(col)
			if err != nil {
				return err
			}
			converters[i] = c
		}
	}
	if len(converters) != len(out.Columns) {
		return errors.Newf(errors.ErrorTypeInternal,
			"got %d converters for %d columns", len(converters), len(out.Columns))
	}

	if spec.Algorithm == compression.Gzip {
		w.deflater, err = compression.NewDeflater(out.Sink, spec, w.sizes.OutputChunk)
		if err != nil {
			return err
		}
	}

	w.sink = out.Sink
	w.encoder = newRowEncoder(out.Columns, converters)
	w.started = true

	w.logger.Debug("jsonlines writer started",
		zap.String("compression", string(spec.Algorithm)),
		zap.Int("level", spec.Level),
		zap.Int("columns", len(out.Columns)))
	return nil
}

// OneRow encodes one row and hands the line to the sink or the compressor.
func (w *Writer) OneRow(values []any, nulls []bool) error {
	if !w.started || w.ended {
		return errors.New(errors.ErrorTypeInternal, "jsonlines writer is not active")
	}
	if len(values) < len(w.encoder.columns) || len(nulls) < len(w.encoder.columns) {
		return errors.Newf(errors.ErrorTypeInternal,
			"row has %d slots for %d columns", min(len(values), len(nulls)), len(w.encoder.columns))
	}

	line, err := w.encoder.encode(values, nulls)
	if err != nil {
		w.failed = true
		return err
	}

	if w.deflater != nil {
		if err := w.deflater.Write(line); err != nil {
			w.failed = true
			return err
		}
	} else {
		if err := w.sink.Send(line); err != nil {
			w.failed = true
			return errors.Wrap(err, errors.ErrorTypeFile, "could not write to COPY file")
		}
		w.written += int64(len(line))
	}
	w.rows++
	return nil
}

// End finishes the compressed stream exactly once. After a failed row the
// compressor is released without writing a trailer, so partial output never
// forms a valid gzip stream. End is safe to call more than once and before
// Start.
func (w *Writer) End() error {
	if w.ended {
		return nil
	}
	w.ended = true

	if w.deflater == nil {
		return nil
	}
	if w.failed {
		w.logger.Debug("jsonlines writer abandoned compressed stream", zap.Int64("rows", w.rows))
		return nil
	}
	return w.deflater.Finish()
}

// BytesWritten returns the bytes handed to the sink.
func (w *Writer) BytesWritten() int64 {
	if w.deflater != nil {
		return w.deflater.BytesOut()
	}
	return w.written
}

// Rows returns the number of rows written.
func (w *Writer) Rows() int64 { return w.rows }
