package jsonlines

import (
	"github.com/ajitpratap0/nebula-copy/pkg/buffer"
	"github.com/ajitpratap0/nebula-copy/pkg/coltype"
	"github.com/ajitpratap0/nebula-copy/pkg/compression"
	"github.com/ajitpratap0/nebula-copy/pkg/copyformat"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"go.uber.org/zap"
)

// FromRoutine creates JSON Lines read states.
type FromRoutine struct{}

// EstimateStateSpace returns the buffer bytes a read state allocates.
func (FromRoutine) EstimateStateSpace(sizes copyformat.BufferSizes) int {
	return orDefault(sizes.Input, DefaultInputSize) +
		orDefault(sizes.Raw, compression.DefaultRawSize) +
		initialLineSize
}

// NewState creates a read state.
func (FromRoutine) NewState(env copyformat.Env) copyformat.FromState {
	return NewReader(env)
}

// Reader decodes JSON Lines rows from a Source. A source whose name ends in
// ".gz" is decompressed on the fly.
type Reader struct {
	logger   *zap.Logger
	resolver coltype.Resolver
	sizes    copyformat.BufferSizes

	columns   []copyformat.Column
	algorithm compression.Algorithm
	inflater  *compression.Inflater
	lines     *lineReader
	decoder   *rowDecoder
	plainRead int64
	warned    bool

	trailerWarned bool

	started bool
	ended   bool
}

// NewReader creates a Reader. A nil logger or resolver selects zap.NewNop
// and coltype.NewPgResolver.
func NewReader(env copyformat.Env) *Reader {
	r := &Reader{
		logger:   env.Logger,
		resolver: env.Resolver,
		sizes:    env.Buffers,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.resolver == nil {
		r.resolver = coltype.NewPgResolver()
	}
	return r
}

// ProcessOption accepts no options; the read side takes its compression
// from the file name.
func (r *Reader) ProcessOption(name, value string) (bool, error) {
	return false, nil
}

// InFunc resolves the converter for a column.
func (r *Reader) InFunc(col copyformat.Column) (coltype.Converter, error) {
	return r.resolver.Resolve(col.Type)
}

// Start allocates the buffers and selects the decompression path. When
// in.Converters is nil the converters are resolved with InFunc.
func (r *Reader) Start(in copyformat.FromStart) error {
	if r.started {
		return errors.New(errors.ErrorTypeInternal, "jsonlines reader already started")
	}
	if in.Source == nil {
		return errors.New(errors.ErrorTypeConfig, "jsonlines reader requires a source")
	}

	converters := in.Converters
	if converters == nil {
		converters = make([]coltype.Converter, len(in.Columns))
		for i, col := range in.Columns {
			c, err := r.InFunc(col)
			if err != nil {
				return err
			}
			converters[i] = c
		}
	}
	if len(converters) != len(in.Columns) {
		return errors.Newf(errors.ErrorTypeInternal,
			"got %d converters for %d columns", len(converters), len(in.Columns))
	}

	r.columns = in.Columns
	r.algorithm = compression.DetectFromName(in.Filename)

	var fill buffer.FillFunc
	if r.algorithm == compression.Gzip {
		r.inflater = compression.NewInflater(in.Source, r.sizes.Raw)
		fill = r.inflater.Fill
	} else {
		src := in.Source
		fill = func(p []byte) (int, error) {
			n, err := src.GetData(p)
			r.plainRead += int64(n)
			if err != nil {
				return n, errors.Wrap(err, errors.ErrorTypeFile, "could not read from COPY file")
			}
			return n, nil
		}
	}

	input := buffer.GetStream(orDefault(r.sizes.Input, DefaultInputSize))
	r.lines = newLineReader(input, buffer.GetLine(), fill)
	r.decoder = newRowDecoder(in.Columns, converters)
	r.started = true

	r.logger.Debug("jsonlines reader started",
		zap.String("filename", in.Filename),
		zap.String("compression", string(r.algorithm)),
		zap.Int("columns", len(in.Columns)),
		zap.Int("input_buffer", input.Cap()))
	return nil
}

// OneRow decodes the next line into values and nulls. It returns false once
// the input is exhausted.
func (r *Reader) OneRow(values []any, nulls []bool) (copyformat.RowInfo, bool, error) {
	if !r.started || r.ended {
		return copyformat.RowInfo{}, false, errors.New(errors.ErrorTypeInternal, "jsonlines reader is not active")
	}
	if len(values) < len(r.columns) || len(nulls) < len(r.columns) {
		return copyformat.RowInfo{}, false, errors.Newf(errors.ErrorTypeInternal,
			"row has %d slots for %d columns", min(len(values), len(nulls)), len(r.columns))
	}

	ok, err := r.lines.next()
	if err != nil {
		return copyformat.RowInfo{}, false, err
	}
	if !ok {
		if r.lines.truncated > 0 && !r.warned {
			r.warned = true
			r.logger.Warn("discarded unterminated final line",
				zap.Int64("bytes", r.lines.truncated),
				zap.Int64("after_line", r.lines.lineNo))
		}
		if r.inflater != nil && r.inflater.Trailing() > 0 && !r.trailerWarned {
			r.trailerWarned = true
			r.logger.Warn("ignored data after end of compressed stream",
				zap.Int64("bytes", r.inflater.Trailing()))
		}
		return copyformat.RowInfo{}, false, nil
	}

	line := r.lines.line.Bytes()
	if derr := r.decoder.decode(line, values, nulls); derr != nil {
		return copyformat.RowInfo{}, false, derr.WithDetail("line", r.lines.lineNo)
	}

	return copyformat.RowInfo{LineNo: r.lines.lineNo, Length: len(line)}, true, nil
}

// End releases the buffers and the decompressor. It is safe to call more
// than once and before Start.
func (r *Reader) End() error {
	if r.ended {
		return nil
	}
	r.ended = true

	if r.inflater != nil {
		_ = r.inflater.Close()
	}
	if r.lines != nil {
		buffer.PutStream(r.lines.input)
		buffer.PutLine(r.lines.line)
		r.lines.input = nil
		r.lines.line = nil
	}
	return nil
}

// BytesProcessed returns the raw bytes read from the source.
func (r *Reader) BytesProcessed() int64 {
	if r.inflater != nil {
		return r.inflater.BytesIn()
	}
	return r.plainRead
}

// Truncated returns the size of the unterminated final line that was
// discarded, or zero.
func (r *Reader) Truncated() int64 {
	if r.lines == nil {
		return 0
	}
	return r.lines.truncated
}

// Compression returns the algorithm selected at Start.
func (r *Reader) Compression() compression.Algorithm { return r.algorithm }
