package compression

import (
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/klauspost/compress/gzip"
)

// ChunkSink accepts output chunks. The slice is only valid for the duration
// of the call.
type ChunkSink interface {
	Send(p []byte) error
}

// Deflater compresses a byte stream into gzip and pushes the output to a
// ChunkSink through a fixed-size chunk buffer.
//
// Finish must be called exactly once when the stream ends; until then the
// output is not a complete gzip stream.
type Deflater struct {
	zw       *gzip.Writer
	out      *chunkWriter
	finished bool
}

// NewDeflater creates a gzip Deflater for spec. A non-positive chunkSize
// selects DefaultChunkSize.
func NewDeflater(sink ChunkSink, spec Spec, chunkSize int) (*Deflater, error) {
	if spec.Algorithm != Gzip {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"deflater requires gzip, got %q", string(spec.Algorithm))
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	level := DefaultLevel
	if spec.HasLevel() {
		level = spec.Level
	}

	out := &chunkWriter{sink: sink, chunk: make([]byte, chunkSize)}
	zw, err := gzip.NewWriterLevel(out, level)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCompression, "could not compress data")
	}
	return &Deflater{zw: zw, out: out}, nil
}

// Write compresses p. Complete output chunks are sent as they fill.
func (d *Deflater) Write(p []byte) error {
	if d.finished {
		return errors.New(errors.ErrorTypeInternal, "write after compression stream finished")
	}
	if _, err := d.zw.Write(p); err != nil {
		return d.fail(err)
	}
	return nil
}

// Finish flushes the compressor, writes the gzip trailer and sends all
// remaining output. A second call is an error.
func (d *Deflater) Finish() error {
	if d.finished {
		return errors.New(errors.ErrorTypeInternal, "compression stream already finished")
	}
	d.finished = true
	if err := d.zw.Close(); err != nil {
		return d.fail(err)
	}
	if err := d.out.flush(); err != nil {
		return d.fail(err)
	}
	return nil
}

// Finished reports whether Finish has been called.
func (d *Deflater) Finished() bool { return d.finished }

// BytesOut returns the number of compressed bytes sent to the sink.
func (d *Deflater) BytesOut() int64 { return d.out.total }

func (d *Deflater) fail(err error) error {
	if d.out.err != nil {
		return errors.Wrap(d.out.err, errors.ErrorTypeFile, "could not write compressed output")
	}
	return errors.Wrap(err, errors.ErrorTypeCompression, "could not compress data")
}

// chunkWriter accumulates compressor output in a fixed chunk buffer and
// sends it to the sink each time the buffer fills.
type chunkWriter struct {
	sink  ChunkSink
	chunk []byte
	n     int
	total int64
	err   error
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	written := 0
	for len(p) > 0 {
		n := copy(w.chunk[w.n:], p)
		w.n += n
		written += n
		p = p[n:]
		if w.n == len(w.chunk) {
			if err := w.flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func (w *chunkWriter) flush() error {
	if w.err != nil {
		return w.err
	}
	if w.n == 0 {
		return nil
	}
	if err := w.sink.Send(w.chunk[:w.n]); err != nil {
		w.err = err
		return err
	}
	w.total += int64(w.n)
	w.n = 0
	return nil
}
