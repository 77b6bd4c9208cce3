package compression

import (
	stderrors "errors"
	"io"

	"github.com/ajitpratap0/nebula-copy/pkg/buffer"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/klauspost/compress/gzip"
)

// ChunkSource produces raw input chunks. GetData writes up to len(p) bytes
// and returns how many it wrote; zero with a nil error means end of input.
type ChunkSource interface {
	GetData(p []byte) (int, error)
}

// Inflater decompresses a gzip stream pulled chunk by chunk from a
// ChunkSource. Compressed bytes are staged in a fixed raw buffer that is
// only refilled once the decompressor has consumed all of it.
type Inflater struct {
	raw       *rawReader
	zr        *gzip.Reader
	memberEnd bool
	trailing  int64
	eof       bool
}

// NewInflater creates an Inflater reading from src with a raw buffer of
// rawSize bytes. A non-positive rawSize selects DefaultRawSize.
func NewInflater(src ChunkSource, rawSize int) *Inflater {
	if rawSize <= 0 {
		rawSize = DefaultRawSize
	}
	return &Inflater{
		raw: &rawReader{src: src, buf: buffer.GetStream(rawSize)},
	}
}

// Fill writes decompressed bytes into dst and returns how many it wrote.
// Zero with a nil error means the compressed stream has ended cleanly.
// Concatenated gzip members are decoded as one stream. Input that follows
// a complete member but does not start another one ends the stream; its
// size is reported by Trailing.
func (z *Inflater) Fill(dst []byte) (int, error) {
	if z.eof || len(dst) == 0 {
		return 0, nil
	}

	if z.zr == nil {
		zr, err := gzip.NewReader(z.raw)
		if err != nil {
			if err == io.EOF && z.raw.err == nil {
				// empty source
				z.eof = true
				return 0, nil
			}
			return 0, z.fail(err)
		}
		zr.Multistream(false)
		z.zr = zr
	}

	for {
		if z.memberEnd {
			z.memberEnd = false
			more, err := z.nextMember()
			if err != nil {
				return 0, err
			}
			if !more {
				z.eof = true
				return 0, nil
			}
		}

		n, err := z.zr.Read(dst)
		if err == io.EOF {
			// bytes of the finished member go out before the next header is read
			z.memberEnd = true
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			return 0, z.fail(err)
		}
		if n > 0 {
			return n, nil
		}
	}
}

// nextMember starts the gzip member following a finished one. It reports
// false at the end of input, and also when the remaining input is not a gzip
// member; that input is read to the end and counted in z.trailing.
func (z *Inflater) nextMember() (bool, error) {
	start := z.raw.position()

	err := z.zr.Reset(z.raw)
	switch {
	case err == nil:
		z.zr.Multistream(false)
		return true, nil
	case z.raw.err != nil:
		return false, z.fail(err)
	case err == io.EOF && z.raw.position() == start:
		return false, nil
	}

	if err := z.raw.discard(); err != nil {
		return false, z.fail(err)
	}
	z.trailing = z.raw.position() - start
	return false, nil
}

// Trailing returns the number of bytes after the last gzip member that were
// ignored.
func (z *Inflater) Trailing() int64 {
	return z.trailing
}

func (z *Inflater) fail(err error) error {
	if z.raw.err != nil {
		return errors.Wrap(z.raw.err, errors.ErrorTypeFile, "could not read compressed input")
	}
	return errors.Wrap(err, errors.ErrorTypeCompression, "could not decompress data")
}

// BytesIn returns the number of compressed bytes pulled from the source.
func (z *Inflater) BytesIn() int64 {
	return z.raw.total
}

// Close releases the decompressor and the raw buffer. It is safe to call
// more than once.
func (z *Inflater) Close() error {
	if z.zr != nil {
		_ = z.zr.Close()
		z.zr = nil
	}
	if z.raw.buf != nil {
		buffer.PutStream(z.raw.buf)
		z.raw.buf = nil
	}
	z.eof = true
	return nil
}

// rawReader exposes the raw buffer as an io.ByteReader so the decompressor
// never reads past the bytes it needs.
type rawReader struct {
	src   ChunkSource
	buf   *buffer.Stream
	total int64
	err   error
}

var errRawClosed = stderrors.New("compression: inflater closed")

func (r *rawReader) fetch() error {
	if r.buf == nil {
		return errRawClosed
	}
	if r.buf.Available() > 0 {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	n, err := r.buf.Refill(r.src.GetData)
	r.total += int64(n)
	if err != nil {
		r.err = err
		return err
	}
	if n == 0 {
		return io.EOF
	}
	return nil
}

// position returns how many raw bytes have been consumed.
func (r *rawReader) position() int64 {
	if r.buf == nil {
		return r.total
	}
	return r.total - int64(r.buf.Available())
}

// discard consumes the rest of the input.
func (r *rawReader) discard() error {
	for {
		if err := r.fetch(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		r.buf.Consume(r.buf.Available())
	}
}

func (r *rawReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := r.fetch(); err != nil {
		return 0, err
	}
	n := copy(p, r.buf.Unread())
	r.buf.Consume(n)
	return n, nil
}

func (r *rawReader) ReadByte() (byte, error) {
	if err := r.fetch(); err != nil {
		return 0, err
	}
	b := r.buf.Unread()[0]
	r.buf.Consume(1)
	return b, nil
}
