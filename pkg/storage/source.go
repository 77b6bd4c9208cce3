package storage

import (
	"io"
)

// Source adapts an io.Reader to copyformat.Source.
type Source struct {
	name    string
	r       io.Reader
	closers []func() error
	pending error
	read    int64
	closed  bool
}

// NewSource wraps r. name is reported by Name.
func NewSource(name string, r io.Reader) *Source {
	return &Source{name: name, r: r}
}

// GetData reads up to len(p) bytes. It returns 0 with a nil error only at
// end of input. An error that arrives together with data is held back until
// the data has been consumed.
func (s *Source) GetData(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if s.pending != nil {
			if s.pending == io.EOF {
				return 0, nil
			}
			return 0, s.pending
		}

		n, err := s.r.Read(p)
		s.read += int64(n)
		if err != nil {
			s.pending = err
		}
		if n > 0 {
			return n, nil
		}
	}
}

// Name returns the source name.
func (s *Source) Name() string { return s.name }

// BytesRead returns the number of bytes handed out.
func (s *Source) BytesRead() int64 { return s.read }

// Close releases the underlying reader. It is safe to call more than once.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *Source) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}
