package storage

import (
	"io"

	"github.com/ajitpratap0/nebula-copy/pkg/errors"
)

// Sink adapts an io.Writer to copyformat.Sink. Output becomes visible at
// its destination only once Close commits it; Abort discards it.
type Sink struct {
	name    string
	w       io.Writer
	commit  func() error
	abort   func(cause error)
	written int64
	done    bool
}

// NewSink wraps w. Close and Abort are no-ops on the writer.
func NewSink(name string, w io.Writer) *Sink {
	return &Sink{name: name, w: w}
}

// Send writes p.
func (s *Sink) Send(p []byte) error {
	if s.done {
		return errors.Newf(errors.ErrorTypeInternal, "sink %s is closed", s.name)
	}
	n, err := s.w.Write(p)
	s.written += int64(n)
	if err != nil {
		return err
	}
	return nil
}

// Name returns the sink name.
func (s *Sink) Name() string { return s.name }

// BytesWritten returns the number of bytes written.
func (s *Sink) BytesWritten() int64 { return s.written }

// Close commits the output.
func (s *Sink) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if s.commit == nil {
		return nil
	}
	if err := s.commit(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "could not commit output").
			WithDetail("location", s.name)
	}
	return nil
}

// Abort discards the output. It does nothing after Close.
func (s *Sink) Abort(cause error) {
	if s.done {
		return
	}
	s.done = true
	if s.abort != nil {
		s.abort(cause)
	}
}
