// Package buffer provides the byte containers used by the copy codecs: a
// fixed-capacity Stream buffer that can only be refilled once drained, a
// growable Line buffer holding one record, and pools for both.
//
// A Stream tracks two offsets over an owned array of capacity C:
//
//	0 <= index <= len <= C
//
// Available is len-index. Refill is rejected unless Available is zero, so a
// partially consumed window can never be overwritten.
package buffer

import (
	"errors"
	"fmt"
)

// ErrNotDrained is returned by Refill when unread bytes remain.
var ErrNotDrained = errors.New("buffer: refill with unread bytes")

// FillFunc writes up to len(p) bytes into p and reports how many were
// written. Zero bytes with a nil error means end of input.
type FillFunc func(p []byte) (int, error)

// Stream is a fixed-capacity byte window with consumed/total offsets.
// It is not safe for concurrent use.
type Stream struct {
	buf   []byte
	index int
	n     int
}

// NewStream allocates a Stream with the given capacity.
func NewStream(capacity int) *Stream {
	if capacity <= 0 {
		panic(fmt.Sprintf("buffer: invalid stream capacity %d", capacity))
	}
	return &Stream{buf: make([]byte, capacity)}
}

// Cap returns the fixed capacity C.
func (s *Stream) Cap() int { return len(s.buf) }

// Len returns the number of valid bytes from the last refill.
func (s *Stream) Len() int { return s.n }

// Index returns the offset of the next unread byte.
func (s *Stream) Index() int { return s.index }

// Available returns the number of unread bytes.
func (s *Stream) Available() int { return s.n - s.index }

// Unread returns the unread window. The slice aliases the buffer and is
// only valid until the next Refill.
func (s *Stream) Unread() []byte { return s.buf[s.index:s.n] }

// Consume marks n unread bytes as read.
func (s *Stream) Consume(n int) {
	if n < 0 || n > s.Available() {
		panic(fmt.Sprintf("buffer: consume %d of %d available", n, s.Available()))
	}
	s.index += n
}

// Refill replaces the window with bytes produced by fill, offering the whole
// capacity. It returns the number of bytes now available; zero signals end
// of input.
func (s *Stream) Refill(fill FillFunc) (int, error) {
	if s.Available() != 0 {
		return 0, ErrNotDrained
	}
	n, err := fill(s.buf)
	if n < 0 || n > len(s.buf) {
		return 0, fmt.Errorf("buffer: fill returned %d bytes for capacity %d", n, len(s.buf))
	}
	s.index = 0
	s.n = n
	return n, err
}

// Reset discards all content.
func (s *Stream) Reset() {
	s.index = 0
	s.n = 0
}
