package buffer

// Line is a growable byte buffer holding exactly one assembled record.
// There is no upper bound: a single record may be far larger than any
// Stream capacity.
type Line struct {
	buf []byte
}

// NewLine creates a Line buffer with an initial capacity.
func NewLine(capacity int) *Line {
	return &Line{buf: make([]byte, 0, capacity)}
}

// Append appends p.
func (l *Line) Append(p []byte) {
	l.buf = append(l.buf, p...)
}

// Bytes returns the assembled record. The slice is valid until the next Reset
// or Append.
func (l *Line) Bytes() []byte { return l.buf }

// Len returns the record length.
func (l *Line) Len() int { return len(l.buf) }

// Reset clears the buffer, keeping its memory.
func (l *Line) Reset() { l.buf = l.buf[:0] }
