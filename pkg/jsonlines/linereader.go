package jsonlines

import (
	"bytes"

	"github.com/ajitpratap0/nebula-copy/pkg/buffer"
)

// lineReader assembles '\n' terminated lines from an input buffer that is
// refilled only once fully consumed. A line may span any number of refills.
type lineReader struct {
	input *buffer.Stream
	line  *buffer.Line
	fill  buffer.FillFunc

	lineNo    int64
	eof       bool
	truncated int64
}

func newLineReader(input *buffer.Stream, line *buffer.Line, fill buffer.FillFunc) *lineReader {
	return &lineReader{input: input, line: line, fill: fill}
}

// next reads the next line into r.line without its terminator. It returns
// false at end of input. Bytes after the last newline are not a line: they
// are dropped and counted in r.truncated.
func (r *lineReader) next() (bool, error) {
	r.line.Reset()
	if r.eof {
		return false, nil
	}

	for {
		if r.input.Available() == 0 {
			n, err := r.input.Refill(r.fill)
			if err != nil {
				return false, err
			}
			if n == 0 {
				r.eof = true
				r.truncated += int64(r.line.Len())
				r.line.Reset()
				return false, nil
			}
		}

		window := r.input.Unread()
		if i := bytes.IndexByte(window, '\n'); i >= 0 {
			r.line.Append(window[:i])
			r.input.Consume(i + 1)
			r.lineNo++
			return true, nil
		}
		r.line.Append(window)
		r.input.Consume(len(window))
	}
}
