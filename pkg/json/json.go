// Package json provides the JSON layer of the copy codecs on top of
// goccy/go-json: a parse-once Document for per-row key lookup, canonical
// text rendering of JSON values, and pooled buffers for line encoding.
package json

import (
	"bytes"
	"sync"

	gojson "github.com/goccy/go-json"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a high-performance drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalNoEscape marshals v leaving <, > and & unescaped.
func MarshalNoEscape(v interface{}) ([]byte, error) {
	return gojson.MarshalWithOption(v, gojson.DisableHTMLEscape())
}

// Unmarshal is a high-performance drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return gojson.Valid(data)
}

// AppendString appends s as a quoted JSON string. <, > and & are written
// as is.
func AppendString(dst []byte, s string) []byte {
	b, err := MarshalNoEscape(s)
	if err != nil {
		// strings always marshal; keep the output well formed regardless
		return append(dst, `""`...)
	}
	return append(dst, b...)
}

// AppendCompact appends the compact form of the JSON text src.
func AppendCompact(dst []byte, src []byte) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := gojson.Compact(buf, src); err != nil {
		return dst, err
	}
	return append(dst, buf.Bytes()...), nil
}
