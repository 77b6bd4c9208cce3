package jsonlines

import (
	"bytes"
	stdgzip "compress/gzip"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/ajitpratap0/nebula-copy/pkg/copyformat"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// stepSource hands out data at most step bytes per call.
type stepSource struct {
	data []byte
	step int
	err  error
}

func (s *stepSource) GetData(p []byte) (int, error) {
	if len(s.data) == 0 {
		return 0, s.err
	}
	n := len(p)
	if s.step > 0 && n > s.step {
		n = s.step
	}
	n = copy(p[:n], s.data)
	s.data = s.data[n:]
	return n, nil
}

type bufferSink struct {
	bytes.Buffer
	err error
}

func (s *bufferSink) Send(p []byte) error {
	if s.err != nil {
		return s.err
	}
	_, err := s.Write(p)
	return err
}

type decodedRow struct {
	values []any
	nulls  []bool
	info   copyformat.RowInfo
}

func startReader(t *testing.T, env copyformat.Env, filename string, src copyformat.Source, columns []copyformat.Column) *Reader {
	t.Helper()
	if env.Logger == nil {
		env.Logger = zaptest.NewLogger(t)
	}
	r := NewReader(env)
	require.NoError(t, r.Start(copyformat.FromStart{Filename: filename, Source: src, Columns: columns}))
	t.Cleanup(func() { _ = r.End() })
	return r
}

func readRows(t *testing.T, r *Reader, ncols int) ([]decodedRow, error) {
	t.Helper()
	values := make([]any, ncols)
	nulls := make([]bool, ncols)

	var rows []decodedRow
	for {
		info, ok, err := r.OneRow(values, nulls)
		if err != nil {
			return rows, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, decodedRow{
			values: append([]any(nil), values...),
			nulls:  append([]bool(nil), nulls...),
			info:   info,
		})
	}
}

var abColumns = []copyformat.Column{{Name: "a", Type: "int4"}, {Name: "b", Type: "text"}}

func TestDecodeScenario(t *testing.T) {
	input := "{\"a\":1,\"b\":\"x\"}\n{\"a\":2,\"b\":null}\n"
	r := startReader(t, copyformat.Env{}, "rows.jsonl", &stepSource{data: []byte(input)}, abColumns)

	rows, err := readRows(t, r, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []any{int32(1), "x"}, rows[0].values)
	assert.Equal(t, []bool{false, false}, rows[0].nulls)
	assert.Equal(t, copyformat.RowInfo{LineNo: 1, Length: 15}, rows[0].info)

	assert.Equal(t, []any{int32(2), nil}, rows[1].values)
	assert.Equal(t, []bool{false, true}, rows[1].nulls)
	assert.Equal(t, copyformat.RowInfo{LineNo: 2, Length: 16}, rows[1].info)

	assert.Equal(t, int64(len(input)), r.BytesProcessed())
	assert.Zero(t, r.Truncated())
}

func TestDecodeMissingNullAndExtraKeys(t *testing.T) {
	input := strings.Join([]string{
		`{"a":1,"b":"first"}`,
		`{"a":2}`,
		`{"b":null,"zzz":[1,2,3]}`,
		`{"unrelated":true,"a":3,"b":"last"}`,
	}, "\n") + "\n"
	r := startReader(t, copyformat.Env{}, "rows.jsonl", &stepSource{data: []byte(input), step: 3}, abColumns)

	rows, err := readRows(t, r, 2)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []bool{false, true}, rows[1].nulls, "absent key must not keep the previous value")
	assert.Nil(t, rows[1].values[1])
	assert.Equal(t, []bool{true, true}, rows[2].nulls)
	assert.Equal(t, []any{int32(3), "last"}, rows[3].values)
}

func TestDecodeValueRendering(t *testing.T) {
	columns := []copyformat.Column{
		{Name: "n", Type: "numeric"},
		{Name: "flag", Type: "text"},
		{Name: "obj", Type: "text"},
		{Name: "big", Type: "text"},
		{Name: "doc", Type: "jsonb"},
	}
	input := `{"n":1.5e2,"flag":false,"obj":{"k": [1, "v"]},"big":1E+3,"doc":{"x":{"y":null}}}` + "\n"
	r := startReader(t, copyformat.Env{}, "v.jsonl", &stepSource{data: []byte(input)}, columns)

	rows, err := readRows(t, r, len(columns))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "false", rows[0].values[1])
	assert.Equal(t, `{"k":[1,"v"]}`, rows[0].values[2])
	assert.Equal(t, "1000", rows[0].values[3])
	assert.Equal(t, map[string]any{"x": map[string]any{"y": nil}}, rows[0].values[4])
}

func TestDecodeLineSplitting(t *testing.T) {
	long := strings.Repeat("0123456789", 40)
	input := fmt.Sprintf("{\"a\":7,\"b\":%q}\n{\"a\":8,\"b\":\"s\"}\n", long)

	for _, inputSize := range []int{1, 2, 3, 7, 64, 4096} {
		for _, step := range []int{1, 2, 5, 13, 0} {
			env := copyformat.Env{
				Logger:  zap.NewNop(),
				Buffers: copyformat.BufferSizes{Input: inputSize},
			}
			r := startReader(t, env, "split.jsonl", &stepSource{data: []byte(input), step: step}, abColumns)

			rows, err := readRows(t, r, 2)
			require.NoError(t, err, "input=%d step=%d", inputSize, step)
			require.Len(t, rows, 2)
			assert.Equal(t, []any{int32(7), long}, rows[0].values)
			assert.Equal(t, []any{int32(8), "s"}, rows[1].values)
			require.NoError(t, r.End())
		}
	}
}

func TestDecodeEverySplitPoint(t *testing.T) {
	input := []byte("{\"a\":1,\"b\":\"x\"}\n{\"a\":2,\"b\":null}\n")

	for split := 0; split <= len(input); split++ {
		src := &chunkListSource{chunks: [][]byte{input[:split], input[split:]}}
		env := copyformat.Env{Logger: zap.NewNop(), Buffers: copyformat.BufferSizes{Input: 8}}
		r := startReader(t, env, "rows.jsonl", src, abColumns)

		rows, err := readRows(t, r, 2)
		require.NoError(t, err, "split at %d", split)
		require.Len(t, rows, 2, "split at %d", split)
		assert.Equal(t, []any{int32(1), "x"}, rows[0].values)
		assert.Equal(t, []any{int32(2), nil}, rows[1].values)
		require.NoError(t, r.End())
	}
}

// chunkListSource returns each chunk in its own call, skipping empty ones.
type chunkListSource struct {
	chunks [][]byte
}

func (s *chunkListSource) GetData(p []byte) (int, error) {
	for len(s.chunks) > 0 && len(s.chunks[0]) == 0 {
		s.chunks = s.chunks[1:]
	}
	if len(s.chunks) == 0 {
		return 0, nil
	}
	n := copy(p, s.chunks[0])
	s.chunks[0] = s.chunks[0][n:]
	return n, nil
}

func TestDecodeDiscardsUnterminatedTail(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	env := copyformat.Env{Logger: zap.New(core)}

	input := "{\"a\":1,\"b\":\"x\"}\n{\"a\":2"
	r := startReader(t, env, "tail.jsonl", &stepSource{data: []byte(input), step: 4}, abColumns)

	rows, err := readRows(t, r, 2)
	require.NoError(t, err)
	require.Len(t, rows, 1, "no row may be emitted from a line without a terminator")
	assert.Equal(t, int64(6), r.Truncated())

	_, ok, err := r.OneRow(make([]any, 2), make([]bool, 2))
	require.NoError(t, err)
	assert.False(t, ok)

	require.Equal(t, 1, logs.FilterMessage("discarded unterminated final line").Len())
	entry := logs.All()[0]
	assert.Equal(t, int64(6), entry.ContextMap()["bytes"])
}

func TestDecodeIgnoresDataAfterGzipStream(t *testing.T) {
	var buf bytes.Buffer
	zw := stdgzip.NewWriter(&buf)
	_, err := zw.Write([]byte("{\"a\":1,\"b\":\"x\"}\n{\"a\":2,\"b\":null}\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	buf.WriteString("\n")

	core, logs := observer.New(zapcore.WarnLevel)
	env := copyformat.Env{Logger: zap.New(core)}
	r := startReader(t, env, "rows.jsonl.gz", &stepSource{data: buf.Bytes(), step: 7}, abColumns)

	rows, err := readRows(t, r, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{int32(2), nil}, rows[1].values)
	assert.Zero(t, r.Truncated())

	_, ok, err := r.OneRow(make([]any, 2), make([]bool, 2))
	require.NoError(t, err)
	assert.False(t, ok)

	warnings := logs.FilterMessage("ignored data after end of compressed stream")
	require.Equal(t, 1, warnings.Len())
	assert.Equal(t, int64(1), warnings.All()[0].ContextMap()["bytes"])
}

func TestDecodeEmptyInput(t *testing.T) {
	for _, name := range []string{"empty.jsonl", "empty.jsonl.gz"} {
		r := startReader(t, copyformat.Env{}, name, &stepSource{}, abColumns)
		rows, err := readRows(t, r, 2)
		require.NoError(t, err, name)
		assert.Empty(t, rows, name)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
		line    int64
	}{
		{name: "blank line", input: "{\"a\":1}\n\n{\"a\":2}\n", wantMsg: "invalid data for jsonb value", line: 2},
		{name: "malformed", input: "{\"a\":1\n", wantMsg: "invalid data for jsonb value", line: 1},
		{name: "not an object", input: "[1,2]\n", wantMsg: "invalid data for jsonb value", line: 1},
		{name: "invalid utf8", input: "{\"a\":1}\n{\"b\":\"\xff\"}\n", wantMsg: "invalid data for jsonb value", line: 2},
		{name: "conversion", input: "{\"a\":1}\n{\"a\":\"x\"}\n", wantMsg: `could not convert jsonb value "x" to data for column "a"`, line: 2},
		{name: "out of range", input: "{\"a\":3000000000}\n", wantMsg: `could not convert jsonb value "3000000000" to data for column "a"`, line: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := startReader(t, copyformat.Env{}, "bad.jsonl", &stepSource{data: []byte(tt.input)}, abColumns)
			_, err := readRows(t, r, 2)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.True(t, errors.IsType(err, errors.ErrorTypeData))

			var e *errors.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.line, e.Details["line"])
		})
	}
}

func TestDecodeSourceError(t *testing.T) {
	boom := stderrors.New("connection reset")
	r := startReader(t, copyformat.Env{}, "rows.jsonl", &stepSource{data: []byte("{\"a\":1}"), err: boom}, abColumns)

	_, err := readRows(t, r, 2)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
	assert.ErrorIs(t, err, boom)
}

func TestDecodeCorruptGzip(t *testing.T) {
	r := startReader(t, copyformat.Env{}, "rows.jsonl.gz", &stepSource{data: []byte("{\"a\":1}\n")}, abColumns)

	_, err := readRows(t, r, 2)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCompression))
	assert.Contains(t, err.Error(), "could not decompress data")
}

func TestReaderLifecycle(t *testing.T) {
	r := NewReader(copyformat.Env{})
	assert.NoError(t, r.End(), "End before Start")

	r = NewReader(copyformat.Env{})
	_, _, err := r.OneRow(nil, nil)
	assert.Error(t, err, "OneRow before Start")

	assert.Error(t, r.Start(copyformat.FromStart{Columns: abColumns}), "missing source")

	ok, err := r.ProcessOption(OptionCompression, "gzip")
	require.NoError(t, err)
	assert.False(t, ok, "the read side takes no options")

	require.NoError(t, r.Start(copyformat.FromStart{Source: &stepSource{}, Columns: abColumns}))
	assert.Error(t, r.Start(copyformat.FromStart{Source: &stepSource{}, Columns: abColumns}))

	_, _, err = r.OneRow(make([]any, 1), make([]bool, 1))
	assert.Error(t, err, "too few slots")

	require.NoError(t, r.End())
	require.NoError(t, r.End())
	_, _, err = r.OneRow(make([]any, 2), make([]bool, 2))
	assert.Error(t, err, "OneRow after End")
}

func TestReaderUnknownColumnType(t *testing.T) {
	r := NewReader(copyformat.Env{})
	err := r.Start(copyformat.FromStart{
		Source:  &stepSource{},
		Columns: []copyformat.Column{{Name: "a", Type: "nosuchtype"}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

var mixedColumns = []copyformat.Column{
	{Name: "id", Type: "bigint"},
	{Name: "name", Type: "text"},
	{Name: "ok", Type: "boolean"},
	{Name: "score", Type: "double precision"},
	{Name: "note", Type: "text"},
}

func mixedRows() [][]any {
	return [][]any{
		{int64(1), "plain", true, 2.5, nil},
		{int64(-2), "line\nbreak \"quoted\" <tag> & é\t", false, -0.125, "note"},
		{nil, nil, nil, nil, nil},
		{int64(9007199254740993), "", true, 1e-7, "{\"looks\":\"like json\"}"},
	}
}

func writeRows(t *testing.T, w *Writer, sink copyformat.Sink, rows [][]any) {
	t.Helper()
	require.NoError(t, w.Start(copyformat.ToStart{Sink: sink, Columns: mixedColumns}))
	for _, row := range rows {
		nulls := make([]bool, len(row))
		for i, v := range row {
			nulls[i] = v == nil
		}
		require.NoError(t, w.OneRow(row, nulls))
	}
	require.NoError(t, w.End())
}

func assertRowsEqual(t *testing.T, want [][]any, got []decodedRow) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		for j := range want[i] {
			assert.Equal(t, want[i][j] == nil, got[i].nulls[j], "row %d column %d null flag", i, j)
			assert.Equal(t, want[i][j], got[i].values[j], "row %d column %d", i, j)
		}
	}
}

func TestEncodeLines(t *testing.T) {
	sink := &bufferSink{}
	w := NewWriter(copyformat.Env{Logger: zaptest.NewLogger(t)})
	writeRows(t, w, sink, mixedRows()[:1])

	assert.Equal(t, `{"id":1,"name":"plain","ok":true,"score":2.5,"note":null}`+"\n", sink.String())
	assert.Equal(t, int64(sink.Len()), w.BytesWritten())
	assert.Equal(t, int64(1), w.Rows())
}

func TestRoundTrip(t *testing.T) {
	sink := &bufferSink{}
	writeRows(t, NewWriter(copyformat.Env{}), sink, mixedRows())

	assert.Equal(t, 4, strings.Count(sink.String(), "\n"))

	r := startReader(t, copyformat.Env{}, "out.jsonl", &stepSource{data: sink.Bytes(), step: 11}, mixedColumns)
	rows, err := readRows(t, r, len(mixedColumns))
	require.NoError(t, err)
	assertRowsEqual(t, mixedRows(), rows)
}

func TestCompressedRoundTrip(t *testing.T) {
	plain := &bufferSink{}
	writeRows(t, NewWriter(copyformat.Env{}), plain, mixedRows())

	compressed := &bufferSink{}
	w := NewWriter(copyformat.Env{Buffers: copyformat.BufferSizes{OutputChunk: 16}})
	require.NoError(t, copyformat.ApplyOptions(w, map[string]string{
		OptionCompression:       "gzip",
		OptionCompressionDetail: "level=5",
	}))
	writeRows(t, w, compressed, mixedRows())
	assert.Equal(t, int64(compressed.Len()), w.BytesWritten())

	zr, err := stdgzip.NewReader(bytes.NewReader(compressed.Bytes()))
	require.NoError(t, err)
	decompressed, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, plain.String(), string(decompressed))

	env := copyformat.Env{Buffers: copyformat.BufferSizes{Input: 5, Raw: 3}}
	r := startReader(t, env, "out.jsonl.gz", &stepSource{data: compressed.Bytes(), step: 2}, mixedColumns)
	rows, err := readRows(t, r, len(mixedColumns))
	require.NoError(t, err)
	assertRowsEqual(t, mixedRows(), rows)
	assert.Equal(t, int64(compressed.Len()), r.BytesProcessed())
	assert.Equal(t, "gzip", string(r.Compression()))
}

func TestWriterFinishOnce(t *testing.T) {
	sink := &bufferSink{}
	w := NewWriter(copyformat.Env{})
	_, err := w.ProcessOption(OptionCompression, "gzip")
	require.NoError(t, err)

	writeRows(t, w, sink, mixedRows())
	size := sink.Len()

	require.NoError(t, w.End())
	assert.Equal(t, size, sink.Len(), "a second End must not write another trailer")
	assert.Error(t, w.OneRow(mixedRows()[0], make([]bool, len(mixedColumns))))

	zr, err := stdgzip.NewReader(bytes.NewReader(sink.Bytes()))
	require.NoError(t, err)
	_, err = io.ReadAll(zr)
	require.NoError(t, err)
}

func TestWriterFailedStreamIsNotFinished(t *testing.T) {
	sink := &bufferSink{}
	w := NewWriter(copyformat.Env{Buffers: copyformat.BufferSizes{OutputChunk: 16}})
	_, err := w.ProcessOption(OptionCompression, "gzip")
	require.NoError(t, err)
	require.NoError(t, w.Start(copyformat.ToStart{Sink: sink, Columns: mixedColumns}))

	require.NoError(t, w.OneRow(mixedRows()[0], make([]bool, len(mixedColumns))))

	// a value the bigint converter cannot encode
	bad := []any{struct{}{}, nil, nil, nil, nil}
	err = w.OneRow(bad, []bool{false, true, true, true, true})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	assert.Contains(t, err.Error(), `column "id"`)

	require.NoError(t, w.End())

	zr, err := stdgzip.NewReader(bytes.NewReader(sink.Bytes()))
	if err == nil {
		_, err = io.ReadAll(zr)
	}
	assert.Error(t, err, "abandoned output must not decode as a complete stream")
}

func TestWriterSinkError(t *testing.T) {
	boom := stderrors.New("broken pipe")
	w := NewWriter(copyformat.Env{})
	require.NoError(t, w.Start(copyformat.ToStart{Sink: &bufferSink{err: boom}, Columns: abColumns}))

	err := w.OneRow([]any{int32(1), "x"}, []bool{false, false})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, w.End())
}

func TestWriterOptions(t *testing.T) {
	tests := []struct {
		name     string
		options  map[string]string
		startErr string
		optErr   string
	}{
		{name: "default"},
		{name: "gzip", options: map[string]string{"compression": "gzip"}},
		{name: "gzip level", options: map[string]string{"compression": "gzip", "compression_detail": "9"}},
		{name: "none explicit", options: map[string]string{"compression": "none"}},
		{name: "lz4", options: map[string]string{"compression": "lz4"}, optErr: "LZ4 compression is not supported"},
		{name: "zstd", options: map[string]string{"compression": "zstd"}, optErr: "Zstd compression is not supported"},
		{name: "unknown algorithm", options: map[string]string{"compression": "brotli"}, optErr: `unrecognized compression algorithm: "brotli"`},
		{name: "unknown option", options: map[string]string{"delimiter": ","}, optErr: `option "delimiter" not recognized`},
		{name: "bad level", options: map[string]string{"compression": "gzip", "compression_detail": "level=12"}, startErr: "invalid compression specification"},
		{name: "level without algorithm", options: map[string]string{"compression_detail": "5"}, startErr: `"none" does not accept a compression level`},
		{name: "workers", options: map[string]string{"compression": "gzip", "compression_detail": "workers=2"}, startErr: "does not accept a worker count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(copyformat.Env{})
			defer w.End()

			err := copyformat.ApplyOptions(w, tt.options)
			if tt.optErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.optErr)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)

			err = w.Start(copyformat.ToStart{Sink: &bufferSink{}, Columns: abColumns})
			if tt.startErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.startErr)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestWriterLifecycle(t *testing.T) {
	w := NewWriter(copyformat.Env{})
	assert.NoError(t, w.End(), "End before Start")

	w = NewWriter(copyformat.Env{})
	assert.Error(t, w.OneRow(nil, nil))
	assert.Error(t, w.Start(copyformat.ToStart{Columns: abColumns}), "missing sink")

	require.NoError(t, w.Start(copyformat.ToStart{Sink: &bufferSink{}, Columns: abColumns}))
	assert.Error(t, w.Start(copyformat.ToStart{Sink: &bufferSink{}, Columns: abColumns}))
	assert.Error(t, w.OneRow([]any{int32(1)}, []bool{false}), "too few slots")
}

func TestRegistration(t *testing.T) {
	f, err := copyformat.Lookup(FormatName)
	require.NoError(t, err)
	assert.IsType(t, FromRoutine{}, f.From)
	assert.IsType(t, ToRoutine{}, f.To)

	info, err := copyformat.GetFormatInfo(FormatName)
	require.NoError(t, err)
	assert.Contains(t, info.Capabilities, "gzip")

	assert.Equal(t, 64*1024+64*1024+1024, FromRoutine{}.EstimateStateSpace(copyformat.BufferSizes{}))
	assert.Equal(t, 16+1024, ToRoutine{}.EstimateStateSpace(copyformat.BufferSizes{OutputChunk: 16}))

	state := f.From.NewState(copyformat.Env{})
	assert.IsType(t, &Reader{}, state)
	assert.IsType(t, &Writer{}, f.To.NewState(copyformat.Env{}))
}
