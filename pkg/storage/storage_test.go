package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw     string
		want    Location
		name    string
		wantErr bool
	}{
		{raw: "-", want: Location{Scheme: SchemeStdio}, name: "-"},
		{raw: "/data/rows.jsonl.gz", want: Location{Scheme: SchemeFile, Path: "/data/rows.jsonl.gz"}, name: "rows.jsonl.gz"},
		{raw: "file:///tmp/a/../b.jsonl", want: Location{Scheme: SchemeFile, Path: "/tmp/b.jsonl"}, name: "b.jsonl"},
		{raw: "rows.jsonl", want: Location{Scheme: SchemeFile, Path: "rows.jsonl"}, name: "rows.jsonl"},
		{raw: "s3://bucket/exports/2024/rows.jsonl.gz", want: Location{Scheme: SchemeS3, Bucket: "bucket", Key: "exports/2024/rows.jsonl.gz"}, name: "rows.jsonl.gz"},
		{raw: "gs://bkt/rows.jsonl", want: Location{Scheme: SchemeGCS, Bucket: "bkt", Key: "rows.jsonl"}, name: "rows.jsonl"},
		{raw: "", wantErr: true},
		{raw: "s3://bucket", wantErr: true},
		{raw: "s3://bucket/", wantErr: true},
		{raw: "gs:///key", wantErr: true},
		{raw: "gs://bucket/dir/", wantErr: true},
		{raw: "ftp://host/file", wantErr: true},
		{raw: "file://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			loc, err := ParseLocation(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc)
			assert.Equal(t, tt.name, loc.Name())
		})
	}
}

func TestLocationStringAndContentType(t *testing.T) {
	loc, err := ParseLocation("s3://b/k/rows.jsonl.gz")
	require.NoError(t, err)
	assert.Equal(t, "s3://b/k/rows.jsonl.gz", loc.String())
	assert.Equal(t, "application/gzip", loc.ContentType())

	loc, err = ParseLocation("gs://b/rows.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "gs://b/rows.jsonl", loc.String())
	assert.Equal(t, "application/x-ndjson", loc.ContentType())
}

func drain(t *testing.T, s *Source, size int) ([]byte, error) {
	t.Helper()
	var out []byte
	p := make([]byte, size)
	for {
		n, err := s.GetData(p)
		if err != nil {
			return out, err
		}
		if n == 0 {
			return out, nil
		}
		out = append(out, p[:n]...)
	}
}

func TestSourceGetData(t *testing.T) {
	data := "hello, world\n"

	for name, r := range map[string]interface{ Read([]byte) (int, error) }{
		"plain":     strings.NewReader(data),
		"one byte":  iotest.OneByteReader(strings.NewReader(data)),
		"data+eof":  iotest.DataErrReader(strings.NewReader(data)),
		"half read": iotest.HalfReader(strings.NewReader(data)),
	} {
		s := NewSource("mem", r)
		got, err := drain(t, s, 4)
		require.NoError(t, err, name)
		assert.Equal(t, data, string(got), name)
		assert.Equal(t, int64(len(data)), s.BytesRead(), name)

		n, err := s.GetData(make([]byte, 4))
		assert.NoError(t, err)
		assert.Zero(t, n, "end of input is sticky")
	}
}

func TestSourceErrorAfterData(t *testing.T) {
	boom := stderrors.New("boom")
	r := &errAfterReader{data: []byte("abc"), err: boom}
	s := NewSource("mem", r)

	n, err := s.GetData(make([]byte, 10))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = s.GetData(make([]byte, 10))
	assert.ErrorIs(t, err, boom)
}

type errAfterReader struct {
	data []byte
	err  error
}

func (r *errAfterReader) Read(p []byte) (int, error) {
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, r.err
}

func TestFileSourceAndSink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.jsonl")
	o := NewOpener(Options{Logger: zaptest.NewLogger(t)})
	defer o.Close()
	ctx := context.Background()

	sink, err := o.CreateSink(ctx, target)
	require.NoError(t, err)
	require.NoError(t, sink.Send([]byte("{\"a\":1}\n")))
	require.NoError(t, sink.Send([]byte("{\"a\":2}\n")))

	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err), "target must not exist before commit")

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.Equal(t, int64(16), sink.BytesWritten())
	assert.Error(t, sink.Send([]byte("late")))

	src, err := o.OpenSource(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, "out.jsonl", src.Name())
	got, err := drain(t, src, 5)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n{\"a\":2}\n", string(got))
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files may remain")
}

func TestFileSinkAbort(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.jsonl")
	o := NewOpener(Options{})

	sink, err := o.CreateSink(context.Background(), target)
	require.NoError(t, err)
	require.NoError(t, sink.Send([]byte("partial")))
	sink.Abort(stderrors.New("copy failed"))
	require.NoError(t, sink.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpenMissingFile(t *testing.T) {
	o := NewOpener(Options{})
	_, err := o.OpenSource(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestStdio(t *testing.T) {
	var out bytes.Buffer
	o := NewOpener(Options{Stdin: strings.NewReader("in\n"), Stdout: &out})
	ctx := context.Background()

	src, err := o.OpenSource(ctx, "-")
	require.NoError(t, err)
	got, err := drain(t, src, 64)
	require.NoError(t, err)
	assert.Equal(t, "in\n", string(got))

	sink, err := o.CreateSink(ctx, "-")
	require.NoError(t, err)
	require.NoError(t, sink.Send([]byte("out\n")))
	require.NoError(t, sink.Close())
	assert.Equal(t, "out\n", out.String())
}

func TestUnsupportedScheme(t *testing.T) {
	o := NewOpener(Options{})
	_, err := o.OpenSource(context.Background(), "http://example.com/rows.jsonl")
	assert.Error(t, err)
	_, err = o.CreateSink(context.Background(), "http://example.com/rows.jsonl")
	assert.Error(t, err)
}
