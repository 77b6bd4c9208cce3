package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ajitpratap0/nebula-copy/pkg/copyformat"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCopyConfigDefaults(t *testing.T) {
	cfg := NewCopyConfig("job")

	assert.Equal(t, "job", cfg.Name)
	assert.Equal(t, "jsonlines", cfg.Format)
	assert.Equal(t, DirectionFrom, cfg.Direction)
	assert.NotNil(t, cfg.Options)
	assert.Equal(t, 10*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.Equal(t, "json", cfg.Observability.LogEncoding)
	assert.Equal(t, copyformat.BufferSizes{}, cfg.BufferSizes())
}

func TestValidate(t *testing.T) {
	valid := func() *CopyConfig {
		cfg := NewCopyConfig("job")
		cfg.Path = "rows.jsonl"
		cfg.Table = "t"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *CopyConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(c *CopyConfig) {}},
		{name: "no format", mutate: func(c *CopyConfig) { c.Format = " " }, wantErr: "format is required"},
		{name: "bad direction", mutate: func(c *CopyConfig) { c.Direction = "sideways" }, wantErr: "direction must be"},
		{name: "no path", mutate: func(c *CopyConfig) { c.Path = "" }, wantErr: "path is required"},
		{name: "query on import", mutate: func(c *CopyConfig) { c.Table = ""; c.Query = "select 1" }, wantErr: "query is only valid"},
		{name: "table and query", mutate: func(c *CopyConfig) { c.Direction = DirectionTo; c.Query = "select 1" }, wantErr: "mutually exclusive"},
		{name: "unnamed column", mutate: func(c *CopyConfig) { c.Columns = []copyformat.Column{{Type: "int4"}} }, wantErr: "column 1 has no name"},
		{name: "negative buffer", mutate: func(c *CopyConfig) { c.Buffers.RawSize = -1 }, wantErr: "must not be negative"},
		{name: "bad encoding", mutate: func(c *CopyConfig) { c.Observability.LogEncoding = "xml" }, wantErr: "log encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestValidateDatabase(t *testing.T) {
	cfg := NewCopyConfig("job")
	cfg.Path = "rows.jsonl"
	cfg.Table = "t"

	err := cfg.ValidateDatabase()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn is required")

	cfg.Database.DSN = "postgres://localhost/db"
	assert.NoError(t, cfg.ValidateDatabase())

	cfg.Table = ""
	assert.ErrorContains(t, cfg.ValidateDatabase(), "table is required")

	cfg.Direction = DirectionTo
	assert.ErrorContains(t, cfg.ValidateDatabase(), "table or query is required")

	cfg.Query = "select * from t"
	assert.NoError(t, cfg.ValidateDatabase())
}

func TestLoadSubstitutesEnvironment(t *testing.T) {
	t.Setenv("NEBULA_TEST_DSN", "postgres://db/app")
	t.Setenv("NEBULA_TEST_EMPTY", "")

	path := filepath.Join(t.TempDir(), "job.yaml")
	content := `
name: events
direction: to
path: out.jsonl.gz
query: select * from events
columns:
  - name: id
    type: int8
options:
  compression: gzip
  compression_detail: "${NEBULA_TEST_EMPTY:-9}"
database:
  dsn: ${NEBULA_TEST_DSN}
  connect_timeout: 30s
buffers:
  raw_size: 131072
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := NewCopyConfig("")
	require.NoError(t, Load(path, cfg))

	assert.Equal(t, "events", cfg.Name)
	assert.Equal(t, "jsonlines", cfg.Format, "defaults survive fields absent from the file")
	assert.Equal(t, DirectionTo, cfg.Direction)
	assert.Equal(t, []copyformat.Column{{Name: "id", Type: "int8"}}, cfg.Columns)
	assert.Equal(t, map[string]string{"compression": "gzip", "compression_detail": "9"}, cfg.Options)
	assert.Equal(t, "postgres://db/app", cfg.Database.DSN)
	assert.Equal(t, 30*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, copyformat.BufferSizes{Raw: 131072}, cfg.BufferSizes())
	assert.NoError(t, cfg.ValidateDatabase())
}

func TestLoadErrors(t *testing.T) {
	var cfg CopyConfig

	err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	err = Parse([]byte("name: [unterminated"), &cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")

	cfg := NewCopyConfig("roundtrip")
	cfg.Path = "gs://bucket/rows.jsonl"
	cfg.Table = "rows"
	cfg.Columns = []copyformat.Column{{Name: "a", Type: "text"}}
	require.NoError(t, Save(path, cfg))

	loaded := NewCopyConfig("")
	require.NoError(t, Load(path, loaded))
	assert.Equal(t, cfg, loaded)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("NEBULA_TEST_A", "alpha")
	t.Setenv("NEBULA_TEST_LOOP", "${NEBULA_TEST_LOOP}")

	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"${NEBULA_TEST_A}", "alpha"},
		{"x-${NEBULA_TEST_A}-${NEBULA_TEST_A}", "x-alpha-alpha"},
		{"${NEBULA_TEST_UNSET}", ""},
		{"${NEBULA_TEST_UNSET:-fallback}", "fallback"},
		{"${NEBULA_TEST_A:-fallback}", "alpha"},
		{"${NEBULA_TEST_LOOP}", "${NEBULA_TEST_LOOP}"},
		{"unterminated ${NEBULA_TEST_A", "unterminated ${NEBULA_TEST_A"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, substituteEnvVars(tt.in), tt.in)
	}
}
