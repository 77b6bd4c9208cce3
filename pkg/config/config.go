// Package config provides the copy job configuration for nebula-copy.
//
// A job file describes one copy between a file location and a PostgreSQL
// table or query:
//
//	name: events-import
//	format: jsonlines
//	direction: from
//	path: s3://bucket/events/2024-06-01.jsonl.gz
//	table: events
//	columns:
//	  - name: id
//	    type: int8
//	  - name: payload
//	    type: jsonb
//	database:
//	  dsn: ${DATABASE_URL}
//
// ${VAR} references are replaced with environment variables before the file
// is parsed. Fields left out of the file keep the values of NewCopyConfig.
package config

import (
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-copy/pkg/copyformat"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
)

// Direction is the direction of a copy relative to the database.
type Direction string

const (
	// DirectionFrom loads a file into a table (COPY FROM).
	DirectionFrom Direction = "from"
	// DirectionTo writes a table or query result to a file (COPY TO).
	DirectionTo Direction = "to"
)

// CopyConfig is the configuration of one copy job.
type CopyConfig struct {
	Name      string              `yaml:"name" json:"name"`
	Format    string              `yaml:"format" json:"format"`
	Direction Direction           `yaml:"direction" json:"direction"`
	Path      string              `yaml:"path" json:"path"`
	Table     string              `yaml:"table,omitempty" json:"table,omitempty"`
	Columns   []copyformat.Column `yaml:"columns,omitempty" json:"columns,omitempty"`
	Query     string              `yaml:"query,omitempty" json:"query,omitempty"`
	Options   map[string]string   `yaml:"options,omitempty" json:"options,omitempty"`

	Database      DatabaseConfig      `yaml:"database" json:"database"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Buffers       BufferConfig        `yaml:"buffers" json:"buffers"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// DatabaseConfig locates the PostgreSQL server.
type DatabaseConfig struct {
	DSN            string        `yaml:"dsn" json:"dsn"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	MaxConns       int32         `yaml:"max_conns" json:"max_conns"`
}

// StorageConfig configures the object store clients.
type StorageConfig struct {
	Region          string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	PartSize        int64  `yaml:"part_size,omitempty" json:"part_size,omitempty"`
	MaxConcurrency  int    `yaml:"max_concurrency,omitempty" json:"max_concurrency,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty" json:"credentials_file,omitempty"`
}

// BufferConfig overrides the codec buffer capacities. Zero keeps the
// format default.
type BufferConfig struct {
	InputSize       int `yaml:"input_size" json:"input_size"`
	RawSize         int `yaml:"raw_size" json:"raw_size"`
	OutputChunkSize int `yaml:"output_chunk_size" json:"output_chunk_size"`
}

// ObservabilityConfig controls logging, metrics and tracing.
type ObservabilityConfig struct {
	LogLevel      string `yaml:"log_level" json:"log_level"`
	LogEncoding   string `yaml:"log_encoding" json:"log_encoding"`
	EnableMetrics bool   `yaml:"enable_metrics" json:"enable_metrics"`
	MetricsAddr   string `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty"`
	EnableTracing bool   `yaml:"enable_tracing" json:"enable_tracing"`
}

// NewCopyConfig creates a configuration with defaults for the given job name.
func NewCopyConfig(name string) *CopyConfig {
	return &CopyConfig{
		Name:      name,
		Format:    "jsonlines",
		Direction: DirectionFrom,
		Options:   map[string]string{},
		Database: DatabaseConfig{
			ConnectTimeout: 10 * time.Second,
			MaxConns:       4,
		},
		Storage: StorageConfig{
			PartSize:       8 * 1024 * 1024,
			MaxConcurrency: 4,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogEncoding: "json",
			MetricsAddr: ":9090",
		},
	}
}

// Validate checks the fields every copy job needs.
func (c *CopyConfig) Validate() error {
	if strings.TrimSpace(c.Format) == "" {
		return errors.New(errors.ErrorTypeConfig, "format is required")
	}
	switch c.Direction {
	case DirectionFrom, DirectionTo:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "direction must be %q or %q, got %q",
			DirectionFrom, DirectionTo, c.Direction)
	}
	if c.Path == "" {
		return errors.New(errors.ErrorTypeConfig, "path is required")
	}
	if c.Direction == DirectionFrom && c.Query != "" {
		return errors.New(errors.ErrorTypeConfig, "query is only valid when copying to a file")
	}
	if c.Table != "" && c.Query != "" {
		return errors.New(errors.ErrorTypeConfig, "table and query are mutually exclusive")
	}
	for i, col := range c.Columns {
		if col.Name == "" {
			return errors.Newf(errors.ErrorTypeConfig, "column %d has no name", i+1)
		}
	}
	if c.Buffers.InputSize < 0 || c.Buffers.RawSize < 0 || c.Buffers.OutputChunkSize < 0 {
		return errors.New(errors.ErrorTypeConfig, "buffer sizes must not be negative")
	}
	switch c.Observability.LogEncoding {
	case "", "json", "console":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "log encoding must be json or console, got %q",
			c.Observability.LogEncoding)
	}
	return nil
}

// ValidateDatabase checks the fields a copy against a database needs on top
// of Validate.
func (c *CopyConfig) ValidateDatabase() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Database.DSN == "" {
		return errors.New(errors.ErrorTypeConfig, "database dsn is required")
	}
	if c.Direction == DirectionFrom && c.Table == "" {
		return errors.New(errors.ErrorTypeConfig, "table is required when copying from a file")
	}
	if c.Direction == DirectionTo && c.Table == "" && c.Query == "" {
		return errors.New(errors.ErrorTypeConfig, "table or query is required when copying to a file")
	}
	return nil
}

// BufferSizes returns the buffer overrides in the form the formats take.
func (c *CopyConfig) BufferSizes() copyformat.BufferSizes {
	return copyformat.BufferSizes{
		Input:       c.Buffers.InputSize,
		Raw:         c.Buffers.RawSize,
		OutputChunk: c.Buffers.OutputChunkSize,
	}
}
