package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/nebula-copy/pkg/compression"
	"github.com/ajitpratap0/nebula-copy/pkg/config"
	"github.com/ajitpratap0/nebula-copy/pkg/copyformat"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/ajitpratap0/nebula-copy/pkg/jsonlines"
)

// addJobFlags registers the flags shared by the copy commands.
func addJobFlags(cmd *cobra.Command, database bool) {
	f := cmd.Flags()
	f.StringP("path", "p", "", "File location: a path, -, s3://bucket/key or gs://bucket/key")
	f.StringP("format", "f", "", "Copy format (default jsonlines)")
	f.StringArray("column", nil, "Column as name:type, repeatable")
	f.StringArray("option", nil, "Format option as name=value, repeatable")
	f.Int("input-size", 0, "Input buffer size in bytes")
	f.Int("raw-size", 0, "Compressed read buffer size in bytes")
	f.Bool("strict", false, "Fail when the input ends with an unterminated line")

	if database {
		f.String("dsn", "", "PostgreSQL connection string")
		f.Duration("connect-timeout", 0, "Database connect timeout")
		f.StringP("table", "t", "", "Table name, optionally schema qualified")
	}

	// object storage
	f.String("region", "", "AWS region for s3:// locations")
	f.String("endpoint", "", "S3 compatible endpoint URL")
	f.String("credentials-file", "", "Google credentials file for gs:// locations")
}

// loadJob builds the job configuration: defaults, then the job file, then
// NEBULA_COPY_* variables and flags.
func loadJob(v *viper.Viper, direction config.Direction) (*config.CopyConfig, error) {
	cfg := config.NewCopyConfig("nebula-copy")
	if path := v.GetString("config"); path != "" {
		if err := config.Load(path, cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Options == nil {
		cfg.Options = map[string]string{}
	}
	cfg.Direction = direction

	setString(v, "path", &cfg.Path)
	setString(v, "format", &cfg.Format)
	setString(v, "table", &cfg.Table)
	setString(v, "query", &cfg.Query)
	setString(v, "dsn", &cfg.Database.DSN)
	setString(v, "region", &cfg.Storage.Region)
	setString(v, "endpoint", &cfg.Storage.Endpoint)
	setString(v, "credentials-file", &cfg.Storage.CredentialsFile)
	setString(v, "log-level", &cfg.Observability.LogLevel)
	setString(v, "log-encoding", &cfg.Observability.LogEncoding)
	setString(v, "metrics-addr", &cfg.Observability.MetricsAddr)

	if v.IsSet("connect-timeout") {
		cfg.Database.ConnectTimeout = v.GetDuration("connect-timeout")
	}
	if v.IsSet("input-size") {
		cfg.Buffers.InputSize = v.GetInt("input-size")
	}
	if v.IsSet("raw-size") {
		cfg.Buffers.RawSize = v.GetInt("raw-size")
	}
	if v.IsSet("output-chunk-size") {
		cfg.Buffers.OutputChunkSize = v.GetInt("output-chunk-size")
	}
	if v.IsSet("enable-metrics") {
		cfg.Observability.EnableMetrics = v.GetBool("enable-metrics")
	}
	if v.IsSet("enable-tracing") {
		cfg.Observability.EnableTracing = v.GetBool("enable-tracing")
	}

	if v.IsSet("column") {
		columns, err := parseColumns(v.GetStringSlice("column"))
		if err != nil {
			return nil, err
		}
		cfg.Columns = columns
	}
	if v.IsSet("option") {
		options, err := parseOptions(v.GetStringSlice("option"))
		if err != nil {
			return nil, err
		}
		for k, val := range options {
			cfg.Options[k] = val
		}
	}
	if v.IsSet("compression") {
		cfg.Options[jsonlines.OptionCompression] = v.GetString("compression")
	}
	if v.IsSet("compression-detail") {
		cfg.Options[jsonlines.OptionCompressionDetail] = v.GetString("compression-detail")
	}

	// an export to a .gz location is compressed unless told otherwise
	if direction == config.DirectionTo && cfg.Format == jsonlines.FormatName {
		if _, ok := cfg.Options[jsonlines.OptionCompression]; !ok &&
			compression.DetectFromName(cfg.Path) == compression.Gzip {
			cfg.Options[jsonlines.OptionCompression] = string(compression.Gzip)
		}
	}

	return cfg, nil
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

// parseColumns parses name:type pairs. The type may be omitted.
func parseColumns(specs []string) ([]copyformat.Column, error) {
	columns := make([]copyformat.Column, 0, len(specs))
	for _, spec := range specs {
		name, typ, _ := strings.Cut(spec, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "invalid column %q: expected name:type", spec)
		}
		columns = append(columns, copyformat.Column{Name: name, Type: strings.TrimSpace(typ)})
	}
	return columns, nil
}

// parseOptions parses name=value pairs.
func parseOptions(specs []string) (map[string]string, error) {
	options := make(map[string]string, len(specs))
	for _, spec := range specs {
		name, value, ok := strings.Cut(spec, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "invalid option %q: expected name=value", spec)
		}
		options[name] = value
	}
	return options, nil
}
