package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/nebula-copy/internal/pipeline"
	"github.com/ajitpratap0/nebula-copy/pkg/config"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/ajitpratap0/nebula-copy/pkg/logger"
	"github.com/ajitpratap0/nebula-copy/pkg/metrics"
	"github.com/ajitpratap0/nebula-copy/pkg/observability"
	"github.com/ajitpratap0/nebula-copy/pkg/storage"
)

func newImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a JSON Lines file into a table (COPY FROM)",
		Long: `Load a JSON Lines file into a PostgreSQL table. Each line must hold one
JSON object; its keys are matched to the table columns by name, missing keys
and nulls load as NULL and unknown keys are ignored. Locations ending in .gz
are decompressed on the fly.

Example:
  nebula-copy import --path s3://bucket/events.jsonl.gz --table events --dsn "$DATABASE_URL"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, config.DirectionFrom)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.cfg.ValidateDatabase(); err != nil {
				return err
			}
			return s.runImport()
		},
	}
	addJobFlags(cmd, true)
	return cmd
}

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a table or query result as JSON Lines (COPY TO)",
		Long: `Write the rows of a table or query as JSON Lines, one object per row.
Locations ending in .gz are gzip compressed unless --compression says otherwise.

Example:
  nebula-copy export --query "SELECT * FROM events WHERE day = current_date" \
      --path gs://archive/events.jsonl.gz --compression-detail level=9`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, config.DirectionTo)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.cfg.ValidateDatabase(); err != nil {
				return err
			}
			return s.runExport()
		},
	}
	addJobFlags(cmd, true)
	f := cmd.Flags()
	f.String("query", "", "Query whose rows are exported instead of a table")
	f.String("compression", "", "Output compression: none or gzip")
	f.String("compression-detail", "", "Compression level as N or level=N")
	f.Int("output-chunk-size", 0, "Compressed output chunk size in bytes")
	return cmd
}

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Decode a JSON Lines file without a database",
		Long: `Decode every line of a file against the given columns and report the row
count. Exits non-zero on the first malformed line.

Example:
  nebula-copy check --path data.jsonl.gz --column id:int8 --column payload:jsonb`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, config.DirectionFrom)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.cfg.Validate(); err != nil {
				return err
			}
			return s.runCheck()
		},
	}
	addJobFlags(cmd, false)
	return cmd
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config [file]",
		Short: "Print or save the effective job configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			direction := config.Direction(v.GetString("direction"))
			cfg, err := loadJob(v, direction)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return config.Save(args[0], cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode configuration")
			}
			return enc.Close()
		},
	}
	addJobFlags(cmd, true)
	cmd.Flags().String("direction", string(config.DirectionFrom), "Copy direction: from or to")
	cmd.Flags().String("query", "", "Query whose rows are exported instead of a table")
	return cmd
}

// session holds what a copy command sets up and tears down.
type session struct {
	ctx     context.Context
	stop    context.CancelFunc
	cmd     *cobra.Command
	v       *viper.Viper
	cfg     *config.CopyConfig
	log     *zap.Logger
	opener  *storage.Opener
	metrics *http.Server
	tracing bool
}

func newSession(cmd *cobra.Command, direction config.Direction) (*session, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := loadJob(v, direction)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
	}); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid logging configuration")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx = context.WithValue(ctx, logger.FormatKey, cfg.Format)
	if cfg.Table != "" {
		ctx = context.WithValue(ctx, logger.TableKey, cfg.Table)
	}

	s := &session{
		ctx:  ctx,
		stop: stop,
		cmd:  cmd,
		v:    v,
		cfg:  cfg,
		log:  logger.WithContext(ctx).With(zap.String("component", "nebula-copy-cli")),
		opener: storage.NewOpener(storage.Options{
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			PartSize:        cfg.Storage.PartSize,
			MaxConcurrency:  cfg.Storage.MaxConcurrency,
			CredentialsFile: cfg.Storage.CredentialsFile,
			Stdin:           cmd.InOrStdin(),
			Stdout:          cmd.OutOrStdout(),
			Logger:          logger.Get(),
		}),
	}

	if cfg.Observability.EnableTracing {
		tc := observability.DefaultTracingConfig()
		tc.ServiceVersion = version
		tc.Writer = cmd.ErrOrStderr()
		if err := observability.Initialize(ctx, tc); err != nil {
			s.close()
			return nil, err
		}
		s.tracing = true
	}

	if cfg.Observability.EnableMetrics {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		s.metrics = &http.Server{
			Addr:              cfg.Observability.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := s.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Warn("metrics endpoint failed", zap.Error(err))
			}
		}()
		s.log.Info("serving metrics", zap.String("addr", cfg.Observability.MetricsAddr))
	}

	return s, nil
}

func (s *session) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.metrics != nil {
		_ = s.metrics.Shutdown(shutdownCtx)
	}
	if s.tracing {
		if err := observability.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("failed to flush traces", zap.Error(err))
		}
	}
	if err := s.opener.Close(); err != nil {
		s.log.Warn("failed to close storage clients", zap.Error(err))
	}
	s.stop()
	_ = logger.Sync()
}

func (s *session) options() pipeline.Options {
	return pipeline.Options{
		Format:           s.cfg.Format,
		FormatOptions:    s.cfg.Options,
		Columns:          s.cfg.Columns,
		Buffers:          s.cfg.BufferSizes(),
		Strict:           s.v.GetBool("strict"),
		Logger:           s.log,
		ProgressInterval: 10 * time.Second,
	}
}

func (s *session) runImport() error {
	pool, err := pipeline.Connect(s.ctx, s.cfg.Database, s.log)
	if err != nil {
		return err
	}
	defer pool.Close()

	src, err := s.opener.OpenSource(s.ctx, s.cfg.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	res, err := pipeline.Import(s.ctx, pool, s.cfg.Table, src, s.options())
	if err != nil {
		return err
	}
	s.report("imported", res)
	return nil
}

func (s *session) runExport() error {
	pool, err := pipeline.Connect(s.ctx, s.cfg.Database, s.log)
	if err != nil {
		return err
	}
	defer pool.Close()

	query := s.cfg.Query
	if query == "" {
		query = pipeline.TableQuery(s.cfg.Table)
	}

	sink, err := s.opener.CreateSink(s.ctx, s.cfg.Path)
	if err != nil {
		return err
	}

	res, err := pipeline.Export(s.ctx, pool, query, sink, s.options())
	if err != nil {
		sink.Abort(err)
		return err
	}
	if err := sink.Close(); err != nil {
		return err
	}
	s.report("exported", res)
	return nil
}

func (s *session) runCheck() error {
	src, err := s.opener.OpenSource(s.ctx, s.cfg.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	res, err := pipeline.Check(s.ctx, src, s.options())
	if err != nil {
		return err
	}
	s.report("checked", res)
	if res.Truncated > 0 {
		fmt.Fprintf(s.summaryWriter(), "discarded %d bytes of an unterminated final line\n", res.Truncated)
	}
	return nil
}

// report prints a one-line summary. Exports to stdout keep it off the data.
func (s *session) report(verb string, res pipeline.Result) {
	fmt.Fprintf(s.summaryWriter(), "%s %d rows (%d bytes) in %s\n",
		verb, res.Rows, res.Bytes, res.Duration.Round(time.Millisecond))
}

func (s *session) summaryWriter() io.Writer {
	if s.cfg.Direction == config.DirectionTo {
		return s.cmd.ErrOrStderr()
	}
	return s.cmd.OutOrStdout()
}
