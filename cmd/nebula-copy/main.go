package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/nebula-copy/pkg/copyformat"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"

	// Register the built-in copy formats
	_ "github.com/ajitpratap0/nebula-copy/pkg/jsonlines"
)

var version = "0.1.0"

// envPrefix prefixes the environment variables that override flags, e.g.
// NEBULA_COPY_DSN or NEBULA_COPY_LOG_LEVEL.
const envPrefix = "NEBULA_COPY"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "nebula-copy",
		Short: "Stream JSON Lines files into and out of PostgreSQL",
		Long: `nebula-copy moves rows between PostgreSQL and line-delimited JSON files
on local disk, stdin/stdout, Amazon S3 or Google Cloud Storage. Files ending
in .gz are decompressed on the fly; exports can be gzip compressed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "Path to a YAML job file")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-encoding", "json", "Log encoding (json, console)")
	pf.Bool("enable-metrics", false, "Serve Prometheus metrics while the copy runs")
	pf.String("metrics-addr", ":9090", "Listen address of the metrics endpoint")
	pf.Bool("enable-tracing", false, "Export trace spans to stderr")

	root.AddCommand(
		newImportCommand(),
		newExportCommand(),
		newCheckCommand(),
		newConfigCommand(),
		newFormatsCommand(),
		newVersionCommand(),
	)
	return root
}

// newViper binds the flags of cmd, including inherited ones, and the
// NEBULA_COPY_* environment. Flag names map to keys unchanged; dashes
// become underscores in variable names.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to bind flags")
	}
	if err := v.BindPFlags(cmd.InheritedFlags()); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to bind flags")
	}
	return v, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "nebula-copy v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List available copy formats",
		Run: func(cmd *cobra.Command, args []string) {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tEXTENSIONS\tCAPABILITIES\tDESCRIPTION")
			for _, info := range copyformat.ListFormatInfo() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					info.Name,
					info.Version,
					strings.Join(info.Extensions, ","),
					strings.Join(info.Capabilities, ","),
					info.Description)
			}
			_ = w.Flush()
		},
	}
}

// exitCode maps an error to the process exit status: 2 for configuration
// errors, 3 for malformed data and 1 for everything else.
func exitCode(err error) int {
	switch {
	case errors.IsType(err, errors.ErrorTypeConfig):
		return 2
	case errors.IsType(err, errors.ErrorTypeData):
		return 3
	default:
		return 1
	}
}
