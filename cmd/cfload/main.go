package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/tinytelemetry/cfload/internal/model"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = runtime.Version()
)

// errUsage marks a command line that is missing required arguments.
var errUsage = errors.New("usage")

func main() {
	// SIGINT aborts a load like any other fatal condition.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionText() string {
	return fmt.Sprintf("cfload - CloudFront Log Loader\n"+
		"  Version:    %s\n"+
		"  Commit:     %s\n"+
		"  Built:      %s\n"+
		"  Go version: %s\n", version, commit, buildTime, goVersion)
}

func newRootCmd() *cobra.Command {
	var configPath string
	var printConfig bool

	root := &cobra.Command{
		Use:   "cfload [flags] <source-dir> <database-file>",
		Short: "Load gzip-compressed CloudFront access logs into DuckDB",
		Long: `cfload reads every CloudFront access log file in a directory, in name order,
and loads the records into the cloudfront_logs table of a DuckDB database.
The table is emptied before loading. Records are committed in batches.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if printConfig || len(args) >= 2 {
				return nil
			}
			return fmt.Errorf("%w: %s", errUsage, cmd.UseLine())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if printConfig {
				return writeConfig(cmd.OutOrStdout(), cfg)
			}
			return runLoad(cmd.Context(), cfg, args[0], args[1], cmd.OutOrStdout())
		},
	}
	root.SetVersionTemplate(versionText())

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/cfload/config.yml)")
	pf.String("log-level", defaultLogLevel, "log level: debug, info, warn, error")
	pf.String("log-file", "", "write logs to this file with rotation instead of stderr")

	f := root.Flags()
	f.Int("batch-size", model.DefaultBatchSize, "records per committed batch")
	f.String("extension", model.DefaultExtension, "file name suffix of log files to load")
	f.Int("max-line-size", model.DefaultMaxLineSize, "longest accepted log line in bytes")
	f.String("metrics-file", "", "write run metrics to this node_exporter textfile")
	f.String("pushgateway-url", "", "push run metrics to this Prometheus Pushgateway")
	f.BoolVar(&printConfig, "print-config", false, "print the effective configuration as YAML and exit")

	root.AddCommand(newServeCmd(&configPath))
	return root
}
