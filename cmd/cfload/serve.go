package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/tinytelemetry/cfload/internal/duckdb"
	"github.com/tinytelemetry/cfload/internal/httpserver"
	"github.com/tinytelemetry/cfload/internal/logging"
	"github.com/tinytelemetry/cfload/internal/metrics"
	"github.com/tinytelemetry/cfload/internal/model"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <database-file>",
		Short: "Serve a read-only HTTP API over a loaded database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runServe(cmd.Context(), cfg, args[0])
		},
	}
	cmd.Flags().String("api-addr", model.DefaultAPIAddr, "HTTP listen address")
	cmd.Flags().Duration("query-timeout", model.DefaultQueryTimeout, "timeout for each read query")
	return cmd
}

// runServe serves the HTTP API until SIGINT or SIGTERM.
func runServe(ctx context.Context, cfg appConfig, dbPath string) error {
	logger, closeLogger, err := logging.New(cfg.logging())
	if err != nil {
		return err
	}
	defer closeLogger() //nolint:errcheck

	store, err := duckdb.NewStore(dbPath, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()
	store.SetLogger(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewStoreCollector(store, logger),
	)

	apiServer := httpserver.NewServer(cfg.APIAddr, store,
		httpserver.WithGatherer(reg),
		httpserver.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		<-gctx.Done()
		logger.Info("shutting down http api")
		return apiServer.Stop()
	})

	return g.Wait()
}
