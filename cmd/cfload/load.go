package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/tinytelemetry/cfload/internal/duckdb"
	"github.com/tinytelemetry/cfload/internal/ingest"
	"github.com/tinytelemetry/cfload/internal/logging"
	"github.com/tinytelemetry/cfload/internal/logsource"
	"github.com/tinytelemetry/cfload/internal/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// runLoad performs one load run and reports its outcome.
func runLoad(ctx context.Context, cfg appConfig, sourceDir, dbPath string, out io.Writer) error {
	logger, closeLogger, err := logging.New(cfg.logging())
	if err != nil {
		return err
	}
	defer closeLogger() //nolint:errcheck // nothing left to report to

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))
	logger.Info("load started",
		zap.String("source", sourceDir),
		zap.String("database", dbPath),
		zap.Int("batch_size", cfg.BatchSize),
	)

	stats, runErr := load(ctx, cfg, sourceDir, dbPath, logger)

	recorder := metrics.NewRunRecorder()
	recorder.Observe(stats, runErr)
	if cfg.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("failed to write metrics textfile", zap.String("path", cfg.MetricsFile), zap.Error(err))
		}
	}
	if cfg.PushgatewayURL != "" {
		if err := recorder.Push(cfg.PushgatewayURL); err != nil {
			logger.Warn("failed to push metrics", zap.String("url", cfg.PushgatewayURL), zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.Int("files", stats.Files),
		zap.Int64("lines", stats.Lines),
		zap.Int64("records", stats.Records),
		zap.Int("batches", stats.Batches),
		zap.Duration("duration", stats.Duration),
	}
	if runErr != nil {
		logger.Error("load failed", append(fields, zap.Error(runErr))...)
	} else {
		logger.Info("load finished", fields...)
	}

	printSummary(out, runSummary{
		RunID:    runID,
		Source:   sourceDir,
		Database: dbPath,
		Stats:    stats,
		Err:      runErr,
	})
	return runErr
}

// load enumerates the source before touching the database, so a missing
// directory leaves previously loaded rows in place.
func load(ctx context.Context, cfg appConfig, sourceDir, dbPath string, logger *zap.Logger) (stats ingest.Stats, err error) {
	reader, err := logsource.Open(sourceDir, logsource.Config{
		Extension:   cfg.Extension,
		MaxLineSize: cfg.MaxLineSize,
		Logger:      logger,
	})
	if err != nil {
		return stats, err
	}
	defer func() { err = multierr.Append(err, reader.Close()) }()
	logger.Debug("enumerated log files", zap.Strings("files", reader.Files()))

	store, err := duckdb.NewStore(dbPath, cfg.QueryTimeout)
	if err != nil {
		return stats, fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer func() { err = multierr.Append(err, store.Close()) }()
	store.SetLogger(logger)

	if applied := store.AppliedMigrations(); len(applied) > 0 {
		logger.Info("applied schema migrations", zap.Strings("migrations", applied))
	}
	if err := store.Reset(); err != nil {
		return stats, fmt.Errorf("reset cloudfront_logs: %w", err)
	}

	loader := ingest.NewBatchLoader(store, ingest.BatchLoaderConfig{
		BatchSize: cfg.BatchSize,
		Logger:    logger,
	})
	return ingest.Run(ctx, reader, loader, ingest.RunOptions{Logger: logger})
}
