package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/tinytelemetry/cfload/internal/cloudfront"
	"github.com/tinytelemetry/cfload/internal/logsource"
	"go.uber.org/zap"
)

// RunOptions configures a load run.
type RunOptions struct {
	// Parser defaults to a cloudfront.Parser using Logger.
	Parser LineParser
	Logger *zap.Logger
}

// Stats summarizes a load run. Counts reflect progress up to the point
// where the run stopped, so they are meaningful on failure too.
type Stats struct {
	Files    int
	Lines    int64
	Records  int64
	Batches  int
	Duration time.Duration
}

// Run reads every line from src, parses it and adds the record to sink.
// The final partial batch is flushed only when the stream ends cleanly.
// The first read, parse, sink or context error stops the run; batches
// committed before it stay committed.
func Run(ctx context.Context, src logsource.LineSource, sink RecordSink, opts RunOptions) (Stats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := opts.Parser
	if parser == nil {
		parser = cloudfront.NewParser(logger)
	}

	start := time.Now()
	var stats Stats
	finish := func(err error) (Stats, error) {
		stats.Duration = time.Since(start)
		stats.Batches = sink.Batches()
		stats.Records = sink.Committed()
		if fc, ok := src.(fileCounter); ok {
			stats.Files = fc.FilesOpened()
		}
		return stats, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(fmt.Errorf("load aborted: %w", err))
		}
		line, ok := src.Next()
		if !ok {
			break
		}
		stats.Lines++

		record, err := parser.Parse(line.Text)
		if err != nil {
			return finish(fmt.Errorf("%s line %d: %w", line.File, line.Number, err))
		}
		if err := sink.Add(record); err != nil {
			return finish(err)
		}
	}

	if err := src.Err(); err != nil {
		return finish(err)
	}
	if err := sink.Flush(); err != nil {
		return finish(err)
	}
	return finish(nil)
}
