package ingest

import (
	"fmt"

	"github.com/tinytelemetry/cfload/internal/model"
	"go.uber.org/zap"
)

// BatchLoaderConfig holds tunable parameters for the batch loader.
type BatchLoaderConfig struct {
	BatchSize int
	Logger    *zap.Logger
}

// BatchLoader buffers records and writes them to the writer in batches of
// BatchSize. Each batch is a single InsertLogBatch call, so a batch is
// either fully committed or not written at all.
//
// A BatchLoader is not safe for concurrent use.
type BatchLoader struct {
	writer   model.RecordWriter
	pending  []*model.LogRecord
	maxBatch int
	logger   *zap.Logger

	batches int
	records int64
	err     error
}

var _ RecordSink = (*BatchLoader)(nil)

// NewBatchLoader creates a loader that flushes to writer.
func NewBatchLoader(writer model.RecordWriter, conf ...BatchLoaderConfig) *BatchLoader {
	batchSize := model.DefaultBatchSize
	logger := zap.NewNop()
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		if conf[0].Logger != nil {
			logger = conf[0].Logger
		}
	}

	return &BatchLoader{
		writer:   writer,
		pending:  make([]*model.LogRecord, 0, batchSize),
		maxBatch: batchSize,
		logger:   logger,
	}
}

// Add appends a record and flushes once the buffer holds BatchSize records.
// After a failed flush every call returns the same error.
func (b *BatchLoader) Add(record *model.LogRecord) error {
	if b.err != nil {
		return b.err
	}
	b.pending = append(b.pending, record)
	if len(b.pending) < b.maxBatch {
		return nil
	}
	return b.flush()
}

// Flush writes the partial buffer. It does nothing when the buffer is empty.
func (b *BatchLoader) Flush() error {
	if b.err != nil {
		return b.err
	}
	if len(b.pending) == 0 {
		return nil
	}
	return b.flush()
}

func (b *BatchLoader) flush() error {
	batch := b.pending
	b.pending = make([]*model.LogRecord, 0, b.maxBatch)
	n := b.batches + 1

	b.logger.Info("executing batch", zap.Int("batch", n), zap.Int("records", len(batch)))
	if err := b.writer.InsertLogBatch(batch); err != nil {
		b.err = fmt.Errorf("%w: batch %d: %w", ErrSink, n, err)
		b.logger.Error("batch failed", zap.Int("batch", n), zap.Error(err))
		return b.err
	}

	b.batches = n
	b.records += int64(len(batch))
	b.logger.Info("done executing batch",
		zap.Int("batch", n),
		zap.Int64("records_committed", b.records),
	)
	return nil
}

// Batches returns the number of committed batches.
func (b *BatchLoader) Batches() int { return b.batches }

// Committed returns the number of records in committed batches.
func (b *BatchLoader) Committed() int64 { return b.records }

// Pending returns the number of buffered, uncommitted records.
func (b *BatchLoader) Pending() int { return len(b.pending) }

// Err returns the sticky writer error, if any.
func (b *BatchLoader) Err() error { return b.err }
