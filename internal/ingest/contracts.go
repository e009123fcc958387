package ingest

import (
	"errors"

	"github.com/tinytelemetry/cfload/internal/model"
)

// ErrSink classifies failures reported by the record writer. Errors
// returned after a failed flush match it via errors.Is.
var ErrSink = errors.New("sink write failed")

// RecordSink accepts parsed records and commits them in batches.
type RecordSink interface {
	Add(record *model.LogRecord) error
	Flush() error
	// Batches and Committed report what has been written so far.
	Batches() int
	Committed() int64
}

// LineParser turns one raw log line into a record.
type LineParser interface {
	Parse(line string) (*model.LogRecord, error)
}

// fileCounter is implemented by sources that know how many files they opened.
type fileCounter interface {
	FilesOpened() int
}
