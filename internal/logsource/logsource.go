// Package logsource turns a directory of compressed CloudFront log files into
// one ordered stream of raw lines.
package logsource

import (
	"errors"
	"fmt"

	"github.com/tinytelemetry/cfload/internal/model"
)

var (
	// ErrDirectoryNotFound is returned when the source directory does not exist.
	ErrDirectoryNotFound = errors.New("directory not found")
	// ErrIO classifies open, decompress and read failures.
	ErrIO = errors.New("log file i/o failure")
)

// LineSource is a forward-only sequence of raw lines.
type LineSource interface {
	Next() (model.Line, bool) // next line; false at end of stream or on error
	Err() error               // first error encountered, if any
	Close() error
}

// FileError carries the file and the number of lines already consumed from it.
type FileError struct {
	File string
	Line int
	Op   string // "open", "decompress", "read", "close"
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s at line %d: %v", e.Op, e.File, e.Line, e.Err)
}

func (e *FileError) Is(target error) bool { return target == ErrIO }

func (e *FileError) Unwrap() error { return e.Err }
