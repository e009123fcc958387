package logsource

import (
	"bufio"
	"errors"
	"iter"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/tinytelemetry/cfload/internal/model"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// HeaderLines is the number of leading lines of every log file that hold
// the #Version / #Fields header and never carry data.
const HeaderLines = 2

// Config holds tunable parameters for the reader.
type Config struct {
	Extension   string
	MaxLineSize int
	Logger      *zap.Logger
}

// fileCursor is the currently open file. line counts every line consumed
// from it, header lines included.
type fileCursor struct {
	path    string
	file    *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner
	line    int
}

// MultiFileReader presents a list of gzip log files as one forward-only
// sequence of data lines. It keeps one line of lookahead so that the end of
// the sequence is known before the caller consumes the current line.
// Only one file is open at a time. It is not safe for concurrent use.
type MultiFileReader struct {
	files       []string
	next        int // index of the next file to open
	cur         *fileCursor
	ahead       model.Line
	hasAhead    bool
	err         error
	closed      bool
	maxLineSize int
	logger      *zap.Logger
}

var _ LineSource = (*MultiFileReader)(nil)

// Open enumerates dir and returns a reader positioned before the first data
// line. It fails with ErrDirectoryNotFound when dir does not exist and with
// a *FileError when the first file cannot be read.
func Open(dir string, conf ...Config) (*MultiFileReader, error) {
	ext := model.DefaultExtension
	if len(conf) > 0 && conf[0].Extension != "" {
		ext = conf[0].Extension
	}
	files, err := ListFiles(dir, ext)
	if err != nil {
		return nil, err
	}

	r := NewReader(files, conf...)
	if err := r.Err(); err != nil {
		return nil, multierr.Append(err, r.Close())
	}
	return r, nil
}

// NewReader returns a reader over files in the given order and primes the
// lookahead. A failure while priming is reported by Err.
func NewReader(files []string, conf ...Config) *MultiFileReader {
	maxLineSize := model.DefaultMaxLineSize
	logger := zap.NewNop()
	if len(conf) > 0 {
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
		if conf[0].Logger != nil {
			logger = conf[0].Logger
		}
	}

	r := &MultiFileReader{
		files:       append([]string(nil), files...),
		maxLineSize: maxLineSize,
		logger:      logger,
	}
	r.logger.Info("log files to parse", zap.Int("files", len(files)))
	r.fill()
	return r
}

// Files returns the enumerated file list in read order.
func (r *MultiFileReader) Files() []string {
	return append([]string(nil), r.files...)
}

// FilesOpened returns how many files have been opened so far.
func (r *MultiFileReader) FilesOpened() int { return r.next }

// Peek returns the next line without consuming it.
func (r *MultiFileReader) Peek() (model.Line, bool) {
	return r.ahead, r.hasAhead
}

// Next consumes and returns the next line. It returns false once the last
// file is drained or a failure occurred; check Err to tell them apart.
func (r *MultiFileReader) Next() (model.Line, bool) {
	if !r.hasAhead {
		return model.Line{}, false
	}
	line := r.ahead
	r.fill()
	return line, true
}

// Err returns the first failure, if any.
func (r *MultiFileReader) Err() error { return r.err }

// All returns the remaining lines as an iterator. A failure is yielded once
// as the final element.
func (r *MultiFileReader) All() iter.Seq2[model.Line, error] {
	return func(yield func(model.Line, error) bool) {
		for {
			line, ok := r.Next()
			if !ok {
				if err := r.Err(); err != nil {
					yield(model.Line{}, err)
				}
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

// Close releases the open file, if any. It is safe to call more than once.
func (r *MultiFileReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.hasAhead = false
	r.next = len(r.files)
	return r.closeCurrent()
}

// fill reads the next data line into the lookahead, moving across files
// and skipping files that hold nothing past their header.
func (r *MultiFileReader) fill() {
	r.hasAhead = false
	r.ahead = model.Line{}
	for r.err == nil && !r.closed {
		if r.cur == nil {
			if r.next >= len(r.files) {
				return
			}
			if err := r.openNext(); err != nil {
				r.err = err
				return
			}
			continue
		}

		if r.cur.scanner.Scan() {
			r.cur.line++
			r.ahead = model.Line{File: r.cur.path, Number: r.cur.line, Text: r.cur.scanner.Text()}
			r.hasAhead = true
			return
		}
		if err := r.cur.scanner.Err(); err != nil {
			r.err = r.fileError(readOp(err), err)
			_ = r.closeCurrent()
			return
		}
		if err := r.closeCurrent(); err != nil {
			r.err = err
			return
		}
	}
}

func (r *MultiFileReader) openNext() error {
	index := r.next
	path := r.files[index]
	r.next++

	f, err := os.Open(path)
	if err != nil {
		return &FileError{File: path, Op: "open", Err: err}
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return &FileError{File: path, Op: "decompress", Err: err}
	}

	initial := 64 * 1024
	if initial > r.maxLineSize {
		initial = r.maxLineSize
	}
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, initial), r.maxLineSize)
	r.cur = &fileCursor{path: path, file: f, gz: gz, scanner: scanner}

	r.logger.Info("reading next file",
		zap.String("file", filepath.Base(path)),
		zap.Int("index", index),
		zap.Int("total", len(r.files)),
	)

	for i := 0; i < HeaderLines && scanner.Scan(); i++ {
		r.cur.line++
		r.logger.Debug("skipping header line",
			zap.String("file", filepath.Base(path)),
			zap.String("header", scanner.Text()),
		)
	}
	if err := scanner.Err(); err != nil {
		ferr := r.fileError(readOp(err), err)
		_ = r.closeCurrent()
		return ferr
	}
	return nil
}

func (r *MultiFileReader) closeCurrent() error {
	cur := r.cur
	if cur == nil {
		return nil
	}
	r.cur = nil
	if err := multierr.Append(cur.gz.Close(), cur.file.Close()); err != nil {
		return &FileError{File: cur.path, Line: cur.line, Op: "close", Err: err}
	}
	return nil
}

func (r *MultiFileReader) fileError(op string, err error) *FileError {
	return &FileError{File: r.cur.path, Line: r.cur.line, Op: op, Err: err}
}

func readOp(err error) string {
	if errors.Is(err, gzip.ErrChecksum) || errors.Is(err, gzip.ErrHeader) {
		return "decompress"
	}
	return "read"
}
