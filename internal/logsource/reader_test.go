package logsource

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinytelemetry/cfload/internal/model"
)

var testHeader = []string{
	"#Version: 1.0",
	"#Fields: date time x-edge-location sc-bytes c-ip",
}

func gzipLines(t *testing.T, lines []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	for _, l := range lines {
		_, err := zw.Write([]byte(l + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeLogFile(t *testing.T, dir, name string, data ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	lines := append(append([]string{}, testHeader...), data...)
	require.NoError(t, os.WriteFile(path, gzipLines(t, lines), 0644))
	return path
}

func writeRaw(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func drain(t *testing.T, r *MultiFileReader) []model.Line {
	t.Helper()
	var out []model.Line
	for {
		line, ok := r.Next()
		if !ok {
			return out
		}
		out = append(out, line)
	}
}

func texts(lines []model.Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Text)
	}
	return out
}

func TestListFiles_MissingDirectory(t *testing.T) {
	_, err := ListFiles(filepath.Join(t.TempDir(), "nope"), ".gz")
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestListFiles_NotADirectory(t *testing.T) {
	path := writeRaw(t, t.TempDir(), "file.gz", []byte("x"))
	_, err := ListFiles(path, ".gz")
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestListFiles_FiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "E2.2019-12-05-10.b.gz", nil)
	writeRaw(t, dir, "E2.2019-12-04-21.a.gz", nil)
	writeRaw(t, dir, "notes.txt", nil)
	writeRaw(t, dir, "E2.2019-12-04-21.a.gz.part", nil)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.gz"), 0755))

	files, err := ListFiles(dir, ".gz")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "E2.2019-12-04-21.a.gz"),
		filepath.Join(dir, "E2.2019-12-05-10.b.gz"),
	}, files)
}

func TestReader_ConcatenatesInFileOrder(t *testing.T) {
	dir := t.TempDir()
	b := writeLogFile(t, dir, "b.gz", "b-1")
	a := writeLogFile(t, dir, "a.gz", "a-1", "a-2")

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	lines := drain(t, r)
	require.NoError(t, r.Err())
	assert.Equal(t, []model.Line{
		{File: a, Number: 3, Text: "a-1"},
		{File: a, Number: 4, Text: "a-2"},
		{File: b, Number: 3, Text: "b-1"},
	}, lines)
	assert.Equal(t, 2, r.FilesOpened())
	assert.Equal(t, []string{a, b}, r.Files())
}

func TestReader_HeaderOnlyAndShortFiles(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "1-empty.gz", gzipLines(t, nil))
	writeRaw(t, dir, "2-one-line.gz", gzipLines(t, testHeader[:1]))
	writeLogFile(t, dir, "3-header-only.gz")
	writeLogFile(t, dir, "4-data.gz", "only")
	writeLogFile(t, dir, "5-header-only.gz")

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"only"}, texts(drain(t, r)))
	assert.NoError(t, r.Err())
}

func TestReader_EmptyDirectory(t *testing.T) {
	r, err := Open(t.TempDir())
	require.NoError(t, err)
	defer r.Close()

	_, ok := r.Peek()
	assert.False(t, ok)
	_, ok = r.Next()
	assert.False(t, ok)
	assert.NoError(t, r.Err())
}

func TestReader_PeekDoesNotConsume(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, "a.gz", "first", "second")

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	p1, ok := r.Peek()
	require.True(t, ok)
	p2, _ := r.Peek()
	assert.Equal(t, p1, p2)

	n, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, p1, n)

	p3, ok := r.Peek()
	require.True(t, ok)
	assert.Equal(t, "second", p3.Text)
}

func TestReader_CustomExtension(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, "a.gz", "ignored")
	writeRaw(t, dir, "b.log.gzip", gzipLines(t, append(append([]string{}, testHeader...), "picked")))

	r, err := Open(dir, Config{Extension: ".gzip"})
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, []string{"picked"}, texts(drain(t, r)))
}

func TestReader_MultiMemberGzip(t *testing.T) {
	dir := t.TempDir()
	content := append(gzipLines(t, append(append([]string{}, testHeader...), "one")), gzipLines(t, []string{"two"})...)
	writeRaw(t, dir, "a.gz", content)

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, []string{"one", "two"}, texts(drain(t, r)))
}

func TestOpen_FirstFileNotGzip(t *testing.T) {
	dir := t.TempDir()
	path := writeRaw(t, dir, "a.gz", []byte("plain text, not gzip\n"))

	_, err := Open(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)

	var ferr *FileError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, path, ferr.File)
	assert.Equal(t, "decompress", ferr.Op)
}

func TestReader_FailureInLaterFile(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, "a.gz", "a-1", "a-2")
	bad := writeRaw(t, dir, "b.gz", []byte("garbage"))
	writeLogFile(t, dir, "c.gz", "never")

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"a-1", "a-2"}, texts(drain(t, r)))
	err = r.Err()
	require.Error(t, err)

	var ferr *FileError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, bad, ferr.File)

	_, ok := r.Next()
	assert.False(t, ok, "reader must not continue past a failed file")
}

func TestReader_TruncatedGzipReportsLine(t *testing.T) {
	dir := t.TempDir()
	full := gzipLines(t, append(append([]string{}, testHeader...), strings.Repeat("x", 4096), "tail"))
	path := writeRaw(t, dir, "a.gz", full[:len(full)-12])

	r, err := Open(dir)
	if err == nil {
		drain(t, r)
		err = r.Err()
		_ = r.Close()
	}
	require.Error(t, err)

	var ferr *FileError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, path, ferr.File)
	assert.GreaterOrEqual(t, ferr.Line, 0)
}

func TestReader_LineTooLong(t *testing.T) {
	dir := t.TempDir()
	path := writeLogFile(t, dir, "a.gz", "short", strings.Repeat("y", 512))

	r, err := Open(dir, Config{MaxLineSize: 128})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"short"}, texts(drain(t, r)))

	var ferr *FileError
	require.ErrorAs(t, r.Err(), &ferr)
	assert.Equal(t, path, ferr.File)
	assert.Equal(t, 3, ferr.Line)
	assert.Equal(t, "read", ferr.Op)
}

func TestReader_CloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, "a.gz", "a-1", "a-2")

	r, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, ok := r.Next()
	assert.False(t, ok)
}

func TestReader_All(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, "a.gz", "a-1")
	writeLogFile(t, dir, "b.gz", "b-1", "b-2")

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	var got []string
	for line, err := range r.All() {
		require.NoError(t, err)
		got = append(got, line.Text)
	}
	assert.Equal(t, []string{"a-1", "b-1", "b-2"}, got)
}

func TestReader_AllYieldsError(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, "a.gz", "a-1")
	writeRaw(t, dir, "b.gz", []byte("garbage"))

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	var lastErr error
	count := 0
	for _, err := range r.All() {
		if err != nil {
			lastErr = err
			continue
		}
		count++
	}
	assert.Equal(t, 1, count)
	assert.True(t, errors.Is(lastErr, ErrIO))
}
