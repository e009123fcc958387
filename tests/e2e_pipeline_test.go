package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/tinytelemetry/cfload/internal/cloudfront"
	"github.com/tinytelemetry/cfload/internal/duckdb"
	"github.com/tinytelemetry/cfload/internal/httpserver"
	"github.com/tinytelemetry/cfload/internal/ingest"
	"github.com/tinytelemetry/cfload/internal/logsource"
	"github.com/tinytelemetry/cfload/internal/model"
)

const headerLines = "#Version: 1.0\n#Fields: date time x-edge-location sc-bytes c-ip cs-method cs(Host) cs-uri-stem sc-status cs(Referer) cs(User-Agent) cs-uri-query cs(Cookie) x-edge-result-type x-edge-request-id x-host-header cs-protocol cs-bytes time-taken x-forwarded-for ssl-protocol ssl-cipher x-edge-response-result-type cs-protocol-version fle-status fle-encrypted-fields c-port time-to-first-byte x-edge-detailed-result-type sc-content-type sc-content-len sc-range-start sc-range-end\n"

// cfLine builds a data line. Trailing optional fields are appended only
// when extended is set, mimicking log files written before they existed.
func cfLine(edge, uri, result, requestID string, extended bool) string {
	fields := []string{
		"2019-12-04", "21:02:31", edge, "392", "192.0.2.100", "GET",
		"d111111abcdef8.cloudfront.net", uri, "200", "-", "Mozilla/5.0", "-", "-",
		result, requestID, "d111111abcdef8.cloudfront.net", "https", "23", "0.001",
		"-", "TLSv1.2", "ECDHE-RSA-AES128-GCM-SHA256", result, "HTTP/2.0", "-", "-",
	}
	if extended {
		fields = append(fields, "11040", "0.001", result, "text/html", "78", "-", "-")
	}
	return strings.Join(fields, "\t")
}

func writeLogFile(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	body := headerLines
	for _, l := range lines {
		body += l + "\n"
	}
	if _, err := zw.Write([]byte(body)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

type countingStore struct {
	*duckdb.Store
	batches []int
}

func (s *countingStore) InsertLogBatch(records []*model.LogRecord) error {
	s.batches = append(s.batches, len(records))
	return s.Store.InsertLogBatch(records)
}

func runPipeline(t *testing.T, dir string, store model.RecordWriter, batchSize int) (ingest.Stats, error) {
	t.Helper()
	reader, err := logsource.Open(dir)
	if err != nil {
		return ingest.Stats{}, err
	}
	defer reader.Close()

	loader := ingest.NewBatchLoader(store, ingest.BatchLoaderConfig{BatchSize: batchSize})
	return ingest.Run(context.Background(), reader, loader, ingest.RunOptions{})
}

func newStore(t *testing.T) *duckdb.Store {
	t.Helper()
	store, err := duckdb.NewStore(filepath.Join(t.TempDir(), "cloudfront.duckdb"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestE2E_TwoFilesOneBatch(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, "E2.2019-12-04-21.a.gz",
		cfLine("LAX1", "/index.html", "Hit", "r1", true),
		cfLine("LAX1", "/a.png", "Miss", "r2", true),
	)
	writeLogFile(t, dir, "E2.2019-12-04-22.b.gz",
		cfLine("IAD89", "/index.html", "RefreshHit", "r3", false),
	)

	store := &countingStore{Store: newStore(t)}
	stats, err := runPipeline(t, dir, store, model.DefaultBatchSize)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	if len(store.batches) != 1 || store.batches[0] != 3 {
		t.Errorf("batches = %v, want one batch of 3", store.batches)
	}
	if stats.Files != 2 || stats.Lines != 3 || stats.Records != 3 {
		t.Errorf("stats = %+v", stats)
	}

	count, err := store.TotalLogCount(model.QueryOpts{})
	if err != nil {
		t.Fatalf("TotalLogCount: %v", err)
	}
	if count != 3 {
		t.Errorf("rows = %d, want 3", count)
	}

	var port, length int64
	row := store.DB().QueryRow(`SELECT c_port, content_length FROM cloudfront_logs WHERE edge_request_id = 'r3'`)
	if err := row.Scan(&port, &length); err != nil {
		t.Fatalf("scan r3: %v", err)
	}
	if port != model.MissingNumber || length != model.MissingNumber {
		t.Errorf("legacy line sentinels = %d, %d; want -1, -1", port, length)
	}
}

func TestE2E_BatchBoundaries(t *testing.T) {
	dir := t.TempDir()
	var lines []string
	for i := 0; i < 7; i++ {
		lines = append(lines, cfLine("LAX1", "/", "Hit", fmt.Sprintf("r%d", i), true))
	}
	writeLogFile(t, dir, "a.gz", lines[:4]...)
	writeLogFile(t, dir, "b.gz", lines[4:]...)

	store := &countingStore{Store: newStore(t)}
	if _, err := runPipeline(t, dir, store, 3); err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	want := []int{3, 3, 1}
	if fmt.Sprint(store.batches) != fmt.Sprint(want) {
		t.Errorf("batches = %v, want %v", store.batches, want)
	}
}

func TestE2E_BadResultTypeKeepsCommittedBatches(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, "a.gz",
		cfLine("LAX1", "/", "Hit", "r1", true),
		cfLine("LAX1", "/", "Hit", "r2", true),
		cfLine("LAX1", "/", "Hit", "r3", true),
		cfLine("LAX1", "/", "Teleported", "r4", true),
		cfLine("LAX1", "/", "Hit", "r5", true),
	)

	store := &countingStore{Store: newStore(t)}
	_, err := runPipeline(t, dir, store, 2)
	if !errors.Is(err, cloudfront.ErrMalformedRecord) {
		t.Fatalf("err = %v, want ErrMalformedRecord", err)
	}
	if !strings.Contains(err.Error(), "a.gz line 6") {
		t.Errorf("error %q should locate the bad line", err)
	}

	count, _ := store.TotalLogCount(model.QueryOpts{})
	if count != 2 {
		t.Errorf("rows = %d, want 2 (first batch only)", count)
	}
}

func TestE2E_MissingDirectory(t *testing.T) {
	store := &countingStore{Store: newStore(t)}
	_, err := runPipeline(t, filepath.Join(t.TempDir(), "nope"), store, 10)
	if !errors.Is(err, logsource.ErrDirectoryNotFound) {
		t.Fatalf("err = %v, want ErrDirectoryNotFound", err)
	}
	if len(store.batches) != 0 {
		t.Errorf("no batch should be written, got %v", store.batches)
	}
}

func TestE2E_LoadThenServe(t *testing.T) {
	dir := t.TempDir()
	writeLogFile(t, dir, "a.gz",
		cfLine("LAX1", "/index.html", "Hit", "r1", true),
		cfLine("LAX1", "/index.html", "Error", "r2", true),
		cfLine("IAD89", "/a.png", "Miss", "r3", true),
	)
	store := newStore(t)
	if _, err := runPipeline(t, dir, store, 2); err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	api := httpserver.NewServer("127.0.0.1:0", store)
	if err := api.Start(); err != nil {
		t.Fatalf("start api: %v", err)
	}
	defer api.Stop()

	resp, err := http.Get("http://" + api.Addr() + "/api/summary")
	if err != nil {
		t.Fatalf("GET summary: %v", err)
	}
	defer resp.Body.Close()

	var summary struct {
		Requests      int64            `json:"requests"`
		ResultTypes   map[string]int64 `json:"result_types"`
		EdgeLocations []struct {
			Value string `json:"value"`
			Count int64  `json:"count"`
		} `json:"edge_locations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Requests != 3 || summary.ResultTypes["Error"] != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.EdgeLocations) != 2 || summary.EdgeLocations[0].Value != "LAX1" {
		t.Errorf("edge locations = %+v", summary.EdgeLocations)
	}
}
