// Package metrics exposes load-run and database metrics to Prometheus.
//
// A load run is a short-lived batch job, so its metrics live in a private
// registry that is written to a node_exporter textfile or pushed to a
// Pushgateway when the run ends.
package metrics

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"
	"github.com/tinytelemetry/cfload/internal/ingest"
)

const jobName = "cfload"

// RunRecorder holds the metrics of a single load run.
type RunRecorder struct {
	reg *prometheus.Registry

	files    prometheus.Gauge
	lines    prometheus.Gauge
	records  prometheus.Gauge
	batches  prometheus.Gauge
	duration prometheus.Gauge
	success  prometheus.Gauge
	lastRun  prometheus.Gauge
}

// NewRunRecorder creates a recorder backed by its own registry.
func NewRunRecorder() *RunRecorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &RunRecorder{
		reg: reg,
		files: f.NewGauge(prometheus.GaugeOpts{
			Name: "cfload_last_run_files",
			Help: "Log files opened by the last run",
		}),
		lines: f.NewGauge(prometheus.GaugeOpts{
			Name: "cfload_last_run_lines",
			Help: "Data lines read by the last run",
		}),
		records: f.NewGauge(prometheus.GaugeOpts{
			Name: "cfload_last_run_records",
			Help: "Records committed to the database by the last run",
		}),
		batches: f.NewGauge(prometheus.GaugeOpts{
			Name: "cfload_last_run_batches",
			Help: "Batches committed by the last run",
		}),
		duration: f.NewGauge(prometheus.GaugeOpts{
			Name: "cfload_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		success: f.NewGauge(prometheus.GaugeOpts{
			Name: "cfload_run_success",
			Help: "1 if the last run loaded every file, 0 otherwise",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "cfload_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// Observe records the outcome of a run.
func (r *RunRecorder) Observe(stats ingest.Stats, runErr error) {
	r.files.Set(float64(stats.Files))
	r.lines.Set(float64(stats.Lines))
	r.records.Set(float64(stats.Records))
	r.batches.Set(float64(stats.Batches))
	r.duration.Set(stats.Duration.Seconds())
	if runErr == nil {
		r.success.Set(1)
	} else {
		r.success.Set(0)
	}
	r.lastRun.SetToCurrentTime()
}

// Gatherer exposes the run registry.
func (r *RunRecorder) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes the run metrics in text exposition format. The file
// is written next to path and renamed so scrapers never see a partial file.
func (r *RunRecorder) WriteTextfile(path string) error {
	mfs, err := r.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create metrics textfile: %w", err)
	}

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Push sends the run metrics to a Pushgateway, replacing the previous
// push for the cfload job.
func (r *RunRecorder) Push(url string) error {
	return push.New(url, jobName).Gatherer(r.reg).Push()
}
