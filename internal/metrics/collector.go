package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tinytelemetry/cfload/internal/model"
	"go.uber.org/zap"
)

// StoreCollector reports loaded rows and result-type counts from the
// database at scrape time.
type StoreCollector struct {
	store  model.LogReader
	logger *zap.Logger

	rows        *prometheus.Desc
	resultTypes *prometheus.Desc
}

// NewStoreCollector creates a collector over the given store.
func NewStoreCollector(store model.LogReader, logger *zap.Logger) *StoreCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreCollector{
		store:  store,
		logger: logger,
		rows: prometheus.NewDesc(
			"cfload_table_rows",
			"Rows currently stored per table",
			[]string{"table"}, nil,
		),
		resultTypes: prometheus.NewDesc(
			"cfload_requests_by_result_type",
			"Loaded requests per x-edge-result-type",
			[]string{"result_type"}, nil,
		),
	}
}

func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rows
	ch <- c.resultTypes
}

func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	counts, err := c.store.TableRowCounts()
	if err != nil {
		c.logger.Warn("collect table row counts", zap.Error(err))
	}
	for table, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.rows, prometheus.GaugeValue, float64(n), table)
	}

	byType, err := c.store.ResultTypeCounts(model.QueryOpts{})
	if err != nil {
		c.logger.Warn("collect result type counts", zap.Error(err))
		return
	}
	for _, rt := range model.ResultTypes {
		name := rt.String()
		ch <- prometheus.MustNewConstMetric(c.resultTypes, prometheus.GaugeValue, float64(byType[name]), name)
	}
}
