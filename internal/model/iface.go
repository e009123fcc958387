package model

// QueryOpts holds optional filters applied to most queries.
type QueryOpts struct {
	Host string // cs(Host); empty = all hosts
}

// LogQuerier provides read-only queries on loaded access logs.
type LogQuerier interface {
	TotalLogCount(opts QueryOpts) (int64, error)
	ResultTypeCounts(opts QueryOpts) (map[string]int64, error)
	TopURIStems(limit int, opts QueryOpts) ([]DimensionCount, error)
	TopEdgeLocations(limit int, opts QueryOpts) ([]DimensionCount, error)
}

// SchemaQuerier provides schema introspection and arbitrary read-only queries.
type SchemaQuerier interface {
	ExecuteQuery(query string) ([]map[string]interface{}, error)
	GetSchemaDescription() string
	TableRowCounts() (map[string]int64, error)
}

// RecordWriter persists one batch of records. A nil error means the batch
// was written and committed as a unit.
type RecordWriter interface {
	InsertLogBatch(records []*LogRecord) error
}

// LogReader provides the unified read-side query contract.
type LogReader interface {
	LogQuerier
	SchemaQuerier
}
