package duckdb

import "github.com/tinytelemetry/cfload/internal/model"

// Type aliases re-export model types so Store method signatures read
// naturally from callers that only import duckdb.
type LogRecord = model.LogRecord
type DimensionCount = model.DimensionCount
