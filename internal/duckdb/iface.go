package duckdb

import "github.com/tinytelemetry/cfload/internal/model"

type QueryOpts = model.QueryOpts
type LogQuerier = model.LogQuerier
type SchemaQuerier = model.SchemaQuerier
type RecordWriter = model.RecordWriter
type LogReader = model.LogReader

var (
	_ RecordWriter = (*Store)(nil)
	_ LogReader    = (*Store)(nil)
)
