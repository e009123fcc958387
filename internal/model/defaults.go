package model

import "time"

// Shared defaults used by the loader and the query server.
const (
	DefaultBatchSize    = 1000
	DefaultExtension    = ".gz"
	DefaultMaxLineSize  = 1024 * 1024 // 1MB
	DefaultQueryTimeout = 30 * time.Second
	DefaultAPIAddr      = "127.0.0.1:3000"
)
