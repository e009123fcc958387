package duckdb

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// dangerousKeywordPattern matches dangerous SQL keywords at word boundaries.
// This avoids false positives like "RESET" matching "SET".
// Used as defense-in-depth after comment stripping and semicolon rejection.
var dangerousKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET)\b`,
)

// blockCommentPattern matches C-style block comments (/* ... */).
var blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)

// maxQueryRows caps the rows returned by ExecuteQuery.
const maxQueryRows = 1000

// stripSQLComments removes -- line comments and /* */ block comments from a query.
func stripSQLComments(query string) string {
	cleaned := blockCommentPattern.ReplaceAllString(query, " ")
	var result strings.Builder
	for _, line := range strings.Split(cleaned, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		result.WriteString(line)
		result.WriteByte('\n')
	}
	return result.String()
}

// queryCtx returns a context with the store's configured query timeout.
func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// hostFilter returns a WHERE clause and args when opts.Host is non-empty.
func hostFilter(opts QueryOpts) (clause string, args []any) {
	if opts.Host != "" {
		return "WHERE cs_host = ?", []any{opts.Host}
	}
	return "", nil
}

// TotalLogCount returns the number of loaded log lines.
func (s *Store) TotalLogCount(opts QueryOpts) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	where, wArgs := hostFilter(opts)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM cloudfront_logs %s`, where)

	var count int64
	err := s.db.QueryRowContext(ctx, query, wArgs...).Scan(&count)
	return count, err
}

// ResultTypeCounts returns the number of requests per x-edge-result-type.
func (s *Store) ResultTypeCounts(opts QueryOpts) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	where, wArgs := hostFilter(opts)
	query := fmt.Sprintf(`SELECT edge_result_type, COUNT(*) FROM cloudfront_logs %s GROUP BY edge_result_type`, where)

	rows, err := s.db.QueryContext(ctx, query, wArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var resultType string
		var count int64
		if err := rows.Scan(&resultType, &count); err != nil {
			s.logger.Warn("duckdb scan error", zap.String("query", "ResultTypeCounts"), zap.Error(err))
			continue
		}
		result[resultType] = count
	}
	return result, rows.Err()
}

// TopURIStems returns the most requested URI stems.
func (s *Store) TopURIStems(limit int, opts QueryOpts) ([]DimensionCount, error) {
	return s.topDimension("cs_uri_stem", limit, opts)
}

// TopEdgeLocations returns edge locations by descending request count.
func (s *Store) TopEdgeLocations(limit int, opts QueryOpts) ([]DimensionCount, error) {
	return s.topDimension("edge_location", limit, opts)
}

// topDimension groups by column, which must be a trusted column name.
func (s *Store) topDimension(column string, limit int, opts QueryOpts) ([]DimensionCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	where, wArgs := hostFilter(opts)
	query := fmt.Sprintf(`
		SELECT COALESCE(NULLIF(%[1]s, ''), 'unknown') AS value, COUNT(*) AS count
		FROM cloudfront_logs %[2]s
		GROUP BY value
		ORDER BY count DESC, value ASC
		LIMIT ?`, column, where)

	args := append(wArgs, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DimensionCount
	for rows.Next() {
		var item DimensionCount
		if err := rows.Scan(&item.Value, &item.Count); err != nil {
			s.logger.Warn("duckdb scan error", zap.String("column", column), zap.Error(err))
			continue
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// ExecuteQuery runs a read-only SQL query and returns results as maps.
// Only SELECT/WITH read queries are allowed; DDL/DML is rejected.
func (s *Store) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	trimmed := strings.TrimSpace(query)

	// Reject semicolons to prevent statement chaining.
	if strings.Contains(trimmed, ";") {
		return nil, fmt.Errorf("query must not contain semicolons")
	}

	// Strip SQL comments so keywords hidden in comments are still caught.
	stripped := strings.TrimSpace(stripSQLComments(trimmed))
	upper := strings.ToUpper(stripped)

	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return nil, fmt.Errorf("only SELECT/WITH queries are allowed")
	}

	if match := dangerousKeywordPattern.FindString(stripped); match != "" {
		return nil, fmt.Errorf("query contains disallowed keyword: %s", strings.ToUpper(match))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() && len(results) < maxQueryRows {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			s.logger.Warn("duckdb scan error", zap.String("query", "ExecuteQuery"), zap.Error(err))
			continue
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

// GetSchemaDescription returns a human-readable description of the queryable tables.
func (s *Store) GetSchemaDescription() string {
	return `Table 'cloudfront_logs': one row per CloudFront access log line. ` +
		`date (DATE), time (TIME), timestamp (TIMESTAMP, UTC), edge_location, sc_bytes (BIGINT), ` +
		`c_ip, cs_method, cs_host, cs_uri_stem, sc_status, cs_referer, cs_user_agent, cs_uri_query, cs_cookie, ` +
		`edge_result_type (VARCHAR: Hit/RefreshHit/OriginShieldHit/Miss/LimitExceeded/CapacityExceeded/Error/Redirect), ` +
		`edge_request_id, host_header, cs_protocol, cs_bytes (BIGINT), time_taken (DOUBLE, seconds), ` +
		`x_forwarded_for, ssl_protocol, ssl_cipher, edge_response_result_type, cs_protocol_version, ` +
		`fle_status, fle_encrypted_fields, c_port (BIGINT, -1 = absent), time_to_first_byte (DOUBLE, -1 = absent), ` +
		`edge_detailed_result_type, content_type, content_length (BIGINT, -1 = absent), range_start, range_end ` +
		`('-' = absent). View 'cloudfront_daily': date, edge_location, requests, bytes_sent, bytes_received, ` +
		`errors, avg_time_taken.`
}

// TableRowCounts returns the row count for each known table using a hardcoded allowlist.
func (s *Store) TableRowCounts() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	allowedTables := []string{logsTable}
	counts := make(map[string]int64, len(allowedTables))

	for _, table := range allowedTables {
		var count int64
		// Table names are hardcoded constants, not user input.
		err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			return nil, err
		}
		counts[table] = count
	}
	return counts, nil
}
