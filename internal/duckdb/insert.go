package duckdb

import (
	"context"
	"fmt"
)

const insertSQL = `INSERT INTO cloudfront_logs (
	"date", "time", "timestamp", edge_location, sc_bytes, c_ip, cs_method, cs_host,
	cs_uri_stem, sc_status, cs_referer, cs_user_agent, cs_uri_query, cs_cookie,
	edge_result_type, edge_request_id, host_header, cs_protocol, cs_bytes, time_taken,
	x_forwarded_for, ssl_protocol, ssl_cipher, edge_response_result_type,
	cs_protocol_version, fle_status, fle_encrypted_fields, c_port, time_to_first_byte,
	edge_detailed_result_type, content_type, content_length, range_start, range_end
) VALUES (
	CAST(? AS DATE), CAST(? AS TIME), ?, ?, ?, ?, ?, ?,
	?, ?, ?, ?, ?, ?,
	?, ?, ?, ?, ?, ?,
	?, ?, ?, ?,
	?, ?, ?, ?, ?,
	?, ?, ?, ?, ?
)`

// InsertLogBatch writes records in a single transaction and commits it.
// Any failure rolls the whole batch back and is returned; no record of a
// failed batch is persisted.
func (s *Store) InsertLogBatch(records []*LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertBatchTx(context.Background(), records)
}

// insertBatchTx inserts records in a single transaction.
func (s *Store) insertBatchTx(ctx context.Context, records []*LogRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, rowValues(r)...); err != nil {
			return fmt.Errorf("record %d (request id %s): %w", i, r.EdgeRequestID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// rowValues returns the insert arguments in table column order.
func rowValues(r *LogRecord) []any {
	return []any{
		r.Date.Format("2006-01-02"),
		r.Time.Format("15:04:05"),
		r.Timestamp(),
		r.EdgeLocation,
		r.SCBytes,
		r.ClientIP,
		r.Method,
		r.Host,
		r.URIStem,
		r.Status,
		r.Referer,
		r.UserAgent,
		r.URIQuery,
		r.Cookie,
		r.EdgeResultType.String(),
		r.EdgeRequestID,
		r.HostHeader,
		r.Protocol,
		r.CSBytes,
		r.TimeTaken,
		r.ForwardedFor,
		r.SSLProtocol,
		r.SSLCipher,
		r.EdgeResponseResultType,
		r.ProtocolVersion,
		r.FLEStatus,
		r.FLEEncryptedFields,
		r.ClientPort,
		r.TimeToFirstByte,
		r.EdgeDetailedResultType,
		r.ContentType,
		r.ContentLength,
		r.RangeStart,
		r.RangeEnd,
	}
}
