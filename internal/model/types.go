package model

import "time"

// Sentinels for optional trailing fields absent from a log line.
const (
	MissingNumber = -1
	MissingString = "-"
)

// LogRecord is one parsed CloudFront access log line.
// Fields follow the order of the standard log file format:
// https://docs.aws.amazon.com/AmazonCloudFront/latest/DeveloperGuide/AccessLogs.html
//
// The first 26 fields are mandatory. The last 7 were appended to the format
// over time and take MissingNumber / MissingString when a line predates them.
type LogRecord struct {
	Date                   time.Time // date, UTC midnight
	Time                   time.Time // time, on 0000-01-01 UTC
	EdgeLocation           string    // x-edge-location
	SCBytes                int64     // sc-bytes
	ClientIP               string    // c-ip
	Method                 string    // cs-method
	Host                   string    // cs(Host)
	URIStem                string    // cs-uri-stem
	Status                 string    // sc-status
	Referer                string    // cs(Referer)
	UserAgent              string    // cs(User-Agent)
	URIQuery               string    // cs-uri-query
	Cookie                 string    // cs(Cookie)
	EdgeResultType         ResultType
	EdgeRequestID          string  // x-edge-request-id
	HostHeader             string  // x-host-header
	Protocol               string  // cs-protocol
	CSBytes                int64   // cs-bytes
	TimeTaken              float64 // time-taken, seconds
	ForwardedFor           string  // x-forwarded-for
	SSLProtocol            string  // ssl-protocol
	SSLCipher              string  // ssl-cipher
	EdgeResponseResultType string  // x-edge-response-result-type
	ProtocolVersion        string  // cs-protocol-version
	FLEStatus              string  // fle-status
	FLEEncryptedFields     string  // fle-encrypted-fields

	ClientPort             int64   // c-port
	TimeToFirstByte        float64 // time-to-first-byte
	EdgeDetailedResultType string  // x-edge-detailed-result-type
	ContentType            string  // sc-content-type
	ContentLength          int64   // sc-content-len
	RangeStart             string  // sc-range-start
	RangeEnd               string  // sc-range-end
}

// Timestamp combines Date and Time into a single UTC instant.
func (r *LogRecord) Timestamp() time.Time {
	return time.Date(
		r.Date.Year(), r.Date.Month(), r.Date.Day(),
		r.Time.Hour(), r.Time.Minute(), r.Time.Second(), r.Time.Nanosecond(),
		time.UTC,
	)
}

// Line is one raw line read from a log file, with its 1-based position.
type Line struct {
	File   string
	Number int
	Text   string
}

// DimensionCount represents grouped counts by a single dimension value
// (for example edge location or URI stem).
type DimensionCount struct {
	Value string
	Count int64
}
