// Package cloudfront parses CloudFront standard access log lines.
package cloudfront

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tinytelemetry/cfload/internal/model"
	"go.uber.org/zap"
)

const (
	// RequiredFields is the number of leading fields every line must carry.
	RequiredFields = 26
	// MaxFields is the number of fields the parser knows about; extra tokens are ignored.
	MaxFields = 33

	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// ErrMalformedRecord classifies every fatal parse failure.
var ErrMalformedRecord = errors.New("malformed record")

// ParseError describes which field of a line could not be parsed.
type ParseError struct {
	Field    string
	Position int // 1-based field position
	Value    string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("field %d (%s): missing", e.Position, e.Field)
	}
	return fmt.Sprintf("field %d (%s) %q: %v", e.Position, e.Field, e.Value, e.Err)
}

// Is reports ErrMalformedRecord so callers can classify without a type assertion.
func (e *ParseError) Is(target error) bool { return target == ErrMalformedRecord }

func (e *ParseError) Unwrap() error { return e.Err }

// Parser converts raw lines into records. The zero value is usable.
type Parser struct {
	logger *zap.Logger
}

// NewParser returns a parser that reports tolerated field defaults to logger.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// ParseRecord parses one line with a no-op logger.
func ParseRecord(line string) (*model.LogRecord, error) {
	return (&Parser{}).Parse(line)
}

// Parse converts one tab-delimited line into a LogRecord.
func (p *Parser) Parse(line string) (*model.LogRecord, error) {
	tk := tokenizer{fields: splitFields(line)}
	r := &model.LogRecord{}

	r.Date = tk.date("date")
	r.Time = tk.clock("time")
	r.EdgeLocation = tk.str("x-edge-location")
	r.SCBytes = tk.int("sc-bytes")
	r.ClientIP = tk.str("c-ip")
	r.Method = tk.str("cs-method")
	r.Host = tk.str("cs(Host)")
	r.URIStem = tk.str("cs-uri-stem")
	r.Status = tk.str("sc-status")
	r.Referer = tk.str("cs(Referer)")
	r.UserAgent = tk.str("cs(User-Agent)")
	r.URIQuery = tk.str("cs-uri-query")
	r.Cookie = tk.str("cs(Cookie)")
	r.EdgeResultType = tk.resultType("x-edge-result-type")
	r.EdgeRequestID = tk.str("x-edge-request-id")
	r.HostHeader = tk.str("x-host-header")
	r.Protocol = tk.str("cs-protocol")
	r.CSBytes = tk.int("cs-bytes")
	r.TimeTaken = tk.float("time-taken")
	r.ForwardedFor = tk.str("x-forwarded-for")
	r.SSLProtocol = tk.str("ssl-protocol")
	r.SSLCipher = tk.str("ssl-cipher")
	r.EdgeResponseResultType = tk.str("x-edge-response-result-type")
	r.ProtocolVersion = tk.str("cs-protocol-version")
	r.FLEStatus = tk.str("fle-status")
	r.FLEEncryptedFields = tk.str("fle-encrypted-fields")
	if tk.err != nil {
		return nil, tk.err
	}

	// Trailing fields: absence falls back to the sentinel.
	r.ClientPort = model.MissingNumber
	if tk.more() {
		r.ClientPort = tk.int("c-port")
	}
	r.TimeToFirstByte = model.MissingNumber
	if tk.more() {
		r.TimeToFirstByte = tk.float("time-to-first-byte")
	}
	if tk.err != nil {
		return nil, tk.err
	}
	r.EdgeDetailedResultType = tk.optStr()
	r.ContentType = tk.optStr()

	// sc-content-len sometimes carries a non-numeric placeholder; degrade
	// to the sentinel instead of failing.
	r.ContentLength = model.MissingNumber
	if tk.more() {
		raw := tk.next()
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			r.ContentLength = n
		} else if p.logger != nil {
			p.logger.Debug("content length not numeric, using default", zap.String("value", raw))
		}
	}

	r.RangeStart = tk.optStr()
	r.RangeEnd = tk.optStr()
	return r, nil
}

// tokenizer walks the fields of one line. After the first failure every
// accessor is a no-op and err holds the failure.
// splitFields tokenizes on tabs. A single trailing tab does not start
// another field, so optional fields after it keep their defaults.
func splitFields(line string) []string {
	f := strings.Split(strings.TrimSuffix(line, "\r"), "\t")
	if n := len(f); n > 0 && f[n-1] == "" {
		f = f[:n-1]
	}
	return f
}

type tokenizer struct {
	fields []string
	pos    int
	err    error
}

func (t *tokenizer) more() bool { return t.pos < len(t.fields) }

func (t *tokenizer) next() string {
	v := t.fields[t.pos]
	t.pos++
	return v
}

func (t *tokenizer) take(field string) (string, bool) {
	if t.err != nil {
		return "", false
	}
	if !t.more() {
		t.err = &ParseError{Field: field, Position: t.pos + 1}
		return "", false
	}
	return t.next(), true
}

func (t *tokenizer) fail(field, value string, err error) {
	t.err = &ParseError{Field: field, Position: t.pos, Value: value, Err: err}
}

func (t *tokenizer) str(field string) string {
	v, _ := t.take(field)
	return v
}

func (t *tokenizer) optStr() string {
	if !t.more() {
		return model.MissingString
	}
	return t.next()
}

func (t *tokenizer) int(field string) int64 {
	v, ok := t.take(field)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		t.fail(field, v, err)
		return 0
	}
	return n
}

func (t *tokenizer) float(field string) float64 {
	v, ok := t.take(field)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		t.fail(field, v, err)
		return 0
	}
	return f
}

func (t *tokenizer) date(field string) time.Time {
	v, ok := t.take(field)
	if !ok {
		return time.Time{}
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		t.fail(field, v, err)
		return time.Time{}
	}
	return d
}

func (t *tokenizer) clock(field string) time.Time {
	v, ok := t.take(field)
	if !ok {
		return time.Time{}
	}
	c, err := time.Parse(timeLayout, v)
	if err != nil {
		t.fail(field, v, err)
		return time.Time{}
	}
	return c
}

func (t *tokenizer) resultType(field string) model.ResultType {
	v, ok := t.take(field)
	if !ok {
		return 0
	}
	rt, err := model.ParseResultType(v)
	if err != nil {
		t.fail(field, v, err)
		return 0
	}
	return rt
}
