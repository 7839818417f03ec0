// Package audit persists one record per tool invocation to SQLite so an
// operator can reconstruct what the automation did on the platform and
// when. Recording is best-effort: a failed insert is logged and dropped,
// never surfaced to the request path.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/cartable/idgen"
	"github.com/hazyhaar/cartable/kit"
)

// Entry is one recorded tool invocation.
type Entry struct {
	EntryID   string    `json:"entry_id"`
	Timestamp time.Time `json:"timestamp"`
	Tool      string    `json:"tool"`
	Transport string    `json:"transport"`
	RequestID string    `json:"request_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail,omitempty"`
}

// SQLiteLogger writes invocation entries to an audit_log table.
type SQLiteLogger struct {
	db    *sql.DB
	newID idgen.Generator
	log   *slog.Logger
}

// Option configures a SQLiteLogger.
type Option func(*SQLiteLogger)

// WithIDGenerator sets a custom ID generator for entry IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *SQLiteLogger) { l.newID = gen }
}

// WithLogger sets the slog logger used for dropped-entry warnings.
func WithLogger(log *slog.Logger) Option {
	return func(l *SQLiteLogger) { l.log = log }
}

// NewSQLiteLogger creates an invocation logger over an open database.
func NewSQLiteLogger(db *sql.DB, opts ...Option) *SQLiteLogger {
	l := &SQLiteLogger{
		db:    db,
		newID: idgen.Prefixed("aud_", idgen.Default),
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Init creates the audit_log table if it does not exist.
func (l *SQLiteLogger) Init(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS audit_log (
		entry_id   TEXT PRIMARY KEY,
		timestamp  INTEGER NOT NULL,
		tool       TEXT NOT NULL,
		transport  TEXT NOT NULL DEFAULT 'mcp',
		request_id TEXT,
		session_id TEXT,
		success    INTEGER NOT NULL,
		detail     TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_ts ON audit_log(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_log_tool ON audit_log(tool)`)
	if err != nil {
		return fmt.Errorf("audit: init schema: %w", err)
	}
	return nil
}

// RecordInvocation implements the service's audit sink. Never fails the
// caller: an insert error is logged with the entry's identifying fields.
func (l *SQLiteLogger) RecordInvocation(ctx context.Context, tool string, success bool, detail string) {
	e := &Entry{
		EntryID:   l.newID(),
		Timestamp: time.Now(),
		Tool:      tool,
		Transport: kit.GetTransport(ctx),
		RequestID: kit.GetRequestID(ctx),
		SessionID: kit.GetSessionID(ctx),
		Success:   success,
		Detail:    detail,
	}
	if err := l.Log(ctx, e); err != nil {
		l.log.Warn("audit: entry dropped", "tool", tool, "success", success, "error", err)
	}
}

// Log inserts an entry synchronously.
func (l *SQLiteLogger) Log(ctx context.Context, e *Entry) error {
	if e.EntryID == "" {
		e.EntryID = l.newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Transport == "" {
		e.Transport = "mcp"
	}
	_, err := l.db.ExecContext(ctx, `INSERT INTO audit_log
		(entry_id, timestamp, tool, transport, request_id, session_id, success, detail)
		VALUES (?,?,?,?,?,?,?,?)`,
		e.EntryID, e.Timestamp.Unix(), e.Tool, e.Transport,
		e.RequestID, e.SessionID, boolToInt(e.Success), e.Detail)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first. A non-empty tool
// filters to that tool. Limit defaults to 50.
func (l *SQLiteLogger) Recent(ctx context.Context, tool string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT entry_id, timestamp, tool, transport, request_id, session_id, success, detail
		FROM audit_log`
	var args []any
	if tool != "" {
		q += " WHERE tool = ?"
		args = append(args, tool)
	}
	q += " ORDER BY timestamp DESC, entry_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var success int
		var requestID, sessionID, detail sql.NullString
		if err := rows.Scan(&e.EntryID, &ts, &e.Tool, &e.Transport,
			&requestID, &sessionID, &success, &detail); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		e.Success = success != 0
		e.RequestID = requestID.String
		e.SessionID = sessionID.String
		e.Detail = detail.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
