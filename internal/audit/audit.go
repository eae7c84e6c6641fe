// Package audit is an optional, SQL-backed append-only log of leader-side
// mutations (key rotation, revocation, follower sync outcomes), kept
// alongside — never instead of — the authoritative JSON state files in
// internal/keystore, internal/revocation, and internal/config. A Sink with
// no backing database is simply never constructed; nothing else in this
// repository requires one.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// Dialect selects the SQL syntax a Sink targets. Placeholder style and the
// CREATE TABLE statement both differ between drivers.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// driverNames maps a Dialect to the database/sql driver name registered by
// its blank import above.
var driverNames = map[Dialect]string{
	DialectPostgres: "postgres",
	DialectMySQL:    "mysql",
}

// Open opens a database/sql connection for dialect using dsn and verifies it
// is reachable with a single ping. Callers own the returned *sql.DB's
// lifecycle (Close it on shutdown).
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	driver, ok := driverNames[dialect]
	if !ok {
		return nil, fmt.Errorf("audit: unsupported dialect %q", dialect)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: ping %s: %w", dialect, err)
	}
	return db, nil
}

// Record is one append-only audit log entry.
type Record struct {
	Timestamp time.Time
	EventType string // mirrors notifications.EventType's string values
	Subject   string // token id, key version, follower id
	Status    string // "success" or "failure"
	Reason    string
}

// Sink writes Records to a SQL table. The zero value is not usable;
// construct with New.
type Sink struct {
	db      *sql.DB
	dialect Dialect
}

// New constructs a Sink over an already-opened, already-pinged db.
func New(db *sql.DB, dialect Dialect) *Sink {
	return &Sink{db: db, dialect: dialect}
}

// EnsureSchema creates the audit_log table if it does not already exist.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	var stmt string
	switch s.dialect {
	case DialectPostgres:
		stmt = `CREATE TABLE IF NOT EXISTS audit_log (
			id SERIAL PRIMARY KEY,
			occurred_at TIMESTAMPTZ NOT NULL,
			event_type TEXT NOT NULL,
			subject TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT ''
		)`
	case DialectMySQL:
		stmt = `CREATE TABLE IF NOT EXISTS audit_log (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			occurred_at DATETIME NOT NULL,
			event_type VARCHAR(64) NOT NULL,
			subject VARCHAR(255) NOT NULL,
			status VARCHAR(16) NOT NULL,
			reason TEXT NOT NULL
		)`
	default:
		return fmt.Errorf("audit: unsupported dialect %q", s.dialect)
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("audit: ensure schema: %w", err)
	}
	return nil
}

// Record appends rec to the audit log. A failure here never rolls back or
// blocks the mutation it describes — audit logging is best-effort alongside
// the authoritative JSON state, not a transactional participant in it.
func (s *Sink) Record(ctx context.Context, rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	query := s.insertQuery()
	if _, err := s.db.ExecContext(ctx, query, rec.Timestamp, rec.EventType, rec.Subject, rec.Status, rec.Reason); err != nil {
		return fmt.Errorf("audit: record mutation: %w", err)
	}
	return nil
}

func (s *Sink) insertQuery() string {
	switch s.dialect {
	case DialectPostgres:
		return `INSERT INTO audit_log (occurred_at, event_type, subject, status, reason) VALUES ($1, $2, $3, $4, $5)`
	default:
		return `INSERT INTO audit_log (occurred_at, event_type, subject, status, reason) VALUES (?, ?, ?, ?, ?)`
	}
}

// Close releases the underlying database connection.
func (s *Sink) Close() error {
	return s.db.Close()
}
