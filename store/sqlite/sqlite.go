/*
Package sqlite provides the SQLite-backed webhook delivery log.

PURPOSE:
  Records one row per agreement submission attempt so operators can see what
  was sent where and how it went. Only attempt metadata is stored: the
  agreement body itself is never persisted.

INTERFACES IMPLEMENTED:
  webhook.DeliveryRecorder: RecordDelivery

KEY TABLES:
  deliveries: Append-only log of submission attempts

INDEXES:
  - idx_deliveries_attempted_at: Recent-first listing (GET /api/deliveries)
  - idx_deliveries_session:      Per-session history

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single connection so that
  ":memory:" databases are shared by every query.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block the
  writer.

USAGE:
  store, err := sqlite.New("./data/deliveries.db")
  if err != nil {
      return err
  }
  defer store.Close()

  submitter.Recorder = store

SEE ALSO:
  - webhook/submitter.go: Produces Delivery records
  - api/handlers.go: ListDeliveries endpoint
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/settlement-quoter/webhook"
)

// DefaultListLimit caps ListDeliveries when the caller passes no limit.
const DefaultListLimit = 50

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements webhook.DeliveryRecorder using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database, used by /healthz.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Delivery attempts (append-only)
	CREATE TABLE IF NOT EXISTS deliveries (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		target_host TEXT,
		status_code INTEGER,
		outcome TEXT NOT NULL,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		attempted_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deliveries_attempted_at
		ON deliveries(attempted_at DESC);
	CREATE INDEX IF NOT EXISTS idx_deliveries_session
		ON deliveries(session_id, attempted_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DELIVERY LOG
// =============================================================================

// RecordDelivery appends one attempt.
func (s *Store) RecordDelivery(ctx context.Context, d webhook.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO deliveries (id, session_id, target_host, status_code, outcome, error, duration_ms, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.SessionID, nullString(d.TargetHost), nullInt(d.StatusCode),
		d.Outcome, nullString(d.Error), d.Duration.Milliseconds(),
		d.AttemptedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record delivery %s: %w", d.ID, err)
	}
	return nil
}

// ListDeliveries returns the most recent attempts, newest first.
func (s *Store) ListDeliveries(ctx context.Context, limit int) ([]webhook.Delivery, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.queryDeliveries(ctx, `
		SELECT id, session_id, target_host, status_code, outcome, error, duration_ms, attempted_at
		FROM deliveries
		ORDER BY attempted_at DESC
		LIMIT ?
	`, limit)
}

// ListSessionDeliveries returns the attempts of one session, oldest first.
func (s *Store) ListSessionDeliveries(ctx context.Context, sessionID string) ([]webhook.Delivery, error) {
	return s.queryDeliveries(ctx, `
		SELECT id, session_id, target_host, status_code, outcome, error, duration_ms, attempted_at
		FROM deliveries
		WHERE session_id = ?
		ORDER BY attempted_at ASC
	`, sessionID)
}

func (s *Store) queryDeliveries(ctx context.Context, query string, args ...any) ([]webhook.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []webhook.Delivery
	for rows.Next() {
		var d webhook.Delivery
		var targetHost, errText sql.NullString
		var statusCode sql.NullInt64
		var durationMs int64
		var attemptedAt string
		if err := rows.Scan(
			&d.ID, &d.SessionID, &targetHost, &statusCode, &d.Outcome, &errText, &durationMs, &attemptedAt,
		); err != nil {
			return nil, err
		}

		d.TargetHost = targetHost.String
		d.StatusCode = int(statusCode.Int64)
		d.Error = errText.String
		d.Duration = time.Duration(durationMs) * time.Millisecond
		if d.AttemptedAt, err = time.Parse(timeLayout, attemptedAt); err != nil {
			return nil, fmt.Errorf("delivery %s: bad attempted_at %q: %w", d.ID, attemptedAt, err)
		}

		deliveries = append(deliveries, d)
	}

	return deliveries, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}
