package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/pariopipe/pkg/models"
)

// Tracker persists usage records across process restarts.
type Tracker interface {
	// Record stores a usage record. It returns once the insert is committed.
	Record(ctx context.Context, rec models.UsageRecord) error
	// Since returns records created at or after since, in insertion order.
	Since(ctx context.Context, since time.Time) ([]models.UsageRecord, error)
	// Summary aggregates records created at or after since by stage and model.
	Summary(ctx context.Context, since time.Time) ([]models.UsageSummary, error)
	// Prune deletes records created before cutoff and returns how many.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db   *sql.DB
	path string
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL UNIQUE,
	model TEXT NOT NULL,
	stage TEXT NOT NULL,
	operation TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost REAL NOT NULL,
	priced INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_time ON usage_records(created_at);
`

// New creates a SQLiteTracker at dbPath, creating the parent directory and
// running auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create tracker dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}
	// A single connection serializes writers within the process.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	if !columnExists(db, "usage_records", "priced") {
		if _, err := db.Exec(`ALTER TABLE usage_records ADD COLUMN priced INTEGER NOT NULL DEFAULT 1`); err != nil {
			db.Close()
			return nil, fmt.Errorf("add priced column: %w", err)
		}
	}

	return &SQLiteTracker{db: db, path: dbPath}, nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false
		}
		if name == column {
			return true
		}
	}
	return false
}

// Path returns the database file location.
func (t *SQLiteTracker) Path() string { return t.path }

// Record stores a usage record. Recording an ID that is already stored is
// a no-op.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.UsageRecord) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO usage_records (record_id, model, stage, operation, input_tokens, output_tokens, cost, priced, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(record_id) DO NOTHING`,
		rec.ID, rec.Model, rec.Stage, rec.Operation, rec.InputTokens, rec.OutputTokens, rec.Cost,
		boolToInt(rec.Priced), unixNanos(rec.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Since returns records created at or after since, oldest first.
func (t *SQLiteTracker) Since(ctx context.Context, since time.Time) ([]models.UsageRecord, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT record_id, model, stage, operation, input_tokens, output_tokens, cost, priced, created_at
		 FROM usage_records WHERE created_at >= ? ORDER BY id ASC`,
		unixNanos(since),
	)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		var priced int
		var created int64
		if err := rows.Scan(&r.ID, &r.Model, &r.Stage, &r.Operation, &r.InputTokens, &r.OutputTokens, &r.Cost, &priced, &created); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		r.Priced = priced != 0
		r.Timestamp = time.Unix(0, created).Local()
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summary returns usage grouped by stage and model.
func (t *SQLiteTracker) Summary(ctx context.Context, since time.Time) ([]models.UsageSummary, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT stage, model, COUNT(*), SUM(input_tokens), SUM(output_tokens), SUM(cost)
		 FROM usage_records WHERE created_at >= ?
		 GROUP BY stage, model ORDER BY stage, model`,
		unixNanos(since),
	)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var s models.UsageSummary
		if err := rows.Scan(&s.Stage, &s.Model, &s.Calls, &s.InputTokens, &s.OutputTokens, &s.Cost); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Prune deletes records created before cutoff.
func (t *SQLiteTracker) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := t.db.ExecContext(ctx,
		`DELETE FROM usage_records WHERE created_at < ?`, unixNanos(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune usage: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// unixNanos maps the zero time to 0 so "since the beginning" queries work.
func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
