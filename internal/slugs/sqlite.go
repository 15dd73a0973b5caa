package slugs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the candidate list and builder job records using
// SQLite via modernc.org/sqlite (pure Go).
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ Provider = (*SQLiteStore)(nil)
	_ Sink     = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (and if needed creates) the store at dbPath.
// Use ":memory:" for testing.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("slugs: open database: %w", err)
	}
	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("slugs: ping database: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS plugin_slugs (
			rank            INTEGER PRIMARY KEY,
			slug            TEXT NOT NULL UNIQUE,
			name            TEXT DEFAULT '',
			version         TEXT DEFAULT '',
			active_installs INTEGER DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS build_jobs (
			id         TEXT PRIMARY KEY,
			sort       TEXT NOT NULL,
			total      INTEGER NOT NULL,
			status     TEXT NOT NULL,
			collected  INTEGER DEFAULT 0,
			error      TEXT DEFAULT '',
			started_at TEXT DEFAULT CURRENT_TIMESTAMP,
			ended_at   TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_build_jobs_started_at ON build_jobs(started_at);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("slugs: create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Publish replaces the stored list with entries, keeping their order.
func (s *SQLiteStore) Publish(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("slugs: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM plugin_slugs`); err != nil {
		return fmt.Errorf("slugs: clear list: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO plugin_slugs (rank, slug, name, version, active_installs)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("slugs: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, i, e.Slug, e.Name, e.Version, e.ActiveInstalls); err != nil {
			return fmt.Errorf("slugs: insert %q: %w", e.Slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("slugs: commit list: %w", err)
	}
	return nil
}

// Slugs returns the stored list in rank order.
func (s *SQLiteStore) Slugs(ctx context.Context) ([]string, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return SlugsOf(entries), nil
}

// Entries returns the stored list with metadata in rank order.
func (s *SQLiteStore) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slug, name, version, active_installs FROM plugin_slugs ORDER BY rank`)
	if err != nil {
		return nil, fmt.Errorf("slugs: query list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Slug, &e.Name, &e.Version, &e.ActiveInstalls); err != nil {
			return nil, fmt.Errorf("slugs: scan list row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("slugs: iterate rows: %w", err)
	}
	return entries, nil
}

// JobRecord is the persisted view of a builder job.
type JobRecord struct {
	ID        string    `json:"id"`
	Sort      Sort      `json:"sort"`
	Total     int       `json:"total"`
	Status    JobStatus `json:"status"`
	Collected int       `json:"collected"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// SaveJob inserts or updates a job record.
func (s *SQLiteStore) SaveJob(ctx context.Context, rec JobRecord) error {
	var ended any
	if !rec.EndedAt.IsZero() {
		ended = rec.EndedAt.UTC().Format(time.RFC3339)
	}

	query := `
		INSERT INTO build_jobs (id, sort, total, status, collected, error, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status    = excluded.status,
			collected = excluded.collected,
			error     = excluded.error,
			ended_at  = excluded.ended_at
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		string(rec.Sort),
		rec.Total,
		string(rec.Status),
		rec.Collected,
		rec.Error,
		rec.StartedAt.UTC().Format(time.RFC3339),
		ended,
	)
	if err != nil {
		return fmt.Errorf("slugs: save job: %w", err)
	}
	return nil
}

// LoadJob returns the record with the given ID, or (nil, nil) if none.
func (s *SQLiteStore) LoadJob(ctx context.Context, id string) (*JobRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sort, total, status, collected, error, started_at, ended_at
		FROM build_jobs WHERE id = ?`, id)

	rec, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// ListJobs returns all job records, most recent first.
func (s *SQLiteStore) ListJobs(ctx context.Context) ([]JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sort, total, status, collected, error, started_at, ended_at
		FROM build_jobs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("slugs: list jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("slugs: iterate rows: %w", err)
	}
	return out, nil
}

// Cleanup removes job records started more than maxAge ago and returns how
// many were deleted.
func (s *SQLiteStore) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx, `DELETE FROM build_jobs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("slugs: cleanup jobs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("slugs: rows affected: %w", err)
	}
	return deleted, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*JobRecord, error) {
	var (
		rec       JobRecord
		sort      string
		status    string
		startedAt string
		endedAt   sql.NullString
	)
	if err := row.Scan(&rec.ID, &sort, &rec.Total, &status, &rec.Collected, &rec.Error, &startedAt, &endedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("slugs: scan job row: %w", err)
	}
	rec.Sort = Sort(sort)
	rec.Status = JobStatus(status)

	t, err := parseTimestamp(startedAt)
	if err != nil {
		return nil, err
	}
	rec.StartedAt = t
	if endedAt.Valid && endedAt.String != "" {
		t, err := parseTimestamp(endedAt.String)
		if err != nil {
			return nil, err
		}
		rec.EndedAt = t
	}
	return &rec, nil
}

func parseTimestamp(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		// Fall back to SQLite default format if RFC3339 fails.
		t, err = time.Parse("2006-01-02 15:04:05", v)
		if err != nil {
			return time.Time{}, fmt.Errorf("slugs: parse timestamp %q: %w", v, err)
		}
	}
	return t, nil
}
