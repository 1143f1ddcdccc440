// Package matchlog persists a history of spam detections backed by
// SQLite, so operators can audit what was removed and why after the
// fact.
package matchlog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the
// schema changes; old databases must be deleted after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by an
// incompatible version.
var ErrSchemaMismatch = errors.New("matchlog schema version mismatch")

// Detection is one recorded spam hit.
type Detection struct {
	ID         int64
	EntryID    string
	Distance   int
	Poster     string
	Channel    string
	Guild      string
	MessageID  string
	DetectedAt time.Time
}

// Store manages detection history persistence.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the detection log database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open matchlog db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the database to reset)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Record appends a detection. A zero DetectedAt is filled with the
// current time.
func (s *Store) Record(ctx context.Context, d Detection) error {
	if d.DetectedAt.IsZero() {
		d.DetectedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO detections (entry_id, distance, poster, channel, guild, message_id, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.EntryID, d.Distance, d.Poster, d.Channel, d.Guild, d.MessageID,
		d.DetectedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record detection: %w", err)
	}
	return nil
}

// Recent returns the newest detections, most recent first. A limit of
// zero or less defaults to 50.
func (s *Store) Recent(ctx context.Context, limit int) ([]Detection, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entry_id, distance, poster, channel, guild, message_id, detected_at
		 FROM detections ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var out []Detection
	for rows.Next() {
		d, err := scanDetection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detections: %w", err)
	}
	return out, nil
}

// CountByEntry returns the number of recorded detections for one
// registered entry id.
func (s *Store) CountByEntry(ctx context.Context, entryID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM detections WHERE entry_id = ?", entryID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count detections: %w", err)
	}
	return count, nil
}

func scanDetection(rows *sql.Rows) (Detection, error) {
	var (
		d  Detection
		ts string
	)
	if err := rows.Scan(&d.ID, &d.EntryID, &d.Distance, &d.Poster, &d.Channel, &d.Guild, &d.MessageID, &ts); err != nil {
		return Detection{}, fmt.Errorf("scan detection: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Detection{}, fmt.Errorf("parse detected_at %q: %w", ts, err)
	}
	d.DetectedAt = parsed
	return d, nil
}
