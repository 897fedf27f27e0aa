package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/learning-platform/services/progress/internal/learnerstate"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore is a single-file store for local runs and the progressctl CLI.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *SQLiteStore) Get(ctx context.Context, collection, key string) (learnerstate.Record, bool, error) {
	q := `SELECT id, user_id, content_id, course_id, batch_id, status, content_progress,
	             view_count, completed_count, last_access_time, last_updated_time, last_completed_time
	      FROM ` + quoteIdent(collection) + ` WHERE id = ?`

	var rec learnerstate.Record
	var status int
	err := s.db.QueryRowContext(ctx, q, key).Scan(
		&rec.ID, &rec.UserID, &rec.ContentID, &rec.CourseID, &rec.BatchID, &status, &rec.ContentProgress,
		&rec.ViewCount, &rec.CompletedCount, &rec.LastAccessTime, &rec.LastUpdatedTime, &rec.LastCompletedTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return learnerstate.Record{}, false, nil
		}
		return learnerstate.Record{}, false, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	rec.Status = learnerstate.Status(status)
	return rec, true, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, collection string, rec learnerstate.Record) error {
	q := `
INSERT INTO ` + quoteIdent(collection) + ` (id, user_id, content_id, course_id, batch_id, status, content_progress,
  view_count, completed_count, last_access_time, last_updated_time, last_completed_time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  user_id             = excluded.user_id,
  content_id          = excluded.content_id,
  course_id           = excluded.course_id,
  batch_id            = excluded.batch_id,
  status              = excluded.status,
  content_progress    = excluded.content_progress,
  view_count          = excluded.view_count,
  completed_count     = excluded.completed_count,
  last_access_time    = excluded.last_access_time,
  last_updated_time   = excluded.last_updated_time,
  last_completed_time = excluded.last_completed_time`

	_, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.UserID, rec.ContentID, rec.CourseID, rec.BatchID, int(rec.Status), rec.ContentProgress,
		rec.ViewCount, rec.CompletedCount, rec.LastAccessTime, rec.LastUpdatedTime, rec.LastCompletedTime,
	)
	if err != nil {
		return fmt.Errorf("sqlite upsert %s: %w", rec.ID, err)
	}
	return nil
}
