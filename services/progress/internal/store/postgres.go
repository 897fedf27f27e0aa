package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/learning-platform/services/progress/internal/learnerstate"
)

// PostgresStore is the production Postgres-backed implementation.
// Each collection maps to a table with the content_consumption layout
// from schema.sql.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the default collection table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) (learnerstate.Record, bool, error) {
	q := `SELECT id, user_id, content_id, course_id, batch_id, status, content_progress,
	             view_count, completed_count, last_access_time, last_updated_time, last_completed_time
	      FROM ` + pgx.Identifier{collection}.Sanitize() + ` WHERE id = $1`

	var rec learnerstate.Record
	var status int
	err := s.db.QueryRow(ctx, q, key).Scan(
		&rec.ID, &rec.UserID, &rec.ContentID, &rec.CourseID, &rec.BatchID, &status, &rec.ContentProgress,
		&rec.ViewCount, &rec.CompletedCount, &rec.LastAccessTime, &rec.LastUpdatedTime, &rec.LastCompletedTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return learnerstate.Record{}, false, nil
		}
		return learnerstate.Record{}, false, fmt.Errorf("postgres get %s: %w", key, err)
	}
	rec.Status = learnerstate.Status(status)
	return rec, true, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, collection string, rec learnerstate.Record) error {
	q := `
INSERT INTO ` + pgx.Identifier{collection}.Sanitize() + ` (id, user_id, content_id, course_id, batch_id, status, content_progress,
  view_count, completed_count, last_access_time, last_updated_time, last_completed_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id)
DO UPDATE SET
  user_id             = EXCLUDED.user_id,
  content_id          = EXCLUDED.content_id,
  course_id           = EXCLUDED.course_id,
  batch_id            = EXCLUDED.batch_id,
  status              = EXCLUDED.status,
  content_progress    = EXCLUDED.content_progress,
  view_count          = EXCLUDED.view_count,
  completed_count     = EXCLUDED.completed_count,
  last_access_time    = EXCLUDED.last_access_time,
  last_updated_time   = EXCLUDED.last_updated_time,
  last_completed_time = EXCLUDED.last_completed_time`

	_, err := s.db.Exec(ctx, q,
		rec.ID, rec.UserID, rec.ContentID, rec.CourseID, rec.BatchID, int(rec.Status), rec.ContentProgress,
		rec.ViewCount, rec.CompletedCount, rec.LastAccessTime, rec.LastUpdatedTime, rec.LastCompletedTime,
	)
	if err != nil {
		return fmt.Errorf("postgres upsert %s: %w", rec.ID, err)
	}
	return nil
}
