package rollup

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore keeps rollups in the content_status and course_progress tables.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the rollup tables if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("rollup schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertContentStatus(ctx context.Context, id Identity, status int, at time.Time) error {
	q := `
INSERT INTO content_status (user_id, course_id, batch_id, content_id, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, course_id, batch_id, content_id)
DO UPDATE SET
	status = GREATEST(content_status.status, EXCLUDED.status),
	updated_at = EXCLUDED.updated_at`
	_, err := s.db.Exec(ctx, q, id.UserID, id.CourseID, id.BatchID, id.ContentID, status, at)
	return err
}

func (s *PostgresStore) Recompute(ctx context.Context, key CourseKey, at time.Time) (CourseProgress, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return CourseProgress{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cp := CourseProgress{UserID: key.UserID, CourseID: key.CourseID, BatchID: key.BatchID, UpdatedAt: at}
	err = tx.QueryRow(ctx, `
SELECT count(*),
       count(*) FILTER (WHERE status >= 1),
       count(*) FILTER (WHERE status = 2)
FROM content_status
WHERE user_id = $1 AND course_id = $2 AND batch_id = $3`,
		key.UserID, key.CourseID, key.BatchID,
	).Scan(&cp.ContentsSeen, &cp.ContentsStarted, &cp.ContentsCompleted)
	if err != nil {
		return CourseProgress{}, err
	}
	cp.Status = CourseStatus(cp.ContentsSeen, cp.ContentsStarted, cp.ContentsCompleted)

	_, err = tx.Exec(ctx, `
INSERT INTO course_progress (user_id, course_id, batch_id, contents_seen, contents_started, contents_completed, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (user_id, course_id, batch_id)
DO UPDATE SET
	contents_seen = EXCLUDED.contents_seen,
	contents_started = EXCLUDED.contents_started,
	contents_completed = EXCLUDED.contents_completed,
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at`,
		cp.UserID, cp.CourseID, cp.BatchID, cp.ContentsSeen, cp.ContentsStarted, cp.ContentsCompleted, cp.Status, cp.UpdatedAt,
	)
	if err != nil {
		return CourseProgress{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return CourseProgress{}, err
	}
	return cp, nil
}

func (s *PostgresStore) Get(ctx context.Context, key CourseKey) (CourseProgress, error) {
	cp := CourseProgress{UserID: key.UserID, CourseID: key.CourseID, BatchID: key.BatchID}
	err := s.db.QueryRow(ctx, `
SELECT contents_seen, contents_started, contents_completed, status, updated_at
FROM course_progress
WHERE user_id = $1 AND course_id = $2 AND batch_id = $3`,
		key.UserID, key.CourseID, key.BatchID,
	).Scan(&cp.ContentsSeen, &cp.ContentsStarted, &cp.ContentsCompleted, &cp.Status, &cp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CourseProgress{}, ErrNotFound
		}
		return CourseProgress{}, err
	}
	return cp, nil
}

// PostgresResolver reads identities from the progress service's record table.
type PostgresResolver struct {
	db         *pgxpool.Pool
	collection string
}

func NewPostgresResolver(db *pgxpool.Pool, collection string) *PostgresResolver {
	return &PostgresResolver{db: db, collection: collection}
}

func (r *PostgresResolver) Resolve(ctx context.Context, keys []string) (map[string]Identity, error) {
	q := `SELECT id, user_id, content_id, course_id, batch_id FROM ` +
		pgx.Identifier{r.collection}.Sanitize() + ` WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, q, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Identity, len(keys))
	for rows.Next() {
		var key string
		var id Identity
		if err := rows.Scan(&key, &id.UserID, &id.ContentID, &id.CourseID, &id.BatchID); err != nil {
			return nil, err
		}
		out[key] = id
	}
	return out, rows.Err()
}
