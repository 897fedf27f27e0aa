package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS processed_submissions (
    event_id   TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresLog stores processed event ids in processed_submissions.
// Rows older than the TTL are ignored by Seen and replaced by Mark.
type PostgresLog struct {
	db  *pgxpool.Pool
	ttl time.Duration
}

func NewPostgresLog(db *pgxpool.Pool, ttl time.Duration) *PostgresLog {
	return &PostgresLog{db: db, ttl: ttl}
}

func (l *PostgresLog) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres dedup schema: %w", err)
	}
	return nil
}

func (l *PostgresLog) Seen(ctx context.Context, eventID string) (bool, error) {
	const q = `SELECT EXISTS (
	             SELECT 1 FROM processed_submissions
	             WHERE event_id = $1 AND created_at > $2)`
	var seen bool
	if err := l.db.QueryRow(ctx, q, eventID, time.Now().Add(-l.ttl)).Scan(&seen); err != nil {
		return false, fmt.Errorf("postgres seen %s: %w", eventID, err)
	}
	return seen, nil
}

func (l *PostgresLog) Mark(ctx context.Context, eventID string) error {
	const q = `INSERT INTO processed_submissions (event_id, created_at)
	           VALUES ($1, now())
	           ON CONFLICT (event_id) DO UPDATE SET created_at = EXCLUDED.created_at`
	if _, err := l.db.Exec(ctx, q, eventID); err != nil {
		return fmt.Errorf("postgres mark %s: %w", eventID, err)
	}
	return nil
}
