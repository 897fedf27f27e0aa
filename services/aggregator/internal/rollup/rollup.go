// Package rollup maintains per-course progress from reconciled content states.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/learning-platform/internal/platform/progressevents"
)

// Status ordinals match the progress service.
const (
	StatusNotStarted = 0
	StatusInProgress = 1
	StatusCompleted  = 2
)

// NotAvailable is the course/batch id of content consumed outside a course.
const NotAvailable = "N/A"

// ErrNotFound is returned when no course progress exists.
var ErrNotFound = errors.New("course progress not found")

// Identity is the tuple a record key was derived from.
type Identity struct {
	UserID    string
	ContentID string
	CourseID  string
	BatchID   string
}

// CourseKey addresses one learner's enrolment in a course batch.
type CourseKey struct {
	UserID   string
	CourseID string
	BatchID  string
}

// CourseProgress is the rollup of every content seen in one enrolment.
type CourseProgress struct {
	UserID            string    `json:"userId"`
	CourseID          string    `json:"courseId"`
	BatchID           string    `json:"batchId"`
	ContentsSeen      int       `json:"contentsSeen"`
	ContentsStarted   int       `json:"contentsStarted"`
	ContentsCompleted int       `json:"contentsCompleted"`
	Status            int       `json:"status"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// CourseStatus derives the enrolment status from content counts.
func CourseStatus(seen, started, completed int) int {
	switch {
	case seen > 0 && completed == seen:
		return StatusCompleted
	case started > 0:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

// Store persists content statuses and course rollups.
type Store interface {
	// UpsertContentStatus records status for id, never lowering a stored status.
	UpsertContentStatus(ctx context.Context, id Identity, status int, at time.Time) error
	// Recompute rebuilds and stores the rollup for key.
	Recompute(ctx context.Context, key CourseKey, at time.Time) (CourseProgress, error)
	// Get returns the stored rollup or ErrNotFound.
	Get(ctx context.Context, key CourseKey) (CourseProgress, error)
}

// Resolver maps record keys back to their identity. Unknown keys are
// omitted from the result.
type Resolver interface {
	Resolve(ctx context.Context, keys []string) (map[string]Identity, error)
}

// Aggregator applies StateUpdated events.
type Aggregator struct {
	Store    Store
	Resolver Resolver
	Log      *zap.Logger
	Now      func() time.Time
}

func (a *Aggregator) now() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now().UTC()
}

func (a *Aggregator) logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

// Apply folds one event into the rollups and returns the courses it touched.
// Errors are transient: the event can be redelivered safely because content
// statuses only move forward.
func (a *Aggregator) Apply(ctx context.Context, ev progressevents.StateUpdated) ([]CourseProgress, error) {
	if len(ev.States) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(ev.States))
	for k := range ev.States {
		keys = append(keys, k)
	}
	ids, err := a.Resolver.Resolve(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("resolve keys: %w", err)
	}

	at := a.now()
	touched := make(map[CourseKey]struct{})
	for _, k := range keys {
		id, ok := ids[k]
		if !ok {
			a.logger().Warn("aggregator: unknown record key", zap.String("key", k), zap.String("event_id", ev.EventID))
			continue
		}
		if err := a.Store.UpsertContentStatus(ctx, id, ev.States[k], at); err != nil {
			return nil, fmt.Errorf("content status %s: %w", k, err)
		}
		if id.CourseID == NotAvailable {
			continue
		}
		touched[CourseKey{UserID: id.UserID, CourseID: id.CourseID, BatchID: id.BatchID}] = struct{}{}
	}

	out := make([]CourseProgress, 0, len(touched))
	for ck := range touched {
		cp, err := a.Store.Recompute(ctx, ck, at)
		if err != nil {
			return nil, fmt.Errorf("recompute %s/%s: %w", ck.CourseID, ck.BatchID, err)
		}
		out = append(out, cp)
	}
	return out, nil
}
