// Package reconcile applies batches of progress reports to the record store.
//
// Every report is processed on its own: a malformed timestamp or a store
// fault marks that report FAILED and the rest of the batch carries on. The
// digest goes back to the caller before the downstream aggregator is told
// about the new statuses.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/learning-platform/services/progress/internal/contentkey"
	"github.com/example/learning-platform/services/progress/internal/learnerstate"
	"github.com/example/learning-platform/services/progress/internal/store"
)

// ItemStatus is the per-content outcome reported to the caller.
type ItemStatus string

const (
	StatusSuccess ItemStatus = "SUCCESS"
	StatusFailed  ItemStatus = "FAILED"
)

// Digest maps contentId to its outcome. A later report for the same
// contentId overwrites the earlier outcome.
type Digest map[string]ItemStatus

// SideDigest maps a derived key to the status persisted for it.
// It is built once per batch and never mutated after it is handed off.
type SideDigest map[string]learnerstate.Status

// Notifier forwards a side digest to the downstream aggregator.
type Notifier interface {
	Notify(ctx context.Context, userID string, states SideDigest) error
}

const defaultNotifyTimeout = 5 * time.Second

// Reconciler is constructed once at startup and shared by every transport.
type Reconciler struct {
	Store    store.RecordStore
	Notifier Notifier // nil disables notification
	Log      *zap.Logger

	Collection    string           // defaults to store.DefaultCollection
	Now           func() time.Time // defaults to time.Now
	NotifyTimeout time.Duration    // defaults to 5s

	// OnItemError observes every item-level fault. Optional.
	OnItemError func(*ItemError)

	wg sync.WaitGroup
}

func (r *Reconciler) collection() string {
	if r.Collection == "" {
		return store.DefaultCollection
	}
	return r.Collection
}

func (r *Reconciler) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

func (r *Reconciler) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

// Reconcile merges every report of batch into the store for userID.
//
// reply, when non-nil, receives the digest before the notifier is started;
// the same digest is also returned. Notification runs in the background and
// its failures are only logged.
func (r *Reconciler) Reconcile(ctx context.Context, userID string, batch []learnerstate.Report, reply func(Digest)) Digest {
	digest := make(Digest, len(batch))
	side := make(SideDigest, len(batch))

	for _, in := range batch {
		in.UserID = userID
		in.CourseID = contentkey.OrNotAvailable(in.CourseID)
		in.BatchID = contentkey.OrNotAvailable(in.BatchID)
		key := contentkey.Derive(userID, in.ContentID, in.CourseID, in.BatchID)

		rec, err := r.apply(ctx, key, in)
		if err != nil {
			digest[in.ContentID] = StatusFailed
			r.itemFailed(userID, err)
			continue
		}
		digest[in.ContentID] = StatusSuccess
		side[key] = rec.Status
	}

	if reply != nil {
		reply(digest)
	}
	r.notify(ctx, userID, side)
	return digest
}

func (r *Reconciler) apply(ctx context.Context, key string, in learnerstate.Report) (learnerstate.Record, error) {
	existing, found, err := r.Store.Get(ctx, r.collection(), key)
	if err != nil {
		return learnerstate.Record{}, &ItemError{Kind: KindStoreRead, ContentID: in.ContentID, Key: key, Err: err}
	}
	var prev *learnerstate.Record
	if found {
		prev = &existing
	}

	merged, _, err := learnerstate.Merge(prev, in, r.now())
	if err != nil {
		return learnerstate.Record{}, &ItemError{Kind: KindMalformedTimestamp, ContentID: in.ContentID, Key: key, Err: err}
	}
	merged.ID = key

	if err := r.Store.Upsert(ctx, r.collection(), merged); err != nil {
		return learnerstate.Record{}, &ItemError{Kind: KindStoreWrite, ContentID: in.ContentID, Key: key, Err: err}
	}
	return merged, nil
}

func (r *Reconciler) itemFailed(userID string, err error) {
	var ie *ItemError
	if !errors.As(err, &ie) {
		ie = &ItemError{Err: err}
	}
	r.logger().Warn("content state item failed",
		zap.String("user_id", userID),
		zap.String("content_id", ie.ContentID),
		zap.String("kind", ie.Kind.String()),
		zap.Error(ie.Err),
	)
	if r.OnItemError != nil {
		r.OnItemError(ie)
	}
}

// notify hands side to the notifier on its own goroutine. An empty side
// digest is not forwarded.
func (r *Reconciler) notify(ctx context.Context, userID string, side SideDigest) {
	if r.Notifier == nil || len(side) == 0 {
		return
	}
	timeout := r.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := r.Notifier.Notify(nctx, userID, side); err != nil {
			r.logger().Warn("aggregator notify failed",
				zap.String("user_id", userID),
				zap.Int("keys", len(side)),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every in-flight notification has returned.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// Lookup returns the stored record for the given identity, if any.
func (r *Reconciler) Lookup(ctx context.Context, userID, contentID, courseID, batchID string) (learnerstate.Record, bool, error) {
	key := contentkey.Derive(userID, contentID, courseID, batchID)
	return r.Store.Get(ctx, r.collection(), key)
}
