// Package worker runs the JetStream intake for asynchronously submitted batches.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/learning-platform/internal/platform/progressevents"
	"github.com/example/learning-platform/services/progress/internal/dedup"
	"github.com/example/learning-platform/services/progress/internal/reconcile"
	"github.com/example/learning-platform/services/progress/internal/request"
)

const (
	intakeConsumer       = "progress_intake"
	defaultHandleTimeout = 30 * time.Second
)

var (
	// ErrBadPayload marks a message that can never be processed.
	ErrBadPayload = errors.New("bad intake payload")
	// ErrDuplicate marks a submission whose event id was already reconciled.
	ErrDuplicate = errors.New("submission already processed")
)

// Intake pulls progressevents.Submission messages and reconciles them.
type Intake struct {
	sub           *nats.Subscription
	reconciler    *reconcile.Reconciler
	seen          dedup.Log // nil disables redelivery dedup
	batchSize     int
	wait          time.Duration
	handleTimeout time.Duration
	log           *zap.Logger
}

// NewIntake ensures the PROGRESS stream and binds a durable pull consumer
// to progressevents.SubjectSubmit.
func NewIntake(nc *nats.Conn, r *reconcile.Reconciler, seen dedup.Log, batchSize, batchIntervalMs int, handleTimeout time.Duration, log *zap.Logger) (*Intake, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	progressevents.EnsureStream(js, log)

	sub, err := js.PullSubscribe(progressevents.SubjectSubmit, intakeConsumer, nats.BindStream(progressevents.StreamName))
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", progressevents.SubjectSubmit, err)
	}
	return &Intake{
		sub:           sub,
		reconciler:    r,
		seen:          seen,
		batchSize:     batchSize,
		wait:          time.Duration(batchIntervalMs) * time.Millisecond,
		handleTimeout: handleTimeout,
		log:           log,
	}, nil
}

// Start runs the intake on its own goroutine. The returned channel closes
// once Run has returned; a nil Intake yields an already closed channel.
func (w *Intake) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if w == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return done
}

// Run processes messages until ctx is cancelled. A message already being
// handled when ctx is cancelled is finished before Run returns.
func (w *Intake) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := w.sub.Fetch(w.batchSize, nats.MaxWait(w.wait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			w.log.Error("progress intake: fetch", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			if ctx.Err() != nil {
				_ = m.Nak()
				continue
			}
			_, err := w.Handle(ctx, m.Data)
			if !shouldAck(err) {
				w.log.Warn("progress intake: handle failed, redelivering", zap.Error(err))
				if err := m.Nak(); err != nil {
					w.log.Warn("progress intake: nak", zap.Error(err))
				}
				continue
			}
			if errors.Is(err, ErrBadPayload) {
				w.log.Warn("progress intake: dropping message", zap.Error(err))
			}
			// Item failures are reported in the digest and never redelivered.
			if err := m.Ack(); err != nil {
				w.log.Warn("progress intake: ack", zap.Error(err))
			}
		}
	}
}

// shouldAck reports whether a message is settled: handled, a duplicate, or
// never processable. Anything else is redelivered.
func shouldAck(err error) bool {
	return err == nil || errors.Is(err, ErrBadPayload) || errors.Is(err, ErrDuplicate)
}

// Handle decodes one submission and reconciles it. Store calls run detached
// from ctx cancellation and are bounded by the handle timeout.
func (w *Intake) Handle(ctx context.Context, data []byte) (reconcile.Digest, error) {
	var sub progressevents.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	var batch request.Batch
	if len(sub.Contents) > 0 {
		if err := json.Unmarshal(sub.Contents, &batch.Contents); err != nil {
			return nil, fmt.Errorf("%w: contents: %v", ErrBadPayload, err)
		}
	}
	reports, err := batch.Reports(sub.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	timeout := w.handleTimeout
	if timeout <= 0 {
		timeout = defaultHandleTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	track := w.seen != nil && sub.EventID != ""
	if track {
		dup, err := w.seen.Seen(ctx, sub.EventID)
		if err != nil {
			return nil, fmt.Errorf("dedup check %s: %w", sub.EventID, err)
		}
		if dup {
			w.log.Info("progress intake: duplicate submission skipped", zap.String("event_id", sub.EventID))
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, sub.EventID)
		}
	}

	digest := w.reconciler.Reconcile(ctx, sub.UserID, reports, nil)
	failed := 0
	for _, s := range digest {
		if s == reconcile.StatusFailed {
			failed++
		}
	}

	if track {
		if err := w.seen.Mark(ctx, sub.EventID); err != nil {
			w.log.Warn("progress intake: dedup mark", zap.String("event_id", sub.EventID), zap.Error(err))
		}
	}

	w.log.Info("progress intake: batch reconciled",
		zap.String("event_id", sub.EventID),
		zap.String("user_id", sub.UserID),
		zap.Int("contents", len(digest)),
		zap.Int("failed", failed),
	)
	return digest, nil
}
