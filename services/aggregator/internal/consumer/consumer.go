// Package consumer manages the JetStream pull consumer for the aggregator service.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/learning-platform/internal/platform/progressevents"
	"github.com/example/learning-platform/services/aggregator/internal/rollup"
)

const aggregatorConsumer = "aggregator"

// ErrBadPayload marks a message that can never be applied.
var ErrBadPayload = errors.New("bad state update payload")

// Applier folds a state update into course rollups.
type Applier interface {
	Apply(ctx context.Context, ev progressevents.StateUpdated) ([]rollup.CourseProgress, error)
}

// Consumer wraps a JetStream pull subscription on state update notifications.
type Consumer struct {
	sub       *nats.Subscription
	applier   Applier
	batchSize int
	wait      time.Duration
	log       *zap.Logger
}

// New ensures the PROGRESS stream and binds the durable aggregator consumer.
func New(nc *nats.Conn, a Applier, batchSize, batchIntervalMs int, log *zap.Logger) (*Consumer, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	progressevents.EnsureStream(js, log)

	sub, err := js.PullSubscribe(progressevents.SubjectStateUpdated, aggregatorConsumer, nats.BindStream(progressevents.StreamName))
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", progressevents.SubjectStateUpdated, err)
	}
	return NewWithSubscription(sub, a, batchSize, batchIntervalMs, log), nil
}

// NewWithSubscription builds a Consumer around an existing subscription.
// sub may be nil when only Handle is used.
func NewWithSubscription(sub *nats.Subscription, a Applier, batchSize, batchIntervalMs int, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		sub:       sub,
		applier:   a,
		batchSize: batchSize,
		wait:      time.Duration(batchIntervalMs) * time.Millisecond,
		log:       log,
	}
}

// Run processes messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.sub.Fetch(c.batchSize, nats.MaxWait(c.wait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			c.log.Error("aggregator consumer: fetch", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			err := c.Handle(ctx, m.Data)
			switch {
			case err == nil, errors.Is(err, ErrBadPayload):
				if err != nil {
					c.log.Warn("aggregator consumer: dropping message", zap.Error(err))
				}
				if err := m.Ack(); err != nil {
					c.log.Warn("aggregator consumer: ack", zap.Error(err))
				}
			default:
				c.log.Warn("aggregator consumer: apply failed, redelivering", zap.Error(err))
				if err := m.Nak(); err != nil {
					c.log.Warn("aggregator consumer: nak", zap.Error(err))
				}
			}
		}
	}
}

// Handle decodes and applies one message. A decode failure wraps ErrBadPayload;
// any other error is transient.
func (c *Consumer) Handle(ctx context.Context, data []byte) error {
	var ev progressevents.StateUpdated
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if ev.UserID == "" {
		return fmt.Errorf("%w: missing user_id", ErrBadPayload)
	}
	touched, err := c.applier.Apply(ctx, ev)
	if err != nil {
		return err
	}
	c.log.Debug("aggregator: state update applied",
		zap.String("event_id", ev.EventID),
		zap.String("user_id", ev.UserID),
		zap.Int("contents", len(ev.States)),
		zap.Int("courses", len(touched)),
	)
	return nil
}
