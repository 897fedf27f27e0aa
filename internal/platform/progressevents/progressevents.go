// Package progressevents defines the JetStream subjects and payloads shared by
// the progress and aggregator services, plus a publisher for them.
package progressevents

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	StreamName = "PROGRESS"

	// SubjectStateUpdated carries the statuses persisted by one batch.
	SubjectStateUpdated = "progress.content_state.updated"
	// SubjectSubmit carries batches submitted for asynchronous reconciliation.
	SubjectSubmit = "progress.content_state.submit"
)

// StateUpdated maps each derived key to the status ordinal persisted for it.
type StateUpdated struct {
	EventID    string         `json:"event_id"`
	UserID     string         `json:"user_id"`
	States     map[string]int `json:"states"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Submission is one batch of raw reports. Contents are decoded by the
// progress service.
type Submission struct {
	EventID  string          `json:"event_id,omitempty"`
	UserID   string          `json:"user_id"`
	Contents json.RawMessage `json:"contents"`
}

// JetStream is the subset of nats.JetStreamContext used for publishing.
type JetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// EnsureStream creates the PROGRESS stream or updates it in place.
func EnsureStream(js nats.JetStreamContext, log *zap.Logger) {
	cfg := &nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"progress.>"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	}

	_, err := js.AddStream(cfg)
	if err == nil {
		log.Info("progress: stream created", zap.String("stream", StreamName))
		return
	}
	if !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		if _, updateErr := js.UpdateStream(cfg); updateErr != nil {
			log.Warn("progress: stream update failed (may already be up to date)", zap.Error(updateErr))
		}
	}
}

// Publisher publishes StateUpdated events.
// A nil receiver or a nil JetStream makes it a no-op stub.
type Publisher struct {
	js  JetStream
	log *zap.Logger
	now func() time.Time
}

// New creates a Publisher. Pass js=nil for stub mode.
func New(js JetStream, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{js: js, log: log, now: time.Now}
}

// PublishStateUpdated sends one StateUpdated event and waits for the ack.
func (p *Publisher) PublishStateUpdated(ctx context.Context, userID string, states map[string]int) error {
	if p == nil || p.js == nil {
		return nil
	}
	ev := StateUpdated{
		EventID:    uuid.NewString(),
		UserID:     userID,
		States:     states,
		OccurredAt: p.now().UTC(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ack, err := p.js.Publish(SubjectStateUpdated, data, nats.Context(ctx), nats.MsgId(ev.EventID))
	if err != nil {
		return err
	}
	p.log.Debug("progress event published",
		zap.String("subject", SubjectStateUpdated),
		zap.String("event_id", ev.EventID),
		zap.Uint64("seq", ack.Sequence),
	)
	return nil
}
