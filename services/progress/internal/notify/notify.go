// Package notify forwards reconciled statuses to the aggregator service.
package notify

import (
	"context"
	"fmt"

	"github.com/example/learning-platform/internal/platform/progressevents"
	"github.com/example/learning-platform/services/progress/internal/reconcile"
)

// JetStreamNotifier publishes side digests as progressevents.StateUpdated.
type JetStreamNotifier struct {
	pub *progressevents.Publisher
}

var _ reconcile.Notifier = (*JetStreamNotifier)(nil)

func NewJetStream(pub *progressevents.Publisher) *JetStreamNotifier {
	return &JetStreamNotifier{pub: pub}
}

func (n *JetStreamNotifier) Notify(ctx context.Context, userID string, states reconcile.SideDigest) error {
	payload := make(map[string]int, len(states))
	for key, s := range states {
		payload[key] = int(s)
	}
	if err := n.pub.PublishStateUpdated(ctx, userID, payload); err != nil {
		return fmt.Errorf("publish state update for %s: %w", userID, err)
	}
	return nil
}
