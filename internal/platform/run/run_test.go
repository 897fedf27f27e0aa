package run

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRun_ExitCodes(t *testing.T) {
	r := New(zap.NewNop())
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"clean", nil, 0},
		{"server closed", http.ErrServerClosed, 0},
		{"failure", errors.New("listen: address in use"), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.run(context.Background(), func(context.Context) error { return tc.err })
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestRun_CancelledContext(t *testing.T) {
	r := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := r.run(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return errors.New("late")
	})
	if got != 0 {
		t.Fatalf("expected 0 on shutdown, got %d", got)
	}
}

func TestGraceful_HasDeadlineAfterCancel(t *testing.T) {
	r := &Runner{Logger: zap.NewNop(), ShutdownTimeout: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawDeadline bool
	r.Graceful(ctx, func(c context.Context) error {
		_, sawDeadline = c.Deadline()
		return c.Err()
	})
	if !sawDeadline {
		t.Fatal("expected shutdown context to carry a deadline")
	}
}
