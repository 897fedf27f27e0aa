package store

import (
	"context"

	"github.com/sony/gobreaker"

	"github.com/example/learning-platform/services/progress/internal/learnerstate"
)

// BreakerStore fails fast once the wrapped store keeps erroring.
// A missing record is a successful call and never trips the breaker.
type BreakerStore struct {
	next RecordStore
	cb   *gobreaker.CircuitBreaker
}

func WithBreaker(next RecordStore, cb *gobreaker.CircuitBreaker) *BreakerStore {
	return &BreakerStore{next: next, cb: cb}
}

type getResult struct {
	rec   learnerstate.Record
	found bool
}

func (s *BreakerStore) Get(ctx context.Context, collection, key string) (learnerstate.Record, bool, error) {
	v, err := s.cb.Execute(func() (interface{}, error) {
		rec, found, err := s.next.Get(ctx, collection, key)
		if err != nil {
			return nil, err
		}
		return getResult{rec: rec, found: found}, nil
	})
	if err != nil {
		return learnerstate.Record{}, false, err
	}
	res := v.(getResult)
	return res.rec, res.found, nil
}

func (s *BreakerStore) Upsert(ctx context.Context, collection string, rec learnerstate.Record) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.Upsert(ctx, collection, rec)
	})
	return err
}
