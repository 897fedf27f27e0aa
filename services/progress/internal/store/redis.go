package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/example/learning-platform/services/progress/internal/learnerstate"
)

// RedisStore keeps each record as a JSON value under "<collection>:<key>".
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(collection, key string) string {
	return collection + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, collection, key string) (learnerstate.Record, bool, error) {
	val, err := s.client.Get(ctx, redisKey(collection, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return learnerstate.Record{}, false, nil
		}
		return learnerstate.Record{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var rec learnerstate.Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return learnerstate.Record{}, false, fmt.Errorf("redis decode %s: %w", key, err)
	}
	return rec, true, nil
}

func (s *RedisStore) Upsert(ctx context.Context, collection string, rec learnerstate.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(collection, rec.ID), b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", rec.ID, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
