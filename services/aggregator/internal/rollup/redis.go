package rollup

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisResolver reads identities from records the progress service keeps
// in Redis as JSON under "<collection>:<key>".
type RedisResolver struct {
	client     *redis.Client
	collection string
}

func NewRedisResolver(client *redis.Client, collection string) *RedisResolver {
	return &RedisResolver{client: client, collection: collection}
}

type redisRecord struct {
	UserID    string `json:"userId"`
	ContentID string `json:"contentId"`
	CourseID  string `json:"courseId"`
	BatchID   string `json:"batchId"`
}

func (r *RedisResolver) Resolve(ctx context.Context, keys []string) (map[string]Identity, error) {
	if len(keys) == 0 {
		return map[string]Identity{}, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.collection + ":" + k
	}
	vals, err := r.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]Identity, len(keys))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var rec redisRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", keys[i], err)
		}
		out[keys[i]] = Identity(rec)
	}
	return out, nil
}
