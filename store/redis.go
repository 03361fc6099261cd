package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"crash-review-pipeline/types"
)

// RedisStore keeps run state as JSON strings, plus a seen set and an
// ordered list of run ids.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to addr and fails fast when Redis does not answer PING
func NewRedisStore(ctx context.Context, addr, prefix string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	if prefix == "" {
		prefix = "crashreview"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

func (r *RedisStore) runKey(id string) string { return r.prefix + ":run:" + id }
func (r *RedisStore) seenKey() string { return r.prefix + ":runs:seen" }
func (r *RedisStore) listKey() string { return r.prefix + ":runs" }

func (r *RedisStore) Save(ctx context.Context, st *types.PipelineState) error {
	if st.RunID == "" {
		return errors.New("save state: empty run id")
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := r.client.Set(ctx, r.runKey(st.RunID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("error saving state: %w", err)
	}
	added, err := r.client.SAdd(ctx, r.seenKey(), st.RunID).Result()
	if err != nil {
		return fmt.Errorf("error adding to seen set: %w", err)
	}
	if added == 1 {
		if err := r.client.RPush(ctx, r.listKey(), st.RunID).Err(); err != nil {
			return fmt.Errorf("error adding to run list: %w", err)
		}
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, runID string) (*types.PipelineState, error) {
	data, err := r.client.Get(ctx, r.runKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error loading state: %w", err)
	}
	var st types.PipelineState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &st, nil
}

// List returns run ids, newest first
func (r *RedisStore) List(ctx context.Context, limit int) ([]string, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	ids, err := r.client.LRange(ctx, r.listKey(), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("error listing runs: %w", err)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
