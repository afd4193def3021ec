package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "history:"

// RedisStore keeps per-user windows in Redis lists, one list per user,
// trimmed on every append. Use this when multiple gateway replicas must
// share conversation state.
type RedisStore struct {
	client *redis.Client
	max    int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, max int) (*RedisStore, error) {
	if max <= 0 {
		max = 10
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, max: max}, nil
}

// Append pushes a record and trims the list to the window size.
func (s *RedisStore) Append(ctx context.Context, userID string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}

	key := keyPrefix + userID
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-s.max), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history for %s: %w", userID, err)
	}
	return nil
}

// Recent returns up to n most recent records, oldest first.
func (s *RedisStore) Recent(ctx context.Context, userID string, n int) ([]Record, error) {
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}

	raw, err := s.client.LRange(ctx, keyPrefix+userID, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history for %s: %w", userID, err)
	}

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode history record for %s: %w", userID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Clear drops the user's window.
func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("clear history for %s: %w", userID, err)
	}
	return nil
}

// Stats scans history keys and sums list lengths. SCAN-based, so it is
// approximate under concurrent writes; fine for a stats endpoint.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		st.Users++
		n, err := s.client.LLen(ctx, iter.Val()).Result()
		if err != nil {
			return Stats{}, fmt.Errorf("history stats: %w", err)
		}
		st.Prompts += int(n)
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("history stats scan: %w", err)
	}
	return st, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
