package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"augur/internal/config"
)

// RedisStore keeps the log in a Redis list so the agent itself can stay stateless.
type RedisStore struct {
	rdb *redis.Client
	key string
}

func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("history: redis ping: %w", err)
	}
	key := cfg.Key
	if key == "" {
		key = "augur:history"
	}
	return &RedisStore{rdb: rdb, key: key}, nil
}

// Append pushes every entry with a single RPUSH, which redis applies atomically.
func (s *RedisStore) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]any, 0, len(entries))
	for _, e := range entries {
		buf, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("history: encode: %w", err)
		}
		values = append(values, buf)
	}
	if err := s.rdb.RPush(ctx, s.key, values...).Err(); err != nil {
		return fmt.Errorf("history: redis rpush: %w", err)
	}
	return nil
}

func (s *RedisStore) Recent(ctx context.Context, k int) ([]Entry, error) {
	if k <= 0 {
		return []Entry{}, nil
	}
	return s.lrange(ctx, int64(-k), -1)
}

func (s *RedisStore) All(ctx context.Context) ([]Entry, error) {
	return s.lrange(ctx, 0, -1)
}

func (s *RedisStore) lrange(ctx context.Context, start, stop int64) ([]Entry, error) {
	raw, err := s.rdb.LRange(ctx, s.key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("history: redis lrange: %w", err)
	}
	return decodeEntries(raw)
}

func decodeEntries(raw []string) ([]Entry, error) {
	out := make([]Entry, 0, len(raw))
	for i, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("history: decode entry %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
