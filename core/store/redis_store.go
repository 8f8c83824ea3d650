package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/extpin/extpin/core/infra/redisutil"
)

const (
	defaultRedisURL       = "redis://localhost:6379"
	defaultRedisOpTimeout = 2 * time.Second
)

// RedisStore implements Store using Redis. Values are JSON-encoded.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore constructs a Redis-backed store from a redis:// URL.
func NewRedisStore(url string) (*RedisStore, error) {
	if url == "" {
		url = defaultRedisURL
	}
	client, err := redisutil.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) GetList(ctx context.Context, key string) ([]string, error) {
	var out []string
	if err := s.getJSON(ctx, key, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) PutList(ctx context.Context, key string, vals []string) error {
	return s.putJSON(ctx, key, vals)
}

func (s *RedisStore) GetMap(ctx context.Context, key string) (map[string]int64, error) {
	var out map[string]int64
	if err := s.getJSON(ctx, key, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) PutMap(ctx context.Context, key string, vals map[string]int64) error {
	return s.putJSON(ctx, key, vals)
}

func (s *RedisStore) getJSON(ctx context.Context, key string, out interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultRedisOpTimeout)
	defer cancel()
	data, err := s.client.Get(cctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *RedisStore) putJSON(ctx context.Context, key string, val interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultRedisOpTimeout)
	defer cancel()
	return s.client.Set(cctx, key, data, 0).Err()
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client exposes the underlying Redis client for advanced operations.
// Prefer using Store methods where possible.
func (s *RedisStore) Client() redis.UniversalClient {
	return s.client
}
