// Package cache keeps JSON values in Redis. A nil *Store is a valid,
// always-missing cache so callers work unchanged when Redis is not configured.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect returns a client for addr, or nil when addr is empty.
func Connect(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*redis.Client, error) {
	if addr == "" {
		logger.Warn("redis address not set, caching disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("connected to redis", "addr", addr)
	return client, nil
}

type Store struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewStore returns nil when client is nil.
func NewStore(client *redis.Client, prefix string, logger *slog.Logger) *Store {
	if client == nil {
		return nil
	}
	return &Store{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (s *Store) key(k string) string {
	return s.prefix + ":" + k
}

// Get decodes the value under key into dst and reports whether it was found.
// Redis errors and undecodable values count as misses.
func (s *Store) Get(ctx context.Context, key string, dst any) bool {
	if s == nil {
		return false
	}

	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.ErrorContext(ctx, "redis GET failed", "key", s.key(key), "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.WarnContext(ctx, "failed to decode cached value", "key", s.key(key), "error", err)
		return false
	}
	return true
}

// Set stores value under key for ttl. Failures are logged only.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if s == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode cache value", "key", s.key(key), "error", err)
		return
	}
	if err := s.client.Set(ctx, s.key(key), data, ttl).Err(); err != nil {
		s.logger.ErrorContext(ctx, "redis SET failed", "key", s.key(key), "error", err)
	}
}

// Ping reports whether Redis is reachable; a nil store is always healthy.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}
