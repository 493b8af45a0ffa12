// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis"

	"github.com/autobrr/torrent-monitor/internal/pkg/timeouts"
)

// RedisStore implements Store on a single Redis database.
type RedisStore struct {
	db *redis.Client
}

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient builds a client whose socket operations are bounded by the
// store timeout.
func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  timeouts.Store,
		ReadTimeout:  timeouts.Store,
		WriteTimeout: timeouts.Store,
	})
}

// NewRedisStore wraps db.
func NewRedisStore(db *redis.Client) *RedisStore {
	return &RedisStore{db: db}
}

// Ping verifies the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := timeouts.WithStoreTimeout(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Ping().Err(); err != nil {
		return fmt.Errorf("ping: %w: %w", ErrUnavailable, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.db.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := timeouts.WithStoreTimeout(ctx)
	defer cancel()

	value, err := s.db.WithContext(ctx).Get(key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w: %w", key, ErrUnavailable, err)
	}
	return value, nil
}

func (s *RedisStore) PutWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("put %s: non-positive ttl %s", key, ttl)
	}

	ctx, cancel := timeouts.WithStoreTimeout(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Set(key, value, ttl).Err(); err != nil {
		return fmt.Errorf("put %s: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := timeouts.WithStoreTimeout(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Del(key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := timeouts.WithStoreTimeout(ctx)
	defer cancel()

	n, err := s.db.WithContext(ctx).Exists(key).Result()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w: %w", key, ErrUnavailable, err)
	}
	return n > 0, nil
}
