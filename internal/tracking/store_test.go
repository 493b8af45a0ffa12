// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	store := NewRedisStore(NewRedisClient(RedisOptions{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = store.Close() })
	return srv, store
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := store.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "missing"), "deleting a missing key is not an error")

	require.NoError(t, store.PutWithExpiry(ctx, "k", []byte("v1"), time.Hour))
	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), value)

	ok, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.PutWithExpiry(ctx, "k", []byte("v2"), time.Hour))
	value, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	require.Error(t, store.PutWithExpiry(ctx, "k", []byte("v"), 0))
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	_, store := newTestRedis(t)
	require.NoError(t, store.Ping(context.Background()))
	exerciseStore(t, store)
}

func TestRedisStoreSetsExpiry(t *testing.T) {
	t.Parallel()

	srv, store := newTestRedis(t)
	require.NoError(t, store.PutWithExpiry(context.Background(), "k", []byte("v"), 26*time.Hour))
	assert.Equal(t, 26*time.Hour, srv.TTL("k"))
}

func TestRedisStoreUnavailable(t *testing.T) {
	t.Parallel()

	srv, store := newTestRedis(t)
	srv.Close()

	ctx := context.Background()
	_, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, store.PutWithExpiry(ctx, "k", []byte("v"), time.Hour), ErrUnavailable)
	require.ErrorIs(t, store.Delete(ctx, "k"), ErrUnavailable)
	_, err = store.Exists(ctx, "k")
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, store.Ping(ctx), ErrUnavailable)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreExpiry(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	store := NewMemoryStore(WithMemoryClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, store.PutWithExpiry(ctx, "k", []byte("v"), time.Minute))
	assert.Equal(t, time.Minute, store.TTL("k"))

	now = now.Add(59 * time.Second)
	_, err := store.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, store.TTL("k"))
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, context.Canceled)
}
