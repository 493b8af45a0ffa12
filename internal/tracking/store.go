// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tracking persists per-torrent tracking records in a key-value store
// with per-key expiration.
package tracking

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key has no value.
	ErrNotFound = errors.New("tracking: not found")
	// ErrUnavailable wraps every backend failure, including timeouts.
	ErrUnavailable = errors.New("tracking: store unavailable")
	// ErrCorruptRecord is returned when a stored value cannot be decoded.
	ErrCorruptRecord = errors.New("tracking: corrupt record")
)

// Store is the capability set the monitor needs from a key-value backend.
// Each operation is atomic per key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	PutWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
