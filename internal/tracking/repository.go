// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultExpiryBuffer is added to every record's logical TTL so the store
	// reclaims records of torrents the monitor stops observing.
	DefaultExpiryBuffer = 2 * time.Hour
	// DefaultHistoryRetention bounds standalone throughput windows.
	DefaultHistoryRetention = 24 * time.Hour
)

// RepositoryConfig tunes store-level expirations.
type RepositoryConfig struct {
	ExpiryBuffer     time.Duration
	HistoryRetention time.Duration
}

// DefaultRepositoryConfig returns the production expirations.
func DefaultRepositoryConfig() RepositoryConfig {
	return RepositoryConfig{
		ExpiryBuffer:     DefaultExpiryBuffer,
		HistoryRetention: DefaultHistoryRetention,
	}
}

// Repository reads and writes typed tracking records on a Store.
type Repository struct {
	store Store
	keys  Keyspace
	cfg   RepositoryConfig
}

func NewRepository(store Store, keys Keyspace, cfg RepositoryConfig) *Repository {
	defaults := DefaultRepositoryConfig()
	if cfg.ExpiryBuffer <= 0 {
		cfg.ExpiryBuffer = defaults.ExpiryBuffer
	}
	if cfg.HistoryRetention <= 0 {
		cfg.HistoryRetention = defaults.HistoryRetention
	}
	return &Repository{store: store, keys: keys, cfg: cfg}
}

// Keys returns the repository keyspace.
func (r *Repository) Keys() Keyspace {
	return r.keys
}

// Load returns the record for id. It fails with ErrNotFound, ErrCorruptRecord
// or an ErrUnavailable wrapped backend error.
func (r *Repository) Load(ctx context.Context, id string) (*Record, error) {
	data, err := r.store.Get(ctx, r.keys.Record(id))
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", id, err)
	}
	return rec, nil
}

// Save writes rec with a store expiration of ttl plus the expiry buffer.
func (r *Repository) Save(ctx context.Context, id string, rec *Record, ttl time.Duration) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", id, err)
	}
	return r.store.PutWithExpiry(ctx, r.keys.Record(id), data, ttl+r.cfg.ExpiryBuffer)
}

// Remove deletes the record for id. A missing record is not an error.
func (r *Repository) Remove(ctx context.Context, id string) error {
	return r.store.Delete(ctx, r.keys.Record(id))
}

// Exists reports whether a record is stored for id.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	return r.store.Exists(ctx, r.keys.Record(id))
}

// AppendSample pushes a throughput sample into id's window. The window lives
// inside the tracking record when one exists, and under the standalone
// throughput key otherwise.
func (r *Repository) AppendSample(ctx context.Context, id string, sample float64, now time.Time) error {
	rec, err := r.Load(ctx, id)
	switch {
	case err == nil:
		rec.ThroughputHistory = rec.ThroughputHistory.Push(sample)
		remaining := rec.Expiry().Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		return r.Save(ctx, id, rec, remaining)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCorruptRecord):
	default:
		return err
	}

	history, err := r.standalone(ctx, id)
	if err != nil {
		return err
	}
	data, err := encodeHistory(history.Push(sample))
	if err != nil {
		return fmt.Errorf("encode history %s: %w", id, err)
	}
	return r.store.PutWithExpiry(ctx, r.keys.Throughput(id), data, r.cfg.HistoryRetention)
}

// Samples returns id's throughput window. A corrupt value reads as empty.
func (r *Repository) Samples(ctx context.Context, id string) (History, error) {
	rec, err := r.Load(ctx, id)
	switch {
	case err == nil:
		return rec.ThroughputHistory, nil
	case errors.Is(err, ErrCorruptRecord):
		return History{}, nil
	case errors.Is(err, ErrNotFound):
		return r.standalone(ctx, id)
	default:
		return nil, err
	}
}

// TakeStandalone returns the standalone window for id and deletes its key,
// so a newly created record can carry the samples forward.
func (r *Repository) TakeStandalone(ctx context.Context, id string) (History, error) {
	history, err := r.standalone(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return history, nil
	}
	if err := r.store.Delete(ctx, r.keys.Throughput(id)); err != nil {
		return nil, err
	}
	return history, nil
}

func (r *Repository) standalone(ctx context.Context, id string) (History, error) {
	data, err := r.store.Get(ctx, r.keys.Throughput(id))
	if errors.Is(err, ErrNotFound) {
		return History{}, nil
	}
	if err != nil {
		return nil, err
	}
	history, err := decodeHistory(data)
	if err != nil {
		log.Debug().Err(err).Str("hash", id).Msg("tracking: discarding corrupt throughput history")
		return History{}, nil
	}
	return history, nil
}
