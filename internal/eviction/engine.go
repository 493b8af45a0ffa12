// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package eviction decides, once per pass and torrent, whether a torrent has
// been stuck in a tracked state long enough to be removed.
package eviction

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/torrent-monitor/internal/domain"
	"github.com/autobrr/torrent-monitor/internal/lifecycle"
	"github.com/autobrr/torrent-monitor/internal/tracking"
)

// Decision is the outcome of evaluating one observation.
type Decision int

const (
	Ignored Decision = iota
	TrackingStarted
	TrackingReset
	Evict
)

func (d Decision) String() string {
	switch d {
	case Ignored:
		return "ignored"
	case TrackingStarted:
		return "tracking_started"
	case TrackingReset:
		return "tracking_reset"
	case Evict:
		return "evict"
	default:
		return "unknown"
	}
}

// Records is the subset of tracking.Repository the engine needs.
type Records interface {
	Load(ctx context.Context, id string) (*tracking.Record, error)
	Save(ctx context.Context, id string, rec *tracking.Record, ttl time.Duration) error
	Remove(ctx context.Context, id string) error
	TakeStandalone(ctx context.Context, id string) (tracking.History, error)
}

// Engine evaluates observations against stored tracking records.
type Engine struct {
	table         *lifecycle.Table
	records       Records
	now           func() time.Time
	retainExpired bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRetainExpired keeps the record of an expired torrent when Evict is
// returned. Dry runs use it so a preview never consumes a pending eviction.
func WithRetainExpired() Option {
	return func(e *Engine) {
		e.retainExpired = true
	}
}

func NewEngine(table *lifecycle.Table, records Records, opts ...Option) *Engine {
	e := &Engine{
		table:   table,
		records: records,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide evaluates job. The only error it returns is store unavailability.
func (e *Engine) Decide(ctx context.Context, job domain.Job) (Decision, error) {
	rule, tracked := e.table.Classify(job.State)
	if !tracked {
		// Leaving tracked territory drops the record; removing a missing one is a no-op.
		if err := e.records.Remove(ctx, job.ID); err != nil {
			return Ignored, err
		}
		return Ignored, nil
	}

	now := e.now()

	rec, err := e.records.Load(ctx, job.ID)
	switch {
	case errors.Is(err, tracking.ErrNotFound):
		return e.start(ctx, job, rule, now)
	case errors.Is(err, tracking.ErrCorruptRecord):
		log.Warn().Err(err).Str("hash", job.ID).Str("name", job.Name).Msg("eviction: reinitializing corrupt tracking record")
		return e.start(ctx, job, rule, now)
	case err != nil:
		return Ignored, err
	}

	if job.ProgressBytes != rec.ProgressBytes {
		rec.ExpiresAt = now.Add(rule.TTL).Unix()
		rec.ProgressBytes = job.ProgressBytes
		rec.RawState = job.State
		rec.Bucket = rule.Bucket
		rec.ThroughputHistory = tracking.History{}
		if err := e.records.Save(ctx, job.ID, rec, rule.TTL); err != nil {
			return Ignored, err
		}
		log.Debug().Str("hash", job.ID).Str("name", job.Name).Str("state", string(job.State)).Int64("expiresAt", rec.ExpiresAt).Msg("eviction: progress observed, ttl reset")
		return TrackingReset, nil
	}

	// Any literal state change resets the clock, including moves between
	// states sharing a bucket. A torrent oscillating between bucket mates
	// is therefore never evicted.
	if job.State != rec.RawState {
		previous := rec.RawState
		rec.ExpiresAt = now.Add(rule.TTL).Unix()
		rec.RawState = job.State
		rec.Bucket = rule.Bucket
		if err := e.records.Save(ctx, job.ID, rec, rule.TTL); err != nil {
			return Ignored, err
		}
		log.Debug().Str("hash", job.ID).Str("name", job.Name).Str("from", string(previous)).Str("state", string(job.State)).Int64("expiresAt", rec.ExpiresAt).Msg("eviction: state changed, ttl reset")
		return TrackingReset, nil
	}

	if rec.Expired(now) {
		if !e.retainExpired {
			if err := e.records.Remove(ctx, job.ID); err != nil {
				return Ignored, err
			}
		}
		log.Info().Str("hash", job.ID).Str("name", job.Name).Str("state", string(job.State)).Str("bucket", rec.Bucket).Int64("expiresAt", rec.ExpiresAt).Msg("eviction: ttl lapsed without activity")
		return Evict, nil
	}

	return Ignored, nil
}

func (e *Engine) start(ctx context.Context, job domain.Job, rule lifecycle.Rule, now time.Time) (Decision, error) {
	history, err := e.records.TakeStandalone(ctx, job.ID)
	if err != nil {
		return Ignored, err
	}

	rec := &tracking.Record{
		ExpiresAt:         now.Add(rule.TTL).Unix(),
		Bucket:            rule.Bucket,
		RawState:          job.State,
		ProgressBytes:     job.ProgressBytes,
		ThroughputHistory: history,
	}
	if err := e.records.Save(ctx, job.ID, rec, rule.TTL); err != nil {
		return Ignored, err
	}

	log.Debug().Str("hash", job.ID).Str("name", job.Name).Str("state", string(job.State)).Str("bucket", rule.Bucket).Int64("expiresAt", rec.ExpiresAt).Msg("eviction: tracking started")
	return TrackingStarted, nil
}
