// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package eviction

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/torrent-monitor/internal/domain"
	"github.com/autobrr/torrent-monitor/internal/lifecycle"
	"github.com/autobrr/torrent-monitor/internal/tracking"
)

type harness struct {
	now    int64
	store  *tracking.MemoryStore
	repo   *tracking.Repository
	engine *Engine
}

func newHarness(t *testing.T, rules []lifecycle.Rule, opts ...Option) *harness {
	t.Helper()

	h := &harness{}
	clock := func() time.Time { return time.Unix(h.now, 0) }
	h.store = tracking.NewMemoryStore(tracking.WithMemoryClock(clock))
	h.repo = tracking.NewRepository(h.store, tracking.Keyspace{Version: "test"}, tracking.DefaultRepositoryConfig())
	h.engine = NewEngine(lifecycle.MustNew(rules), h.repo, append([]Option{WithClock(clock)}, opts...)...)
	return h
}

func (h *harness) decide(t *testing.T, at int64, job domain.Job) Decision {
	t.Helper()

	h.now = at
	decision, err := h.engine.Decide(context.Background(), job)
	require.NoError(t, err)
	return decision
}

func (h *harness) record(t *testing.T, id string) *tracking.Record {
	t.Helper()

	rec, err := h.repo.Load(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func job(state domain.RawState, progress int64) domain.Job {
	return domain.Job{ID: "abc", Name: "Some.Release", State: state, ProgressBytes: progress}
}

func TestDecideStability(t *testing.T) {
	t.Parallel()

	h := newHarness(t, lifecycle.DefaultRules())

	assert.Equal(t, TrackingStarted, h.decide(t, 0, job(domain.StateUploading, 100)))
	expiry := h.record(t, "abc").ExpiresAt
	assert.Equal(t, int64(86_400), expiry)

	assert.Equal(t, Ignored, h.decide(t, 10, job(domain.StateUploading, 100)))
	assert.Equal(t, Ignored, h.decide(t, 86_399, job(domain.StateUploading, 100)))
	assert.Equal(t, expiry, h.record(t, "abc").ExpiresAt)
}

func TestDecideProgressResetsTTL(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []lifecycle.Rule{{State: domain.StateStalledDl, Bucket: "stalled", TTL: 43_200 * time.Second}})

	assert.Equal(t, TrackingStarted, h.decide(t, 0, job(domain.StateStalledDl, 100)))
	assert.Equal(t, int64(43_200), h.record(t, "abc").ExpiresAt)

	assert.Equal(t, TrackingReset, h.decide(t, 10, job(domain.StateStalledDl, 150)))
	rec := h.record(t, "abc")
	assert.Equal(t, int64(43_210), rec.ExpiresAt)
	assert.Equal(t, int64(150), rec.ProgressBytes)

	assert.Equal(t, Ignored, h.decide(t, 43_205, job(domain.StateStalledDl, 150)))
}

func TestDecideExpiryEvicts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, lifecycle.DefaultRules())

	assert.Equal(t, TrackingStarted, h.decide(t, 1_000, job(domain.StateUploading, 500)))
	assert.Equal(t, Ignored, h.decide(t, 87_399, job(domain.StateUploading, 500)))
	assert.Equal(t, Evict, h.decide(t, 90_000, job(domain.StateUploading, 500)))

	_, err := h.repo.Load(context.Background(), "abc")
	require.ErrorIs(t, err, tracking.ErrNotFound)
}

func TestDecideRetainExpiredKeepsRecord(t *testing.T) {
	t.Parallel()

	h := newHarness(t, lifecycle.DefaultRules(), WithRetainExpired())

	assert.Equal(t, TrackingStarted, h.decide(t, 1_000, job(domain.StateStalledDl, 500)))
	before := h.record(t, "abc")

	assert.Equal(t, Evict, h.decide(t, 90_000, job(domain.StateStalledDl, 500)))
	assert.Equal(t, before, h.record(t, "abc"))

	// A later evaluation still sees the lapsed record.
	assert.Equal(t, Evict, h.decide(t, 90_600, job(domain.StateStalledDl, 500)))
}

func TestDecideEvictsExactlyAtExpiry(t *testing.T) {
	t.Parallel()

	h := newHarness(t, lifecycle.DefaultRules())

	h.decide(t, 1_000, job(domain.StateMetaDl, 0))
	assert.Equal(t, Evict, h.decide(t, 87_400, job(domain.StateMetaDl, 0)))
}

func TestDecideRepeatedEvictAfterRemoval(t *testing.T) {
	t.Parallel()

	h := newHarness(t, lifecycle.DefaultRules())

	h.decide(t, 0, job(domain.StateUploading, 1))
	require.Equal(t, Evict, h.decide(t, 90_000, job(domain.StateUploading, 1)))

	// The delete command may have failed; the torrent is seen again and
	// simply starts a fresh record.
	assert.Equal(t, TrackingStarted, h.decide(t, 90_001, job(domain.StateUploading, 1)))
}

func TestDecideUntrackedCleanup(t *testing.T) {
	t.Parallel()

	h := newHarness(t, lifecycle.DefaultRules())

	assert.Equal(t, TrackingStarted, h.decide(t, 0, job(domain.StateStalledDl, 10)))
	assert.Equal(t, Ignored, h.decide(t, 60, job(domain.StateDownloading, 20)))

	ok, err := h.repo.Exists(context.Background(), "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, at := range []int64{120, 100_000, 500_000} {
		assert.Equal(t, Ignored, h.decide(t, at, job(domain.StateDownloading, 20)))
	}

	ok, err = h.repo.Exists(context.Background(), "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecideBucketInternalStateChangeResets(t *testing.T) {
	t.Parallel()

	h := newHarness(t, lifecycle.DefaultRules())
	ctx := context.Background()

	h.decide(t, 0, job(domain.StateUploading, 700))
	h.now = 30
	require.NoError(t, h.repo.AppendSample(ctx, "abc", 4096, time.Unix(30, 0)))

	assert.Equal(t, TrackingReset, h.decide(t, 90_000, job(domain.StateStalledUp, 700)))

	rec := h.record(t, "abc")
	assert.Equal(t, domain.StateStalledUp, rec.RawState)
	assert.Equal(t, lifecycle.BucketCompleted, rec.Bucket)
	assert.Equal(t, int64(90_000+86_400), rec.ExpiresAt)
	assert.Equal(t, tracking.History{4096}, rec.ThroughputHistory, "state change keeps throughput history")
}

func TestDecideCrossBucketStateChange(t *testing.T) {
	t.Parallel()

	h := newHarness(t, lifecycle.DefaultRules())

	h.decide(t, 0, job(domain.StateMetaDl, 0))
	assert.Equal(t, TrackingReset, h.decide(t, 50, job(domain.StateStalledDl, 0)))
	assert.Equal(t, lifecycle.BucketStalled, h.record(t, "abc").Bucket)
}

func TestDecideProgressClearsHistory(t *testing.T) {
	t.Parallel()

	h := newHarness(t, lifecycle.DefaultRules())
	ctx := context.Background()

	h.decide(t, 0, job(domain.StateStalledDl, 1))
	h.now = 5
	require.NoError(t, h.repo.AppendSample(ctx, "abc", 100, time.Unix(5, 0)))

	assert.Equal(t, TrackingReset, h.decide(t, 10, job(domain.StateStalledDl, 2)))
	assert.Empty(t, h.record(t, "abc").ThroughputHistory)
}

func TestDecideCarriesStandaloneHistoryIntoNewRecord(t *testing.T) {
	t.Parallel()

	h := newHarness(t, lifecycle.DefaultRules())
	ctx := context.Background()

	for _, sample := range []float64{10, 20} {
		require.NoError(t, h.repo.AppendSample(ctx, "abc", sample, time.Unix(0, 0)))
	}

	assert.Equal(t, TrackingStarted, h.decide(t, 0, job(domain.StateStalledDl, 1)))
	assert.Equal(t, tracking.History{10, 20}, h.record(t, "abc").ThroughputHistory)
}

func TestDecideCorruptRecordRecovery(t *testing.T) {
	t.Parallel()

	h := newHarness(t, lifecycle.DefaultRules())
	ctx := context.Background()

	require.NoError(t, h.store.PutWithExpiry(ctx, "test:abc", []byte("\x00garbage"), time.Hour))

	assert.Equal(t, TrackingStarted, h.decide(t, 100, job(domain.StatePausedUp, 9)))
	rec := h.record(t, "abc")
	assert.Equal(t, int64(100+86_400), rec.ExpiresAt)
	assert.Equal(t, domain.StatePausedUp, rec.RawState)
}

type failingRecords struct {
	err error
}

func (f failingRecords) Load(context.Context, string) (*tracking.Record, error) { return nil, f.err }
func (f failingRecords) Save(context.Context, string, *tracking.Record, time.Duration) error {
	return f.err
}
func (f failingRecords) Remove(context.Context, string) error { return f.err }
func (f failingRecords) TakeStandalone(context.Context, string) (tracking.History, error) {
	return nil, f.err
}

func TestDecideStoreUnavailable(t *testing.T) {
	t.Parallel()

	storeErr := fmt.Errorf("get: %w: %w", tracking.ErrUnavailable, errors.New("connection refused"))
	engine := NewEngine(lifecycle.MustNew(lifecycle.DefaultRules()), failingRecords{err: storeErr})

	for _, state := range []domain.RawState{domain.StateUploading, domain.StateDownloading} {
		decision, err := engine.Decide(context.Background(), job(state, 1))
		require.ErrorIs(t, err, tracking.ErrUnavailable)
		assert.Equal(t, Ignored, decision)
	}
}

func TestDecisionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ignored", Ignored.String())
	assert.Equal(t, "tracking_started", TrackingStarted.String())
	assert.Equal(t, "tracking_reset", TrackingReset.String())
	assert.Equal(t, "evict", Evict.String())
	assert.Equal(t, "unknown", Decision(42).String())
}
