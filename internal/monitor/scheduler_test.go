// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerStub struct {
	mu      sync.Mutex
	opts    []PassOptions
	results []error
	onRun   func(n int)
}

func (r *runnerStub) RunPass(_ context.Context, opts PassOptions) (*PassSummary, error) {
	r.mu.Lock()
	r.opts = append(r.opts, opts)
	n := len(r.opts)
	var err error
	if n <= len(r.results) {
		err = r.results[n-1]
	}
	r.mu.Unlock()

	if r.onRun != nil {
		r.onRun(n)
	}
	if err != nil {
		return nil, err
	}
	return &PassSummary{Reprioritized: opts.Reprioritize}, nil
}

func TestNewSchedulerRejectsInvalidCron(t *testing.T) {
	t.Parallel()

	_, err := NewScheduler(&runnerStub{}, NewIntervalPolicy(time.Hour, false), "every half hour")
	require.Error(t, err)

	_, err = NewScheduler(&runnerStub{}, NewIntervalPolicy(time.Hour, false), "*/30 * * * *")
	require.NoError(t, err)
}

func TestSchedulerRunsImmediatelyThenPerSlot(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &runnerStub{}
	runner.onRun = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	sched, err := NewScheduler(runner, NewIntervalPolicy(time.Hour, false), "*/30 * * * *")
	require.NoError(t, err)

	now := time.Date(2025, 7, 12, 10, 0, 0, 0, time.UTC)
	var waits []time.Duration
	sched.now = func() time.Time { return now }
	sched.after = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		now = now.Add(d)
		ch := make(chan time.Time, 1)
		ch <- now
		return ch
	}

	require.NoError(t, sched.Run(ctx))

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.opts, 3)
	assert.True(t, runner.opts[0].Reprioritize, "startup pass reorders the queue")
	assert.False(t, runner.opts[1].Reprioritize, "10:30 is inside the hourly window")
	assert.True(t, runner.opts[2].Reprioritize, "11:00 is a full hour after startup")
	assert.Equal(t, []time.Duration{30 * time.Minute, 30 * time.Minute}, waits)
}

func TestSchedulerFailedPassDoesNotConsumeReprioritization(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &runnerStub{results: []error{ErrFetch}}
	runner.onRun = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	sched, err := NewScheduler(runner, NewIntervalPolicy(time.Hour, true), "@every 1m")
	require.NoError(t, err)
	sched.after = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	require.NoError(t, sched.Run(ctx))

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.opts, 2)
	assert.True(t, runner.opts[0].Reprioritize)
	assert.True(t, runner.opts[1].Reprioritize)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	runner := &runnerStub{}

	sched, err := NewScheduler(runner, NewIntervalPolicy(0, false), "@hourly")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
