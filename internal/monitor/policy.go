// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package monitor

import (
	"sync"
	"time"
)

// Policy decides which passes reorder the download queue.
type Policy interface {
	ShouldReprioritize(now time.Time) bool
	// Reprioritized records that a pass completed its reorder step.
	Reprioritized(now time.Time)
}

// IntervalPolicy reorders on the first pass and then at most once per
// Interval. A zero Interval reorders every pass. StartupOnly limits
// reordering to the first successful pass.
type IntervalPolicy struct {
	Interval    time.Duration
	StartupOnly bool

	mu   sync.Mutex
	last time.Time
	done bool
}

func NewIntervalPolicy(interval time.Duration, startupOnly bool) *IntervalPolicy {
	return &IntervalPolicy{Interval: interval, StartupOnly: startupOnly}
}

func (p *IntervalPolicy) ShouldReprioritize(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.done {
		return true
	}
	if p.StartupOnly {
		return false
	}
	if p.Interval <= 0 {
		return true
	}
	return now.Sub(p.last) >= p.Interval
}

func (p *IntervalPolicy) Reprioritized(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = true
	p.last = now
}
