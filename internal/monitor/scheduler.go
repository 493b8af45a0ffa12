// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/torrent-monitor/internal/domain"
)

// Runner executes a single pass.
type Runner interface {
	RunPass(ctx context.Context, opts PassOptions) (*PassSummary, error)
}

// Scheduler runs one pass at startup and then one per cron slot. Passes run
// sequentially, so a slot that arrives while a pass is still running is
// skipped.
type Scheduler struct {
	runner   Runner
	policy   Policy
	expr     string
	schedule cron.Schedule
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
}

// NewScheduler parses expr with the standard five-field cron syntax.
func NewScheduler(runner Runner, policy Policy, expr string) (*Scheduler, error) {
	schedule, err := domain.CronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return &Scheduler{
		runner:   runner,
		policy:   policy,
		expr:     expr,
		schedule: schedule,
		now:      time.Now,
		after:    time.After,
	}, nil
}

// Run blocks until ctx is canceled. A pass in flight observes the same
// context and stops between torrents.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Str("cron", s.expr).Msg("monitor: scheduler started")

	s.tick(ctx)

	for ctx.Err() == nil {
		next := s.schedule.Next(s.now())
		log.Debug().Time("next", next).Msg("monitor: next pass scheduled")

		select {
		case <-ctx.Done():
		case <-s.after(next.Sub(s.now())):
			if ctx.Err() == nil {
				s.tick(ctx)
			}
		}
	}

	log.Info().Msg("monitor: scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	opts := PassOptions{Reprioritize: s.policy.ShouldReprioritize(now)}

	summary, err := s.runner.RunPass(ctx, opts)
	if errors.Is(err, ErrPassInProgress) {
		log.Warn().Msg("monitor: previous pass still running, skipping slot")
		return
	}
	if summary != nil && summary.Reprioritized {
		s.policy.Reprioritized(now)
	}
}
