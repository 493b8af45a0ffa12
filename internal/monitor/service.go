// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package monitor runs monitor passes: it fetches the torrent snapshot,
// feeds every torrent through the eviction engine, removes stuck torrents
// and keeps the download queue in score order.
package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/torrent-monitor/internal/domain"
	"github.com/autobrr/torrent-monitor/internal/eviction"
	"github.com/autobrr/torrent-monitor/internal/priority"
	"github.com/autobrr/torrent-monitor/internal/tracking"
)

// TorrentClient is the qBittorrent surface a pass drives.
type TorrentClient interface {
	Login(ctx context.Context) error
	Torrents(ctx context.Context) ([]domain.Job, error)
	Delete(ctx context.Context, id string) error
	PromoteToFront(ctx context.Context, id string) error
}

// Decider evaluates one torrent observation.
type Decider interface {
	Decide(ctx context.Context, job domain.Job) (eviction.Decision, error)
}

// ThroughputHistory stores the trailing throughput window per torrent.
type ThroughputHistory interface {
	AppendSample(ctx context.Context, id string, sample float64, now time.Time) error
	Samples(ctx context.Context, id string) (tracking.History, error)
}

// Recorder observes finished passes.
type Recorder interface {
	PassCompleted(summary *PassSummary, err error)
}

type nopRecorder struct{}

func (nopRecorder) PassCompleted(*PassSummary, error) {}

// Config controls pass behaviour.
type Config struct {
	// PreserveTag exempts torrents from eviction, sampling and reordering.
	PreserveTag string
	// DryRun logs delete and promote commands instead of issuing them.
	DryRun bool
}

// DefaultConfig returns the production pass settings.
func DefaultConfig() Config {
	return Config{PreserveTag: "preserve"}
}

// PassOptions selects optional steps of a single pass.
type PassOptions struct {
	Reprioritize bool
}

// PassSummary reports what a pass observed and did.
type PassSummary struct {
	StartedAt time.Time
	Duration  time.Duration
	DryRun    bool

	Observed  int
	States    map[domain.RawState]int
	Preserved int
	Decisions map[eviction.Decision]int

	Evicted        int
	DeleteFailures int

	Reprioritized   bool
	Promoted        int
	PromoteFailures int
}

// Count returns how often decision was made during the pass.
func (s *PassSummary) Count(decision eviction.Decision) int {
	if s == nil {
		return 0
	}
	return s.Decisions[decision]
}

// Service runs monitor passes against one qBittorrent instance.
type Service struct {
	cfg      Config
	client   TorrentClient
	engine   Decider
	history  ThroughputHistory
	scorer   *priority.Scorer
	recorder Recorder
	now      func() time.Time
	running  atomic.Bool
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder reports every finished pass to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service.
func NewService(cfg Config, client TorrentClient, engine Decider, history ThroughputHistory, scorer *priority.Scorer, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		client:   client,
		engine:   engine,
		history:  history,
		scorer:   scorer,
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunPass executes one pass. Only authentication, fetch and store failures
// and cancellation abort it; delete and promote failures are counted in the
// summary. Cancellation is observed between jobs and between queue moves.
// In dry run an evicted torrent is neither deleted nor sampled, and its
// record is left for the engine to keep (see eviction.WithRetainExpired).
func (s *Service) RunPass(ctx context.Context, opts PassOptions) (*PassSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrPassInProgress
	}
	defer s.running.Store(false)

	summary := &PassSummary{
		StartedAt: s.now(),
		DryRun:    s.cfg.DryRun,
		States:    make(map[domain.RawState]int),
		Decisions: make(map[eviction.Decision]int),
	}

	err := s.run(ctx, opts, summary)
	summary.Duration = s.now().Sub(summary.StartedAt)
	s.recorder.PassCompleted(summary, err)

	event := log.Info()
	if err != nil {
		event = log.Error().Err(err)
	}
	event.
		Str("result", Result(err)).
		Int("observed", summary.Observed).
		Int("preserved", summary.Preserved).
		Int("started", summary.Count(eviction.TrackingStarted)).
		Int("reset", summary.Count(eviction.TrackingReset)).
		Int("evicted", summary.Evicted).
		Int("deleteFailures", summary.DeleteFailures).
		Bool("reprioritized", summary.Reprioritized).
		Int("promoted", summary.Promoted).
		Int("promoteFailures", summary.PromoteFailures).
		Bool("dryRun", summary.DryRun).
		Dur("duration", summary.Duration).
		Msg("monitor: pass finished")

	return summary, err
}

func (s *Service) run(ctx context.Context, opts PassOptions, summary *PassSummary) error {
	if err := s.client.Login(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	jobs, err := s.client.Torrents(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	summary.Observed = len(jobs)
	for _, job := range jobs {
		summary.States[job.State]++
	}

	candidates := make([]domain.Job, 0, len(jobs))
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.cfg.PreserveTag != "" && job.HasTag(s.cfg.PreserveTag) {
			summary.Preserved++
			log.Debug().Str("hash", job.ID).Str("name", job.Name).Msg("monitor: skipping preserved torrent")
			continue
		}

		// A started job runs to completion; shutdown is only observed
		// between jobs so a decision is never left half applied.
		gone, err := s.process(context.WithoutCancel(ctx), job, summary)
		if err != nil {
			return err
		}
		if !gone {
			candidates = append(candidates, job)
		}
	}

	if !opts.Reprioritize {
		return nil
	}
	return s.reprioritize(ctx, candidates, summary)
}

// process runs the eviction decision and throughput sampling for one
// torrent. It reports whether the torrent was removed from qBittorrent.
func (s *Service) process(ctx context.Context, job domain.Job, summary *PassSummary) (bool, error) {
	decision, err := s.engine.Decide(ctx, job)
	if err != nil {
		return false, fmt.Errorf("%w: decide %s: %w", ErrStoreUnavailable, job.ID, err)
	}
	summary.Decisions[decision]++

	if decision == eviction.Evict {
		summary.Evicted++
		if s.cfg.DryRun {
			log.Info().Str("hash", job.ID).Str("name", job.Name).Str("state", string(job.State)).Msg("monitor: dry run, would delete stuck torrent")
			return false, nil
		}
		if s.delete(ctx, job, summary) {
			return true, nil
		}
	}

	if err := s.history.AppendSample(ctx, job.ID, job.Throughput, s.now()); err != nil {
		return false, fmt.Errorf("%w: append sample %s: %w", ErrStoreUnavailable, job.ID, err)
	}
	return false, nil
}

func (s *Service) delete(ctx context.Context, job domain.Job, summary *PassSummary) bool {
	logger := log.With().Str("hash", job.ID).Str("name", job.Name).Str("state", string(job.State)).Logger()

	if err := s.client.Delete(ctx, job.ID); err != nil {
		summary.DeleteFailures++
		logger.Error().Err(err).Msg("monitor: failed to delete stuck torrent")
		return false
	}

	logger.Info().Msg("monitor: deleted stuck torrent")
	return true
}

func (s *Service) reprioritize(ctx context.Context, jobs []domain.Job, summary *PassSummary) error {
	queued := make([]domain.Job, 0, len(jobs))
	for _, job := range jobs {
		if job.Queued() {
			queued = append(queued, job)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	work := context.WithoutCancel(ctx)

	scores := make(map[string]int, len(queued))
	for _, job := range queued {
		samples, err := s.history.Samples(work, job.ID)
		if err != nil {
			return fmt.Errorf("%w: samples %s: %w", ErrStoreUnavailable, job.ID, err)
		}
		scores[job.ID] = s.scorer.Score(job, samples)
	}

	commands := priority.Plan(queued, scores)
	summary.Reprioritized = true

	if len(commands) == 0 {
		log.Debug().Int("queued", len(queued)).Msg("monitor: queue already in score order")
		return nil
	}

	for _, cmd := range commands {
		if err := ctx.Err(); err != nil {
			return err
		}

		logger := log.With().Str("hash", cmd.JobID).Str("name", cmd.Name).Int("score", cmd.Score).Logger()
		if s.cfg.DryRun {
			logger.Info().Msg("monitor: dry run, would move torrent to queue front")
			continue
		}

		if err := s.client.PromoteToFront(work, cmd.JobID); err != nil {
			summary.PromoteFailures++
			logger.Warn().Err(err).Msg("monitor: failed to move torrent to queue front")
			continue
		}
		summary.Promoted++
		logger.Debug().Msg("monitor: moved torrent to queue front")
	}

	log.Info().Int("queued", len(queued)).Int("commands", len(commands)).Msg("monitor: download queue reordered")
	return nil
}
