// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/torrent-monitor/internal/buildinfo"
	"github.com/autobrr/torrent-monitor/internal/config"
	"github.com/autobrr/torrent-monitor/internal/domain"
	"github.com/autobrr/torrent-monitor/internal/eviction"
	"github.com/autobrr/torrent-monitor/internal/lifecycle"
	"github.com/autobrr/torrent-monitor/internal/logging"
	"github.com/autobrr/torrent-monitor/internal/metrics"
	"github.com/autobrr/torrent-monitor/internal/monitor"
	"github.com/autobrr/torrent-monitor/internal/priority"
	"github.com/autobrr/torrent-monitor/internal/qbittorrent"
	"github.com/autobrr/torrent-monitor/internal/tracking"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg     *domain.Config
	store   tracking.Store
	repo    *tracking.Repository
	metrics *metrics.Manager
	service *monitor.Service

	closers []io.Closer
}

type appOptions struct {
	dryRun bool
}

// loadConfig reads the configuration and installs the global logger.
func loadConfig(configPath string) (*config.AppConfig, io.Closer, error) {
	cfg, err := config.New(configPath, buildinfo.Version)
	if err != nil {
		return nil, nil, err
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:      cfg.Config.LogLevel,
		Path:       cfg.Config.LogPath,
		MaxSize:    cfg.Config.LogMaxSize,
		MaxBackups: cfg.Config.LogMaxBackups,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.LogSummary()
	return cfg, logCloser, nil
}

// openStore connects the configured tracking store.
func openStore(ctx context.Context, cfg *domain.Config) (tracking.Store, io.Closer, error) {
	switch cfg.StoreBackend {
	case domain.StoreBackendMemory:
		log.Warn().Msg("tracking: using in-memory store, tracking records are lost on restart")
		return tracking.NewMemoryStore(), nil, nil
	case domain.StoreBackendRedis:
		store := tracking.NewRedisStore(tracking.NewRedisClient(tracking.RedisOptions{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr(), err)
		}
		log.Info().Str("addr", cfg.RedisAddr()).Int("db", cfg.RedisDB).Msg("tracking: connected to redis")
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown storeBackend %q", cfg.StoreBackend)
	}
}

func newRepository(store tracking.Store, cfg *domain.Config) (*tracking.Repository, error) {
	keys := tracking.Keyspace{Version: cfg.KeyVersion}
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	return tracking.NewRepository(store, keys, tracking.RepositoryConfig{
		ExpiryBuffer:     cfg.ExpiryBuffer,
		HistoryRetention: cfg.HistoryRetention,
	}), nil
}

func weightsFromConfig(cfg *domain.Config) priority.Weights {
	return priority.Weights{
		PriorityTag:      cfg.PriorityTag,
		PriorityTagBonus: cfg.PriorityTagBonus,
		PrivilegedBonus:  cfg.PrivilegedBonus,
		ActiveBonus:      cfg.ActiveBonus,
		MetadataBonus:    cfg.MetadataBonus,
		ThroughputStep:   cfg.ThroughputStep,
		ThroughputCap:    cfg.ThroughputCap,
	}
}

func clientConfig(cfg *domain.Config) qbittorrent.Config {
	c := qbittorrent.DefaultConfig()
	c.Host = cfg.QbittorrentHost
	c.Username = cfg.QbittorrentUsername
	c.Password = cfg.QbittorrentPassword
	c.BasicUser = cfg.QbittorrentBasicUser
	c.BasicPass = cfg.QbittorrentBasicPass
	c.TLSSkipVerify = cfg.QbittorrentTLSSkipVerify
	c.DeleteFiles = cfg.DeleteFiles
	return c
}

// newApp wires the full monitor. Close must be called when done.
func newApp(ctx context.Context, configPath string, opts appOptions) (*app, error) {
	appCfg, logCloser, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: appCfg.Config, closers: []io.Closer{logCloser}}
	if opts.dryRun {
		a.cfg.DryRun = true
	}

	log.Info().
		Str("version", buildinfo.Version).
		Str("userAgent", buildinfo.UserAgent).
		Bool("dryRun", a.cfg.DryRun).
		Msg("starting torrent-monitor")

	table, err := lifecycle.FromConfig(a.cfg.TrackedStates)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid config: trackedStates: %w", err)
	}
	for _, rule := range table.Rules() {
		log.Debug().Str("state", string(rule.State)).Str("bucket", rule.Bucket).Dur("ttl", rule.TTL).Msg("lifecycle: tracking state")
	}

	store, storeCloser, err := openStore(ctx, a.cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	if storeCloser != nil {
		a.closers = append(a.closers, storeCloser)
	}

	a.repo, err = newRepository(store, a.cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	var engineOpts []eviction.Option
	if a.cfg.DryRun {
		engineOpts = append(engineOpts, eviction.WithRetainExpired())
	}
	engine := eviction.NewEngine(table, a.repo, engineOpts...)
	scorer := priority.NewScorer(weightsFromConfig(a.cfg))
	client := qbittorrent.NewClient(clientConfig(a.cfg))
	a.metrics = metrics.NewManager()

	a.service = monitor.NewService(
		monitor.Config{PreserveTag: a.cfg.PreserveTag, DryRun: a.cfg.DryRun},
		client,
		engine,
		a.repo,
		scorer,
		monitor.WithRecorder(a.metrics),
	)

	return a, nil
}

// Close releases the store connection and the log file. Closers run in
// reverse order so the log file outlives the store.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if a.closers[i] == nil {
			continue
		}
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
