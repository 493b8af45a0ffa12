// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package qbittorrent adapts the qBittorrent Web API client to the monitor.
package qbittorrent

import (
	"context"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/autobrr/autobrr/pkg/ttlcache"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/torrent-monitor/internal/domain"
	"github.com/autobrr/torrent-monitor/internal/pkg/timeouts"
)

// ErrQueueingUnsupported is returned by PromoteToFront when the instance
// reports a Web API version without queue priority support.
var ErrQueueingUnsupported = errors.New("qbittorrent: queue priority not supported by this Web API version")

// queueingMinVersion is the first Web API release with torrent queue priorities.
var queueingMinVersion = semver.MustParse("2.0.0")

// versionTTL bounds how long a detected Web API version is trusted, so an
// upgraded instance is picked up without a restart.
const versionTTL = 6 * time.Hour

// Config holds the connection settings for one qBittorrent instance.
type Config struct {
	Host          string
	Username      string
	Password      string
	BasicUser     string
	BasicPass     string
	TLSSkipVerify bool

	// DeleteFiles removes downloaded data together with evicted torrents.
	DeleteFiles bool

	LoginAttempts uint
	LoginBackoff  time.Duration
}

// DefaultConfig returns connection defaults without a host.
func DefaultConfig() Config {
	return Config{
		DeleteFiles:   true,
		LoginAttempts: 3,
		LoginBackoff:  timeouts.LoginBackoff,
	}
}

// webAPI is the part of go-qbittorrent the monitor calls.
type webAPI interface {
	LoginCtx(ctx context.Context) error
	GetWebAPIVersionCtx(ctx context.Context) (string, error)
	GetTorrentsCtx(ctx context.Context, o qbt.TorrentFilterOptions) ([]qbt.Torrent, error)
	DeleteTorrentsCtx(ctx context.Context, hashes []string, deleteFiles bool) error
	SetMaxPriorityCtx(ctx context.Context, hashes []string) error
}

type webAPIInfo struct {
	version       string
	supportsQueue bool
}

// Client implements monitor.TorrentClient on go-qbittorrent.
type Client struct {
	api      webAPI
	cfg      Config
	versions *ttlcache.Cache[string, webAPIInfo]
}

// NewClient builds a client. No request is made until Login.
func NewClient(cfg Config) *Client {
	return newClient(qbt.NewClient(qbt.Config{
		Host:          cfg.Host,
		Username:      cfg.Username,
		Password:      cfg.Password,
		BasicUser:     cfg.BasicUser,
		BasicPass:     cfg.BasicPass,
		TLSSkipVerify: cfg.TLSSkipVerify,
		Timeout:       int(timeouts.API / time.Second),
	}), cfg)
}

func newClient(api webAPI, cfg Config) *Client {
	defaults := DefaultConfig()
	if cfg.LoginAttempts == 0 {
		cfg.LoginAttempts = defaults.LoginAttempts
	}
	if cfg.LoginBackoff <= 0 {
		cfg.LoginBackoff = defaults.LoginBackoff
	}
	return &Client{
		api:      api,
		cfg:      cfg,
		versions: ttlcache.New(ttlcache.Options[string, webAPIInfo]{}.SetDefaultTTL(versionTTL)),
	}
}

// Login authenticates, retrying transient failures. The Web API version is
// read after a successful login and cached for versionTTL.
func (c *Client) Login(ctx context.Context) error {
	err := retry.Do(
		func() error {
			reqCtx, cancel := timeouts.WithAPITimeout(ctx)
			defer cancel()
			return c.api.LoginCtx(reqCtx)
		},
		retry.Context(ctx),
		retry.Attempts(c.cfg.LoginAttempts),
		retry.Delay(c.cfg.LoginBackoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Str("host", c.cfg.Host).Msg("qbittorrent: login failed, retrying")
		}),
	)
	if err != nil {
		return errors.Wrapf(err, "login to %s", c.cfg.Host)
	}

	c.checkVersion(ctx)
	return nil
}

func (c *Client) checkVersion(ctx context.Context) {
	if _, ok := c.versions.Get(c.cfg.Host); ok {
		return
	}

	reqCtx, cancel := timeouts.WithAPITimeout(ctx)
	defer cancel()

	version, err := c.api.GetWebAPIVersionCtx(reqCtx)
	if err != nil {
		log.Debug().Err(err).Str("host", c.cfg.Host).Msg("qbittorrent: could not read web api version")
		return
	}

	info := webAPIInfo{version: version, supportsQueue: true}
	if v, err := semver.NewVersion(version); err == nil {
		info.supportsQueue = !v.LessThan(queueingMinVersion)
	}
	c.versions.Set(c.cfg.Host, info, ttlcache.DefaultTTL)

	log.Info().
		Str("host", c.cfg.Host).
		Str("webAPIVersion", version).
		Bool("supportsQueue", info.supportsQueue).
		Msg("qbittorrent: connected")
}

// WebAPIVersion returns the version reported at login, if any.
func (c *Client) WebAPIVersion() string {
	info, _ := c.versions.Get(c.cfg.Host)
	return info.version
}

// supportsQueue assumes queueing works until a version says otherwise.
func (c *Client) supportsQueue() bool {
	info, ok := c.versions.Get(c.cfg.Host)
	return !ok || info.supportsQueue
}

// Torrents returns the full torrent snapshot.
func (c *Client) Torrents(ctx context.Context) ([]domain.Job, error) {
	reqCtx, cancel := timeouts.WithAPITimeout(ctx)
	defer cancel()

	torrents, err := c.api.GetTorrentsCtx(reqCtx, qbt.TorrentFilterOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "get torrents")
	}

	jobs := make([]domain.Job, 0, len(torrents))
	for _, t := range torrents {
		jobs = append(jobs, ToJob(t))
	}
	return jobs, nil
}

// Delete removes a torrent, and its data when DeleteFiles is set.
func (c *Client) Delete(ctx context.Context, id string) error {
	reqCtx, cancel := timeouts.WithAPITimeout(ctx)
	defer cancel()

	if err := c.api.DeleteTorrentsCtx(reqCtx, []string{id}, c.cfg.DeleteFiles); err != nil {
		return errors.Wrapf(err, "delete torrent %s", id)
	}
	return nil
}

// PromoteToFront moves a torrent to the top of the download queue.
func (c *Client) PromoteToFront(ctx context.Context, id string) error {
	if !c.supportsQueue() {
		return ErrQueueingUnsupported
	}

	reqCtx, cancel := timeouts.WithAPITimeout(ctx)
	defer cancel()

	if err := c.api.SetMaxPriorityCtx(reqCtx, []string{id}); err != nil {
		return errors.Wrapf(err, "set top priority %s", id)
	}
	return nil
}
