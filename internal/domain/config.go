// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"
)

// CronParser accepts standard five-field expressions plus descriptors like @hourly.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// TrackedState maps one raw qBittorrent state onto a lifecycle bucket and TTL.
type TrackedState struct {
	State  string        `toml:"state" mapstructure:"state"`
	Bucket string        `toml:"bucket" mapstructure:"bucket"`
	TTL    time.Duration `toml:"ttl" mapstructure:"ttl"`
}

// Config represents the application configuration
type Config struct {
	Version string

	QbittorrentHost          string `toml:"qbittorrentHost" mapstructure:"qbittorrentHost"`
	QbittorrentUsername      string `toml:"qbittorrentUsername" mapstructure:"qbittorrentUsername"`
	QbittorrentPassword      string `toml:"qbittorrentPassword" mapstructure:"qbittorrentPassword"`
	QbittorrentBasicUser     string `toml:"qbittorrentBasicUser" mapstructure:"qbittorrentBasicUser"`
	QbittorrentBasicPass     string `toml:"qbittorrentBasicPass" mapstructure:"qbittorrentBasicPass"`
	QbittorrentTLSSkipVerify bool   `toml:"qbittorrentTLSSkipVerify" mapstructure:"qbittorrentTLSSkipVerify"`

	StoreBackend     string        `toml:"storeBackend" mapstructure:"storeBackend"`
	RedisHost        string        `toml:"redisHost" mapstructure:"redisHost"`
	RedisPort        int           `toml:"redisPort" mapstructure:"redisPort"`
	RedisPassword    string        `toml:"redisPassword" mapstructure:"redisPassword"`
	RedisDB          int           `toml:"redisDB" mapstructure:"redisDB"`
	KeyVersion       string        `toml:"keyVersion" mapstructure:"keyVersion"`
	ExpiryBuffer     time.Duration `toml:"expiryBuffer" mapstructure:"expiryBuffer"`
	HistoryRetention time.Duration `toml:"historyRetention" mapstructure:"historyRetention"`

	MonitorCron             string        `toml:"monitorCron" mapstructure:"monitorCron"`
	ReprioritizeInterval    time.Duration `toml:"reprioritizeInterval" mapstructure:"reprioritizeInterval"`
	ReprioritizeStartupOnly bool          `toml:"reprioritizeStartupOnly" mapstructure:"reprioritizeStartupOnly"`
	PreserveTag             string        `toml:"preserveTag" mapstructure:"preserveTag"`
	DeleteFiles             bool          `toml:"deleteFiles" mapstructure:"deleteFiles"`

	// DryRun keeps tracking records up to date but only logs delete and
	// promote commands instead of sending them to qBittorrent.
	DryRun bool `toml:"dryRun" mapstructure:"dryRun"`

	PriorityTag      string  `toml:"priorityTag" mapstructure:"priorityTag"`
	PriorityTagBonus int     `toml:"priorityTagBonus" mapstructure:"priorityTagBonus"`
	PrivilegedBonus  int     `toml:"privilegedBonus" mapstructure:"privilegedBonus"`
	ActiveBonus      int     `toml:"activeBonus" mapstructure:"activeBonus"`
	MetadataBonus    int     `toml:"metadataBonus" mapstructure:"metadataBonus"`
	ThroughputStep   float64 `toml:"throughputStep" mapstructure:"throughputStep"`
	ThroughputCap    int     `toml:"throughputCap" mapstructure:"throughputCap"`

	TrackedStates []TrackedState `toml:"trackedStates" mapstructure:"trackedStates"`

	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`
}

// RedisAddr returns the host:port pair for the Redis store.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Validate checks settings that would otherwise only fail at the first pass.
// The tracked state table is validated separately when it is compiled.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.QbittorrentHost) == "" {
		return errors.New("qbittorrentHost is required")
	}

	if _, err := CronParser.Parse(c.MonitorCron); err != nil {
		return fmt.Errorf("invalid monitorCron %q: %w", c.MonitorCron, err)
	}

	switch c.StoreBackend {
	case StoreBackendRedis:
		if strings.TrimSpace(c.RedisHost) == "" {
			return errors.New("redisHost is required for the redis store backend")
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("unknown storeBackend %q", c.StoreBackend)
	}

	if strings.TrimSpace(c.KeyVersion) == "" {
		return errors.New("keyVersion must not be empty")
	}
	if strings.Contains(c.KeyVersion, ":") {
		return fmt.Errorf("keyVersion %q must not contain ':'", c.KeyVersion)
	}
	if c.ExpiryBuffer <= 0 {
		return errors.New("expiryBuffer must be positive")
	}
	if c.ThroughputStep <= 0 {
		return errors.New("throughputStep must be positive")
	}

	return nil
}
