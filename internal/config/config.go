// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads the monitor configuration from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/torrent-monitor/internal/domain"
	"github.com/autobrr/torrent-monitor/internal/lifecycle"
	"github.com/autobrr/torrent-monitor/internal/tracking"
)

// EnvPrefix prefixes every environment override, e.g. TM__REDIS_HOST.
const EnvPrefix = "TM__"

const defaultConfigName = "config.toml"

// legacyEnv maps keys onto the variable names earlier deployments used.
var legacyEnv = map[string][]string{
	"qbittorrentHost":     {"QB_API_URL"},
	"qbittorrentUsername": {"QB_USERNAME"},
	"qbittorrentPassword": {"QB_PASSWORD"},
	"redisHost":           {"REDIS_HOST"},
	"redisPort":           {"REDIS_PORT"},
	"monitorCron":         {"MONITOR_CRON"},
}

type AppConfig struct {
	Config *domain.Config
	viper  *viper.Viper
	path   string
}

// New loads configuration. An explicit configPath must exist; without one,
// config.toml is read from the working directory or the user config
// directory when present.
func New(configPath string, version string) (*AppConfig, error) {
	c := &AppConfig{
		Config: &domain.Config{Version: version},
		viper:  viper.New(),
	}

	c.defaults()

	if err := c.load(configPath); err != nil {
		return nil, err
	}

	if err := c.bindEnv(); err != nil {
		return nil, err
	}

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	c.Config.Version = version

	if err := c.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := lifecycle.FromConfig(c.Config.TrackedStates); err != nil {
		return nil, fmt.Errorf("invalid config: trackedStates: %w", err)
	}

	return c, nil
}

// Path returns the config file that was read, or "" when none was.
func (c *AppConfig) Path() string {
	return c.path
}

func (c *AppConfig) defaults() {
	v := c.viper

	v.SetDefault("qbittorrentUsername", "admin")
	v.SetDefault("qbittorrentTLSSkipVerify", false)

	v.SetDefault("storeBackend", domain.StoreBackendRedis)
	v.SetDefault("redisHost", "localhost")
	v.SetDefault("redisPort", 6379)
	v.SetDefault("redisDB", 0)
	v.SetDefault("keyVersion", "torrent_monitor_v2")
	v.SetDefault("expiryBuffer", tracking.DefaultExpiryBuffer)
	v.SetDefault("historyRetention", tracking.DefaultHistoryRetention)

	v.SetDefault("monitorCron", "*/30 * * * *")
	v.SetDefault("reprioritizeInterval", time.Hour)
	v.SetDefault("reprioritizeStartupOnly", false)
	v.SetDefault("preserveTag", "preserve")
	v.SetDefault("deleteFiles", true)
	v.SetDefault("dryRun", false)

	v.SetDefault("priorityTag", "priority")
	v.SetDefault("priorityTagBonus", 1000)
	v.SetDefault("privilegedBonus", 200)
	v.SetDefault("activeBonus", 500)
	v.SetDefault("metadataBonus", 250)
	v.SetDefault("throughputStep", 102400)
	v.SetDefault("throughputCap", 100)

	v.SetDefault("logLevel", "INFO")
	v.SetDefault("logPath", "")
	v.SetDefault("logMaxSize", 50)
	v.SetDefault("logMaxBackups", 3)

	v.SetDefault("metricsEnabled", false)
	v.SetDefault("metricsHost", "127.0.0.1")
	v.SetDefault("metricsPort", 9074)
	v.SetDefault("metricsBasicAuthUsers", "")
}

func (c *AppConfig) load(configPath string) error {
	c.viper.SetConfigType("toml")

	if configPath != "" {
		c.viper.SetConfigFile(configPath)
		if err := c.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("could not read config %s: %w", configPath, err)
		}
		c.path = configPath
		return nil
	}

	for _, dir := range []string{".", getDefaultConfigDir()} {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, defaultConfigName)
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		c.viper.SetConfigFile(candidate)
		if err := c.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("could not read config %s: %w", candidate, err)
		}
		c.path = candidate
		return nil
	}

	log.Debug().Msg("config: no config file found, using defaults and environment")
	return nil
}

// keys lists every setting that can be overridden from the environment.
var keys = []string{
	"qbittorrentHost", "qbittorrentUsername", "qbittorrentPassword", "qbittorrentBasicUser",
	"qbittorrentBasicPass", "qbittorrentTLSSkipVerify", "storeBackend", "redisHost", "redisPort",
	"redisPassword", "redisDB", "keyVersion", "expiryBuffer", "historyRetention", "monitorCron",
	"reprioritizeInterval", "reprioritizeStartupOnly", "preserveTag", "deleteFiles", "dryRun",
	"priorityTag", "priorityTagBonus", "privilegedBonus", "activeBonus", "metadataBonus",
	"throughputStep", "throughputCap", "logLevel", "logPath", "logMaxSize", "logMaxBackups",
	"metricsEnabled", "metricsHost", "metricsPort", "metricsBasicAuthUsers",
}

func (c *AppConfig) bindEnv() error {
	var errs []error
	for _, key := range keys {
		input := append([]string{key, EnvName(key)}, legacyEnv[key]...)
		if err := c.viper.BindEnv(input...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + toUpperSnake(key)
}

// toUpperSnake turns camelCase keys into UPPER_SNAKE, keeping acronyms
// together: qbittorrentTLSSkipVerify becomes QBITTORRENT_TLS_SKIP_VERIFY.
func toUpperSnake(key string) string {
	runes := []rune(key)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func getDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if xdg == "/config" {
			return xdg
		}
		return filepath.Join(xdg, "torrent-monitor")
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "torrent-monitor")
}

// LogSummary writes the effective settings at debug level with secrets redacted.
func (c *AppConfig) LogSummary() {
	cfg := c.Config
	log.Debug().
		Str("configPath", c.path).
		Str("qbittorrentHost", cfg.QbittorrentHost).
		Str("qbittorrentUsername", cfg.QbittorrentUsername).
		Str("qbittorrentPassword", domain.RedactString(cfg.QbittorrentPassword)).
		Str("storeBackend", cfg.StoreBackend).
		Str("redisAddr", cfg.RedisAddr()).
		Str("redisPassword", domain.RedactString(cfg.RedisPassword)).
		Str("keyVersion", cfg.KeyVersion).
		Str("monitorCron", cfg.MonitorCron).
		Dur("reprioritizeInterval", cfg.ReprioritizeInterval).
		Bool("reprioritizeStartupOnly", cfg.ReprioritizeStartupOnly).
		Str("preserveTag", cfg.PreserveTag).
		Bool("deleteFiles", cfg.DeleteFiles).
		Bool("dryRun", cfg.DryRun).
		Bool("metricsEnabled", cfg.MetricsEnabled).
		Str("metricsBasicAuthUsers", domain.RedactUserList(cfg.MetricsBasicAuthUsers)).
		Msg("config: loaded")
}
