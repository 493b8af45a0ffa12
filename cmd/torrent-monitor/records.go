// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/autobrr/torrent-monitor/internal/domain"
	"github.com/autobrr/torrent-monitor/internal/tracking"
)

func RunRecordsCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect or purge stored tracking records",
	}

	cmd.AddCommand(runRecordsGetCommand(configPath))
	cmd.AddCommand(runRecordsPurgeCommand(configPath))
	return cmd
}

type recordView struct {
	Hash              string          `json:"hash"`
	Key               string          `json:"key"`
	Bucket            string          `json:"bucket"`
	RawState          domain.RawState `json:"rawState"`
	ProgressBytes     int64           `json:"progressBytes"`
	ExpiresAt         time.Time       `json:"expiresAt"`
	ThroughputHistory []float64       `json:"throughputHistory"`
	Standalone        bool            `json:"standaloneHistory,omitempty"`
}

func runRecordsGetCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <hash>",
		Short: "Print the tracking record of a torrent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := args[0]
			return withRepository(cmd.Context(), *configPath, func(repo *tracking.Repository) error {
				view := recordView{Hash: hash, Key: repo.Keys().Record(hash)}

				rec, err := repo.Load(cmd.Context(), hash)
				switch {
				case err == nil:
					view.Bucket = rec.Bucket
					view.RawState = rec.RawState
					view.ProgressBytes = rec.ProgressBytes
					view.ExpiresAt = rec.Expiry().UTC()
					view.ThroughputHistory = rec.ThroughputHistory.Samples()
				case errors.Is(err, tracking.ErrNotFound):
					samples, err := repo.Samples(cmd.Context(), hash)
					if err != nil {
						return err
					}
					if len(samples) == 0 {
						return fmt.Errorf("no tracking record for %s", hash)
					}
					view.Key = repo.Keys().Throughput(hash)
					view.Standalone = true
					view.ThroughputHistory = samples.Samples()
				default:
					return err
				}

				data, err := json.MarshalIndent(view, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(data))
				return nil
			})
		},
	}
}

func runRecordsPurgeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <hash>...",
		Short: "Delete tracking records so the torrents start tracking afresh",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd.Context(), *configPath, func(repo *tracking.Repository) error {
				for _, hash := range args {
					if err := repo.Remove(cmd.Context(), hash); err != nil {
						return err
					}
					if _, err := repo.TakeStandalone(cmd.Context(), hash); err != nil {
						return err
					}
					cmd.Printf("Purged %s\n", hash)
				}
				return nil
			})
		},
	}
}

// withRepository opens the configured store for fn. Only a persistent store
// holds records between runs.
func withRepository(ctx context.Context, configPath string, fn func(*tracking.Repository) error) error {
	appCfg, logCloser, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	cfg := appCfg.Config
	if cfg.StoreBackend != domain.StoreBackendRedis {
		return fmt.Errorf("records commands need a persistent store, storeBackend is %q", cfg.StoreBackend)
	}

	store, storeCloser, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer storeCloser.Close()

	repo, err := newRepository(store, cfg)
	if err != nil {
		return err
	}
	return fn(repo)
}
