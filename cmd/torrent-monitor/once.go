// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/spf13/cobra"

	"github.com/autobrr/torrent-monitor/internal/eviction"
	"github.com/autobrr/torrent-monitor/internal/monitor"
)

func RunOnceCommand(configPath *string) *cobra.Command {
	var (
		reprioritize bool
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single monitor pass and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *configPath, appOptions{dryRun: dryRun})
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.service.RunPass(cmd.Context(), monitor.PassOptions{Reprioritize: reprioritize})
			if summary != nil {
				printSummary(cmd, summary)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&reprioritize, "reprioritize", false, "Reorder the download queue after evaluating torrents")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log delete and queue commands instead of sending them")

	return cmd
}

func printSummary(cmd *cobra.Command, summary *monitor.PassSummary) {
	if summary.DryRun {
		cmd.Println("Dry run: no torrents were deleted or moved.")
	}
	cmd.Printf("Observed: %d (preserved %d)\n", summary.Observed, summary.Preserved)
	cmd.Printf("Tracking started: %d\n", summary.Count(eviction.TrackingStarted))
	cmd.Printf("Tracking reset: %d\n", summary.Count(eviction.TrackingReset))
	cmd.Printf("Evicted: %d (delete failures %d)\n", summary.Evicted, summary.DeleteFailures)
	if summary.Reprioritized {
		cmd.Printf("Promoted: %d (failures %d)\n", summary.Promoted, summary.PromoteFailures)
	}
	cmd.Printf("Duration: %s\n", summary.Duration)
}
