// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/autobrr/torrent-monitor/internal/buildinfo"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "torrent-monitor",
		Short: "Evicts stuck qBittorrent torrents and keeps the download queue in score order",
		Long: `torrent-monitor watches a qBittorrent instance on a cron schedule.
Torrents that sit in a stalled, metadata or completed state without progress
for longer than their configured TTL are deleted, and queued downloads are
periodically reordered by score.

Without a subcommand it runs the monitor until interrupted.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd.Context(), configPath)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default: ./config.toml or the user config directory)")
	cmd.SetVersionTemplate(`{{printf "%s" .Version}}` + "\n")

	cmd.AddCommand(
		RunMonitorCommand(&configPath),
		RunOnceCommand(&configPath),
		RunRecordsCommand(&configPath),
		RunVersionCommand(),
	)

	return cmd
}
