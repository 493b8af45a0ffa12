// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/torrent-monitor/internal/metrics"
	"github.com/autobrr/torrent-monitor/internal/monitor"
)

func RunMonitorCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitor on its cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd.Context(), *configPath)
		},
	}
}

func runMonitor(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	policy := monitor.NewIntervalPolicy(a.cfg.ReprioritizeInterval, a.cfg.ReprioritizeStartupOnly)
	scheduler, err := monitor.NewScheduler(a.service, policy, a.cfg.MonitorCron)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Run(ctx)
	})

	if a.cfg.MetricsEnabled {
		server := metrics.NewMetricsServer(a.metrics, a.cfg.MetricsHost, a.cfg.MetricsPort, a.cfg.MetricsBasicAuthUsers)
		g.Go(func() error {
			return server.Run(ctx)
		})
	}

	err = g.Wait()
	log.Info().Msg("torrent-monitor stopped")
	return err
}
