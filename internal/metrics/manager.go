// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/torrent-monitor/internal/eviction"
	"github.com/autobrr/torrent-monitor/internal/metrics/collector"
	"github.com/autobrr/torrent-monitor/internal/monitor"
)

var decisions = []eviction.Decision{eviction.Ignored, eviction.TrackingStarted, eviction.TrackingReset, eviction.Evict}

type Manager struct {
	registry         *prometheus.Registry
	passCollector    *collector.PassCollector
	torrentCollector *collector.TorrentCollector
}

func NewManager() *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	passCollector := collector.NewPassCollector(registry)
	torrentCollector := collector.NewTorrentCollector()
	registry.MustRegister(torrentCollector)

	log.Debug().Msg("metrics: manager initialized")

	return &Manager{
		registry:         registry,
		passCollector:    passCollector,
		torrentCollector: torrentCollector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// PassCompleted implements monitor.Recorder.
func (m *Manager) PassCompleted(summary *monitor.PassSummary, err error) {
	result := monitor.Result(err)
	if summary == nil {
		m.passCollector.ObservePass(result, time.Time{}, 0)
		return
	}

	m.passCollector.ObservePass(result, summary.StartedAt, summary.Duration)

	for _, d := range decisions {
		m.passCollector.AddDecisions(d.String(), summary.Count(d))
	}

	deleteOK := summary.Evicted - summary.DeleteFailures
	if summary.DryRun {
		m.passCollector.AddCommands("delete", "dry_run", summary.Evicted)
	} else {
		m.passCollector.AddCommands("delete", "success", deleteOK)
		m.passCollector.AddCommands("delete", "failure", summary.DeleteFailures)
	}
	m.passCollector.AddCommands("promote", "success", summary.Promoted)
	m.passCollector.AddCommands("promote", "failure", summary.PromoteFailures)

	if summary.Observed > 0 || err == nil {
		states := make(map[string]int, len(summary.States))
		for state, n := range summary.States {
			states[string(state)] = n
		}
		m.torrentCollector.Update(states)
	}
}
