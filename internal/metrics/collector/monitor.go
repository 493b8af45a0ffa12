// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package collector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "torrent_monitor"

type PassCollector struct {
	PassesTotal    *prometheus.CounterVec
	DecisionsTotal *prometheus.CounterVec
	CommandsTotal  *prometheus.CounterVec
	PassDuration   prometheus.Histogram
	LastPass       prometheus.Gauge
}

func NewPassCollector(r *prometheus.Registry) *PassCollector {
	m := &PassCollector{
		PassesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Total number of monitor passes by result",
		}, []string{"result"}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of eviction decisions by outcome",
		}, []string{"decision"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of delete and promote commands sent to qBittorrent",
		}, []string{"command", "result"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of monitor passes",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LastPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_pass_timestamp_seconds",
			Help:      "Unix time the last monitor pass started",
		}),
	}

	r.MustRegister(m.PassesTotal)
	r.MustRegister(m.DecisionsTotal)
	r.MustRegister(m.CommandsTotal)
	r.MustRegister(m.PassDuration)
	r.MustRegister(m.LastPass)
	return m
}

func (m *PassCollector) ObservePass(result string, started time.Time, duration time.Duration) {
	m.PassesTotal.WithLabelValues(result).Inc()
	m.PassDuration.Observe(duration.Seconds())
	if !started.IsZero() {
		m.LastPass.Set(float64(started.Unix()))
	}
}

func (m *PassCollector) AddDecisions(decision string, n int) {
	if n <= 0 {
		return
	}
	m.DecisionsTotal.WithLabelValues(decision).Add(float64(n))
}

func (m *PassCollector) AddCommands(command, result string, n int) {
	if n <= 0 {
		return
	}
	m.CommandsTotal.WithLabelValues(command, result).Add(float64(n))
}
