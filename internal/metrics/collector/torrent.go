// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package collector

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// TorrentCollector reports the qBittorrent snapshot seen by the latest pass.
type TorrentCollector struct {
	mu     sync.RWMutex
	states map[string]int
	seen   bool

	torrentsByStateDesc *prometheus.Desc
	observedDesc        *prometheus.Desc
}

func NewTorrentCollector() *TorrentCollector {
	return &TorrentCollector{
		torrentsByStateDesc: prometheus.NewDesc(
			namespace+"_torrents",
			"Number of torrents by qBittorrent state in the latest snapshot",
			[]string{"state"},
			nil,
		),
		observedDesc: prometheus.NewDesc(
			namespace+"_observed_torrents",
			"Number of torrents in the latest snapshot",
			nil,
			nil,
		),
	}
}

// Update replaces the snapshot counts.
func (c *TorrentCollector) Update(states map[string]int) {
	next := make(map[string]int, len(states))
	for state, n := range states {
		next[state] = n
	}

	c.mu.Lock()
	c.states = next
	c.seen = true
	c.mu.Unlock()
}

func (c *TorrentCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.torrentsByStateDesc
	ch <- c.observedDesc
}

func (c *TorrentCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.seen {
		return
	}

	states := make([]string, 0, len(c.states))
	total := 0
	for state, n := range c.states {
		states = append(states, state)
		total += n
	}
	sort.Strings(states)

	for _, state := range states {
		ch <- prometheus.MustNewConstMetric(c.torrentsByStateDesc, prometheus.GaugeValue, float64(c.states[state]), state)
	}
	ch <- prometheus.MustNewConstMetric(c.observedDesc, prometheus.GaugeValue, float64(total))
}
