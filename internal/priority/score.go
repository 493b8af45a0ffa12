// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package priority scores torrents and plans the queue moves that bring
// qBittorrent's download queue into score order.
package priority

import (
	"math"

	"github.com/autobrr/torrent-monitor/internal/domain"
	"github.com/autobrr/torrent-monitor/internal/tracking"
)

// Weights are the additive scoring factors.
type Weights struct {
	PriorityTag      string
	PriorityTagBonus int
	PrivilegedBonus  int
	ActiveBonus      int
	MetadataBonus    int
	// ThroughputStep is the average bytes/s worth one point.
	ThroughputStep float64
	ThroughputCap  int
}

// DefaultWeights returns the production scoring factors.
func DefaultWeights() Weights {
	return Weights{
		PriorityTag:      "priority",
		PriorityTagBonus: 1000,
		PrivilegedBonus:  200,
		ActiveBonus:      500,
		MetadataBonus:    250,
		ThroughputStep:   100 * 1024,
		ThroughputCap:    100,
	}
}

// Scorer computes torrent scores.
type Scorer struct {
	weights Weights
}

func NewScorer(weights Weights) *Scorer {
	if weights.ThroughputStep <= 0 {
		weights.ThroughputStep = DefaultWeights().ThroughputStep
	}
	return &Scorer{weights: weights}
}

// Score sums the bonuses that apply to job plus the throughput term derived
// from the trailing average of samples.
func (s *Scorer) Score(job domain.Job, samples []float64) int {
	score := 0

	if s.weights.PriorityTag != "" && job.HasTag(s.weights.PriorityTag) {
		score += s.weights.PriorityTagBonus
	}
	if job.Privileged {
		score += s.weights.PrivilegedBonus
	}

	switch job.State {
	case domain.StateDownloading, domain.StateForcedDl:
		score += s.weights.ActiveBonus
	case domain.StateMetaDl, domain.StateForcedMetaDl:
		score += s.weights.MetadataBonus
	}

	return score + s.throughputPoints(samples)
}

func (s *Scorer) throughputPoints(samples []float64) int {
	if len(samples) == 0 {
		return 0
	}
	if len(samples) > tracking.HistoryCapacity {
		samples = samples[len(samples)-tracking.HistoryCapacity:]
	}

	var sum float64
	for _, v := range samples {
		sum += v
	}
	avg := sum / float64(len(samples))
	if avg <= 0 {
		return 0
	}

	points := math.Floor(avg / s.weights.ThroughputStep)
	if s.weights.ThroughputCap >= 0 && points > float64(s.weights.ThroughputCap) {
		return s.weights.ThroughputCap
	}
	return int(points)
}
