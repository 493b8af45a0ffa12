// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"time"

	qbt "github.com/autobrr/go-qbittorrent"

	"github.com/autobrr/torrent-monitor/internal/domain"
)

// ToJob converts a Web API torrent into a monitor observation.
func ToJob(t qbt.Torrent) domain.Job {
	job := domain.Job{
		ID:            t.Hash,
		Name:          t.Name,
		State:         domain.RawState(t.State),
		ProgressBytes: t.Downloaded,
		Throughput:    float64(t.DlSpeed),
		Tags:          domain.ParseTags(t.Tags),
		Privileged:    t.ForceStart,
		QueuePosition: t.Priority,
	}
	if t.AddedOn > 0 {
		job.CreatedAt = time.Unix(t.AddedOn, 0)
	}
	if job.Throughput < 0 {
		job.Throughput = 0
	}
	return job
}
