// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"strings"
	"time"
)

// RawState is the literal status string qBittorrent reports for a torrent.
type RawState string

const (
	StateError              RawState = "error"
	StateMissingFiles       RawState = "missingFiles"
	StateUploading          RawState = "uploading"
	StatePausedUp           RawState = "pausedUP"
	StateStoppedUp          RawState = "stoppedUP"
	StateQueuedUp           RawState = "queuedUP"
	StateStalledUp          RawState = "stalledUP"
	StateCheckingUp         RawState = "checkingUP"
	StateForcedUp           RawState = "forcedUP"
	StateAllocating         RawState = "allocating"
	StateDownloading        RawState = "downloading"
	StateMetaDl             RawState = "metaDL"
	StateForcedMetaDl       RawState = "forcedMetaDL"
	StatePausedDl           RawState = "pausedDL"
	StateStoppedDl          RawState = "stoppedDL"
	StateQueuedDl           RawState = "queuedDL"
	StateStalledDl          RawState = "stalledDL"
	StateCheckingDl         RawState = "checkingDL"
	StateForcedDl           RawState = "forcedDL"
	StateCheckingResumeData RawState = "checkingResumeData"
	StateMoving             RawState = "moving"
	StateUnknown            RawState = "unknown"

	// StateCompleted is not reported by current qBittorrent releases but was
	// tracked by earlier deployments and stays in the default table.
	StateCompleted RawState = "completed"
)

// Job is one torrent as observed in a single monitor pass.
type Job struct {
	ID            string
	Name          string
	State         RawState
	ProgressBytes int64
	Throughput    float64
	Tags          []string
	Privileged    bool
	CreatedAt     time.Time

	// QueuePosition is the torrent's position in the download queue, 1-based.
	// Zero or negative means the torrent is not queued.
	QueuePosition int64
}

// HasTag reports whether the job carries tag, ignoring case and surrounding space.
func (j Job) HasTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false
	}
	for _, t := range j.Tags {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}

// Queued reports whether the job currently holds a download queue position.
func (j Job) Queued() bool {
	return j.QueuePosition > 0
}

// ParseTags splits qBittorrent's comma separated tag list.
func ParseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		tags = append(tags, trimmed)
	}
	return tags
}
