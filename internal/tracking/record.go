// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tracking

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/torrent-monitor/internal/domain"
)

// HistoryCapacity is the number of throughput samples kept per torrent.
const HistoryCapacity = 10

// History is a bounded window of throughput samples, oldest first.
type History []float64

// Push appends sample and drops the oldest samples beyond HistoryCapacity.
// The receiver is never modified.
func (h History) Push(sample float64) History {
	if sample < 0 {
		sample = 0
	}
	start := 0
	if len(h)+1 > HistoryCapacity {
		start = len(h) + 1 - HistoryCapacity
	}
	out := make(History, 0, HistoryCapacity)
	out = append(out, h[start:]...)
	return append(out, sample)
}

// Average returns the mean of the window, or zero when empty.
func (h History) Average() float64 {
	if len(h) == 0 {
		return 0
	}
	var sum float64
	for _, s := range h {
		sum += s
	}
	return sum / float64(len(h))
}

// Samples returns a copy of the window.
func (h History) Samples() []float64 {
	return append([]float64(nil), h...)
}

// Record is the persisted tracking state of one torrent.
type Record struct {
	ExpiresAt         int64           `json:"expiresAt"`
	Bucket            string          `json:"bucket"`
	RawState          domain.RawState `json:"rawState"`
	ProgressBytes     int64           `json:"progressBytes"`
	ThroughputHistory History         `json:"throughputHistory"`
}

// Expiry returns ExpiresAt as a time.
func (r *Record) Expiry() time.Time {
	return time.Unix(r.ExpiresAt, 0)
}

// Expired reports whether now has reached the logical expiry.
func (r *Record) Expired(now time.Time) bool {
	return now.Unix() >= r.ExpiresAt
}

func encodeRecord(rec *Record) ([]byte, error) {
	if rec.ThroughputHistory == nil {
		rec.ThroughputHistory = History{}
	}
	return json.Marshal(rec)
}

func decodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	if rec.ExpiresAt <= 0 {
		return nil, fmt.Errorf("%w: missing expiresAt", ErrCorruptRecord)
	}
	if rec.RawState == "" {
		return nil, fmt.Errorf("%w: missing rawState", ErrCorruptRecord)
	}
	rec.ThroughputHistory = trimHistory(rec.ThroughputHistory)
	return &rec, nil
}

func encodeHistory(h History) ([]byte, error) {
	if h == nil {
		h = History{}
	}
	return json.Marshal(h)
}

func decodeHistory(data []byte) (History, error) {
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	return trimHistory(h), nil
}

func trimHistory(h History) History {
	if len(h) <= HistoryCapacity {
		return h
	}
	return append(History(nil), h[len(h)-HistoryCapacity:]...)
}

// Keyspace namespaces store keys by record layout version so a layout change
// never reads records written by an earlier release.
type Keyspace struct {
	Version string
}

// Record returns the tracking record key for id.
func (k Keyspace) Record(id string) string {
	return k.Version + ":" + id
}

// Throughput returns the standalone throughput history key for id.
func (k Keyspace) Throughput(id string) string {
	return k.Version + ":throughput:" + id
}

// Validate rejects versions that could collide with other key shapes.
func (k Keyspace) Validate() error {
	if strings.TrimSpace(k.Version) == "" {
		return fmt.Errorf("key version must not be empty")
	}
	if strings.Contains(k.Version, ":") {
		return fmt.Errorf("key version %q must not contain ':'", k.Version)
	}
	return nil
}
