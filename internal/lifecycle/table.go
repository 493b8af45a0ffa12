// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package lifecycle maps raw qBittorrent states onto monitored lifecycle buckets.
package lifecycle

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/autobrr/torrent-monitor/internal/domain"
)

const (
	BucketCompleted = "completed"
	BucketStalled   = "stalled"
	BucketMetadata  = "metadata"
)

// DefaultTTL is how long a torrent may sit in any default bucket without activity.
const DefaultTTL = 24 * time.Hour

// Rule assigns a raw state to a bucket and TTL.
type Rule struct {
	State  domain.RawState
	Bucket string
	TTL    time.Duration
}

// Table is an immutable raw state lookup. A nil Table tracks nothing.
type Table struct {
	rules map[domain.RawState]Rule
}

// DefaultRules mirrors the states the monitor has always tracked.
func DefaultRules() []Rule {
	return []Rule{
		{State: domain.StateCompleted, Bucket: BucketCompleted, TTL: DefaultTTL},
		{State: domain.StateUploading, Bucket: BucketCompleted, TTL: DefaultTTL},
		{State: domain.StateStalledUp, Bucket: BucketCompleted, TTL: DefaultTTL},
		{State: domain.StatePausedUp, Bucket: BucketCompleted, TTL: DefaultTTL},
		{State: domain.StateStoppedUp, Bucket: BucketCompleted, TTL: DefaultTTL},
		{State: domain.StateQueuedUp, Bucket: BucketCompleted, TTL: DefaultTTL},
		{State: domain.StateStalledDl, Bucket: BucketStalled, TTL: DefaultTTL},
		{State: domain.StateMetaDl, Bucket: BucketMetadata, TTL: DefaultTTL},
	}
}

// New compiles rules into a Table. A state may appear once; states sharing a
// bucket may carry different TTLs.
func New(rules []Rule) (*Table, error) {
	t := &Table{rules: make(map[domain.RawState]Rule, len(rules))}

	for _, rule := range rules {
		rule.State = domain.RawState(strings.TrimSpace(string(rule.State)))
		rule.Bucket = strings.TrimSpace(rule.Bucket)

		if rule.State == "" {
			return nil, fmt.Errorf("tracked state with empty name")
		}
		if rule.Bucket == "" {
			return nil, fmt.Errorf("tracked state %q has no bucket", rule.State)
		}
		if rule.TTL <= 0 {
			return nil, fmt.Errorf("tracked state %q has non-positive ttl %s", rule.State, rule.TTL)
		}
		if existing, ok := t.rules[rule.State]; ok {
			return nil, fmt.Errorf("tracked state %q mapped twice (buckets %q and %q)", rule.State, existing.Bucket, rule.Bucket)
		}
		t.rules[rule.State] = rule
	}

	return t, nil
}

// MustNew is New for static tables.
func MustNew(rules []Rule) *Table {
	t, err := New(rules)
	if err != nil {
		panic(err)
	}
	return t
}

// FromConfig builds the table from configured states, falling back to
// DefaultRules when none are configured.
func FromConfig(states []domain.TrackedState) (*Table, error) {
	if len(states) == 0 {
		return New(DefaultRules())
	}

	rules := make([]Rule, 0, len(states))
	for _, s := range states {
		rules = append(rules, Rule{
			State:  domain.RawState(s.State),
			Bucket: s.Bucket,
			TTL:    s.TTL,
		})
	}
	return New(rules)
}

// Classify returns the rule for state. Unknown states are untracked.
func (t *Table) Classify(state domain.RawState) (Rule, bool) {
	if t == nil {
		return Rule{}, false
	}
	rule, ok := t.rules[state]
	return rule, ok
}

// Rules returns the compiled rules sorted by bucket then state.
func (t *Table) Rules() []Rule {
	if t == nil {
		return nil
	}
	out := make([]Rule, 0, len(t.rules))
	for _, rule := range t.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bucket != out[j].Bucket {
			return out[i].Bucket < out[j].Bucket
		}
		return out[i].State < out[j].State
	})
	return out
}
