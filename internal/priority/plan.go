// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package priority

import (
	"sort"

	"github.com/autobrr/torrent-monitor/internal/domain"
)

// Command moves one torrent to the front of the download queue.
type Command struct {
	JobID string
	Name  string
	Score int
}

// DesiredOrder sorts jobs by score descending, newest first among equal
// scores, then by ID.
func DesiredOrder(jobs []domain.Job, scores map[string]int) []domain.Job {
	out := append([]domain.Job(nil), jobs...)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := scores[out[i].ID], scores[out[j].ID]
		if si != sj {
			return si > sj
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CurrentOrder sorts jobs by their reported queue position.
func CurrentOrder(jobs []domain.Job) []domain.Job {
	out := append([]domain.Job(nil), jobs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].QueuePosition != out[j].QueuePosition {
			return out[i].QueuePosition < out[j].QueuePosition
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Plan returns the move-to-front commands that turn the current queue order
// into the desired order. It returns nothing when the orders already match.
//
// The longest tail of the desired order that already appears in queue order
// is left alone. Every other job is promoted, lowest score first, so the
// highest scoring job ends up at the front.
func Plan(jobs []domain.Job, scores map[string]int) []Command {
	if len(jobs) < 2 {
		return nil
	}

	desired := DesiredOrder(jobs, scores)
	current := CurrentOrder(jobs)

	position := make(map[string]int, len(current))
	for i, j := range current {
		position[j.ID] = i
	}

	// Walk the desired order backwards while positions keep decreasing.
	keep := len(desired)
	next := len(current)
	for keep > 0 {
		pos := position[desired[keep-1].ID]
		if pos >= next {
			break
		}
		next = pos
		keep--
	}

	if keep == 0 {
		return nil
	}

	commands := make([]Command, 0, keep)
	for i := keep - 1; i >= 0; i-- {
		j := desired[i]
		commands = append(commands, Command{JobID: j.ID, Name: j.Name, Score: scores[j.ID]})
	}
	return commands
}
