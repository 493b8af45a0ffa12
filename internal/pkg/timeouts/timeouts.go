// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package timeouts holds the bounds applied to every external call of a monitor pass.
package timeouts

import (
	"context"
	"time"
)

const (
	// API bounds a single qBittorrent Web API request.
	API = 30 * time.Second
	// Store bounds a single tracking store command.
	Store = 5 * time.Second
	// LoginBackoff is the delay between login attempts.
	LoginBackoff = 2 * time.Second
)

// WithAPITimeout derives a context bounded by API.
func WithAPITimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return bounded(ctx, API)
}

// WithStoreTimeout derives a context bounded by Store.
func WithStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return bounded(ctx, Store)
}

func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, d)
}
