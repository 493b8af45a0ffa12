// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package monitor

import (
	"context"
	"errors"
)

var (
	// ErrAuthentication aborts a pass before the tracking store is touched.
	ErrAuthentication = errors.New("monitor: authentication failed")
	// ErrFetch aborts a pass when the torrent snapshot cannot be read.
	ErrFetch = errors.New("monitor: torrent snapshot failed")
	// ErrStoreUnavailable aborts a pass; torrent state is never assumed.
	ErrStoreUnavailable = errors.New("monitor: tracking store unavailable")
	// ErrPassInProgress is returned when a pass is requested while one runs.
	ErrPassInProgress = errors.New("monitor: pass already in progress")
)

const (
	ResultSuccess          = "success"
	ResultAuthFailed       = "auth_failed"
	ResultFetchFailed      = "fetch_failed"
	ResultStoreUnavailable = "store_unavailable"
	ResultCanceled         = "canceled"
	ResultSkipped          = "skipped"
	ResultError            = "error"
)

// Result maps a RunPass error onto a short label for logs and metrics.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, ErrAuthentication):
		return ResultAuthFailed
	case errors.Is(err, ErrFetch):
		return ResultFetchFailed
	case errors.Is(err, ErrStoreUnavailable):
		return ResultStoreUnavailable
	case errors.Is(err, ErrPassInProgress):
		return ResultSkipped
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultCanceled
	default:
		return ResultError
	}
}
