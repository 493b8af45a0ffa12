// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/torrent-monitor/internal/domain"
	"github.com/autobrr/torrent-monitor/internal/eviction"
	"github.com/autobrr/torrent-monitor/internal/monitor"
)

// managerAfterPass returns a manager that has recorded one successful pass
// over three torrents with one eviction.
func managerAfterPass(t *testing.T) *Manager {
	t.Helper()

	manager := NewManager()
	manager.PassCompleted(&monitor.PassSummary{
		StartedAt: time.Unix(1_700_000_000, 0),
		Duration:  2 * time.Second,
		Observed:  3,
		States: map[domain.RawState]int{
			domain.StateStalledDl: 2,
			domain.StateUploading: 1,
		},
		Decisions: map[eviction.Decision]int{
			eviction.Evict:   1,
			eviction.Ignored: 2,
		},
		Evicted: 1,
	}, nil)
	return manager
}

func scrape(server *Server, user, pass string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestNewMetricsServerAddrAndUsers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		host      string
		port      int
		users     string
		wantAddr  string
		wantUsers map[string]string
	}{
		{
			name:      "no auth",
			host:      "127.0.0.1",
			port:      9074,
			wantAddr:  "127.0.0.1:9074",
			wantUsers: map[string]string{},
		},
		{
			name:      "ipv6 host",
			host:      "::1",
			port:      9074,
			wantAddr:  "[::1]:9074",
			wantUsers: map[string]string{},
		},
		{
			name:      "user list with noise",
			host:      "0.0.0.0",
			port:      9100,
			users:     " prometheus:secret , broken, grafana:p:w ",
			wantAddr:  "0.0.0.0:9100",
			wantUsers: map[string]string{"prometheus": "secret", "grafana": "p:w"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := NewMetricsServer(NewManager(), tt.host, tt.port, tt.users)
			assert.Equal(t, tt.wantAddr, server.server.Addr)
			assert.Equal(t, tt.wantUsers, server.basicAuthUsers)
		})
	}
}

func TestMetricsServerServesPassMetrics(t *testing.T) {
	t.Parallel()

	server := NewMetricsServer(managerAfterPass(t), "localhost", 9074, "")

	rec := scrape(server, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `torrent_monitor_passes_total{result="success"} 1`)
	assert.Contains(t, body, `torrent_monitor_decisions_total{decision="evict"} 1`)
	assert.Contains(t, body, `torrent_monitor_commands_total{command="delete",result="success"} 1`)
	assert.Contains(t, body, `torrent_monitor_torrents{state="stalledDL"} 2`)
	assert.Contains(t, body, `torrent_monitor_torrents{state="uploading"} 1`)
	assert.Contains(t, body, "torrent_monitor_observed_torrents 3")
	assert.Contains(t, body, "torrent_monitor_last_pass_timestamp_seconds 1.7e+09")
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsServerGuardsMetricsWithBasicAuth(t *testing.T) {
	t.Parallel()

	server := NewMetricsServer(managerAfterPass(t), "localhost", 9074, "prometheus:secret")

	rec := scrape(server, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "torrent_monitor_")

	rec = scrape(server, "prometheus", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = scrape(server, "prometheus", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `torrent_monitor_passes_total{result="success"} 1`)
	assert.Contains(t, rec.Body.String(), `torrent_monitor_torrents{state="stalledDL"} 2`)
}

func TestMetricsServerHealthSkipsAuth(t *testing.T) {
	t.Parallel()

	server := NewMetricsServer(NewManager(), "localhost", 9074, "prometheus:secret")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	rec = httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsServerRunStopsOnCancel(t *testing.T) {
	server := NewMetricsServer(NewManager(), "127.0.0.1", 0, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
