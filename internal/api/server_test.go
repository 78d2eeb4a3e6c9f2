// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/unpuff/internal/account"
	"github.com/taibuivan/unpuff/internal/api"
	"github.com/taibuivan/unpuff/internal/platform/config"
	"github.com/taibuivan/unpuff/internal/platform/metrics"
	"github.com/taibuivan/unpuff/internal/profile"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T, deps api.HealthDependencies) http.Handler {
	t.Helper()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	liveness, readiness := api.NewHealthHandlers(deps, discardLogger())

	accountService := account.NewService(nil, nil, nil, nil, collector, account.Settings{})
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   metrics.Handler(registry),
		Account:   account.NewHandler(accountService),
		Profile:   profile.NewHandler(profile.NewService(nil, collector)),
	}

	cfg := &config.Config{ServerPort: "0", Environment: "development"}
	return api.NewServer(t.Context(), cfg, discardLogger(), accountService, collector, handlers).Handler()
}

func get(handler http.Handler, target string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))
	return recorder
}

func TestServer_Health(t *testing.T) {
	recorder := get(newServer(t, api.HealthDependencies{}), "/health")

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Readiness(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	broken := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		deps       api.HealthDependencies
		wantStatus int
		wantBody   string
	}{
		{"all_healthy", api.HealthDependencies{CheckDatabase: healthy, CheckCache: healthy}, http.StatusOK, "ready"},
		{"redis_down", api.HealthDependencies{CheckDatabase: healthy, CheckCache: broken}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := get(newServer(t, tt.deps), "/ready")
			assert.Equal(t, tt.wantStatus, recorder.Code)

			var body struct {
				Status string `json:"status"`
				Checks []struct {
					Name string `json:"name"`
					OK   bool   `json:"ok"`
				} `json:"checks"`
			}
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
			assert.Equal(t, tt.wantBody, body.Status)
			assert.Len(t, body.Checks, 2)
		})
	}
}

func TestServer_ProtectedRoutesRequireToken(t *testing.T) {
	server := newServer(t, api.HealthDependencies{})

	for _, target := range []string{"/api/auth/session", "/api/profile"} {
		t.Run(target, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, get(server, target).Code)
		})
	}
}

func TestServer_MetricsCountsRequests(t *testing.T) {
	server := newServer(t, api.HealthDependencies{})
	get(server, "/health")

	recorder := get(server, "/metrics")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "unpuff_http_requests_total")
}
