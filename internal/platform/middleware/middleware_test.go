// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/platform/ctxutil"
	"github.com/taibuivan/unpuff/internal/platform/middleware"
	"github.com/taibuivan/unpuff/internal/platform/sec"
)

// # Helpers

type verifierFunc func(ctx context.Context, token string) (*sec.AuthClaims, error)

func (f verifierFunc) VerifyAccessToken(ctx context.Context, token string) (*sec.AuthClaims, error) {
	return f(ctx, token)
}

// echoUser writes the authenticated user ID, or "anonymous".
var echoUser = http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
	claims := ctxutil.GetAuthUser(request.Context())
	if claims == nil {
		_, _ = writer.Write([]byte("anonymous"))
		return
	}
	_, _ = writer.Write([]byte(claims.UserID + ":" + ctxutil.GetAccessToken(request.Context())))
})

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
	return body.Code
}

// # Authentication

func TestAuthenticate(t *testing.T) {
	verifier := verifierFunc(func(_ context.Context, token string) (*sec.AuthClaims, error) {
		if token != "good" {
			return nil, apperr.Unauthorized("Session expired")
		}
		return &sec.AuthClaims{UserID: "acc-1", Username: "alice"}, nil
	})
	handler := middleware.Authenticate(verifier)(echoUser)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "no_header", header: "", wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "valid", header: "Bearer good", wantStatus: http.StatusOK, wantBody: "acc-1:good"},
		{name: "scheme_is_case_insensitive", header: "bearer good", wantStatus: http.StatusOK, wantBody: "acc-1:good"},
		{name: "wrong_scheme", header: "Basic good", wantStatus: http.StatusUnauthorized},
		{name: "missing_token", header: "Bearer", wantStatus: http.StatusUnauthorized},
		{name: "rejected_token", header: "Bearer revoked", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, recorder.Body.String())
			} else {
				assert.Equal(t, apperr.CodeUnauthorized, errorCode(t, recorder))
			}
		})
	}
}

func TestRequireAuth_RejectsAnonymous(t *testing.T) {
	recorder := httptest.NewRecorder()

	middleware.RequireAuth(echoUser).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, apperr.CodeUnauthorized, errorCode(t, recorder))
}

// # Rate Limiting

func TestRateLimiter_PerClientBurst(t *testing.T) {
	limiter := middleware.NewRateLimiter(t.Context(), 0.001, 2)
	handler := limiter.Handler(echoUser)

	hit := func(ip string) *httptest.ResponseRecorder {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.Header.Set("X-Real-IP", ip)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)

	limited := hit("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))
	assert.Equal(t, apperr.CodeRateLimited, errorCode(t, limited))

	assert.Equal(t, http.StatusOK, hit("10.0.0.2").Code, "other clients keep their own bucket")
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "real_ip_header", headers: map[string]string{"X-Real-IP": "1.1.1.1", "X-Forwarded-For": "2.2.2.2"}, remote: "3.3.3.3:1", want: "1.1.1.1"},
		{name: "first_forwarded", headers: map[string]string{"X-Forwarded-For": " 2.2.2.2 , 4.4.4.4"}, remote: "3.3.3.3:1", want: "2.2.2.2"},
		{name: "remote_addr", remote: "3.3.3.3:1234", want: "3.3.3.3"},
		{name: "remote_addr_without_port", remote: "3.3.3.3", want: "3.3.3.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			request.RemoteAddr = tt.remote
			for name, value := range tt.headers {
				request.Header.Set(name, value)
			}

			assert.Equal(t, tt.want, middleware.RealIP(request))
		})
	}
}

// # CORS

type corsConfig struct {
	development bool
	suffix      string
}

func (c corsConfig) IsDevelopment() bool  { return c.development }
func (c corsConfig) OriginSuffix() string { return c.suffix }

func TestCORS(t *testing.T) {
	tests := []struct {
		name      string
		cfg       corsConfig
		origin    string
		wantAllow string
	}{
		{name: "development_allows_any", cfg: corsConfig{development: true}, origin: "http://localhost:5173", wantAllow: "http://localhost:5173"},
		{name: "suffix_match", cfg: corsConfig{suffix: ".unpuff.app"}, origin: "https://web.unpuff.app", wantAllow: "https://web.unpuff.app"},
		{name: "suffix_mismatch", cfg: corsConfig{suffix: ".unpuff.app"}, origin: "https://evil.example", wantAllow: ""},
		{name: "empty_suffix_denies", cfg: corsConfig{}, origin: "https://web.unpuff.app", wantAllow: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
			request.Header.Set("Origin", tt.origin)
			recorder := httptest.NewRecorder()

			middleware.CORS(tt.cfg)(echoUser).ServeHTTP(recorder, request)

			assert.Equal(t, http.StatusNoContent, recorder.Code)
			assert.Equal(t, tt.wantAllow, recorder.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestPanicRecovery(t *testing.T) {
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	recorder := httptest.NewRecorder()

	middleware.PanicRecovery()(boom).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, apperr.CodeInternal, errorCode(t, recorder))
}
