// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/unpuff/internal/identity"
	"github.com/taibuivan/unpuff/internal/platform/apiclient"
	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/platform/constants"
	"github.com/taibuivan/unpuff/internal/platform/kv"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var issuedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// # Fixtures

func writeJSON(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(body)
}

func account(token string) map[string]any {
	body := map[string]any{"id": "acc-1", "username": "sam", "createdAt": issuedAt}
	if token != "" {
		body["token"] = token
	}
	return body
}

// newClient wires an HTTPClient to mux and returns the store it persists into.
func newClient(t *testing.T, mux http.Handler, launcher identity.Launcher) (*identity.HTTPClient, *kv.MemoryStore) {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	store := kv.NewMemoryStore()
	api := apiclient.New(server.URL+"/api", time.Second)
	return identity.NewHTTPClient(api, store, launcher, discard, identity.WithPasswordMinLength(6)), store
}

func seedSession(t *testing.T, store kv.Store) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), constants.StorageKeyAuth,
		[]byte(`{"userId":"acc-1","username":"sam","token":"tok-1"}`)))
}

func recordChanges(client *identity.HTTPClient) *[]*identity.Session {
	var pushed []*identity.Session
	client.SubscribeSessionChanges(func(session *identity.Session) {
		pushed = append(pushed, session)
	})
	return &pushed
}

// # Login

func TestLogin_PersistsAndPublishes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(writer http.ResponseWriter, request *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(request.Body).Decode(&body))
		assert.Equal(t, "sam", body["username"])
		assert.Equal(t, "secret1", body["password"])
		writeJSON(writer, http.StatusOK, account("tok-1"))
	})

	client, store := newClient(t, mux, nil)
	pushed := recordChanges(client)

	session, err := client.Login(context.Background(), identity.Credential{Identifier: " sam ", Secret: "secret1"})
	require.NoError(t, err)

	assert.Equal(t, "acc-1", session.Subject)
	assert.Equal(t, "sam", session.Handle)
	assert.Equal(t, "tok-1", session.Token)
	assert.True(t, session.CreatedAt.Equal(issuedAt))

	raw, err := store.Get(context.Background(), constants.StorageKeyAuth)
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"acc-1","username":"sam","token":"tok-1"}`, string(raw))

	require.Len(t, *pushed, 1)
	assert.True(t, identity.Same(session, (*pushed)[0]))
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     any
		wantCode string
	}{
		{"untyped_unauthorized", http.StatusUnauthorized, map[string]string{"message": "nope"}, apperr.CodeInvalidCredentials},
		{"untyped_bad_request", http.StatusBadRequest, nil, apperr.CodeInvalidCredentials},
		{"typed_unconfirmed", http.StatusForbidden, map[string]string{"message": "confirm", "code": apperr.CodeUnconfirmedAccount}, apperr.CodeUnconfirmedAccount},
		{"untyped_forbidden", http.StatusForbidden, map[string]string{"message": "confirm"}, apperr.CodeUnconfirmedAccount},
		{"server_error", http.StatusInternalServerError, nil, apperr.CodeTransportFailure},
		{"rate_limited", http.StatusTooManyRequests, map[string]string{"message": "slow", "code": apperr.CodeRateLimited}, apperr.CodeRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/auth/login", func(writer http.ResponseWriter, _ *http.Request) {
				if tt.body == nil {
					writer.WriteHeader(tt.status)
					return
				}
				writeJSON(writer, tt.status, tt.body)
			})

			client, store := newClient(t, mux, nil)

			session, err := client.Login(context.Background(), identity.Credential{Identifier: "sam", Secret: "secret1"})
			assert.Nil(t, session)
			assert.True(t, apperr.HasCode(err, tt.wantCode), "got %v", err)

			_, err = store.Get(context.Background(), constants.StorageKeyAuth)
			assert.ErrorIs(t, err, kv.ErrNotFound)
		})
	}
}

func TestLogin_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := identity.NewHTTPClient(apiclient.New(server.URL, time.Second), kv.NewMemoryStore(), nil, discard)

	_, err := client.Login(context.Background(), identity.Credential{Identifier: "sam", Secret: "secret1"})
	assert.True(t, apperr.HasCode(err, apperr.CodeTransportFailure))
}

// # Signup

func TestSignup_WeakPasswordNeverReachesNetwork(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(http.ResponseWriter, *http.Request) { calls.Add(1) })

	client, _ := newClient(t, mux, nil)

	_, err := client.Signup(context.Background(), identity.Credential{Identifier: "sam", Secret: "12345"}, "")

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, apperr.CodeWeakCredential, appError.Code)
	assert.Contains(t, appError.Message, "6")
	assert.Zero(t, calls.Load())
}

func TestSignup_ShortUsername(t *testing.T) {
	client, _ := newClient(t, http.NewServeMux(), nil)

	_, err := client.Signup(context.Background(), identity.Credential{Identifier: "sa", Secret: "secret1"}, "")
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

func TestSignup_EmailDerivesUsername(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/signup", func(writer http.ResponseWriter, request *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(request.Body).Decode(&body))
		assert.Equal(t, "sam.doe+quit@example.com", body["email"])
		assert.Equal(t, "sam_doe", body["username"])
		assert.Equal(t, "Sam", body["displayName"])
		writeJSON(writer, http.StatusCreated, account("tok-1"))
	})

	client, _ := newClient(t, mux, nil)

	session, err := client.Signup(context.Background(), identity.Credential{Identifier: "sam.doe+quit@example.com", Secret: "secret1"}, " Sam ")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", session.Subject)
}

func TestSignup_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     map[string]string
		wantCode string
	}{
		{"typed_conflict", http.StatusConflict, map[string]string{"message": "taken", "code": apperr.CodeAccountExists}, apperr.CodeAccountExists},
		{"untyped_bad_request", http.StatusBadRequest, map[string]string{"message": "bad"}, apperr.CodeAccountExists},
		{"typed_weak", http.StatusBadRequest, map[string]string{"message": "weak", "code": apperr.CodeWeakCredential}, apperr.CodeWeakCredential},
		{"awaiting_confirmation", http.StatusForbidden, map[string]string{"message": "check email", "code": apperr.CodeUnconfirmedAccount}, apperr.CodeUnconfirmedAccount},
		{"gateway", http.StatusBadGateway, nil, apperr.CodeTransportFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/auth/signup", func(writer http.ResponseWriter, _ *http.Request) {
				if tt.body == nil {
					writer.WriteHeader(tt.status)
					return
				}
				writeJSON(writer, tt.status, tt.body)
			})

			client, _ := newClient(t, mux, nil)

			_, err := client.Signup(context.Background(), identity.Credential{Identifier: "sam", Secret: "secret1"}, "")
			assert.True(t, apperr.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

// # Session

func TestGetSession_NothingPersisted(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(http.ResponseWriter, *http.Request) { calls.Add(1) })

	client, _ := newClient(t, mux, nil)

	session, err := client.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Zero(t, calls.Load())
}

func TestGetSession_Valid(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/session", func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "acc-1", request.URL.Query().Get("userId"))
		assert.Equal(t, "Bearer tok-1", request.Header.Get("Authorization"))
		writeJSON(writer, http.StatusOK, account(""))
	})

	client, store := newClient(t, mux, nil)
	seedSession(t, store)

	session, err := client.GetSession(context.Background())
	require.NoError(t, err)
	require.True(t, session.Valid())
	assert.Equal(t, "tok-1", session.Token)
}

func TestGetSession_ExpiredPurges(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusNotFound} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /api/auth/session", func(writer http.ResponseWriter, _ *http.Request) {
				writeJSON(writer, status, map[string]string{"message": "gone"})
			})

			client, store := newClient(t, mux, nil)
			seedSession(t, store)
			pushed := recordChanges(client)

			session, err := client.GetSession(context.Background())
			require.NoError(t, err)
			assert.Nil(t, session)

			_, err = store.Get(context.Background(), constants.StorageKeyAuth)
			assert.ErrorIs(t, err, kv.ErrNotFound)
			require.Len(t, *pushed, 1)
			assert.Nil(t, (*pushed)[0])
		})
	}
}

func TestGetSession_UnreachableKeepsLocalCopy(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	store := kv.NewMemoryStore()
	seedSession(t, store)
	client := identity.NewHTTPClient(apiclient.New(server.URL, time.Second), store, nil, discard)

	session, err := client.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)

	restored := client.Restore(context.Background())
	require.NotNil(t, restored)
	assert.Equal(t, "acc-1", restored.Subject)
}

func TestGetSession_ServerFailureKeepsLocalCopy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]string
	}{
		{name: "rate_limited", status: http.StatusTooManyRequests, body: map[string]string{"message": "busy", "code": apperr.CodeRateLimited}},
		{name: "server_error", status: http.StatusInternalServerError, body: map[string]string{"message": "boom", "code": apperr.CodeInternal}},
		{name: "unavailable", status: http.StatusServiceUnavailable, body: map[string]string{"message": "down"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /api/auth/session", func(writer http.ResponseWriter, _ *http.Request) {
				writeJSON(writer, tt.status, tt.body)
			})

			client, store := newClient(t, mux, nil)
			seedSession(t, store)
			pushed := recordChanges(client)

			session, err := client.GetSession(context.Background())
			require.NoError(t, err)
			assert.Nil(t, session)

			_, err = store.Get(context.Background(), constants.StorageKeyAuth)
			assert.NoError(t, err)
			assert.Empty(t, *pushed)
			require.NotNil(t, client.Restore(context.Background()))
		})
	}
}

func TestRestore_CorruptRecordIsRemoved(t *testing.T) {
	client, store := newClient(t, http.NewServeMux(), nil)
	require.NoError(t, store.Set(context.Background(), constants.StorageKeyAuth, []byte(`{"userId":`)))

	assert.Nil(t, client.Restore(context.Background()))

	_, err := store.Get(context.Background(), constants.StorageKeyAuth)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

// # Sign Out

func TestSignOut_LocalClearSurvivesRemoteFailure(t *testing.T) {
	var revoked atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/logout", func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "Bearer tok-1", request.Header.Get("Authorization"))
		revoked.Store(true)
		writer.WriteHeader(http.StatusInternalServerError)
	})

	client, store := newClient(t, mux, nil)
	seedSession(t, store)
	pushed := recordChanges(client)

	require.NoError(t, client.SignOut(context.Background()))

	assert.True(t, revoked.Load())
	assert.Nil(t, client.Restore(context.Background()))
	require.Len(t, *pushed, 1)
	assert.Nil(t, (*pushed)[0])
}

func TestSignOut_WithoutSession(t *testing.T) {
	client, _ := newClient(t, http.NewServeMux(), nil)
	assert.NoError(t, client.SignOut(context.Background()))
}

// # OAuth

func TestStartOAuth(t *testing.T) {
	var opened string
	launcher := identity.LauncherFunc(func(_ context.Context, target string) error {
		opened = target
		return nil
	})

	client, _ := newClient(t, http.NewServeMux(), launcher)

	require.NoError(t, client.StartOAuth(context.Background(), "Google", "unpuff://auth/callback"))
	assert.Contains(t, opened, "/api/auth/oauth/google/start?redirect_to=unpuff%3A%2F%2Fauth%2Fcallback")
}

func TestStartOAuth_LaunchFailure(t *testing.T) {
	launcher := identity.LauncherFunc(func(context.Context, string) error {
		return errors.New("no browser")
	})

	client, _ := newClient(t, http.NewServeMux(), launcher)

	err := client.StartOAuth(context.Background(), "google", "")
	assert.True(t, apperr.HasCode(err, apperr.CodeTransportFailure))

	client, _ = newClient(t, http.NewServeMux(), nil)
	err = client.StartOAuth(context.Background(), "google", "")
	assert.True(t, apperr.HasCode(err, apperr.CodeTransportFailure))
}

// # Callback

func TestCompleteAuthCallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/verify", func(writer http.ResponseWriter, request *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(request.Body).Decode(&body))
		if body["token"] != "good-hash" {
			writeJSON(writer, http.StatusBadRequest, map[string]string{"message": "expired"})
			return
		}
		writeJSON(writer, http.StatusOK, account(""))
	})
	mux.HandleFunc("GET /api/auth/session", func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Authorization") != "Bearer oauth-tok" {
			writeJSON(writer, http.StatusUnauthorized, map[string]string{"message": "bad token"})
			return
		}
		writeJSON(writer, http.StatusOK, account(""))
	})

	tests := []struct {
		name        string
		tokens      identity.CallbackTokens
		wantOutcome identity.CallbackOutcome
		wantCode    string
		wantSession bool
	}{
		{"email_confirmed", identity.CallbackTokens{TokenHash: "good-hash", Type: identity.TypeEmail}, identity.OutcomeEmailConfirmed, "", false},
		{"email_expired", identity.CallbackTokens{TokenHash: "old-hash", Type: identity.TypeEmail}, identity.OutcomeNone, apperr.CodeInvalidCredentials, false},
		{"oauth_token", identity.CallbackTokens{AccessToken: "oauth-tok", Type: identity.TypeOAuth}, identity.OutcomeSignedIn, "", true},
		{"signup_token", identity.CallbackTokens{AccessToken: "oauth-tok", Type: identity.TypeSignup}, identity.OutcomeEmailConfirmed, "", true},
		{"rejected_token", identity.CallbackTokens{AccessToken: "forged"}, identity.OutcomeNone, apperr.CodeInvalidCredentials, false},
		{"provider_error", identity.CallbackTokens{Error: "access_denied", ErrorDescription: "User denied"}, identity.OutcomeNone, apperr.CodeInvalidCredentials, false},
		{"nothing", identity.CallbackTokens{}, identity.OutcomeNone, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newClient(t, mux, nil)

			outcome, err := client.CompleteAuthCallback(context.Background(), tt.tokens)
			assert.Equal(t, tt.wantOutcome, outcome)
			if tt.wantCode != "" {
				assert.True(t, apperr.HasCode(err, tt.wantCode), "got %v", err)
			} else {
				assert.NoError(t, err)
			}

			restored := client.Restore(context.Background())
			assert.Equal(t, tt.wantSession, restored != nil)
		})
	}
}

func TestCallbackTokensFrom(t *testing.T) {
	params := map[string]string{
		identity.ParamAccessToken: "tok",
		identity.ParamType:        identity.TypeOAuth,
	}

	tokens := identity.CallbackTokensFrom(func(name string) string { return params[name] })

	assert.Equal(t, identity.CallbackTokens{AccessToken: "tok", Type: identity.TypeOAuth}, tokens)
}

func TestSame(t *testing.T) {
	a := &identity.Session{Subject: "acc-1", Handle: "sam", Token: "t", CreatedAt: issuedAt}
	b := &identity.Session{Subject: "acc-1", Handle: "sam", Token: "t", CreatedAt: issuedAt.In(time.Local)}

	assert.True(t, identity.Same(a, b))
	assert.True(t, identity.Same(nil, nil))
	assert.False(t, identity.Same(a, nil))
	assert.False(t, identity.Same(a, &identity.Session{Subject: "acc-2"}))
}
