// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/unpuff/internal/identity"
	"github.com/taibuivan/unpuff/internal/platform/apiclient"
	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/platform/constants"
	"github.com/taibuivan/unpuff/internal/platform/kv"
	"github.com/taibuivan/unpuff/internal/platform/observe"
	"github.com/taibuivan/unpuff/internal/session"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeIdentity is an in-memory identity provider.
type fakeIdentity struct {
	mu       sync.Mutex
	current  *identity.Session
	loginErr error
	// fetchGate, when set, blocks GetSession until closed.
	fetchGate  chan struct{}
	fetchEnter chan struct{}
	fetches    int

	changes observe.Hub[*identity.Session]
}

var sam = &identity.Session{Subject: "acc-1", Handle: "sam", Token: "tok-1"}

func (fake *fakeIdentity) Login(_ context.Context, credential identity.Credential) (*identity.Session, error) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.loginErr != nil {
		return nil, fake.loginErr
	}
	session := &identity.Session{Subject: "acc-" + credential.Identifier, Handle: credential.Identifier, Token: "tok"}
	fake.current = session
	return session, nil
}

func (fake *fakeIdentity) Signup(ctx context.Context, credential identity.Credential, _ string) (*identity.Session, error) {
	return fake.Login(ctx, credential)
}

func (fake *fakeIdentity) StartOAuth(context.Context, string, string) error { return nil }

func (fake *fakeIdentity) GetSession(context.Context) (*identity.Session, error) {
	fake.mu.Lock()
	gate, enter := fake.fetchGate, fake.fetchEnter
	fake.fetches++
	fake.mu.Unlock()

	if enter != nil {
		enter <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	return fake.current, nil
}

func (fake *fakeIdentity) SignOut(context.Context) error {
	fake.mu.Lock()
	fake.current = nil
	fake.mu.Unlock()
	return nil
}

func (fake *fakeIdentity) SubscribeSessionChanges(fn func(*identity.Session)) func() {
	return fake.changes.Subscribe(fn)
}

func (fake *fakeIdentity) CompleteAuthCallback(context.Context, identity.CallbackTokens) (identity.CallbackOutcome, error) {
	return identity.OutcomeNone, nil
}

func record(cache *session.Cache) *[]session.Snapshot {
	var seen []session.Snapshot
	cache.Subscribe(func(snapshot session.Snapshot) { seen = append(seen, snapshot) })
	return &seen
}

// # Tests

func TestCache_LoadingUntilFirstFetch(t *testing.T) {
	fake := &fakeIdentity{current: sam}
	cache := session.NewCache(fake, discard)

	assert.True(t, cache.Snapshot().Loading)
	assert.Nil(t, cache.Get())
	assert.Empty(t, cache.AccessToken())

	cache.Start(context.Background())

	snapshot := cache.Snapshot()
	assert.False(t, snapshot.Loading)
	assert.True(t, identity.Same(sam, snapshot.Session))
	assert.Equal(t, "tok-1", cache.AccessToken())
}

func TestCache_SignedOutIsNotLoading(t *testing.T) {
	cache := session.NewCache(&fakeIdentity{}, discard)
	cache.Start(context.Background())

	snapshot := cache.Snapshot()
	assert.False(t, snapshot.Loading)
	assert.Nil(t, snapshot.Session)
}

func TestCache_PushOverwrites(t *testing.T) {
	fake := &fakeIdentity{}
	cache := session.NewCache(fake, discard)
	cache.Start(context.Background())

	fake.changes.Publish(sam)
	assert.Equal(t, "acc-1", cache.Get().Subject)

	fake.changes.Publish(nil)
	assert.Nil(t, cache.Get())
}

func TestCache_IdenticalPushDoesNotRenotify(t *testing.T) {
	fake := &fakeIdentity{current: sam}
	cache := session.NewCache(fake, discard)
	cache.Start(context.Background())
	seen := record(cache)

	fake.changes.Publish(&identity.Session{Subject: "acc-1", Handle: "sam", Token: "tok-1"})
	fake.changes.Publish(&identity.Session{Subject: "acc-1", Handle: "sam", Token: "tok-1"})

	assert.Empty(t, *seen)
}

func TestCache_StaleFetchIsDiscarded(t *testing.T) {
	fake := &fakeIdentity{
		fetchGate:  make(chan struct{}),
		fetchEnter: make(chan struct{}),
	}
	cache := session.NewCache(fake, discard)

	done := make(chan struct{})
	go func() {
		defer close(done)
		cache.Start(context.Background())
	}()

	<-fake.fetchEnter
	// The provider pushes a sign-in while the initial fetch is in flight.
	fake.changes.Publish(sam)
	close(fake.fetchGate)
	<-done

	snapshot := cache.Snapshot()
	assert.False(t, snapshot.Loading)
	assert.True(t, identity.Same(sam, snapshot.Session))
}

func TestCache_LoginPublishesBeforeReturn(t *testing.T) {
	cache := session.NewCache(&fakeIdentity{}, discard)
	cache.Start(context.Background())
	seen := record(cache)

	session, err := cache.Login(context.Background(), identity.Credential{Identifier: "kim", Secret: "pw"})
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	assert.Equal(t, "acc-kim", (*seen)[0].Session.Subject)
	assert.Equal(t, session.Subject, cache.Get().Subject)
}

func TestCache_LoginFailureLeavesCache(t *testing.T) {
	fake := &fakeIdentity{current: sam}
	cache := session.NewCache(fake, discard)
	cache.Start(context.Background())
	seen := record(cache)

	fake.loginErr = apperr.InvalidCredentials("Invalid username or password")

	_, err := cache.Login(context.Background(), identity.Credential{Identifier: "kim", Secret: "pw"})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidCredentials))
	assert.Empty(t, *seen)
	assert.True(t, identity.Same(sam, cache.Get()))
}

func TestCache_SignupAndSignOut(t *testing.T) {
	cache := session.NewCache(&fakeIdentity{}, discard)
	cache.Start(context.Background())

	_, err := cache.Signup(context.Background(), identity.Credential{Identifier: "lee", Secret: "pw"}, "")
	require.NoError(t, err)
	assert.Equal(t, "acc-lee", cache.Get().Subject)

	cache.SignOut(context.Background())
	assert.Nil(t, cache.Get())
	assert.Empty(t, cache.AccessToken())
}

func TestCache_InvalidateRefetches(t *testing.T) {
	fake := &fakeIdentity{}
	cache := session.NewCache(fake, discard)
	cache.Start(context.Background())

	fake.mu.Lock()
	fake.current = sam
	fake.mu.Unlock()

	cache.Invalidate(context.Background())
	assert.True(t, identity.Same(sam, cache.Get()))
	assert.Equal(t, 2, fake.fetches)
}

func TestCache_ConsumersGetCopies(t *testing.T) {
	cache := session.NewCache(&fakeIdentity{current: sam}, discard)
	cache.Start(context.Background())

	got := cache.Get()
	got.Subject = "mutated"

	assert.Equal(t, "acc-1", cache.Get().Subject)
}

func TestCache_StopDetaches(t *testing.T) {
	fake := &fakeIdentity{}
	cache := session.NewCache(fake, discard)
	cache.Start(context.Background())
	require.Equal(t, 1, fake.changes.Len())

	cache.Stop()
	cache.Stop()
	assert.Zero(t, fake.changes.Len())

	fake.changes.Publish(sam)
	assert.Nil(t, cache.Get())
}

func TestCache_RestartKeepsPersistedSessionWhenCheckIsInconclusive(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		offline    bool
		wantSignIn bool
	}{
		{name: "offline", offline: true, wantSignIn: true},
		{name: "server_error", status: http.StatusInternalServerError, wantSignIn: true},
		{name: "rate_limited", status: http.StatusTooManyRequests, wantSignIn: true},
		{name: "expired", status: http.StatusUnauthorized, wantSignIn: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
				writer.Header().Set("Content-Type", "application/json")
				writer.WriteHeader(tt.status)
				_, _ = writer.Write([]byte(`{"message":"no"}`))
			}))
			if tt.offline {
				server.Close()
			} else {
				t.Cleanup(server.Close)
			}

			store := kv.NewMemoryStore()
			require.NoError(t, store.Set(context.Background(), constants.StorageKeyAuth,
				[]byte(`{"userId":"acc-1","username":"sam","token":"tok-1"}`)))
			client := identity.NewHTTPClient(apiclient.New(server.URL+"/api", time.Second), store, nil, discard)

			cache := session.NewCache(client, discard)
			cache.Start(context.Background())

			snapshot := cache.Snapshot()
			assert.False(t, snapshot.Loading)
			if tt.wantSignIn {
				require.NotNil(t, snapshot.Session)
				assert.Equal(t, "acc-1", snapshot.Session.Subject)
				assert.Equal(t, "tok-1", cache.AccessToken())
			} else {
				assert.Nil(t, snapshot.Session)
			}
		})
	}
}

func TestCache_SignOutBeatsPersistedCopy(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	store := kv.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), constants.StorageKeyAuth,
		[]byte(`{"userId":"acc-1","username":"sam","token":"tok-1"}`)))
	client := identity.NewHTTPClient(apiclient.New(server.URL, time.Second), store, nil, discard)

	cache := session.NewCache(client, discard)
	cache.Start(context.Background())
	require.NotNil(t, cache.Get())

	cache.SignOut(context.Background())
	cache.Invalidate(context.Background())

	assert.Nil(t, cache.Get())
}
