// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session holds the single "current session" value the client reads.

The [Cache] is fed from two directions that are not ordered relative to each
other: explicit calls (Start, Invalidate, Login, SignOut, ...) and the
identity client's change stream. Every write simply overwrites the cached
value, so whichever completes last wins.

Until the first fetch resolves the cache reports Loading, which is distinct
from "no session"; the app shows a neutral screen instead of flashing the
sign-in form on a slow network. When the fetch comes back empty but the client
still holds a persisted copy (see [identity.Restorer]), the check was
inconclusive and the persisted session is used, so an offline restart stays
signed in.
*/
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/taibuivan/unpuff/internal/identity"
	"github.com/taibuivan/unpuff/internal/platform/observe"
)

// Key is the one logical key the session is cached under.
const Key = "auth:session"

// Snapshot is the observable state of the cache.
type Snapshot struct {
	// Session is nil when signed out.
	Session *identity.Session
	// Loading is true until the first fetch completes.
	Loading bool
	// Err is the last fetch error. Only programmer or local faults end up here.
	Err error
}

func (s Snapshot) equal(other Snapshot) bool {
	return s.Loading == other.Loading &&
		errors.Is(s.Err, other.Err) && errors.Is(other.Err, s.Err) &&
		identity.Same(s.Session, other.Session)
}

// Cache is the client's source of truth for the current session.
type Cache struct {
	client identity.Client
	logger *slog.Logger

	mu      sync.RWMutex
	current Snapshot
	gen     uint64
	detach  func()

	// publishMu keeps the order subscribers see equal to the order of writes.
	publishMu sync.Mutex
	hub       observe.Hub[Snapshot]
}

// NewCache creates a cache in the loading state. Call [Cache.Start] to fill it.
func NewCache(client identity.Client, logger *slog.Logger) *Cache {
	return &Cache{
		client:  client,
		logger:  logger,
		current: Snapshot{Loading: true},
	}
}

// # Lifecycle

/*
Start subscribes to the identity client's change stream and performs the
initial fetch.

Description: The subscription is registered first so that a change pushed
while the fetch is in flight is not lost. When that happens the push is newer
and the fetch result is dropped on arrival.
*/
func (cache *Cache) Start(ctx context.Context) {
	cache.mu.Lock()
	if cache.detach == nil {
		cache.detach = cache.client.SubscribeSessionChanges(cache.push)
	}
	cache.mu.Unlock()

	cache.fetch(ctx)
	cache.logger.DebugContext(ctx, "session_cache_started", slog.Bool("signed_in", cache.Get().Valid()))
}

// Stop detaches from the identity client. The cached value stays readable.
func (cache *Cache) Stop() {
	cache.mu.Lock()
	detach := cache.detach
	cache.detach = nil
	cache.mu.Unlock()

	if detach != nil {
		detach()
	}
}

// Invalidate re-fetches the session, e.g. after an auth callback URL arrived.
func (cache *Cache) Invalidate(ctx context.Context) {
	cache.fetch(ctx)
}

// # Reads

// Get returns a copy of the cached session, or nil.
func (cache *Cache) Get() *identity.Session {
	return cache.Snapshot().Session
}

// Snapshot returns a copy of the current state.
func (cache *Cache) Snapshot() Snapshot {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	return cloneSnapshot(cache.current)
}

// AccessToken returns the bearer token of the cached session, or "".
func (cache *Cache) AccessToken() string {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	if cache.current.Session == nil {
		return ""
	}
	return cache.current.Session.Token
}

// Subscribe registers fn for every change of the snapshot.
func (cache *Cache) Subscribe(fn func(Snapshot)) func() {
	return cache.hub.Subscribe(fn)
}

// # Mutations

// Login signs in and publishes the new session before returning. On failure
// the cache is left unchanged.
func (cache *Cache) Login(ctx context.Context, credential identity.Credential) (*identity.Session, error) {
	session, err := cache.client.Login(ctx, credential)
	if err != nil {
		return nil, err
	}
	cache.set(session, nil)
	return cloneSession(session), nil
}

// Signup registers, signs in and publishes the new session before returning.
func (cache *Cache) Signup(ctx context.Context, credential identity.Credential, displayName string) (*identity.Session, error) {
	session, err := cache.client.Signup(ctx, credential, displayName)
	if err != nil {
		return nil, err
	}
	cache.set(session, nil)
	return cloneSession(session), nil
}

// StartOAuth starts a provider flow. The session arrives later through the
// callback route, so the cache is not touched.
func (cache *Cache) StartOAuth(ctx context.Context, provider, redirectTarget string) error {
	return cache.client.StartOAuth(ctx, provider, redirectTarget)
}

// SignOut clears the session and publishes nil before returning.
func (cache *Cache) SignOut(ctx context.Context) {
	_ = cache.client.SignOut(ctx)
	cache.set(nil, nil)
}

// # Internals

// push receives the identity client's change stream.
func (cache *Cache) push(session *identity.Session) {
	cache.set(session, nil)
}

func (cache *Cache) fetch(ctx context.Context) {
	cache.mu.RLock()
	startGen := cache.gen
	cache.mu.RUnlock()

	session, err := cache.client.GetSession(ctx)
	if err != nil {
		cache.logger.ErrorContext(ctx, "session_fetch_failed", slog.Any("error", err))
		session = nil
	}
	if session == nil && err == nil {
		session = cache.restore(ctx)
	}

	cache.apply(func(current *Snapshot) bool {
		// Something newer was written while fetching.
		if cache.gen != startGen {
			return false
		}
		*current = Snapshot{Session: cloneSession(session), Err: err}
		return true
	})
}

// restore returns the client's persisted session, if it keeps one.
func (cache *Cache) restore(ctx context.Context) *identity.Session {
	restorer, ok := cache.client.(identity.Restorer)
	if !ok {
		return nil
	}

	session := restorer.Restore(ctx)
	if session != nil {
		cache.logger.InfoContext(ctx, "session_restored_offline", slog.String("subject", session.Subject))
	}
	return session
}

func (cache *Cache) set(session *identity.Session, err error) {
	cache.apply(func(current *Snapshot) bool {
		*current = Snapshot{Session: cloneSession(session), Err: err}
		return true
	})
}

// apply mutates the snapshot under the lock and publishes the result if it changed.
func (cache *Cache) apply(mutate func(current *Snapshot) bool) {
	cache.publishMu.Lock()
	defer cache.publishMu.Unlock()

	cache.mu.Lock()
	before := cloneSnapshot(cache.current)
	if !mutate(&cache.current) {
		cache.mu.Unlock()
		return
	}
	cache.gen++
	after := cloneSnapshot(cache.current)
	cache.mu.Unlock()

	if before.equal(after) {
		return
	}
	cache.hub.Publish(after)
}

func cloneSession(session *identity.Session) *identity.Session {
	if session == nil {
		return nil
	}
	clone := *session
	return &clone
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.Session = cloneSession(s.Session)
	return s
}
