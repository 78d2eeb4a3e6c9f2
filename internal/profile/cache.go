// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile

import (
	"context"
	"log/slog"
	"sync"

	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/platform/observe"
)

// Snapshot is the observable state of the cache.
type Snapshot struct {
	// Profile is nil when no profile exists.
	Profile *Profile
	// Loading is true until the first read from the store completes.
	Loading bool
	// Scope is the session a [Scoped] store was read for. Always "" for
	// device-local stores.
	Scope string
}

func (s Snapshot) equal(other Snapshot) bool {
	if s.Loading != other.Loading || s.Scope != other.Scope || (s.Profile == nil) != (other.Profile == nil) {
		return false
	}
	return s.Profile == nil || s.Profile.Equal(*other.Profile)
}

// Cache is the in-memory copy of the profile that the rest of the client reads.
//
// # Concurrency
//
// Update runs optimistic set, durable write, then confirm-or-rollback as one
// sequence. A second Update while one is in flight is rejected with
// CONCURRENT_UPDATE; the caller retries with the latest value.
type Cache struct {
	store  Store
	scoped Scoped
	logger *slog.Logger

	mu       sync.RWMutex
	current  Snapshot
	gen      uint64
	updating bool

	// publishMu keeps the order subscribers see equal to the order of writes.
	publishMu sync.Mutex
	hub       observe.Hub[Snapshot]
}

// NewCache creates a cache in the loading state. Call [Cache.Load] to fill it.
func NewCache(store Store, logger *slog.Logger) *Cache {
	scoped, _ := store.(Scoped)
	return &Cache{
		store:   store,
		scoped:  scoped,
		logger:  logger,
		current: Snapshot{Loading: true},
	}
}

// # Reads

// Get returns a copy of the cached profile, or nil.
func (cache *Cache) Get() *Profile {
	return cache.Snapshot().Profile
}

// Snapshot returns a copy of the current state.
func (cache *Cache) Snapshot() Snapshot {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	return cloneSnapshot(cache.current)
}

// Scoped reports whether the cached profile belongs to one session. Compare
// [Snapshot.Scope] with the current session before trusting it.
func (cache *Cache) Scoped() bool {
	return cache.scoped != nil
}

// Subscribe registers fn for "profile changed" notifications.
func (cache *Cache) Subscribe(fn func(Snapshot)) func() {
	return cache.hub.Subscribe(fn)
}

// # Writes

/*
Load reads the store into the cache.

Description: A read that completes after a newer write is discarded, so a
slow initial load never overwrites an update. Store faults read as "no
profile".
*/
func (cache *Cache) Load(ctx context.Context) {
	cache.mu.RLock()
	startGen := cache.gen
	cache.mu.RUnlock()

	scope := cache.scope()
	p, err := cache.store.Get(ctx)
	if err != nil {
		cache.logger.WarnContext(ctx, "profile_cache_load_failed", slog.Any("error", err))
		p = nil
	}

	cache.apply(func(current *Snapshot) {
		// A write landed while reading; it wins unless it was rolled back
		// to the loading state.
		if cache.gen != startGen && !current.Loading {
			return
		}
		current.Profile = p
		current.Loading = false
		current.Scope = scope
	})
}

/*
Update applies p optimistically and persists it.

Flow:
 1. Validate p; invalid input leaves the cache untouched.
 2. Publish p to subscribers before the durable write.
 3. On write failure, restore the previous profile and return the error.
 4. On success, re-read the store and adopt what it holds.

Returns:
  - error: VALIDATION_ERROR, CONCURRENT_UPDATE, or the store's write error
*/
func (cache *Cache) Update(ctx context.Context, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	cache.mu.Lock()
	if cache.updating {
		cache.mu.Unlock()
		return apperr.ConcurrentUpdate("Profile")
	}
	cache.updating = true
	cache.mu.Unlock()

	defer func() {
		cache.mu.Lock()
		cache.updating = false
		cache.mu.Unlock()
	}()

	next := p.Clone()
	scope := cache.scope()
	var previous Snapshot

	cache.apply(func(current *Snapshot) {
		previous = *current
		current.Profile = &next
		current.Loading = false
		current.Scope = scope
	})

	if err := cache.store.Set(ctx, next); err != nil {
		cache.logger.WarnContext(ctx, "profile_cache_update_rolled_back", slog.Any("error", err))
		cache.apply(func(current *Snapshot) {
			*current = previous
		})
		return err
	}

	stored, err := cache.store.Get(ctx)
	if err != nil {
		// The write landed; keep the optimistic value rather than guess.
		cache.logger.WarnContext(ctx, "profile_cache_confirm_failed", slog.Any("error", err))
		return nil
	}

	cache.apply(func(current *Snapshot) {
		current.Profile = stored
	})

	return nil
}

// Clear removes the profile from the store and the cache.
func (cache *Cache) Clear(ctx context.Context) {
	scope := cache.scope()
	_ = cache.store.Clear(ctx)

	cache.apply(func(current *Snapshot) {
		current.Profile = nil
		current.Loading = false
		current.Scope = scope
	})
}

func (cache *Cache) scope() string {
	if cache.scoped == nil {
		return ""
	}
	return cache.scoped.Scope()
}

// apply mutates the snapshot under the lock and publishes the result if it changed.
func (cache *Cache) apply(mutate func(current *Snapshot)) {
	cache.publishMu.Lock()
	defer cache.publishMu.Unlock()

	cache.mu.Lock()
	before := cloneSnapshot(cache.current)
	mutate(&cache.current)
	cache.gen++
	after := cloneSnapshot(cache.current)
	cache.mu.Unlock()

	if before.equal(after) {
		return
	}
	cache.hub.Publish(after)
}

func cloneSnapshot(s Snapshot) Snapshot {
	if s.Profile != nil {
		clone := s.Profile.Clone()
		s.Profile = &clone
	}
	return s
}
