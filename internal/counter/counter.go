// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package counter keeps today's tally of puffs.

The state is one small JSON document in the device store. It belongs to the
local calendar day it was written on: the first read on a new day resets it
to zero and adopts the new date key.
*/
package counter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/unpuff/internal/platform/constants"
	"github.com/taibuivan/unpuff/internal/platform/kv"
	"github.com/taibuivan/unpuff/internal/platform/validate"
)

// dateKeyLayout formats the local calendar date.
const dateKeyLayout = "2006-01-02"

// State is today's counter.
type State struct {
	DateKey      string    `json:"dateKey"`
	Count        int       `json:"count"`
	LastActionAt time.Time `json:"lastActionAt,omitzero"`
}

// Counter owns the persisted [State].
type Counter struct {
	store  kv.Store
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	state  State
	loaded bool
}

// Option configures a [Counter].
type Option func(*Counter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(counter *Counter) { counter.now = now }
}

// New creates a Counter persisted in store under "unpuff-counter".
func New(store kv.Store, logger *slog.Logger, opts ...Option) *Counter {
	counter := &Counter{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(counter)
	}
	return counter
}

// # Reads

// Current returns today's state, rolling over to a fresh day if needed.
func (counter *Counter) Current(ctx context.Context) (State, error) {
	counter.mu.Lock()
	defer counter.mu.Unlock()

	if err := counter.syncLocked(ctx); err != nil {
		return State{}, err
	}
	return counter.state, nil
}

// # Actions

// Increment adds one.
func (counter *Counter) Increment(ctx context.Context) (State, error) {
	return counter.mutate(ctx, func(state *State) { state.Count++ })
}

// Decrement removes one, never going below zero.
func (counter *Counter) Decrement(ctx context.Context) (State, error) {
	return counter.mutate(ctx, func(state *State) { state.Count = max(0, state.Count-1) })
}

// Reset sets today's count back to zero.
func (counter *Counter) Reset(ctx context.Context) (State, error) {
	return counter.mutate(ctx, func(state *State) { state.Count = 0 })
}

// Set overwrites today's count. Negative values fail with VALIDATION_ERROR.
func (counter *Counter) Set(ctx context.Context, count int) (State, error) {
	validator := &validate.Validator{}
	if err := validator.NonNegative("count", count).Err(); err != nil {
		return State{}, err
	}
	return counter.mutate(ctx, func(state *State) { state.Count = count })
}

func (counter *Counter) mutate(ctx context.Context, change func(state *State)) (State, error) {
	counter.mu.Lock()
	defer counter.mu.Unlock()

	if err := counter.syncLocked(ctx); err != nil {
		return State{}, err
	}

	next := counter.state
	change(&next)
	next.LastActionAt = counter.now()

	if err := counter.persist(ctx, next); err != nil {
		return State{}, err
	}
	counter.state = next
	return next, nil
}

// # Persistence

// syncLocked loads the stored state once and applies the date rollover.
func (counter *Counter) syncLocked(ctx context.Context) error {
	today := counter.now().Format(dateKeyLayout)

	if !counter.loaded {
		counter.state = counter.read(ctx)
		counter.loaded = true
	}

	if counter.state.DateKey == today {
		return nil
	}

	fresh := State{DateKey: today}
	if err := counter.persist(ctx, fresh); err != nil {
		return err
	}
	counter.state = fresh
	return nil
}

// read returns the stored state; unreadable or corrupt documents read as empty.
func (counter *Counter) read(ctx context.Context) State {
	raw, err := counter.store.Get(ctx, constants.StorageKeyCounter)
	if errors.Is(err, kv.ErrNotFound) {
		return State{}
	}
	if err != nil {
		counter.logger.WarnContext(ctx, "counter_read_failed", slog.Any("error", err))
		return State{}
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil || state.Count < 0 {
		counter.logger.WarnContext(ctx, "counter_record_discarded", slog.Any("error", err))
		return State{}
	}
	return state
}

func (counter *Counter) persist(ctx context.Context, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("counter_encode_failed: %w", err)
	}
	if err := counter.store.Set(ctx, constants.StorageKeyCounter, raw); err != nil {
		return fmt.Errorf("counter_write_failed: %w", err)
	}
	return nil
}
