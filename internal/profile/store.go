// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taibuivan/unpuff/internal/platform/constants"
	"github.com/taibuivan/unpuff/internal/platform/kv"
	"github.com/taibuivan/unpuff/internal/platform/validate"
	"github.com/taibuivan/unpuff/pkg/pointer"
)

// # Contracts

// Store is durable storage for the single profile record.
type Store interface {
	// Get returns the stored profile, or nil when there is none. Corrupt
	// records are treated as absent. An error means the store could not be
	// reached at all.
	Get(ctx context.Context) (*Profile, error)

	// Set validates p and overwrites the record. Invalid input fails with
	// VALIDATION_ERROR and leaves storage untouched.
	Set(ctx context.Context, p Profile) error

	// Clear removes the record. It never fails.
	Clear(ctx context.Context) error
}

// Scoped is implemented by stores whose record belongs to the signed-in
// session. Scope names the session the store reads for right now.
type Scoped interface {
	Scope() string
}

// # Wire Shape

// record is the stored JSON document. Every field is required, so pointers
// tell "missing" apart from zero values.
type record struct {
	Identity      *string   `json:"identity"`
	Triggers      *[]string `json:"triggers"`
	DailyBaseline *int      `json:"dailyBaseline"`
	DailyGoal     *int      `json:"dailyGoal"`
}

// errCorrupt marks a document that does not have the profile shape.
var errCorrupt = errors.New("profile: stored record is corrupt")

// Decode parses a stored or transmitted profile document and checks it
// against the profile invariants.
func Decode(raw []byte) (*Profile, error) {
	var doc record
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}

	p, err := doc.toProfile()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}

	return p, nil
}

// toProfile requires every field and validates the result.
func (doc record) toProfile() (*Profile, error) {
	validator := &validate.Validator{}
	validator.
		Custom(FieldIdentity, doc.Identity == nil, "Field is required").
		Custom(FieldTriggers, doc.Triggers == nil, "Field is required").
		Custom(FieldDailyBaseline, doc.DailyBaseline == nil, "Field is required").
		Custom(FieldDailyGoal, doc.DailyGoal == nil, "Field is required")
	if err := validator.Err(); err != nil {
		return nil, err
	}

	triggers := make([]Trigger, 0, len(pointer.Val(doc.Triggers)))
	for _, trigger := range pointer.Val(doc.Triggers) {
		triggers = append(triggers, Trigger(trigger))
	}

	p := &Profile{
		Identity:      pointer.Val(doc.Identity),
		Triggers:      triggers,
		DailyBaseline: pointer.Val(doc.DailyBaseline),
		DailyGoal:     pointer.Val(doc.DailyGoal),
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// IsCorrupt reports whether err came from [Decode] rejecting a document.
func IsCorrupt(err error) bool {
	return errors.Is(err, errCorrupt)
}

// # Local Store

// LocalStore keeps the profile in the device's key-value store under
// "unpuff-userdata".
type LocalStore struct {
	store  kv.Store
	logger *slog.Logger
}

// NewLocalStore creates a LocalStore on top of store.
func NewLocalStore(store kv.Store, logger *slog.Logger) *LocalStore {
	return &LocalStore{store: store, logger: logger}
}

/*
Get reads the profile record.

Description: Missing, unreadable, and corrupt records all read as nil. A
corrupt record is purged so the next read does not trip over it again.

Returns:
  - *Profile: The stored profile, or nil
  - error: Always nil; local storage faults are recovered here
*/
func (localStore *LocalStore) Get(ctx context.Context) (*Profile, error) {
	raw, err := localStore.store.Get(ctx, constants.StorageKeyProfile)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		localStore.logger.WarnContext(ctx, "profile_local_read_failed", slog.Any("error", err))
		return nil, nil
	}

	p, err := Decode(raw)
	if err != nil {
		localStore.logger.WarnContext(ctx, "profile_local_record_purged", slog.Any("error", err))
		if deleteErr := localStore.store.Delete(ctx, constants.StorageKeyProfile); deleteErr != nil {
			localStore.logger.WarnContext(ctx, "profile_local_purge_failed", slog.Any("error", deleteErr))
		}
		return nil, nil
	}

	return p, nil
}

// Set validates and writes the record.
func (localStore *LocalStore) Set(ctx context.Context, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(p.Clone())
	if err != nil {
		return fmt.Errorf("profile_local_encode_failed: %w", err)
	}

	if err := localStore.store.Set(ctx, constants.StorageKeyProfile, raw); err != nil {
		return fmt.Errorf("profile_local_write_failed: %w", err)
	}

	return nil
}

// Clear removes the record. Storage faults are logged, never returned.
func (localStore *LocalStore) Clear(ctx context.Context) error {
	if err := localStore.store.Delete(ctx, constants.StorageKeyProfile); err != nil {
		localStore.logger.WarnContext(ctx, "profile_local_clear_failed", slog.Any("error", err))
	}
	return nil
}
