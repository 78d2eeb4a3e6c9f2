// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package kv provides the durable key-value storage used by the Unpuff client.

It plays the part browser localStorage plays on the web: the persisted session
(unpuff-auth), the onboarding profile (unpuff-userdata) and today's counter
(unpuff-counter) each live under one key as a JSON document.

Drivers:

  - FileStore: one file per key under a data directory (default).
  - RedisStore: keys shared by every process pointed at the same Redis, the
    equivalent of several browser tabs sharing one origin.
  - MemoryStore: process-local, for tests and ephemeral runs.

None of the drivers lock across processes. Callers that need read-modify-write
safety layer it on top (see profile.Cache).
*/
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is a minimal durable key-value store.
type Store interface {
	// Get returns the value under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the value under key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
