// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/taibuivan/unpuff/internal/platform/apiclient"
	"github.com/taibuivan/unpuff/internal/platform/apperr"
)

// profilePath is the remote profile endpoint relative to the API root.
const profilePath = "/profile"

// TokenSource yields the bearer token of the current session, or "".
type TokenSource interface {
	AccessToken() string
}

// RemoteStore keeps the profile in the API's profile table, keyed by the
// signed-in account.
type RemoteStore struct {
	client *apiclient.Client
	tokens TokenSource
	logger *slog.Logger
}

// NewRemoteStore creates a RemoteStore that authenticates with tokens.
func NewRemoteStore(client *apiclient.Client, tokens TokenSource, logger *slog.Logger) *RemoteStore {
	return &RemoteStore{client: client, tokens: tokens, logger: logger}
}

// Scope returns the bearer token the store currently reads with.
func (remoteStore *RemoteStore) Scope() string {
	return remoteStore.tokens.AccessToken()
}

/*
Get fetches the profile of the signed-in account.

Returns:
  - *Profile: The profile, or nil when signed out, absent, or corrupt
  - error: TRANSPORT_FAILURE when the API could not be reached
*/
func (remoteStore *RemoteStore) Get(ctx context.Context) (*Profile, error) {
	token := remoteStore.tokens.AccessToken()
	if token == "" {
		return nil, nil
	}

	var raw json.RawMessage
	err := remoteStore.client.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   profilePath,
		Token:  token,
	}, &raw)

	switch {
	case apiclient.IsStatus(err, http.StatusNotFound), apiclient.IsStatus(err, http.StatusUnauthorized):
		return nil, nil
	case apperr.HasCode(err, apperr.CodeTransportFailure):
		return nil, err
	case err != nil:
		remoteStore.logger.WarnContext(ctx, "profile_remote_read_failed", slog.Any("error", err))
		return nil, nil
	}

	p, err := Decode(raw)
	if err != nil {
		remoteStore.logger.WarnContext(ctx, "profile_remote_record_invalid", slog.Any("error", err))
		return nil, nil
	}

	return p, nil
}

// Set validates p locally, then replaces the remote record.
func (remoteStore *RemoteStore) Set(ctx context.Context, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	token := remoteStore.tokens.AccessToken()
	if token == "" {
		return apperr.Unauthorized("Sign in to save your profile")
	}

	return remoteStore.client.Do(ctx, apiclient.Request{
		Method: http.MethodPut,
		Path:   profilePath,
		Token:  token,
		Body:   p.Clone(),
	}, nil)
}

// Clear deletes the remote record. Failures are logged, never returned.
func (remoteStore *RemoteStore) Clear(ctx context.Context) error {
	token := remoteStore.tokens.AccessToken()
	if token == "" {
		return nil
	}

	err := remoteStore.client.Do(ctx, apiclient.Request{
		Method: http.MethodDelete,
		Path:   profilePath,
		Token:  token,
	}, nil)
	if err != nil && !apiclient.IsStatus(err, http.StatusNotFound) {
		remoteStore.logger.WarnContext(ctx, "profile_remote_clear_failed", slog.Any("error", err))
	}

	return nil
}
