// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"time"
)

// Repository defines the data access contract for accounts.
//
// # Implementations
//
// The canonical implementation is PostgreSQL ([PostgresRepository]).
type Repository interface {
	// FindByID returns the account with the given ID.
	//
	// Returns [apperr.NotFound] if the account does not exist.
	FindByID(ctx context.Context, id string) (*Account, error)

	// FindByUsername returns the account with the given username, ignoring case.
	FindByUsername(ctx context.Context, username string) (*Account, error)

	// FindByEmail returns the account registered with the given email.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByProvider returns the account linked to a provider identity.
	FindByProvider(ctx context.Context, provider, providerUserID string) (*Account, error)

	// Create persists a brand-new account.
	//
	// Returns ACCOUNT_EXISTS if a unique constraint (username/email/provider) fails.
	Create(ctx context.Context, account *Account) error

	// MarkVerified flags the account's email as confirmed.
	MarkVerified(ctx context.Context, id string) error

	// LinkProvider attaches a provider identity to the account and marks it
	// verified. The password hash, if any, is kept.
	LinkProvider(ctx context.Context, id, provider, providerUserID string) error
}

// TokenRepository stores the volatile, TTL-bound state of the identity flows.
type TokenRepository interface {
	// SaveSession records a live session under the access token's ID.
	SaveSession(ctx context.Context, tokenID, accountID string, ttl time.Duration) error

	// FindSession returns the account ID of a live session.
	//
	// Returns [apperr.NotFound] once the session expired or was revoked.
	FindSession(ctx context.Context, tokenID string) (string, error)

	// RevokeSession deletes a session. Revoking twice is not an error.
	RevokeSession(ctx context.Context, tokenID string) error

	// SaveVerifyToken stores an email confirmation token.
	SaveVerifyToken(ctx context.Context, tokenHash, accountID string, ttl time.Duration) error

	// ConsumeVerifyToken returns and deletes the account ID of a confirmation token.
	ConsumeVerifyToken(ctx context.Context, tokenHash string) (string, error)

	// SaveOAuthState stores the pending OAuth flow under its state parameter.
	SaveOAuthState(ctx context.Context, state string, pending OAuthState, ttl time.Duration) error

	// ConsumeOAuthState returns and deletes a pending OAuth flow.
	ConsumeOAuthState(ctx context.Context, state string) (*OAuthState, error)
}

// OAuthState is a pending third-party sign-in.
type OAuthState struct {
	Provider   string `json:"provider"`
	RedirectTo string `json:"redirectTo"`
}
