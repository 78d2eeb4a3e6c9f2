// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package identity is the only boundary between Unpuff and the identity provider.

Everything the rest of the client knows about "who is signed in" comes through
a [Client]: explicit calls (Login, Signup, SignOut, GetSession) and the
asynchronous change stream (SubscribeSessionChanges).

Errors:

Every failure is an [apperr.AppError] carrying one of INVALID_CREDENTIALS,
UNCONFIRMED_ACCOUNT, ACCOUNT_EXISTS, WEAK_CREDENTIAL, VALIDATION_ERROR or
TRANSPORT_FAILURE. Only TRANSPORT_FAILURE is worth retrying unchanged.
*/
package identity

import (
	"context"
	"time"
)

// # Session

// Session is the proof of authentication issued by the identity provider.
type Session struct {
	// Subject is the opaque account identifier. Never empty on a valid session.
	Subject string `json:"subject"`
	// Handle is the display username.
	Handle string `json:"handle"`
	// Token is the bearer credential for first-party API calls.
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// Valid reports whether the session identifies an account.
func (session *Session) Valid() bool {
	return session != nil && session.Subject != ""
}

// Same reports whether a and b describe the same session. Two nils are the same.
func Same(a, b *Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Subject == b.Subject &&
		a.Handle == b.Handle &&
		a.Token == b.Token &&
		a.CreatedAt.Equal(b.CreatedAt)
}

// Credential is an identifier/secret pair. The identifier is a username in the
// simple variant and an email address in the email variant.
type Credential struct {
	Identifier string
	Secret     string
}

// # Callback

// CallbackTokens is the token material an auth callback URL carries.
type CallbackTokens struct {
	AccessToken string
	TokenHash   string
	Type        string
	// Error and ErrorDescription are set when the provider aborted the flow.
	Error            string
	ErrorDescription string
}

// Callback parameter names, read from the fragment first, then the query.
const (
	ParamAccessToken      = "access_token"
	ParamTokenHash        = "token_hash"
	ParamType             = "type"
	ParamError            = "error"
	ParamErrorDescription = "error_description"
)

// Callback types.
const (
	TypeEmail  = "email"
	TypeSignup = "signup"
	TypeOAuth  = "oauth"
)

// CallbackTokensFrom collects callback parameters through lookup.
func CallbackTokensFrom(lookup func(name string) string) CallbackTokens {
	return CallbackTokens{
		AccessToken:      lookup(ParamAccessToken),
		TokenHash:        lookup(ParamTokenHash),
		Type:             lookup(ParamType),
		Error:            lookup(ParamError),
		ErrorDescription: lookup(ParamErrorDescription),
	}
}

// CallbackOutcome tells the callback handler where to go next.
type CallbackOutcome string

const (
	// OutcomeEmailConfirmed shows the email-confirmed result surface.
	OutcomeEmailConfirmed CallbackOutcome = "email_confirmed"
	// OutcomeSignedIn returns to the app root with a session.
	OutcomeSignedIn CallbackOutcome = "signed_in"
	// OutcomeNone returns to the app root without a session.
	OutcomeNone CallbackOutcome = "none"
)

// # Contracts

// Client talks to the identity provider.
type Client interface {
	// Login exchanges a credential for a session.
	Login(ctx context.Context, credential Credential) (*Session, error)

	// Signup registers a new account and signs it in.
	Signup(ctx context.Context, credential Credential, displayName string) (*Session, error)

	// StartOAuth hands the provider's authorization page to the shell. The
	// session arrives later through the callback route.
	StartOAuth(ctx context.Context, provider, redirectTarget string) error

	// GetSession returns the current session, or nil. It never fails for
	// "no session" or for an unreachable provider.
	GetSession(ctx context.Context) (*Session, error)

	// SignOut clears the local session unconditionally and revokes it
	// remotely on a best-effort basis. It never fails.
	SignOut(ctx context.Context) error

	// SubscribeSessionChanges pushes every asynchronous session change.
	SubscribeSessionChanges(fn func(*Session)) (unsubscribe func())

	// CompleteAuthCallback verifies the token material of a callback URL.
	CompleteAuthCallback(ctx context.Context, tokens CallbackTokens) (CallbackOutcome, error)
}

// Restorer is implemented by clients that persist the session locally. The
// copy is only purged once the provider reports the session gone.
type Restorer interface {
	Restore(ctx context.Context) *Session
}

// Launcher opens an external URL (system browser, OS handler).
type Launcher interface {
	Open(ctx context.Context, target string) error
}

// LauncherFunc adapts a function to [Launcher].
type LauncherFunc func(ctx context.Context, target string) error

// Open calls f.
func (f LauncherFunc) Open(ctx context.Context, target string) error {
	return f(ctx, target)
}
