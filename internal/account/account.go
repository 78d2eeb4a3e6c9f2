// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account implements the first-party identity API behind the Unpuff client.

It covers the whole account lifecycle the client relies on: username or email
signup, password login, session checks, sign-out, email confirmation and
third-party sign-in through an OAuth provider.

Architecture:

  - Service: Orchestrates signup, login and token issuance.
  - Repository: Accounts live in PostgreSQL (users.account).
  - TokenRepository: Revocable sessions, verification tokens and OAuth state
    live in Redis with a TTL.
  - Security: bcrypt password hashes and RS256 access tokens whose jti is the
    Redis session key.
*/
package account

import (
	"time"
)

// # Entity

// Account is one registered identity.
//
// # Rules
//   - Username is unique, case-insensitively.
//   - Email is optional and unique when present.
//   - Accounts created through a provider have no password hash.
type Account struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	PasswordHash   string    `json:"-"`
	DisplayName    string    `json:"displayName,omitempty"`
	Provider       string    `json:"provider,omitempty"`
	ProviderUserID string    `json:"-"`
	IsVerified     bool      `json:"isVerified"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// # Field Names

const (
	FieldUsername    = "username"
	FieldPassword    = "password"
	FieldEmail       = "email"
	FieldDisplayName = "displayName"
	FieldToken       = "token"
	FieldRedirectTo  = "redirect_to"
)

// # Constraints

const (
	// UsernameMinLength and UsernameMaxLength bound chosen usernames.
	UsernameMinLength = 3
	UsernameMaxLength = 32

	// DisplayNameMaxLength bounds the optional display name.
	DisplayNameMaxLength = 64

	// VerificationTokenTTL is how long an email confirmation link stays valid.
	VerificationTokenTTL = 24 * time.Hour

	// VerificationTokenLength is the byte length of the random verification token.
	VerificationTokenLength = 32

	// OAuthStateTTL bounds the time a user may spend on the provider's consent page.
	OAuthStateTTL = 10 * time.Minute
)

// # Auth Events

// Event names recorded by the metrics collector.
const (
	EventSignup = "signup"
	EventLogin  = "login"
	EventLogout = "logout"
	EventVerify = "verify"
	EventOAuth  = "oauth"
)
