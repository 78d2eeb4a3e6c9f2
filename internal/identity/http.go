// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/unpuff/internal/platform/apiclient"
	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/platform/constants"
	"github.com/taibuivan/unpuff/internal/platform/kv"
	"github.com/taibuivan/unpuff/internal/platform/observe"
	"github.com/taibuivan/unpuff/internal/platform/validate"
	"github.com/taibuivan/unpuff/pkg/handle"
)

// # Wire Shapes

// usernameMinLength is enforced before signup reaches the network.
const usernameMinLength = 3

type signupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

// sessionResponse is the account view returned by the auth endpoints. Token
// is only present on login and signup.
type sessionResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
}

// storedSession is the document kept under "unpuff-auth".
type storedSession struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// # Client

// HTTPClient implements [Client] against the first-party Unpuff API.
type HTTPClient struct {
	api      *apiclient.Client
	store    kv.Store
	launcher Launcher
	logger   *slog.Logger

	passwordMinLength int
	now               func() time.Time

	// mu serializes writes to the persisted session.
	mu      sync.Mutex
	changes observe.Hub[*Session]
}

// Option configures an [HTTPClient].
type Option func(*HTTPClient)

// WithPasswordMinLength sets the signup password policy.
func WithPasswordMinLength(n int) Option {
	return func(client *HTTPClient) { client.passwordMinLength = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(client *HTTPClient) { client.now = now }
}

// NewHTTPClient creates a client for the API behind api. The session is
// persisted in store; launcher opens OAuth pages and may be nil when OAuth is
// not offered.
func NewHTTPClient(api *apiclient.Client, store kv.Store, launcher Launcher, logger *slog.Logger, opts ...Option) *HTTPClient {
	client := &HTTPClient{
		api:               api,
		store:             store,
		launcher:          launcher,
		logger:            logger,
		passwordMinLength: 3,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// # Operations

/*
Login exchanges a credential for a session and persists it.

Returns:
  - *Session: The signed-in session
  - error: INVALID_CREDENTIALS, UNCONFIRMED_ACCOUNT or TRANSPORT_FAILURE
*/
func (client *HTTPClient) Login(ctx context.Context, credential Credential) (*Session, error) {
	identifier := strings.TrimSpace(credential.Identifier)
	if identifier == "" || credential.Secret == "" {
		return nil, apperr.InvalidCredentials("Username and password are required")
	}

	var response sessionResponse
	err := client.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   loginRequest{Username: identifier, Password: credential.Secret},
	}, &response)
	if err != nil {
		return nil, mapLoginError(err)
	}

	return client.adopt(ctx, response, response.Token)
}

/*
Signup registers an account and signs it in.

The password policy is checked locally first so a weak secret never reaches
the network.

Returns:
  - *Session: The new session
  - error: ACCOUNT_EXISTS, WEAK_CREDENTIAL, VALIDATION_ERROR or TRANSPORT_FAILURE
*/
func (client *HTTPClient) Signup(ctx context.Context, credential Credential, displayName string) (*Session, error) {
	identifier := strings.TrimSpace(credential.Identifier)

	body := signupRequest{Password: credential.Secret, DisplayName: strings.TrimSpace(displayName)}
	validator := &validate.Validator{}
	if strings.Contains(identifier, "@") {
		body.Email = identifier
		body.Username = handle.FromEmail(identifier)
		validator.Email("email", identifier)
	} else {
		body.Username = identifier
		validator.Required("username", identifier).MinLen("username", identifier, usernameMinLength)
	}
	if err := validator.Err(); err != nil {
		return nil, err
	}

	if len(credential.Secret) < client.passwordMinLength {
		return nil, apperr.WeakCredential(client.passwordMinLength)
	}

	var response sessionResponse
	err := client.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/signup",
		Body:   body,
	}, &response)
	if err != nil {
		return nil, mapSignupError(err)
	}

	return client.adopt(ctx, response, response.Token)
}

// StartOAuth opens the provider's authorization page through the launcher.
func (client *HTTPClient) StartOAuth(ctx context.Context, provider, redirectTarget string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return apperr.ValidationError("Provider is required", apperr.FieldError{Field: "provider", Message: "Field is required"})
	}
	if client.launcher == nil {
		return apperr.TransportFailure(0, errors.New("identity: no launcher configured"))
	}

	target := client.OAuthStartURL(provider, redirectTarget)
	if err := client.launcher.Open(ctx, target); err != nil {
		return apperr.TransportFailure(0, fmt.Errorf("identity_oauth_launch_failed: %w", err))
	}

	client.logger.InfoContext(ctx, "identity_oauth_started", slog.String("provider", provider))
	return nil
}

// OAuthStartURL returns the API URL that begins the provider's flow.
func (client *HTTPClient) OAuthStartURL(provider, redirectTarget string) string {
	query := url.Values{}
	if redirectTarget != "" {
		query.Set("redirect_to", redirectTarget)
	}
	return client.api.URL("/auth/oauth/"+url.PathEscape(provider)+"/start", query)
}

/*
GetSession checks the persisted session against the API.

A 401 or 404 means the session is gone: the local copy is purged and nil is
pushed to subscribers. Any other failure, such as a 429 or an unreachable API,
leaves the local copy in place and returns nil.
*/
func (client *HTTPClient) GetSession(ctx context.Context) (*Session, error) {
	stored := client.Restore(ctx)
	if stored == nil {
		return nil, nil
	}

	var response sessionResponse
	err := client.api.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/auth/session",
		Query:  url.Values{"userId": {stored.Subject}},
		Token:  stored.Token,
	}, &response)

	switch {
	case err == nil:
	case apiclient.IsStatus(err, http.StatusUnauthorized), apiclient.IsStatus(err, http.StatusNotFound):
		client.logger.InfoContext(ctx, "identity_session_expired", slog.Any("error", err))
		client.purge(ctx)
		return nil, nil
	default:
		client.logger.WarnContext(ctx, "identity_session_check_inconclusive", slog.Any("error", err))
		return nil, nil
	}

	if response.ID == "" || response.ID != stored.Subject {
		client.logger.WarnContext(ctx, "identity_session_mismatch")
		client.purge(ctx)
		return nil, nil
	}

	session := &Session{
		Subject:   response.ID,
		Handle:    response.Username,
		Token:     stored.Token,
		CreatedAt: response.CreatedAt,
	}
	if session.Handle != stored.Handle {
		client.mu.Lock()
		client.persist(ctx, session)
		client.mu.Unlock()
	}

	return session, nil
}

// Restore returns the persisted session without a network round-trip, or nil.
// Corrupt records are removed.
func (client *HTTPClient) Restore(ctx context.Context) *Session {
	raw, err := client.store.Get(ctx, constants.StorageKeyAuth)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		client.logger.WarnContext(ctx, "identity_restore_failed", slog.Any("error", err))
		return nil
	}

	var stored storedSession
	if err := json.Unmarshal(raw, &stored); err != nil || stored.UserID == "" || stored.Token == "" {
		client.logger.WarnContext(ctx, "identity_stored_session_discarded", slog.Any("error", err))
		if err := client.store.Delete(ctx, constants.StorageKeyAuth); err != nil {
			client.logger.WarnContext(ctx, "identity_purge_failed", slog.Any("error", err))
		}
		return nil
	}

	return &Session{Subject: stored.UserID, Handle: stored.Username, Token: stored.Token}
}

// SignOut clears the local session first, then revokes the token remotely.
func (client *HTTPClient) SignOut(ctx context.Context) error {
	stored := client.Restore(ctx)

	client.purge(ctx)

	if stored == nil {
		return nil
	}

	err := client.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/logout",
		Token:  stored.Token,
	}, nil)
	if err != nil {
		client.logger.WarnContext(ctx, "identity_remote_signout_failed", slog.Any("error", err))
	}

	return nil
}

// SubscribeSessionChanges registers fn for every session change.
func (client *HTTPClient) SubscribeSessionChanges(fn func(*Session)) func() {
	return client.changes.Subscribe(fn)
}

/*
CompleteAuthCallback verifies what a callback URL carried.

  - token_hash with type=email: confirm the email address.
  - access_token: adopt the session it grants (type=signup also confirms).
  - nothing: fall back to whatever session already exists.

It never runs twice for the same tokens on its own; the caller moves off the
callback route once it returns.
*/
func (client *HTTPClient) CompleteAuthCallback(ctx context.Context, tokens CallbackTokens) (CallbackOutcome, error) {
	if tokens.Error != "" {
		message := tokens.ErrorDescription
		if message == "" {
			message = "Sign-in was cancelled or failed"
		}
		return OutcomeNone, apperr.InvalidCredentials(message)
	}

	if tokens.TokenHash != "" && tokens.Type == TypeEmail {
		err := client.api.Do(ctx, apiclient.Request{
			Method: http.MethodPost,
			Path:   "/auth/verify",
			Body:   verifyRequest{Token: tokens.TokenHash},
		}, nil)
		if err != nil {
			return OutcomeNone, mapVerifyError(err)
		}
		client.logger.InfoContext(ctx, "identity_email_confirmed")
		return OutcomeEmailConfirmed, nil
	}

	if tokens.AccessToken != "" {
		var response sessionResponse
		err := client.api.Do(ctx, apiclient.Request{
			Method: http.MethodGet,
			Path:   "/auth/session",
			Token:  tokens.AccessToken,
		}, &response)
		if err != nil {
			return OutcomeNone, mapVerifyError(err)
		}
		if _, err := client.adopt(ctx, response, tokens.AccessToken); err != nil {
			return OutcomeNone, err
		}

		if tokens.Type == TypeSignup {
			return OutcomeEmailConfirmed, nil
		}
		return OutcomeSignedIn, nil
	}

	session, err := client.GetSession(ctx)
	if err != nil {
		return OutcomeNone, err
	}
	if session.Valid() {
		return OutcomeSignedIn, nil
	}
	return OutcomeNone, nil
}

// # Persistence

// adopt persists a freshly issued session and pushes it to subscribers.
func (client *HTTPClient) adopt(ctx context.Context, response sessionResponse, token string) (*Session, error) {
	if response.ID == "" || token == "" {
		return nil, apperr.TransportFailure(http.StatusOK, errors.New("identity: response carried no session"))
	}

	createdAt := response.CreatedAt
	if createdAt.IsZero() {
		createdAt = client.now()
	}
	session := &Session{
		Subject:   response.ID,
		Handle:    response.Username,
		Token:     token,
		CreatedAt: createdAt,
	}

	client.mu.Lock()
	client.persist(ctx, session)
	client.mu.Unlock()

	client.logger.InfoContext(ctx, "identity_session_adopted", slog.String("subject", session.Subject))
	client.changes.Publish(session)

	return session, nil
}

// persist writes the minimal session document. A failed write only costs the
// next restart its restored session, so it is logged, not returned.
func (client *HTTPClient) persist(ctx context.Context, session *Session) {
	raw, err := json.Marshal(storedSession{
		UserID:   session.Subject,
		Username: session.Handle,
		Token:    session.Token,
	})
	if err == nil {
		err = client.store.Set(ctx, constants.StorageKeyAuth, raw)
	}
	if err != nil {
		client.logger.WarnContext(ctx, "identity_persist_failed", slog.Any("error", err))
	}
}

// purge removes the local session and pushes nil.
func (client *HTTPClient) purge(ctx context.Context) {
	client.mu.Lock()
	if err := client.store.Delete(ctx, constants.StorageKeyAuth); err != nil {
		client.logger.WarnContext(ctx, "identity_purge_failed", slog.Any("error", err))
	}
	client.mu.Unlock()

	client.changes.Publish(nil)
}

// # Error Mapping

// mapLoginError keeps server-issued identity codes and classifies the rest by status.
func mapLoginError(err error) error {
	appError := apperr.As(err)
	if appError == nil || appError.Code == apperr.CodeTransportFailure {
		return err
	}

	switch appError.Code {
	case apperr.CodeInvalidCredentials, apperr.CodeUnconfirmedAccount:
		return appError
	}

	switch appError.HTTPStatus {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
		return apperr.InvalidCredentials("Invalid username or password")
	case http.StatusForbidden:
		return apperr.UnconfirmedAccount("Please confirm your email before signing in")
	case http.StatusTooManyRequests:
		return appError
	}
	return apperr.TransportFailure(appError.HTTPStatus, appError)
}

func mapSignupError(err error) error {
	appError := apperr.As(err)
	if appError == nil || appError.Code == apperr.CodeTransportFailure {
		return err
	}

	switch appError.Code {
	case apperr.CodeAccountExists, apperr.CodeWeakCredential, apperr.CodeValidation, apperr.CodeUnconfirmedAccount:
		return appError
	}

	switch appError.HTTPStatus {
	case http.StatusConflict, http.StatusBadRequest:
		return apperr.AccountExists("Username already exists or invalid input")
	case http.StatusTooManyRequests:
		return appError
	}
	return apperr.TransportFailure(appError.HTTPStatus, appError)
}

func mapVerifyError(err error) error {
	appError := apperr.As(err)
	if appError == nil || appError.Code == apperr.CodeTransportFailure {
		return err
	}

	if appError.HTTPStatus >= 400 && appError.HTTPStatus < 500 {
		return apperr.InvalidCredentials("The link is invalid or has expired")
	}
	return apperr.TransportFailure(appError.HTTPStatus, appError)
}
