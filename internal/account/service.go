// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/platform/constants"
	"github.com/taibuivan/unpuff/internal/platform/ctxutil"
	"github.com/taibuivan/unpuff/internal/platform/metrics"
	"github.com/taibuivan/unpuff/internal/platform/sec"
	"github.com/taibuivan/unpuff/internal/platform/validate"
	"github.com/taibuivan/unpuff/pkg/handle"
	"github.com/taibuivan/unpuff/pkg/uuid"
)

// # Contracts & Types

// TokenIssuer signs and verifies access tokens.
type TokenIssuer interface {
	GenerateAccessToken(userID, username string, timeToLive time.Duration) (*sec.IssuedToken, error)
	VerifyToken(token string) (*sec.AuthClaims, error)
}

// Settings is the credential and session policy of the service.
type Settings struct {
	// SessionTTL is the lifetime of an access token and its Redis session.
	SessionTTL time.Duration
	// PasswordMinLength is 3 in the simple username variant, 6 in the email variant.
	PasswordMinLength int
	// RequireEmailConfirmation blocks login until the email link was opened.
	RequireEmailConfirmation bool
	// PublicBaseURL is used for confirmation links and the default OAuth return.
	PublicBaseURL string
}

// callbackPath is the client route auth links return to.
const callbackPath = "/auth/callback"

// Service implements the account use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, signup,
// or login logic must be reviewed with care.
type Service struct {
	accountRepository Repository
	tokenRepository   TokenRepository
	tokenIssuer       TokenIssuer
	notifier          Notifier
	recorder          metrics.Recorder
	providers         map[string]OAuthProvider
	settings          Settings
}

// NewService constructs a new [Service] with its dependencies.
func NewService(
	accountRepo Repository,
	tokenRepo TokenRepository,
	issuer TokenIssuer,
	notifier Notifier,
	recorder metrics.Recorder,
	settings Settings,
	providers ...OAuthProvider,
) *Service {
	registered := make(map[string]OAuthProvider, len(providers))
	for _, provider := range providers {
		registered[provider.Name()] = provider
	}

	return &Service{
		accountRepository: accountRepo,
		tokenRepository:   tokenRepo,
		tokenIssuer:       issuer,
		notifier:          notifier,
		recorder:          recorder,
		providers:         registered,
		settings:          settings,
	}
}

// AuthResult is a successfully established session.
type AuthResult struct {
	Account *Account
	Token   string
}

// # Signup Flow

// SignupInput holds the data required to register an account.
type SignupInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

/*
Signup validates, hashes, and persists a brand new account, then signs it in.

Description: When email confirmation is required the account is created and
a confirmation link is sent, but no session is issued; the caller receives
UNCONFIRMED_ACCOUNT and signs in after opening the link.

Parameters:
  - ctx: context.Context
  - input: SignupInput

Returns:
  - *AuthResult: The new account and its access token
  - error: VALIDATION_ERROR, WEAK_CREDENTIAL, ACCOUNT_EXISTS, UNCONFIRMED_ACCOUNT or storage errors
*/
func (service *Service) Signup(ctx context.Context, input SignupInput) (*AuthResult, error) {
	result, err := service.signup(ctx, input)
	service.record(EventSignup, err)
	return result, err
}

func (service *Service) signup(ctx context.Context, input SignupInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.TrimSpace(input.Username)
	if username == "" && email != "" {
		username = handle.FromEmail(email)
	}

	validator := &validate.Validator{}
	validator.
		Required(FieldUsername, username).
		MinLen(FieldUsername, username, UsernameMinLength).
		MaxLen(FieldUsername, username, UsernameMaxLength).
		Custom(FieldUsername, strings.ContainsAny(username, " @/"), "Must not contain spaces, @ or /").
		MaxLen(FieldDisplayName, input.DisplayName, DisplayNameMaxLength)
	if email != "" {
		validator.Email(FieldEmail, email)
	} else if service.settings.RequireEmailConfirmation {
		validator.Required(FieldEmail, email)
	}
	if err := validator.Err(); err != nil {
		return nil, err
	}

	if len(input.Password) < service.settings.PasswordMinLength {
		return nil, apperr.WeakCredential(service.settings.PasswordMinLength)
	}

	// Uniqueness checks. The unique indexes still catch a racing signup.
	if _, err := service.accountRepository.FindByUsername(ctx, username); err == nil {
		return nil, apperr.AccountExists("Username is already taken")
	} else if !apperr.HasCode(err, apperr.CodeNotFound) {
		return nil, err
	}
	if email != "" {
		if _, err := service.accountRepository.FindByEmail(ctx, email); err == nil {
			return nil, apperr.AccountExists("Email is already registered")
		} else if !apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, err
		}
	}

	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account_service_hash_failed: %w", err)
	}

	account := &Account{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		Provider:     ProviderPassword,
		IsVerified:   email == "" || !service.settings.RequireEmailConfirmation,
	}

	if err := service.accountRepository.Create(ctx, account); err != nil {
		return nil, err
	}

	if email != "" && !account.IsVerified {
		if err := service.sendVerification(ctx, account); err != nil {
			return nil, err
		}
		return nil, apperr.UnconfirmedAccount("Check your email to confirm your account")
	}

	return service.issueSession(ctx, account)
}

// sendVerification stores a one-time token and hands the link to the notifier.
func (service *Service) sendVerification(ctx context.Context, account *Account) error {
	token, err := sec.GenerateSecureToken(VerificationTokenLength)
	if err != nil {
		return fmt.Errorf("account_service_verify_token_failed: %w", err)
	}

	if err := service.tokenRepository.SaveVerifyToken(ctx, sec.HashToken(token), account.ID, VerificationTokenTTL); err != nil {
		return err
	}

	link := strings.TrimRight(service.settings.PublicBaseURL, "/") + callbackPath + "?" + url.Values{
		"token_hash": {token},
		"type":       {"email"},
	}.Encode()

	if err := service.notifier.SendVerification(ctx, account, link); err != nil {
		return fmt.Errorf("account_service_notify_failed: %w", err)
	}
	return nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Login    string // Username or email
	Password string
}

/*
Login validates credentials and issues an access token.

Returns:
  - *AuthResult: The account and its access token
  - error: INVALID_CREDENTIALS, UNCONFIRMED_ACCOUNT or storage errors
*/
func (service *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	result, err := service.login(ctx, input)
	service.record(EventLogin, err)
	return result, err
}

func (service *Service) login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	login := strings.TrimSpace(input.Login)

	var (
		account *Account
		err     error
	)
	if strings.Contains(login, "@") {
		account, err = service.accountRepository.FindByEmail(ctx, login)
	} else {
		account, err = service.accountRepository.FindByUsername(ctx, login)
	}

	// Generic message to prevent enumeration.
	if apperr.HasCode(err, apperr.CodeNotFound) {
		return nil, apperr.InvalidCredentials("Invalid username or password")
	}
	if err != nil {
		return nil, err
	}

	if account.PasswordHash == "" || !sec.CheckPasswordHash(input.Password, account.PasswordHash) {
		return nil, apperr.InvalidCredentials("Invalid username or password")
	}

	if service.settings.RequireEmailConfirmation && !account.IsVerified {
		return nil, apperr.UnconfirmedAccount("Please confirm your email before signing in")
	}

	return service.issueSession(ctx, account)
}

// issueSession signs an access token and records its jti as a live session.
func (service *Service) issueSession(ctx context.Context, account *Account) (*AuthResult, error) {
	issued, err := service.tokenIssuer.GenerateAccessToken(account.ID, account.Username, service.settings.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("account_service_token_generation_failed: %w", err)
	}

	if err := service.tokenRepository.SaveSession(ctx, issued.ID, account.ID, service.settings.SessionTTL); err != nil {
		return nil, fmt.Errorf("account_service_session_creation_failed: %w", err)
	}

	return &AuthResult{
		Account: account,
		Token:   issued.Value,
	}, nil
}

// # Session Management

// Session returns the account behind a verified token.
func (service *Service) Session(ctx context.Context, accountID string) (*Account, error) {
	return service.accountRepository.FindByID(ctx, accountID)
}

/*
VerifyAccessToken checks a bearer token's signature and that its session is
still live in Redis. It backs the authentication middleware.

Returns:
  - *sec.AuthClaims: Verified claims
  - error: UNAUTHORIZED for bad, expired or revoked tokens
*/
func (service *Service) VerifyAccessToken(ctx context.Context, token string) (*sec.AuthClaims, error) {
	claims, err := service.tokenIssuer.VerifyToken(token)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}

	accountID, err := service.tokenRepository.FindSession(ctx, claims.ID)
	if apperr.HasCode(err, apperr.CodeNotFound) {
		return nil, apperr.Unauthorized("Session has been revoked")
	}
	if err != nil {
		return nil, err
	}
	if accountID != claims.UserID {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}

	return claims, nil
}

// Logout revokes the session of tokenID. Logging out twice is not an error.
func (service *Service) Logout(ctx context.Context, tokenID string) error {
	err := service.tokenRepository.RevokeSession(ctx, tokenID)
	service.record(EventLogout, err)
	if err != nil {
		return fmt.Errorf("account_service_logout_failed: %w", err)
	}
	return nil
}

// # Email Confirmation

/*
VerifyEmail confirms an account's email address with a one-time token.

Returns:
  - *Account: The confirmed account
  - error: VALIDATION_ERROR for unknown or expired tokens
*/
func (service *Service) VerifyEmail(ctx context.Context, token string) (*Account, error) {
	account, err := service.verifyEmail(ctx, token)
	service.record(EventVerify, err)
	return account, err
}

func (service *Service) verifyEmail(ctx context.Context, token string) (*Account, error) {
	validator := &validate.Validator{}
	if err := validator.Required(FieldToken, token).Err(); err != nil {
		return nil, err
	}

	accountID, err := service.tokenRepository.ConsumeVerifyToken(ctx, sec.HashToken(token))
	if apperr.HasCode(err, apperr.CodeNotFound) {
		return nil, apperr.ValidationError("Verification link is invalid or has expired",
			apperr.FieldError{Field: FieldToken, Message: "Unknown or expired token"})
	}
	if err != nil {
		return nil, err
	}

	if err := service.accountRepository.MarkVerified(ctx, accountID); err != nil {
		return nil, err
	}

	return service.accountRepository.FindByID(ctx, accountID)
}

// # OAuth Flow

// OAuthProviders lists the names of the configured providers.
func (service *Service) OAuthProviders() []string {
	names := make([]string, 0, len(service.providers))
	for name := range service.providers {
		names = append(names, name)
	}
	return names
}

/*
StartOAuth records a pending flow and returns the provider's consent URL.

Parameters:
  - providerName: string ("google")
  - redirectTo: string (client return target; custom scheme or our own origin)

Returns:
  - string: Provider URL to redirect the browser to
  - error: NOT_FOUND for unknown providers, VALIDATION_ERROR for foreign redirects
*/
func (service *Service) StartOAuth(ctx context.Context, providerName, redirectTo string) (string, error) {
	provider, ok := service.providers[providerName]
	if !ok {
		return "", apperr.NotFound("OAuth provider")
	}

	target, err := service.allowedRedirect(redirectTo)
	if err != nil {
		return "", err
	}

	state := uuid.New()
	if err := service.tokenRepository.SaveOAuthState(ctx, state, OAuthState{Provider: providerName, RedirectTo: target}, OAuthStateTTL); err != nil {
		return "", err
	}

	return provider.LoginURL(state), nil
}

/*
CompleteOAuth finishes a provider flow and returns the client URL to send the
browser to.

Description: The access token travels in the URL fragment
(#access_token=...&type=oauth) so it never reaches server logs. When the flow
fails after the state was recognised, the returned URL carries
#error=...&error_description=... instead, together with the error.
*/
func (service *Service) CompleteOAuth(ctx context.Context, providerName, code, state string) (string, error) {
	pending, err := service.tokenRepository.ConsumeOAuthState(ctx, state)
	if apperr.HasCode(err, apperr.CodeNotFound) {
		err = apperr.ValidationError("Sign-in session is invalid or has expired")
		service.record(EventOAuth, err)
		return "", err
	}
	if err != nil {
		service.record(EventOAuth, err)
		return "", err
	}

	result, err := service.completeOAuth(ctx, pending, providerName, code)
	service.record(EventOAuth, err)
	if err != nil {
		return withFragment(pending.RedirectTo, url.Values{
			"error":             {"access_denied"},
			"error_description": {publicMessage(err)},
		}), err
	}

	return withFragment(pending.RedirectTo, url.Values{
		"access_token": {result.Token},
		"type":         {"oauth"},
	}), nil
}

func (service *Service) completeOAuth(ctx context.Context, pending *OAuthState, providerName, code string) (*AuthResult, error) {
	provider, ok := service.providers[providerName]
	if !ok || pending.Provider != providerName {
		return nil, apperr.ValidationError("Sign-in provider mismatch")
	}
	if code == "" {
		return nil, apperr.InvalidCredentials("Sign-in was cancelled")
	}

	info, err := provider.ExchangeCode(ctx, code)
	if err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "account_oauth_exchange_failed",
			slog.String("provider", providerName), slog.Any("error", err))
		return nil, apperr.InvalidCredentials("The sign-in provider rejected the request")
	}

	account, err := service.resolveOAuthAccount(ctx, info)
	if err != nil {
		if apperr.As(err) == nil {
			err = apperr.Internal(err)
		}
		return nil, err
	}

	return service.issueSession(ctx, account)
}

/*
resolveOAuthAccount finds the account linked to info, links an existing
account by email, or creates a new one.

Description: Linking by email requires the existing account to have
confirmed that email. An unconfirmed account proves nothing about who owns
the address, so the provider identity gets a separate account that leaves the
address with its first claimant.
*/
func (service *Service) resolveOAuthAccount(ctx context.Context, info *OAuthUserInfo) (*Account, error) {
	account, err := service.accountRepository.FindByProvider(ctx, info.Provider, info.ProviderUserID)
	if err == nil {
		return account, nil
	}
	if !apperr.HasCode(err, apperr.CodeNotFound) {
		return nil, err
	}

	email := strings.ToLower(info.Email)
	if email != "" {
		existing, err := service.accountRepository.FindByEmail(ctx, email)
		switch {
		case err == nil && existing.IsVerified:
			return service.linkOAuthAccount(ctx, existing, info)
		case err == nil:
			ctxutil.GetLogger(ctx).WarnContext(ctx, "account_oauth_email_unconfirmed",
				slog.String("account_id", existing.ID), slog.String("provider", info.Provider))
			email = ""
		case !apperr.HasCode(err, apperr.CodeNotFound):
			return nil, err
		}
	}

	username, err := service.availableUsername(ctx, info)
	if err != nil {
		return nil, err
	}

	account = &Account{
		ID:             uuid.New(),
		Username:       username,
		Email:          email,
		DisplayName:    info.Name,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		IsVerified:     true,
	}
	if err := service.accountRepository.Create(ctx, account); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "account_oauth_created",
		slog.String("account_id", account.ID), slog.String("provider", info.Provider))
	return account, nil
}

// linkOAuthAccount attaches the provider identity to a confirmed account.
// An account already linked to another identity of a provider is refused.
func (service *Service) linkOAuthAccount(ctx context.Context, existing *Account, info *OAuthUserInfo) (*Account, error) {
	if existing.ProviderUserID != "" {
		return nil, apperr.AccountExists("This email is already linked to another sign-in")
	}

	if err := service.accountRepository.LinkProvider(ctx, existing.ID, info.Provider, info.ProviderUserID); err != nil {
		return nil, err
	}

	existing.Provider = info.Provider
	existing.ProviderUserID = info.ProviderUserID
	existing.IsVerified = true

	ctxutil.GetLogger(ctx).InfoContext(ctx, "account_oauth_linked",
		slog.String("account_id", existing.ID), slog.String("provider", info.Provider))
	return existing, nil
}

// maxUsernameAttempts bounds the numbered suffixes tried for a derived username.
const maxUsernameAttempts = 5

// availableUsername derives a handle from the provider identity and picks the
// first free variant (sam, sam_2, sam_3, ...).
func (service *Service) availableUsername(ctx context.Context, info *OAuthUserInfo) (string, error) {
	base := handle.FromEmail(info.Email)
	if base == "" {
		base = handle.From(info.Name)
	}
	if len(base) < UsernameMinLength {
		base = strings.Trim(constants.AppName+"_"+base, "_")
	}
	base = base[:min(len(base), UsernameMaxLength-4)]

	for attempt := 1; attempt <= maxUsernameAttempts; attempt++ {
		candidate := base
		if attempt > 1 {
			candidate = fmt.Sprintf("%s_%d", base, attempt)
		}

		_, err := service.accountRepository.FindByUsername(ctx, candidate)
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}

	// Fall back to a random suffix from a fresh identifier.
	id := uuid.New()
	return base + "_" + id[len(id)-6:], nil
}

// allowedRedirect accepts the app's custom scheme and our own origin only.
func (service *Service) allowedRedirect(target string) (string, error) {
	public, err := url.Parse(service.settings.PublicBaseURL)
	if err != nil {
		return "", fmt.Errorf("account_service_public_url_invalid: %w", err)
	}

	if target == "" {
		return strings.TrimRight(service.settings.PublicBaseURL, "/") + callbackPath, nil
	}

	parsed, err := url.Parse(target)
	if err == nil {
		switch {
		case parsed.Scheme == constants.AppName:
			return target, nil
		case (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host == public.Host:
			return target, nil
		}
	}

	return "", apperr.ValidationError("Redirect target is not allowed",
		apperr.FieldError{Field: FieldRedirectTo, Message: "Must be the app scheme or this origin"})
}

// record counts one auth event by outcome.
func (service *Service) record(event string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	service.recorder.RecordAuthEvent(event, outcome)
}

// withFragment replaces target's fragment with values.
func withFragment(target string, values url.Values) string {
	base, _, _ := strings.Cut(target, "#")
	return base + "#" + values.Encode()
}

// publicMessage returns the client-safe message of err.
func publicMessage(err error) string {
	if appError := apperr.As(err); appError != nil {
		return appError.Message
	}
	return apperr.Internal(err).Message
}
