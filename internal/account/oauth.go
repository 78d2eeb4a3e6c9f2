// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// # Contracts

// OAuthProvider is one third-party identity provider.
type OAuthProvider interface {
	// Name is the path segment the provider is served under ("google").
	Name() string

	// LoginURL returns the provider's consent page for state.
	LoginURL(state string) string

	// ExchangeCode trades an authorization code for the user's identity.
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// OAuthUserInfo is the identity a provider vouches for.
type OAuthUserInfo struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
}

// # Google

const (
	// ProviderPassword marks accounts created with a username and password.
	ProviderPassword = "password"
	ProviderGoogle   = "google"

	defaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	// providerTimeout bounds each call to the provider.
	providerTimeout = 10 * time.Second
	// maxProviderBody bounds how much of a provider response is read.
	maxProviderBody = 1 << 20
)

// GoogleOAuthConfig configures [GoogleOAuthProvider].
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides, for tests.
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// GoogleOAuthProvider signs users in with Google OAuth 2.0.
type GoogleOAuthProvider struct {
	config     GoogleOAuthConfig
	httpClient *http.Client
}

// NewGoogleOAuthProvider creates a provider, filling in Google's public endpoints.
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGoogleAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}
	return &GoogleOAuthProvider{
		config:     config,
		httpClient: &http.Client{Timeout: providerTimeout},
	}
}

// Name implements [OAuthProvider].
func (provider *GoogleOAuthProvider) Name() string {
	return ProviderGoogle
}

// LoginURL builds the consent page URL with the email and profile scopes.
func (provider *GoogleOAuthProvider) LoginURL(state string) string {
	params := url.Values{
		"client_id":     {provider.config.ClientID},
		"redirect_uri":  {provider.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	return provider.config.AuthURL + "?" + params.Encode()
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

/*
ExchangeCode trades the authorization code for a token, then fetches the
user's identity with it.

Returns:
  - *OAuthUserInfo: Provider identity. Email is empty unless Google verified it.
  - error: Provider or transport failures
*/
func (provider *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	token, err := provider.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google_oauth_exchange_failed: %w", err)
	}

	info, err := provider.fetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("google_oauth_userinfo_failed: %w", err)
	}

	email := info.Email
	if !info.EmailVerified {
		email = ""
	}

	return &OAuthUserInfo{
		Provider:       ProviderGoogle,
		ProviderUserID: info.Sub,
		Email:          email,
		Name:           info.Name,
	}, nil
}

func (provider *GoogleOAuthProvider) exchangeToken(ctx context.Context, code string) (*googleTokenResponse, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {provider.config.ClientID},
		"client_secret": {provider.config.ClientSecret},
		"redirect_uri":  {provider.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token googleTokenResponse
	if err := provider.doJSON(request, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, errors.New("empty access token in response")
	}
	return &token, nil
}

func (provider *GoogleOAuthProvider) fetchUserInfo(ctx context.Context, accessToken string) (*googleUserInfo, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, provider.config.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+accessToken)

	var info googleUserInfo
	if err := provider.doJSON(request, &info); err != nil {
		return nil, err
	}
	if info.Sub == "" {
		return nil, errors.New("empty sub in user info response")
	}
	return &info, nil
}

func (provider *GoogleOAuthProvider) doJSON(request *http.Request, out any) error {
	response, err := provider.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxProviderBody))
	if err != nil {
		return err
	}
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", response.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
