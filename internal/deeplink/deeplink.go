// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package deeplink turns URLs opened by the shell into navigation.

Two URL shapes reach the client:

	unpuff://auth/callback?token_hash=...&type=email     (custom scheme, host form)
	https://unpuff.app/auth/callback#access_token=...    (web, path form)

Recognised callback URLs have their query and fragment copied into the
location the callback handler reads from. The router never verifies tokens
itself; that is the identity client's job once the handler runs.
*/
package deeplink

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/platform/constants"
	"github.com/taibuivan/unpuff/internal/route"
)

// Invalidator is told to re-check the session after a callback URL arrived.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Router recognises auth callback URLs.
type Router struct {
	navigator   *route.Navigator
	invalidator Invalidator
	scheme      string
	logger      *slog.Logger
}

// NewRouter creates a Router for the app's custom scheme ("unpuff").
func NewRouter(navigator *route.Navigator, invalidator Invalidator, logger *slog.Logger) *Router {
	return &Router{
		navigator:   navigator,
		invalidator: invalidator,
		scheme:      constants.AppName,
		logger:      logger,
	}
}

/*
Open handles one inbound URL.

Description: The location swap that stages the tokens is also the navigation,
so the callback handler can never observe the callback route without its
parameters. The session invalidation signal follows the navigation.

Returns:
  - bool: true when the URL was an auth callback and navigation happened
  - error: VALIDATION_ERROR when raw is not a URL at all
*/
func (router *Router) Open(ctx context.Context, raw string) (bool, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false, apperr.ValidationError("Invalid link", apperr.FieldError{Field: "url", Message: err.Error()})
	}

	path, ok := router.callbackPath(parsed)
	if !ok {
		router.logger.DebugContext(ctx, "deeplink_ignored", slog.String("scheme", parsed.Scheme))
		return false, nil
	}

	// Malformed fragments degrade to "no fragment tokens", not to an error.
	fragment, _ := url.ParseQuery(parsed.Fragment)
	router.navigator.Navigate(route.Location{
		Path:     path,
		Query:    parsed.Query(),
		Fragment: fragment,
	})

	router.logger.InfoContext(ctx, "deeplink_callback_opened", slog.String("path", path))

	if router.invalidator != nil {
		router.invalidator.Invalidate(ctx)
	}
	return true, nil
}

// callbackPath returns the internal route for a callback URL.
func (router *Router) callbackPath(parsed *url.URL) (string, bool) {
	var path string

	switch strings.ToLower(parsed.Scheme) {
	case router.scheme:
		// unpuff://auth/callback puts the first segment in the host.
		path = "/" + parsed.Host + parsed.Path
	case "http", "https", "":
		path = parsed.Path
	default:
		return "", false
	}

	// unpuff:///auth/callback has an empty host and leaves "//auth/callback".
	path = route.Normalize("/" + strings.TrimLeft(path, "/"))
	if !route.IsCallback(path) {
		return "", false
	}
	return path, true
}
