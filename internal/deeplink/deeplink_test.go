// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package deeplink_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/unpuff/internal/deeplink"
	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/route"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// invalidations records Invalidate calls together with the location seen at that moment.
type invalidations struct {
	navigator *route.Navigator
	seen      []route.Location
}

func (inv *invalidations) Invalidate(context.Context) {
	inv.seen = append(inv.seen, inv.navigator.Current())
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantHandled  bool
		wantPath     string
		wantParam    string
		wantParamVal string
	}{
		{"custom_scheme_query", "unpuff://auth/callback?token_hash=abc&type=email", true, route.AuthCallback, "token_hash", "abc"},
		{"custom_scheme_fragment", "unpuff://auth/callback#access_token=tok&type=oauth", true, route.AuthCallback, "access_token", "tok"},
		{"custom_scheme_email_confirmed", "unpuff://email-confirmed", true, route.EmailConfirmed, "", ""},
		{"custom_scheme_empty_host", "unpuff:///auth/callback#access_token=tok&type=oauth", true, route.AuthCallback, "access_token", "tok"},
		{"https_repeated_slashes", "https://unpuff.app//auth/callback?token_hash=abc", true, route.AuthCallback, "token_hash", "abc"},
		{"https_path", "https://unpuff.app/auth/callback/?token_hash=xyz&type=email", true, route.AuthCallback, "token_hash", "xyz"},
		{"https_email_confirmed", "https://unpuff.app/email-confirmed", true, route.EmailConfirmed, "", ""},
		{"relative_path", "/auth/callback#access_token=rel", true, route.AuthCallback, "access_token", "rel"},
		{"other_path", "https://unpuff.app/settings", false, "", "", ""},
		{"other_scheme", "mailto:sam@example.com", false, "", "", ""},
		{"foreign_custom_scheme", "otherapp://auth/callback?token_hash=abc", false, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			navigator := route.NewNavigator(route.At(route.Root))
			inv := &invalidations{navigator: navigator}
			router := deeplink.NewRouter(navigator, inv, discard)

			handled, err := router.Open(context.Background(), tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHandled, handled)

			if !tt.wantHandled {
				assert.Equal(t, route.Root, navigator.Current().Path)
				assert.Empty(t, inv.seen)
				return
			}

			current := navigator.Current()
			assert.Equal(t, tt.wantPath, current.Path)
			if tt.wantParam != "" {
				assert.Equal(t, tt.wantParamVal, current.Param(tt.wantParam))
			}

			// The session is invalidated after the tokens are in place.
			require.Len(t, inv.seen, 1)
			assert.Equal(t, tt.wantPath, inv.seen[0].Path)
			if tt.wantParam != "" {
				assert.Equal(t, tt.wantParamVal, inv.seen[0].Param(tt.wantParam))
			}
		})
	}
}

func TestOpen_SubscriberSeesTokensWithPath(t *testing.T) {
	navigator := route.NewNavigator(route.At(route.Root))
	router := deeplink.NewRouter(navigator, nil, discard)

	var observed []route.Location
	navigator.Subscribe(func(location route.Location) { observed = append(observed, location) })

	handled, err := router.Open(context.Background(), "unpuff://auth/callback?token_hash=abc&type=email")
	require.NoError(t, err)
	require.True(t, handled)

	require.Len(t, observed, 1)
	assert.Equal(t, route.AuthCallback, observed[0].Path)
	assert.Equal(t, "abc", observed[0].Param("token_hash"))
	assert.Equal(t, "email", observed[0].Param("type"))
}

func TestOpen_InvalidURL(t *testing.T) {
	router := deeplink.NewRouter(route.NewNavigator(route.At(route.Root)), nil, discard)

	handled, err := router.Open(context.Background(), "unpuff://auth/%zz")
	assert.False(t, handled)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}
