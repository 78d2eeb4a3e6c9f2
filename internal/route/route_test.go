// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package route_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/unpuff/internal/route"
)

func TestNormalizeAndIsCallback(t *testing.T) {
	tests := []struct {
		path     string
		want     string
		callback bool
	}{
		{"", "/", false},
		{"/", "/", false},
		{"auth/callback", "/auth/callback", true},
		{"/auth/callback/", "/auth/callback", true},
		{"/email-confirmed", "/email-confirmed", true},
		{"/settings", "/settings", false},
		{"/auth", "/auth", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, route.Normalize(tt.path), tt.path)
		assert.Equal(t, tt.callback, route.IsCallback(tt.path), tt.path)
	}
}

func TestLocation_ParamPrefersFragment(t *testing.T) {
	location := route.Location{
		Path:     route.AuthCallback,
		Query:    url.Values{"access_token": {"from-query"}, "type": {"email"}},
		Fragment: url.Values{"access_token": {"from-fragment"}},
	}

	assert.Equal(t, "from-fragment", location.Param("access_token"))
	assert.Equal(t, "email", location.Param("type"))
	assert.Equal(t, "", location.Param("missing"))
	assert.Equal(t, "/auth/callback?access_token=from-query&type=email#access_token=from-fragment", location.String())
}

func TestNavigator_NavigatePublishesCopies(t *testing.T) {
	navigator := route.NewNavigator(route.At(route.Root))

	var seen []route.Location
	navigator.Subscribe(func(location route.Location) { seen = append(seen, location) })

	query := url.Values{"token_hash": {"abc"}}
	navigator.Navigate(route.Location{Path: route.AuthCallback, Query: query})
	query.Set("token_hash", "mutated")

	assert.Len(t, seen, 1)
	assert.Equal(t, "abc", seen[0].Param("token_hash"))
	assert.Equal(t, "abc", navigator.Current().Param("token_hash"))

	navigator.Replace(route.Root)
	assert.Equal(t, route.Root, navigator.Current().Path)
	assert.Empty(t, navigator.Current().Query)
}
