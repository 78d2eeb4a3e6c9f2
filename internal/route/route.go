// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package route models the client's current navigational location.

A [Location] carries the path plus the query and fragment parameters the
callback handler reads tokens from. The [Navigator] swaps locations
atomically: a subscriber never observes a path without its parameters.
*/
package route

import (
	"net/url"
	"strings"
	"sync"

	"github.com/taibuivan/unpuff/internal/platform/observe"
)

// # Routes

const (
	Root           = "/"
	AuthCallback   = "/auth/callback"
	EmailConfirmed = "/email-confirmed"
	Settings       = "/settings"
	Progress       = "/progress"
)

// IsCallback reports whether path is one of the reserved auth callback routes.
func IsCallback(path string) bool {
	path = Normalize(path)
	return path == AuthCallback || path == EmailConfirmed
}

// Normalize cleans a path: leading slash, no trailing slash except for root.
func Normalize(path string) string {
	if path == "" {
		return Root
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return Root
		}
	}
	return path
}

// # Location

// Location is one navigational state.
type Location struct {
	Path     string
	Query    url.Values
	Fragment url.Values
}

// At returns a Location for path without parameters.
func At(path string) Location {
	return Location{Path: Normalize(path)}
}

// Param returns the named parameter, preferring the fragment over the query.
// OAuth implicit returns carry tokens in the fragment; email links in the query.
func (location Location) Param(name string) string {
	if value := location.Fragment.Get(name); value != "" {
		return value
	}
	return location.Query.Get(name)
}

// String renders the location as a relative URL.
func (location Location) String() string {
	var builder strings.Builder
	builder.WriteString(Normalize(location.Path))
	if len(location.Query) > 0 {
		builder.WriteString("?")
		builder.WriteString(location.Query.Encode())
	}
	if len(location.Fragment) > 0 {
		builder.WriteString("#")
		builder.WriteString(location.Fragment.Encode())
	}
	return builder.String()
}

func (location Location) clone() Location {
	return Location{
		Path:     location.Path,
		Query:    cloneValues(location.Query),
		Fragment: cloneValues(location.Fragment),
	}
}

func cloneValues(values url.Values) url.Values {
	if values == nil {
		return nil
	}
	clone := make(url.Values, len(values))
	for key, list := range values {
		clone[key] = append([]string(nil), list...)
	}
	return clone
}

// # Navigator

// Navigator holds the current location.
type Navigator struct {
	mu        sync.RWMutex
	current   Location
	publishMu sync.Mutex
	hub       observe.Hub[Location]
}

// NewNavigator starts at initial.
func NewNavigator(initial Location) *Navigator {
	initial.Path = Normalize(initial.Path)
	return &Navigator{current: initial.clone()}
}

// Current returns a copy of the current location.
func (navigator *Navigator) Current() Location {
	navigator.mu.RLock()
	defer navigator.mu.RUnlock()
	return navigator.current.clone()
}

// Navigate replaces the location in one step and notifies subscribers.
func (navigator *Navigator) Navigate(location Location) {
	location.Path = Normalize(location.Path)
	location = location.clone()

	navigator.publishMu.Lock()
	defer navigator.publishMu.Unlock()

	navigator.mu.Lock()
	navigator.current = location
	navigator.mu.Unlock()

	navigator.hub.Publish(location.clone())
}

// Replace navigates to path, dropping any parameters. Used after a callback
// has consumed its tokens so they do not linger in the location.
func (navigator *Navigator) Replace(path string) {
	navigator.Navigate(At(path))
}

// Subscribe registers fn for location changes.
func (navigator *Navigator) Subscribe(fn func(Location)) func() {
	return navigator.hub.Subscribe(fn)
}
