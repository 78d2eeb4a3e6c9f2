// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package appstate decides which surface the client shows.

[Resolve] is a pure function of the session cache, the profile cache and the
current route. It holds no state, so the same inputs always resolve the same
way and repeated session pushes cannot cause repeated transitions.

Priority, highest first:

 1. Callback route (/auth/callback, /email-confirmed): AuthCallbackInFlight.
 2. Session or profile still loading: Bootstrapping.
 3. No session: Unauthenticated.
 4. Session without profile: Onboarding (redirecting to "/" when elsewhere).
 5. Session and profile: Authenticated, with navigation chrome.
*/
package appstate

import (
	"github.com/taibuivan/unpuff/internal/route"
)

// State names the surface to render.
type State string

const (
	Bootstrapping        State = "bootstrapping"
	Unauthenticated      State = "unauthenticated"
	Onboarding           State = "onboarding"
	Authenticated        State = "authenticated"
	AuthCallbackInFlight State = "auth_callback_in_flight"
)

// Inputs is everything the resolver looks at.
type Inputs struct {
	HasSession     bool
	SessionLoading bool
	HasProfile     bool
	ProfileLoading bool
	Path           string
}

// Resolved is the outcome of [Resolve].
type Resolved struct {
	State State
	// Redirect is the path to move to, or "" to stay.
	Redirect string
	// ShowNavigation reports whether navigation chrome is visible.
	ShowNavigation bool
}

// Resolve maps inputs to the state to render.
func Resolve(in Inputs) Resolved {
	path := route.Normalize(in.Path)

	if route.IsCallback(path) {
		return Resolved{State: AuthCallbackInFlight}
	}

	if in.SessionLoading || in.ProfileLoading {
		return Resolved{State: Bootstrapping}
	}

	if !in.HasSession {
		return Resolved{State: Unauthenticated}
	}

	if !in.HasProfile {
		// Onboarding only renders at the root; deeper routes are sent back there.
		if path != route.Root {
			return Resolved{State: Onboarding, Redirect: route.Root}
		}
		return Resolved{State: Onboarding}
	}

	return Resolved{State: Authenticated, ShowNavigation: true}
}
