// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package appstate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/unpuff/internal/appstate"
	"github.com/taibuivan/unpuff/internal/route"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		in   appstate.Inputs
		want appstate.Resolved
	}{
		{
			name: "initial_load",
			in:   appstate.Inputs{SessionLoading: true, ProfileLoading: true, Path: route.Root},
			want: appstate.Resolved{State: appstate.Bootstrapping},
		},
		{
			name: "profile_still_loading",
			in:   appstate.Inputs{HasSession: true, ProfileLoading: true, Path: route.Root},
			want: appstate.Resolved{State: appstate.Bootstrapping},
		},
		{
			name: "fresh_install",
			in:   appstate.Inputs{Path: route.Root},
			want: appstate.Resolved{State: appstate.Unauthenticated},
		},
		{
			name: "profile_without_session",
			in:   appstate.Inputs{HasProfile: true, Path: route.Root},
			want: appstate.Resolved{State: appstate.Unauthenticated},
		},
		{
			name: "signed_in_without_profile",
			in:   appstate.Inputs{HasSession: true, Path: route.Root},
			want: appstate.Resolved{State: appstate.Onboarding},
		},
		{
			name: "signed_in_without_profile_elsewhere",
			in:   appstate.Inputs{HasSession: true, Path: route.Settings},
			want: appstate.Resolved{State: appstate.Onboarding, Redirect: route.Root},
		},
		{
			name: "signed_in_with_profile",
			in:   appstate.Inputs{HasSession: true, HasProfile: true, Path: route.Progress},
			want: appstate.Resolved{State: appstate.Authenticated, ShowNavigation: true},
		},
		{
			name: "callback_without_session",
			in:   appstate.Inputs{Path: route.AuthCallback},
			want: appstate.Resolved{State: appstate.AuthCallbackInFlight},
		},
		{
			name: "callback_while_loading",
			in:   appstate.Inputs{SessionLoading: true, ProfileLoading: true, Path: route.EmailConfirmed},
			want: appstate.Resolved{State: appstate.AuthCallbackInFlight},
		},
		{
			name: "callback_while_signed_in",
			in:   appstate.Inputs{HasSession: true, HasProfile: true, Path: route.AuthCallback + "/"},
			want: appstate.Resolved{State: appstate.AuthCallbackInFlight},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, appstate.Resolve(tt.in))
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	in := appstate.Inputs{HasSession: true, Path: route.Root}
	assert.Equal(t, appstate.Resolve(in), appstate.Resolve(in))
}
