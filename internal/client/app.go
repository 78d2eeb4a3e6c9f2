// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package client wires the Unpuff client together.

[App] is built once by the shell and passed around; there is no package level
state. It owns the session cache, the profile cache, the navigator, the deep
link router and the daily counter, and keeps one resolved [appstate.Resolved]
value up to date as any of them change.

Architecture:

  - Inputs: session.Cache and profile.Cache snapshots plus the current route.
  - Derivation: appstate.Resolve, recomputed on every input change.
  - Effects: redirects and callback handling run from App's own operations,
    never from inside a subscriber callback.
*/
package client

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/unpuff/internal/appstate"
	"github.com/taibuivan/unpuff/internal/counter"
	"github.com/taibuivan/unpuff/internal/deeplink"
	"github.com/taibuivan/unpuff/internal/identity"
	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/platform/observe"
	"github.com/taibuivan/unpuff/internal/profile"
	"github.com/taibuivan/unpuff/internal/route"
	"github.com/taibuivan/unpuff/internal/session"
)

// # Definitions & Constructors

// App is the client's composition root.
type App struct {
	identity  identity.Client
	sessions  *session.Cache
	profiles  *profile.Cache
	navigator *route.Navigator
	deeplinks *deeplink.Router
	counter   *counter.Counter
	logger    *slog.Logger

	mu       sync.RWMutex
	resolved appstate.Resolved
	detach   []func()

	// publishMu orders resolved-state notifications.
	publishMu sync.Mutex
	hub       observe.Hub[appstate.Resolved]
}

// Dependencies are the collaborators an [App] is built from.
type Dependencies struct {
	Identity identity.Client
	// Profiles is the local or remote profile store. A remote store reads the
	// bearer token from the App's session cache; see [App.Session].
	Profiles profile.Store
	Counter  *counter.Counter
	Logger   *slog.Logger
	// Initial is the location the shell was opened at. Defaults to root.
	Initial route.Location
}

// New builds an App from deps. Call [App.Start] before use.
func New(deps Dependencies) *App {
	if deps.Initial.Path == "" {
		deps.Initial = route.At(route.Root)
	}

	app := &App{
		identity:  deps.Identity,
		sessions:  session.NewCache(deps.Identity, deps.Logger),
		navigator: route.NewNavigator(deps.Initial),
		counter:   deps.Counter,
		logger:    deps.Logger,
	}
	app.deeplinks = deeplink.NewRouter(app.navigator, app.sessions, deps.Logger)
	app.profiles = profile.NewCache(deps.Profiles, deps.Logger)
	app.resolved = app.resolve()

	return app
}

// NewWithStore is [New] for shells whose profile store needs the session
// cache, such as [profile.RemoteStore]. A profile read from a
// [profile.Scoped] store counts as loading until it was read for the current
// session, so a sign-in never flashes onboarding.
func NewWithStore(deps Dependencies, newStore func(tokens profile.TokenSource) profile.Store) *App {
	app := New(deps)
	app.profiles = profile.NewCache(newStore(app.sessions), deps.Logger)
	return app
}

// # Accessors

// Session returns the session cache.
func (app *App) Session() *session.Cache { return app.sessions }

// Profile returns the profile cache.
func (app *App) Profile() *profile.Cache { return app.profiles }

// Navigator returns the navigator.
func (app *App) Navigator() *route.Navigator { return app.navigator }

// Counter returns the daily counter.
func (app *App) Counter() *counter.Counter { return app.counter }

// Resolved returns the current resolved app state.
func (app *App) Resolved() appstate.Resolved {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.resolved
}

// Subscribe registers fn for resolved-state changes.
func (app *App) Subscribe(fn func(appstate.Resolved)) func() {
	return app.hub.Subscribe(fn)
}

// # Lifecycle

/*
Start subscribes to every input, then loads the session and the profile in
parallel.

Description: If the shell was opened on a callback route, the callback is
handled before Start returns. The returned error is the callback's.
*/
func (app *App) Start(ctx context.Context) error {
	app.mu.Lock()
	if app.detach == nil {
		app.detach = []func(){
			app.sessions.Subscribe(func(session.Snapshot) { app.recompute() }),
			app.profiles.Subscribe(func(profile.Snapshot) { app.recompute() }),
			app.navigator.Subscribe(func(route.Location) { app.recompute() }),
		}
	}
	app.mu.Unlock()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		app.sessions.Start(groupCtx)
		return nil
	})
	group.Go(func() error {
		app.profiles.Load(groupCtx)
		return nil
	})
	if err := group.Wait(); err != nil {
		return err
	}

	// A session-scoped profile was read before the session was known.
	if app.profileStale(app.sessions.Snapshot(), app.profiles.Snapshot()) {
		app.profiles.Load(ctx)
	}

	resolved := app.recompute()
	app.logger.DebugContext(ctx, "client_app_started", slog.String("state", string(resolved.State)))

	if location := app.navigator.Current(); route.IsCallback(location.Path) {
		_, err := app.handleCallback(ctx, location)
		return err
	}

	app.settle()
	return nil
}

// Stop detaches from every input. Cached values stay readable.
func (app *App) Stop() {
	app.mu.Lock()
	detach := app.detach
	app.detach = nil
	app.mu.Unlock()

	for _, fn := range detach {
		fn()
	}
	app.sessions.Stop()
}

// # Identity

// Login signs in, then loads the profile that belongs to the new session.
func (app *App) Login(ctx context.Context, credential identity.Credential) (*identity.Session, error) {
	signedIn, err := app.sessions.Login(ctx, credential)
	if err != nil {
		return nil, err
	}
	app.afterSignIn(ctx)
	return signedIn, nil
}

// Signup registers and signs in.
func (app *App) Signup(ctx context.Context, credential identity.Credential, displayName string) (*identity.Session, error) {
	signedIn, err := app.sessions.Signup(ctx, credential, displayName)
	if err != nil {
		return nil, err
	}
	app.afterSignIn(ctx)
	return signedIn, nil
}

// StartOAuth launches a provider flow. It completes through [App.OpenURL].
func (app *App) StartOAuth(ctx context.Context, provider, redirectTarget string) error {
	return app.sessions.StartOAuth(ctx, provider, redirectTarget)
}

// SignOut ends the session. The profile is kept on the device, so signing
// back in with any account lands on the dashboard without onboarding again.
func (app *App) SignOut(ctx context.Context) {
	app.sessions.SignOut(ctx)
	app.navigator.Replace(route.Root)
}

// # Deep Links

/*
OpenURL routes an incoming URL and, when it is an auth callback, completes it.

Returns:
  - bool: whether the URL was an auth callback
  - identity.CallbackOutcome: the callback's result
  - error: VALIDATION_ERROR for malformed URLs, or the callback's error
*/
func (app *App) OpenURL(ctx context.Context, rawURL string) (bool, identity.CallbackOutcome, error) {
	handled, err := app.deeplinks.Open(ctx, rawURL)
	if err != nil || !handled {
		return handled, identity.OutcomeNone, err
	}

	outcome, err := app.handleCallback(ctx, app.navigator.Current())
	return true, outcome, err
}

/*
handleCallback verifies the tokens carried by location and leaves the
callback route.

Flow:
 1. Hand the tokens to the identity client for verification.
 2. Replace the location so the tokens do not linger: the confirmation
    screen after an email link, root otherwise.
 3. Re-fetch the session.
*/
func (app *App) handleCallback(ctx context.Context, location route.Location) (identity.CallbackOutcome, error) {
	outcome, err := app.identity.CompleteAuthCallback(ctx, identity.CallbackTokensFrom(location.Param))
	if err != nil {
		app.logger.WarnContext(ctx, "client_auth_callback_failed", slog.Any("error", err))
		app.navigator.Replace(route.Root)
		app.sessions.Invalidate(ctx)
		app.settle()
		return identity.OutcomeNone, err
	}

	target := route.Root
	if outcome == identity.OutcomeEmailConfirmed || route.Normalize(location.Path) == route.EmailConfirmed {
		target = route.EmailConfirmed
	}
	app.navigator.Replace(target)
	app.sessions.Invalidate(ctx)

	if outcome == identity.OutcomeSignedIn {
		app.afterSignIn(ctx)
	} else {
		app.settle()
	}

	app.logger.InfoContext(ctx, "client_auth_callback_completed", slog.String("outcome", string(outcome)))
	return outcome, nil
}

// # Profile

// Onboard creates the profile from the onboarding answers.
func (app *App) Onboard(ctx context.Context, input profile.OnboardingInput) (*profile.Profile, error) {
	if !app.sessions.Get().Valid() {
		return nil, apperr.Unauthorized("Sign in before onboarding")
	}

	created, err := profile.NewFromOnboarding(input)
	if err != nil {
		return nil, err
	}
	if err := app.profiles.Update(ctx, created); err != nil {
		return nil, err
	}

	app.settle()
	return app.profiles.Get(), nil
}

// UpdateProfile replaces the profile from the settings screen.
func (app *App) UpdateProfile(ctx context.Context, updated profile.Profile) error {
	return app.profiles.Update(ctx, updated)
}

// ClearProfile deletes the profile, sending the user back to onboarding.
func (app *App) ClearProfile(ctx context.Context) {
	app.profiles.Clear(ctx)
	app.settle()
}

// # Counter

// Progress measures today's count against the profile's daily goal, or
// [counter.DefaultLimit] before a profile exists.
func (app *App) Progress(ctx context.Context) (counter.State, counter.Progress, error) {
	state, err := app.counter.Current(ctx)
	if err != nil {
		return counter.State{}, counter.Progress{}, err
	}

	limit := counter.DefaultLimit
	if current := app.profiles.Get(); current != nil {
		limit = current.DailyGoal
	}

	return state, counter.Measure(state.Count, limit), nil
}

// # Internals

func (app *App) afterSignIn(ctx context.Context) {
	app.profiles.Load(ctx)
	app.settle()
}

func (app *App) resolve() appstate.Resolved {
	sessionSnapshot := app.sessions.Snapshot()
	profileSnapshot := app.profiles.Snapshot()

	return appstate.Resolve(appstate.Inputs{
		HasSession:     sessionSnapshot.Session.Valid(),
		SessionLoading: sessionSnapshot.Loading,
		HasProfile:     profileSnapshot.Profile != nil,
		ProfileLoading: profileSnapshot.Loading || app.profileStale(sessionSnapshot, profileSnapshot),
		Path:           app.navigator.Current().Path,
	})
}

// profileStale reports whether a session-scoped profile was read for a
// session other than the current one. Until it is reloaded it counts as
// loading, never as absent.
func (app *App) profileStale(sessionSnapshot session.Snapshot, profileSnapshot profile.Snapshot) bool {
	return app.profiles.Scoped() &&
		sessionSnapshot.Session.Valid() &&
		profileSnapshot.Scope != sessionSnapshot.Session.Token
}

// recompute re-derives the resolved state and publishes it if it changed.
func (app *App) recompute() appstate.Resolved {
	app.publishMu.Lock()
	defer app.publishMu.Unlock()

	next := app.resolve()

	app.mu.Lock()
	changed := next != app.resolved
	app.resolved = next
	app.mu.Unlock()

	if changed {
		app.hub.Publish(next)
	}
	return next
}

// settle follows the redirect the resolved state asks for, if any.
func (app *App) settle() {
	if resolved := app.recompute(); resolved.Redirect != "" {
		app.navigator.Replace(resolved.Redirect)
	}
}
