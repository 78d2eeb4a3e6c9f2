// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package cli is the command-line shell around the Unpuff client.

Each invocation builds a [client.App] from the environment, starts it, runs
one command against it and exits. Durable state lives in the configured
key-value store, so consecutive invocations see the same session, profile and
counter, the way a browser keeps localStorage between page loads.

Commands:

	status                       resolved app state and today's progress
	signup | login | logout      identity
	oauth <provider>             print the provider sign-in link
	open <url>                   hand an auth callback link to the app
	onboard                      create the profile
	profile show | set | clear   manage the profile
	count [inc|dec|reset|set N]  today's counter
*/
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taibuivan/unpuff/internal/client"
	"github.com/taibuivan/unpuff/internal/counter"
	"github.com/taibuivan/unpuff/internal/identity"
	"github.com/taibuivan/unpuff/internal/platform/apiclient"
	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/platform/config"
	"github.com/taibuivan/unpuff/internal/platform/constants"
	"github.com/taibuivan/unpuff/internal/platform/kv"
	redisstore "github.com/taibuivan/unpuff/internal/platform/redis"
	"github.com/taibuivan/unpuff/internal/profile"
)

// clientRedisPoolSize is small: one CLI process issues one request at a time.
const clientRedisPoolSize = 2

// # Runtime

// Runtime is what the commands operate on.
type Runtime struct {
	App *client.App
	// RedirectURL is where provider sign-in returns to.
	RedirectURL string

	closers []func() error
}

// Close releases the runtime's connections.
func (runtime *Runtime) Close() error {
	var firstErr error
	for _, closer := range runtime.closers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Builder creates a Runtime. out receives links the user has to open.
type Builder func(ctx context.Context, out io.Writer) (*Runtime, error)

// Build is the production [Builder]: configuration from the environment, the
// first-party API over HTTP and the configured storage driver.
func Build(ctx context.Context, out io.Writer) (*Runtime, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", constants.AppName))

	runtime := &Runtime{RedirectURL: cfg.RedirectURL}

	store, err := openStore(ctx, cfg, logger, runtime)
	if err != nil {
		return nil, err
	}

	api := apiclient.New(cfg.APIBaseURL, cfg.HTTPTimeout)
	identityClient := identity.NewHTTPClient(api, store, PrintLauncher{Out: out}, logger,
		identity.WithPasswordMinLength(cfg.PasswordMinLength))

	deps := client.Dependencies{
		Identity: identityClient,
		Profiles: profile.NewLocalStore(store, logger),
		Counter:  counter.New(store, logger),
		Logger:   logger,
	}

	if cfg.RemoteProfile {
		runtime.App = client.NewWithStore(deps, func(tokens profile.TokenSource) profile.Store {
			return profile.NewRemoteStore(api, tokens, logger)
		})
	} else {
		runtime.App = client.New(deps)
	}

	return runtime, nil
}

// openStore opens the configured storage driver.
func openStore(ctx context.Context, cfg *config.ClientConfig, logger *slog.Logger, runtime *Runtime) (kv.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return kv.NewMemoryStore(), nil
	case config.StorageRedis:
		rdb, err := redisstore.NewClient(ctx, cfg.RedisURL, clientRedisPoolSize, logger)
		if err != nil {
			return nil, err
		}
		runtime.closers = append(runtime.closers, rdb.Close)
		return kv.NewRedisStore(rdb, cfg.RedisNamespace), nil
	default:
		return kv.NewFileStore(cfg.DataDir)
	}
}

// PrintLauncher "opens" a URL by printing it for the user.
type PrintLauncher struct {
	Out io.Writer
}

// Open implements [identity.Launcher].
func (launcher PrintLauncher) Open(_ context.Context, target string) error {
	_, err := fmt.Fprintf(launcher.Out, "Open this link in your browser to continue:\n  %s\n", target)
	return err
}

// # Root Command

/*
NewRootCommand builds the command tree.

Description: The runtime is built and started before any subcommand runs.
The returned cleanup releases it and is safe to call when no command ran.
*/
func NewRootCommand(build Builder) (*cobra.Command, func()) {
	shell := &shell{build: build}

	root := &cobra.Command{
		Use:           constants.AppName,
		Short:         "Track and cut down your daily puffs",
		Version:       constants.AppVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return shell.start(cmd)
		},
	}

	root.AddCommand(
		shell.statusCommand(),
		shell.signupCommand(),
		shell.loginCommand(),
		shell.logoutCommand(),
		shell.oauthCommand(),
		shell.openCommand(),
		shell.onboardCommand(),
		shell.profileCommand(),
		shell.countCommand(),
	)

	return root, shell.close
}

// shell carries the runtime between the root command and its subcommands.
type shell struct {
	build   Builder
	runtime *Runtime
}

func (shell *shell) start(cmd *cobra.Command) error {
	if shell.runtime != nil {
		return nil
	}

	runtime, err := shell.build(cmd.Context(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	shell.runtime = runtime

	return runtime.App.Start(cmd.Context())
}

func (shell *shell) close() {
	if shell.runtime == nil {
		return
	}
	shell.runtime.App.Stop()
	_ = shell.runtime.Close()
	shell.runtime = nil
}

func (shell *shell) app() *client.App {
	return shell.runtime.App
}

// # Errors

// FormatError renders err for the terminal, including field details.
func FormatError(err error) string {
	appError := apperr.As(err)
	if appError == nil {
		return "error: " + err.Error()
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "error: %s (%s)", appError.Message, appError.Code)
	for _, detail := range appError.Details {
		fmt.Fprintf(&builder, "\n  %s: %s", detail.Field, detail.Message)
	}
	return builder.String()
}
