// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taibuivan/unpuff/internal/identity"
	"github.com/taibuivan/unpuff/internal/platform/apperr"
)

// # Identity Commands

func (shell *shell) signupCommand() *cobra.Command {
	var password, displayName string

	cmd := &cobra.Command{
		Use:   "signup <username-or-email>",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			credential := identity.Credential{Identifier: args[0], Secret: password}

			signedIn, err := shell.app().Signup(cmd.Context(), credential, displayName)
			if apperr.HasCode(err, apperr.CodeUnconfirmedAccount) {
				// Not a failure: the account exists and waits for the emailed link.
				fmt.Fprintln(cmd.OutOrStdout(), apperr.As(err).Message)
				fmt.Fprintln(cmd.OutOrStdout(), "Then run: unpuff open '<link from the email>'")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s.\n", signedIn.Handle)
			return shell.printState(cmd)
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.Flags().StringVar(&displayName, "display-name", "", "name shown in the app")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func (shell *shell) loginCommand() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username-or-email>",
		Short: "Sign in with a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			credential := identity.Credential{Identifier: args[0], Secret: password}

			signedIn, err := shell.app().Login(cmd.Context(), credential)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", signedIn.Handle)
			return shell.printState(cmd)
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func (shell *shell) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out. The profile stays on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			shell.app().SignOut(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func (shell *shell) oauthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "oauth <provider>",
		Short: "Sign in with an identity provider such as google",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := shell.app().StartOAuth(cmd.Context(), args[0], shell.runtime.RedirectURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "When the browser is sent back, run: unpuff open '<callback url>'")
			return nil
		},
	}
}

func (shell *shell) openCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "open <url>",
		Short: "Complete a sign-in or email confirmation link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handled, outcome, err := shell.app().OpenURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case !handled:
				fmt.Fprintln(out, "Not a sign-in link. Nothing to do.")
				return nil
			case outcome == identity.OutcomeEmailConfirmed:
				fmt.Fprintln(out, "Email confirmed.")
			case outcome == identity.OutcomeSignedIn:
				fmt.Fprintf(out, "Signed in as %s.\n", shell.app().Session().Get().Handle)
			default:
				fmt.Fprintln(out, "Link processed. You are not signed in.")
			}

			return shell.printState(cmd)
		},
	}
}
