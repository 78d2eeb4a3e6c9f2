// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (shell *shell) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the app would land and today's progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := shell.printState(cmd); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if session := shell.app().Session().Get(); session.Valid() {
				fmt.Fprintf(out, "account:   %s (%s)\n", session.Handle, session.Subject)
			} else {
				fmt.Fprintln(out, "account:   signed out")
			}

			if current := shell.app().Profile().Get(); current != nil {
				fmt.Fprintf(out, "profile:   %s, goal %d/day\n", current.Identity, current.DailyGoal)
			} else {
				fmt.Fprintln(out, "profile:   none")
			}

			return shell.printProgress(cmd.Context(), out)
		},
	}
}

// printState prints the resolved state and the screen it lands on.
func (shell *shell) printState(cmd *cobra.Command) error {
	resolved := shell.app().Resolved()
	location := shell.app().Navigator().Current()

	_, err := fmt.Fprintf(cmd.OutOrStdout(), "state:     %s at %s\n", resolved.State, location.Path)
	return err
}
