// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/taibuivan/unpuff/internal/counter"
	"github.com/taibuivan/unpuff/internal/platform/apperr"
)

// # Counter Commands

func (shell *shell) countCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Show today's puffs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return shell.printProgress(cmd.Context(), cmd.OutOrStdout())
		},
	}

	mutation := func(use, short string, change func(*counter.Counter, context.Context) (counter.State, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := change(shell.app().Counter(), cmd.Context()); err != nil {
					return err
				}
				return shell.printProgress(cmd.Context(), cmd.OutOrStdout())
			},
		}
	}

	cmd.AddCommand(
		mutation("inc", "Record one puff", (*counter.Counter).Increment),
		mutation("dec", "Undo one puff", (*counter.Counter).Decrement),
		mutation("reset", "Set today's count to zero", (*counter.Counter).Reset),
		&cobra.Command{
			Use:   "set <count>",
			Short: "Set today's count",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				count, err := strconv.Atoi(args[0])
				if err != nil {
					return apperr.ValidationError("Invalid count", apperr.FieldError{
						Field:   "count",
						Message: "Must be a whole number",
					})
				}

				if _, err := shell.app().Counter().Set(cmd.Context(), count); err != nil {
					return err
				}
				return shell.printProgress(cmd.Context(), cmd.OutOrStdout())
			},
		},
	)

	return cmd
}

func (shell *shell) printProgress(ctx context.Context, out io.Writer) error {
	state, progress, err := shell.app().Progress(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "today:     %d/%d (%s, %.0f%%, %d left) on %s\n",
		progress.Count, progress.Limit, progress.Level, progress.Percent, progress.Remaining(), state.DateKey)
	return nil
}
