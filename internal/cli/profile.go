// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/profile"
	"github.com/taibuivan/unpuff/pkg/pointer"
	"github.com/taibuivan/unpuff/pkg/slice"
)

// # Profile Flags

// profileFlags are shared by onboard and profile set.
type profileFlags struct {
	identity string
	triggers []string
	baseline int
	goal     int
}

func (flags *profileFlags) register(set *pflag.FlagSet) {
	set.StringVar(&flags.identity, "identity", "", "who you want to become, in your words")
	set.StringSliceVar(&flags.triggers, "trigger", nil, "trigger tag, repeatable or comma separated")
	set.IntVar(&flags.baseline, "baseline", 0, "puffs per day today")
	set.IntVar(&flags.goal, "goal", 0, "daily goal, defaults to 80% of the baseline")
}

// parseTriggers trims, lowercases and drops empty entries.
func parseTriggers(raw []string) []profile.Trigger {
	cleaned := slice.Map(raw, func(value string) string {
		return strings.ToLower(strings.TrimSpace(value))
	})
	cleaned = slice.Filter(cleaned, func(value string) bool { return value != "" })

	return slice.Map(cleaned, func(value string) profile.Trigger { return profile.Trigger(value) })
}

// # Commands

func (shell *shell) onboardCommand() *cobra.Command {
	flags := &profileFlags{}

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Create your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input := profile.OnboardingInput{
				Identity:      flags.identity,
				Triggers:      parseTriggers(flags.triggers),
				DailyBaseline: flags.baseline,
			}
			if cmd.Flags().Changed("goal") {
				input.DailyGoal = pointer.To(flags.goal)
			}

			created, err := shell.app().Onboard(cmd.Context(), input)
			if err != nil {
				return err
			}

			printProfile(cmd.OutOrStdout(), created)
			return shell.printState(cmd)
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

func (shell *shell) profileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printProfile(cmd.OutOrStdout(), shell.app().Profile().Get())
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the profile",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				printProfile(cmd.OutOrStdout(), shell.app().Profile().Get())
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete the profile and start onboarding again",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				shell.app().ClearProfile(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), "Profile cleared.")
				return nil
			},
		},
		shell.profileSetCommand(),
	)

	return cmd
}

func (shell *shell) profileSetCommand() *cobra.Command {
	flags := &profileFlags{}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change profile fields. Unset flags keep their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			current := shell.app().Profile().Get()
			if current == nil {
				return apperr.NotFound("Profile")
			}

			updated := current.Clone()
			changed := cmd.Flags().Changed
			if changed("identity") {
				updated.Identity = flags.identity
			}
			if changed("trigger") {
				updated.Triggers = parseTriggers(flags.triggers)
			}
			if changed("baseline") {
				updated.DailyBaseline = flags.baseline
			}
			if changed("goal") {
				updated.DailyGoal = flags.goal
			}

			if err := shell.app().UpdateProfile(cmd.Context(), updated); err != nil {
				return err
			}

			printProfile(cmd.OutOrStdout(), shell.app().Profile().Get())
			return nil
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

// # Output

func printProfile(out io.Writer, p *profile.Profile) {
	if p == nil {
		fmt.Fprintln(out, "No profile yet. Run: unpuff onboard")
		return
	}

	triggers := slice.Map(p.Triggers, func(t profile.Trigger) string { return string(t) })
	fmt.Fprintf(out, "identity:  %s\n", p.Identity)
	fmt.Fprintf(out, "triggers:  %s\n", strings.Join(triggers, ", "))
	fmt.Fprintf(out, "baseline:  %d/day\n", p.DailyBaseline)
	fmt.Fprintf(out, "goal:      %d/day\n", p.DailyGoal)
}
