// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package profile manages the onboarding profile: the identity statement,
trigger tags, and daily baseline/goal captured when a user first signs in.

Architecture:

  - Profile: The entity and its invariants ([Profile.Validate]).
  - Store: Durable single-record storage. [LocalStore] keeps it on the device,
    [RemoteStore] in the API's profile table.
  - Cache: The reactive in-memory copy with optimistic update and rollback.
  - Service / Handler / PostgresRepository: The server side of the remote
    profile table.

A profile is independent of the session. Signing out does not clear it.
*/
package profile

import (
	"math"
	"slices"

	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/platform/validate"
	"github.com/taibuivan/unpuff/pkg/slice"
)

// # Triggers

// Trigger is one tag of the fixed trigger vocabulary.
type Trigger string

const (
	TriggerStress     Trigger = "stress"
	TriggerBoredom    Trigger = "boredom"
	TriggerSocial     Trigger = "social"
	TriggerAfterMeals Trigger = "after_meals"
	TriggerAlcohol    Trigger = "alcohol"
	TriggerCaffeine   Trigger = "caffeine"
	TriggerDriving    Trigger = "driving"
	TriggerWorkBreaks Trigger = "work_breaks"
	TriggerWakingUp   Trigger = "waking_up"
	TriggerAnxiety    Trigger = "anxiety"
)

// AllTriggers lists the vocabulary in display order.
var AllTriggers = []Trigger{
	TriggerStress, TriggerBoredom, TriggerSocial, TriggerAfterMeals, TriggerAlcohol,
	TriggerCaffeine, TriggerDriving, TriggerWorkBreaks, TriggerWakingUp, TriggerAnxiety,
}

// Valid reports whether t belongs to the vocabulary.
func (t Trigger) Valid() bool {
	return slices.Contains(AllTriggers, t)
}

// MaxOnboardingTriggers caps the selection offered during onboarding.
// Stored profiles have no cap.
const MaxOnboardingTriggers = 2

// GoalRatio is the default goal as a fraction of the baseline.
const GoalRatio = 0.8

// Field names, shared by validation errors and the JSON shape.
const (
	FieldIdentity      = "identity"
	FieldTriggers      = "triggers"
	FieldDailyBaseline = "dailyBaseline"
	FieldDailyGoal     = "dailyGoal"
)

// # Entity

// Profile is the onboarding-captured user configuration.
type Profile struct {
	Identity      string    `json:"identity"`
	Triggers      []Trigger `json:"triggers"`
	DailyBaseline int       `json:"dailyBaseline"`
	DailyGoal     int       `json:"dailyGoal"`
}

// DefaultGoal returns round(baseline × 0.8). A zero baseline yields a zero goal.
func DefaultGoal(baseline int) int {
	if baseline <= 0 {
		return 0
	}
	return int(math.Round(float64(baseline) * GoalRatio))
}

// Validate checks every invariant and reports all failing fields at once.
func (p Profile) Validate() error {
	validator := &validate.Validator{}
	validator.
		NonNegative(FieldDailyBaseline, p.DailyBaseline).
		NonNegative(FieldDailyGoal, p.DailyGoal).
		Unique(FieldTriggers, triggerStrings(p.Triggers))

	for _, trigger := range p.Triggers {
		if !trigger.Valid() {
			validator.Custom(FieldTriggers, true, "Unknown trigger: "+string(trigger))
			break
		}
	}

	return validator.Err()
}

// Clone returns a deep copy. The Triggers slice is never shared.
func (p Profile) Clone() Profile {
	clone := p
	clone.Triggers = slices.Clone(p.Triggers)
	if clone.Triggers == nil {
		clone.Triggers = []Trigger{}
	}
	return clone
}

// Equal compares two profiles. Trigger order is irrelevant.
func (p Profile) Equal(other Profile) bool {
	if p.Identity != other.Identity || p.DailyBaseline != other.DailyBaseline || p.DailyGoal != other.DailyGoal {
		return false
	}
	if len(p.Triggers) != len(other.Triggers) {
		return false
	}
	for _, trigger := range p.Triggers {
		if !slices.Contains(other.Triggers, trigger) {
			return false
		}
	}
	return true
}

// HasTrigger reports whether t is selected.
func (p Profile) HasTrigger(t Trigger) bool {
	return slices.Contains(p.Triggers, t)
}

// triggerStrings never returns nil, so an empty set is stored as '{}'.
func triggerStrings(triggers []Trigger) []string {
	if triggers == nil {
		return []string{}
	}
	return slice.Map(triggers, func(t Trigger) string { return string(t) })
}

// # Onboarding

// OnboardingInput is what the onboarding wizard collects.
type OnboardingInput struct {
	Identity      string
	Triggers      []Trigger
	DailyBaseline int

	// DailyGoal overrides the derived default when set.
	DailyGoal *int
}

// NewFromOnboarding builds the initial profile, enforcing the onboarding-only
// trigger cap on top of the profile invariants.
func NewFromOnboarding(input OnboardingInput) (Profile, error) {
	goal := DefaultGoal(input.DailyBaseline)
	if input.DailyGoal != nil {
		goal = *input.DailyGoal
	}

	p := Profile{
		Identity:      input.Identity,
		Triggers:      slices.Clone(input.Triggers),
		DailyBaseline: input.DailyBaseline,
		DailyGoal:     goal,
	}
	if p.Triggers == nil {
		p.Triggers = []Trigger{}
	}

	if len(p.Triggers) > MaxOnboardingTriggers {
		return Profile{}, apperr.ValidationError("Invalid onboarding selection", apperr.FieldError{
			Field:   FieldTriggers,
			Message: "Select at most 2 triggers",
		})
	}

	if err := p.Validate(); err != nil {
		return Profile{}, err
	}

	return p, nil
}
