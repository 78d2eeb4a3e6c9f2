// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package counter

// DefaultLimit is the daily limit shown before a profile exists.
const DefaultLimit = 10

// ApproachingRatio is the share of the limit at which the user is warned.
const ApproachingRatio = 0.7

// Level classifies a count against the daily limit.
type Level string

const (
	LevelUnder       Level = "under"
	LevelApproaching Level = "approaching"
	LevelOver        Level = "over"
)

// Progress is a count measured against the daily limit.
type Progress struct {
	Count int
	Limit int
	// Percent is capped at 100.
	Percent float64
	Level   Level
}

// Measure compares count with limit. A limit of zero means any puff is over.
func Measure(count, limit int) Progress {
	progress := Progress{Count: count, Limit: limit}

	switch {
	case limit <= 0 && count == 0:
		progress.Percent = 0
	case limit <= 0:
		progress.Percent = 100
	default:
		progress.Percent = min(float64(count)/float64(limit)*100, 100)
	}

	switch {
	case count > limit:
		progress.Level = LevelOver
	case float64(count) >= float64(limit)*ApproachingRatio:
		progress.Level = LevelApproaching
	default:
		progress.Level = LevelUnder
	}

	return progress
}

// Remaining returns how many puffs are left before the limit, never negative.
func (progress Progress) Remaining() int {
	return max(0, progress.Limit-progress.Count)
}
