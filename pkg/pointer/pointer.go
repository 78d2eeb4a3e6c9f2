// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pointer bridges optional values and plain ones.

Optional fields appear in two places: stored profile records, where a missing
field must be told apart from a zero one, and command flags, where an unset
goal means "derive it from the baseline".
*/
package pointer

// To returns a pointer to a copy of v.
func To[T any](v T) *T {
	return &v
}

// Val dereferences p, returning the zero value for nil.
func Val[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
