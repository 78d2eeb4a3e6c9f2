// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package handle derives ASCII usernames from arbitrary Unicode strings.
//
// # Usage
//
// Accounts created through a third-party provider have no chosen username,
// so one is derived from the provider's email address (e.g. "José.Núñez@x.io"
// becomes "jose_nunez"). Usernames typed by users are never rewritten.
package handle

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// disallowed matches any run of characters outside the handle alphabet.
	disallowed = regexp.MustCompile(`[^a-z0-9_]+`)
	// multiUnderscore collapses repeated separators.
	multiUnderscore = regexp.MustCompile(`_{2,}`)
)

// MaxLength bounds derived handles.
const MaxLength = 32

// From converts an arbitrary Unicode string into a lowercase ASCII handle.
//
// # Transformation Pipeline
//
// 1. Normalizes to NFD and drops combining marks (é → e).
// 2. Lowercases.
// 3. Replaces everything outside [a-z0-9_] with "_".
// 4. Collapses and trims separators, then truncates to [MaxLength].
func From(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn))
	result, _, _ := transform.String(t, s)

	result = strings.ToLower(result)
	result = disallowed.ReplaceAllString(result, "_")
	result = multiUnderscore.ReplaceAllString(result, "_")
	result = strings.Trim(result, "_")

	if len(result) > MaxLength {
		result = strings.TrimRight(result[:MaxLength], "_")
	}

	return result
}

// FromEmail derives a handle from the local part of an email address.
// Plus-addressing tags ("me+tag@x") are dropped.
func FromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local, _, _ = strings.Cut(local, "+")
	return From(local)
}

// isMn reports whether r is a Unicode non-spacing mark (e.g., accents).
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
