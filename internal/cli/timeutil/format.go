// Package timeutil provides time formatting utilities for CLI output.
package timeutil

import (
	"fmt"
	"time"
)

// LocalTimeFormat is the format used for displaying local times in CLI output.
// Uses Go's reference time: Mon Jan 2 15:04:05 2006.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"

// FormatExpiry renders a token expiration against the given clock. An
// expired token is labeled as such, since that is what the operator
// actually wants to know; the zero time reads as unknown.
func FormatExpiry(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	if !t.After(now) {
		return fmt.Sprintf("expired (%s)", t.Local().Format(LocalTimeFormat))
	}
	return t.Local().Format(LocalTimeFormat)
}
