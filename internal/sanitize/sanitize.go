// internal/sanitize/sanitize.go

// Package sanitize enforces the numbers-only contract on raw model output.
// The teacher transcripts must never carry anything but digits and numeric
// separators, so the filter fails closed: scanning stops for good at the
// first character outside the allowed set.
package sanitize

import "strings"

// allowed is the full character set a numeric answer may contain.
const allowed = "0123456789,; \n[]()"

// NumericOnly returns the longest prefix of raw composed entirely of digits
// and numeric separators, trimmed of surrounding whitespace. The scan stops
// permanently at the first disallowed character; there is no skip-and-resume.
// An input whose first character is disallowed yields the empty string.
func NumericOnly(raw string) string {
	end := len(raw)
	for i, c := range raw {
		if !strings.ContainsRune(allowed, c) {
			end = i
			break
		}
	}
	return strings.TrimSpace(raw[:end])
}
