package validators

import "strings"

// SanitizeString normalizes free-form text from request bodies: dispute
// reasons, resolution details, confirmation notes. Surrounding whitespace and
// NUL bytes are dropped (Postgres rejects NUL in text columns), then the
// value is capped at maxLen runes so truncation never splits a UTF-8
// sequence. A maxLen of zero or less means no cap.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(input, "\x00", ""))
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) > maxLen {
		return strings.TrimSpace(string(runes[:maxLen]))
	}
	return trimmed
}
