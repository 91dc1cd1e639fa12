// Package phone normalizes and validates customer phone numbers. Numbers are
// stored and compared exclusively in E.164 form ("+" country code + digits),
// which serves as the customer dedup key across imports, dispatches, and
// inbound webhooks.
package phone

import "strings"

// digitsOf strips every non-digit character from raw.
func digitsOf(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize converts a raw phone string to E.164.
//
// Rules, in order:
//   - exactly 10 digits: assume NANP, prefix "+1"
//   - exactly 11 digits starting with "1": prefix "+"
//   - the original string already starts with "+": returned unchanged
//   - anything else: "+1" + digit string (best effort)
//
// Normalize is idempotent: feeding it an already-normalized number returns
// the same string.
func Normalize(raw string) string {
	cleaned := digitsOf(raw)

	if len(cleaned) == 10 {
		return "+1" + cleaned
	}
	if len(cleaned) == 11 && strings.HasPrefix(cleaned, "1") {
		return "+" + cleaned
	}
	if strings.HasPrefix(raw, "+") {
		return raw
	}
	return "+1" + cleaned
}

// IsValid reports whether raw can be normalized into a plausible E.164
// number: 10 digits, 11 digits with a leading 1, or an explicit "+" prefix
// with at least 10 digits. Records failing this check are rejected before
// any normalization or upsert.
func IsValid(raw string) bool {
	cleaned := digitsOf(raw)

	if len(cleaned) == 10 {
		return true
	}
	if len(cleaned) == 11 && strings.HasPrefix(cleaned, "1") {
		return true
	}
	return strings.HasPrefix(raw, "+") && len(cleaned) >= 10
}

// Display renders a stored number in the familiar US notation, e.g.
// "+12125551234" -> "+1 (212) 555-1234". Unrecognized shapes are returned
// unchanged.
func Display(phone string) string {
	cleaned := digitsOf(phone)

	if len(cleaned) == 10 {
		return "(" + cleaned[0:3] + ") " + cleaned[3:6] + "-" + cleaned[6:]
	}
	if len(cleaned) == 11 && strings.HasPrefix(cleaned, "1") {
		return "+1 (" + cleaned[1:4] + ") " + cleaned[4:7] + "-" + cleaned[7:]
	}
	return phone
}
