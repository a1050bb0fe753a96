package pii

import "strings"

// luhnValid reports whether digits (with any non-digit separators already
// stripped by the caller) passes the Luhn checksum used to gate the
// credit-card heuristic: a 13-19 digit run that fails Luhn is left alone.
func luhnValid(digits string) bool {
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

// LuhnValid exports luhnValid for the attachment scrubber's credit-card
// gating over raw buffer matches.
func LuhnValid(digits string) bool { return luhnValid(digits) }

// StripDigits exports stripDigits for the attachment scrubber.
func StripDigits(s string) string { return stripDigits(s) }

// stripDigits removes the separators a credit-card run may contain,
// leaving only digit characters for the Luhn check.
func stripDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
