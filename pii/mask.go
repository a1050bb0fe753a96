package pii

import "strings"

// applyMaskText implements MaskRedaction: only non-skip characters within
// the half-open character range [start,end) are replaced with maskChar;
// negative range bounds count from the end of value.
func applyMaskText(value string, red Redaction) string {
	runes := []rune(value)
	n := len(runes)

	start := 0
	if red.RangeStart != nil {
		start = resolveIndex(*red.RangeStart, n)
	}
	end := n
	if red.RangeEnd != nil {
		end = resolveIndex(*red.RangeEnd, n)
	}
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if end < start {
		end = start
	}

	for i := start; i < end; i++ {
		if strings.ContainsRune(red.SkipChars, runes[i]) {
			continue
		}
		runes[i] = red.MaskChar
	}
	return string(runes)
}

// ApplyMaskText exports applyMaskText for the attachment scrubber.
func ApplyMaskText(value string, red Redaction) string { return applyMaskText(value, red) }

func resolveIndex(idx, n int) int {
	if idx < 0 {
		return n + idx
	}
	return idx
}
