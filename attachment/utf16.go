package attachment

import (
	"strings"
	"unicode/utf16"

	"github.com/getsentry/relay-go/pii"
)

// scrubUTF16LE decodes buf as a UTF-16LE byte stream, applies rule's
// regex to the decoded text, and redacts the corresponding raw spans of
// buf in place. Lone/unpaired surrogate code units are skipped (treated
// as a decode error per spec.md 4.4) and decoding resumes at the next
// code unit.
func scrubUTF16LE(buf []byte, rule *pii.CompiledRule) {
	decoded, rawStart, rawEnd := decodeUTF16LE(buf)
	if len(decoded) == 0 {
		return
	}

	locs := rule.Regex.FindAllStringSubmatchIndex(decoded, -1)
	for _, loc := range locs {
		for _, sp := range selectSpans(rule, loc) {
			start, end := sp[0], sp[1]
			if start < 0 || end > len(rawStart) || start >= end {
				continue
			}
			matched := decoded[start:end]
			if rule.Category == pii.CategoryCreditCard && !pii.LuhnValid(pii.StripDigits(matched)) {
				continue
			}
			rawFrom := rawStart[start]
			rawTo := rawEnd[end-1]
			if rawFrom < 0 || rawTo > len(buf) || rawFrom >= rawTo {
				continue
			}
			redactSegment(buf[rawFrom:rawTo], matched, rule.Redaction, encUTF16LE)
		}
	}
}

// decodeUTF16LE decodes buf into a UTF-8 Go string plus, for every byte
// offset of that string, the raw [start,end) byte span of buf the
// covering UTF-16 code unit (or surrogate pair) occupied. This lets a
// regex match's byte offsets in the decoded string be re-projected onto
// disjoint raw sub-slices of buf for in-place redaction.
func decodeUTF16LE(buf []byte) (decoded string, rawStart, rawEnd []int) {
	n := len(buf) / 2
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
	}

	var b strings.Builder
	u := 0
	for u < n {
		unit := units[u]
		switch {
		case isHighSurrogate(unit) && u+1 < n && isLowSurrogate(units[u+1]):
			r := utf16.DecodeRune(rune(unit), rune(units[u+1]))
			appendRune(&b, r, 2*u, 4, &rawStart, &rawEnd)
			u += 2
		case isHighSurrogate(unit) || isLowSurrogate(unit):
			// unpaired surrogate: decode error, skip this unit and resume.
			u++
		default:
			appendRune(&b, rune(unit), 2*u, 2, &rawStart, &rawEnd)
			u++
		}
	}
	return b.String(), rawStart, rawEnd
}

func isHighSurrogate(u uint16) bool { return u >= 0xD800 && u <= 0xDBFF }
func isLowSurrogate(u uint16) bool  { return u >= 0xDC00 && u <= 0xDFFF }

// appendRune writes r's UTF-8 encoding to b and records, for each of the
// resulting bytes, the raw [rawOff,rawOff+rawLen) span of the source
// code unit(s).
func appendRune(b *strings.Builder, r rune, rawOff, rawLen int, rawStart, rawEnd *[]int) {
	encoded := string(r)
	b.WriteString(encoded)
	for range encoded {
		*rawStart = append(*rawStart, rawOff)
		*rawEnd = append(*rawEnd, rawOff+rawLen)
	}
}

// swapUTF16LE writes replacement into seg as UTF-16LE code units,
// truncating to whole code units if replacement is longer than seg (or a
// surrogate pair would straddle the boundary) and padding the remainder
// with pad encoded as a single code unit (pad, 0).
func swapUTF16LE(seg []byte, replacement string, pad byte) {
	units := utf16.Encode([]rune(replacement))
	capUnits := len(seg) / 2

	i := 0
	for _, u := range units {
		if i >= capUnits || (isHighSurrogate(u) && i+1 >= capUnits) {
			break
		}
		seg[2*i] = byte(u)
		seg[2*i+1] = byte(u >> 8)
		i++
	}
	for ; i < capUnits; i++ {
		seg[2*i] = pad
		seg[2*i+1] = 0
	}
}
