// Package attachment implements length-preserving PII redaction over raw
// attachment buffers, scanning both a UTF-8 and a UTF-16LE interpretation
// of the same bytes.
package attachment

import (
	"unicode/utf8"

	"github.com/getsentry/relay-go/event"
	"github.com/getsentry/relay-go/pii"
	"github.com/getsentry/relay-go/selector"
)

// binaryPath is the one-item path the binary scrubber evaluates selectors
// against: the traversal root (attachments) contributes no path item of
// its own (see selector package's root-anchoring convention), so only the
// binary leaf itself appears.
var binaryPath = event.Path{{ValueType: event.TypeBinary, PIIKind: event.PIIKindMaybe}}

// ApplicableRules returns the pattern rules whose selector matches the
// synthetic binary-leaf path, in binding order.
func ApplicableRules(cfg *pii.CompiledConfig) []*pii.CompiledRule {
	if cfg == nil {
		return nil
	}
	var out []*pii.CompiledRule
	for _, b := range cfg.Bindings {
		if b.Selector.Eval(binaryPath) != selector.Match {
			continue
		}
		for _, r := range b.Rules {
			if r.Type == pii.RuleTypePattern {
				out = append(out, r)
			}
		}
	}
	return out
}

// Scrub applies every applicable pattern rule to buf in place, scanning
// both a raw UTF-8 byte-mode pass and a UTF-16LE segment pass, without
// changing buf's length.
func Scrub(buf []byte, cfg *pii.CompiledConfig) {
	rules := ApplicableRules(cfg)
	if len(rules) == 0 {
		return
	}
	for _, rule := range rules {
		scrubUTF8(buf, rule)
	}
	for _, rule := range rules {
		scrubUTF16LE(buf, rule)
	}
}

// scrubUTF8 runs rule's regex directly against the raw bytes (Go's
// compiled regexp operates identically over []byte as over string) and
// redacts every matched span in place.
func scrubUTF8(buf []byte, rule *pii.CompiledRule) {
	locs := rule.Regex.FindAllSubmatchIndex(buf, -1)
	for _, loc := range locs {
		for _, sp := range selectSpans(rule, loc) {
			start, end := sp[0], sp[1]
			if start < 0 || end > len(buf) || start >= end {
				continue
			}
			matched := string(buf[start:end])
			if rule.Category == pii.CategoryCreditCard && !pii.LuhnValid(pii.StripDigits(matched)) {
				continue
			}
			redactSegment(buf[start:end], matched, rule.Redaction, encUTF8)
		}
	}
}

// selectSpans mirrors pii's ReplaceValue/ReplaceGroups span selection for
// a single regex match.
func selectSpans(rule *pii.CompiledRule, loc []int) [][2]int {
	if rule.Behavior == pii.ReplaceGroups {
		spans := make([][2]int, 0, len(rule.Groups))
		for _, g := range rule.Groups {
			if g*2+1 >= len(loc) || loc[g*2] < 0 {
				continue
			}
			spans = append(spans, [2]int{loc[g*2], loc[g*2+1]})
		}
		return spans
	}
	return [][2]int{{loc[0], loc[1]}}
}

type codeEncoding int

const (
	encUTF8 codeEncoding = iota
	encUTF16LE
)

// redactSegment computes the replacement content for a matched span per
// its Redaction kind, then writes it into seg using the length-preserving
// fill/swap primitives (spec.md 4.4).
func redactSegment(seg []byte, matched string, red pii.Redaction, enc codeEncoding) {
	switch red.Kind {
	case pii.RedactionRemove:
		fill(seg, 'x', enc)
	case pii.RedactionReplace:
		swap(seg, red.ReplaceText, 'x', enc)
	case pii.RedactionHash:
		swap(seg, pii.HashValue(matched, red.HashKey), 'x', enc)
	case pii.RedactionMask:
		swap(seg, pii.ApplyMaskText(matched, red), '*', enc)
	}
}

// fill overwrites every code unit of seg with pad.
func fill(seg []byte, pad byte, enc codeEncoding) {
	switch enc {
	case encUTF16LE:
		for i := 0; i+1 < len(seg); i += 2 {
			seg[i] = pad
			seg[i+1] = 0
		}
	default:
		for i := range seg {
			seg[i] = pad
		}
	}
}

// swap writes replacement into seg, truncating to fit if it is longer
// than seg (or if a multi-code-unit character would straddle the
// boundary) and padding the remaining tail with pad otherwise.
func swap(seg []byte, replacement string, pad byte, enc codeEncoding) {
	switch enc {
	case encUTF16LE:
		swapUTF16LE(seg, replacement, pad)
	default:
		swapUTF8(seg, replacement, pad)
	}
}

func swapUTF8(seg []byte, replacement string, pad byte) {
	if len(replacement) > len(seg) {
		cut := len(seg)
		for cut > 0 && !utf8.RuneStart(replacement[cut]) {
			cut--
		}
		replacement = replacement[:cut]
	}
	n := copy(seg, replacement)
	for i := n; i < len(seg); i++ {
		seg[i] = pad
	}
}
