package pii

import (
	"regexp"
	"strings"
)

// DataScrubbingConfig is the legacy per-project scrubbing toggle set,
// projected onto a PiiConfig by ToPiiConfig. Grounded on
// original_source/general/src/datascrubbing/convert.rs.
type DataScrubbingConfig struct {
	ScrubData          bool
	ScrubDefaults       bool
	ScrubIPAddresses    bool
	SensitiveFields     []string
	ExcludeFields       []string
}

// ToPiiConfig projects a legacy DataScrubbingConfig into at most three
// applications on the deep-wildcard selector (or nil if nothing applies):
// @common:filter when defaults are enabled, @ip:filter when only IP
// scrubbing is on, and a synthetic strip-fields key-pattern rule built from
// SensitiveFields. ExcludeFields negate the deep-wildcard selector.
func ToPiiConfig(cfg DataScrubbingConfig) *Config {
	var applied []string

	if cfg.ScrubData && cfg.ScrubDefaults {
		applied = append(applied, "@common:filter")
	} else if cfg.ScrubIPAddresses {
		applied = append(applied, "@ip:filter")
	}

	rules := map[string]Rule{}
	if cfg.ScrubData {
		if pattern, ok := sensitiveFieldsPattern(cfg.SensitiveFields); ok {
			rules["strip-fields"] = Rule{
				Type:       RuleTypeRedactPair,
				KeyPattern: pattern,
				Redaction:  Redaction{Kind: RedactionReplace, ReplaceText: "[filtered]"},
			}
			applied = append(applied, "strip-fields")
		}
	}

	if len(applied) == 0 {
		return nil
	}

	selText := dataScrubSelector(cfg.ExcludeFields)
	return &Config{
		Rules:        rules,
		Applications: map[string][]string{selText: applied},
	}
}

// sensitiveFieldsPattern builds ".*(f1|f2|...).*" (case-insensitive key
// match, applied via the (?i) inline flag since the key regex is matched
// standalone rather than through RegexBuilder) from the non-empty entries
// of fields, or returns ok=false if every entry is empty.
func sensitiveFieldsPattern(fields []string) (string, bool) {
	var parts []string
	for _, f := range fields {
		if f == "" {
			continue
		}
		parts = append(parts, regexp.QuoteMeta(f))
	}
	if len(parts) == 0 {
		return "", false
	}
	return "(?i).*(" + strings.Join(parts, "|") + ").*", true
}

// dataScrubSelector renders the deep-wildcard selector "**" when nothing is
// excluded; otherwise it renders only the conjunction of one negation per
// excluded field ("!f1 & !f2"), without a "**" conjunct.
func dataScrubSelector(exclude []string) string {
	if len(exclude) == 0 {
		return "**"
	}
	parts := make([]string, 0, len(exclude))
	for _, f := range exclude {
		parts = append(parts, "!"+f)
	}
	return strings.Join(parts, " & ")
}
