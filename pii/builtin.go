package pii

// Builtin pattern sources. These are reconstructed from the semantics in
// spec.md 4.2-4.4 (category, separators, digit-run lengths) since the
// upstream Rust pattern literals were not part of the retrieved
// original_source/ file set; the structural shape (categories, canonical
// redaction per category, alias names, hide_inner aliasing) is grounded on
// original_source/general/src/pii/builtin.rs.
const (
	patternIP = `(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)(?:\.(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)){3})` +
		`|(?:[0-9a-fA-F]{1,4}:){2,7}[0-9a-fA-F]{0,4}(?::[0-9a-fA-F]{1,4})?` +
		`|::1`
	patternIMEI       = `\b[0-9]{15,17}\b`
	patternMAC        = `\b[0-9a-fA-F]{2}(?:[:-][0-9a-fA-F]{2}){5}\b`
	patternEmail      = `\b[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+\b`
	patternCreditCard = `\b(?:[0-9][ -]?){13,19}\b`
	patternPEMKeyBody = `-----BEGIN (?:[A-Z ]+ )?KEY-----(?s:(.*?))-----END (?:[A-Z ]+ )?KEY-----`
	patternURLAuth    = `\b[a-zA-Z][a-zA-Z0-9+.-]*://([^/\s:@]+(?::[^/\s@]*)?)@`
	patternUserPath   = `(?:/(?:Users|home)/|[A-Za-z]:\\Users\\)([^/\\\s]+)`
)

func canonical(text string) Redaction {
	return Redaction{Kind: RedactionReplace, ReplaceText: text}
}

func masked(maskChar rune, skip string, start, end *int) Redaction {
	return Redaction{Kind: RedactionMask, MaskChar: maskChar, SkipChars: skip, RangeStart: start, RangeEnd: end}
}

func hashed() Redaction {
	return Redaction{Kind: RedactionHash, HashAlgorithm: HashAlgoHmacSha1}
}

func intp(v int) *int { return &v }

// builtinRules is the required catalog from spec.md 4.2: each category gets
// a :replace, :hash, and (where meaningful) :mask or :remove variant, plus
// an unadorned alias to the category's canonical variant.
func builtinRules() map[string]Rule {
	rules := map[string]Rule{
		"@anything:replace": {Type: RuleTypeAnything, Redaction: canonical("[redacted]")},
		"@anything:hash":    {Type: RuleTypeAnything, Redaction: hashed()},
		"@anything":         {Type: RuleTypeAlias, AliasOf: "@anything:replace"},

		"@ip:replace": {Type: RuleTypePattern, Category: CategoryIP, Pattern: patternIP, Redaction: canonical("[ip]")},
		"@ip:hash":    {Type: RuleTypePattern, Category: CategoryIP, Pattern: patternIP, Redaction: hashed()},
		"@ip":         {Type: RuleTypeAlias, AliasOf: "@ip:replace"},

		"@imei:replace": {Type: RuleTypePattern, Category: CategoryIMEI, Pattern: patternIMEI, Redaction: canonical("[imei]")},
		"@imei:hash":    {Type: RuleTypePattern, Category: CategoryIMEI, Pattern: patternIMEI, Redaction: hashed()},
		"@imei":         {Type: RuleTypeAlias, AliasOf: "@imei:replace"},

		"@mac:replace": {Type: RuleTypePattern, Category: CategoryMAC, Pattern: patternMAC, Redaction: canonical("[mac]")},
		"@mac:mask":    {Type: RuleTypePattern, Category: CategoryMAC, Pattern: patternMAC, Redaction: masked('*', "-:", intp(9), nil)},
		"@mac:hash":    {Type: RuleTypePattern, Category: CategoryMAC, Pattern: patternMAC, Redaction: hashed()},
		"@mac":         {Type: RuleTypeAlias, AliasOf: "@mac:mask"},

		"@email:mask":    {Type: RuleTypePattern, Category: CategoryEmail, Pattern: patternEmail, Redaction: masked('*', ".@", nil, nil)},
		"@email:replace": {Type: RuleTypePattern, Category: CategoryEmail, Pattern: patternEmail, Redaction: canonical("[email]")},
		"@email:hash":    {Type: RuleTypePattern, Category: CategoryEmail, Pattern: patternEmail, Redaction: hashed()},
		"@email":         {Type: RuleTypeAlias, AliasOf: "@email:replace"},

		"@creditcard:mask":    {Type: RuleTypePattern, Category: CategoryCreditCard, Pattern: patternCreditCard, Redaction: masked('*', " -", nil, intp(-4))},
		"@creditcard:replace": {Type: RuleTypePattern, Category: CategoryCreditCard, Pattern: patternCreditCard, Redaction: canonical("[creditcard]")},
		"@creditcard:hash":    {Type: RuleTypePattern, Category: CategoryCreditCard, Pattern: patternCreditCard, Redaction: hashed()},
		"@creditcard":         {Type: RuleTypeAlias, AliasOf: "@creditcard:mask"},

		"@pemkey:replace": {Type: RuleTypePattern, Category: CategoryPEMKey, Pattern: patternPEMKeyBody, Redaction: canonical("[pemkey]")},
		"@pemkey:hash":    {Type: RuleTypePattern, Category: CategoryPEMKey, Pattern: patternPEMKeyBody, Redaction: hashed()},
		"@pemkey":         {Type: RuleTypeAlias, AliasOf: "@pemkey:replace"},

		"@urlauth:replace": {Type: RuleTypePattern, Category: CategoryURLAuth, Pattern: patternURLAuth, Redaction: canonical("[auth]")},
		"@urlauth:hash":    {Type: RuleTypePattern, Category: CategoryURLAuth, Pattern: patternURLAuth, Redaction: hashed()},
		"@urlauth":         {Type: RuleTypeAlias, AliasOf: "@urlauth:replace"},

		"@userpath:replace": {Type: RuleTypePattern, Category: CategoryUserPath, Pattern: patternUserPath, Redaction: canonical("[user]")},
		"@userpath:hash":    {Type: RuleTypePattern, Category: CategoryUserPath, Pattern: patternUserPath, Redaction: hashed()},
		"@userpath":         {Type: RuleTypeAlias, AliasOf: "@userpath:replace"},

		"@password:remove": {
			Type:       RuleTypeRedactPair,
			KeyPattern: `(?i)\b(password|passwd|mysql_pwd|auth|credentials|secret)\b`,
			Redaction:  Redaction{Kind: RedactionRemove},
		},
		"@password": {Type: RuleTypeAlias, AliasOf: "@password:remove"},
	}
	return rules
}

// compositeRules expands the two synthetic data-scrubbing catalog entries
// referenced by ToPiiConfig (spec.md 4.2's DataScrubbingConfig projection)
// into the concrete builtin rule ids they bundle. The legacy source
// defining these ids (legacy.rs) was not part of the retrieved
// original_source/ file set; the bundle membership is reconstructed from
// the set of categories spec.md's builtin catalog defines.
func compositeRules() map[string][]string {
	return map[string][]string{
		"@common:filter": {
			"@ip:replace", "@email:mask", "@creditcard:mask", "@mac:mask",
			"@password:remove", "@urlauth:replace", "@imei:replace",
			"@userpath:replace", "@pemkey:hash",
		},
		"@ip:filter": {"@ip:replace"},
	}
}

// patternReplaceBehavior returns which part of a pattern match a category
// redacts: the PEM and URL-auth rules act on a capture group (the key body
// / userinfo segment), everything else redacts the whole match.
func patternReplaceBehavior(cat PatternCategory) (ReplaceBehavior, []int) {
	switch cat {
	case CategoryPEMKey:
		return ReplaceGroups, []int{1} // only the body between the BEGIN/END markers
	case CategoryURLAuth:
		return ReplaceGroups, []int{1}
	default:
		return ReplaceValue, nil
	}
}
