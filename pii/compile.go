package pii

import (
	"context"
	"fmt"
	"regexp"

	"github.com/getsentry/relay-go/infrastructure/logging"
	"github.com/getsentry/relay-go/selector"
)

const maxAliasChain = 8

// expandComposite flattens the synthetic @common:filter / @ip:filter
// catalog bundles into their member rule ids; every other id passes
// through unchanged.
func expandComposite(ids []string) []string {
	composites := compositeRules()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if members, ok := composites[id]; ok {
			out = append(out, members...)
			continue
		}
		out = append(out, id)
	}
	return out
}

// CompiledRule is a Rule with its patterns compiled and its alias chain
// resolved, ready to apply during traversal.
type CompiledRule struct {
	// ID is the identifier recorded in remarks when this rule fires. Per
	// original_source/general/src/pii/builtin.rs, every builtin alias sets
	// hide_inner=true, so the remark keeps the name the caller actually
	// referenced rather than the concrete rule it resolved to; this
	// compiler mirrors that by always recording the originally requested
	// id.
	ID string

	Type      RuleType
	Category  PatternCategory
	Regex     *regexp.Regexp // nil for RuleTypeAnything
	KeyRegex  *regexp.Regexp // set for RuleTypeRedactPair
	Behavior  ReplaceBehavior
	Groups    []int
	Redaction Redaction
}

// Binding pairs a compiled selector with the rules it authorizes.
type Binding struct {
	Selector selector.Selector
	Rules    []*CompiledRule
}

// CompiledConfig is the executable form of a Config: a list of
// (selector, rules) bindings the processor iterates per tree node.
type CompiledConfig struct {
	Bindings []Binding
}

// Compile resolves every application entry of cfg into a Binding, following
// alias chains (built-in catalog first checked as a fallback behind any
// user-defined rule of the same name) and compiling each rule's regex(es)
// once.
func Compile(cfg *Config) (*CompiledConfig, error) {
	builtins := builtinRules()
	cache := map[string]*CompiledRule{}

	lookup := func(id string) (Rule, bool) {
		if cfg != nil {
			if r, ok := cfg.Rules[id]; ok {
				return r, true
			}
		}
		r, ok := builtins[id]
		return r, ok
	}

	var resolve func(requestedID string) (*CompiledRule, error)
	resolve = func(requestedID string) (*CompiledRule, error) {
		if cr, ok := cache[requestedID]; ok {
			return cr, nil
		}

		id := requestedID
		seen := map[string]bool{}
		var rule Rule
		for i := 0; ; i++ {
			if i >= maxAliasChain {
				return nil, fmt.Errorf("pii: alias chain for %q exceeds %d entries", requestedID, maxAliasChain)
			}
			if seen[id] {
				return nil, fmt.Errorf("pii: alias cycle detected resolving %q", requestedID)
			}
			seen[id] = true

			r, ok := lookup(id)
			if !ok {
				return nil, fmt.Errorf("pii: unknown rule id %q", id)
			}
			if r.Type != RuleTypeAlias {
				rule = r
				break
			}
			id = r.AliasOf
		}

		cr, err := compileRule(requestedID, rule)
		if err != nil {
			return nil, err
		}
		cache[requestedID] = cr
		return cr, nil
	}

	out := &CompiledConfig{}
	if cfg == nil {
		return out, nil
	}
	for selText, ruleIDs := range cfg.Applications {
		sel, err := selector.Parse(selText)
		if err != nil {
			return nil, fmt.Errorf("pii: compiling selector %q: %w", selText, err)
		}
		binding := Binding{Selector: sel}
		for _, id := range expandComposite(ruleIDs) {
			cr, err := resolve(id)
			if err != nil {
				// spec.md §4.2/§7: an unresolvable rule id, alias cycle, or
				// pattern that fails to compile is skipped and logged; the
				// rest of the config keeps working rather than the whole
				// Compile call failing.
				logging.Default().Warn(context.Background(), "pii: skipping rule", map[string]interface{}{
					"rule_id": id,
					"error":   err.Error(),
				})
				continue
			}
			binding.Rules = append(binding.Rules, cr)
		}
		if len(binding.Rules) == 0 {
			continue
		}
		out.Bindings = append(out.Bindings, binding)
	}
	return out, nil
}

func compileRule(requestedID string, r Rule) (*CompiledRule, error) {
	cr := &CompiledRule{
		ID:        requestedID,
		Type:      r.Type,
		Category:  r.Category,
		Redaction: resolveDefault(r),
	}

	switch r.Type {
	case RuleTypeAnything:
		return cr, nil
	case RuleTypePattern:
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pii: compiling pattern for %q: %w", requestedID, err)
		}
		cr.Regex = re
		cr.Behavior, cr.Groups = patternReplaceBehavior(r.Category)
		return cr, nil
	case RuleTypeRedactPair:
		re, err := regexp.Compile(r.KeyPattern)
		if err != nil {
			return nil, fmt.Errorf("pii: compiling key pattern for %q: %w", requestedID, err)
		}
		cr.KeyRegex = re
		return cr, nil
	default:
		return nil, fmt.Errorf("pii: rule %q has unexpected type %q after alias resolution", requestedID, r.Type)
	}
}

// resolveDefault resolves Redaction::Default to the rule's own concrete
// redaction; rules in the builtin catalog never declare Default (their
// canonical variant already carries an explicit redaction), so this only
// matters for user-authored rules that omit a redaction.
func resolveDefault(r Rule) Redaction {
	if r.Redaction.Kind == RedactionDefault || r.Redaction.Kind == "" {
		return canonicalDefaultFor(r.Category)
	}
	return r.Redaction
}

func canonicalDefaultFor(cat PatternCategory) Redaction {
	switch cat {
	case CategoryMAC:
		return masked('*', "-:", intp(9), nil)
	case CategoryEmail:
		return masked('*', ".@", nil, nil)
	case CategoryCreditCard:
		return masked('*', " -", nil, intp(-4))
	default:
		return canonical("[filtered]")
	}
}
