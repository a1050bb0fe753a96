package pii

import (
	"github.com/getsentry/relay-go/event"
	"github.com/getsentry/relay-go/selector"
)

// Processor walks an event tree applying a CompiledConfig's rules, mutating
// matched nodes in place and recording redaction remarks on their Meta.
type Processor struct {
	Config *CompiledConfig
}

// NewProcessor returns a Processor bound to cfg.
func NewProcessor(cfg *CompiledConfig) *Processor {
	return &Processor{Config: cfg}
}

// Process runs the traversal over root, applying matching rules at every
// node: visit root, then children (array order, key-sorted for maps during
// traversal; output key order is unaffected since it's tracked separately
// on event.Object).
func (p *Processor) Process(root *event.Node) {
	if root == nil || p.Config == nil {
		return
	}
	p.visit(root, event.Path{})
}

func (p *Processor) visit(node *event.Node, path event.Path) {
	matchPath := path
	if len(path) == 0 {
		// The root has no key or index of its own; a synthetic segment
		// presents its value type and PII kind so predicates like $string
		// can match it. Children's paths do not include this segment.
		matchPath = event.Path{{ValueType: node.Type, PIIKind: node.PIIKind}}
	}
	applicable := p.matchingRules(matchPath)
	for _, rule := range applicable {
		p.apply(node, path, rule)
	}

	switch {
	case node.Array != nil:
		for i, child := range node.Array {
			if child == nil {
				continue
			}
			childPath := append(append(event.Path{}, path...), event.IndexItem(i, child.Type, child.PIIKind))
			p.visit(child, childPath)
		}
	case node.Object != nil:
		for _, key := range node.Object.SortedKeys() {
			child := node.Object.Get(key)
			if child == nil {
				continue
			}
			childPath := append(append(event.Path{}, path...), event.KeyItem(key, child.Type, child.PIIKind))
			p.visit(child, childPath)
		}
	}
}

func (p *Processor) matchingRules(path event.Path) []*CompiledRule {
	var out []*CompiledRule
	for _, b := range p.Config.Bindings {
		if b.Selector.Eval(path) == selector.Match {
			out = append(out, b.Rules...)
		}
	}
	return out
}

func (p *Processor) apply(node *event.Node, path event.Path, rule *CompiledRule) {
	switch rule.Type {
	case RuleTypeRedactPair:
		applyRedactPair(node, path, rule)
	case RuleTypeAnything:
		if node.Type == event.TypeString {
			applyWholeValue(node, rule)
		}
	case RuleTypePattern:
		if node.Type == event.TypeString {
			applyPattern(node, rule)
		}
	}
}

func applyRedactPair(node *event.Node, path event.Path, rule *CompiledRule) {
	if len(path) == 0 {
		return
	}
	last := path[len(path)-1]
	if last.IsIndex {
		return
	}
	if !rule.KeyRegex.MatchString(last.Key) {
		return
	}
	redactWholeNode(node, rule)
}

func redactWholeNode(node *event.Node, rule *CompiledRule) {
	if node.Meta.Original == nil {
		node.Meta.Original = node.Str
	}
	switch rule.Redaction.Kind {
	case RedactionRemove:
		node.Str = ""
		node.Meta.AddRemark(rule.ID, event.ActionRemoved, 0, 0)
	case RedactionReplace:
		node.Str = rule.Redaction.ReplaceText
		node.Meta.AddRemark(rule.ID, event.ActionSubstituted, 0, len(node.Str))
	case RedactionHash:
		node.Str = hashValue(node.Str, rule.Redaction.HashKey)
		node.Meta.AddRemark(rule.ID, event.ActionPseudonymized, 0, len(node.Str))
	case RedactionMask:
		node.Str = applyMaskText(node.Str, rule.Redaction)
		node.Meta.AddRemark(rule.ID, event.ActionMasked, 0, len(node.Str))
	}
}

// applyWholeValue implements RuleTypeAnything: the entire string value is
// redacted, whatever its content.
func applyWholeValue(node *event.Node, rule *CompiledRule) {
	redactWholeNode(node, rule)
}

// applyPattern implements pattern-rule matching: find every regex match in
// node.Str, redact each matched span (or the rule's capture groups, for
// behaviors that redact only part of the match), and rebuild the value
// left to right so remark spans refer to positions in the resulting value.
func applyPattern(node *event.Node, rule *CompiledRule) {
	value := node.Str
	locs := rule.Regex.FindAllStringSubmatchIndex(value, -1)
	if len(locs) == 0 {
		return
	}

	var out []byte
	cursor := 0
	changed := false

	for _, loc := range locs {
		spans := selectSpans(rule, loc)
		for _, sp := range spans {
			start, end := sp[0], sp[1]
			if start < cursor {
				continue // overlapping group already consumed
			}
			matched := value[start:end]

			if rule.Category == CategoryCreditCard {
				if !luhnValid(stripDigits(matched)) {
					continue
				}
			}

			out = append(out, value[cursor:start]...)
			remarkStart := len(out)
			replacement, action := redactSpan(matched, rule.Redaction)
			out = append(out, replacement...)
			node.Meta.AddRemark(rule.ID, action, remarkStart, len(out))
			cursor = end
			changed = true
		}
	}
	out = append(out, value[cursor:]...)

	if changed {
		if node.Meta.Original == nil {
			node.Meta.Original = value
		}
		node.Str = string(out)
	}
}

// selectSpans returns the byte spans within a single regex match that this
// rule's replace behavior redacts: the whole match (group 0) or specific
// capture groups.
func selectSpans(rule *CompiledRule, loc []int) [][2]int {
	if rule.Behavior == ReplaceGroups {
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

func redactSpan(matched string, red Redaction) (string, event.Action) {
	switch red.Kind {
	case RedactionHash:
		return hashValue(matched, red.HashKey), event.ActionPseudonymized
	case RedactionMask:
		return applyMaskText(matched, red), event.ActionMasked
	case RedactionRemove:
		return "", event.ActionRemoved
	default: // RedactionReplace, RedactionDefault already resolved at compile time
		return red.ReplaceText, event.ActionSubstituted
	}
}
