// Package selector parses and evaluates the path-expression language used
// to address nodes of an event tree from a PiiConfig application.
//
// Grammar:
//
//	atom := key | '*' | '**' | '$' TYPE | '~' atom
//	path := atom ('.' atom)*
//	expr := path | '(' expr ')' | expr '&' expr | expr '|' expr | '!' expr
//
// Operator precedence: '!' highest, then '&', then '|'. The legacy forms
// '&&' and '||' are accepted as synonyms for '&'/'|'.
package selector

import (
	"fmt"

	"github.com/getsentry/relay-go/event"
)

// MatchResult is the outcome of evaluating a Selector against the path of
// the node currently being visited.
type MatchResult int

const (
	// NoMatch prunes the subtree: neither this node nor any descendant can
	// satisfy the selector from here.
	NoMatch MatchResult = iota
	// Partial means the prefix matched so far is consistent with the
	// selector, but more atoms remain to be satisfied by descending further.
	Partial
	// Match authorizes applying rules bound to this selector at this node.
	Match
)

func (m MatchResult) String() string {
	switch m {
	case Match:
		return "match"
	case Partial:
		return "partial"
	default:
		return "nomatch"
	}
}

// Selector is an algebraic expression over event-tree paths.
type Selector interface {
	Eval(path event.Path) MatchResult
	String() string
}

// atomKind distinguishes the five atomic selector forms.
type atomKind int

const (
	atomKey atomKind = iota
	atomWildcard
	atomDeepWildcard
	atomValueType
	atomPIIKind
)

// atom is a single path-segment matcher.
type atom struct {
	kind      atomKind
	key       string
	valueType event.ValueType
	piiKind   event.PIIKind
}

func (a atom) matches(seg event.PathItem) bool {
	switch a.kind {
	case atomKey:
		return !seg.IsIndex && seg.Key == a.key
	case atomWildcard:
		return true
	case atomValueType:
		return seg.ValueType == a.valueType
	case atomPIIKind:
		return seg.PIIKind == a.piiKind
	default:
		return false
	}
}

func (a atom) String() string {
	switch a.kind {
	case atomWildcard:
		return "*"
	case atomDeepWildcard:
		return "**"
	case atomValueType:
		return "$" + string(a.valueType)
	case atomPIIKind:
		return "~" + string(a.piiKind)
	default:
		return a.key
	}
}

// PathExpr is a sequence of atoms matched positionally against the current
// node's path, anchored at the root (the first atom corresponds to the
// first path segment below the traversal root).
type PathExpr struct {
	Atoms []atom
}

func (p PathExpr) String() string {
	out := ""
	for i, a := range p.Atoms {
		if i > 0 {
			out += "."
		}
		out += a.String()
	}
	return out
}

// Eval implements Selector.
func (p PathExpr) Eval(path event.Path) MatchResult {
	return matchAtoms(p.Atoms, path)
}

func matchAtoms(atoms []atom, path event.Path) MatchResult {
	if len(atoms) == 0 {
		if len(path) == 0 {
			return Match
		}
		return NoMatch
	}

	head, rest := atoms[0], atoms[1:]

	if head.kind == atomDeepWildcard {
		if len(rest) == 0 {
			return Match
		}
		best := NoMatch
		for k := 0; k <= len(path); k++ {
			switch matchAtoms(rest, path[k:]) {
			case Match:
				return Match
			case Partial:
				best = Partial
			}
		}
		return best
	}

	if len(path) == 0 {
		return Partial
	}
	if !head.matches(path[0]) {
		return NoMatch
	}
	return matchAtoms(rest, path[1:])
}

// AndExpr is the conjunction of two selectors.
type AndExpr struct{ A, B Selector }

func (e AndExpr) String() string { return fmt.Sprintf("(%s & %s)", e.A, e.B) }

// Eval implements Selector: strictest of (match,match)->match, any
// nomatch->nomatch, else partial.
func (e AndExpr) Eval(path event.Path) MatchResult {
	a, b := e.A.Eval(path), e.B.Eval(path)
	if a == Match && b == Match {
		return Match
	}
	if a == NoMatch || b == NoMatch {
		return NoMatch
	}
	return Partial
}

// OrExpr is the disjunction of two selectors.
type OrExpr struct{ A, B Selector }

func (e OrExpr) String() string { return fmt.Sprintf("(%s | %s)", e.A, e.B) }

// Eval implements Selector: most permissive combination.
func (e OrExpr) Eval(path event.Path) MatchResult {
	a, b := e.A.Eval(path), e.B.Eval(path)
	if a == Match || b == Match {
		return Match
	}
	if a == NoMatch && b == NoMatch {
		return NoMatch
	}
	return Partial
}

// NotExpr negates a selector: match and nomatch flip, partial stays partial.
type NotExpr struct{ A Selector }

func (e NotExpr) String() string { return fmt.Sprintf("!%s", e.A) }

func (e NotExpr) Eval(path event.Path) MatchResult {
	switch e.A.Eval(path) {
	case Match:
		return NoMatch
	case NoMatch:
		return Match
	default:
		return Partial
	}
}
