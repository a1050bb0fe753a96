package selector

import (
	"fmt"
	"strings"

	"github.com/getsentry/relay-go/event"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokStar
	tokDeepStar
	tokDollar
	tokTilde
	tokDot
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokBang
)

type token struct {
	kind tokenKind
	text string
}

type lexer struct {
	input []rune
	pos   int
}

func newLexer(s string) *lexer {
	return &lexer{input: []rune(s)}
}

func (l *lexer) peekRune() (rune, bool) {
	if l.pos >= len(l.input) {
		return 0, false
	}
	return l.input[l.pos], true
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentRune(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9') || r == '-' || r == ':'
}

func (l *lexer) skipSpace() {
	for {
		r, ok := l.peekRune()
		if !ok || !(r == ' ' || r == '\t' || r == '\n' || r == '\r') {
			return
		}
		l.pos++
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	r, ok := l.peekRune()
	if !ok {
		return token{kind: tokEOF}, nil
	}

	switch r {
	case '.':
		l.pos++
		return token{kind: tokDot}, nil
	case '(':
		l.pos++
		return token{kind: tokLParen}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen}, nil
	case '!':
		l.pos++
		return token{kind: tokBang}, nil
	case '$':
		l.pos++
		return token{kind: tokDollar}, nil
	case '~':
		l.pos++
		return token{kind: tokTilde}, nil
	case '&':
		l.pos++
		if r2, ok := l.peekRune(); ok && r2 == '&' {
			l.pos++
		}
		return token{kind: tokAnd}, nil
	case '|':
		l.pos++
		if r2, ok := l.peekRune(); ok && r2 == '|' {
			l.pos++
		}
		return token{kind: tokOr}, nil
	case '*':
		l.pos++
		if r2, ok := l.peekRune(); ok && r2 == '*' {
			l.pos++
			return token{kind: tokDeepStar}, nil
		}
		return token{kind: tokStar}, nil
	case '"', '\'':
		return l.lexQuoted(r)
	}

	if isIdentStart(r) {
		start := l.pos
		for {
			r, ok := l.peekRune()
			if !ok || !isIdentRune(r) {
				break
			}
			l.pos++
		}
		return token{kind: tokIdent, text: string(l.input[start:l.pos])}, nil
	}

	return token{}, fmt.Errorf("selector: unexpected character %q at offset %d", r, l.pos)
}

func (l *lexer) lexQuoted(quote rune) (token, error) {
	l.pos++ // consume opening quote
	var b strings.Builder
	for {
		r, ok := l.peekRune()
		if !ok {
			return token{}, fmt.Errorf("selector: unterminated quoted key")
		}
		if r == quote {
			l.pos++
			return token{kind: tokIdent, text: b.String()}, nil
		}
		if r == '\\' {
			l.pos++
			if r2, ok := l.peekRune(); ok {
				b.WriteRune(r2)
				l.pos++
				continue
			}
			return token{}, fmt.Errorf("selector: unterminated escape in quoted key")
		}
		b.WriteRune(r)
		l.pos++
	}
}

// parser is a small recursive-descent parser with one token of lookahead.
type parser struct {
	lex *lexer
	cur token
}

func newParser(s string) (*parser, error) {
	p := &parser{lex: newLexer(s)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

// Parse compiles a selector expression.
func Parse(text string) (Selector, error) {
	p, err := newParser(text)
	if err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, fmt.Errorf("selector: unexpected trailing token after %q", text)
	}
	return expr, nil
}

// MustParse is Parse but panics on error; intended for builtin selectors
// defined as Go literals.
func MustParse(text string) Selector {
	sel, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return sel
}

func (p *parser) parseExpr() (Selector, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = OrExpr{A: left, B: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Selector, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = AndExpr{A: left, B: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Selector, error) {
	if p.cur.kind == tokBang {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return NotExpr{A: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Selector, error) {
	if p.cur.kind == tokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, fmt.Errorf("selector: expected ')'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.parsePath()
}

func (p *parser) parsePath() (Selector, error) {
	atoms := make([]atom, 0, 4)
	a, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	atoms = append(atoms, a)
	for p.cur.kind == tokDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		a, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, a)
	}
	return PathExpr{Atoms: atoms}, nil
}

func (p *parser) parseAtom() (atom, error) {
	switch p.cur.kind {
	case tokStar:
		if err := p.advance(); err != nil {
			return atom{}, err
		}
		return atom{kind: atomWildcard}, nil
	case tokDeepStar:
		if err := p.advance(); err != nil {
			return atom{}, err
		}
		return atom{kind: atomDeepWildcard}, nil
	case tokDollar:
		if err := p.advance(); err != nil {
			return atom{}, err
		}
		if p.cur.kind != tokIdent {
			return atom{}, fmt.Errorf("selector: expected type name after '$'")
		}
		name := p.cur.text
		if err := p.advance(); err != nil {
			return atom{}, err
		}
		return atom{kind: atomValueType, valueType: normalizeValueType(name)}, nil
	case tokTilde:
		if err := p.advance(); err != nil {
			return atom{}, err
		}
		if p.cur.kind != tokIdent {
			return atom{}, fmt.Errorf("selector: expected kind name after '~'")
		}
		name := p.cur.text
		if err := p.advance(); err != nil {
			return atom{}, err
		}
		return atom{kind: atomPIIKind, piiKind: normalizePIIKind(name)}, nil
	case tokIdent:
		key := p.cur.text
		if err := p.advance(); err != nil {
			return atom{}, err
		}
		return atom{kind: atomKey, key: key}, nil
	default:
		return atom{}, fmt.Errorf("selector: expected atom, got token kind %d", p.cur.kind)
	}
}

// normalizeValueType maps a selector type name to an event.ValueType by
// lowercasing it; it resolves no aliases. The legacy aliases freeform and
// databag are resolved by normalizePIIKind for '~' atoms.
func normalizeValueType(name string) event.ValueType {
	return event.ValueType(strings.ToLower(name))
}

// normalizePIIKind maps a selector kind name to an event.PIIKind, resolving
// the legacy aliases freeform->text and databag->container.
func normalizePIIKind(name string) event.PIIKind {
	switch strings.ToLower(name) {
	case "freeform":
		return event.PIIKindText
	case "databag":
		return event.PIIKindContainer
	default:
		return event.PIIKind(strings.ToLower(name))
	}
}
