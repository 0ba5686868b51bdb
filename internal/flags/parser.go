package flags

import (
	"fmt"
	"strings"
	"unicode"
)

// Parse compiles a flag expression string into an expression tree.
// Grammar, loosest binding first:
//
//	expr   := term ('|' term)*
//	term   := factor ('&' factor)*
//	factor := '!' factor | '(' expr ')' | FLAG
//
// Flag names follow segment-database convention, e.g.
// "H1:DMT-ANALYSIS_READY:1", and may contain letters, digits and
// ':', '-', '_', '.' characters.
func Parse(input string) (Expr, error) {
	p := &parser{input: input}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("flag expression: unexpected %q at offset %d", p.input[p.pos], p.pos)
	}
	return expr, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek() == '|' {
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = Or{L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.peek() == '&' {
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = And{L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseFactor() (Expr, error) {
	switch p.peek() {
	case '!':
		p.pos++
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return Not{X: inner}, nil
	case '(':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, fmt.Errorf("flag expression: missing ')' at offset %d", p.pos)
		}
		p.pos++
		return inner, nil
	case 0:
		return nil, fmt.Errorf("flag expression: unexpected end of input")
	default:
		return p.parseFlag()
	}
}

func (p *parser) parseFlag() (Expr, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) && isFlagChar(rune(p.input[p.pos])) {
		p.pos++
	}
	name := strings.TrimSpace(p.input[start:p.pos])
	if name == "" {
		return nil, fmt.Errorf("flag expression: expected flag name at offset %d", start)
	}
	return Flag(name), nil
}

// peek skips whitespace and returns the next significant byte, or 0 at
// end of input. It does not consume the byte.
func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func isFlagChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		r == ':' || r == '-' || r == '_' || r == '.'
}
