// Package tools defines the callable tools the model may invoke during a
// conversation, with JSON-schema argument contracts and a closed registry.
package tools

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ErrDivisionByZero indicates an expression divided by zero.
var ErrDivisionByZero = errors.New("division by zero")

// ParseError reports a malformed arithmetic expression with the byte
// position of the offending token.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Msg)
}

// Eval evaluates an arithmetic expression with +, -, *, /, unary minus, and
// parentheses using exact decimal arithmetic. Division keeps enough
// precision for monetary use (see decimal.DivisionPrecision).
func Eval(expr string) (decimal.Decimal, error) {
	p := &parser{input: expr}
	v, err := p.parseExpr()
	if err != nil {
		return decimal.Zero, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return decimal.Zero, &ParseError{Pos: p.pos, Msg: fmt.Sprintf("unexpected %q", p.input[p.pos])}
	}
	return v, nil
}

// ComputeTax extracts the tax portion contained in a gross amount at the
// given rate. The computation runs through Eval as the expression
// (gross * rate) / (1 + rate), so it shares the evaluator's division
// semantics, including ErrDivisionByZero for a rate of -1.
func ComputeTax(gross, rate decimal.Decimal) (decimal.Decimal, error) {
	return Eval(fmt.Sprintf("(%s * %s) / (1 + %s)", gross, rate, rate))
}

// parser is a recursive-descent evaluator over the grammar
//
//	expr   = term { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = number | "-" factor | "(" expr ")"
type parser struct {
	input string
	pos   int
}

func (p *parser) parseExpr() (decimal.Decimal, error) {
	left, err := p.parseTerm()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.peek('+'):
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Add(right)
		case p.peek('-'):
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Sub(right)
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (decimal.Decimal, error) {
	left, err := p.parseFactor()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.peek('*'):
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Mul(right)
		case p.peek('/'):
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return decimal.Zero, err
			}
			if right.IsZero() {
				return decimal.Zero, ErrDivisionByZero
			}
			left = left.Div(right)
		default:
			return left, nil
		}
	}
}

func (p *parser) parseFactor() (decimal.Decimal, error) {
	p.skipSpaces()
	switch {
	case p.pos >= len(p.input):
		return decimal.Zero, &ParseError{Pos: p.pos, Msg: "unexpected end of expression"}
	case p.peek('-'):
		p.pos++
		v, err := p.parseFactor()
		if err != nil {
			return decimal.Zero, err
		}
		return v.Neg(), nil
	case p.peek('('):
		open := p.pos
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return decimal.Zero, err
		}
		p.skipSpaces()
		if !p.peek(')') {
			return decimal.Zero, &ParseError{Pos: open, Msg: "unclosed parenthesis"}
		}
		p.pos++
		return v, nil
	default:
		return p.parseNumber()
	}
}

func (p *parser) parseNumber() (decimal.Decimal, error) {
	start := p.pos
	for p.pos < len(p.input) && (unicode.IsDigit(rune(p.input[p.pos])) || p.input[p.pos] == '.') {
		p.pos++
	}
	if p.pos == start {
		return decimal.Zero, &ParseError{Pos: start, Msg: fmt.Sprintf("expected number, got %q", p.input[start])}
	}
	v, err := decimal.NewFromString(p.input[start:p.pos])
	if err != nil {
		return decimal.Zero, &ParseError{Pos: start, Msg: fmt.Sprintf("invalid number %q", p.input[start:p.pos])}
	}
	return v, nil
}

func (p *parser) peek(c byte) bool {
	return p.pos < len(p.input) && p.input[p.pos] == c
}

func (p *parser) skipSpaces() {
	p.pos += len(p.input[p.pos:]) - len(strings.TrimLeft(p.input[p.pos:], " \t\n"))
}
