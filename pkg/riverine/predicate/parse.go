package predicate

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

// Parse builds a Predicate from a query expression. The language covers
// the query boundary needs: field comparisons, regex matches, tag
// membership, and boolean combinators.
//
//	service == "api" and metric > 0.5
//	host =~ "web[0-9]+" and tagged "prod"
//	state != "ok" or expired
//	not (service == "api" and metric <= 1)
//
// Operator precedence, tightest first: not, and, or. String fields are
// host, service, state, description; numeric fields are metric and ttl
// (ttl in seconds).
func Parse(input string) (Predicate, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, fmt.Errorf("parse query: unexpected %q", p.peek().text)
	}
	return pred, nil
}

// MustParse is Parse that panics on error, for graph construction.
func MustParse(input string) Predicate {
	p, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return p
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := rune(input[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '"':
			j := i + 1
			var sb strings.Builder
			for j < len(input) && input[j] != '"' {
				if input[j] == '\\' && j+1 < len(input) {
					j++
				}
				sb.WriteByte(input[j])
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("parse query: unterminated string")
			}
			toks = append(toks, token{tokString, sb.String()})
			i = j + 1
		case strings.ContainsRune("=!<>~", c):
			j := i
			for j < len(input) && strings.ContainsRune("=!<>~", rune(input[j])) {
				j++
			}
			op := input[i:j]
			switch op {
			case "==", "!=", "<", "<=", ">", ">=", "=~":
			default:
				return nil, fmt.Errorf("parse query: unknown operator %q", op)
			}
			toks = append(toks, token{tokOp, op})
			i = j
		case unicode.IsDigit(c) || c == '-' || c == '.':
			j := i
			if input[j] == '-' {
				j++
			}
			for j < len(input) && (unicode.IsDigit(rune(input[j])) || input[j] == '.') {
				j++
			}
			if _, err := strconv.ParseFloat(input[i:j], 64); err != nil {
				return nil, fmt.Errorf("parse query: bad number %q", input[i:j])
			}
			toks = append(toks, token{tokNumber, input[i:j]})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(input) && (unicode.IsLetter(rune(input[j])) || unicode.IsDigit(rune(input[j])) || input[j] == '_') {
				j++
			}
			toks = append(toks, token{tokIdent, input[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("parse query: unexpected character %q", c)
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.toks)
}

func (p *parser) peek() token {
	if p.eof() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) parseOr() (Predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Predicate{left}
	for !p.eof() && p.peek().kind == tokIdent && p.peek().text == "or" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return Or(terms...), nil
}

func (p *parser) parseAnd() (Predicate, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms := []Predicate{left}
	for !p.eof() && p.peek().kind == tokIdent && p.peek().text == "and" {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return And(terms...), nil
}

func (p *parser) parseUnary() (Predicate, error) {
	if p.peek().kind == tokIdent && p.peek().text == "not" {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Predicate, error) {
	switch t := p.peek(); {
	case t.kind == tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("parse query: missing closing parenthesis")
		}
		p.next()
		return inner, nil
	case t.kind == tokIdent && t.text == "tagged":
		p.next()
		arg := p.next()
		if arg.kind != tokString {
			return nil, fmt.Errorf("parse query: tagged expects a quoted tag")
		}
		return Tagged(arg.text), nil
	case t.kind == tokIdent && t.text == "expired":
		p.next()
		return Expired(), nil
	case t.kind == tokIdent:
		return p.parseComparison()
	}
	return nil, fmt.Errorf("parse query: unexpected %q", p.peek().text)
}

var stringFields = map[string]event.Field{
	"host":        event.FieldHost,
	"service":     event.FieldService,
	"state":       event.FieldState,
	"description": event.FieldDescription,
}

var numericFields = map[string]event.Field{
	"metric": event.FieldMetric,
	"ttl":    event.FieldTTL,
}

func (p *parser) parseComparison() (Predicate, error) {
	fieldTok := p.next()
	opTok := p.next()
	if opTok.kind != tokOp {
		return nil, fmt.Errorf("parse query: expected operator after %q", fieldTok.text)
	}
	valTok := p.next()

	if f, ok := stringFields[fieldTok.text]; ok {
		if valTok.kind != tokString {
			return nil, fmt.Errorf("parse query: %s compares against a quoted string", fieldTok.text)
		}
		switch opTok.text {
		case "==":
			return Eq(f, valTok.text), nil
		case "!=":
			return Not(Eq(f, valTok.text)), nil
		case "=~":
			return Regex(f, valTok.text)
		}
		return nil, fmt.Errorf("parse query: operator %q not valid for %s", opTok.text, fieldTok.text)
	}

	if f, ok := numericFields[fieldTok.text]; ok {
		if valTok.kind != tokNumber {
			return nil, fmt.Errorf("parse query: %s compares against a number", fieldTok.text)
		}
		v, _ := strconv.ParseFloat(valTok.text, 64)
		switch opTok.text {
		case "==":
			return Eq(f, v), nil
		case "!=":
			return Not(Eq(f, v)), nil
		case "<":
			return Lt(f, v), nil
		case "<=":
			return Le(f, v), nil
		case ">":
			return Gt(f, v), nil
		case ">=":
			return Ge(f, v), nil
		}
	}

	return nil, fmt.Errorf("parse query: unknown field %q", fieldTok.text)
}
