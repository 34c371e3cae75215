package parser

import (
	"strconv"
	"unicode"

	"github.com/pkg/errors"

	"rcptr_go/pkg/ast"
)

// Parser parses scenario S-expressions into Values
type Parser struct {
	input string
	pos   int
	line  int
}

// New creates a new parser for the given input
func New(input string) *Parser {
	return &Parser{input: input, pos: 0, line: 1}
}

// Parse parses a single S-expression; nil at end of input
func (p *Parser) Parse() (*ast.Value, error) {
	p.skipWhitespace()
	if p.pos >= len(p.input) {
		return nil, nil
	}
	return p.parseExpr()
}

// ParseAll parses all S-expressions in the input
func (p *Parser) ParseAll() ([]*ast.Value, error) {
	var results []*ast.Value
	for {
		p.skipWhitespace()
		if p.pos >= len(p.input) {
			break
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if expr != nil {
			results = append(results, expr)
		}
	}
	return results, nil
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return errors.Wrapf(errors.Errorf(format, args...), "line %d", p.line)
}

func (p *Parser) skipWhitespace() {
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if ch == ';' {
			// Skip comment to end of line
			for p.pos < len(p.input) && p.input[p.pos] != '\n' {
				p.pos++
			}
		} else if unicode.IsSpace(rune(ch)) {
			if ch == '\n' {
				p.line++
			}
			p.pos++
		} else {
			break
		}
	}
}

func (p *Parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *Parser) advance() byte {
	ch := p.peek()
	if ch != 0 {
		p.pos++
		if ch == '\n' {
			p.line++
		}
	}
	return ch
}

func (p *Parser) parseExpr() (*ast.Value, error) {
	p.skipWhitespace()
	if p.pos >= len(p.input) {
		return nil, nil
	}

	line := p.line
	var (
		v   *ast.Value
		err error
	)
	switch p.peek() {
	case '(':
		v, err = p.parseList()
	case ')':
		return nil, p.errorf("unexpected ')'")
	case '"':
		v, err = p.parseString()
	case '#':
		v, err = p.parseHash()
	default:
		v, err = p.parseAtom()
	}
	if err != nil {
		return nil, err
	}
	if v != ast.Nil {
		v.Line = line
	}
	return v, nil
}

func (p *Parser) parseList() (*ast.Value, error) {
	p.advance() // consume '('
	var items []*ast.Value

	for {
		p.skipWhitespace()
		if p.pos >= len(p.input) {
			return nil, p.errorf("unclosed list")
		}
		if p.peek() == ')' {
			p.advance()
			break
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, expr)
	}

	return ast.SliceToList(items), nil
}

// parseHash reads #t and #f as the symbols true and false
func (p *Parser) parseHash() (*ast.Value, error) {
	p.advance() // consume '#'
	switch p.peek() {
	case 't':
		p.advance()
		return ast.NewSym("true"), nil
	case 'f':
		p.advance()
		return ast.NewSym("false"), nil
	case 0:
		return nil, p.errorf("unexpected end after '#'")
	default:
		return nil, p.errorf("unexpected character after '#': %c", p.peek())
	}
}

func (p *Parser) parseString() (*ast.Value, error) {
	p.advance() // consume opening '"'
	var buf []byte

	for p.pos < len(p.input) {
		ch := p.advance()
		if ch == '"' {
			return ast.NewStr(string(buf)), nil
		}
		if ch == '\\' && p.pos < len(p.input) {
			next := p.advance()
			switch next {
			case 'n':
				buf = append(buf, '\n')
			case 't':
				buf = append(buf, '\t')
			default:
				buf = append(buf, next)
			}
		} else {
			buf = append(buf, ch)
		}
	}
	return nil, p.errorf("unclosed string")
}

func (p *Parser) parseAtom() (*ast.Value, error) {
	start := p.pos

	// Check for negative number
	if p.peek() == '-' && p.pos+1 < len(p.input) && isDigit(p.input[p.pos+1]) {
		p.advance()
	}

	if isDigit(p.peek()) {
		for p.pos < len(p.input) && isDigit(p.input[p.pos]) {
			p.pos++
		}
		if p.pos < len(p.input) && !isDelimiter(p.input[p.pos]) {
			return nil, p.errorf("invalid integer: %s", p.input[start:p.pos+1])
		}
		numStr := p.input[start:p.pos]
		n, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer: %s", numStr)
		}
		return ast.NewInt(n), nil
	}

	// It's a symbol
	for p.pos < len(p.input) && !isDelimiter(p.input[p.pos]) {
		p.pos++
	}

	if p.pos == start {
		return nil, p.errorf("unexpected character: %c", p.peek())
	}

	return ast.NewSym(p.input[start:p.pos]), nil
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isDelimiter(ch byte) bool {
	return unicode.IsSpace(rune(ch)) || ch == '(' || ch == ')' || ch == '"' || ch == ';'
}

// ParseString is a convenience function to parse a string
func ParseString(input string) (*ast.Value, error) {
	p := New(input)
	return p.Parse()
}

// ParseAllString parses all expressions in a string
func ParseAllString(input string) ([]*ast.Value, error) {
	p := New(input)
	return p.ParseAll()
}
