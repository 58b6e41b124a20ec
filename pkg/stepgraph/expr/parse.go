package expr

import (
	"fmt"
	"slices"
)

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// accept consumes the next token if it is one of ops.
func (p *parser) accept(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind == tokOp && slices.Contains(ops, t.text) {
		p.pos++
		return t.text, true
	}
	return "", false
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Expr: p.src, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (node, error) {
	return p.binaryLevel(p.parseAnd, "or")
}

func (p *parser) parseAnd() (node, error) {
	return p.binaryLevel(p.parseNot, "and")
}

func (p *parser) parseNot() (node, error) {
	if _, ok := p.accept("not"); ok {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	op, ok := p.accept("==", "!=", "<", ">", "<=", ">=", "contains")
	if !ok {
		return left, nil
	}
	right, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	return &binaryNode{op: op, left: left, right: right}, nil
}

func (p *parser) parseSum() (node, error) {
	return p.binaryLevel(p.parseTerm, "+", "-")
}

func (p *parser) parseTerm() (node, error) {
	return p.binaryLevel(p.parseUnary, "*", "/", "%")
}

// binaryLevel parses a left-associative chain of ops over operand.
func (p *parser) binaryLevel(operand func() (node, error), ops ...string) (node, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.accept(ops...)
		if !ok {
			return left, nil
		}
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if _, ok := p.accept("-"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return literal{value: t.num}, nil
	case tokString:
		return literal{value: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true", "TRUE", "True":
			return literal{value: true}, nil
		case "false", "FALSE", "False":
			return literal{value: false}, nil
		case "null", "nil":
			return literal{value: nil}, nil
		}
		return ident{path: t.text}, nil
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected )")
		}
		return inner, nil
	case tokEOF:
		return nil, p.errorf(t, "unexpected end of expression")
	default:
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
}
