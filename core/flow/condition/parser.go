package condition

import "fmt"

// RootName is the only identifier an expression may start a property path from.
const RootName = "data"

type node interface {
	eval(root map[string]any) (value, error)
}

type parser struct {
	toks []token
	pos  int
}

func parse(src string) (node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at %d", t.text, t.pos)
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) expectOp(op string) error {
	if _, ok := p.acceptOp(op); !ok {
		t := p.peek()
		return fmt.Errorf("expected %q at %d", op, t.pos)
	}
	return nil
}

func (p *parser) or() (node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("||"); !ok {
			return left, nil
		}
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = logicalNode{op: "||", left: left, right: right}
	}
}

func (p *parser) and() (node, error) {
	left, err := p.equality()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("&&"); !ok {
			return left, nil
		}
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		left = logicalNode{op: "&&", left: left, right: right}
	}
}

func (p *parser) equality() (node, error) {
	left, err := p.relational()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("===", "!==", "==", "!=")
		if !ok {
			return left, nil
		}
		right, err := p.relational()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) relational() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("<=", ">=", "<", ">")
		if !ok {
			return left, nil
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) unary() (node, error) {
	if op, ok := p.acceptOp("!", "-"); ok {
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, operand: operand}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return literalNode{v: t.num}, nil
	case tokString:
		return literalNode{v: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return literalNode{v: true}, nil
		case "false":
			return literalNode{v: false}, nil
		case "null":
			return literalNode{v: nil}, nil
		case "undefined":
			return literalNode{v: undefined}, nil
		case RootName:
			return p.path()
		}
		return nil, fmt.Errorf("unknown identifier %q at %d", t.text, t.pos)
	case tokOp:
		if t.text == "(" {
			n, err := p.or()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return n, nil
		}
		return nil, fmt.Errorf("unexpected %q at %d", t.text, t.pos)
	}
	return nil, fmt.Errorf("unexpected end of expression")
}

func (p *parser) path() (node, error) {
	var segs []segment
	for {
		if _, ok := p.acceptOp("."); ok {
			t := p.next()
			if t.kind != tokIdent {
				return nil, fmt.Errorf("expected property name at %d", t.pos)
			}
			segs = append(segs, segment{name: t.text})
			continue
		}
		if _, ok := p.acceptOp("["); ok {
			idx, err := p.or()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			segs = append(segs, segment{index: idx})
			continue
		}
		return pathNode{segs: segs}, nil
	}
}
