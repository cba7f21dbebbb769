// Package condition evaluates the boolean expressions of condition steps.
//
// The language is a small subset of JavaScript expressions: literals, property
// paths rooted at "data" (dot and bracket access, .length), comparison and
// equality operators, !, && and || with parentheses. Nothing else can be
// called or referenced.
package condition

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Program is a compiled expression.
type Program struct {
	src  string
	root node
}

// Compile parses expr.
func Compile(expr string) (*Program, error) {
	root, err := parse(expr)
	if err != nil {
		return nil, err
	}
	return &Program{src: expr, root: root}, nil
}

// String returns the source expression.
func (p *Program) String() string {
	return p.src
}

// Eval runs the program against data. Evaluation errors yield false.
func (p *Program) Eval(data map[string]any) (bool, error) {
	if data == nil {
		data = map[string]any{}
	}
	v, err := p.root.eval(data)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

// Evaluator compiles expressions once and caches the programs.
type Evaluator struct {
	programs *cache.Cache
}

// NewEvaluator returns an evaluator that keeps compiled programs for ttl.
func NewEvaluator(ttl time.Duration) *Evaluator {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Evaluator{programs: cache.New(ttl, 2*ttl)}
}

type compiled struct {
	prog *Program
	err  error
}

// Eval evaluates expr against data. Any failure, including a syntax error, yields false
// together with the cause.
func (e *Evaluator) Eval(expr string, data map[string]any) (bool, error) {
	var c compiled
	if cached, ok := e.programs.Get(expr); ok {
		c = cached.(compiled)
	} else {
		c.prog, c.err = Compile(expr)
		e.programs.SetDefault(expr, c)
	}
	if c.err != nil {
		return false, c.err
	}
	return c.prog.Eval(data)
}
