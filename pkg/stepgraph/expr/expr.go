package expr

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDivisionByZero is returned by / and % with a zero divisor.
var ErrDivisionByZero = errors.New("division by zero")

// SyntaxError reports an expression that does not parse.
type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expr %q: at %d: %s", e.Expr, e.Pos, e.Msg)
}

// TypeError reports an operator applied to a value it cannot take.
type TypeError struct {
	Op    string
	Value any
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("operator %s: not a number: %v (%T)", e.Op, e.Value, e.Value)
}

// Expr is a compiled expression. It is immutable and safe for concurrent use.
type Expr struct {
	src  string
	root node
}

// Compile parses src.
func Compile(src string) (*Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
	return &Expr{src: src, root: root}, nil
}

// MustCompile is like Compile but panics on a syntax error.
// Use for expressions fixed at build time.
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the source text.
func (e *Expr) String() string {
	return e.src
}

// Eval evaluates the expression. The result is nil, bool, float64, string,
// or a value taken unchanged from vars.
func (e *Expr) Eval(vars map[string]any) (any, error) {
	return e.root.eval(vars)
}

// Bool evaluates the expression and applies truthiness to the result.
func (e *Expr) Bool(vars map[string]any) (bool, error) {
	v, err := e.Eval(vars)
	if err != nil {
		return false, err
	}
	return IsTruthy(v), nil
}

// Number evaluates the expression and requires a numeric result.
func (e *Expr) Number(vars map[string]any) (float64, error) {
	v, err := e.Eval(vars)
	if err != nil {
		return 0, err
	}
	n, ok := toNumber(v)
	if !ok {
		return 0, &TypeError{Op: "result", Value: v}
	}
	return n, nil
}

// Eval compiles and evaluates src in one call.
func Eval(src string, vars map[string]any) (any, error) {
	e, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return e.Eval(vars)
}

// Bool compiles src and evaluates it for truthiness.
func Bool(src string, vars map[string]any) (bool, error) {
	e, err := Compile(src)
	if err != nil {
		return false, err
	}
	return e.Bool(vars)
}

// Number compiles src and evaluates it to a number.
func Number(src string, vars map[string]any) (float64, error) {
	e, err := Compile(src)
	if err != nil {
		return 0, err
	}
	return e.Number(vars)
}

// Refs returns the variable paths the expression reads, sorted and without
// duplicates.
func (e *Expr) Refs() []string {
	seen := map[string]bool{}
	collectRefs(e.root, seen)
	refs := make([]string, 0, len(seen))
	for path := range seen {
		refs = append(refs, path)
	}
	sort.Strings(refs)
	return refs
}

func collectRefs(n node, seen map[string]bool) {
	switch n := n.(type) {
	case ident:
		seen[n.path] = true
	case *notNode:
		collectRefs(n.operand, seen)
	case *negNode:
		collectRefs(n.operand, seen)
	case *binaryNode:
		collectRefs(n.left, seen)
		collectRefs(n.right, seen)
	}
}
