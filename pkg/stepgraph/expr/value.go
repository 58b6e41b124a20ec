package expr

import (
	"fmt"
	"math"
	"strings"
)

type node interface {
	eval(vars map[string]any) (any, error)
}

type literal struct{ value any }

func (l literal) eval(map[string]any) (any, error) { return l.value, nil }

type ident struct{ path string }

func (id ident) eval(vars map[string]any) (any, error) {
	return Lookup(vars, id.path), nil
}

type notNode struct{ operand node }

func (n *notNode) eval(vars map[string]any) (any, error) {
	v, err := n.operand.eval(vars)
	if err != nil {
		return nil, err
	}
	return !IsTruthy(v), nil
}

type negNode struct{ operand node }

func (n *negNode) eval(vars map[string]any) (any, error) {
	v, err := n.operand.eval(vars)
	if err != nil {
		return nil, err
	}
	f, ok := toNumber(v)
	if !ok {
		return nil, &TypeError{Op: "-", Value: v}
	}
	return -f, nil
}

type binaryNode struct {
	op          string
	left, right node
}

func (b *binaryNode) eval(vars map[string]any) (any, error) {
	left, err := b.left.eval(vars)
	if err != nil {
		return nil, err
	}

	// and/or short-circuit
	switch b.op {
	case "and":
		if !IsTruthy(left) {
			return false, nil
		}
		right, err := b.right.eval(vars)
		if err != nil {
			return nil, err
		}
		return IsTruthy(right), nil
	case "or":
		if IsTruthy(left) {
			return true, nil
		}
		right, err := b.right.eval(vars)
		if err != nil {
			return nil, err
		}
		return IsTruthy(right), nil
	}

	right, err := b.right.eval(vars)
	if err != nil {
		return nil, err
	}

	switch b.op {
	case "==":
		return equal(left, right), nil
	case "!=":
		return !equal(left, right), nil
	case "contains":
		return strings.Contains(fmt.Sprint(left), fmt.Sprint(right)), nil
	case "+":
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
		}
	}

	l, ok := toNumber(left)
	if !ok {
		return nil, &TypeError{Op: b.op, Value: left}
	}
	r, ok := toNumber(right)
	if !ok {
		return nil, &TypeError{Op: b.op, Value: right}
	}

	switch b.op {
	case "<":
		return l < r, nil
	case ">":
		return l > r, nil
	case "<=":
		return l <= r, nil
	case ">=":
		return l >= r, nil
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, ErrDivisionByZero
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return nil, ErrDivisionByZero
		}
		return math.Mod(l, r), nil
	}
	return nil, fmt.Errorf("unknown operator: %s", b.op)
}

func equal(left, right any) bool {
	if l, ok := toNumber(left); ok {
		if r, ok := toNumber(right); ok {
			return l == r
		}
	}
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	return fmt.Sprint(left) == fmt.Sprint(right)
}

// Lookup resolves a dotted path against vars, descending into nested
// map[string]any values. Missing keys resolve to nil.
func Lookup(vars map[string]any, path string) any {
	var cur any = vars
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[key]; !ok {
			return nil
		}
	}
	return cur
}

// IsTruthy returns whether a value is truthy.
// nil is false, bools return their value, empty strings are false,
// zero numbers are false, everything else is true.
func IsTruthy(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if n, ok := toNumber(v); ok {
		return n != 0
	}
	return true
}

// toNumber converts Go numeric types to float64. Strings and bools are not
// numbers.
func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}
