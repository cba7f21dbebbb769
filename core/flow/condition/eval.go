package condition

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

type value = any

type undefinedType struct{}

// undefined is the value of a missing property.
var undefined = undefinedType{}

type segment struct {
	name  string
	index node
}

type literalNode struct{ v value }

func (n literalNode) eval(map[string]any) (value, error) { return n.v, nil }

type pathNode struct{ segs []segment }

func (n pathNode) eval(root map[string]any) (value, error) {
	var cur value = root
	for _, s := range n.segs {
		key := s.name
		if s.index != nil {
			iv, err := s.index.eval(root)
			if err != nil {
				return nil, err
			}
			key = toString(iv)
		}
		next, err := property(cur, key)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return normalize(cur), nil
}

func property(obj value, key string) (value, error) {
	switch o := obj.(type) {
	case nil:
		return nil, fmt.Errorf("cannot read property %q of null", key)
	case undefinedType:
		return nil, fmt.Errorf("cannot read property %q of undefined", key)
	case map[string]any:
		v, ok := o[key]
		if !ok {
			return undefined, nil
		}
		return normalize(v), nil
	case []any:
		if key == "length" {
			return float64(len(o)), nil
		}
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(o) {
			return undefined, nil
		}
		return normalize(o[i]), nil
	case []string:
		if key == "length" {
			return float64(len(o)), nil
		}
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(o) {
			return undefined, nil
		}
		return o[i], nil
	case string:
		if key == "length" {
			return float64(len(utf16.Encode([]rune(o)))), nil
		}
		return undefined, nil
	default:
		return undefined, nil
	}
}

// normalize folds Go numeric types into float64.
func normalize(v value) value {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	}
	return v
}

type unaryNode struct {
	op      string
	operand node
}

func (n unaryNode) eval(root map[string]any) (value, error) {
	v, err := n.operand.eval(root)
	if err != nil {
		return nil, err
	}
	if n.op == "!" {
		return !truthy(v), nil
	}
	return -toNumber(v), nil
}

type logicalNode struct {
	op          string
	left, right node
}

func (n logicalNode) eval(root map[string]any) (value, error) {
	l, err := n.left.eval(root)
	if err != nil {
		return nil, err
	}
	if n.op == "&&" && !truthy(l) || n.op == "||" && truthy(l) {
		return l, nil
	}
	return n.right.eval(root)
}

type binaryNode struct {
	op          string
	left, right node
}

func (n binaryNode) eval(root map[string]any) (value, error) {
	l, err := n.left.eval(root)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(root)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "===":
		return strictEqual(l, r), nil
	case "!==":
		return !strictEqual(l, r), nil
	case "==":
		return looseEqual(l, r), nil
	case "!=":
		return !looseEqual(l, r), nil
	}
	return compare(n.op, l, r), nil
}

func isNullish(v value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(undefinedType)
	return ok
}

func truthy(v value) bool {
	switch x := v.(type) {
	case nil, undefinedType:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	}
	return true
}

func toNumber(v value) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case undefinedType:
		return math.NaN()
	case bool:
		if x {
			return 1
		}
		return 0
	case float64:
		return x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func toString(v value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case undefinedType:
		return "undefined"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func strictEqual(l, r value) bool {
	switch a := l.(type) {
	case nil:
		return r == nil
	case undefinedType:
		_, ok := r.(undefinedType)
		return ok
	case bool:
		b, ok := r.(bool)
		return ok && a == b
	case float64:
		b, ok := r.(float64)
		return ok && a == b
	case string:
		b, ok := r.(string)
		return ok && a == b
	}
	// objects compare by identity, which copies never share
	return false
}

func looseEqual(l, r value) bool {
	if isNullish(l) || isNullish(r) {
		return isNullish(l) && isNullish(r)
	}
	if _, ok := l.(bool); ok {
		return looseEqual(toNumber(l), r)
	}
	if _, ok := r.(bool); ok {
		return looseEqual(l, toNumber(r))
	}
	ls, lStr := l.(string)
	rs, rStr := r.(string)
	if lStr && rStr {
		return ls == rs
	}
	_, lNum := l.(float64)
	_, rNum := r.(float64)
	if lNum && rStr || lStr && rNum {
		return toNumber(l) == toNumber(r)
	}
	return strictEqual(l, r)
}

func compare(op string, l, r value) bool {
	ls, lStr := l.(string)
	rs, rStr := r.(string)
	if lStr && rStr {
		switch op {
		case "<":
			return ls < rs
		case "<=":
			return ls <= rs
		case ">":
			return ls > rs
		default:
			return ls >= rs
		}
	}
	a, b := toNumber(l), toNumber(r)
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	default:
		return a >= b
	}
}
