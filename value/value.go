// Package value implements the interpreter's dynamically-typed runtime
// value model: a closed tagged union of int, double, string, bool,
// none, list, and map. Containers own their children by construction;
// the language offers no aliasing primitive, so cycles cannot arise.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags which field of a Value is meaningful.
type Kind int

const (
	Int Kind = iota
	Double
	String
	Bool
	None
	List
	Map
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Double:
		return "double"
	case String:
		return "string"
	case Bool:
		return "bool"
	case None:
		return "none"
	case List:
		return "list"
	case Map:
		return "map"
	default:
		return "unknown"
	}
}

// Value is the interpreter's universal runtime value.
type Value struct {
	Kind   Kind
	Int    int64
	Double float64
	Str    string
	Bool   bool
	List   []Value
	Map    map[string]Value
	// MapOrder preserves insertion order for stringification and
	// iteration, since Go maps do not.
	MapOrder []string
}

func NewInt(v int64) Value      { return Value{Kind: Int, Int: v} }
func NewDouble(v float64) Value { return Value{Kind: Double, Double: v} }
func NewString(v string) Value  { return Value{Kind: String, Str: v} }
func NewBool(v bool) Value      { return Value{Kind: Bool, Bool: v} }
func NewNone() Value            { return Value{Kind: None} }
func NewList(vs []Value) Value  { return Value{Kind: List, List: vs} }

// NewMap builds a Map value, recording key order as given.
func NewMap(keys []string, vals map[string]Value) Value {
	return Value{Kind: Map, Map: vals, MapOrder: append([]string(nil), keys...)}
}

// Truthy implements the language's truthiness table.
func (v Value) Truthy() bool {
	switch v.Kind {
	case Bool:
		return v.Bool
	case Int:
		return v.Int != 0
	case Double:
		return v.Double != 0
	case String:
		return v.Str != ""
	case List:
		return len(v.List) > 0
	case Map:
		return len(v.MapOrder) > 0
	case None:
		return false
	default:
		return false
	}
}

// Equals implements the language's equality rule: numeric cross-type
// equality only holds between identical concrete types.
func (v Value) Equals(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case Int:
		return v.Int == o.Int
	case Double:
		return v.Double == o.Double
	case String:
		return v.Str == o.Str
	case Bool:
		return v.Bool == o.Bool
	case None:
		return true
	case List:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equals(o.List[i]) {
				return false
			}
		}
		return true
	case Map:
		if len(v.MapOrder) != len(o.MapOrder) {
			return false
		}
		for _, k := range v.MapOrder {
			ov, ok := o.Map[k]
			if !ok || !v.Map[k].Equals(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Stringify renders a value for print/log output and for string
// concatenation fallback.
func Stringify(v Value) string {
	switch v.Kind {
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case Double:
		return formatDouble(v.Double)
	case String:
		return v.Str
	case Bool:
		if v.Bool {
			return "true"
		}
		return "false"
	case None:
		return "none"
	case List:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = Stringify(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Map:
		parts := make([]string, 0, len(v.MapOrder))
		for _, k := range v.MapOrder {
			parts = append(parts, fmt.Sprintf("%s: %s", k, Stringify(v.Map[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return ""
	}
}

func formatDouble(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// isNumeric reports whether v is Int or Double.
func isNumeric(v Value) bool { return v.Kind == Int || v.Kind == Double }

// Add implements "+": numeric widening (int promotes to double when
// either operand is double), string concatenation, and a
// stringify-then-concatenate fallback for any other combination.
func Add(a, b Value) Value {
	if a.Kind == String && b.Kind == String {
		return NewString(a.Str + b.Str)
	}
	if isNumeric(a) && isNumeric(b) {
		if a.Kind == Double || b.Kind == Double {
			return NewDouble(asFloat(a) + asFloat(b))
		}
		return NewInt(a.Int + b.Int)
	}
	return NewString(Stringify(a) + Stringify(b))
}

func asFloat(v Value) float64 {
	if v.Kind == Double {
		return v.Double
	}
	return float64(v.Int)
}

// Arith applies one of sub/mul/div/mod to two numeric values, widening
// to double when either operand is double. Integer division and
// modulo by zero return a (zero, error) pair so the interpreter can
// surface diag.KindDivisionByZero.
func Arith(op string, a, b Value) (Value, error) {
	widen := a.Kind == Double || b.Kind == Double
	switch op {
	case "-":
		if widen {
			return NewDouble(asFloat(a) - asFloat(b)), nil
		}
		return NewInt(a.Int - b.Int), nil
	case "*":
		if widen {
			return NewDouble(asFloat(a) * asFloat(b)), nil
		}
		return NewInt(a.Int * b.Int), nil
	case "/":
		if widen {
			return NewDouble(asFloat(a) / asFloat(b)), nil
		}
		if b.Int == 0 {
			return Value{}, fmt.Errorf("division by zero")
		}
		return NewInt(a.Int / b.Int), nil
	case "%":
		if widen {
			return NewDouble(math.Mod(asFloat(a), asFloat(b))), nil
		}
		if b.Int == 0 {
			return Value{}, fmt.Errorf("division by zero")
		}
		return NewInt(a.Int % b.Int), nil
	}
	return Value{}, fmt.Errorf("unknown operator: %s", op)
}

// Compare applies one of <, <=, >, >= to two numeric values.
func Compare(op string, a, b Value) (Value, error) {
	var x, y float64
	if a.Kind == Int && b.Kind == Int {
		switch op {
		case "<":
			return NewBool(a.Int < b.Int), nil
		case "<=":
			return NewBool(a.Int <= b.Int), nil
		case ">":
			return NewBool(a.Int > b.Int), nil
		case ">=":
			return NewBool(a.Int >= b.Int), nil
		}
	}
	if !isNumeric(a) || !isNumeric(b) {
		return Value{}, fmt.Errorf("comparison requires numeric operands, got %s and %s", a.Kind, b.Kind)
	}
	x, y = asFloat(a), asFloat(b)
	switch op {
	case "<":
		return NewBool(x < y), nil
	case "<=":
		return NewBool(x <= y), nil
	case ">":
		return NewBool(x > y), nil
	case ">=":
		return NewBool(x >= y), nil
	}
	return Value{}, fmt.Errorf("unknown operator: %s", op)
}
