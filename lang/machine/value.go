// Package machine implements the runtime: the Value representation, the
// garbage-collected object heap, the hash table, and the stack-based VM
// that executes compiled bytecode.
package machine

import (
	"fmt"
	"math"
)

// Value is the dynamically-typed runtime value every slot on the VM stack,
// every global, and every upvalue holds: a tagged union expressed as a
// small closed set of concrete Go types. Nil, Bool and Number are value
// types carried directly, anything heap-allocated satisfies Obj.
type Value interface {
	isValue()
}

// Nil is the language's singleton absence-of-value.
type Nil struct{}

func (Nil) isValue() {}

// Bool is a language boolean.
type Bool bool

func (Bool) isValue() {}

// Number is the language's only numeric type, an IEEE-754 double.
type Number float64

func (Number) isValue() {}

// Truthy implements the language's truthiness rule: everything is truthy
// except nil and false, including 0 and the empty string.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case Nil:
		return false
	case Bool:
		return bool(v)
	default:
		return true
	}
}

// Equal implements the language's value-equality rule used by OP_EQUAL:
// numbers compare by value, strings compare by interned identity (which,
// because of interning, coincides with byte-for-byte equality), and every
// other object type compares by reference.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case Nil:
		_, ok := b.(Nil)
		return ok
	case Bool:
		bb, ok := b.(Bool)
		return ok && a == bb
	case Number:
		bb, ok := b.(Number)
		return ok && a == bb
	case *ObjString:
		bb, ok := b.(*ObjString)
		return ok && a == bb // interning makes pointer equality correct
	default:
		return a == b
	}
}

// Print renders v exactly as the language's print statement does: numbers
// in %g form, nil/true/false as keywords, strings raw without quotes,
// functions as "<fn NAME>" (closures print as their wrapped function).
func Print(v Value) string {
	switch v := v.(type) {
	case Nil:
		return "nil"
	case Bool:
		if v {
			return "true"
		}
		return "false"
	case Number:
		return formatNumber(float64(v))
	case *ObjString:
		return v.Chars
	case *ObjFunction:
		if v.Name == "" {
			return "<script>"
		}
		return fmt.Sprintf("<fn %s>", v.Name)
	case *ObjClosure:
		return Print(v.Fn)
	case *ObjNative:
		return "<native fn>"
	case *ObjUpvalue:
		return Print(v.value())
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatNumber(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	return fmt.Sprintf("%g", f)
}

// TypeName names a value's runtime type for error messages.
func TypeName(v Value) string {
	switch v.(type) {
	case Nil:
		return "nil"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case *ObjString:
		return "string"
	case *ObjFunction, *ObjClosure:
		return "function"
	case *ObjNative:
		return "native function"
	default:
		return "object"
	}
}
