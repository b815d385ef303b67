package machine

import "github.com/mna/eclox/lang/compiler"

// ObjType tags the concrete kind of a heap object.
type ObjType uint8

const (
	ObjTypeString ObjType = iota
	ObjTypeFunction
	ObjTypeNative
	ObjTypeClosure
	ObjTypeUpvalue
)

// Obj is satisfied by every heap-allocated value. The GC only ever touches
// objects through this interface and the ObjHeader it exposes.
type Obj interface {
	Value
	Header() *ObjHeader
	objType() ObjType
}

// ObjHeader is the mark-bit-and-intrusive-link header embedded by value in
// every concrete Obj. The VM's object list is formed by chaining Next
// pointers through these headers; nothing but the GC ever follows Next.
type ObjHeader struct {
	Marked bool
	Next   Obj
}

func (h *ObjHeader) Header() *ObjHeader { return h }

// ObjString is an interned, immutable byte string plus its precomputed
// FNV-1a hash.
type ObjString struct {
	ObjHeader
	Chars string
	Hash  uint32
}

func (*ObjString) isValue()         {}
func (*ObjString) objType() ObjType { return ObjTypeString }

// hashString is the 32-bit FNV-1a hash used for interning and table
// probing.
func hashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// ObjFunction is a loaded, garbage-collected function: the compile-time
// FunctionProto plus the constants it references, already materialized
// into Values.
type ObjFunction struct {
	ObjHeader
	Name         string
	Arity        int
	UpvalueCount int
	Chunk        *compiler.Chunk
	Constants    []Value
}

func (*ObjFunction) isValue()         {}
func (*ObjFunction) objType() ObjType { return ObjTypeFunction }

// NativeFn is a Go-implemented function callable from the language. It
// receives its arguments (not including the callee slot) and returns a
// result value or an error that becomes a runtime error.
type NativeFn func(args []Value) (Value, error)

// ObjNative wraps a NativeFn so it can live on the value stack and be
// called like any other callable.
type ObjNative struct {
	ObjHeader
	Name string
	Fn   NativeFn
}

func (*ObjNative) isValue()         {}
func (*ObjNative) objType() ObjType { return ObjTypeNative }

// ObjUpvalue is a reference to a variable captured by a closure. While
// Closed is false it points at a live VM stack slot (Slot); it is "closed"
// by copying that slot's value into closed and redirecting value() to read
// it, exactly when the enclosing scope that owns the slot exits.
type ObjUpvalue struct {
	ObjHeader
	stack  *[]Value
	Slot   int
	Closed bool
	closed Value
	Next   *ObjUpvalue // next entry in the VM's open-upvalue list
}

func (*ObjUpvalue) isValue()         {}
func (*ObjUpvalue) objType() ObjType { return ObjTypeUpvalue }

func (u *ObjUpvalue) value() Value {
	if u.Closed {
		return u.closed
	}
	return (*u.stack)[u.Slot]
}

func (u *ObjUpvalue) set(v Value) {
	if u.Closed {
		u.closed = v
	} else {
		(*u.stack)[u.Slot] = v
	}
}

func (u *ObjUpvalue) close() {
	u.closed = (*u.stack)[u.Slot]
	u.Closed = true
	u.stack = nil
}

// ObjClosure pairs a function with the upvalues it captured at creation
// time.
type ObjClosure struct {
	ObjHeader
	Fn       *ObjFunction
	Upvalues []*ObjUpvalue
}

func (*ObjClosure) isValue()         {}
func (*ObjClosure) objType() ObjType { return ObjTypeClosure }
