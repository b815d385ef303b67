package compiler

// UpvalueRef describes how a closure captures one of its upvalues: either
// directly from a local slot of the immediately enclosing function
// (IsLocal true, Index is a local slot) or from an upvalue already captured
// by the enclosing function (IsLocal false, Index is an upvalue index).
// OP_CLOSURE's trailing bytes encode exactly this pair per captured
// upvalue.
type UpvalueRef struct {
	Index   byte
	IsLocal bool
}

// FunctionProto is the compile-time, runtime-agnostic description of a
// compiled function: its arity, its bytecode chunk and the upvalues it
// captures from its enclosing scope. It is created once by the compiler
// and never mutated afterward; lang/machine wraps a FunctionProto in a
// garbage-collected *machine.ObjFunction the first time it is loaded.
type FunctionProto struct {
	Name         string // empty for the top-level script
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Upvalues     []UpvalueRef
}
