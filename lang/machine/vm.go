package machine

import (
	"fmt"
	"io"
	"os"

	"github.com/mna/eclox/lang/compiler"
	"github.com/mna/eclox/lang/token"
)

// StackMax is the total number of value-stack slots available across all
// active call frames.
const StackMax = compiler.FramesMax * compiler.MaxLocals

// CallFrame is one active function invocation: the closure being run, the
// instruction pointer into its chunk, and the base offset into the shared
// value stack where its locals begin. Slot base+0 holds the callee itself,
// base+1.. hold arguments and locals.
type CallFrame struct {
	closure *ObjClosure
	ip      int
	base    int
}

// RuntimeError is returned by Interpret when the VM aborts execution on a
// dynamic-type or other runtime fault. Trace holds one formatted
// "[line L] in <fn>" entry per active call frame, innermost first.
type RuntimeError struct {
	Message string
	Trace   []string
}

func (e *RuntimeError) Error() string {
	s := e.Message
	for _, t := range e.Trace {
		s += "\n" + t
	}
	return s
}

// VM is a single-threaded bytecode interpreter. It owns the value stack,
// the call-frame stack, the globals table, the string intern table and the
// GC bookkeeping. A VM is not safe for concurrent use; one Interpret call
// runs to completion before the next may start.
type VM struct {
	frames     []CallFrame
	frameCount int

	stack    []Value
	stackTop int

	globals table
	strings table

	openUpvalues *ObjUpvalue

	gc      *gc
	natives *nativeRegistry

	stdout io.Writer
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithStdout redirects the VM's print statements; defaults to os.Stdout.
func WithStdout(w io.Writer) Option { return func(vm *VM) { vm.stdout = w } }

// WithStressGC forces a full collection before every single allocation,
// a testing knob that makes collection-timing bugs deterministic.
func WithStressGC(stress bool) Option {
	return func(vm *VM) { vm.gc.stressGC = stress }
}

// WithGCHeapGrowFactor overrides the multiplier applied to bytesAllocated
// to compute the next collection threshold (ECLOX_GC_GROW_FACTOR).
func WithGCHeapGrowFactor(factor int) Option {
	return func(vm *VM) {
		if factor > 0 {
			vm.gc.growFactor = int64(factor)
		}
	}
}

// WithGCInitialThreshold overrides the byte count that must accumulate
// before the first collection can run (ECLOX_GC_INITIAL_THRESHOLD).
func WithGCInitialThreshold(bytes int64) Option {
	return func(vm *VM) {
		if bytes > 0 {
			vm.gc.nextGC = bytes
		}
	}
}

// NativeNames returns the sorted names of the native functions registered
// in this VM, for the REPL banner and debug listings.
func (vm *VM) NativeNames() []string { return vm.natives.Names() }

// New creates an empty VM with its globals populated by the native
// function set.
func New(opts ...Option) *VM {
	vm := &VM{
		frames: make([]CallFrame, compiler.FramesMax),
		stack:  make([]Value, StackMax),
		stdout: os.Stdout,
	}
	vm.gc = newGC(vm)
	for _, o := range opts {
		o(vm)
	}
	defineNatives(vm)
	return vm
}

func (vm *VM) push(v Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value { return vm.stack[vm.stackTop-1-distance] }

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// internString returns the canonical interned *ObjString for s, allocating
// and registering a new one only if s hasn't been seen before. Two values
// produced by internString compare equal iff their contents do, which is
// what lets OP_EQUAL compare strings by reference.
func (vm *VM) internString(s string) *ObjString {
	hash := hashString(s)
	if existing := vm.strings.findString(s, hash); existing != nil {
		return existing
	}
	str := &ObjString{Chars: s, Hash: hash}
	vm.gc.track(str)
	vm.strings.Set(str, Bool(true))
	return str
}

// Interpret compiles and runs source in dialect, the single entry point of
// the language. It returns the accumulated compile errors for a compile
// failure, a *RuntimeError for a runtime fault, or nil on success.
func (vm *VM) Interpret(source string, dialect token.Dialect) error {
	proto, err := compiler.Compile(source, dialect)
	if err != nil {
		return err
	}

	fn := vm.loadFunction(proto)
	// keep fn rooted while the closure wrapping it is allocated
	vm.push(fn)
	closure := vm.newClosure(fn)
	vm.pop()
	vm.push(closure)
	if err := vm.callValue(closure, 0); err != nil {
		return err
	}

	return vm.run()
}

// LoadForDisassembly materializes proto into an *ObjFunction without
// running it, for the "disassemble" debug command.
func (vm *VM) LoadForDisassembly(proto *compiler.FunctionProto) *ObjFunction {
	return vm.loadFunction(proto)
}

// loadFunction materializes a compile-time FunctionProto into a
// garbage-collected *ObjFunction, interning every string constant and
// converting numbers in place. This is the one bridge point between the
// compiler's untyped constant pool and the VM's Value representation (see
// lang/compiler/chunk.go). The function stays pushed on the value stack
// while its constants are interned so a collection triggered mid-load
// cannot evict the constants already materialized.
func (vm *VM) loadFunction(proto *compiler.FunctionProto) *ObjFunction {
	fn := &ObjFunction{
		Name:         proto.Name,
		Arity:        proto.Arity,
		UpvalueCount: proto.UpvalueCount,
		Chunk:        &proto.Chunk,
		Constants:    make([]Value, len(proto.Chunk.Constants)),
	}
	vm.gc.track(fn)
	vm.push(fn)
	for i, c := range proto.Chunk.Constants {
		switch c := c.(type) {
		case float64:
			fn.Constants[i] = Number(c)
		case string:
			fn.Constants[i] = vm.internString(c)
		case *compiler.FunctionProto:
			fn.Constants[i] = vm.loadFunction(c)
		default:
			panic(fmt.Sprintf("unsupported constant type %T", c))
		}
	}
	vm.pop()
	return fn
}

func (vm *VM) newClosure(fn *ObjFunction) *ObjClosure {
	c := &ObjClosure{Fn: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
	vm.gc.track(c)
	return c
}

func (vm *VM) concatenate(a, b *ObjString) *ObjString {
	return vm.internString(a.Chars + b.Chars)
}

// runtimeError builds a *RuntimeError carrying the current call stack's
// backtrace, then resets the VM so a REPL can keep accepting input after a
// runtime fault.
func (vm *VM) runtimeError(format string, args ...any) *RuntimeError {
	msg := fmt.Sprintf(format, args...)
	e := &RuntimeError{Message: fmt.Sprintf("[line %d] %s", vm.currentLine(), msg)}

	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.closure.Fn
		line := 0
		if frame.ip-1 < len(fn.Chunk.Lines) && frame.ip-1 >= 0 {
			line = fn.Chunk.Lines[frame.ip-1]
		}
		name := fn.Name
		if name == "" {
			name = "script"
		} else {
			name += "()"
		}
		e.Trace = append(e.Trace, fmt.Sprintf("[line %d] in %s", line, name))
	}

	vm.resetStack()
	return e
}

func (vm *VM) currentLine() int {
	if vm.frameCount == 0 {
		return 0
	}
	frame := &vm.frames[vm.frameCount-1]
	fn := frame.closure.Fn
	if frame.ip-1 < len(fn.Chunk.Lines) && frame.ip-1 >= 0 {
		return fn.Chunk.Lines[frame.ip-1]
	}
	return 0
}
