package machine

import (
	"fmt"
	"time"

	"github.com/dolthub/swiss"
	"golang.org/x/exp/slices"
)

// nativeRegistry is a convenience atop the VM's globals table: a swiss.Map
// lets the REPL banner and debug listings name the registered natives
// without walking the (tombstone-bearing) globals table. It plays no part
// in the language's own variable semantics, which always go through
// globals.
type nativeRegistry struct {
	names *swiss.Map[string, NativeFn]
}

func newNativeRegistry() *nativeRegistry {
	return &nativeRegistry{names: swiss.NewMap[string, NativeFn](8)}
}

// Names returns every registered native function's name, sorted.
func (r *nativeRegistry) Names() []string {
	names := make([]string, 0, r.names.Count())
	r.names.Iter(func(name string, _ NativeFn) bool {
		names = append(names, name)
		return false
	})
	slices.Sort(names)
	return names
}

// defineNatives wires every native function into the VM's globals table
// before any program runs, so source code can call them by bare name.
func defineNatives(vm *VM) {
	reg := newNativeRegistry()
	define := func(name string, fn NativeFn) {
		reg.names.Put(name, fn)
		vm.defineNative(name, fn)
	}

	define("clock", clockNative)
	define("str", vm.strNative)
	define("len", lenNative)

	vm.natives = reg
}

func (vm *VM) defineNative(name string, fn NativeFn) {
	// the name string rides the stack while the native allocates, so a
	// collection between the two cannot evict it from the intern table
	str := vm.internString(name)
	vm.push(str)
	native := &ObjNative{Name: name, Fn: fn}
	vm.gc.track(native)
	vm.push(native)
	vm.globals.Set(str, native)
	vm.pop()
	vm.pop()
}

// clockNative returns the number of seconds since the process started,
// mostly useful for timing benchmark loops.
func clockNative(_ []Value) (Value, error) {
	return Number(time.Since(processStart).Seconds()), nil
}

var processStart = time.Now()

// strNative converts any value to its printed representation as a string;
// the language has no dedicated conversion operator.
func (vm *VM) strNative(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("str() takes exactly one argument")
	}
	return vm.internString(Print(args[0])), nil
}

// lenNative returns a string's length in bytes.
func lenNative(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("len() takes exactly one argument")
	}
	s, ok := args[0].(*ObjString)
	if !ok {
		return nil, fmt.Errorf("len() expects a string, got %s", TypeName(args[0]))
	}
	return Number(len(s.Chars)), nil
}
