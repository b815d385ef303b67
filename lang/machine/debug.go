package machine

import (
	"fmt"
	"io"

	"github.com/mna/eclox/lang/compiler"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Disassemble writes a human-readable listing of every instruction in fn's
// chunk (including nested function prototypes it constructs, recursively)
// to w: byte offset, source line (or | when unchanged from the previous
// instruction), opcode name, decoded operand.
func Disassemble(fn *ObjFunction, w io.Writer) {
	name := fn.Name
	if name == "" {
		name = "<script>"
	}
	fmt.Fprintf(w, "== %s ==\n", name)

	offset := 0
	for offset < len(fn.Chunk.Code) {
		offset = disassembleInstruction(fn, w, offset)
	}

	for _, c := range fn.Constants {
		if nested, ok := c.(*ObjFunction); ok {
			fmt.Fprintln(w)
			Disassemble(nested, w)
		}
	}
}

// DumpGlobals writes every global variable currently defined in vm, one per
// line as "name = value", sorted alphabetically so the listing is
// reproducible across runs (native Go map iteration order isn't). This
// backs the "disassemble --globals" debug output.
func DumpGlobals(vm *VM, w io.Writer) {
	dumpSorted(vm.globals.Snapshot(), w, func(name string, v Value) string {
		return fmt.Sprintf("%s = %s", name, Print(v))
	})
}

// DumpStrings writes every interned string in vm, one per line, sorted
// alphabetically. This backs the "disassemble --globals" output's intern
// table section, useful for spotting interning bugs (two distinct ObjString
// values for the same content).
func DumpStrings(vm *VM, w io.Writer) {
	dumpSorted(vm.strings.Snapshot(), w, func(name string, _ Value) string {
		return name
	})
}

func dumpSorted(snap map[string]Value, w io.Writer, format func(string, Value) string) {
	names := maps.Keys(snap)
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintln(w, format(name, snap[name]))
	}
}

func disassembleInstruction(fn *ObjFunction, w io.Writer, offset int) int {
	chunk := fn.Chunk
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", chunk.Lines[offset])
	}

	op := compiler.Opcode(chunk.Code[offset])
	switch op {
	case compiler.OP_CONSTANT, compiler.OP_GET_GLOBAL, compiler.OP_DEFINE_GLOBAL,
		compiler.OP_SET_GLOBAL, compiler.OP_CLOSURE:
		return constantInstruction(fn, w, op, offset)
	case compiler.OP_GET_LOCAL, compiler.OP_SET_LOCAL, compiler.OP_GET_UPVALUE,
		compiler.OP_SET_UPVALUE, compiler.OP_CALL:
		return byteInstruction(w, op, chunk, offset)
	case compiler.OP_JUMP, compiler.OP_JUMP_IF_FALSE:
		return jumpInstruction(w, op, 1, chunk, offset)
	case compiler.OP_LOOP:
		return jumpInstruction(w, op, -1, chunk, offset)
	default:
		fmt.Fprintln(w, op)
		return offset + 1
	}
}

func constantInstruction(fn *ObjFunction, w io.Writer, op compiler.Opcode, offset int) int {
	constant := fn.Chunk.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d '%s'\n", op, constant, Print(fn.Constants[constant]))
	next := offset + 2

	if op == compiler.OP_CLOSURE {
		nested, ok := fn.Constants[constant].(*ObjFunction)
		if ok {
			for i := 0; i < nested.UpvalueCount; i++ {
				isLocal := fn.Chunk.Code[next]
				index := fn.Chunk.Code[next+1]
				kind := "upvalue"
				if isLocal != 0 {
					kind = "local"
				}
				fmt.Fprintf(w, "%04d      |                     %s %d\n", next, kind, index)
				next += 2
			}
		}
	}
	return next
}

func byteInstruction(w io.Writer, op compiler.Opcode, chunk *compiler.Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d\n", op, slot)
	return offset + 2
}

func jumpInstruction(w io.Writer, op compiler.Opcode, sign int, chunk *compiler.Chunk, offset int) int {
	jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	fmt.Fprintf(w, "%-16s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}
