package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mna/eclox/lang/compiler"
	"github.com/mna/eclox/lang/machine"
	"github.com/mna/mainer"
)

// Disassemble compiles a source file and prints its bytecode listing. With
// --globals it also runs the program and appends a sorted dump of the
// resulting global variables and interned strings, the compiled-form
// counterpart to "tokenize".
func (c *Cmd) Disassemble(_ context.Context, stdio mainer.Stdio, args []string) error {
	if len(args) != 1 {
		return printError(stdio, errors.New("disassemble: exactly one source file is required"))
	}

	dialect, err := c.dialect()
	if err != nil {
		return printError(stdio, err)
	}

	src, err := os.ReadFile(args[0])
	if err != nil {
		return printError(stdio, err)
	}

	proto, err := compiler.Compile(string(src), dialect)
	if err != nil {
		return printError(stdio, err)
	}

	vm := machine.New(c.vmOptions(stdio.Stdout)...)
	if !c.Globals {
		fn := vm.LoadForDisassembly(proto)
		machine.Disassemble(fn, stdio.Stdout)
		return nil
	}

	// --globals needs the program to actually run so the globals table and
	// the intern table are populated before dumping them.
	fn := vm.LoadForDisassembly(proto)
	machine.Disassemble(fn, stdio.Stdout)
	if err := vm.Interpret(string(src), dialect); err != nil {
		return printError(stdio, err)
	}

	fmt.Fprintln(stdio.Stdout, "\n== globals ==")
	machine.DumpGlobals(vm, stdio.Stdout)
	fmt.Fprintln(stdio.Stdout, "\n== strings ==")
	machine.DumpStrings(vm, stdio.Stdout)
	return nil
}
