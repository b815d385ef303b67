package maincmd

import (
	"context"
	"errors"
	"os"

	"github.com/mna/eclox/lang/machine"
	"github.com/mna/mainer"
)

// exitCompileError and exitRuntimeError are the "run" command's process
// exit codes, distinct from mainer's generic Failure code so scripts
// invoking eclox can tell the two failure classes apart.
const (
	exitCompileError = 65
	exitRuntimeError = 70
)

// Run executes a single source file to completion. A compile error exits
// 65, a runtime error exits 70; both are wrapped in an exitError so Main
// can pick the exit code without re-deriving the failure class.
func (c *Cmd) Run(_ context.Context, stdio mainer.Stdio, args []string) error {
	if len(args) != 1 {
		return printError(stdio, errors.New("run: exactly one source file is required"))
	}

	dialect, err := c.dialect()
	if err != nil {
		return printError(stdio, err)
	}

	src, err := os.ReadFile(args[0])
	if err != nil {
		return printError(stdio, err)
	}

	vm := machine.New(c.vmOptions(stdio.Stdout)...)
	if err := vm.Interpret(string(src), dialect); err != nil {
		printError(stdio, err)
		if _, ok := err.(*machine.RuntimeError); ok {
			return exitError{code: exitRuntimeError, err: err}
		}
		return exitError{code: exitCompileError, err: err}
	}
	return nil
}

// exitError lets a command communicate a specific process exit code back
// through Main without every command having to know about mainer.ExitCode.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }
