package maincmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mna/eclox/lang/machine"
	"github.com/mna/eclox/lang/scanner"
	"github.com/mna/eclox/lang/token"
	"github.com/mna/mainer"
)

// Tokenize executes only the scanner phase of compilation and prints the
// resulting tokens, one per line.
func (c *Cmd) Tokenize(_ context.Context, stdio mainer.Stdio, args []string) error {
	dialect, err := c.dialect()
	if err != nil {
		return printError(stdio, err)
	}

	for _, path := range args {
		src, err := os.ReadFile(path)
		if err != nil {
			return printError(stdio, err)
		}
		toks, scanErr := scanner.ScanAll(string(src), dialect)
		for _, tv := range toks {
			fmt.Fprintln(stdio.Stdout, tv)
		}
		if scanErr != nil {
			return printError(stdio, scanErr)
		}
	}
	return nil
}

func (c *Cmd) dialect() (token.Dialect, error) {
	if c.Dialect == "" {
		return token.Canonical, nil
	}
	d, ok := token.Dialects[c.Dialect]
	if !ok {
		return token.Dialect{}, fmt.Errorf("unknown dialect: %s", c.Dialect)
	}
	return d, nil
}

// vmOptions builds the machine.Option set a "run" or "repl" invocation
// shares, threading the env-configured GC tunables (internal/config)
// through to the VM alongside the stress flag and output writer.
func (c *Cmd) vmOptions(stdout io.Writer) []machine.Option {
	opts := []machine.Option{machine.WithStdout(stdout), machine.WithStressGC(c.GCStress)}
	if c.GCHeapGrowFactor > 0 {
		opts = append(opts, machine.WithGCHeapGrowFactor(c.GCHeapGrowFactor))
	}
	if c.GCInitialThreshold > 0 {
		opts = append(opts, machine.WithGCInitialThreshold(c.GCInitialThreshold))
	}
	return opts
}
