package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/eclox/internal/config"
	"github.com/mna/mainer"
)

const binName = "eclox"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] [<command>] [<path>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] [<path>]
       %[1]s [<option>...] <command> <path>
       %[1]s -h|--help
       %[1]s -v|--version

A tree-walking-free, bytecode-compiled interpreter for a small Lox-family
scripting language.

With no command and no path, starts an interactive REPL. With a single
path and no command, compiles and runs that file.

The <command> can be one of:
       run                       Compile and run a source file (the
                                 default when a bare path is given).
       repl                      Start the interactive REPL (the default
                                 when no arguments are given).
       tokenize                  Run only the scanner phase and print the
                                 resulting tokens.
       disassemble               Compile a file and print its bytecode
                                 listing without running it.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --dialect <name>          Keyword dialect to scan with: "lox"
                                 (default) or "natural".
       --gc-stress               Run a full garbage collection before
                                 every single allocation; for exercising
                                 GC bugs, not production use.
       --globals                 With "disassemble", run the program first
                                 and also list its final global variables
                                 and interned strings.

More information on the %[1]s repository:
       https://github.com/mna/eclox
`, binName)
)

// Cmd is the eclox command-line entry point, dispatched through
// buildCmds' reflection-based lookup: exported methods with the
// (ctx, stdio, args) error signature become subcommands named after the
// lowercased method.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	Dialect  string `flag:"dialect"`
	GCStress bool   `flag:"gc-stress"`
	Globals  bool   `flag:"globals"`

	GCHeapGrowFactor   int
	GCInitialThreshold int64

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string) { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) { c.flags = flags }

// Validate picks the subcommand to run, defaulting to "repl" with no
// arguments or "run" with exactly one bare path.
func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	commands := buildCmds(c)

	switch len(c.args) {
	case 0:
		c.cmdFn = commands["repl"]
		return nil
	case 1:
		if fn, ok := commands[c.args[0]]; ok {
			// a known subcommand name with no path argument, e.g. bare "repl"
			if c.args[0] == "repl" {
				c.args = nil
				c.cmdFn = fn
				return nil
			}
			return fmt.Errorf("%s: a source file path is required", c.args[0])
		}
		c.cmdFn = commands["run"]
		return nil
	}

	cmdName := c.args[0]
	fn, ok := commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s", cmdName)
	}
	c.cmdFn = fn
	c.args = c.args[1:]
	return nil
}

func printError(stdio mainer.Stdio, err error) error {
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
	}
	return err
}

// Main parses flags, resolves the subcommand and runs it, translating a
// compile or runtime failure into the matching process exit code: 65 for a
// compile error, 70 for a runtime error, 64 for bad CLI usage.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	if cfg, err := config.Load(); err == nil {
		c.Dialect = cfg.Dialect
		c.GCStress = cfg.GCStress
		c.GCHeapGrowFactor = cfg.GCHeapGrowFactor
		c.GCInitialThreshold = cfg.GCInitialThreshold
	}

	p := mainer.Parser{
		EnvVars:   true,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.ExitCode(64)
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success

	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	if c.cmdFn == nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", errors.New("no command resolved"))
		return mainer.Failure
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args); err != nil {
		var exitErr exitError
		if errors.As(err, &exitErr) {
			return mainer.ExitCode(exitErr.code)
		}
		return mainer.Failure
	}
	return mainer.Success
}

// valid commands are those that take a mainer.Stdio and a slice of strings
// as input, and return an error as output.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		// must take 4 parameters (including receiver) and return 1
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}

		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
