package maincmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/mna/eclox/lang/machine"
	"github.com/mna/mainer"
)

// Repl runs a read-eval-print loop over stdio, sharing a single VM across
// lines so that globals and function definitions persist from one line to
// the next.
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, _ []string) error {
	dialect, err := c.dialect()
	if err != nil {
		return printError(stdio, err)
	}

	vm := machine.New(c.vmOptions(stdio.Stdout)...)
	fmt.Fprintf(stdio.Stdout, "%s (dialect: %s, natives: %s)\n",
		binName, dialect.Name, strings.Join(vm.NativeNames(), ", "))
	scanner := bufio.NewScanner(stdio.Stdin)

	for {
		fmt.Fprint(stdio.Stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := vm.Interpret(line, dialect); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
	return scanner.Err()
}
