package maincmd

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/eclox/internal/filetest"
	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"
)

var testUpdateTokenizeTests = flag.Bool("test.update-tokenize-tests", false, "If set, replace expected tokenize test results with actual results.")

// TestTokenize exercises the "tokenize" debug command end to end, diffing
// its stdout/stderr against golden files (internal/filetest), covering
// both a clean scan and one that reports a scanner error without stopping
// early.
func TestTokenize(t *testing.T) {
	ctx := context.Background()
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".lox") {
		t.Run(fi.Name(), func(t *testing.T) {
			var buf, ebuf bytes.Buffer
			stdio := mainer.Stdio{Stdout: &buf, Stderr: &ebuf}
			c := &Cmd{}

			_ = c.Tokenize(ctx, stdio, []string{filepath.Join(srcDir, fi.Name())})
			filetest.DiffOutput(t, fi, buf.String(), resultDir, testUpdateTokenizeTests)
			filetest.DiffErrors(t, fi, ebuf.String(), resultDir, testUpdateTokenizeTests)
		})
	}
}

// TestDisassembleListsInstructions checks the "disassemble" debug
// command's output shape without pinning its exact column layout in a
// golden file: the instruction trace format is worth exercising, just not
// byte-for-byte.
func TestDisassembleListsInstructions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.lox")
	require.NoError(t, writeFile(path, "var x = 1;\nprint x + 2;\n"))

	var buf, ebuf bytes.Buffer
	stdio := mainer.Stdio{Stdout: &buf, Stderr: &ebuf}
	c := &Cmd{}

	err := c.Disassemble(context.Background(), stdio, []string{path})
	require.NoError(t, err)
	require.Empty(t, ebuf.String())

	out := buf.String()
	require.Contains(t, out, "== <script> ==")
	require.Contains(t, out, "OP_CONSTANT")
	require.Contains(t, out, "OP_DEFINE_GLOBAL")
	require.Contains(t, out, "OP_GET_GLOBAL")
	require.Contains(t, out, "OP_ADD")
	require.Contains(t, out, "OP_PRINT")
	require.Contains(t, out, "OP_RETURN")
}

// TestDisassembleGlobalsRunsAndDumpsState checks that --globals actually
// executes the program before listing its globals and interned strings,
// and that the listing is sorted rather than in map iteration order.
func TestDisassembleGlobalsRunsAndDumpsState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.lox")
	require.NoError(t, writeFile(path, `var b = 2; var a = 1; print a + b;`))

	var buf, ebuf bytes.Buffer
	stdio := mainer.Stdio{Stdout: &buf, Stderr: &ebuf}
	c := &Cmd{Globals: true}

	err := c.Disassemble(context.Background(), stdio, []string{path})
	require.NoError(t, err)
	require.Empty(t, ebuf.String())

	out := buf.String()
	require.Contains(t, out, "3\n") // the program's own print output
	require.Contains(t, out, "== globals ==")
	require.Contains(t, out, "a = 1")
	require.Contains(t, out, "b = 2")
	require.Contains(t, out, "== strings ==")

	aIdx, bIdx := strings.Index(out, "a = 1"), strings.Index(out, "b = 2")
	require.Less(t, aIdx, bIdx, "globals must be sorted alphabetically")
}

func TestRunExecutesFileAndReportsExitCodes(t *testing.T) {
	dir := t.TempDir()

	okPath := filepath.Join(dir, "ok.lox")
	require.NoError(t, writeFile(okPath, `print "hi";`))

	var buf bytes.Buffer
	c := &Cmd{}
	err := c.Run(context.Background(), mainer.Stdio{Stdout: &buf, Stderr: &bytes.Buffer{}}, []string{okPath})
	require.NoError(t, err)
	require.Equal(t, "hi\n", buf.String())

	compileErrPath := filepath.Join(dir, "bad_compile.lox")
	require.NoError(t, writeFile(compileErrPath, `print ;`))
	err = c.Run(context.Background(), mainer.Stdio{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}, []string{compileErrPath})
	require.Error(t, err)
	var exitErr exitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, exitCompileError, exitErr.code)

	runtimeErrPath := filepath.Join(dir, "bad_runtime.lox")
	require.NoError(t, writeFile(runtimeErrPath, `print undefinedVar;`))
	err = c.Run(context.Background(), mainer.Stdio{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}, []string{runtimeErrPath})
	require.Error(t, err)
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, exitRuntimeError, exitErr.code)
}

func TestReplEvaluatesEachLineAgainstASharedVM(t *testing.T) {
	var out, errOut bytes.Buffer
	in := bytes.NewBufferString("var x = 1;\nprint x + 1;\n")
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut, Stdin: in}

	c := &Cmd{}
	require.NoError(t, c.Repl(context.Background(), stdio, nil))
	require.Contains(t, out.String(), "2\n")
	require.Empty(t, errOut.String())
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
