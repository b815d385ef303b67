package machine

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mna/eclox/lang/token"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, src string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	vm := New(WithStdout(&out))
	err := vm.Interpret(src, token.Canonical)
	return out.String(), err
}

func TestArithmeticAndPrint(t *testing.T) {
	out, err := run(t, `print 1 + 2 * 3;`)
	require.NoError(t, err)
	require.Equal(t, "7\n", out)
}

func TestStringConcatenationInterns(t *testing.T) {
	out, err := run(t, `print "foo" + "bar";`)
	require.NoError(t, err)
	require.Equal(t, "foobar\n", out)
}

func TestGlobalVariables(t *testing.T) {
	out, err := run(t, `var x = 10; x = x + 5; print x;`)
	require.NoError(t, err)
	require.Equal(t, "15\n", out)
}

func TestIfElse(t *testing.T) {
	out, err := run(t, `if (1 < 2) { print "yes"; } else { print "no"; }`)
	require.NoError(t, err)
	require.Equal(t, "yes\n", out)
}

func TestWhileLoop(t *testing.T) {
	out, err := run(t, `
var i = 0;
var sum = 0;
while (i < 5) {
  sum = sum + i;
  i = i + 1;
}
print sum;
`)
	require.NoError(t, err)
	require.Equal(t, "10\n", out)
}

func TestForLoop(t *testing.T) {
	out, err := run(t, `
var sum = 0;
for (var i = 0; i < 5; i = i + 1) {
  sum = sum + i;
}
print sum;
`)
	require.NoError(t, err)
	require.Equal(t, "10\n", out)
}

func TestFunctionCallAndReturn(t *testing.T) {
	out, err := run(t, `
fun add(a, b) { return a + b; }
print add(2, 3);
`)
	require.NoError(t, err)
	require.Equal(t, "5\n", out)
}

func TestClosureCapturesUpvalue(t *testing.T) {
	out, err := run(t, `
fun makeCounter() {
  var count = 0;
  fun increment() {
    count = count + 1;
    return count;
  }
  return increment;
}
var counter = makeCounter();
print counter();
print counter();
print counter();
`)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestRecursion(t *testing.T) {
	out, err := run(t, `
fun fib(n) {
  if (n < 2) { return n; }
  return fib(n - 1) + fib(n - 2);
}
print fib(10);
`)
	require.NoError(t, err)
	require.Equal(t, "55\n", out)
}

func TestRuntimeErrorOnUndefinedVariable(t *testing.T) {
	_, err := run(t, `print nope;`)
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	require.True(t, strings.Contains(rerr.Error(), "undefined variable"))
}

func TestRuntimeErrorOnTypeMismatch(t *testing.T) {
	_, err := run(t, `print 1 + "a";`)
	require.Error(t, err)
}

func TestClockNativeIsCallable(t *testing.T) {
	out, err := run(t, `print clock() >= 0;`)
	require.NoError(t, err)
	require.Equal(t, "true\n", out)
}

func TestNaturalDialectProgram(t *testing.T) {
	var out bytes.Buffer
	vm := New(WithStdout(&out))
	err := vm.Interpret(`store x is 1; say x;`, token.Natural)
	require.NoError(t, err)
	require.Equal(t, "1\n", out.String())
}

func TestClosureCapturesParameter(t *testing.T) {
	out, err := run(t, `
fun make(x) {
  fun inner() { return x; }
  return inner;
}
var f = make(42);
print f();
`)
	require.NoError(t, err)
	require.Equal(t, "42\n", out)
}

func TestForLoopBuildsString(t *testing.T) {
	out, err := run(t, `
var s = "";
for (var i = 0; i < 3; i = i + 1) s = s + "x";
print s;
`)
	require.NoError(t, err)
	require.Equal(t, "xxx\n", out)
}

func TestInfiniteRecursionOverflowsCallStack(t *testing.T) {
	_, err := run(t, `fun f() { return f(); } f();`)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	require.Contains(t, rerr.Message, "stack overflow")
	require.Len(t, rerr.Trace, 64)
}

func TestNativesRemainCallableUnderStressGC(t *testing.T) {
	var out bytes.Buffer
	vm := New(WithStdout(&out), WithStressGC(true))
	err := vm.Interpret(`print clock() >= 0;`, token.Canonical)
	require.NoError(t, err)
	require.Equal(t, "true\n", out.String())
}

func TestStringEqualityUsesInterning(t *testing.T) {
	out, err := run(t, `print ("foo" + "bar") == "foobar";`)
	require.NoError(t, err)
	require.Equal(t, "true\n", out)
}

func TestGCStressDoesNotCorruptState(t *testing.T) {
	var out bytes.Buffer
	vm := New(WithStdout(&out), WithStressGC(true))
	err := vm.Interpret(`
fun make(n) {
  var s = "x";
  fun get() { return s; }
  return get;
}
print make(1)();
`, token.Canonical)
	require.NoError(t, err)
	require.Equal(t, "x\n", out.String())
}

func TestStressGCMatchesUnstressedOutput(t *testing.T) {
	src := `
var parts = "";
fun append(s) { parts = parts + s; return parts; }
for (var i = 0; i < 4; i = i + 1) {
  append("ab");
}
print parts;
print parts == "abababab";
`
	var plain, stressed bytes.Buffer
	require.NoError(t, New(WithStdout(&plain)).Interpret(src, token.Canonical))
	require.NoError(t, New(WithStdout(&stressed), WithStressGC(true)).Interpret(src, token.Canonical))
	require.Equal(t, plain.String(), stressed.String())
	require.Equal(t, "abababab\ntrue\n", plain.String())
}

func TestCollectSweepsUnreachableObjectsAndEvictsStrings(t *testing.T) {
	vm := New()
	live := vm.internString("live")
	vm.push(live)
	dead := vm.internString("dead")

	vm.gc.collect()

	require.Same(t, live, vm.internString("live"), "rooted string must keep its identity")
	require.NotSame(t, dead, vm.internString("dead"), "collected string must have been evicted from the intern table")
}
