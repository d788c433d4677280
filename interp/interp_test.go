package interp_test

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/jibjab-lang/jj/diag"
	"github.com/jibjab-lang/jj/interp"
	"github.com/jibjab-lang/jj/langdef"
	"github.com/jibjab-lang/jj/lexer"
	"github.com/jibjab-lang/jj/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, src string) (string, error) {
	t.Helper()
	ld := langdef.Default()
	toks, err := lexer.Lex(src, "test.jj", ld)
	require.NoError(t, err)
	prog, err := parser.Parse(toks, ld, "test.jj")
	require.NoError(t, err)

	it := interp.New("test.jj")
	var out bytes.Buffer
	it.Out = &out
	runErr := it.Run(prog)
	return out.String(), runErr
}

func runOK(t *testing.T, src string) string {
	t.Helper()
	out, err := run(t, src)
	require.NoError(t, err)
	return out
}

func runtimeKind(t *testing.T, err error) diag.Kind {
	t.Helper()
	require.Error(t, err)
	var re *interp.RuntimeError
	require.ErrorAs(t, err, &re)
	return re.Kind
}

func TestRun_PrintStringLiteral(t *testing.T) {
	out := runOK(t, `~>frob{a1}::emit("hello\n")`)
	assert.Equal(t, "hello\n", out)
}

func TestRun_PrintAppendsNewline(t *testing.T) {
	out := runOK(t, `~>frob{a1}::emit("hello")`)
	assert.Equal(t, "hello\n", out)
}

func TestRun_IntAddition(t *testing.T) {
	src := "~>snag{x}::val(#2)\n~>snag{y}::val(#3)\n~>frob{o}::emit(x <+> y)"
	assert.Equal(t, "5\n", runOK(t, src))
}

func TestRun_RangeLoop(t *testing.T) {
	src := "<~loop{i:#0..#3}>>\n~>frob{o}::emit(i)\n<~>>"
	assert.Equal(t, "0\n1\n2\n", runOK(t, src))
}

func TestRun_WhenElse(t *testing.T) {
	src := `~>snag{x}::val(#1)
~>snag{y}::val(#2)
<~when{x <lt> y}>>
~>frob{o}::emit("then-branch")
<~else>>
~>frob{o}::emit("else-branch")
<~>>`
	assert.Equal(t, "then-branch\n", runOK(t, src))

	flipped := strings.Replace(src, "val(#1)", "val(#9)", 1)
	assert.Equal(t, "else-branch\n", runOK(t, flipped))
}

func TestRun_MorphInvoke(t *testing.T) {
	src := "<~morph{add(a, b)}>>\n~>yeet{a <+> b}\n<~>>\n~>frob{o}::emit(~>invoke{add}::with(#10, #20))"
	assert.Equal(t, "30\n", runOK(t, src))
}

func TestRun_EnumCase(t *testing.T) {
	src := "~>enum{Color}::cases(Red, Green, Blue)\n~>snag{c}::val(Color[\"Red\"])\n~>frob{o}::emit(c)"
	assert.Equal(t, "Red\n", runOK(t, src))
}

func TestRun_ReturnUnwindsNestedBlocks(t *testing.T) {
	src := `<~morph{firstOver(limit)}>>
<~loop{i:#0..#100}>>
<~when{i <gt> limit}>>
~>yeet{i}
<~>>
<~>>
~>yeet{#-1}
<~>>
~>frob{o}::emit(~>invoke{firstOver}::with(#5))`
	assert.Equal(t, "6\n", runOK(t, src))
}

func TestRun_ScopeShadowing(t *testing.T) {
	src := `~>snag{x}::val(#1)
<~morph{shadow()}>>
~>snag{x}::val(#99)
~>yeet{x}
<~>>
~>frob{o}::emit(~>invoke{shadow}::with())
~>frob{o}::emit(x)`
	assert.Equal(t, "99\n1\n", runOK(t, src))
}

func TestRun_MissingArgsBecomeNone(t *testing.T) {
	src := "<~morph{show(a, b)}>>\n~>yeet{b}\n<~>>\n~>frob{o}::emit(~>invoke{show}::with(#1))"
	assert.Equal(t, "none\n", runOK(t, src))
}

func TestRun_NumericWidening(t *testing.T) {
	assert.Equal(t, "3.5\n", runOK(t, `~>frob{o}::emit(#1 <+> #2.5)`))
	assert.Equal(t, "3.5\n", runOK(t, `~>frob{o}::emit(#2.5 <+> #1)`))
	assert.Equal(t, "4.0\n", runOK(t, `~>frob{o}::emit(#2.0 <*> #2)`))
}

func TestRun_StringConcatFallback(t *testing.T) {
	assert.Equal(t, "ab\n", runOK(t, `~>frob{o}::emit("a" <+> "b")`))
	assert.Equal(t, "a1\n", runOK(t, `~>frob{o}::emit("a" <+> #1)`))
	assert.Equal(t, "1a\n", runOK(t, `~>frob{o}::emit(#1 <+> "a")`))
}

func TestRun_Interpolation(t *testing.T) {
	src := "~>snag{name}::val(\"Bob\")\n~>frob{o}::emit(\"hi {name}!\")"
	assert.Equal(t, "hi Bob!\n", runOK(t, src))
}

func TestRun_ConditionLoop(t *testing.T) {
	src := `~>snag{x}::val(#0)
<~loop{x <lt> #3}>>
~>frob{o}::emit(x)
~>snag{x}::val(x <+> #1)
<~>>`
	assert.Equal(t, "0\n1\n2\n", runOK(t, src))
}

func TestRun_CollectionLoop(t *testing.T) {
	src := "~>snag{xs}::val([#5, #6, #7])\n<~loop{v:xs}>>\n~>frob{o}::emit(v)\n<~>>"
	assert.Equal(t, "5\n6\n7\n", runOK(t, src))
}

func TestRun_ArrayDictPrint(t *testing.T) {
	assert.Equal(t, "[1, 2, 3]\n", runOK(t, `~>frob{o}::emit([#1, #2, #3])`))
	assert.Equal(t, "{a: 1, b: 2}\n", runOK(t, `~>frob{o}::emit({"a": #1, "b": #2})`))
}

func TestRun_IndexAccess(t *testing.T) {
	src := "~>snag{xs}::val([#10, #20])\n~>frob{o}::emit(xs[#1])"
	assert.Equal(t, "20\n", runOK(t, src))
}

func TestRun_TryOopsCatchesThrow(t *testing.T) {
	src := `<~try>>
~>kaboom{"boom"}
~>frob{o}::emit("unreached")
<~oops>> e
~>frob{o}::emit(e)
<~>>`
	assert.Equal(t, "boom\n", runOK(t, src))
}

func TestRun_TryCatchesThrowFromCalledFunction(t *testing.T) {
	src := `<~morph{blow()}>>
~>kaboom{"inner"}
<~>>
<~try>>
~>snag{x}::val(~>invoke{blow}::with())
<~oops>> e
~>frob{o}::emit(e)
<~>>`
	assert.Equal(t, "inner\n", runOK(t, src))
}

func TestRun_UncaughtThrow(t *testing.T) {
	_, err := run(t, `~>kaboom{"bad"}`)
	assert.Equal(t, diag.KindUncaughtThrow, runtimeKind(t, err))
}

func TestRun_UndefinedVariable(t *testing.T) {
	_, err := run(t, `~>frob{o}::emit(nope)`)
	assert.Equal(t, diag.KindUndefinedVariable, runtimeKind(t, err))
}

func TestRun_UndefinedFunction(t *testing.T) {
	_, err := run(t, `~>frob{o}::emit(~>invoke{nope}::with())`)
	assert.Equal(t, diag.KindUndefinedFunction, runtimeKind(t, err))
}

func TestRun_IndexOutOfBounds(t *testing.T) {
	_, err := run(t, "~>snag{xs}::val([#1])\n~>frob{o}::emit(xs[#5])")
	assert.Equal(t, diag.KindIndexOutOfBounds, runtimeKind(t, err))
}

func TestRun_IntegerDivisionByZero(t *testing.T) {
	_, err := run(t, `~>frob{o}::emit(#1 </> #0)`)
	assert.Equal(t, diag.KindDivisionByZero, runtimeKind(t, err))
}

func TestRun_LoopGovernor(t *testing.T) {
	ld := langdef.Default()
	toks, err := lexer.Lex("<~loop{true}>>\n~>snag{x}::val(#1)\n<~>>", "test.jj", ld)
	require.NoError(t, err)
	prog, err := parser.Parse(toks, ld, "test.jj")
	require.NoError(t, err)

	it := interp.New("test.jj")
	it.Out = &bytes.Buffer{}
	it.MaxLoopIters = 100
	runErr := it.Run(prog)
	assert.Equal(t, diag.KindLoopLimitExceeded, runtimeKind(t, runErr))
}

func TestRun_Input(t *testing.T) {
	ld := langdef.Default()
	toks, err := lexer.Lex("~>snag{name}::val(input::grab(\"who? \"))\n~>frob{o}::emit(name)", "test.jj", ld)
	require.NoError(t, err)
	prog, err := parser.Parse(toks, ld, "test.jj")
	require.NoError(t, err)

	it := interp.New("test.jj")
	var out bytes.Buffer
	it.Out = &out
	it.In = bufio.NewReader(strings.NewReader("Ada\n"))
	require.NoError(t, it.Run(prog))
	assert.Equal(t, "who? Ada\n", out.String())
}

func TestRun_Determinism(t *testing.T) {
	src := `~>snag{total}::val(#0)
<~loop{i:#1..#6}>>
~>snag{total}::val(total <+> i)
<~>>
~>frob{o}::emit(total)`
	first := runOK(t, src)
	second := runOK(t, src)
	assert.Equal(t, first, second)
	assert.Equal(t, "15\n", first)
}

func TestRun_ShortCircuit(t *testing.T) {
	// the right operand would blow up if evaluated
	src := "~>snag{xs}::val([#1])\n~>frob{o}::emit(false <&&> xs[#9])"
	assert.Equal(t, "false\n", runOK(t, src))

	src2 := "~>snag{xs}::val([#1])\n~>frob{o}::emit(true <||> xs[#9])"
	assert.Equal(t, "true\n", runOK(t, src2))
}

func TestRun_EqualityRules(t *testing.T) {
	assert.Equal(t, "false\n", runOK(t, `~>frob{o}::emit(#1 <=> #1.0)`))
	assert.Equal(t, "true\n", runOK(t, `~>frob{o}::emit(nil <=> nil)`))
	assert.Equal(t, "true\n", runOK(t, `~>frob{o}::emit(#3 <=> #3)`))
	assert.Equal(t, "true\n", runOK(t, `~>frob{o}::emit("a" <!=> "b")`))
}
