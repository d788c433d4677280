package diag_test

import (
	"testing"

	"github.com/jibjab-lang/jj/diag"
	"github.com/stretchr/testify/assert"
)

func TestPositionString(t *testing.T) {
	p := diag.Position{Filename: "prog.jj", Line: 3, Column: 7}
	assert.Equal(t, "prog.jj:3:7", p.String())

	anon := diag.Position{Line: 1, Column: 1}
	assert.Equal(t, "1:1", anon.String())
}

func TestErrorFormatting(t *testing.T) {
	err := diag.New(diag.Position{Filename: "prog.jj", Line: 2, Column: 5},
		diag.KindUnexpectedToken, "expected IDENT, got NUMBER")
	assert.Equal(t, "prog.jj:2:5: unexpected token: expected IDENT, got NUMBER", err.Error())
}

func TestErrorWithContext(t *testing.T) {
	err := diag.NewWithContext(diag.Position{Line: 1, Column: 1},
		diag.KindUnterminatedString, "unterminated string literal", `"oops`)
	assert.Contains(t, err.Error(), "unterminated string")
	assert.Contains(t, err.Error(), `"oops`)
}

func TestKindNames(t *testing.T) {
	assert.Equal(t, "division by zero", diag.KindDivisionByZero.String())
	assert.Equal(t, "unsupported construct", diag.KindUnsupportedConstruct.String())
	assert.Equal(t, "uncaught throw", diag.KindUncaughtThrow.String())
}

func TestList(t *testing.T) {
	var list diag.List
	assert.False(t, list.HasErrors())

	list.Add(diag.New(diag.Position{Line: 1, Column: 1}, diag.KindUndefinedVariable, "undefined variable: x"))
	list.Add(diag.New(diag.Position{Line: 2, Column: 1}, diag.KindUndefinedFunction, "undefined function: f"))

	assert.True(t, list.HasErrors())
	assert.Contains(t, list.Error(), "undefined variable: x")
	assert.Contains(t, list.Error(), "undefined function: f")
}
