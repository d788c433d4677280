package native

import "github.com/jibjab-lang/jj/diag"

// diagError aliases diag.Error so it can be embedded below under a
// field name other than "Error" — embedding it directly would name the
// field "Error", which shadows the promoted Error() method and breaks
// the error interface.
type diagError = diag.Error

// CompileError is the native backend's failure type: a construct the
// interpreter handles but the ARM64 backend does not (try/oops,
// collection/condition loops, non-integer nested indices, ...), or a
// print expression shape it cannot classify.
type CompileError struct {
	*diagError
}

func newUnsupported(pos diag.Position, what string) *CompileError {
	return &CompileError{diag.New(pos, diag.KindUnsupportedConstruct, "unsupported construct: "+what)}
}

func newUnsupportedPrint(pos diag.Position, what string) *CompileError {
	return &CompileError{diag.New(pos, diag.KindUnsupportedPrintExpr, "unsupported print expression: "+what)}
}
