package native

import (
	"strings"

	"github.com/jibjab-lang/jj/ast"
	"github.com/jibjab-lang/jj/diag"
)

// compilePrint lowers a print/log statement's expression. Most shapes are
// either fully constant (a literal string, an enum case resolved at
// compile time) or scalar (int/float, decided by isFloatTyped); arrays and
// dicts get their own bracket/brace formatting emitted inline. Anything
// else — string interpolation, a bare tuple, a shape the backend can't
// classify — is a compile error rather than a silent no-op.
func (g *Gen) compilePrint(expr ast.Expr, pos diag.Position) error {
	switch e := expr.(type) {
	case *ast.Literal:
		if e.Kind == ast.LitString {
			return g.emitPrintLiteralString(e.Str)
		}
		return g.emitPrintScalar(expr)
	case *ast.VarRef:
		if caseName, ok := g.enumVars[e.Name]; ok {
			return g.emitPrintLiteralString(caseName)
		}
		if meta, ok := g.containers[e.Name]; ok {
			return g.emitPrintContainerVar(meta, e.Pos)
		}
		return g.emitPrintScalar(expr)
	case *ast.IndexAccess:
		if caseName, ok := g.enumCaseOf(e); ok {
			return g.emitPrintLiteralString(caseName)
		}
		return g.emitPrintScalar(expr)
	case *ast.ArrayLiteral:
		return g.emitPrintArrayLiteral(e)
	case *ast.DictLiteral:
		return g.emitPrintDictLiteral(e)
	case *ast.StringInterpolation:
		return newUnsupportedPrint(e.Pos, "string interpolation has no constant layout in the native backend")
	case *ast.TupleLiteral:
		return newUnsupportedPrint(e.Pos, "tuple literal printed directly rather than through a variable")
	case *ast.BinaryOp, *ast.UnaryOp, *ast.FuncCall:
		return g.emitPrintScalar(expr)
	default:
		return newUnsupportedPrint(pos, "print of this expression shape")
	}
}

// emitPrintScalar classifies expr as float- or int-typed and calls the
// matching runtime print routine.
func (g *Gen) emitPrintScalar(expr ast.Expr) error {
	if g.isFloatTyped(expr) {
		if err := g.compileExprToD0(expr); err != nil {
			return err
		}
		g.recordBranch("_print_float", branchBL, 0)
		return nil
	}
	if err := g.compileExprToX0(expr); err != nil {
		return err
	}
	g.recordBranch("_print_int", branchBL, 0)
	return nil
}

// emitPrintX0NoNewline writes the signed integer in x0 as digits with no
// trailing newline: sign classified and stripped inline, magnitude
// handed to _print_int_digits.
func (g *Gen) emitPrintX0NoNewline() {
	g.emit(encMovReg(9, 0))
	g.emit(encMovz(10, 0, 0))
	nonneg := g.newLabel("pinn")
	g.emit(encCmpReg(9, 31))
	g.recordBranch(nonneg, branchCond, condGE)
	g.emit(encMovz(10, 1, 0))
	g.emit(encSubReg(9, 31, 9))
	g.placeLabel(nonneg)
	g.recordBranch("_print_int_digits", branchBL, 0)
}

// emitPrintIntNoNewline evaluates expr as an int and writes its digits
// without a trailing newline, for use between array/dict separators.
func (g *Gen) emitPrintIntNoNewline(expr ast.Expr) error {
	if err := g.compileExprToX0(expr); err != nil {
		return err
	}
	g.emitPrintX0NoNewline()
	return nil
}

// emitPrintContainerVar prints a variable laid out as contiguous stack
// slots: arrays and tuples with bracket-comma formatting, dicts as
// "{key: value, ...}", loading each element back out of its slot.
func (g *Gen) emitPrintContainerVar(meta containerMeta, pos diag.Position) error {
	switch meta.Kind {
	case containerArray, containerTuple:
		if err := g.emitPrintLiteralStringNoNewline("["); err != nil {
			return err
		}
		for i, slot := range meta.ElemSlots {
			if i > 0 {
				if err := g.emitPrintLiteralStringNoNewline(", "); err != nil {
					return err
				}
			}
			g.emit(encLdurX(0, rFP, slot))
			g.emitPrintX0NoNewline()
		}
		return g.emitPrintLiteralString("]")
	case containerDict:
		if err := g.emitPrintLiteralStringNoNewline("{"); err != nil {
			return err
		}
		for i, slot := range meta.ElemSlots {
			if i > 0 {
				if err := g.emitPrintLiteralStringNoNewline(", "); err != nil {
					return err
				}
			}
			if err := g.emitPrintLiteralStringNoNewline(meta.Keys[i] + ": "); err != nil {
				return err
			}
			g.emit(encLdurX(0, rFP, slot))
			g.emitPrintX0NoNewline()
		}
		return g.emitPrintLiteralString("}")
	default:
		return newUnsupportedPrint(pos, "enum printed as a whole rather than by case")
	}
}

func (g *Gen) emitPrintLiteralStringNoNewline(s string) error {
	off := g.internString(s)
	g.emitLoadDataAddr(9, off)
	g.emitLoadImm(10, int64(len(s)))
	g.emitWriteStdout(9, 10)
	return nil
}

// emitPrintLiteralString writes s terminated by exactly one newline,
// mirroring the interpreter's rule for strings that already end in one.
func (g *Gen) emitPrintLiteralString(s string) error {
	if err := g.emitPrintLiteralStringNoNewline(s); err != nil {
		return err
	}
	if strings.HasSuffix(s, "\n") {
		return nil
	}
	g.emitLoadDataAddr(9, g.newlineOff)
	g.emit(encMovz(10, 1, 0))
	g.emitWriteStdout(9, 10)
	return nil
}

func (g *Gen) emitPrintArrayLiteral(e *ast.ArrayLiteral) error {
	if err := g.emitPrintLiteralStringNoNewline("["); err != nil {
		return err
	}
	for i, el := range e.Elements {
		if i > 0 {
			if err := g.emitPrintLiteralStringNoNewline(", "); err != nil {
				return err
			}
		}
		if g.isFloatTyped(el) {
			return newUnsupportedPrint(e.Pos, "float element inside an array literal print")
		}
		if err := g.emitPrintIntNoNewline(el); err != nil {
			return err
		}
	}
	return g.emitPrintLiteralString("]")
}

func (g *Gen) emitPrintDictLiteral(e *ast.DictLiteral) error {
	if err := g.emitPrintLiteralStringNoNewline("{"); err != nil {
		return err
	}
	for i, p := range e.Pairs {
		if i > 0 {
			if err := g.emitPrintLiteralStringNoNewline(", "); err != nil {
				return err
			}
		}
		lit, ok := p.Key.(*ast.Literal)
		if !ok || lit.Kind != ast.LitString {
			return newUnsupportedPrint(e.Pos, "dict key is not a constant string")
		}
		if err := g.emitPrintLiteralStringNoNewline(lit.Str + ": "); err != nil {
			return err
		}
		if g.isFloatTyped(p.Value) {
			return newUnsupportedPrint(e.Pos, "float value inside a dict literal print")
		}
		if err := g.emitPrintIntNoNewline(p.Value); err != nil {
			return err
		}
	}
	return g.emitPrintLiteralString("}")
}

// emitWriteStdout emits write(1, addrReg, lenReg) via the raw BSD syscall
// write = 0x2000004, svc #0x80. addrReg/lenReg are copied into x1/x2 first
// so callers can pass any scratch register without worrying about x0-x2
// being live.
func (g *Gen) emitWriteStdout(addrReg, lenReg uint32) {
	g.emit(encMovReg(1, addrReg))
	g.emit(encMovReg(2, lenReg))
	g.emit(encMovz(0, 1, 0))
	g.emit(encMovz(16, 4, 0))
	g.emit(encMovk(16, 0x0200, 16))
	g.emit(encSvc(0x80))
}

// emitPrintIntHelper emits the "_print_int" runtime routine: value
// arrives in x0, sign is classified and stripped, digits are produced by
// _print_int_digits, then a trailing newline is written.
func (g *Gen) emitPrintIntHelper() {
	g.placeLabel("_print_int")
	g.emitPrologue()
	g.emit(encMovReg(9, 0))
	g.emit(encMovz(10, 0, 0))
	nonneg := g.newLabel("pinn")
	g.emit(encCmpReg(9, 31))
	g.recordBranch(nonneg, branchCond, condGE)
	g.emit(encMovz(10, 1, 0))
	g.emit(encSubReg(9, 31, 9))
	g.placeLabel(nonneg)
	g.recordBranch("_print_int_digits", branchBL, 0)

	g.emitLoadDataAddr(1, g.newlineOff)
	g.emit(encMovz(9, 1, 0))
	g.emitWriteStdout(1, 9)
	g.emitEpilogue()

	g.emitPrintIntDigitsHelper()
}

// emitPrintIntDigitsHelper emits "_print_int_digits": x9 holds the
// (already non-negative) magnitude, x10 is 1 if a leading '-' is needed.
// It writes the formatted digits (and sign) to stdout with no trailing
// newline, so _print_int and _print_float can share it.
func (g *Gen) emitPrintIntDigitsHelper() {
	g.placeLabel("_print_int_digits")
	g.emit(encSubImm(rSP, rSP, 80))
	g.emit(encMovFromSP(11))
	g.emit(encAddImm(11, 11, 79))
	g.emit(encMovz(12, 0, 0)) // digit count

	digitLabel := g.newLabel("pidig")
	g.placeLabel(digitLabel)
	g.emit(encMovz(13, 10, 0))
	g.emit(encUdivReg(14, 9, 13))
	g.emit(encMsubReg(15, 14, 13, 9)) // remainder = x9 - quotient*10
	g.emit(encAddImm(15, 15, 48))
	g.emit(encSturB(15, 11, 0))
	g.emit(encSubImm(11, 11, 1))
	g.emit(encAddImm(12, 12, 1))
	g.emit(encMovReg(9, 14))
	g.emit(encCmpReg(9, 31))
	g.recordBranch(digitLabel, branchCond, condNE)

	noSign := g.newLabel("pinosign")
	g.emit(encCmpReg(10, 31))
	g.recordBranch(noSign, branchCond, condEQ)
	g.emit(encMovz(15, 45, 0)) // '-'
	g.emit(encSturB(15, 11, 0))
	g.emit(encSubImm(11, 11, 1))
	g.emit(encAddImm(12, 12, 1))
	g.placeLabel(noSign)

	g.emit(encAddImm(11, 11, 1)) // back onto the first written byte
	g.emitWriteStdout(11, 12)
	g.emit(encAddImm(rSP, rSP, 80))
	g.emit(encRet())
}

// emitPrintFloatHelper emits "_print_float": value arrives in d0. The
// sign is printed up front and the operand negated in place; the integer
// part is printed through _print_int_digits; if the fractional remainder
// is exactly zero the routine stops there, otherwise it emits "." and up
// to 16 fractional digits with trailing zeros trimmed.
func (g *Gen) emitPrintFloatHelper() {
	zeroOff := g.internDouble(0.0)
	tenOff := g.internDouble(10.0)

	g.placeLabel("_print_float")
	g.emitPrologue()

	g.emitLoadDataAddr(1, zeroOff)
	g.emit(encLdurD(1, 1, 0))
	g.emit(encFcmpD(0, 1))
	nonneg := g.newLabel("pfnn")
	g.recordBranch(nonneg, branchCond, condGE)
	g.emitPrintLiteralStringNoNewline("-")
	g.emit(encFsubD(0, 1, 0)) // d0 = 0.0 - d0
	g.placeLabel(nonneg)

	g.emit(encFcvtzs(9, 0))   // x9 = truncated integer part
	g.emit(encMovz(10, 0, 0)) // sign already printed
	g.recordBranch("_print_int_digits", branchBL, 0)

	g.emit(encFcvtzs(9, 0)) // _print_int_digits leaves x9 at zero; truncate again
	g.emit(encScvtf(1, 9))
	g.emit(encFsubD(1, 0, 1)) // d1 = fractional remainder in [0, 1)

	g.emitLoadDataAddr(2, zeroOff)
	g.emit(encLdurD(2, 2, 0))
	g.emit(encFcmpD(1, 2))
	end := g.newLabel("pfend")
	g.recordBranch(end, branchCond, condEQ)

	g.emitPrintLiteralStringNoNewline(".")

	g.emit(encSubImm(rSP, rSP, 16))
	g.emit(encMovFromSP(14)) // fixed buffer base
	g.emit(encMovFromSP(13)) // write cursor
	g.emit(encMovz(11, 0, 0))  // iteration count
	g.emit(encMovz(15, 0, 0))  // trimmed length (last nonzero digit position)

	loop := g.newLabel("pfloop")
	done := g.newLabel("pfdone")
	g.placeLabel(loop)
	g.emit(encCmpImm(11, 16))
	g.recordBranch(done, branchCond, condGE)

	g.emitLoadDataAddr(2, tenOff)
	g.emit(encLdurD(2, 2, 0))
	g.emit(encFmulD(1, 1, 2)) // frac *= 10
	g.emit(encFcvtzs(12, 1))  // digit = trunc(frac)
	g.emit(encScvtf(3, 12))
	g.emit(encFsubD(1, 1, 3)) // frac -= digit

	g.emit(encAddImm(11, 11, 1))
	g.emit(encCmpImm(12, 0))
	isZero := g.newLabel("pfzero")
	g.recordBranch(isZero, branchCond, condEQ)
	g.emit(encMovReg(15, 11))
	g.placeLabel(isZero)

	g.emit(encAddImm(12, 12, 48))
	g.emit(encSturB(12, 13, 0))
	g.emit(encAddImm(13, 13, 1))
	g.recordBranch(loop, branchB, 0)
	g.placeLabel(done)

	g.emit(encCmpImm(15, 0))
	skip := g.newLabel("pfskip")
	g.recordBranch(skip, branchCond, condEQ)
	g.emitWriteStdout(14, 15)
	g.placeLabel(skip)
	g.emit(encAddImm(rSP, rSP, 16))

	g.placeLabel(end)
	g.emitLoadDataAddr(1, g.newlineOff)
	g.emit(encMovz(9, 1, 0))
	g.emitWriteStdout(1, 9)
	g.emitEpilogue()
}
