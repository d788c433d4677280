package native

import (
	"fmt"
	"math"
	"os"

	"github.com/jibjab-lang/jj/ast"
	"github.com/jibjab-lang/jj/diag"
)

// Register numbers used by convention throughout codegen.
const (
	rFP = 29 // x29, frame pointer
	rLR = 30 // x30, link register
	rSP = 31 // x31 in the stp/ldp/add-imm encodings means sp
)

// containerKind names how a VarDecl's RHS was expanded into slots.
type containerKind int

const (
	containerArray containerKind = iota
	containerTuple
	containerDict
	containerEnum
)

type containerMeta struct {
	Kind      containerKind
	ElemSlots []int32
	Keys      []string // populated for containerDict, parallel to ElemSlots
}

// Gen holds every mutable buffer and table the native backend threads
// through a single compilation.
type Gen struct {
	code []byte
	data []byte

	labels   map[string]int
	branches []branchSite

	funcOffsets map[string]int

	scope      map[string]int32 // name -> slot offset from x29 (negative)
	floatVars  map[string]bool
	containers map[string]containerMeta
	enumVars   map[string]string // var name -> resolved enum case name, constant-folded at VarDecl time
	nextSlot   int32

	strTable    map[string]int
	doubleTable map[float64]int
	newlineOff  int

	enumCases map[string][]string

	// retLabel is the current function's return label, or "" when
	// emitting the top-level body (which exits via syscall, not ret).
	retLabel string

	labelSeq int
	filename string
}

// NewGen creates an empty code generator.
func NewGen(filename string) *Gen {
	g := &Gen{
		labels:      map[string]int{},
		funcOffsets: map[string]int{},
		strTable:    map[string]int{},
		doubleTable: map[float64]int{},
		enumCases:   map[string][]string{},
		filename:    filename,
	}
	g.newlineOff = g.internBytes([]byte{'\n'})
	return g
}

func (g *Gen) emit(word uint32) {
	off := len(g.code)
	g.code = append(g.code, 0, 0, 0, 0)
	putWord(g.code, off, word)
}

func (g *Gen) internBytes(b []byte) int {
	// Align each constant to the natural word size so fixed-width reads
	// of it never straddle an alignment boundary.
	for len(g.data)%8 != 0 {
		g.data = append(g.data, 0)
	}
	off := len(g.data)
	g.data = append(g.data, b...)
	return off
}

func (g *Gen) internString(s string) int {
	if off, ok := g.strTable[s]; ok {
		return off
	}
	off := g.internBytes([]byte(s))
	g.strTable[s] = off
	return off
}

func (g *Gen) internDouble(f float64) int {
	if off, ok := g.doubleTable[f]; ok {
		return off
	}
	bits := make([]byte, 8)
	u := math.Float64bits(f)
	for i := 0; i < 8; i++ {
		bits[i] = byte(u >> (8 * i))
	}
	off := g.internBytes(bits)
	g.doubleTable[f] = off
	return off
}

func (g *Gen) newLabel(prefix string) string {
	g.labelSeq++
	return fmt.Sprintf("_%s%d", prefix, g.labelSeq)
}

func (g *Gen) allocSlot(name string) int32 {
	slot := g.nextSlot
	g.nextSlot -= 8
	g.scope[name] = slot
	return slot
}

func (g *Gen) lookupSlot(name string) (int32, bool) {
	s, ok := g.scope[name]
	return s, ok
}

// resetFrame gives the next function a fresh slot table. Functions are
// compiled one after another, never one inside another, so "save the
// map on entry, restore on exit" degenerates to replacing it here: the
// previous frame's map is fully consumed by the time the next body
// starts, and there is no outer frame to restore into.
func (g *Gen) resetFrame() {
	g.scope = map[string]int32{}
	g.floatVars = map[string]bool{}
	g.containers = map[string]containerMeta{}
	g.enumVars = map[string]string{}
	g.nextSlot = -16
}

// Compile lowers an entire program to a Mach-O executable image.
func Compile(prog *ast.Program, filename string) ([]byte, error) {
	g := NewGen(filename)

	g.emitPrintIntHelper()
	g.emitPrintFloatHelper()

	var mainStmts []ast.Stmt
	for _, s := range prog.Statements {
		if fd, ok := s.(*ast.FuncDef); ok {
			if err := g.compileFunction(fd); err != nil {
				return nil, err
			}
			continue
		}
		mainStmts = append(mainStmts, s)
	}

	g.placeLabel("_main")
	g.resetFrame()
	g.emitPrologue()
	for _, s := range mainStmts {
		if err := g.compileStmt(s); err != nil {
			return nil, err
		}
	}
	// exit(0)
	g.emit(encMovz(0, 0, 0))
	g.emit(encMovz(16, 1, 0))
	g.emit(encMovk(16, 0x0200, 16))
	g.emit(encSvc(0x80))

	if err := g.resolveBranches(); err != nil {
		return nil, err
	}

	mainOffset, ok := g.labels["_main"]
	if !ok {
		return nil, &CompileError{diag.New(diag.Position{Filename: filename},
			diag.KindUnresolvedBranchLabel, "internal: _main label never placed")}
	}
	return Assemble(g.code, g.data, uint32(mainOffset))
}

// CompileToFile compiles prog and writes the executable image to
// outPath, mode 0755.
func CompileToFile(prog *ast.Program, filename, outPath string) error {
	img, err := Compile(prog, filename)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, img, 0o755); err != nil {
		return fmt.Errorf("native: write %s: %w", outPath, err)
	}
	// WriteFile's mode is masked by the umask; chmod makes 0755 stick.
	return os.Chmod(outPath, 0o755)
}

func (g *Gen) emitPrologue() {
	g.emit(encStpPre(rFP, rLR, rSP, -16))
	g.emit(encStpPre(19, 20, rSP, -16))
	g.emit(encMovFromSP(rFP))
	g.emit(encSubImm(rSP, rSP, 256))
}

func (g *Gen) emitEpilogue() {
	g.emit(encAddImm(rSP, rSP, 256))
	g.emit(encLdpPost(19, 20, rSP, 16))
	g.emit(encLdpPost(rFP, rLR, rSP, 16))
	g.emit(encRet())
}

func (g *Gen) compileFunction(fd *ast.FuncDef) error {
	g.placeLabel("_" + fd.Name)
	g.funcOffsets[fd.Name] = len(g.code)
	g.resetFrame()
	g.emitPrologue()

	for i, param := range fd.Params {
		if i >= 8 {
			break
		}
		slot := g.allocSlot(param)
		g.emit(encSturX(uint32(i), rFP, slot))
	}

	g.retLabel = "_" + fd.Name + "_ret"
	for _, s := range fd.Body {
		if err := g.compileStmt(s); err != nil {
			return err
		}
	}
	g.emit(encMovz(0, 0, 0)) // implicit none return
	g.placeLabel(g.retLabel)
	g.emitEpilogue()
	g.retLabel = ""
	return nil
}

func (g *Gen) compileStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.PrintStmt:
		return g.compilePrint(s.Expr, s.Pos)
	case *ast.LogStmt:
		return g.compilePrint(s.Expr, s.Pos)
	case *ast.VarDecl:
		return g.compileVarDecl(s)
	case *ast.LoopStmt:
		return g.compileLoop(s)
	case *ast.IfStmt:
		return g.compileIf(s)
	case *ast.ReturnStmt:
		if err := g.compileExprToX0(s.Value); err != nil {
			return err
		}
		// Inside a function, unwind to the shared epilogue even from a
		// nested block; a top-level yeet just leaves its value in x0.
		if g.retLabel != "" {
			g.recordBranch(g.retLabel, branchB, 0)
		}
		return nil
	case *ast.EnumDef:
		g.enumCases[s.Name] = s.Cases
		for _, c := range s.Cases {
			g.internString(c)
		}
		g.containers[s.Name] = containerMeta{Kind: containerEnum, Keys: s.Cases}
		return nil
	case *ast.FuncDef:
		return newUnsupported(s.Pos, "nested function definition")
	case *ast.TryStmt:
		return newUnsupported(s.Pos, "try/oops")
	case *ast.ThrowStmt:
		return newUnsupported(s.Pos, "kaboom/throw")
	case *ast.CommentNode:
		return nil
	default:
		return newUnsupported(diag.Position{Filename: g.filename}, fmt.Sprintf("%T", stmt))
	}
}

func (g *Gen) compileVarDecl(s *ast.VarDecl) error {
	switch rhs := s.Value.(type) {
	case *ast.ArrayLiteral:
		return g.compileContainerLayout(s.Name, containerArray, rhs.Elements, nil)
	case *ast.TupleLiteral:
		return g.compileContainerLayout(s.Name, containerTuple, rhs.Elements, nil)
	case *ast.DictLiteral:
		keys := make([]string, len(rhs.Pairs))
		vals := make([]ast.Expr, len(rhs.Pairs))
		for i, p := range rhs.Pairs {
			lit, ok := p.Key.(*ast.Literal)
			if !ok || lit.Kind != ast.LitString {
				return newUnsupported(s.Pos, "dict key is not a constant string")
			}
			keys[i] = lit.Str
			vals[i] = p.Value
		}
		return g.compileContainerLayout(s.Name, containerDict, vals, keys)
	default:
		if g.isFloatTyped(s.Value) {
			if err := g.compileExprToD0(s.Value); err != nil {
				return err
			}
			slot := g.allocSlot(s.Name)
			g.floatVars[s.Name] = true
			g.emit(encSturD(0, rFP, slot))
			return nil
		}
		if err := g.compileExprToX0(s.Value); err != nil {
			return err
		}
		slot := g.allocSlot(s.Name)
		g.emit(encSturX(0, rFP, slot))
		if caseName, ok := g.enumCaseOf(s.Value); ok {
			g.enumVars[s.Name] = caseName
		}
		return nil
	}
}

func (g *Gen) compileContainerLayout(name string, kind containerKind, elems []ast.Expr, keys []string) error {
	slots := make([]int32, len(elems))
	for i, el := range elems {
		if err := g.compileExprToX0(el); err != nil {
			return err
		}
		slots[i] = g.allocSlot(fmt.Sprintf("%s#%d", name, i))
		g.emit(encSturX(0, rFP, slots[i]))
	}
	g.containers[name] = containerMeta{Kind: kind, ElemSlots: slots, Keys: keys}
	return nil
}

func (g *Gen) compileIf(s *ast.IfStmt) error {
	elseLabel := g.newLabel("else")
	endLabel := g.newLabel("endif")

	bop, isBinary := s.Condition.(*ast.BinaryOp)
	if isBinary && g.isFloatTyped(bop) {
		if err := g.compileExprToD0(bop.Left); err != nil {
			return err
		}
		g.emit(encSubImm(rSP, rSP, 16))
		g.emit(encSturD(0, rSP, 0))
		if err := g.compileExprToD0(bop.Right); err != nil {
			return err
		}
		g.emit(encLdurD(1, rSP, 0))
		g.emit(encAddImm(rSP, rSP, 16))
		g.emit(encFcmpD(1, 0))
		c, err := floatCondFor(bop.Op)
		if err != nil {
			return newUnsupported(s.Pos, err.Error())
		}
		g.recordBranch(elseLabel, branchCond, invert(c))
	} else {
		if err := g.compileExprToX0(s.Condition); err != nil {
			return err
		}
		g.emit(encMovReg(9, 0))
		g.emit(encMovz(0, 0, 0))
		g.emit(encCmpReg(9, 0))
		g.recordBranch(elseLabel, branchCond, condEQ)
	}

	for _, st := range s.Then {
		if err := g.compileStmt(st); err != nil {
			return err
		}
	}
	if len(s.Else) > 0 {
		g.recordBranch(endLabel, branchB, 0)
	}
	g.placeLabel(elseLabel)
	for _, st := range s.Else {
		if err := g.compileStmt(st); err != nil {
			return err
		}
	}
	g.placeLabel(endLabel)
	return nil
}

func floatCondFor(op string) (cond, error) {
	switch op {
	case "==":
		return condEQ, nil
	case "!=":
		return condNE, nil
	case "<":
		return condLT, nil
	case "<=":
		return condLE, nil
	case ">":
		return condGT, nil
	case ">=":
		return condGE, nil
	}
	return 0, fmt.Errorf("condition operator %q has no float comparison form", op)
}

// compileLoop only supports the numeric-range form; collection and
// while-style loops are an interpreter-only feature.
func (g *Gen) compileLoop(s *ast.LoopStmt) error {
	if s.Start == nil || s.End == nil {
		return newUnsupported(s.Pos, "non-range loop (collection or condition form)")
	}
	if err := g.compileExprToX0(s.Start); err != nil {
		return err
	}
	slot := g.allocSlot(s.Var)
	g.emit(encSturX(0, rFP, slot))

	if err := g.compileExprToX0(s.End); err != nil {
		return err
	}
	endSlot := g.allocSlot(s.Var + "#end")
	g.emit(encSturX(0, rFP, endSlot))

	loopLabel := g.newLabel("L")
	endLabel := g.newLabel("E")
	g.placeLabel(loopLabel)
	g.emit(encLdurX(0, rFP, slot))
	g.emit(encLdurX(1, rFP, endSlot))
	g.emit(encCmpReg(0, 1))
	g.recordBranch(endLabel, branchCond, condGE)

	for _, st := range s.Body {
		if err := g.compileStmt(st); err != nil {
			return err
		}
	}

	g.emit(encLdurX(0, rFP, slot))
	g.emit(encAddImm(0, 0, 1))
	g.emit(encSturX(0, rFP, slot))
	g.recordBranch(loopLabel, branchB, 0)
	g.placeLabel(endLabel)
	return nil
}

func (g *Gen) isFloatTyped(e ast.Expr) bool {
	switch x := e.(type) {
	case *ast.Literal:
		return x.Kind == ast.LitDouble
	case *ast.VarRef:
		return g.floatVars[x.Name]
	case *ast.BinaryOp:
		return g.isFloatTyped(x.Left) || g.isFloatTyped(x.Right)
	case *ast.UnaryOp:
		return g.isFloatTyped(x.Operand)
	}
	return false
}

func (g *Gen) compileExprToX0(expr ast.Expr) error {
	switch e := expr.(type) {
	case *ast.Literal:
		switch e.Kind {
		case ast.LitInt:
			g.emitLoadImm(0, e.IntVal)
			return nil
		case ast.LitBool:
			if e.Bool {
				g.emit(encMovz(0, 1, 0))
			} else {
				g.emit(encMovz(0, 0, 0))
			}
			return nil
		case ast.LitNone:
			g.emit(encMovz(0, 0, 0))
			return nil
		}
		return newUnsupported(e.Pos, "non-integer literal in arithmetic position")

	case *ast.VarRef:
		slot, ok := g.lookupSlot(e.Name)
		if !ok {
			return newUnsupported(e.Pos, "reference to undeclared variable "+e.Name)
		}
		g.emit(encLdurX(0, rFP, slot))
		return nil

	case *ast.BinaryOp:
		return g.compileBinaryInt(e)

	case *ast.UnaryOp:
		if err := g.compileExprToX0(e.Operand); err != nil {
			return err
		}
		g.emit(encEorImmOne(0, 0))
		return nil

	case *ast.FuncCall:
		return g.compileCall(e)

	case *ast.IndexAccess:
		return g.compileIndexToX0(e)

	default:
		return newUnsupported(diag.Position{Filename: g.filename}, fmt.Sprintf("%T in arithmetic position", expr))
	}
}

func (g *Gen) compileIndexToX0(e *ast.IndexAccess) error {
	vr, ok := e.Container.(*ast.VarRef)
	if !ok {
		return newUnsupported(e.Pos, "index into a non-variable container")
	}
	meta, ok := g.containers[vr.Name]
	if !ok {
		return newUnsupported(e.Pos, "index into an unlaid-out container")
	}
	lit, ok := e.Index.(*ast.Literal)
	if !ok {
		return newUnsupported(e.Pos, "non-constant index")
	}

	var elemIdx int = -1
	switch meta.Kind {
	case containerDict, containerEnum:
		if lit.Kind != ast.LitString {
			return newUnsupported(e.Pos, "dict/enum index is not a constant string")
		}
		for i, k := range meta.Keys {
			if k == lit.Str {
				elemIdx = i
				break
			}
		}
	default:
		if lit.Kind != ast.LitInt {
			return newUnsupported(e.Pos, "array/tuple index is not a constant int")
		}
		if int(lit.IntVal) >= 0 && int(lit.IntVal) < len(meta.ElemSlots) {
			elemIdx = int(lit.IntVal)
		}
	}
	if elemIdx < 0 {
		return newUnsupported(e.Pos, "constant index out of bounds")
	}
	if meta.Kind == containerEnum {
		// The enum case name lives in the data section, not a stack slot;
		// a VarRef assigned from this expression holds its address.
		g.emitLoadDataAddr(0, g.internString(meta.Keys[elemIdx]))
		return nil
	}
	g.emit(encLdurX(0, rFP, meta.ElemSlots[elemIdx]))
	return nil
}

// enumCaseOf reports the constant-folded enum case name an expression
// resolves to, if any: either an index into an enum by a literal string
// key, or a VarRef already tracked as holding one.
func (g *Gen) enumCaseOf(expr ast.Expr) (string, bool) {
	switch e := expr.(type) {
	case *ast.IndexAccess:
		vr, ok := e.Container.(*ast.VarRef)
		if !ok {
			return "", false
		}
		meta, ok := g.containers[vr.Name]
		if !ok || meta.Kind != containerEnum {
			return "", false
		}
		lit, ok := e.Index.(*ast.Literal)
		if !ok || lit.Kind != ast.LitString {
			return "", false
		}
		for _, k := range meta.Keys {
			if k == lit.Str {
				return k, true
			}
		}
		return "", false
	case *ast.VarRef:
		c, ok := g.enumVars[e.Name]
		return c, ok
	}
	return "", false
}

func (g *Gen) emitLoadImm(rd uint32, v int64) {
	u := uint64(v)
	g.emit(encMovz(rd, uint32(u&0xffff), 0))
	if chunk := uint32((u >> 16) & 0xffff); chunk != 0 || u > 0xffff {
		g.emit(encMovk(rd, chunk, 16))
	}
	if chunk := uint32((u >> 32) & 0xffff); chunk != 0 {
		g.emit(encMovk(rd, chunk, 32))
	}
	if chunk := uint32((u >> 48) & 0xffff); chunk != 0 {
		g.emit(encMovk(rd, chunk, 48))
	}
}

// compileBinaryInt evaluates left into x0, pushes it, evaluates right
// into x0 then moves it to x1, pops left back into x0, then applies the
// per-operator instruction sequence.
func (g *Gen) compileBinaryInt(e *ast.BinaryOp) error {
	if err := g.compileExprToX0(e.Left); err != nil {
		return err
	}
	g.emit(encStpPre(0, 31, rSP, -16))
	if err := g.compileExprToX0(e.Right); err != nil {
		return err
	}
	g.emit(encMovReg(1, 0))
	g.emit(encLdpPost(0, 31, rSP, 16))

	switch e.Op {
	case "+":
		g.emit(encAddReg(0, 0, 1))
	case "-":
		g.emit(encSubReg(0, 0, 1))
	case "*":
		g.emit(encMulReg(0, 0, 1))
	case "/":
		g.emit(encSdivReg(0, 0, 1))
	case "%":
		g.emit(encSdivReg(2, 0, 1))
		g.emit(encMsubReg(0, 2, 1, 0))
	case "==":
		g.emit(encCmpReg(0, 1))
		g.emit(encCset(0, condEQ))
	case "!=":
		g.emit(encCmpReg(0, 1))
		g.emit(encCset(0, condNE))
	case "<":
		g.emit(encCmpReg(0, 1))
		g.emit(encCset(0, condLT))
	case "<=":
		g.emit(encCmpReg(0, 1))
		g.emit(encCset(0, condLE))
	case ">":
		g.emit(encCmpReg(0, 1))
		g.emit(encCset(0, condGT))
	case ">=":
		g.emit(encCmpReg(0, 1))
		g.emit(encCset(0, condGE))
	case "&&":
		g.emit(encAndReg(0, 0, 1))
	case "||":
		g.emit(encOrrReg(0, 0, 1))
	default:
		return newUnsupported(e.Pos, "operator "+e.Op+" in integer context")
	}
	return nil
}

func (g *Gen) compileExprToD0(expr ast.Expr) error {
	switch e := expr.(type) {
	case *ast.Literal:
		if e.Kind != ast.LitDouble {
			return newUnsupported(e.Pos, "non-float literal in float arithmetic position")
		}
		off := g.internDouble(e.FloatVal)
		g.emitLoadDataAddr(1, off)
		g.emit(encLdurD(0, 1, 0))
		return nil
	case *ast.VarRef:
		slot, ok := g.lookupSlot(e.Name)
		if !ok {
			return newUnsupported(e.Pos, "reference to undeclared variable "+e.Name)
		}
		g.emit(encLdurD(0, rFP, slot))
		return nil
	case *ast.BinaryOp:
		// Spill the left operand: a compound right side re-enters this
		// function and would clobber any fixed scratch register.
		if err := g.compileExprToD0(e.Left); err != nil {
			return err
		}
		g.emit(encSubImm(rSP, rSP, 16))
		g.emit(encSturD(0, rSP, 0))
		if err := g.compileExprToD0(e.Right); err != nil {
			return err
		}
		g.emit(encLdurD(1, rSP, 0))
		g.emit(encAddImm(rSP, rSP, 16))
		switch e.Op {
		case "+":
			g.emit(encFaddD(0, 1, 0))
		case "-":
			g.emit(encFsubD(0, 1, 0))
		case "*":
			g.emit(encFmulD(0, 1, 0))
		case "/":
			g.emit(encFdivD(0, 1, 0))
		default:
			return newUnsupported(e.Pos, "operator "+e.Op+" in float context")
		}
		return nil
	default:
		return newUnsupported(diag.Position{Filename: g.filename}, fmt.Sprintf("%T in float arithmetic position", expr))
	}
}

// compileCall evaluates arguments (up to eight) left to right, pushing
// each result on the stack, then pops them into x0..x7 immediately
// before the branch. Holding earlier arguments in registers would not
// survive a nested call inside a later argument; the stack does.
func (g *Gen) compileCall(e *ast.FuncCall) error {
	n := len(e.Args)
	if n > 8 {
		n = 8
	}
	for i := 0; i < n; i++ {
		if err := g.compileExprToX0(e.Args[i]); err != nil {
			return err
		}
		g.emit(encStpPre(0, 31, rSP, -16))
	}
	for i := n - 1; i >= 0; i-- {
		g.emit(encLdpPost(uint32(i), 31, rSP, 16))
	}
	g.recordBranch("_"+e.Name, branchBL, 0)
	return nil
}

// emitLoadDataAddr loads the absolute address of a data-section offset
// into rd via an ADRP/ADD placeholder pair. The ADRP's page delta stays
// zero and the ADD carries the raw offset into the data buffer; the
// fix-up pass in macho.go rewrites both once final addresses are known.
func (g *Gen) emitLoadDataAddr(rd uint32, dataOffset int) {
	g.emit(encAdrp(rd, 0, 0))
	g.emit(encAddImm(rd, rd, uint32(dataOffset)&0xfff))
}
