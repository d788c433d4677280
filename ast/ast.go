// Package ast defines the JJ abstract syntax tree as a closed set of
// node types, dispatched by type switch rather than virtual calls. There
// is deliberately no visitor interface here: the interpreter and the
// native backend each switch on ast.Stmt/ast.Expr concrete types
// directly.
package ast

import "github.com/jibjab-lang/jj/diag"

// Stmt is implemented by every statement-position node.
type Stmt interface {
	stmtNode()
}

// Expr is implemented by every expression-position node.
type Expr interface {
	exprNode()
}

// Program is the AST root: a flat list of top-level statements.
type Program struct {
	Statements []Stmt
}

// PrintStmt and LogStmt both evaluate Expr, stringify it, and write one
// line; LogStmt exists as a distinct node because print and log are
// kept as separate statement kinds even though the core interpreter
// treats them identically (see interp package).
type PrintStmt struct {
	Expr Expr
	Pos  diag.Position
}

func (*PrintStmt) stmtNode() {}

type LogStmt struct {
	Expr Expr
	Pos  diag.Position
}

func (*LogStmt) stmtNode() {}

// VarDecl unifies declaration and assignment: binding Name to Value in
// the innermost scope.
type VarDecl struct {
	Name  string
	Value Expr
	Pos   diag.Position
}

func (*VarDecl) stmtNode() {}

// VarRef reads a bound name.
type VarRef struct {
	Name string
	Pos  diag.Position
}

func (*VarRef) exprNode() {}

// LitKind names which field of Literal is populated.
type LitKind int

const (
	LitInt LitKind = iota
	LitDouble
	LitString
	LitBool
	LitNone
)

// NumTag mirrors token.NumTag without creating an ast -> token import;
// only the float/non-float distinction and a name matter past lexing.
type NumTag int

const (
	NumTagInt NumTag = iota
	NumTagDouble
	NumTagI8
	NumTagI16
	NumTagI32
	NumTagI64
	NumTagU
	NumTagU8
	NumTagU16
	NumTagU32
	NumTagU64
	NumTagF
	NumTagD
)

// IsFloat reports whether the tag names a floating-point width.
func (t NumTag) IsFloat() bool { return t == NumTagDouble || t == NumTagF || t == NumTagD }

// Literal holds one of int, double, string, bool or none.
type Literal struct {
	Kind     LitKind
	IntVal   int64
	FloatVal float64
	Str      string
	Bool     bool
	NumTag   NumTag
	Pos      diag.Position
}

func (*Literal) exprNode() {}

// InterpPart is one segment of a StringInterpolation: literal text when
// IsVariable is false, a bare variable name to substitute otherwise.
type InterpPart struct {
	IsVariable bool
	Text       string
}

// StringInterpolation evaluates each variable part and concatenates
// everything, in order.
type StringInterpolation struct {
	Parts []InterpPart
	Pos   diag.Position
}

func (*StringInterpolation) exprNode() {}

// BinaryOp.Op and UnaryOp.Op always hold the language definition's
// emit-string, never the source-level symbol — the parser resolves this
// at AST-construction time.
type BinaryOp struct {
	Left, Right Expr
	Op          string
	Pos         diag.Position
}

func (*BinaryOp) exprNode() {}

type UnaryOp struct {
	Operand Expr
	Op      string
	Pos     diag.Position
}

func (*UnaryOp) exprNode() {}

// LoopStmt models all three loop shapes. Exactly one of (Start && End),
// Collection, or Condition is non-nil; Var is "_" for the
// condition-only (while) shape.
type LoopStmt struct {
	Var        string
	Start, End Expr
	Collection Expr
	Condition  Expr
	Body       []Stmt
	Pos        diag.Position
}

func (*LoopStmt) stmtNode() {}

type IfStmt struct {
	Condition Expr
	Then      []Stmt
	Else      []Stmt
	Pos       diag.Position
}

func (*IfStmt) stmtNode() {}

type FuncDef struct {
	Name   string
	Params []string
	Body   []Stmt
	Pos    diag.Position
}

func (*FuncDef) stmtNode() {}

// FuncCall is an expression: it appears wherever a value is expected,
// including as the sole expression of a PrintStmt.
type FuncCall struct {
	Name string
	Args []Expr
	Pos  diag.Position
}

func (*FuncCall) exprNode() {}

type ReturnStmt struct {
	Value Expr
	Pos   diag.Position
}

func (*ReturnStmt) stmtNode() {}

type ThrowStmt struct {
	Value Expr
	Pos   diag.Position
}

func (*ThrowStmt) stmtNode() {}

type EnumDef struct {
	Name  string
	Cases []string
	Pos   diag.Position
}

func (*EnumDef) stmtNode() {}

type ArrayLiteral struct {
	Elements []Expr
	Pos      diag.Position
}

func (*ArrayLiteral) exprNode() {}

type DictPair struct {
	Key   Expr
	Value Expr
}

type DictLiteral struct {
	Pairs []DictPair
	Pos   diag.Position
}

func (*DictLiteral) exprNode() {}

type TupleLiteral struct {
	Elements []Expr
	Pos      diag.Position
}

func (*TupleLiteral) exprNode() {}

type IndexAccess struct {
	Container Expr
	Index     Expr
	Pos       diag.Position
}

func (*IndexAccess) exprNode() {}

// InputExpr models the "input :: grab ( prompt )" primary expression,
// carried as the same kind of extension as ThrowStmt's keyword spelling
// (see langdef.Keywords.Throw).
type InputExpr struct {
	Prompt Expr
	Pos    diag.Position
}

func (*InputExpr) exprNode() {}

type TryStmt struct {
	TryBody   []Stmt
	CatchBody []Stmt
	CatchVar  string
	Pos       diag.Position
}

func (*TryStmt) stmtNode() {}

// CommentNode exists for AST completeness; the lexer never emits a
// comment token (line comments are skipped in place), so no parse path
// ever constructs one.
type CommentNode struct {
	Text string
	Pos  diag.Position
}

func (*CommentNode) stmtNode() {}
