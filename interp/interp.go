// Package interp implements a tree-walking interpreter over an
// *ast.Program: a stack of scopes (innermost last, outermost/globals
// first), a separate function-definition table, and per-statement-kind
// execution dispatched by type switch, mirroring the AST's own
// closed-set design.
package interp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jibjab-lang/jj/ast"
	"github.com/jibjab-lang/jj/diag"
	"github.com/jibjab-lang/jj/value"
)

// Tracer observes statement execution without altering it. A nil Tracer
// costs nothing: the interpreter only calls it when non-nil. depth is
// the number of scopes below the current one (0 at top level).
type Tracer interface {
	OnStatement(stmt ast.Stmt, pos diag.Position, depth int)
}

// diagError aliases diag.Error so it can be embedded below under a
// field name other than "Error" — embedding it directly would name the
// field "Error", which shadows the promoted Error() method and breaks
// the error interface.
type diagError = diag.Error

// RuntimeError is a fatal, uncatchable-unless-wrapped-in-try failure:
// undefined names, bad indices, division by zero, and the like.
type RuntimeError struct {
	*diagError
}

// thrownValue is the internal control-flow channel a kaboom/throw
// statement uses to reach an enclosing try/oops frame. It is never
// surfaced to a caller of Run; it is always either caught by a TryStmt
// or converted to a RuntimeError at the program's top level.
type thrownValue struct {
	Value value.Value
}

func (t *thrownValue) Error() string { return "uncaught throw: " + value.Stringify(t.Value) }

// ctrlKind names the kind of non-local control flow a statement
// produced, propagated as an explicit return value rather than via
// panic/recover.
type ctrlKind int

const (
	ctrlNone ctrlKind = iota
	ctrlReturn
	ctrlThrow
)

type control struct {
	Kind  ctrlKind
	Value value.Value
}

var noCtrl = control{Kind: ctrlNone}

// Interpreter runs a single program. Scopes[0] is globals; the last
// entry is the innermost live scope.
type Interpreter struct {
	Scopes   []map[string]value.Value
	Funcs    map[string]*ast.FuncDef
	Out      io.Writer
	In       *bufio.Reader
	Filename string
	Tracer   Tracer
	// MaxLoopIters bounds each condition-form loop's iteration count; 0
	// means no limit. Range and collection loops are finite already.
	MaxLoopIters uint64
}

// New creates an Interpreter writing to stdout and reading from stdin.
func New(filename string) *Interpreter {
	return &Interpreter{
		Scopes:   []map[string]value.Value{{}},
		Funcs:    map[string]*ast.FuncDef{},
		Out:      os.Stdout,
		In:       bufio.NewReader(os.Stdin),
		Filename: filename,
	}
}

// Run executes every top-level statement. An uncaught throw becomes a
// RuntimeError; any other fatal error (undefined variable, division by
// zero, ...) is returned as-is.
func (it *Interpreter) Run(prog *ast.Program) error {
	ctrl, err := it.execBlock(prog.Statements)
	if err != nil {
		if tv, ok := err.(*thrownValue); ok {
			return &RuntimeError{diag.New(diag.Position{Filename: it.Filename},
				diag.KindUncaughtThrow, "uncaught throw: "+value.Stringify(tv.Value))}
		}
		return err
	}
	if ctrl.Kind == ctrlThrow {
		return &RuntimeError{diag.New(diag.Position{Filename: it.Filename},
			diag.KindUncaughtThrow, "uncaught throw: "+value.Stringify(ctrl.Value))}
	}
	return nil
}

func (it *Interpreter) pushScope() { it.Scopes = append(it.Scopes, map[string]value.Value{}) }
func (it *Interpreter) popScope()  { it.Scopes = it.Scopes[:len(it.Scopes)-1] }

func (it *Interpreter) lookupVar(name string) (value.Value, bool) {
	for i := len(it.Scopes) - 1; i >= 0; i-- {
		if v, ok := it.Scopes[i][name]; ok {
			return v, true
		}
	}
	return value.Value{}, false
}

// setVar binds name in the innermost scope.
func (it *Interpreter) setVar(name string, v value.Value) {
	it.Scopes[len(it.Scopes)-1][name] = v
}

func (it *Interpreter) execBlock(stmts []ast.Stmt) (control, error) {
	for _, s := range stmts {
		ctrl, err := it.execStmt(s)
		if err != nil {
			return control{}, err
		}
		if ctrl.Kind != ctrlNone {
			return ctrl, nil
		}
	}
	return noCtrl, nil
}

func (it *Interpreter) execStmt(stmt ast.Stmt) (control, error) {
	if it.Tracer != nil {
		it.Tracer.OnStatement(stmt, stmtPos(stmt), len(it.Scopes)-1)
	}
	switch s := stmt.(type) {
	case *ast.PrintStmt:
		return it.execWrite(s.Expr)
	case *ast.LogStmt:
		return it.execWrite(s.Expr)
	case *ast.VarDecl:
		v, err := it.eval(s.Value)
		if err != nil {
			return control{}, err
		}
		it.setVar(s.Name, v)
		return noCtrl, nil
	case *ast.LoopStmt:
		return it.execLoop(s)
	case *ast.IfStmt:
		return it.execIf(s)
	case *ast.FuncDef:
		it.Funcs[s.Name] = s
		return noCtrl, nil
	case *ast.ReturnStmt:
		v, err := it.eval(s.Value)
		if err != nil {
			return control{}, err
		}
		return control{Kind: ctrlReturn, Value: v}, nil
	case *ast.ThrowStmt:
		v, err := it.eval(s.Value)
		if err != nil {
			return control{}, err
		}
		return control{Kind: ctrlThrow, Value: v}, nil
	case *ast.EnumDef:
		keys := append([]string(nil), s.Cases...)
		vals := make(map[string]value.Value, len(s.Cases))
		for _, c := range s.Cases {
			vals[c] = value.NewString(c)
		}
		it.setVar(s.Name, value.NewMap(keys, vals))
		return noCtrl, nil
	case *ast.TryStmt:
		return it.execTry(s)
	case *ast.CommentNode:
		return noCtrl, nil
	default:
		return control{}, &RuntimeError{diag.New(diag.Position{Filename: it.Filename},
			diag.KindUnrecognizedStatement, fmt.Sprintf("interp: unhandled statement %T", stmt))}
	}
}

// execWrite prints the stringified value terminated by exactly one
// newline: a string that already ends in one keeps it, everything else
// gains one.
func (it *Interpreter) execWrite(expr ast.Expr) (control, error) {
	v, err := it.eval(expr)
	if err != nil {
		return control{}, err
	}
	s := value.Stringify(v)
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	fmt.Fprint(it.Out, s)
	return noCtrl, nil
}

func (it *Interpreter) execIf(s *ast.IfStmt) (control, error) {
	cond, err := it.eval(s.Condition)
	if err != nil {
		return control{}, err
	}
	it.pushScope()
	defer it.popScope()
	if cond.Truthy() {
		return it.execBlock(s.Then)
	}
	return it.execBlock(s.Else)
}

func (it *Interpreter) execTry(s *ast.TryStmt) (control, error) {
	it.pushScope()
	ctrl, err := it.execBlock(s.TryBody)
	it.popScope()

	var caught value.Value
	caughtSomething := false
	if err != nil {
		if tv, ok := err.(*thrownValue); ok {
			caught, caughtSomething = tv.Value, true
		} else if re, ok := err.(*RuntimeError); ok {
			caught, caughtSomething = value.NewString(re.Error()), true
		} else {
			return control{}, err
		}
	} else if ctrl.Kind == ctrlThrow {
		caught, caughtSomething = ctrl.Value, true
	}

	if !caughtSomething {
		return ctrl, nil
	}
	if s.CatchBody == nil {
		return noCtrl, nil
	}
	it.pushScope()
	defer it.popScope()
	if s.CatchVar != "" {
		it.setVar(s.CatchVar, caught)
	}
	return it.execBlock(s.CatchBody)
}

func (it *Interpreter) execLoop(s *ast.LoopStmt) (control, error) {
	switch {
	case s.Start != nil && s.End != nil:
		startV, err := it.eval(s.Start)
		if err != nil {
			return control{}, err
		}
		endV, err := it.eval(s.End)
		if err != nil {
			return control{}, err
		}
		for i := startV.Int; i < endV.Int; i++ {
			it.setVar(s.Var, value.NewInt(i))
			ctrl, err := it.execBlock(s.Body)
			if err != nil {
				return control{}, err
			}
			if ctrl.Kind != ctrlNone {
				return ctrl, nil
			}
		}
		return noCtrl, nil

	case s.Collection != nil:
		coll, err := it.eval(s.Collection)
		if err != nil {
			return control{}, err
		}
		switch coll.Kind {
		case value.List:
			for _, elem := range coll.List {
				it.setVar(s.Var, elem)
				ctrl, err := it.execBlock(s.Body)
				if err != nil {
					return control{}, err
				}
				if ctrl.Kind != ctrlNone {
					return ctrl, nil
				}
			}
		case value.Map:
			for _, k := range coll.MapOrder {
				it.setVar(s.Var, value.NewString(k))
				ctrl, err := it.execBlock(s.Body)
				if err != nil {
					return control{}, err
				}
				if ctrl.Kind != ctrlNone {
					return ctrl, nil
				}
			}
		default:
			return control{}, &RuntimeError{diag.New(diag.Position{Filename: it.Filename},
				diag.KindNonIndexable, "loop collection is not a list or map: "+coll.Kind.String())}
		}
		return noCtrl, nil

	default:
		var iters uint64
		for {
			condV, err := it.eval(s.Condition)
			if err != nil {
				return control{}, err
			}
			if !condV.Truthy() {
				return noCtrl, nil
			}
			if it.MaxLoopIters > 0 && iters >= it.MaxLoopIters {
				return control{}, &RuntimeError{diag.New(s.Pos, diag.KindLoopLimitExceeded,
					fmt.Sprintf("condition loop exceeded %d iterations", it.MaxLoopIters))}
			}
			iters++
			ctrl, err := it.execBlock(s.Body)
			if err != nil {
				return control{}, err
			}
			if ctrl.Kind != ctrlNone {
				return ctrl, nil
			}
		}
	}
}

func (it *Interpreter) eval(expr ast.Expr) (value.Value, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		switch e.Kind {
		case ast.LitInt:
			return value.NewInt(e.IntVal), nil
		case ast.LitDouble:
			return value.NewDouble(e.FloatVal), nil
		case ast.LitString:
			return value.NewString(e.Str), nil
		case ast.LitBool:
			return value.NewBool(e.Bool), nil
		case ast.LitNone:
			return value.NewNone(), nil
		}
		return value.NewNone(), nil

	case *ast.VarRef:
		v, ok := it.lookupVar(e.Name)
		if !ok {
			return value.Value{}, &RuntimeError{diag.New(e.Pos, diag.KindUndefinedVariable,
				"undefined variable: "+e.Name)}
		}
		return v, nil

	case *ast.StringInterpolation:
		var out string
		for _, part := range e.Parts {
			if !part.IsVariable {
				out += part.Text
				continue
			}
			v, ok := it.lookupVar(part.Text)
			if !ok {
				return value.Value{}, &RuntimeError{diag.New(e.Pos, diag.KindUndefinedVariable,
					"undefined variable: "+part.Text)}
			}
			out += value.Stringify(v)
		}
		return value.NewString(out), nil

	case *ast.BinaryOp:
		return it.evalBinary(e)

	case *ast.UnaryOp:
		operand, err := it.eval(e.Operand)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewBool(!operand.Truthy()), nil

	case *ast.ArrayLiteral:
		elems := make([]value.Value, len(e.Elements))
		for i, el := range e.Elements {
			v, err := it.eval(el)
			if err != nil {
				return value.Value{}, err
			}
			elems[i] = v
		}
		return value.NewList(elems), nil

	case *ast.TupleLiteral:
		elems := make([]value.Value, len(e.Elements))
		for i, el := range e.Elements {
			v, err := it.eval(el)
			if err != nil {
				return value.Value{}, err
			}
			elems[i] = v
		}
		return value.NewList(elems), nil

	case *ast.DictLiteral:
		keys := make([]string, 0, len(e.Pairs))
		vals := make(map[string]value.Value, len(e.Pairs))
		for _, pair := range e.Pairs {
			kv, err := it.eval(pair.Key)
			if err != nil {
				return value.Value{}, err
			}
			vv, err := it.eval(pair.Value)
			if err != nil {
				return value.Value{}, err
			}
			k := value.Stringify(kv)
			if _, exists := vals[k]; !exists {
				keys = append(keys, k)
			}
			vals[k] = vv
		}
		return value.NewMap(keys, vals), nil

	case *ast.IndexAccess:
		return it.evalIndex(e)

	case *ast.InputExpr:
		prompt, err := it.eval(e.Prompt)
		if err != nil {
			return value.Value{}, err
		}
		fmt.Fprint(it.Out, value.Stringify(prompt))
		line, _ := it.In.ReadString('\n')
		return value.NewString(trimNewline(line)), nil

	case *ast.FuncCall:
		return it.evalCall(e)

	default:
		return value.Value{}, &RuntimeError{diag.New(diag.Position{Filename: it.Filename},
			diag.KindUnknownOperator, fmt.Sprintf("interp: unhandled expression %T", expr))}
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func (it *Interpreter) evalBinary(e *ast.BinaryOp) (value.Value, error) {
	left, err := it.eval(e.Left)
	if err != nil {
		return value.Value{}, err
	}

	// Short-circuit before evaluating the right operand.
	if e.Op == "&&" && !left.Truthy() {
		return value.NewBool(false), nil
	}
	if e.Op == "||" && left.Truthy() {
		return value.NewBool(true), nil
	}

	right, err := it.eval(e.Right)
	if err != nil {
		return value.Value{}, err
	}

	switch e.Op {
	case "+":
		return value.Add(left, right), nil
	case "-", "*", "/", "%":
		v, err := value.Arith(e.Op, left, right)
		if err != nil {
			return value.Value{}, &RuntimeError{diag.New(e.Pos, diag.KindDivisionByZero, err.Error())}
		}
		return v, nil
	case "==":
		return value.NewBool(left.Equals(right)), nil
	case "!=":
		return value.NewBool(!left.Equals(right)), nil
	case "<", "<=", ">", ">=":
		v, err := value.Compare(e.Op, left, right)
		if err != nil {
			return value.Value{}, &RuntimeError{diag.New(e.Pos, diag.KindUnknownOperator, err.Error())}
		}
		return v, nil
	case "&&":
		return value.NewBool(left.Truthy() && right.Truthy()), nil
	case "||":
		return value.NewBool(left.Truthy() || right.Truthy()), nil
	default:
		return value.Value{}, &RuntimeError{diag.New(e.Pos, diag.KindUnknownOperator, "unknown operator: "+e.Op)}
	}
}

func (it *Interpreter) evalIndex(e *ast.IndexAccess) (value.Value, error) {
	container, err := it.eval(e.Container)
	if err != nil {
		return value.Value{}, err
	}
	idx, err := it.eval(e.Index)
	if err != nil {
		return value.Value{}, err
	}
	switch container.Kind {
	case value.List:
		if idx.Kind != value.Int {
			return value.Value{}, &RuntimeError{diag.New(e.Pos, diag.KindNonIndexable,
				"list index must be an int, got "+idx.Kind.String())}
		}
		if idx.Int < 0 || idx.Int >= int64(len(container.List)) {
			return value.Value{}, &RuntimeError{diag.New(e.Pos, diag.KindIndexOutOfBounds,
				fmt.Sprintf("list index %d out of bounds (length %d)", idx.Int, len(container.List)))}
		}
		return container.List[idx.Int], nil
	case value.Map:
		key := value.Stringify(idx)
		v, ok := container.Map[key]
		if !ok {
			return value.Value{}, &RuntimeError{diag.New(e.Pos, diag.KindIndexOutOfBounds,
				"map has no key: "+key)}
		}
		return v, nil
	case value.String:
		if idx.Kind != value.Int {
			return value.Value{}, &RuntimeError{diag.New(e.Pos, diag.KindNonIndexable,
				"string index must be an int, got "+idx.Kind.String())}
		}
		runes := []rune(container.Str)
		if idx.Int < 0 || idx.Int >= int64(len(runes)) {
			return value.Value{}, &RuntimeError{diag.New(e.Pos, diag.KindIndexOutOfBounds,
				fmt.Sprintf("string index %d out of bounds (length %d)", idx.Int, len(runes)))}
		}
		return value.NewString(string(runes[idx.Int])), nil
	default:
		return value.Value{}, &RuntimeError{diag.New(e.Pos, diag.KindNonIndexable,
			"value is not indexable: "+container.Kind.String())}
	}
}

// evalCall binds arguments positionally: a missing trailing argument
// binds its parameter to none; an extra trailing argument is ignored.
func (it *Interpreter) evalCall(e *ast.FuncCall) (value.Value, error) {
	def, ok := it.Funcs[e.Name]
	if !ok {
		return value.Value{}, &RuntimeError{diag.New(e.Pos, diag.KindUndefinedFunction,
			"undefined function: "+e.Name)}
	}
	argVals := make([]value.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := it.eval(a)
		if err != nil {
			return value.Value{}, err
		}
		argVals[i] = v
	}

	frame := map[string]value.Value{}
	for i, param := range def.Params {
		if i < len(argVals) {
			frame[param] = argVals[i]
		} else {
			frame[param] = value.NewNone()
		}
	}
	it.Scopes = append(it.Scopes, frame)
	ctrl, err := it.execBlock(def.Body)
	it.Scopes = it.Scopes[:len(it.Scopes)-1]
	if err != nil {
		return value.Value{}, err
	}
	switch ctrl.Kind {
	case ctrlReturn:
		return ctrl.Value, nil
	case ctrlThrow:
		return value.Value{}, &thrownValue{Value: ctrl.Value}
	default:
		return value.NewNone(), nil
	}
}

func stmtPos(stmt ast.Stmt) diag.Position {
	switch s := stmt.(type) {
	case *ast.PrintStmt:
		return s.Pos
	case *ast.LogStmt:
		return s.Pos
	case *ast.VarDecl:
		return s.Pos
	case *ast.LoopStmt:
		return s.Pos
	case *ast.IfStmt:
		return s.Pos
	case *ast.FuncDef:
		return s.Pos
	case *ast.ReturnStmt:
		return s.Pos
	case *ast.ThrowStmt:
		return s.Pos
	case *ast.EnumDef:
		return s.Pos
	case *ast.TryStmt:
		return s.Pos
	case *ast.CommentNode:
		return s.Pos
	default:
		return diag.Position{}
	}
}
