// Package trace records the interpreter's statement-level execution for
// later inspection. The Recorder is a plain interp.Tracer with no UI
// dependencies; the tview/tcell viewer in tui.go presents a recorded
// run after the program has finished. Neither is ever required for the
// interpreter or native backend to work headlessly.
package trace

import (
	"fmt"
	"strings"

	"github.com/jibjab-lang/jj/ast"
	"github.com/jibjab-lang/jj/diag"
)

// Entry is one executed statement: its kind, source position, and the
// scope depth it executed at.
type Entry struct {
	Kind  string
	Pos   diag.Position
	Depth int
}

// Recorder collects execution entries up to MaxEntries (0 = unlimited).
// It implements interp.Tracer.
type Recorder struct {
	Entries    []Entry
	MaxEntries int
	Dropped    int
}

// NewRecorder creates a Recorder keeping at most maxEntries entries.
func NewRecorder(maxEntries int) *Recorder {
	return &Recorder{MaxEntries: maxEntries}
}

// OnStatement records one executed statement.
func (r *Recorder) OnStatement(stmt ast.Stmt, pos diag.Position, depth int) {
	if r.MaxEntries > 0 && len(r.Entries) >= r.MaxEntries {
		r.Dropped++
		return
	}
	r.Entries = append(r.Entries, Entry{Kind: stmtKind(stmt), Pos: pos, Depth: depth})
}

// stmtKind names a statement node for display.
func stmtKind(stmt ast.Stmt) string {
	switch stmt.(type) {
	case *ast.PrintStmt:
		return "print"
	case *ast.LogStmt:
		return "log"
	case *ast.VarDecl:
		return "var-decl"
	case *ast.LoopStmt:
		return "loop"
	case *ast.IfStmt:
		return "when"
	case *ast.FuncDef:
		return "morph"
	case *ast.ReturnStmt:
		return "yeet"
	case *ast.ThrowStmt:
		return "kaboom"
	case *ast.EnumDef:
		return "enum"
	case *ast.TryStmt:
		return "try"
	case *ast.CommentNode:
		return "comment"
	default:
		return fmt.Sprintf("%T", stmt)
	}
}

// Format renders one entry as a single trace line, indented by depth.
func (e Entry) Format(showPositions bool) string {
	indent := strings.Repeat("  ", e.Depth)
	if showPositions {
		return fmt.Sprintf("%s%s  (%d:%d)", indent, e.Kind, e.Pos.Line, e.Pos.Column)
	}
	return indent + e.Kind
}
