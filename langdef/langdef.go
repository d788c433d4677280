// Package langdef holds the JJ Language Definition: the read-only record
// of keyword spellings, block delimiters, operator symbols/emit-strings,
// and literal markers that drive the lexer, parser, interpreter, and
// native backend. The core never hard-codes a surface spelling; every
// string-level comparison goes through a *Definition value.
//
// Loading the definition from its on-disk JSON representation is an
// external collaborator's job — the core only consumes the resulting
// value. Load is provided here as a convenience for that collaborator
// (the root main package) rather than as part of the core's own
// pipeline surface.
package langdef

import (
	"encoding/json"
	"fmt"
	"os"
)

// Operator carries both spellings for one binary/unary operator: Symbol
// is what the lexer matches in source text, Emit is the canonical
// internal spelling threaded through BinaryOp.Op / UnaryOp.Op and
// interpreted by the interpreter and native backend. Renaming Symbol
// while leaving Emit untouched changes only what source text the lexer
// accepts — never the AST shape or program behavior.
type Operator struct {
	Symbol string `json:"symbol"`
	Emit   string `json:"emit"`
}

// Keywords holds the statement/literal keyword spellings. Each spelling
// is matched verbatim against the source text by the lexer — it is free
// to include whatever decorative marker characters this language
// definition wants (the default definition's "~>frob" is one such
// spelling, not two separate tokens); the lexer never hard-codes a
// marker glyph.
//
// Throw carries the kaboom spelling alongside the other statement
// keywords so ThrowStmt parsing stays LD-driven like everything else.
type Keywords struct {
	Print  string `json:"print"`
	Log    string `json:"log"`
	Input  string `json:"input"`
	Yeet   string `json:"yeet"`
	Throw  string `json:"throw"`
	Snag   string `json:"snag"`
	Invoke string `json:"invoke"`
	Enum   string `json:"enum"`
	Nil    string `json:"nil"`
	True   string `json:"true"`
	False  string `json:"false"`
}

// Blocks holds the block-open/close spellings. Loop, When and Morph are
// "raw-capture" block-opens: the lexer matches the spelling (which by
// convention ends in the opening brace that introduces the block's
// spec), then records everything up to the next occurrence of
// BlockSuffix as the token's raw body text. Else, Try, Oops and End are
// bare tokens matched as a single literal spelling with no body.
type Blocks struct {
	Loop        string `json:"loop"`
	When        string `json:"when"`
	Else        string `json:"else"`
	Morph       string `json:"morph"`
	Try         string `json:"try"`
	Oops        string `json:"oops"`
	End         string `json:"end"`
	BlockSuffix string `json:"blockSuffix"`
}

// Operators holds every binary/unary operator's symbol+emit pair.
type Operators struct {
	Add Operator `json:"add"`
	Sub Operator `json:"sub"`
	Mul Operator `json:"mul"`
	Div Operator `json:"div"`
	Mod Operator `json:"mod"`
	Eq  Operator `json:"eq"`
	Neq Operator `json:"neq"`
	Lt  Operator `json:"lt"`
	Lte Operator `json:"lte"`
	Gt  Operator `json:"gt"`
	Gte Operator `json:"gte"`
	And Operator `json:"and"`
	Or  Operator `json:"or"`
	Not Operator `json:"not"`
}

// Structure holds structural separators used outside expressions.
type Structure struct {
	Action string `json:"action"` // member/action separator, e.g. "::"
	Range  string `json:"range"`  // range separator, e.g. ".."
	Colon  string `json:"colon"`
}

// Syntax holds the action words that follow the Structure.Action
// separator: emit/grab/val/with/cases.
type Syntax struct {
	Emit  string `json:"emit"`
	Grab  string `json:"grab"`
	Val   string `json:"val"`
	With  string `json:"with"`
	Cases string `json:"cases"`
}

// Literals holds the single-character markers for numeric/string
// literals and the line-comment prefix.
type Literals struct {
	NumberPrefix string `json:"numberPrefix"`
	StringDelim  string `json:"stringDelim"`
	Comment      string `json:"comment"`
}

// Definition is the complete, read-only language definition. Zero value
// is never valid; construct one via Default or Load.
type Definition struct {
	Keywords  Keywords  `json:"keywords"`
	Blocks    Blocks    `json:"blocks"`
	Operators Operators `json:"operators"`
	Structure Structure `json:"structure"`
	Syntax    Syntax    `json:"syntax"`
	Literals  Literals  `json:"literals"`
}

// Load reads a Definition from a JSON file on disk. The core never calls
// this itself; it is exposed for the CLI front-end.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("langdef: read %s: %w", path, err)
	}
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("langdef: parse %s: %w", path, err)
	}
	return &def, nil
}

// Default returns the canonical JJ spellings. It is used by tests and
// by the root main package when no language-definition file is supplied
// on the command line.
func Default() *Definition {
	return &Definition{
		Keywords: Keywords{
			Print: "~>frob", Log: "~>spew", Input: "input",
			Yeet: "~>yeet", Throw: "~>kaboom", Snag: "~>snag",
			Invoke: "~>invoke", Enum: "~>enum",
			Nil: "nil", True: "true", False: "false",
		},
		Blocks: Blocks{
			Loop: "<~loop{", When: "<~when{", Else: "<~else>>", Morph: "<~morph{",
			Try: "<~try>>", Oops: "<~oops>>", End: "<~>>", BlockSuffix: ">>",
		},
		Operators: Operators{
			Add: Operator{Symbol: "<+>", Emit: "+"},
			Sub: Operator{Symbol: "<->", Emit: "-"},
			Mul: Operator{Symbol: "<*>", Emit: "*"},
			Div: Operator{Symbol: "</>", Emit: "/"},
			Mod: Operator{Symbol: "<%>", Emit: "%"},
			Eq:  Operator{Symbol: "<=>", Emit: "=="},
			Neq: Operator{Symbol: "<!=>", Emit: "!="},
			Lt:  Operator{Symbol: "<lt>", Emit: "<"},
			Lte: Operator{Symbol: "<lte>", Emit: "<="},
			Gt:  Operator{Symbol: "<gt>", Emit: ">"},
			Gte: Operator{Symbol: "<gte>", Emit: ">="},
			And: Operator{Symbol: "<&&>", Emit: "&&"},
			Or:  Operator{Symbol: "<||>", Emit: "||"},
			Not: Operator{Symbol: "<!>", Emit: "!"},
		},
		Structure: Structure{Action: "::", Range: "..", Colon: ":"},
		Syntax:    Syntax{Emit: "emit", Grab: "grab", Val: "val", With: "with", Cases: "cases"},
		Literals:  Literals{NumberPrefix: "#", StringDelim: "\"", Comment: "@@"},
	}
}
