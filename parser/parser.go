// Package parser implements a hand-written recursive-descent parser
// that turns a lexer token vector into an *ast.Program, driven by the
// same *langdef.Definition the lexer used. Loop, when, and morph block
// bodies carry raw spec text captured by the lexer. Loop and when text
// is re-lexed and re-parsed with a nested Parser instance under the
// identical grammar, so the surface spelling never needs to be known
// twice; morph text is split into a name and parameter list directly.
package parser

import (
	"fmt"
	"strings"

	"github.com/jibjab-lang/jj/ast"
	"github.com/jibjab-lang/jj/diag"
	"github.com/jibjab-lang/jj/langdef"
	"github.com/jibjab-lang/jj/lexer"
	"github.com/jibjab-lang/jj/token"
)

// Parser consumes a buffered token vector and a language definition and
// produces an AST.
type Parser struct {
	toks     []token.Token
	pos      int
	ld       *langdef.Definition
	filename string
}

// New creates a Parser over toks, filtering out newline tokens (the AST
// carries no layout information).
func New(toks []token.Token, ld *langdef.Definition, filename string) *Parser {
	filtered := make([]token.Token, 0, len(toks))
	for _, t := range toks {
		if t.Type != token.Newline {
			filtered = append(filtered, t)
		}
	}
	return &Parser{toks: filtered, ld: ld, filename: filename}
}

// Parse runs New(toks, ld, filename).Program().
func Parse(toks []token.Token, ld *langdef.Definition, filename string) (*ast.Program, error) {
	return New(toks, ld, filename).Program()
}

// Program parses every top-level statement until EOF.
func (p *Parser) Program() (*ast.Program, error) {
	prog := &ast.Program{}
	for !p.atEOF() {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
	}
	return prog, nil
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Type: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekNext() token.Token {
	if p.pos+1 >= len(p.toks) {
		return token.Token{Type: token.EOF}
	}
	return p.toks[p.pos+1]
}

func (p *Parser) atEOF() bool { return p.cur().Type == token.EOF }

func (p *Parser) check(t token.Type) bool { return p.cur().Type == t }

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) match(t token.Type) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(t token.Type) (token.Token, error) {
	if !p.check(t) {
		return token.Token{}, p.errUnexpected(t)
	}
	return p.advance(), nil
}

func (p *Parser) pos_() diag.Position {
	c := p.cur()
	return diag.Position{Filename: p.filename, Line: c.Line, Column: c.Col}
}

func (p *Parser) errUnexpected(want token.Type) error {
	got := p.cur()
	msg := "expected " + want.String() + ", got " + got.Type.String()
	if got.Value != nil {
		msg += fmt.Sprintf(" (%v)", got.Value)
	}
	return diag.New(diag.Position{Filename: p.filename, Line: got.Line, Column: got.Col},
		diag.KindUnexpectedToken, msg)
}

func (p *Parser) errHere(kind diag.Kind, msg string) error {
	c := p.cur()
	return diag.New(diag.Position{Filename: p.filename, Line: c.Line, Column: c.Col}, kind, msg)
}

// parseBlockUntil parses statements until the current token's type is
// one of terminators, or EOF. The terminator itself is left unconsumed
// for the caller.
func (p *Parser) parseBlockUntil(terminators ...token.Type) ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for !p.atEOF() {
		if p.isOneOf(terminators...) {
			return stmts, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (p *Parser) isOneOf(types ...token.Type) bool {
	cur := p.cur().Type
	for _, t := range types {
		if cur == t {
			return true
		}
	}
	return false
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch p.cur().Type {
	case token.KwPrint:
		return p.parsePrintOrLog(false)
	case token.KwLog:
		return p.parsePrintOrLog(true)
	case token.KwSnag:
		return p.parseVarDecl()
	case token.BlockLoop:
		return p.parseLoop()
	case token.BlockWhen:
		return p.parseWhen()
	case token.BlockMorph:
		return p.parseMorph()
	case token.KwYeet:
		return p.parseYeetOrThrow(false)
	case token.KwThrow:
		return p.parseYeetOrThrow(true)
	case token.KwEnum:
		return p.parseEnumDef()
	case token.KwTry:
		return p.parseTry()
	default:
		return nil, p.errHere(diag.KindUnrecognizedStatement,
			"no statement begins with "+p.cur().Type.String())
	}
}

// parsePrintOrLog handles "KW { label } :: emit ( expr )" for both
// print and log. The brace group is a free-form label and is discarded.
func (p *Parser) parsePrintOrLog(isLog bool) (ast.Stmt, error) {
	pos := p.pos_()
	p.advance() // print/log keyword
	if p.match(token.LBrace) {
		for !p.check(token.RBrace) && !p.atEOF() {
			p.advance()
		}
		if _, err := p.expect(token.RBrace); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Action); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SynEmit); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	if isLog {
		return &ast.LogStmt{Expr: expr, Pos: pos}, nil
	}
	return &ast.PrintStmt{Expr: expr, Pos: pos}, nil
}

// parseVarDecl handles "snag { name } :: val ( expr )".
func (p *Parser) parseVarDecl() (ast.Stmt, error) {
	pos := p.pos_()
	p.advance() // snag
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Action); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SynVal); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return &ast.VarDecl{Name: nameTok.Value.(string), Value: value, Pos: pos}, nil
}

// parseYeetOrThrow handles "KW { expr }" for both return and throw.
func (p *Parser) parseYeetOrThrow(isThrow bool) (ast.Stmt, error) {
	pos := p.pos_()
	p.advance() // yeet/kaboom
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	if isThrow {
		return &ast.ThrowStmt{Value: expr, Pos: pos}, nil
	}
	return &ast.ReturnStmt{Value: expr, Pos: pos}, nil
}

// parseEnumDef handles "~>enum { name } :: cases ( id, id, … )".
func (p *Parser) parseEnumDef() (ast.Stmt, error) {
	pos := p.pos_()
	p.advance() // enum
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Action); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SynCases); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var cases []string
	for {
		if p.check(token.RParen) {
			break
		}
		caseTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		name := caseTok.Value.(string)
		if seen[name] {
			return nil, p.errHere(diag.KindDuplicateEnumCase, "duplicate enum case: "+name)
		}
		seen[name] = true
		cases = append(cases, name)
		if !p.match(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return &ast.EnumDef{Name: nameTok.Value.(string), Cases: cases, Pos: pos}, nil
}

// parseTry handles "try ... [oops {ident}? ...] end" where try/oops/end
// are bare block tokens already emitted whole by the lexer, so the
// statements between them are parsed at the ordinary statement level.
func (p *Parser) parseTry() (ast.Stmt, error) {
	pos := p.pos_()
	p.advance() // try
	tryBody, err := p.parseBlockUntil(token.KwOops, token.KwEnd)
	if err != nil {
		return nil, err
	}
	var catchBody []ast.Stmt
	var catchVar string
	if p.match(token.KwOops) {
		if p.check(token.Ident) {
			catchVar = p.advance().Value.(string)
		}
		catchBody, err = p.parseBlockUntil(token.KwEnd)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.KwEnd); err != nil {
		return nil, err
	}
	return &ast.TryStmt{TryBody: tryBody, CatchBody: catchBody, CatchVar: catchVar, Pos: pos}, nil
}

// parseWhen handles the block-open token's captured raw text as a
// single condition expression, then the ordinary then/else bodies.
func (p *Parser) parseWhen() (ast.Stmt, error) {
	pos := p.pos_()
	tok := p.advance() // BlockWhen, Value holds the captured condition text
	cond, err := p.parseSubExpr(tok.Value.(string))
	if err != nil {
		return nil, err
	}
	thenBody, err := p.parseBlockUntil(token.KwElse, token.KwEnd)
	if err != nil {
		return nil, err
	}
	var elseBody []ast.Stmt
	if p.match(token.KwElse) {
		elseBody, err = p.parseBlockUntil(token.KwEnd)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.KwEnd); err != nil {
		return nil, err
	}
	return &ast.IfStmt{Condition: cond, Then: thenBody, Else: elseBody, Pos: pos}, nil
}

// parseLoop handles the block-open token's captured raw text, which is
// one of "var:start..end" (numeric range), "var:collection" (collection
// iteration), or a bare condition expression (while-style).
func (p *Parser) parseLoop() (ast.Stmt, error) {
	pos := p.pos_()
	tok := p.advance() // BlockLoop
	spec := tok.Value.(string)

	toks, err := lexer.Lex(spec, p.filename, p.ld)
	if err != nil {
		return nil, err
	}
	sub := New(toks, p.ld, p.filename)

	loop := &ast.LoopStmt{Var: "_", Pos: pos}
	if sub.check(token.Ident) && sub.peekNext().Type == token.Colon {
		varTok := sub.advance()
		sub.advance() // colon
		loop.Var = varTok.Value.(string)
		first, err := sub.parseExpr()
		if err != nil {
			return nil, err
		}
		if sub.match(token.Range) {
			end, err := sub.parseExpr()
			if err != nil {
				return nil, err
			}
			loop.Start, loop.End = first, end
		} else {
			loop.Collection = first
		}
	} else {
		cond, err := sub.parseExpr()
		if err != nil {
			return nil, err
		}
		loop.Condition = cond
	}

	body, err := p.parseBlockUntil(token.KwEnd)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwEnd); err != nil {
		return nil, err
	}
	loop.Body = body
	return loop, nil
}

// parseMorph handles the block-open token's captured raw text, which
// must match "name(param, param, …)".
func (p *Parser) parseMorph() (ast.Stmt, error) {
	pos := p.pos_()
	tok := p.advance() // BlockMorph
	name, params, err := parseMorphSignature(tok.Value.(string))
	if err != nil {
		return nil, diag.New(diag.Position{Filename: p.filename, Line: tok.Line, Column: tok.Col},
			diag.KindInvalidFunctionSignature, err.Error())
	}
	body, err := p.parseBlockUntil(token.KwEnd)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwEnd); err != nil {
		return nil, err
	}
	return &ast.FuncDef{Name: name, Params: params, Body: body, Pos: pos}, nil
}

func parseMorphSignature(text string) (string, []string, error) {
	idx := strings.IndexByte(text, '(')
	if idx < 0 || !strings.HasSuffix(strings.TrimSpace(text), ")") {
		return "", nil, &signatureError{text}
	}
	name := strings.TrimSpace(text[:idx])
	if name == "" {
		return "", nil, &signatureError{text}
	}
	inner := strings.TrimSpace(text[idx+1:])
	inner = strings.TrimSuffix(inner, ")")
	inner = strings.TrimSpace(inner)
	var params []string
	if inner != "" {
		for _, part := range strings.Split(inner, ",") {
			params = append(params, strings.TrimSpace(part))
		}
	}
	return name, params, nil
}

type signatureError struct{ text string }

func (e *signatureError) Error() string {
	return "malformed function signature: " + e.text
}

// parseSubExpr re-lexes and parses text as a single standalone
// expression, used for when's captured condition text.
func (p *Parser) parseSubExpr(text string) (ast.Expr, error) {
	toks, err := lexer.Lex(text, p.filename, p.ld)
	if err != nil {
		return nil, err
	}
	sub := New(toks, p.ld, p.filename)
	return sub.parseExpr()
}

// --- expression grammar: or -> and -> equality -> comparison ->
// additive -> multiplicative -> unary -> primary ---

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.check(token.OpOr) {
		pos := p.pos_()
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Left: left, Right: right, Op: p.ld.Operators.Or.Emit, Pos: pos}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.check(token.OpAnd) {
		pos := p.pos_()
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Left: left, Right: right, Op: p.ld.Operators.And.Emit, Pos: pos}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.check(token.OpEq) || p.check(token.OpNeq) {
		pos := p.pos_()
		op := p.ld.Operators.Eq.Emit
		if p.cur().Type == token.OpNeq {
			op = p.ld.Operators.Neq.Emit
		}
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Left: left, Right: right, Op: op, Pos: pos}
	}
	return left, nil
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.isOneOf(token.OpLte, token.OpLt, token.OpGte, token.OpGt) {
		pos := p.pos_()
		op := p.emitForComparisonTok(p.cur().Type)
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Left: left, Right: right, Op: op, Pos: pos}
	}
	return left, nil
}

func (p *Parser) emitForComparisonTok(t token.Type) string {
	switch t {
	case token.OpLte:
		return p.ld.Operators.Lte.Emit
	case token.OpLt:
		return p.ld.Operators.Lt.Emit
	case token.OpGte:
		return p.ld.Operators.Gte.Emit
	case token.OpGt:
		return p.ld.Operators.Gt.Emit
	}
	return ""
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.check(token.OpAdd) || p.check(token.OpSub) {
		pos := p.pos_()
		op := p.ld.Operators.Add.Emit
		if p.cur().Type == token.OpSub {
			op = p.ld.Operators.Sub.Emit
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Left: left, Right: right, Op: op, Pos: pos}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOneOf(token.OpMul, token.OpDiv, token.OpMod) {
		pos := p.pos_()
		op := p.emitForMulTok(p.cur().Type)
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Left: left, Right: right, Op: op, Pos: pos}
	}
	return left, nil
}

func (p *Parser) emitForMulTok(t token.Type) string {
	switch t {
	case token.OpMul:
		return p.ld.Operators.Mul.Emit
	case token.OpDiv:
		return p.ld.Operators.Div.Emit
	case token.OpMod:
		return p.ld.Operators.Mod.Emit
	}
	return ""
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.check(token.OpNot) {
		pos := p.pos_()
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Operand: operand, Op: p.ld.Operators.Not.Emit, Pos: pos}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	pos := p.pos_()
	switch p.cur().Type {
	case token.LParen:
		p.advance()
		first, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.match(token.Comma) {
			elems := []ast.Expr{first}
			for !p.check(token.RParen) {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				elems = append(elems, e)
				if !p.match(token.Comma) {
					break
				}
			}
			if _, err := p.expect(token.RParen); err != nil {
				return nil, err
			}
			return &ast.TupleLiteral{Elements: elems, Pos: pos}, nil
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return first, nil

	case token.LBracket:
		p.advance()
		var elems []ast.Expr
		for !p.check(token.RBracket) {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if !p.match(token.Comma) {
				break
			}
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return nil, err
		}
		return &ast.ArrayLiteral{Elements: elems, Pos: pos}, nil

	case token.LBrace:
		p.advance()
		if p.match(token.RBrace) {
			return &ast.DictLiteral{Pos: pos}, nil
		}
		var pairs []ast.DictPair
		for {
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Colon); err != nil {
				return nil, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, ast.DictPair{Key: key, Value: val})
			if !p.match(token.Comma) {
				break
			}
		}
		if _, err := p.expect(token.RBrace); err != nil {
			return nil, err
		}
		return &ast.DictLiteral{Pairs: pairs, Pos: pos}, nil

	case token.Number:
		p.advance()
		return numberLiteral(p.toks[p.pos-1], pos), nil

	case token.String:
		tok := p.advance()
		return &ast.Literal{Kind: ast.LitString, Str: tok.Value.(string), Pos: pos}, nil

	case token.InterpString:
		tok := p.advance()
		parts := tok.Value.([]token.InterpPart)
		out := make([]ast.InterpPart, len(parts))
		for i, pt := range parts {
			out[i] = ast.InterpPart{IsVariable: pt.IsVariable, Text: pt.Text}
		}
		return &ast.StringInterpolation{Parts: out, Pos: pos}, nil

	case token.KwTrue:
		p.advance()
		return &ast.Literal{Kind: ast.LitBool, Bool: true, Pos: pos}, nil

	case token.KwFalse:
		p.advance()
		return &ast.Literal{Kind: ast.LitBool, Bool: false, Pos: pos}, nil

	case token.KwNil:
		p.advance()
		return &ast.Literal{Kind: ast.LitNone, Pos: pos}, nil

	case token.KwInput:
		p.advance()
		if _, err := p.expect(token.Action); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SynGrab); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.LParen); err != nil {
			return nil, err
		}
		prompt, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return &ast.InputExpr{Prompt: prompt, Pos: pos}, nil

	case token.KwInvoke:
		p.advance()
		if _, err := p.expect(token.LBrace); err != nil {
			return nil, err
		}
		nameTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBrace); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Action); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SynWith); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.LParen); err != nil {
			return nil, err
		}
		var args []ast.Expr
		for !p.check(token.RParen) {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if !p.match(token.Comma) {
				break
			}
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return &ast.FuncCall{Name: nameTok.Value.(string), Args: args, Pos: pos}, nil

	case token.Ident:
		tok := p.advance()
		var expr ast.Expr = &ast.VarRef{Name: tok.Value.(string), Pos: pos}
		for p.check(token.LBracket) {
			idxPos := p.pos_()
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket); err != nil {
				return nil, err
			}
			expr = &ast.IndexAccess{Container: expr, Index: idx, Pos: idxPos}
		}
		return expr, nil

	default:
		return nil, p.errUnexpected(token.Ident)
	}
}

func numberLiteral(tok token.Token, pos diag.Position) ast.Expr {
	nv := tok.Value.(token.NumberValue)
	tag := ast.NumTag(nv.Tag)
	if tag.IsFloat() {
		return &ast.Literal{Kind: ast.LitDouble, FloatVal: nv.FloatVal, NumTag: tag, Pos: pos}
	}
	return &ast.Literal{Kind: ast.LitInt, IntVal: nv.IntVal, NumTag: tag, Pos: pos}
}
