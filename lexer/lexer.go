// Package lexer turns JJ source text into a token stream. Every
// string-level comparison is driven by a *langdef.Definition supplied by
// the caller; the lexer never hard-codes a keyword, operator, or
// delimiter spelling.
package lexer

import (
	"strconv"
	"strings"

	"github.com/jibjab-lang/jj/diag"
	"github.com/jibjab-lang/jj/langdef"
	"github.com/jibjab-lang/jj/token"
)

// Lexer scans a single source unit into a buffered token vector.
type Lexer struct {
	src      string
	filename string
	ld       *langdef.Definition
	pos      int
	line     int
	col      int
}

// New creates a Lexer over src. filename is used only for diagnostics.
func New(src, filename string, ld *langdef.Definition) *Lexer {
	return &Lexer{src: src, filename: filename, ld: ld, pos: 0, line: 1, col: 1}
}

// Lex runs the full scan and returns the buffered token vector ending in
// an EOF token, or the first lexical error encountered.
func Lex(src, filename string, ld *langdef.Definition) ([]token.Token, error) {
	l := New(src, filename, ld)
	return l.run()
}

func (l *Lexer) atEnd() bool { return l.pos >= len(l.src) }

func (l *Lexer) peekByte() byte {
	if l.atEnd() {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

// advance consumes n bytes, tracking line/column (none of the literal
// spellings this lexer matches contain a newline, but this stays
// correct even so).
func (l *Lexer) advance(n int) {
	for i := 0; i < n; i++ {
		if l.atEnd() {
			return
		}
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

// match reports whether s occurs at the current position and, if so,
// consumes it.
func (l *Lexer) match(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(l.src[l.pos:], s) {
		l.advance(len(s))
		return true
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool { return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isAlnum(b byte) bool { return isAlpha(b) || isDigit(b) }

func (l *Lexer) run() ([]token.Token, error) {
	var toks []token.Token
	ld := l.ld

	for !l.atEnd() {
		startLine, startCol := l.line, l.col

		// 1. horizontal whitespace
		if b := l.peekByte(); b == ' ' || b == '\t' || b == '\r' {
			l.advance(1)
			continue
		}

		// 2. line comment
		if ld.Literals.Comment != "" && l.match(ld.Literals.Comment) {
			for !l.atEnd() && l.peekByte() != '\n' {
				l.advance(1)
			}
			continue
		}

		// 3. newline
		if l.peekByte() == '\n' {
			l.advance(1)
			toks = append(toks, token.Token{Type: token.Newline, Line: startLine, Col: startCol})
			continue
		}

		// 4. keywords
		if kw, ok := l.matchKeywords(); ok {
			toks = append(toks, token.Token{Type: kw, Line: startLine, Col: startCol})
			continue
		}

		// 5. block tokens
		if tok, ok, err := l.matchBlocks(startLine, startCol); err != nil {
			return nil, err
		} else if ok {
			toks = append(toks, tok)
			continue
		}

		// 6. operators
		if op, ok := l.matchOperators(); ok {
			toks = append(toks, token.Token{Type: op, Line: startLine, Col: startCol})
			continue
		}

		// 7. structural tokens: action, range, colon (in this order)
		if l.match(ld.Structure.Action) {
			toks = append(toks, token.Token{Type: token.Action, Line: startLine, Col: startCol})
			continue
		}
		if l.match(ld.Structure.Range) {
			toks = append(toks, token.Token{Type: token.Range, Line: startLine, Col: startCol})
			continue
		}
		if l.match(ld.Structure.Colon) {
			toks = append(toks, token.Token{Type: token.Colon, Line: startLine, Col: startCol})
			continue
		}

		// 8. punctuation
		if t, ok := punctFor(l.peekByte()); ok {
			l.advance(1)
			toks = append(toks, token.Token{Type: t, Line: startLine, Col: startCol})
			continue
		}

		// 9. numbers
		if ld.Literals.NumberPrefix != "" && l.match(ld.Literals.NumberPrefix) {
			num, err := l.scanNumber(startLine, startCol)
			if err != nil {
				return nil, err
			}
			toks = append(toks, num)
			continue
		}
		if isDigit(l.peekByte()) || (l.peekByte() == '-' && isDigit(l.peekAt(1))) {
			num, err := l.scanNumber(startLine, startCol)
			if err != nil {
				return nil, err
			}
			toks = append(toks, num)
			continue
		}

		// 10. strings
		if ld.Literals.StringDelim != "" && l.match(ld.Literals.StringDelim) {
			tok, err := l.scanString(startLine, startCol)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			continue
		}

		// 11. action words
		if syn, ok := l.matchSyntax(); ok {
			toks = append(toks, token.Token{Type: syn, Line: startLine, Col: startCol})
			continue
		}

		// 12. identifiers
		if isAlpha(l.peekByte()) {
			start := l.pos
			for !l.atEnd() && isAlnum(l.peekByte()) {
				l.advance(1)
			}
			name := l.src[start:l.pos]
			toks = append(toks, token.Token{Type: token.Ident, Value: name, Line: startLine, Col: startCol})
			continue
		}

		// 13. unknown character: skipped, no token emitted
		l.advance(1)
	}

	toks = append(toks, token.Token{Type: token.EOF, Line: l.line, Col: l.col})
	return toks, nil
}

func punctFor(b byte) (token.Type, bool) {
	switch b {
	case '(':
		return token.LParen, true
	case ')':
		return token.RParen, true
	case '[':
		return token.LBracket, true
	case ']':
		return token.RBracket, true
	case '{':
		return token.LBrace, true
	case '}':
		return token.RBrace, true
	case ',':
		return token.Comma, true
	}
	return 0, false
}

func (l *Lexer) matchKeywords() (token.Type, bool) {
	kw := l.ld.Keywords
	for _, pair := range []struct {
		s string
		t token.Type
	}{
		{kw.Print, token.KwPrint}, {kw.Log, token.KwLog}, {kw.Input, token.KwInput},
		{kw.Yeet, token.KwYeet}, {kw.Throw, token.KwThrow}, {kw.Snag, token.KwSnag},
		{kw.Invoke, token.KwInvoke}, {kw.Enum, token.KwEnum}, {kw.Nil, token.KwNil},
		{kw.True, token.KwTrue}, {kw.False, token.KwFalse},
	} {
		if l.match(pair.s) {
			return pair.t, true
		}
	}
	return 0, false
}

// matchBlocks handles both raw-capture block-opens (loop/when/morph) and
// bare block tokens (else/try/oops/end).
func (l *Lexer) matchBlocks(line, col int) (token.Token, bool, error) {
	b := l.ld.Blocks

	for _, pair := range []struct {
		s string
		t token.Type
	}{
		{b.Loop, token.BlockLoop}, {b.When, token.BlockWhen}, {b.Morph, token.BlockMorph},
	} {
		if l.match(pair.s) {
			body, err := l.captureBlockBody(b.BlockSuffix, line, col)
			if err != nil {
				return token.Token{}, false, err
			}
			return token.Token{Type: pair.t, Value: body, Line: line, Col: col}, true, nil
		}
	}

	for _, pair := range []struct {
		s string
		t token.Type
	}{
		{b.Else, token.KwElse}, {b.Try, token.KwTry}, {b.Oops, token.KwOops}, {b.End, token.KwEnd},
	} {
		if l.match(pair.s) {
			return token.Token{Type: pair.t, Line: line, Col: col}, true, nil
		}
	}
	return token.Token{}, false, nil
}

// captureBlockBody scans forward from the current position (immediately
// after a block-open spelling such as "<~loop{") to the next occurrence
// of suffix, returning everything in between as the raw body text.
//
// A raw-capture spelling ends in the brace that introduces the block's
// spec, so the captured text itself ends with the matching close brace
// right before the suffix; that trailing brace is not part of the spec
// text the parser re-lexes, so it is trimmed here, once.
func (l *Lexer) captureBlockBody(suffix string, line, col int) (string, error) {
	start := l.pos
	idx := strings.Index(l.src[l.pos:], suffix)
	if idx < 0 {
		return "", l.errWithPos(diag.KindUnterminatedBlock, "block has no closing suffix", line, col)
	}
	body := l.src[start : start+idx]
	l.advance(idx + len(suffix))
	body = strings.TrimSuffix(body, "}")
	return body, nil
}

func (l *Lexer) errWithPos(kind diag.Kind, msg string, line, col int) error {
	return diag.New(diag.Position{Filename: l.filename, Line: line, Column: col}, kind, msg)
}

func (l *Lexer) matchOperators() (token.Type, bool) {
	ops := l.ld.Operators
	// lte/gte/neq must be tried before lt/gt/eq so the longer lexeme wins.
	order := []struct {
		s string
		t token.Type
	}{
		{ops.Lte.Symbol, token.OpLte}, {ops.Gte.Symbol, token.OpGte}, {ops.Neq.Symbol, token.OpNeq},
		{ops.Lt.Symbol, token.OpLt}, {ops.Gt.Symbol, token.OpGt}, {ops.Eq.Symbol, token.OpEq},
		{ops.Add.Symbol, token.OpAdd}, {ops.Sub.Symbol, token.OpSub}, {ops.Mul.Symbol, token.OpMul},
		{ops.Div.Symbol, token.OpDiv}, {ops.Mod.Symbol, token.OpMod},
		{ops.And.Symbol, token.OpAnd}, {ops.Or.Symbol, token.OpOr}, {ops.Not.Symbol, token.OpNot},
	}
	for _, pair := range order {
		if l.match(pair.s) {
			return pair.t, true
		}
	}
	return 0, false
}

func (l *Lexer) matchSyntax() (token.Type, bool) {
	syn := l.ld.Syntax
	for _, pair := range []struct {
		s string
		t token.Type
	}{
		{syn.Emit, token.SynEmit}, {syn.Grab, token.SynGrab}, {syn.Val, token.SynVal},
		{syn.With, token.SynWith}, {syn.Cases, token.SynCases},
	} {
		if l.match(pair.s) {
			return pair.t, true
		}
	}
	return 0, false
}

var numSuffixes = map[string]token.NumTag{
	"i8": token.TagI8, "i16": token.TagI16, "i32": token.TagI32, "i64": token.TagI64,
	"u": token.TagU, "u8": token.TagU8, "u16": token.TagU16, "u32": token.TagU32, "u64": token.TagU64,
	"f": token.TagF, "d": token.TagD,
}

func (l *Lexer) scanNumber(line, col int) (token.Token, error) {
	start := l.pos
	if l.peekByte() == '-' {
		l.advance(1)
	}
	for isDigit(l.peekByte()) {
		l.advance(1)
	}
	isFloat := false
	if l.peekByte() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		l.advance(1)
		for isDigit(l.peekByte()) {
			l.advance(1)
		}
	}
	text := l.src[start:l.pos]

	suffixStart := l.pos
	if isAlpha(l.peekByte()) {
		for isAlnum(l.peekByte()) {
			l.advance(1)
		}
	}
	suffix := l.src[suffixStart:l.pos]

	tag := token.TagInt
	if isFloat {
		tag = token.TagDouble
	}
	if suffix != "" {
		tagged, ok := numSuffixes[suffix]
		if !ok {
			return token.Token{}, l.errWithPos(diag.KindInvalidNumericSuffix,
				"invalid numeric suffix: "+suffix, line, col)
		}
		tag = tagged
	}

	nv := token.NumberValue{Tag: tag}
	if tag.IsFloat() {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token.Token{}, l.errWithPos(diag.KindInvalidNumericSuffix, "malformed number: "+text, line, col)
		}
		nv.FloatVal = f
	} else {
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return token.Token{}, l.errWithPos(diag.KindInvalidNumericSuffix, "malformed number: "+text, line, col)
		}
		nv.IntVal = i
	}
	return token.Token{Type: token.Number, Value: nv, Line: line, Col: col}, nil
}

func (l *Lexer) scanString(line, col int) (token.Token, error) {
	delim := l.ld.Literals.StringDelim
	var sb strings.Builder
	var parts []token.InterpPart
	hasInterp := false

	for {
		if l.atEnd() {
			return token.Token{}, l.errWithPos(diag.KindUnterminatedString, "unterminated string literal", line, col)
		}
		if l.match(delim) {
			break
		}
		if l.peekByte() == '\\' {
			l.advance(1)
			switch l.peekByte() {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			default:
				sb.WriteByte(l.peekByte())
			}
			l.advance(1)
			continue
		}
		if l.peekByte() == '{' {
			// interpolation placeholder: {name}
			closeIdx := strings.IndexByte(l.src[l.pos:], '}')
			if closeIdx >= 0 {
				name := l.src[l.pos+1 : l.pos+closeIdx]
				if name != "" && isAlpha(name[0]) {
					if sb.Len() > 0 {
						parts = append(parts, token.InterpPart{Text: sb.String()})
						sb.Reset()
					}
					parts = append(parts, token.InterpPart{IsVariable: true, Text: name})
					hasInterp = true
					l.advance(closeIdx + 1)
					continue
				}
			}
			sb.WriteByte(l.peekByte())
			l.advance(1)
			continue
		}
		sb.WriteByte(l.peekByte())
		l.advance(1)
	}

	if !hasInterp {
		return token.Token{Type: token.String, Value: sb.String(), Line: line, Col: col}, nil
	}
	if sb.Len() > 0 {
		parts = append(parts, token.InterpPart{Text: sb.String()})
	}
	return token.Token{Type: token.InterpString, Value: parts, Line: line, Col: col}, nil
}
