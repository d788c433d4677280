package native

import "github.com/jibjab-lang/jj/diag"

// branchKind names which instruction form a recorded branch site needs.
type branchKind int

const (
	branchB branchKind = iota
	branchBL
	branchCond
)

// branchSite is one unresolved branch: the byte offset into code where
// the placeholder instruction sits, the label it targets, and which
// encoder to use once the label's offset is known.
type branchSite struct {
	offset int // byte offset into code
	label  string
	kind   branchKind
	cond   cond // meaningful only when kind == branchCond
}

func (g *Gen) recordBranch(label string, kind branchKind, c cond) {
	g.branches = append(g.branches, branchSite{offset: len(g.code), label: label, kind: kind, cond: c})
	g.emit(0) // placeholder, patched in resolveBranches
}

func (g *Gen) placeLabel(name string) {
	g.labels[name] = len(g.code)
}

// resolveBranches patches every recorded branch site now that every
// label's final offset in code is known.
func (g *Gen) resolveBranches() error {
	for _, b := range g.branches {
		target, ok := g.labels[b.label]
		if !ok {
			return &CompileError{diag.New(diag.Position{}, diag.KindUnresolvedBranchLabel,
				"unresolved branch label: "+b.label)}
		}
		wordOffset := int32(target-b.offset) / 4
		var word uint32
		switch b.kind {
		case branchB:
			word = encB(wordOffset)
		case branchBL:
			word = encBl(wordOffset)
		case branchCond:
			word = encBCond(b.cond, wordOffset)
		}
		putWord(g.code, b.offset, word)
	}
	return nil
}

func putWord(buf []byte, offset int, word uint32) {
	buf[offset+0] = byte(word)
	buf[offset+1] = byte(word >> 8)
	buf[offset+2] = byte(word >> 16)
	buf[offset+3] = byte(word >> 24)
}
