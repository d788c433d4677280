package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Golden words checked against the AArch64 reference encodings (and the
// output of a known-good assembler for the same mnemonics).
func TestEncoders_GoldenWords(t *testing.T) {
	tests := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"movz x0, #0", encMovz(0, 0, 0), 0xD2800000},
		{"movz x16, #1", encMovz(16, 1, 0), 0xD2800030},
		{"movk x16, #0x200, lsl #16", encMovk(16, 0x0200, 16), 0xF2A04010},
		{"add x0, x0, #1", encAddImm(0, 0, 1), 0x91000400},
		{"sub sp, sp, #256", encSubImm(rSP, rSP, 256), 0xD10403FF},
		{"mov x29, sp", encMovFromSP(rFP), 0x910003FD},
		{"mov x1, x0", encMovReg(1, 0), 0xAA0003E1},
		{"add x0, x0, x1", encAddReg(0, 0, 1), 0x8B010000},
		{"sub x0, x0, x1", encSubReg(0, 0, 1), 0xCB010000},
		{"mul x0, x0, x1", encMulReg(0, 0, 1), 0x9B017C00},
		{"sdiv x0, x0, x1", encSdivReg(0, 0, 1), 0x9AC10C00},
		{"udiv x14, x9, x13", encUdivReg(14, 9, 13), 0x9ACD092E},
		{"msub x0, x2, x1, x0", encMsubReg(0, 2, 1, 0), 0x9B018040},
		{"cmp x0, x1", encCmpReg(0, 1), 0xEB01001F},
		{"cmp x11, #16", encCmpImm(11, 16), 0xF100417F},
		{"cset x0, eq", encCset(0, condEQ), 0x9A9F17E0},
		{"stp x29, x30, [sp, #-16]!", encStpPre(rFP, rLR, rSP, -16), 0xA9BF7BFD},
		{"stp x19, x20, [sp, #-16]!", encStpPre(19, 20, rSP, -16), 0xA9BF53F3},
		{"ldp x29, x30, [sp], #16", encLdpPost(rFP, rLR, rSP, 16), 0xA8C17BFD},
		{"ldp x19, x20, [sp], #16", encLdpPost(19, 20, rSP, 16), 0xA8C153F3},
		{"stur x0, [x29, #-16]", encSturX(0, rFP, -16), 0xF81F03A0},
		{"ldur x0, [x29, #-16]", encLdurX(0, rFP, -16), 0xF85F03A0},
		{"sturb w15, [x11]", encSturB(15, 11, 0), 0x3800016F},
		{"ret", encRet(), 0xD65F03C0},
		{"svc #0x80", encSvc(0x80), 0xD4001001},
		{"b +3", encB(3), 0x14000003},
		{"bl -1", encBl(-1), 0x97FFFFFF},
		{"b.eq +2", encBCond(condEQ, 2), 0x54000040},
		{"adrp x1, 0", encAdrp(1, 0, 0), 0x90000001},
		{"eor x0, x0, #1", encEorImmOne(0, 0), 0xD2400000},
		{"fcvtzs x9, d0", encFcvtzs(9, 0), 0x9E780009},
		{"scvtf d1, x9", encScvtf(1, 9), 0x9E620121},
		{"fmov d1, d0", encFmovRegToD(1, 0), 0x1E604001},
		{"fadd d0, d1, d0", encFaddD(0, 1, 0), 0x1E602820},
		{"fsub d1, d0, d1", encFsubD(1, 0, 1), 0x1E613801},
		{"fmul d1, d1, d2", encFmulD(1, 1, 2), 0x1E620821},
		{"fcmp d0, d1", encFcmpD(0, 1), 0x1E612000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got, "want %08X got %08X", tt.want, tt.got)
		})
	}
}

func TestCondInvert(t *testing.T) {
	pairs := map[cond]cond{
		condEQ: condNE, condNE: condEQ,
		condGE: condLT, condLT: condGE,
		condGT: condLE, condLE: condGT,
	}
	for c, inv := range pairs {
		assert.Equal(t, inv, invert(c))
		assert.Equal(t, c, invert(invert(c)))
	}
}

func TestIsAdrp(t *testing.T) {
	assert.True(t, isAdrp(encAdrp(0, 0, 0)))
	assert.True(t, isAdrp(encAdrp(3, 0x1234, 2)))
	assert.False(t, isAdrp(encAddImm(0, 0, 1)))
	assert.False(t, isAdrp(encMovz(0, 0, 0)))
	assert.False(t, isAdrp(encRet()))
	assert.False(t, isAdrp(0))
}

func TestIsAddImm64(t *testing.T) {
	assert.True(t, isAddImm64(encAddImm(1, 1, 8)))
	assert.True(t, isAddImm64(encAddImm(9, 9, 0xfff)))
	assert.False(t, isAddImm64(encSubImm(1, 1, 8)))
	assert.False(t, isAddImm64(encAdrp(1, 0, 0)))
	assert.False(t, isAddImm64(encCmpImm(1, 8)))
}

func TestBranchPatching(t *testing.T) {
	g := NewGen("test.jj")
	g.placeLabel("start")
	g.recordBranch("start", branchB, 0)
	g.emit(encRet())
	g.recordBranch("after", branchCond, condNE)
	g.placeLabel("after")

	assert.NoError(t, g.resolveBranches())

	// backward branch to its own offset
	assert.Equal(t, encB(0), getWord(g.code, 0))
	// forward conditional: one word ahead
	assert.Equal(t, encBCond(condNE, 1), getWord(g.code, 8))
}

func TestBranchPatching_UnresolvedLabel(t *testing.T) {
	g := NewGen("test.jj")
	g.recordBranch("nowhere", branchBL, 0)
	err := g.resolveBranches()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "nowhere")
}

func TestInternString_Deduplicates(t *testing.T) {
	g := NewGen("test.jj")
	a := g.internString("hello")
	b := g.internString("hello")
	c := g.internString("world")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestInternDouble_AlignedTo8(t *testing.T) {
	g := NewGen("test.jj")
	g.internString("odd") // 3 bytes, forces padding before the double
	off := g.internDouble(10.0)
	assert.Zero(t, off%8)
	assert.Equal(t, off, g.internDouble(10.0))
}
