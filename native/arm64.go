// Package native compiles a Program directly to an ARM64 Mach-O
// executable: no IR, no external assembler. Code and data are built as
// raw byte buffers; label/branch patching and Mach-O layout happen once
// the full program has been emitted.
//
// Integer division by zero diverges from the interpreter here: the
// emitted sdiv/udiv follow the ARM64 architecture, which defines x/0 as
// 0 with no trap, while the interpreter raises a fatal division-by-zero
// diagnostic for the same program.
package native

// This file holds the individual AArch64 instruction encoders. Each
// returns one little-endian 32-bit word. Bit layouts follow the
// standard AArch64 encoding tables; constant names mirror the
// mnemonic's operand names (Rd, Rn, Rm, imm12, ...).

func encMovz(rd uint32, imm16 uint32, shift uint32) uint32 {
	hw := shift / 16
	return (1 << 31) | (0b10 << 29) | (0b100101 << 23) | (hw << 21) | ((imm16 & 0xffff) << 5) | rd
}

func encMovk(rd uint32, imm16 uint32, shift uint32) uint32 {
	hw := shift / 16
	return (1 << 31) | (0b11 << 29) | (0b100101 << 23) | (hw << 21) | ((imm16 & 0xffff) << 5) | rd
}

func encMovn(rd uint32, imm16 uint32, shift uint32) uint32 {
	hw := shift / 16
	return (1 << 31) | (0b00 << 29) | (0b100101 << 23) | (hw << 21) | ((imm16 & 0xffff) << 5) | rd
}

// encAddImm encodes "add rd, rn, #imm" (64-bit).
func encAddImm(rd, rn uint32, imm12 uint32) uint32 {
	return (1 << 31) | (0 << 30) | (0 << 29) | (0b10001 << 24) | ((imm12 & 0xfff) << 10) | (rn << 5) | rd
}

// encSubImm encodes "sub rd, rn, #imm" (64-bit).
func encSubImm(rd, rn uint32, imm12 uint32) uint32 {
	return (1 << 31) | (1 << 30) | (0 << 29) | (0b10001 << 24) | ((imm12 & 0xfff) << 10) | (rn << 5) | rd
}

// encAddReg / encSubReg / encMulReg / encSdivReg encode the 64-bit
// register-register data processing forms used for binary arithmetic.
func encAddReg(rd, rn, rm uint32) uint32 {
	return (1 << 31) | (0 << 30) | (0 << 29) | (0b01011 << 24) | (rm << 16) | (rn << 5) | rd
}

func encSubReg(rd, rn, rm uint32) uint32 {
	return (1 << 31) | (1 << 30) | (0 << 29) | (0b01011 << 24) | (rm << 16) | (rn << 5) | rd
}

func encMulReg(rd, rn, rm uint32) uint32 {
	// MADD rd, rn, rm, rzr (zr = x31)
	return (1 << 31) | (0b0011011000 << 21) | (rm << 16) | (31 << 10) | (rn << 5) | rd
}

func encSdivReg(rd, rn, rm uint32) uint32 {
	return (1 << 31) | (0b0011010110 << 21) | (rm << 16) | (0b000011 << 10) | (rn << 5) | rd
}

func encMsubReg(rd, rn, rm, ra uint32) uint32 {
	return (1 << 31) | (0b0011011000 << 21) | (rm << 16) | (1 << 15) | (ra << 10) | (rn << 5) | rd
}

func encCmpReg(rn, rm uint32) uint32 {
	// SUBS xzr, rn, rm
	return (1 << 31) | (1 << 30) | (1 << 29) | (0b01011 << 24) | (rm << 16) | (rn << 5) | 31
}

// cond encodes the AArch64 condition field used by b.cond and cset.
type cond uint32

const (
	condEQ cond = 0x0
	condNE cond = 0x1
	condGE cond = 0xA
	condLT cond = 0xB
	condGT cond = 0xC
	condLE cond = 0xD
)

func invert(c cond) cond {
	switch c {
	case condEQ:
		return condNE
	case condNE:
		return condEQ
	case condGE:
		return condLT
	case condLT:
		return condGE
	case condGT:
		return condLE
	case condLE:
		return condGT
	}
	return c
}

func encCset(rd uint32, c cond) uint32 {
	inv := invert(c)
	return (1 << 31) | (0b0011010100 << 21) | (31 << 16) | (uint32(inv) << 12) | (1 << 10) | (31 << 5) | rd
}

// encB/encBl encode unconditional branch/branch-with-link with a
// 26-bit PC-relative word offset, patched in after layout.
func encB(wordOffset int32) uint32 {
	return (0b000101 << 26) | (uint32(wordOffset) & 0x3ffffff)
}

func encBl(wordOffset int32) uint32 {
	return (0b100101 << 26) | (uint32(wordOffset) & 0x3ffffff)
}

// encBCond encodes b.<cond> with a 19-bit PC-relative word offset.
func encBCond(c cond, wordOffset int32) uint32 {
	return (0b01010100 << 24) | ((uint32(wordOffset) & 0x7ffff) << 5) | uint32(c)
}

func encRet() uint32 {
	return (0b1101011001011111000000 << 10) | (30 << 5)
}

func encSvc(imm16 uint32) uint32 {
	return (0b11010100000 << 21) | ((imm16 & 0xffff) << 5) | 0b00001
}

// encStpPre/encLdpPost encode store pair (64-bit, pre-index) and load
// pair (64-bit, post-index), used for the function prologue/epilogue.
func encStpPre(rt, rt2, rn uint32, imm7 int32) uint32 {
	return (0b10 << 30) | (0b101 << 27) | (0b0 << 26) | (0b011 << 23) | (1 << 24) |
		((uint32(imm7/8) & 0x7f) << 15) | (rt2 << 10) | (rn << 5) | rt
}

func encLdpPost(rt, rt2, rn uint32, imm7 int32) uint32 {
	return (0b10 << 30) | (0b101 << 27) | (0b0 << 26) | (0b001 << 23) | (1 << 22) |
		((uint32(imm7/8) & 0x7f) << 15) | (rt2 << 10) | (rn << 5) | rt
}

// encSturX/encLdurX encode unscaled 64-bit store/load (for frame-slot
// access; offsets are not guaranteed 8-aligned at small magnitudes). The
// opc field (load vs store) lives at bits 23:22, not 25:24 — easy to get
// wrong since a store's opc is all-zero either way.
func encSturX(rt, rn uint32, imm9 int32) uint32 {
	return (0b11 << 30) | (0b111 << 27) | (0b0 << 26) | (0b00 << 24) | ((uint32(imm9) & 0x1ff) << 12) | (rn << 5) | rt
}

func encLdurX(rt, rn uint32, imm9 int32) uint32 {
	return (0b11 << 30) | (0b111 << 27) | (0b0 << 26) | (0b00 << 24) | (0b01 << 22) | ((uint32(imm9) & 0x1ff) << 12) | (rn << 5) | rt
}

func encSturD(rt, rn uint32, imm9 int32) uint32 {
	return (0b11 << 30) | (0b111 << 27) | (0b1 << 26) | (0b00 << 24) | ((uint32(imm9) & 0x1ff) << 12) | (rn << 5) | rt
}

func encLdurD(rt, rn uint32, imm9 int32) uint32 {
	return (0b11 << 30) | (0b111 << 27) | (0b1 << 26) | (0b00 << 24) | (0b01 << 22) | ((uint32(imm9) & 0x1ff) << 12) | (rn << 5) | rt
}

// encSturB/encLdurB are the byte-sized (size=00) unscaled store/load,
// used by the digit-buffer routines in print.go.
func encSturB(rt, rn uint32, imm9 int32) uint32 {
	return (0b111 << 27) | ((uint32(imm9) & 0x1ff) << 12) | (rn << 5) | rt
}

func encLdurB(rt, rn uint32, imm9 int32) uint32 {
	return (0b111 << 27) | (0b01 << 22) | ((uint32(imm9) & 0x1ff) << 12) | (rn << 5) | rt
}

// encCmpImm encodes "cmp rn, #imm" (64-bit) as "subs xzr, rn, #imm".
func encCmpImm(rn uint32, imm12 uint32) uint32 {
	return (1 << 31) | (1 << 30) | (1 << 29) | (0b10001 << 24) | ((imm12 & 0xfff) << 10) | (rn << 5) | 31
}

// encMovReg encodes "mov rd, rn" (64-bit) as "orr rd, xzr, rn". Register
// 31 here is the zero register, never sp; moves involving sp go through
// encMovFromSP.
func encMovReg(rd, rn uint32) uint32 {
	return (1 << 31) | (0b01 << 29) | (0b01010 << 24) | (rn << 16) | (31 << 5) | rd
}

// encMovFromSP encodes "mov rd, sp" as "add rd, sp, #0", since the ORR
// form would read the zero register instead.
func encMovFromSP(rd uint32) uint32 {
	return encAddImm(rd, rSP, 0)
}

// encAdrp encodes the PAGE-relative address placeholder; immhi/immlo
// are filled in by the fix-up pass once the data section's address is
// known.
func encAdrp(rd uint32, immhi uint32, immlo uint32) uint32 {
	return (1 << 31) | ((immlo & 0x3) << 29) | (0b10000 << 24) | ((immhi & 0x7ffff) << 5) | rd
}

func isAdrp(word uint32) bool {
	return word&0x9F000000 == 0x90000000
}

// encUdivReg / encFcvtzs / encScvtf / encFmovRegToD / encFaddD /
// encFsubD / encFmulD / encFdivD / encFcmpD round out the float-path
// helpers used by print_float and float-typed arithmetic.
func encUdivReg(rd, rn, rm uint32) uint32 {
	return (1 << 31) | (0b0011010110 << 21) | (rm << 16) | (0b000010 << 10) | (rn << 5) | rd
}

func encFcvtzs(rd, rn uint32) uint32 {
	// FCVTZS Xd, Dn (type=01 for double, rmode=11, opcode=000)
	return (0b1001111001111000000000 << 10) | (rn << 5) | rd
}

func encScvtf(rd, rn uint32) uint32 {
	// SCVTF Dd, Xn (type=01 for double, rmode=00, opcode=010)
	return (0b1001111001100010000000 << 10) | (rn << 5) | rd
}

func encFmovRegToD(rd, rn uint32) uint32 {
	return (0b0001111001100000010000 << 10) | (rn << 5) | rd
}

func encFaddD(rd, rn, rm uint32) uint32 {
	return (0b0001111001100000001010 << 10) | (rm << 16) | (rn << 5) | rd
}

func encFsubD(rd, rn, rm uint32) uint32 {
	return (0b0001111001100000001110 << 10) | (rm << 16) | (rn << 5) | rd
}

func encFmulD(rd, rn, rm uint32) uint32 {
	return (0b0001111001100000000010 << 10) | (rm << 16) | (rn << 5) | rd
}

func encFdivD(rd, rn, rm uint32) uint32 {
	return (0b0001111001100000000110 << 10) | (rm << 16) | (rn << 5) | rd
}

func encFcmpD(rn, rm uint32) uint32 {
	return (0b0001111001100000001000 << 10) | (rm << 16) | (rn << 5) | (0 << 3)
}

func encAndReg(rd, rn, rm uint32) uint32 {
	return (1 << 31) | (0b00 << 29) | (0b01010 << 24) | (rm << 16) | (rn << 5) | rd
}

func encOrrReg(rd, rn, rm uint32) uint32 {
	return (1 << 31) | (0b01 << 29) | (0b01010 << 24) | (rm << 16) | (rn << 5) | rd
}

// encEorImmOne encodes "eor rd, rn, #1", used for boolean negation (the
// value model represents false/true as 0/1).
func encEorImmOne(rd, rn uint32) uint32 {
	// EOR (immediate), 64-bit, bitmask #1: N=1 immr=0 imms=0
	return (1 << 31) | (0b10 << 29) | (0b100100 << 23) | (1 << 22) | (0 << 16) | (0 << 10) | (rn << 5) | rd
}

// isAddImm64 recognizes the 64-bit "add rd, rn, #imm" form (shift 0);
// the ADRP fix-up pass only patches pairs whose second word is one.
func isAddImm64(word uint32) bool {
	return word&0xFFC00000 == 0x91000000
}
