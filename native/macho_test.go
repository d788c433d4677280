package native

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDataFixups_SamePage(t *testing.T) {
	var code []byte
	word := func(w uint32) {
		code = append(code, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	word(encAdrp(1, 0, 0))
	word(encAddImm(1, 1, 8))
	word(encRet())

	textAddr := uint64(0x100000220)
	cstringAddr := uint64(0x100000400)
	fixed := applyDataFixups(code, textAddr, cstringAddr)

	// source buffer untouched
	assert.Equal(t, encAdrp(1, 0, 0), getWord(code, 0))

	adrp := getWord(fixed, 0)
	add := getWord(fixed, 4)
	immlo := (adrp >> 29) & 0x3
	immhi := (adrp >> 5) & 0x7ffff
	pageDelta := uint64(immhi<<2|immlo) << 12
	target := (textAddr &^ 0xfff) + pageDelta + uint64((add>>10)&0xfff)
	assert.Equal(t, cstringAddr+8, target)
}

func TestApplyDataFixups_CrossPage(t *testing.T) {
	var code []byte
	word := func(w uint32) {
		code = append(code, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	word(encAdrp(9, 0, 0))
	word(encAddImm(9, 9, 0x10))

	textAddr := uint64(0x100000220)
	cstringAddr := uint64(0x100002010)
	fixed := applyDataFixups(code, textAddr, cstringAddr)

	adrp := getWord(fixed, 0)
	add := getWord(fixed, 4)
	immlo := (adrp >> 29) & 0x3
	immhi := (adrp >> 5) & 0x7ffff
	assert.Equal(t, uint32(2), immhi<<2|immlo) // two 4 KiB pages ahead
	assert.Equal(t, uint32(0x10+0x10), (add>>10)&0xfff)
}

func TestApplyDataFixups_SkipsUnpairedAdrp(t *testing.T) {
	var code []byte
	word := func(w uint32) {
		code = append(code, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	word(encAdrp(1, 0, 0))
	word(encRet()) // not an ADD immediate

	fixed := applyDataFixups(code, 0x100000220, 0x100002000)
	assert.Equal(t, encAdrp(1, 0, 0), getWord(fixed, 0))
	assert.Equal(t, encRet(), getWord(fixed, 4))
}

// machoFile is a minimal load-command walker for assertions.
type machoFile struct {
	buf []byte
}

func (m machoFile) u32(off int) uint32 { return binary.LittleEndian.Uint32(m.buf[off:]) }
func (m machoFile) u64(off int) uint64 { return binary.LittleEndian.Uint64(m.buf[off:]) }

// commands returns (cmd, offset) pairs for each load command.
func (m machoFile) commands() [][2]int {
	var out [][2]int
	off := 32
	n := int(m.u32(16))
	for i := 0; i < n; i++ {
		out = append(out, [2]int{int(m.u32(off)), off})
		off += int(m.u32(off + 4))
	}
	return out
}

func assembleSmall(t *testing.T) machoFile {
	t.Helper()
	code := make([]byte, 8)
	putWord(code, 0, encMovz(0, 0, 0))
	putWord(code, 4, encRet())
	data := []byte{'\n'}
	img, err := Assemble(code, data, 4)
	require.NoError(t, err)
	return machoFile{img}
}

func TestAssemble_Header(t *testing.T) {
	m := assembleSmall(t)
	assert.Equal(t, uint32(machMagic64), m.u32(0))
	assert.Equal(t, uint32(cpuTypeARM64), m.u32(4))
	assert.Equal(t, uint32(cpuSubtypeARM64All), m.u32(8))
	assert.Equal(t, uint32(mhExecute), m.u32(12))
	assert.Equal(t, uint32(9), m.u32(16))
	assert.Equal(t, uint32(mhNoUndefs|mhDyldLink|mhTwoLevel|mhPIE), m.u32(24))
}

func TestAssemble_LoadCommandOrder(t *testing.T) {
	m := assembleSmall(t)
	cmds := m.commands()
	require.Len(t, cmds, 9)
	want := []uint32{
		lcSegment64, lcSegment64, lcSegment64,
		lcLoadDylinker, lcBuildVersion, lcSymtab,
		lcDyldChainedFixups, lcDyldExportsTrie, lcMain,
	}
	for i, w := range want {
		assert.Equal(t, int(w), cmds[i][0], "command %d", i)
	}
}

func TestAssemble_Segments(t *testing.T) {
	m := assembleSmall(t)
	cmds := m.commands()

	// __PAGEZERO: vmaddr 0, vmsize 4 GiB, no file bytes
	pz := cmds[0][1]
	assert.Equal(t, "__PAGEZERO", segName(m.buf, pz))
	assert.Equal(t, uint64(0), m.u64(pz+24))
	assert.Equal(t, uint64(textVMBase), m.u64(pz+32))
	assert.Equal(t, uint64(0), m.u64(pz+48)) // filesize

	// __TEXT at the fixed base with two sections
	txt := cmds[1][1]
	assert.Equal(t, "__TEXT", segName(m.buf, txt))
	assert.Equal(t, uint64(textVMBase), m.u64(txt+24))
	assert.Equal(t, uint32(2), m.u32(txt+64))

	// __LINKEDIT directly after __TEXT's page-rounded file extent
	le := cmds[2][1]
	assert.Equal(t, "__LINKEDIT", segName(m.buf, le))
	textFilesize := m.u64(txt + 48)
	assert.Equal(t, textVMBase+textFilesize, m.u64(le+24))
	assert.Equal(t, textFilesize, m.u64(le+40)) // fileoff
}

func segName(buf []byte, cmdOff int) string {
	raw := buf[cmdOff+8 : cmdOff+24]
	n := 0
	for n < 16 && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}

func TestAssemble_TextSections(t *testing.T) {
	m := assembleSmall(t)
	cmds := m.commands()
	txt := cmds[1][1]
	sect0 := txt + 72
	sect1 := sect0 + 80

	assert.Equal(t, "__text", segName(m.buf, sect0-8)) // sectname at +0 = segName helper shifted
	textAddr := m.u64(sect0 + 32)
	textSize := m.u64(sect0 + 40)
	textOff := m.u32(sect0 + 48)
	assert.Equal(t, uint64(8), textSize)
	assert.Equal(t, textVMBase+uint64(textOff), textAddr)

	// the code bytes land at the recorded offset
	assert.Equal(t, encMovz(0, 0, 0), getWord(m.buf, int(textOff)))
	assert.Equal(t, encRet(), getWord(m.buf, int(textOff)+4))

	cstrAddr := m.u64(sect1 + 32)
	cstrOff := m.u32(sect1 + 48)
	assert.Equal(t, textVMBase+uint64(cstrOff), cstrAddr)
	assert.Equal(t, byte('\n'), m.buf[cstrOff])
}

func TestAssemble_EntryPoint(t *testing.T) {
	m := assembleSmall(t)
	cmds := m.commands()
	lcMainOff := cmds[8][1]
	entry := m.u64(lcMainOff + 8)

	txt := cmds[1][1]
	textOff := m.u32(txt + 72 + 48)
	assert.Equal(t, uint64(textOff)+4, entry)
}

func TestAssemble_BuildVersion(t *testing.T) {
	m := assembleSmall(t)
	cmds := m.commands()
	bv := cmds[4][1]
	assert.Equal(t, uint32(1), m.u32(bv+8))          // platform macOS
	assert.Equal(t, uint32(0x000b0000), m.u32(bv+12)) // minos 11.0
	assert.Equal(t, uint32(0x000e0000), m.u32(bv+16)) // sdk 14.0
}

func TestAssemble_Dylinker(t *testing.T) {
	m := assembleSmall(t)
	cmds := m.commands()
	dy := cmds[3][1]
	nameOff := int(m.u32(dy + 8))
	raw := m.buf[dy+nameOff:]
	end := 0
	for raw[end] != 0 {
		end++
	}
	assert.Equal(t, "/usr/lib/dyld", string(raw[:end]))
}

func TestAssemble_LinkeditBounds(t *testing.T) {
	m := assembleSmall(t)
	cmds := m.commands()

	for _, idx := range []int{6, 7} { // chained fixups, exports trie
		off := cmds[idx][1]
		dataoff := int(m.u32(off + 8))
		datasize := int(m.u32(off + 12))
		assert.Greater(t, datasize, 0)
		assert.LessOrEqual(t, dataoff+datasize, len(m.buf))
	}
}
