package native

import "encoding/binary"

// Mach-O structural constants for a statically linked ARM64 executable.
// There is no dynamic linker work to do here — the program never calls
// into a dylib — but macOS's loader still requires the load commands a
// normal linked executable would carry, so every one of them is emitted
// with the smallest valid payload.
const (
	machMagic64 = 0xfeedfacf
	cpuTypeARM64 = 0x0100000c
	cpuSubtypeARM64All = 0x00000002
	mhExecute = 0x2

	mhNoUndefs = 0x1
	mhDyldLink = 0x4
	mhTwoLevel = 0x80
	mhPIE      = 0x200000

	lcSegment64         = 0x19
	lcSymtab            = 0x2
	lcLoadDylinker      = 0xe
	lcMain              = 0x80000028
	lcBuildVersion      = 0x32
	lcDyldChainedFixups = 0x80000034
	lcDyldExportsTrie   = 0x80000033

	vmProtRead    = 0x1
	vmProtWrite   = 0x2
	vmProtExecute = 0x4

	pageSize = 0x4000

	textVMBase = 0x100000000
)

func roundUpPage(n int) int {
	if n%pageSize == 0 {
		return n
	}
	return n + (pageSize - n%pageSize)
}

// Assemble lays out code and data into a full Mach-O executable image:
// __PAGEZERO, __TEXT (with __text and __cstring), __LINKEDIT, and the
// nine load commands a modern arm64 macOS loader expects. mainOffset is
// the byte offset of the "_main" label within code.
func Assemble(code, data []byte, mainOffset uint32) ([]byte, error) {
	const headerSize = 32
	const ncmds = 9

	segCmdSize := func(nsects int) int { return 72 + 80*nsects }
	sizeofcmds := segCmdSize(0) /* PAGEZERO */ +
		segCmdSize(2) /* TEXT: __text, __cstring */ +
		segCmdSize(0) /* LINKEDIT */ +
		32 /* LC_LOAD_DYLINKER */ +
		24 /* LC_BUILD_VERSION */ +
		24 /* LC_SYMTAB */ +
		16 /* LC_DYLD_CHAINED_FIXUPS */ +
		16 /* LC_DYLD_EXPORTS_TRIE */ +
		24 /* LC_MAIN */

	textSectionOff := headerSize + sizeofcmds
	cstringOff := alignUp(textSectionOff+len(code), 8)
	textUsed := cstringOff + len(data)
	textFilesize := roundUpPage(textUsed)

	linkeditFileOff := textFilesize
	stringTable := []byte{0x00}
	chainedFixups := buildChainedFixupsBlob()
	exportsTrie := []byte{0x00, 0x00}

	symOff := linkeditFileOff
	strOff := symOff
	chainedFixupsOff := strOff + len(stringTable)
	exportsTrieOff := chainedFixupsOff + len(chainedFixups)
	linkeditUsed := (exportsTrieOff + len(exportsTrie)) - linkeditFileOff
	linkeditVMSize := roundUpPage(linkeditUsed)

	textAddr := uint64(textVMBase)
	textSectionAddr := textAddr + uint64(textSectionOff)
	cstringAddr := textAddr + uint64(cstringOff)
	linkeditAddr := textAddr + uint64(textFilesize)

	codeFixed := applyDataFixups(code, textSectionAddr, cstringAddr)

	buf := make([]byte, linkeditFileOff+linkeditUsed)

	w := &writer{buf: buf}
	w.u32(machMagic64)
	w.u32(cpuTypeARM64)
	w.u32(cpuSubtypeARM64All)
	w.u32(mhExecute)
	w.u32(ncmds)
	w.u32(uint32(sizeofcmds))
	w.u32(mhNoUndefs | mhDyldLink | mhTwoLevel | mhPIE)
	w.u32(0) // reserved

	// __PAGEZERO: the non-executable, unmapped guard region covering
	// everything below the image base. No sections, no file content.
	writeSegment64(w, "__PAGEZERO", 0, textVMBase, 0, 0, 0, 0, 0, nil)

	// __TEXT: the Mach-O header, load commands, code and string data all
	// live in one file-backed, page-rounded segment.
	writeSegment64(w, "__TEXT", textAddr, uint64(textFilesize), 0, uint64(textFilesize),
		vmProtRead|vmProtExecute, vmProtRead|vmProtExecute, 0, []section64{
		{name: "__text", segname: "__TEXT", addr: textSectionAddr, size: uint64(len(code)),
			offset: uint32(textSectionOff), align: 2, flags: 0x80000400 /* S_ATTR_PURE_INSTRUCTIONS|S_ATTR_SOME_INSTRUCTIONS */},
		{name: "__cstring", segname: "__TEXT", addr: cstringAddr, size: uint64(len(data)),
			offset: uint32(cstringOff), align: 0, flags: 0x2 /* S_CSTRING_LITERALS */},
	})

	// __LINKEDIT: string table, the (empty) chained-fixups blob, and the
	// (empty) exports trie the loader still expects to find.
	writeSegment64(w, "__LINKEDIT", linkeditAddr, uint64(linkeditVMSize),
		uint64(linkeditFileOff), uint64(linkeditUsed),
		vmProtRead, vmProtRead, 0, nil)

	writeDylinker(w)
	writeBuildVersion(w)
	writeSymtab(w, uint32(symOff), uint32(strOff), uint32(len(stringTable)))
	writeLinkeditData(w, lcDyldChainedFixups, uint32(chainedFixupsOff), uint32(len(chainedFixups)))
	writeLinkeditData(w, lcDyldExportsTrie, uint32(exportsTrieOff), uint32(len(exportsTrie)))
	writeMain(w, uint64(textSectionOff)+uint64(mainOffset))

	copy(buf[textSectionOff:], codeFixed)
	copy(buf[cstringOff:], data)
	copy(buf[strOff:], stringTable)
	copy(buf[chainedFixupsOff:], chainedFixups)
	copy(buf[exportsTrieOff:], exportsTrie)

	return buf, nil
}

func alignUp(n, align int) int {
	if n%align == 0 {
		return n
	}
	return n + (align - n%align)
}

// buildChainedFixupsBlob emits the smallest valid dyld_chained_fixups
// payload: a header describing zero segments needing fixups and zero
// imports, since the native backend never references a dylib symbol.
func buildChainedFixupsBlob() []byte {
	const headerLen = 28
	const startsLen = 4 // seg_count = 0, no seg_info_offset entries
	blob := make([]byte, headerLen+startsLen)
	binary.LittleEndian.PutUint32(blob[0:4], 0)           // fixups_version
	binary.LittleEndian.PutUint32(blob[4:8], headerLen)   // starts_offset
	binary.LittleEndian.PutUint32(blob[8:12], uint32(len(blob))) // imports_offset (empty)
	binary.LittleEndian.PutUint32(blob[12:16], uint32(len(blob))) // symbols_offset (empty)
	binary.LittleEndian.PutUint32(blob[16:20], 0) // imports_count
	binary.LittleEndian.PutUint32(blob[20:24], 1) // imports_format: DYLD_CHAINED_IMPORT
	binary.LittleEndian.PutUint32(blob[24:28], 0) // symbols_format: uncompressed
	binary.LittleEndian.PutUint32(blob[28:32], 0) // seg_count = 0
	return blob
}

type writer struct {
	buf []byte
	off int
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *writer) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:], v)
	w.off += 8
}

func (w *writer) name16(s string) {
	var b [16]byte
	copy(b[:], s)
	copy(w.buf[w.off:w.off+16], b[:])
	w.off += 16
}

func (w *writer) bytes(b []byte) {
	copy(w.buf[w.off:], b)
	w.off += len(b)
}

type section64 struct {
	name, segname string
	addr, size    uint64
	offset        uint32
	align         uint32
	flags         uint32
}

func writeSegment64(w *writer, name string, vmaddr, vmsize, fileoff, filesize uint64,
	maxprot, initprot uint32, flags uint32, sects []section64) {
	cmdsize := segCmdSizeOf(len(sects))
	w.u32(lcSegment64)
	w.u32(uint32(cmdsize))
	w.name16(name)
	w.u64(vmaddr)
	w.u64(vmsize)
	w.u64(fileoff)
	w.u64(filesize)
	w.u32(maxprot)
	w.u32(initprot)
	w.u32(uint32(len(sects)))
	w.u32(flags)
	for _, s := range sects {
		w.name16(s.name)
		w.name16(s.segname)
		w.u64(s.addr)
		w.u64(s.size)
		w.u32(s.offset)
		w.u32(s.align)
		w.u32(0) // reloff
		w.u32(0) // nreloc
		w.u32(s.flags)
		w.u32(0) // reserved1
		w.u32(0) // reserved2
		w.u32(0) // reserved3
	}
}

func segCmdSizeOf(nsects int) int { return 72 + 80*nsects }

func writeDylinker(w *writer) {
	const path = "/usr/lib/dyld"
	raw := append([]byte(path), 0)
	cmdsize := alignUp(12+len(raw), 8)
	w.u32(lcLoadDylinker)
	w.u32(uint32(cmdsize))
	w.u32(12) // name offset
	padded := make([]byte, cmdsize-12)
	copy(padded, raw)
	w.bytes(padded)
}

func writeBuildVersion(w *writer) {
	const platformMacOS = 1
	w.u32(lcBuildVersion)
	w.u32(24)
	w.u32(platformMacOS)
	w.u32(0x000b0000) // minos 11.0.0
	w.u32(0x000e0000) // sdk 14.0.0
	w.u32(0)          // ntools
}

func writeSymtab(w *writer, symoff, stroff, strsize uint32) {
	w.u32(lcSymtab)
	w.u32(24)
	w.u32(symoff)
	w.u32(0) // nsyms
	w.u32(stroff)
	w.u32(strsize)
}

func writeLinkeditData(w *writer, cmd uint32, dataoff, datasize uint32) {
	w.u32(cmd)
	w.u32(16)
	w.u32(dataoff)
	w.u32(datasize)
}

func writeMain(w *writer, entryoff uint64) {
	w.u32(lcMain)
	w.u32(24)
	w.u64(entryoff)
	w.u64(0) // stacksize: 0 means the default
}

// applyDataFixups patches every ADRP/ADD pair now that the final virtual
// addresses of the text and data sections are known. Code was emitted
// with a zero page delta in each ADRP and the raw data-buffer offset in
// the paired ADD's imm12, so the pass scans for ADRPs, skips any not
// followed by an ADD (immediate), and rewrites both words in place on a
// copy of code. ADRP pages are always 4 KiB regardless of the 16 KiB
// Mach-O segment page size.
func applyDataFixups(code []byte, textSectionAddr, cstringAddr uint64) []byte {
	out := append([]byte(nil), code...)
	dataPage := cstringAddr &^ 0xfff
	low12 := uint32(cstringAddr & 0xfff)

	for i := 0; i+8 <= len(out); i += 4 {
		word := getWord(out, i)
		if !isAdrp(word) {
			continue
		}
		next := getWord(out, i+4)
		if !isAddImm64(next) {
			continue
		}

		instrPage := (textSectionAddr + uint64(i)) &^ 0xfff
		pages := uint32((int64(dataPage) - int64(instrPage)) >> 12)
		immlo := pages & 0x3
		immhi := (pages >> 2) & 0x7ffff
		word = (word &^ (uint32(0x3)<<29 | uint32(0x7ffff)<<5)) | (immlo << 29) | (immhi << 5)
		putWord(out, i, word)

		imm := ((next >> 10) & 0xfff) + low12
		next = (next &^ (uint32(0xfff) << 10)) | ((imm & 0xfff) << 10)
		putWord(out, i+4, next)
	}
	return out
}

func getWord(buf []byte, off int) uint32 {
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
}
