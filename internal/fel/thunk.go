package fel

// buildSPLThunk assembles the small relocation thunk executed immediately
// after SPL upload: it walks the swap-buffer table used[], copies each
// buf2 shadow back to its original buf1 location, then branches to the
// SoC's spl_addr. The historical sunxi-tools thunk ships as a prebuilt
// object (fel-to-spl-thunk.S) that wasn't part of the retrieved source, so
// this assembles an equivalent ARM sequence at upload time instead of
// embedding a fixed blob — functionally the same handoff, generated rather
// than precompiled.
//
// Layout at soc.ThunkAddr:
//
//	word 0..codeWords-1   : code (below)
//	word codeWords        : literal: soc.SPLAddr
//	word codeWords+1      : literal: address of the table (self-referential)
//	word codeWords+2 ...  : {buf1, buf2, size} triples, used[] + a zero terminator
func buildSPLThunk(soc *SoCInfo, used []SwapBuffer) []byte {
	const (
		rTable = 0
		rBuf1  = 1
		rBuf2  = 2
		rSize  = 3
		rTmp   = 4
	)

	// Fixed 13-word code body; word indices below are relative to the
	// start of this slice (word 0 == first instruction).
	var code []uint32

	emit := func(w uint32) { code = append(code, w) }
	ldrImm := func(rt, rn, imm uint32) uint32 { return 0xE5900000 | rn<<16 | rt<<12 | imm }
	ldrPost := func(rt, rn, imm uint32) uint32 { return 0xE4900000 | rn<<16 | rt<<12 | imm }
	strPost := func(rt, rn, imm uint32) uint32 { return 0xE4800000 | rn<<16 | rt<<12 | imm }
	cmpImm := func(rn, imm uint32) uint32 { return 0xE3500000 | rn<<16 | imm }
	subsImm := func(rd, rn, imm uint32) uint32 { return 0xE2500000 | rn<<16 | rd<<12 | imm }
	addImm := func(rd, rn, imm uint32) uint32 { return 0xE2800000 | rn<<16 | rd<<12 | imm }
	branch := func(condBase uint32, from, to int) uint32 {
		return condBase | (uint32(to-from-2) & 0x00FFFFFF)
	}
	ldrPC := func(rt uint32, fromWord, literalWord int) uint32 {
		off := (literalWord - fromWord - 2) * 4
		if off < 0 {
			return 0xE51F0000 | rt<<12 | uint32(-off) // U=0: subtract offset
		}
		return 0xE59F0000 | rt<<12 | uint32(off)
	}

	const (
		bUnconditional = 0xEA000000
		bEqual         = 0x0A000000
		bGreater       = 0xCA000000
	)

	// word 0: r0 = &table  (literal at codeWords+1, patched below)
	emit(0) // placeholder, patched after codeWords is known
	// loop: (word 1)
	emit(ldrImm(rBuf1, rTable, 0))
	emit(ldrImm(rBuf2, rTable, 4))
	emit(ldrImm(rSize, rTable, 8))
	emit(cmpImm(rSize, 0))
	emit(0) // beq done, patched below (word 5)
	// copy: (word 6)
	emit(ldrPost(rTmp, rBuf2, 4))
	emit(strPost(rTmp, rBuf1, 4))
	emit(subsImm(rSize, rSize, 4))
	emit(0) // bgt copy, patched below (word 9)
	emit(addImm(rTable, rTable, 12))
	emit(branch(bUnconditional, 11, 1)) // b loop
	// done: (word 12)
	emit(0) // ldr pc, [splAddr literal], patched below

	const (
		wBEQ  = 5
		wCopy = 6
		wBGT  = 9
		wDone = 12
	)
	codeWords := len(code)
	wSPLLit := codeWords
	wTableLit := codeWords + 1
	wTable := codeWords + 2

	code[0] = ldrPC(rTable, 0, wTableLit)
	code[wBEQ] = branch(bEqual, wBEQ, wDone)
	code[wBGT] = branch(bGreater, wBGT, wCopy)
	code[wDone] = ldrPC(15, wDone, wSPLLit)

	code = append(code, soc.SPLAddr)
	code = append(code, soc.ThunkAddr+uint32(wTable)*4)

	for _, sb := range used {
		code = append(code, sb.Buf1, sb.Buf2, sb.Size)
	}
	code = append(code, 0, 0, 0) // terminator, mirrors the trailing zero-size entry in fel.c

	return le32Words(code...)
}
