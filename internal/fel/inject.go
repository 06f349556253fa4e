package fel

import (
	"context"
	"encoding/binary"
)

// Code injection (C4): the BROM exposes only READ/WRITE/EXECUTE/VERSION, so
// every richer register-level primitive is emulated by assembling a short
// ARM instruction sequence, uploading it to the SoC's scratch area,
// executing it, and reading results back from a fixed offset. Opcodes are
// kept as named constants with their disassembly alongside, per §9, so the
// routines stay auditable without an external assembler.

// lcodeARMWords/lcodeARMSize bound the readl_n/writel_n code template so
// the combined code+data blob never exceeds the 0x100-word scratch budget
// (§4.4).
const (
	lcodeARMWords = 12
	lcodeARMSize  = lcodeARMWords * 4
	lcodeMaxTotal = 0x100
	lcodeMaxWords = lcodeMaxTotal - lcodeARMWords // 244, per §4.4
)

func le32Words(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

// runCode uploads code to the scratch area and executes it.
func (s *Session) runCode(ctx context.Context, scratch uint32, code []byte) error {
	if _, err := s.rawWrite(ctx, scratch, code, nil); err != nil {
		return err
	}
	return s.Execute(ctx, scratch)
}

// ReadCPReg performs an ARM MRC read of coprocessor register
// {coproc, opc1, CRn, CRm, opc2} via the scratch area.
func (s *Session) ReadCPReg(ctx context.Context, coproc, opc1, crn, crm, opc2 uint32) (uint32, error) {
	soc, err := s.SoC(ctx)
	if err != nil {
		return 0, err
	}

	opcode := uint32(0xEE000000) | (1 << 20) | (1 << 4) |
		((opc1 & 7) << 21) |
		((crn & 15) << 16) |
		((coproc & 15) << 8) |
		((opc2 & 7) << 5) |
		(crm & 15)

	code := le32Words(
		opcode,      // mrc  coproc, opc1, r0, crn, crm, opc2
		0xe58f0000,  // str  r0, [pc]
		0xe12fff1e,  // bx   lr
	)
	if err := s.runCode(ctx, soc.ScratchAddr, code); err != nil {
		return 0, err
	}

	val := make([]byte, 4)
	if err := s.Read(ctx, soc.ScratchAddr+12, val); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(val), nil
}

// WriteCPReg performs an ARM MCR write of value to coprocessor register
// {coproc, opc1, CRn, CRm, opc2} via the scratch area.
func (s *Session) WriteCPReg(ctx context.Context, coproc, opc1, crn, crm, opc2, value uint32) error {
	soc, err := s.SoC(ctx)
	if err != nil {
		return err
	}

	opcode := uint32(0xEE000000) |
		((opc1 & 7) << 21) |
		((crn & 15) << 16) |
		((coproc & 15) << 8) |
		((opc2 & 7) << 5) |
		(crm & 15)

	code := le32Words(
		0xe59f000c, // ldr  r0, [pc, #12]
		opcode,     // mcr  coproc, opc1, r0, crn, crm, opc2
		0xf57ff04f, // dsb  sy
		0xf57ff06f, // isb  sy
		0xe12fff1e, // bx   lr
		value,
	)
	return s.runCode(ctx, soc.ScratchAddr, code)
}

// Standard ARM CP15 register selectors, named the way fel.c's
// aw_get_sctlr/aw_get_dacr/aw_get_ttbcr/aw_get_ttbr0 helpers do.
const cp15 = 15

func (s *Session) getSCTLR(ctx context.Context) (uint32, error) {
	return s.ReadCPReg(ctx, cp15, 0, 1, 0, 0)
}
func (s *Session) setSCTLR(ctx context.Context, v uint32) error {
	return s.WriteCPReg(ctx, cp15, 0, 1, 0, 0, v)
}
func (s *Session) getDACR(ctx context.Context) (uint32, error) {
	return s.ReadCPReg(ctx, cp15, 0, 3, 0, 0)
}
func (s *Session) setDACR(ctx context.Context, v uint32) error {
	return s.WriteCPReg(ctx, cp15, 0, 3, 0, 0, v)
}
func (s *Session) getTTBCR(ctx context.Context) (uint32, error) {
	return s.ReadCPReg(ctx, cp15, 0, 2, 0, 2)
}
func (s *Session) setTTBCR(ctx context.Context, v uint32) error {
	return s.WriteCPReg(ctx, cp15, 0, 2, 0, 2, v)
}
func (s *Session) getTTBR0(ctx context.Context) (uint32, error) {
	return s.ReadCPReg(ctx, cp15, 0, 2, 0, 0)
}
func (s *Session) setTTBR0(ctx context.Context, v uint32) error {
	return s.WriteCPReg(ctx, cp15, 0, 2, 0, 0, v)
}

// readLNOnce reads n sequential 32-bit words from addr in one injected
// round trip. n is capped at lcodeMaxWords (244); larger ranges are tiled
// by ReadL32N below.
func (s *Session) readLNOnce(ctx context.Context, addr uint32, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	if n > lcodeMaxWords {
		n = lcodeMaxWords
	}
	soc, err := s.SoC(ctx)
	if err != nil {
		return nil, err
	}

	code := le32Words(
		0xe59f0020,                     // ldr  r0, [pc, #32] ; ldr r0,[read_addr]
		0xe28f1024,                     // add  r1, pc, #36   ; adr r1, read_data
		0xe59f201c,                     // ldr  r2, [pc, #28] ; ldr r2,[read_count]
		0xe3520000+uint32(lcodeMaxWords), // cmp  r2, #lcodeMaxWords
		0xc3a02000+uint32(lcodeMaxWords), // movgt r2, #lcodeMaxWords
		0xe2522001,                     // subs r2, r2, #1
		0x412fff1e,                     // bxmi lr
		0xe4903004,                     // ldr  r3, [r0], #4
		0xe4813004,                     // str  r3, [r1], #4
		0xeafffffa,                     // b    read_loop
		addr,
		uint32(n),
	)

	if err := s.runCode(ctx, soc.ScratchAddr, code); err != nil {
		return nil, err
	}

	raw := make([]byte, n*4)
	if err := s.Read(ctx, soc.ScratchAddr+lcodeARMSize, raw); err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return out, nil
}

// writeLNOnce writes len(words) (<= lcodeMaxWords) values to sequential
// 32-bit addresses starting at addr.
func (s *Session) writeLNOnce(ctx context.Context, addr uint32, words []uint32) error {
	if len(words) == 0 {
		return nil
	}
	n := len(words)
	if n > lcodeMaxWords {
		n = lcodeMaxWords
		words = words[:n]
	}
	soc, err := s.SoC(ctx)
	if err != nil {
		return err
	}

	header := []uint32{
		0xe59f0020,                     // ldr  r0, [pc, #32] ; ldr r0,[write_addr]
		0xe28f1024,                     // add  r1, pc, #36   ; adr r1, write_data
		0xe59f201c,                     // ldr  r2, [pc, #28] ; ldr r2,[write_count]
		0xe3520000 + uint32(lcodeMaxWords), // cmp  r2, #lcodeMaxWords
		0xc3a02000 + uint32(lcodeMaxWords), // movgt r2, #lcodeMaxWords
		0xe2522001,                     // subs r2, r2, #1
		0x412fff1e,                     // bxmi lr
		0xe4913004,                     // ldr  r3, [r1], #4
		0xe4803004,                     // str  r3, [r0], #4
		0xeafffffa,                     // b    write_loop
		addr,
		uint32(n),
	}
	code := le32Words(append(header, words...)...)

	return s.runCode(ctx, soc.ScratchAddr, code)
}

// ReadL32N reads count sequential 32-bit words from addr, auto-tiling
// across the lcodeMaxWords window (spec §6 readl_n).
func (s *Session) ReadL32N(ctx context.Context, addr uint32, count int) ([]uint32, error) {
	out := make([]uint32, 0, count)
	for count > 0 {
		n := count
		if n > lcodeMaxWords {
			n = lcodeMaxWords
		}
		words, err := s.readLNOnce(ctx, addr, n)
		if err != nil {
			return nil, err
		}
		out = append(out, words...)
		addr += uint32(n * 4)
		count -= n
	}
	return out, nil
}

// ReadL32 reads a single 32-bit value (spec §6 readl).
func (s *Session) ReadL32(ctx context.Context, addr uint32) (uint32, error) {
	words, err := s.ReadL32N(ctx, addr, 1)
	if err != nil {
		return 0, err
	}
	return words[0], nil
}

// WriteL32N writes words to sequential 32-bit addresses starting at addr,
// auto-tiling across the lcodeMaxWords window (spec §6 writel_n).
func (s *Session) WriteL32N(ctx context.Context, addr uint32, words []uint32) error {
	for len(words) > 0 {
		n := len(words)
		if n > lcodeMaxWords {
			n = lcodeMaxWords
		}
		if err := s.writeLNOnce(ctx, addr, words[:n]); err != nil {
			return err
		}
		addr += uint32(n * 4)
		words = words[n:]
	}
	return nil
}

// WriteL32 writes a single 32-bit value (spec §6 writel).
func (s *Session) WriteL32(ctx context.Context, addr, value uint32) error {
	return s.WriteL32N(ctx, addr, []uint32{value})
}

// PrintSID reads and returns the 128-bit SID key as four 32-bit words, or
// an error wrapping KindConfig if this SoC has no known SID register.
func (s *Session) PrintSID(ctx context.Context) ([4]uint32, error) {
	var key [4]uint32
	soc, err := s.SoC(ctx)
	if err != nil {
		return key, err
	}
	if !soc.HasSID() {
		return key, newErr(KindConfig, "sid", "SID registers for SoC %s (id unknown) are not known", soc.Name)
	}
	words, err := s.ReadL32N(ctx, soc.SIDAddr, 4)
	if err != nil {
		return key, err
	}
	copy(key[:], words)
	return key, nil
}

// captureStacks switches to IRQ mode to read sp_irq, then restores CPSR and
// reads the original sp, as fel.c's aw_get_stackinfo does (§4.4).
func (s *Session) captureStacks(ctx context.Context) (spIRQ, sp uint32, err error) {
	soc, err := s.SoC(ctx)
	if err != nil {
		return 0, 0, err
	}

	code := le32Words(
		0xe10f0000, // mrs  r0, CPSR
		0xe3c0101f, // bic  r1, r0, #31
		0xe3811012, // orr  r1, r1, #18     ; IRQ mode
		0xe121f001, // msr  CPSR_c, r1
		0xe1a0100d, // mov  r1, sp
		0xe121f000, // msr  CPSR_c, r0      ; restore mode
		0xe58f1004, // str  r1, [pc, #4]
		0xe58fd004, // str  sp, [pc, #4]
		0xe12fff1e, // bx   lr
	)
	if err := s.runCode(ctx, soc.ScratchAddr, code); err != nil {
		return 0, 0, err
	}

	raw := make([]byte, 8)
	if err := s.Read(ctx, soc.ScratchAddr+0x24, raw); err != nil {
		return 0, 0, err
	}
	return binary.LittleEndian.Uint32(raw[0:4]), binary.LittleEndian.Uint32(raw[4:8]), nil
}

// enableL2Cache sets bit 1 of CP15 c1,c0,op2=1 (§4.4 L2 enable).
func (s *Session) enableL2Cache(ctx context.Context) error {
	soc, err := s.SoC(ctx)
	if err != nil {
		return err
	}
	code := le32Words(
		0xee112f30, // mrc  15, 0, r2, cr1, cr0, {1}
		0xe3822002, // orr  r2, r2, #2
		0xee012f30, // mcr  15, 0, r2, cr1, cr0, {1}
		0xe12fff1e, // bx   lr
	)
	return s.runCode(ctx, soc.ScratchAddr, code)
}

// disableMMUCode clears SCTLR bits M(0), I(12), Z(11).
func (s *Session) disableMMUCode(ctx context.Context, scratch uint32) error {
	code := le32Words(
		0xee110f10, // mrc  15, 0, r0, cr1, cr0, {0}
		0xe3c00001, // bic  r0, r0, #1      ; M
		0xe3c00a01, // bic  r0, r0, #4096   ; I
		0xe3c00b02, // bic  r0, r0, #2048   ; Z
		0xee010f10, // mcr  15, 0, r0, cr1, cr0, {0}
		0xe12fff1e, // bx   lr
	)
	return s.runCode(ctx, scratch, code)
}

// enableMMUCode invalidates I-cache/TLB/BTB, then sets SCTLR bits
// M(0), I(12), Z(11).
func (s *Session) enableMMUCode(ctx context.Context, scratch uint32) error {
	code := le32Words(
		0xe3a00000, // mov  r0, #0
		0xee080f17, // mcr  15, 0, r0, cr8, cr7, {0} ; invalidate TLB
		0xee070f15, // mcr  15, 0, r0, cr7, cr5, {0} ; invalidate I-cache
		0xee070fd5, // mcr  15, 0, r0, cr7, cr5, {6} ; invalidate BTB
		0xf57ff04f, // dsb  sy
		0xf57ff06f, // isb  sy
		0xee110f10, // mrc  15, 0, r0, cr1, cr0, {0}
		0xe3800001, // orr  r0, r0, #1
		0xe3800a01, // orr  r0, r0, #4096
		0xe3800b02, // orr  r0, r0, #2048
		0xee010f10, // mcr  15, 0, r0, cr1, cr0, {0}
		0xe12fff1e, // bx   lr
	)
	return s.runCode(ctx, scratch, code)
}

// RMRRequest stores entryPoint into the SoC's RVBAR register, then requests
// a warm reset via the Reset Management Register (§4.4). If the SoC has no
// known RVBAR register, this is a benign no-op: it logs a diagnostic and
// performs no device I/O (§8 scenario 6).
func (s *Session) RMRRequest(ctx context.Context, entryPoint uint32, aarch64 bool) error {
	soc, err := s.SoC(ctx)
	if err != nil {
		return err
	}
	if !soc.HasRVBAR() {
		if s.Logger != nil {
			s.Logger.Printf("RVBAR is not supported for SoC %s; ignoring RMR request", soc.Name)
		}
		return nil
	}

	mode := uint32(1 << 1)
	if aarch64 {
		mode |= 1
	}

	code := le32Words(
		0xe59f0028, // ldr  r0, [rvbar_reg]
		0xe59f1028, // ldr  r1, [entry_point]
		0xe5801000, // str  r1, [r0]
		0xf57ff04f, // dsb  sy
		0xf57ff06f, // isb  sy
		0xe59f101c, // ldr  r1, [rmr_mode]
		0xee1c0f50, // mrc  15, 0, r0, cr12, cr0, {2}
		0xe1800001, // orr  r0, r0, r1
		0xee0c0f50, // mcr  15, 0, r0, cr12, cr0, {2}
		0xf57ff06f, // isb  sy
		0xe320f003, // loop: wfi
		0xeafffffd, // b    loop
		soc.RVBARReg,
		entryPoint,
		mode,
	)
	return s.runCode(ctx, soc.ScratchAddr, code)
}
