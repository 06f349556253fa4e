package fel

import "context"

// MMU save/restore (C5): before SPL/U-Boot staging can rely on 1:1 physical
// addressing the BROM's own short-descriptor translation table must be
// backed up, the MMU disabled, and — once staging completes — the table
// restored and the MMU re-enabled. Grounded on aw_backup_and_disable_mmu /
// aw_restore_and_enable_mmu in fel.c (§4.5, §9 "translation table view").

// ttSections is the number of 1MB short-descriptor section entries in a
// standard ARMv7 short-descriptor translation table (4GB / 1MB).
const ttSections = 4096

// dramBase and dramSize bound the DRAM window fel.c's DRAM_BASE/DRAM_SIZE
// macros describe, used to compute the megabyte-index range repainted
// write-combine on MMU restore.
const (
	dramBase = 0x40000000
	dramSize = 0x80000000
)

// sectionDescriptor is a typed view over one 32-bit short-descriptor section
// entry, giving names to the bitfields fel.c addresses by raw mask (§9
// "translation table view" open question, resolved in favor of typed
// accessors over an opaque []uint32).
type sectionDescriptor uint32

const (
	// sdBaseDescriptor is the fixed bit pattern fel.c's
	// aw_generate_mmu_translation_table ORs into every entry before adding
	// the per-index base address: strongly-ordered, domain 15, AP full
	// access, section type.
	sdBaseDescriptor = 0x00000DE2

	// sdTexcbMask covers the TEX[2:0]/C/B memory-attribute bits fel.c
	// clears before re-applying write-combine or write-back attributes on
	// restore.
	sdTexcbMask = (7 << 12) | (1 << 3) | (1 << 2)

	sdWriteCombine = 1 << 12
	sdWriteBack    = (1 << 12) | (1 << 3) | (1 << 2)

	sdTypeBit  = 1 << 1
	sdNSBit    = 1 << 18
	sdBaseMask = 0xFFF00000
)

func (d sectionDescriptor) isSection() bool { return uint32(d)&sdTypeBit != 0 }
func (d sectionDescriptor) base() uint32    { return uint32(d) & sdBaseMask }

// isIdentity reports whether d is a direct (1:1) section mapping for the
// given megabyte index: section type bit set, bit 18 clear, and base ==
// index, matching the three checks in fel.c's aw_backup_and_disable_mmu
// entry-validation loop.
func (d sectionDescriptor) isIdentity(index int) bool {
	return d.isSection() && uint32(d)&sdNSBit == 0 && d.base()>>20 == uint32(index)
}

// newIdentitySection builds the direct 1:1 section descriptor fel.c's
// aw_generate_mmu_translation_table installs for the given megabyte index:
// strongly-ordered everywhere, except the first and last entries (BROM and
// its mirror) which additionally get TEX[0] set.
func newIdentitySection(index int) sectionDescriptor {
	d := uint32(sdBaseDescriptor) | (uint32(index) << 20)
	if index == 0 || index == 0xFFF {
		d |= 0x1000
	}
	return sectionDescriptor(d)
}

// mmuState captures everything needed to restore the BROM's MMU
// configuration after SPL/U-Boot staging completes.
type mmuState struct {
	sctlr uint32
	dacr  uint32
	ttbcr uint32
	ttbr0 uint32
	table []sectionDescriptor // nil if MMU was already off
	wasOn bool
}

// backupAndDisableMMU reads CP15 SCTLR/DACR/TTBCR/TTBR0, and if the MMU is
// enabled (SCTLR.M == 1), downloads the live translation table, verifies it
// is a pure 1:1 section mapping (§4.5 invariant), and disables the MMU so
// subsequent WRITEs land at their literal physical addresses.
func (s *Session) backupAndDisableMMU(ctx context.Context) (*mmuState, error) {
	soc, err := s.SoC(ctx)
	if err != nil {
		return nil, err
	}

	sctlr, err := s.getSCTLR(ctx)
	if err != nil {
		return nil, err
	}

	st := &mmuState{sctlr: sctlr}
	st.wasOn = sctlr&1 != 0
	if !st.wasOn {
		return st, nil
	}

	if st.dacr, err = s.getDACR(ctx); err != nil {
		return nil, err
	}
	if st.ttbcr, err = s.getTTBCR(ctx); err != nil {
		return nil, err
	}
	if st.ttbr0, err = s.getTTBR0(ctx); err != nil {
		return nil, err
	}

	// §4.5 step 2: "Violation -> fatal". The BROM is expected to have left
	// these registers in a known configuration; anything else means our
	// assumptions about the translation table layout don't hold.
	if sctlr&^((0x7<<11)|(1<<6)|1) != 0x00C50038 {
		return nil, newErr(KindProtocol, "mmu.backup", "unexpected SCTLR %#08x", sctlr)
	}
	if st.dacr != 0x55555555 {
		return nil, newErr(KindProtocol, "mmu.backup", "unexpected DACR %#08x", st.dacr)
	}
	if st.ttbcr != 0 {
		return nil, newErr(KindProtocol, "mmu.backup", "unexpected TTBCR %#08x", st.ttbcr)
	}
	if st.ttbr0&0x3FFF != 0 {
		return nil, newErr(KindProtocol, "mmu.backup", "unaligned TTBR0 %#08x", st.ttbr0)
	}

	ttAddr := st.ttbr0 &^ 0x3FFF

	words, err := s.ReadL32N(ctx, ttAddr, ttSections)
	if err != nil {
		return nil, err
	}
	table := make([]sectionDescriptor, ttSections)
	for i, w := range words {
		d := sectionDescriptor(w)
		if !d.isIdentity(i) {
			return nil, newErr(KindProtocol, "mmu.backup",
				"translation table entry %d is not a 1:1 section mapping (got %#08x); refusing to disable MMU", i, uint32(d))
		}
		table[i] = d
	}
	st.table = table

	if err := s.disableMMUCode(ctx, soc.ScratchAddr); err != nil {
		return nil, err
	}
	return st, nil
}

// restoreAndEnableMMU writes the saved translation table (if the MMU had
// been on) back to TTBR0 with the DRAM window and BROM entries repainted as
// below, restores DACR/TTBCR/TTBR0, then invalidates the caches and sets
// SCTLR bits M, I and Z (§4.5). The saved SCTLR value itself is not
// written back.
func (s *Session) restoreAndEnableMMU(ctx context.Context, st *mmuState) error {
	if st == nil || !st.wasOn {
		return nil
	}
	soc, err := s.SoC(ctx)
	if err != nil {
		return err
	}

	ttAddr := st.ttbr0 &^ 0x3FFF

	// §4.5 restore steps 1-2, matching aw_restore_and_enable_mmu: repaint
	// the DRAM window write-combine (uncached, merging) and the BROM's
	// mirrored last megabyte write-back cached, before writing the table
	// back. This is the actual point of saving/restoring the table at
	// all — §9 "MMU preservation".
	dramLow := uint32(dramBase) >> 20
	dramHigh := uint32(dramBase+dramSize) >> 20
	for i := dramLow; i < dramHigh; i++ {
		d := uint32(st.table[i])
		d &^= sdTexcbMask
		d |= sdWriteCombine
		st.table[i] = sectionDescriptor(d)
	}
	brom := uint32(st.table[0xFFF])
	brom &^= sdTexcbMask
	brom |= sdWriteBack
	st.table[0xFFF] = sectionDescriptor(brom)

	words := make([]uint32, len(st.table))
	for i, d := range st.table {
		words[i] = uint32(d)
	}
	if err := s.WriteL32N(ctx, ttAddr, words); err != nil {
		return err
	}

	if err := s.setDACR(ctx, st.dacr); err != nil {
		return err
	}
	if err := s.setTTBCR(ctx, st.ttbcr); err != nil {
		return err
	}
	if err := s.setTTBR0(ctx, st.ttbr0); err != nil {
		return err
	}
	return s.enableMMUCode(ctx, soc.ScratchAddr)
}
