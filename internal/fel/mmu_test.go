package fel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIdentitySectionIsIdentity(t *testing.T) {
	for _, idx := range []int{0, 1, 100, 4095} {
		d := newIdentitySection(idx)
		assert.True(t, d.isSection())
		assert.True(t, d.isIdentity(idx), "index %d", idx)
		assert.Equal(t, uint32(idx)<<20, d.base())
	}
}

func TestNewIdentitySectionMatchesBROMFormula(t *testing.T) {
	// Ordinary entries: strongly-ordered base descriptor, no extra TEX bit.
	assert.Equal(t, sectionDescriptor(0x00000DE2|(1<<20)), newIdentitySection(1))
	assert.Equal(t, sectionDescriptor(0x00000DE2|(100<<20)), newIdentitySection(100))

	// Index 0 and 0xFFF (BROM and its mirror) get the extra TEX[0] bit set.
	assert.Equal(t, sectionDescriptor(0x00000DE2|0x1000), newIdentitySection(0))
	assert.Equal(t, sectionDescriptor(0x00000DE2|(0xFFF<<20)|0x1000), newIdentitySection(0xFFF))
}

func TestSectionDescriptorRejectsNonIdentity(t *testing.T) {
	d := newIdentitySection(5)
	assert.False(t, d.isIdentity(6))
}

func TestSectionDescriptorZeroIsNotSection(t *testing.T) {
	var d sectionDescriptor
	assert.False(t, d.isSection())
}

func TestSectionDescriptorNonSectionType(t *testing.T) {
	// type bits == 0x1 (coarse page table descriptor, not a section)
	d := sectionDescriptor(0x00000001)
	assert.False(t, d.isSection())
}

func TestSectionDescriptorRejectsNSBitSet(t *testing.T) {
	d := newIdentitySection(3) | (1 << 18)
	assert.False(t, d.isIdentity(3), "bit 18 must be clear for a valid identity mapping")
}
