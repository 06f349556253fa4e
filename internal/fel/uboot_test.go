package fel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckOverwriteNoneStaged(t *testing.T) {
	s := &Session{}
	assert.NoError(t, s.checkOverwrite(0x1000, 0x100))
}

func TestCheckOverwriteRejectsOverlap(t *testing.T) {
	s := &Session{uboot: loadedUboot{entry: 0x4a000000, size: 0x100000}}

	err := s.checkOverwrite(0x4a000000, 0x10)
	require.Error(t, err)
	var felErr *Error
	require.ErrorAs(t, err, &felErr)
	assert.Equal(t, KindOverwrite, felErr.Kind)

	assert.Error(t, s.checkOverwrite(0x49ffffff, 0x10), "overlaps the start boundary")
	assert.Error(t, s.checkOverwrite(0x4a0ffff0, 0x20), "overlaps the end boundary")
}

func TestCheckOverwriteAllowsDisjointRegion(t *testing.T) {
	s := &Session{uboot: loadedUboot{entry: 0x4a000000, size: 0x100000}}
	assert.NoError(t, s.checkOverwrite(0x40000000, 0x1000))
	assert.NoError(t, s.checkOverwrite(0x4b000000, 0x1000))
}

func TestCheckOverwriteAllowsExactBoundaries(t *testing.T) {
	s := &Session{uboot: loadedUboot{entry: 0x40000000, size: 0x100000}}

	// ends exactly at entry: half-open, so this does not overlap.
	assert.NoError(t, s.checkOverwrite(0x3ffff000, 0x1000))

	// starts exactly at entry+size: half-open, so this does not overlap.
	assert.NoError(t, s.checkOverwrite(0x40100000, 0x1000))
}

func TestLastUbootAccessor(t *testing.T) {
	s := &Session{}
	_, _, ok := s.LastUboot()
	assert.False(t, ok)

	s.uboot = loadedUboot{entry: 0x1000, size: 0x200}
	entry, size, ok := s.LastUboot()
	assert.True(t, ok)
	assert.Equal(t, uint32(0x1000), entry)
	assert.Equal(t, uint32(0x200), size)
}
