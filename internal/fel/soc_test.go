package fel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupSoCKnown(t *testing.T) {
	info := LookupSoC(0x1680) // H3
	if assert.NotNil(t, info) {
		assert.Equal(t, "H3", info.Name)
		assert.True(t, info.HasSID())
		assert.False(t, info.HasRVBAR())
	}
}

func TestLookupSoCUnknown(t *testing.T) {
	assert.Nil(t, LookupSoC(0xFFFF))
}

func TestRegistrySwapBuffersSortedByBuf2(t *testing.T) {
	// init()'s panic already enforces this for the built-in table; this
	// test documents the invariant so a future edit that breaks it fails
	// here instead of only at process startup.
	for id, info := range registry {
		for i := 1; i < len(info.SwapBuffers); i++ {
			assert.GreaterOrEqualf(t, info.SwapBuffers[i].Buf2, info.SwapBuffers[i-1].Buf2,
				"soc %#x (%s) swap buffers out of order", id, info.Name)
		}
	}
}

func TestHasSIDHasRVBAR(t *testing.T) {
	withSID := &SoCInfo{SIDAddr: 0x1000}
	withoutSID := &SoCInfo{}
	assert.True(t, withSID.HasSID())
	assert.False(t, withoutSID.HasSID())

	withRVBAR := &SoCInfo{RVBARReg: 0x1000}
	assert.True(t, withRVBAR.HasRVBAR())
	assert.False(t, withoutSID.HasRVBAR())
}
