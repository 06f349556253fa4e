package fel

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildEGON constructs a buffer with a valid eGON.BT0 header and checksum
// for a given total length (must be a multiple of 4, >= 32).
func buildEGON(t *testing.T, splLen uint32, fill byte) []byte {
	t.Helper()
	require.Zero(t, splLen%4)
	buf := make([]byte, splLen)
	for i := range buf {
		buf[i] = fill
	}
	binary.LittleEndian.PutUint32(buf[0:4], 0x48120131) // jump instruction, not checked
	copy(buf[4:12], []byte(eGONSignature))
	binary.LittleEndian.PutUint32(buf[16:20], splLen)

	var sumOthers uint32
	for i := uint32(0); i < splLen; i += 4 {
		if i == 12 {
			continue
		}
		sumOthers += binary.LittleEndian.Uint32(buf[i : i+4])
	}
	stored := eGONChecksumSeed + sumOthers
	binary.LittleEndian.PutUint32(buf[12:16], stored)
	return buf
}

func TestValidateEGONAccepts(t *testing.T) {
	buf := buildEGON(t, 64, 0xAB)
	n, err := validateEGON(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(64), n)
}

func TestValidateEGONRejectsBadSignature(t *testing.T) {
	buf := buildEGON(t, 64, 0)
	copy(buf[4:12], []byte("xxxxxxxx"))
	_, err := validateEGON(buf)
	require.Error(t, err)
	var felErr *Error
	require.ErrorAs(t, err, &felErr)
	assert.Equal(t, KindProtocol, felErr.Kind)
}

func TestValidateEGONRejectsCorruptChecksum(t *testing.T) {
	buf := buildEGON(t, 64, 0x11)
	buf[20] ^= 0xFF // corrupt a byte inside the declared SPL length
	_, err := validateEGON(buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestValidateEGONRejectsBadLength(t *testing.T) {
	buf := buildEGON(t, 64, 0)
	binary.LittleEndian.PutUint32(buf[16:20], 65) // not a multiple of 4
	_, err := validateEGON(buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad length")
}

func TestValidateEGONTooShort(t *testing.T) {
	_, err := validateEGON(make([]byte, 16))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header not found")
}

func TestPlanSwapWalkSimple(t *testing.T) {
	soc := &SoCInfo{
		Name:      "test",
		SPLAddr:   0,
		ThunkAddr: 0x8000,
		SwapBuffers: []SwapBuffer{
			{Buf1: 0x100, Buf2: 0x200, Size: 0x10},
		},
	}
	spl := make([]byte, 0x110) // exactly fills the gap plus the shadowed region
	for i := range spl {
		spl[i] = byte(i)
	}

	writes, used, limit, err := planSwapWalk(soc, spl)
	require.NoError(t, err)
	require.Len(t, used, 1)
	assert.Equal(t, soc.SwapBuffers[0], used[0])
	assert.Equal(t, uint32(0x200), limit) // narrowed by buf2 inside the candidate range

	require.Len(t, writes, 2)
	assert.Equal(t, uint32(0), writes[0].addr)
	assert.Len(t, writes[0].data, 0x100)
	assert.Equal(t, uint32(0x200), writes[1].addr) // shadowed into buf2, not buf1
	assert.Len(t, writes[1].data, 0x10)
}

func TestPlanSwapWalkRejectsOversizedSPL(t *testing.T) {
	soc := &SoCInfo{
		Name:      "test",
		SPLAddr:   0,
		ThunkAddr: 0x40,
		SwapBuffers: []SwapBuffer{
			{Buf1: 0x100, Buf2: 0x200, Size: 0x10},
		},
	}
	spl := make([]byte, 0x100)
	_, _, _, err := planSwapWalk(soc, spl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}
