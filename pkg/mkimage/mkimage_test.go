package mkimage

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildImage assembles a minimal legacy mkimage header (+ payload) with the
// given architecture byte, image type byte, and name.
func buildImage(t *testing.T, arch, imgType byte, name string, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(payload))) // h_size
	binary.BigEndian.PutUint32(buf[16:20], 0x4A000000)           // h_load
	binary.BigEndian.PutUint32(buf[20:24], 0x4A000040)           // h_ep
	buf[29] = arch
	buf[30] = imgType
	copy(buf[nameOffset:HeaderSize], name)
	copy(buf[HeaderSize:], payload)
	return buf
}

func TestTypeValidFirmware(t *testing.T) {
	buf := buildImage(t, archARM, TypeFirmware, "u-boot", []byte{1, 2, 3, 4})
	assert.Equal(t, TypeFirmware, Type(buf))
}

func TestTypeWrongMagic(t *testing.T) {
	buf := buildImage(t, archARM, TypeFirmware, "u-boot", []byte{1, 2, 3, 4})
	binary.BigEndian.PutUint32(buf[0:4], 0xDEADBEEF)
	assert.Equal(t, TypeInvalid, Type(buf))
}

func TestTypeTooShort(t *testing.T) {
	assert.Equal(t, TypeInvalid, Type(make([]byte, 10)))
}

func TestTypeArchMismatch(t *testing.T) {
	buf := buildImage(t, 99, TypeFirmware, "u-boot", []byte{1, 2, 3, 4})
	assert.Equal(t, TypeArchMismatch, Type(buf))
}

func TestParseHeaderFields(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	buf := buildImage(t, archARM, TypeFirmware, "my-uboot", payload)

	h, err := ParseHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(Magic), h.Magic)
	assert.Equal(t, uint32(len(payload)), h.DataSize)
	assert.Equal(t, uint32(0x4A000000), h.LoadAddr)
	assert.Equal(t, uint32(0x4A000040), h.EntryAddr)
	assert.Equal(t, TypeFirmware, int(h.ImageType))
	assert.Equal(t, "my-uboot", h.Name)
}

func TestParseHeaderTooShort(t *testing.T) {
	_, err := ParseHeader(make([]byte, 10))
	assert.Error(t, err)
}

func TestParseHeaderNameTruncatesAtNUL(t *testing.T) {
	buf := buildImage(t, archARM, TypeFirmware, "short\x00garbage", nil)
	h, err := ParseHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, "short", h.Name)
}
