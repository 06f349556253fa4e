package fel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeMarshal(t *testing.T) {
	env := newEnvelope(usbRequestWrite, 512)
	buf := env.marshal()
	require.Len(t, buf, usbEnvelopeSize)

	assert.Equal(t, usbEnvelopeMagic, string(buf[0:4]))
	assert.Equal(t, byte(0), buf[7]) // signature field is 8 bytes, zero-padded after "AWUC"
	assert.Equal(t, uint32(512), leUint32(buf[8:12]))
	assert.Equal(t, uint32(usbEnvelopeMarker), leUint32(buf[12:16]))
	assert.Equal(t, uint16(usbRequestWrite), leUint16(buf[16:18]))
	assert.Equal(t, uint32(512), leUint32(buf[18:22]))
}

func TestEnvelopeReadRequest(t *testing.T) {
	env := newEnvelope(usbRequestRead, 1024)
	buf := env.marshal()
	assert.Equal(t, uint16(usbRequestRead), leUint16(buf[16:18]))
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
