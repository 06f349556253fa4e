package fel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFelRequestMarshal(t *testing.T) {
	req := felRequest{Type: felWrite, Address: 0x4a000000, Length: 0x1000}
	buf := req.marshal()

	assert.Len(t, buf, 16)
	assert.Equal(t, uint32(felWrite), leUint32(buf[0:4]))
	assert.Equal(t, uint32(0x4a000000), leUint32(buf[4:8]))
	assert.Equal(t, uint32(0x1000), leUint32(buf[8:12]))
}

func TestVersionWireSize(t *testing.T) {
	assert.Equal(t, 28, versionWireSize)
}
