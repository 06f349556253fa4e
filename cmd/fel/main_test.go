package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUint32(t *testing.T) {
	cases := map[string]uint32{
		"0x1000": 0x1000,
		"4096":   4096,
		"0":      0,
	}
	for in, want := range cases {
		got, err := parseUint32(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseUint32Invalid(t *testing.T) {
	_, err := parseUint32("not-a-number")
	assert.Error(t, err)
}

func TestParseBusDev(t *testing.T) {
	bus, dev, err := parseBusDev("1:7")
	require.NoError(t, err)
	assert.Equal(t, 1, bus)
	assert.Equal(t, 7, dev)
}

func TestParseBusDevMalformed(t *testing.T) {
	for _, spec := range []string{"nocolon", "a:7", "1:b", "1:2:3"} {
		_, _, err := parseBusDev(spec)
		assert.Error(t, err, spec)
	}
}

func TestAsciiPreviewMasksNonPrintable(t *testing.T) {
	row := []byte{'A', 0x00, 'B', 0x7F, 0x20}
	assert.Equal(t, "A.B. ", asciiPreview(row))
}

func TestHexdumpFormatsRowsAndPadsShortLastRow(t *testing.T) {
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i)
	}

	r, w, err := os.Pipe()
	require.NoError(t, err)
	hexdump(w, 0x1000, data)
	w.Close()

	var buf bytes.Buffer
	buf.ReadFrom(r)
	out := buf.String()

	assert.Contains(t, out, "00001000: 00 01 02")
	assert.Contains(t, out, "00001010: 10 11 12 13") // second row starts at offset 0x10
}
