// Package mkimage parses legacy U-Boot "mkimage" image headers, the format
// used to wrap the main U-Boot binary staged over FEL after the SPL has
// taken over (§4.7, C7).
package mkimage

import (
	"encoding/binary"
	"fmt"
)

// Header field layout, magic number, and image type codes, mirroring
// image.h as addressed by get_image_type()/aw_fel_write_uboot_image() in
// the reference FEL tool.
const (
	Magic = 0x27051956

	archARM = 2

	// TypeInvalid and TypeArchMismatch are returned by Type, not stored
	// in the wire format; the remaining values are wire-format IH_TYPE_*.
	TypeInvalid      = 0
	TypeArchMismatch = -1
	TypeFirmware     = 5
	TypeScript       = 6

	nameLen        = 32
	nameOffset     = 32
	HeaderSize     = nameOffset + nameLen
)

// Header is the subset of the mkimage legacy header needed to stage a
// U-Boot payload: magic, declared data size, the load/entry address, the
// image type, and the display name.
type Header struct {
	Magic        uint32
	DataSize     uint32
	LoadAddr     uint32
	EntryAddr    uint32
	DataCRCField uint32
	ImageType    byte
	Name         string
}

// Type reports the image's IH_TYPE_* value, or TypeInvalid/TypeArchMismatch
// if buf is too short, carries the wrong magic, or targets a non-ARM
// architecture. This mirrors get_image_type()'s precedence: size and magic
// are checked before architecture, and architecture before type.
func Type(buf []byte) int {
	if len(buf) <= HeaderSize {
		return TypeInvalid
	}
	if binary.BigEndian.Uint32(buf[0:4]) != Magic {
		return TypeInvalid
	}
	if buf[29] != archARM {
		return TypeArchMismatch
	}
	return int(buf[30])
}

// ParseHeader decodes the fixed fields of a legacy mkimage header. Callers
// should call Type first to confirm the buffer is a valid, ARM-targeted
// image before trusting the fields returned here.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("mkimage: buffer shorter than header (%d < %d)", len(buf), HeaderSize)
	}
	var h Header
	h.Magic = binary.BigEndian.Uint32(buf[0:4])
	h.DataCRCField = binary.BigEndian.Uint32(buf[24:28])
	h.DataSize = binary.BigEndian.Uint32(buf[12:16])
	h.LoadAddr = binary.BigEndian.Uint32(buf[16:20])
	h.EntryAddr = binary.BigEndian.Uint32(buf[20:24])
	h.ImageType = buf[30]

	name := buf[nameOffset:HeaderSize]
	end := len(name)
	for i, b := range name {
		if b == 0 {
			end = i
			break
		}
	}
	h.Name = string(name[:end])
	return h, nil
}
