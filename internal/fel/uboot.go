package fel

import (
	"context"
	"fmt"

	"hasher-fel/pkg/mkimage"
)

// U-Boot image staging (C7) and the overwrite guard (C8). Grounded on
// aw_fel_write_uboot_image/aw_write_buffer and the uboot_entry/uboot_size
// globals in fel.c (§4.7, §4.8).

// WriteUbootImage validates buf as a legacy mkimage firmware image and
// stages its payload at the address recorded in the image header (§4.7).
// On success, the staged region is remembered so future Write calls that
// would overlap it are rejected (§4.8).
func (s *Session) WriteUbootImage(ctx context.Context, buf []byte) error {
	if len(buf) <= mkimage.HeaderSize {
		return nil // no payload beyond the header; nothing to stage
	}

	switch t := mkimage.Type(buf); t {
	case mkimage.TypeInvalid:
		return newErr(KindProtocol, "uboot.write", "invalid U-Boot image: bad size or signature")
	case mkimage.TypeArchMismatch:
		return newErr(KindProtocol, "uboot.write", "invalid U-Boot image: wrong architecture")
	case mkimage.TypeFirmware:
		// fall through
	default:
		return newErr(KindProtocol, "uboot.write", "U-Boot image type mismatch: expected firmware (%d), got %d", mkimage.TypeFirmware, t)
	}

	h, err := mkimage.ParseHeader(buf)
	if err != nil {
		return wrapErr(KindProtocol, "uboot.write", err)
	}
	if int(h.DataSize) != len(buf)-mkimage.HeaderSize {
		return newErr(KindProtocol, "uboot.write", "U-Boot image data size mismatch: expected %d, got %d",
			len(buf)-mkimage.HeaderSize, h.DataSize)
	}

	s.logf("writing image %q, %d bytes @ %#08x", h.Name, h.DataSize, h.LoadAddr)

	if _, err := s.Write(ctx, h.LoadAddr, buf[mkimage.HeaderSize:], nil); err != nil {
		return err
	}

	s.mu.Lock()
	s.uboot = loadedUboot{entry: h.LoadAddr, size: h.DataSize}
	s.mu.Unlock()
	return nil
}

// LastUboot returns the entry point and size of the most recently staged
// U-Boot image, and whether one has been staged at all.
func (s *Session) LastUboot() (entry, size uint32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uboot.entry, s.uboot.size, s.uboot.size != 0
}

// checkOverwrite rejects a pending WRITE that would overlap a previously
// staged U-Boot region (§4.8, C8). This guard does not apply to internal
// writes issued through rawWrite (SPL/thunk/scratch uploads).
func (s *Session) checkOverwrite(addr, length uint32) error {
	s.mu.Lock()
	u := s.uboot
	s.mu.Unlock()

	if u.size == 0 {
		return nil
	}
	if addr < u.entry+u.size && addr+length > u.entry {
		return newErr(KindOverwrite, "write.overwrite",
			"attempt to overwrite U-Boot! request %#08x-%#08x overlaps %#08x-%#08x",
			addr, addr+length, u.entry, u.entry+u.size)
	}
	return nil
}

// ProcessSPLAndUboot loads a combined "u-boot-sunxi-with-spl.bin" style
// image: the SPL at the start of the buffer (as long as its eGON header
// declares) is staged and executed; any bytes past the first splLenLimit
// are staged as the main U-Boot firmware image (§4.6, §4.7, C6+C7
// combined entry point, matching aw_fel_process_spl_and_uboot).
func (s *Session) ProcessSPLAndUboot(ctx context.Context, image []byte) error {
	if err := s.WriteAndExecuteSPL(ctx, image); err != nil {
		return fmt.Errorf("spl stage: %w", err)
	}
	if len(image) > splLenLimit {
		if err := s.WriteUbootImage(ctx, image[splLenLimit:]); err != nil {
			return fmt.Errorf("uboot stage: %w", err)
		}
	}
	return nil
}
