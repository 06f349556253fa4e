package fel

import (
	"context"
	"encoding/binary"
	"time"
)

// FEL request types (§4.2).
const (
	felVersion = 0x001
	felWrite   = 0x101
	felExecute = 0x102
	felRead    = 0x103
)

// felRequest is the 16-byte little-endian FEL request record (§4.2).
type felRequest struct {
	Type    uint32
	Address uint32
	Length  uint32
	_       uint32
}

func (r felRequest) marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], r.Type)
	binary.LittleEndian.PutUint32(buf[4:8], r.Address)
	binary.LittleEndian.PutUint32(buf[8:12], r.Length)
	return buf
}

// sendRequest issues a FEL request record over the C1 write() path. The
// trailing 8-byte FEL status is read separately by readFelStatus once the
// command's data phase is done.
func (s *Session) sendRequest(ctx context.Context, reqType int, addr, length uint32) error {
	req := felRequest{Type: uint32(reqType), Address: addr, Length: length}
	return s.write(ctx, req.marshal(), nil)
}

// readFelStatus reads the 8-byte FEL status and discards its content per
// §4.2: only framing-level success matters.
func (s *Session) readFelStatus(ctx context.Context) error {
	buf := make([]byte, 8)
	return s.read(ctx, buf)
}

// versionWireSize is the on-the-wire size of the VERSION response: an
// 8-byte signature followed by five little-endian 32-bit words (the SoC id
// field, protocol, scratchpad, and two reserved words) — see §3.
const versionWireSize = 8 + 5*4

// VersionRecord is the parsed little-endian VERSION response (§3).
type VersionRecord struct {
	Signature  [8]byte
	SoCID      uint16 // bits 8-23 of the wire id field
	Protocol   uint32
	Scratchpad uint32
	Reserved   [2]uint32
}

// Version issues the VERSION command and returns the parsed response. The
// result is not cached here; SoC() in soc.go caches the derived SoCInfo.
func (s *Session) Version(ctx context.Context) (VersionRecord, error) {
	if err := s.sendRequest(ctx, felVersion, 0, 0); err != nil {
		return VersionRecord{}, err
	}

	raw := make([]byte, versionWireSize)
	if err := s.read(ctx, raw); err != nil {
		return VersionRecord{}, err
	}
	if err := s.readFelStatus(ctx); err != nil {
		return VersionRecord{}, err
	}

	var v VersionRecord
	copy(v.Signature[:], raw[0:8])
	idField := binary.LittleEndian.Uint32(raw[8:12])
	v.SoCID = uint16((idField >> 8) & 0xFFFF)
	v.Protocol = binary.LittleEndian.Uint32(raw[12:16])
	v.Scratchpad = binary.LittleEndian.Uint32(raw[16:20])
	v.Reserved[0] = binary.LittleEndian.Uint32(raw[20:24])
	v.Reserved[1] = binary.LittleEndian.Uint32(raw[24:28])
	return v, nil
}

// Read issues a FEL READ of len(buf) bytes at addr, filling buf.
func (s *Session) Read(ctx context.Context, addr uint32, buf []byte) error {
	if err := s.sendRequest(ctx, felRead, addr, uint32(len(buf))); err != nil {
		s.stats.recordError()
		return err
	}
	if err := s.read(ctx, buf); err != nil {
		s.stats.recordError()
		return err
	}
	if err := s.readFelStatus(ctx); err != nil {
		s.stats.recordError()
		return err
	}
	return nil
}

// rawWrite issues a FEL WRITE without the overwrite guard; used internally
// for scratch/thunk/SPL uploads that must run before uboot region tracking
// begins (§4.8 "does not apply to internal WRITEs").
func (s *Session) rawWrite(ctx context.Context, addr uint32, data []byte, progress ProgressFunc) (time.Duration, error) {
	start := time.Now()
	if err := s.sendRequest(ctx, felWrite, addr, uint32(len(data))); err != nil {
		s.stats.recordError()
		return 0, err
	}
	if err := s.write(ctx, data, progress); err != nil {
		s.stats.recordError()
		return 0, err
	}
	if err := s.readFelStatus(ctx); err != nil {
		s.stats.recordError()
		return 0, err
	}
	return time.Since(start), nil
}

// Write is the user-facing FEL WRITE, guarded against overwriting a
// previously loaded U-Boot image (§4.8, C8). Returns elapsed time.
func (s *Session) Write(ctx context.Context, addr uint32, data []byte, progress ProgressFunc) (time.Duration, error) {
	if err := s.checkOverwrite(addr, uint32(len(data))); err != nil {
		return 0, err
	}
	return s.rawWrite(ctx, addr, data, progress)
}

// Execute issues a FEL EXECUTE at addr. It returns once the device has
// branched back to the link register and reported its trailing status.
func (s *Session) Execute(ctx context.Context, addr uint32) error {
	if err := s.sendRequest(ctx, felExecute, addr, 0); err != nil {
		s.stats.recordError()
		return err
	}
	err := s.readFelStatus(ctx)
	if err == nil {
		s.stats.recordExecute()
	} else {
		s.stats.recordError()
	}
	return err
}
