package fel

import (
	"bytes"
	"context"
	"encoding/binary"
)

// Wire constants for the bulk "AWUC/AWUS" envelope (§4.1).
const (
	usbEnvelopeMagic   = "AWUC"
	usbResponseMagic   = "AWUS"
	usbEnvelopeMarker  = 0x0C000000
	usbEnvelopeSize    = 32
	usbResponseSize    = 13
	usbRequestRead     = 0x11
	usbRequestWrite    = 0x12
	maxBulkSend        = 512 * 1024 // AW_USB_MAX_BULK_SEND
	maxBulkSendProgress = 128 * 1024
)

// ProgressFunc is notified with the number of bytes transferred in the most
// recently completed segment. Implementations must return quickly; they are
// called synchronously on the transfer goroutine.
type ProgressFunc func(transferred int)

// usbEnvelope is the 32-byte little-endian header prefixed to every bulk
// request (§4.1), mirroring fel.c's packed struct aw_usb_request: an 8-byte
// signature (only the first 4 bytes of which are "AWUC", the rest zero),
// then length, marker, request, length2, and 10 bytes of padding.
type usbEnvelope struct {
	Signature [8]byte
	Length    uint32
	Marker    uint32
	Request   uint16
	Length2   uint32
	_         [10]byte
}

func newEnvelope(request uint16, length uint32) usbEnvelope {
	var e usbEnvelope
	copy(e.Signature[:], usbEnvelopeMagic)
	e.Length = length
	e.Marker = usbEnvelopeMarker
	e.Request = request
	e.Length2 = length
	return e
}

func (e usbEnvelope) marshal() []byte {
	buf := make([]byte, usbEnvelopeSize)
	copy(buf[0:8], e.Signature[:])
	binary.LittleEndian.PutUint32(buf[8:12], e.Length)
	binary.LittleEndian.PutUint32(buf[12:16], e.Marker)
	binary.LittleEndian.PutUint16(buf[16:18], e.Request)
	binary.LittleEndian.PutUint32(buf[18:22], e.Length2)
	return buf
}

// bulkOut performs a raw chunked bulk transfer out to the device, invoking
// progress (if non-nil) after each completed segment.
func (s *Session) bulkOut(ctx context.Context, data []byte, progress ProgressFunc) error {
	maxChunk := maxBulkSend
	if progress != nil {
		maxChunk = maxBulkSendProgress
	}
	for len(data) > 0 {
		chunk := data
		if len(chunk) > maxChunk {
			chunk = chunk[:maxChunk]
		}
		n, err := s.writeTimeout(ctx, chunk)
		if err != nil {
			return wrapErr(KindTransport, "usb.bulkOut", err)
		}
		data = data[n:]
		if progress != nil {
			progress(n)
		}
	}
	return nil
}

// bulkIn performs a raw bulk transfer in, filling buf completely.
func (s *Session) bulkIn(ctx context.Context, buf []byte) error {
	for len(buf) > 0 {
		n, err := s.readTimeout(ctx, buf)
		if err != nil {
			return wrapErr(KindTransport, "usb.bulkIn", err)
		}
		buf = buf[n:]
	}
	return nil
}

// write wraps data in an "AWUC" envelope (request type WRITE), streams it,
// and checks the "AWUS" status reply. This is the C1 write() operation.
func (s *Session) write(ctx context.Context, data []byte, progress ProgressFunc) error {
	env := newEnvelope(usbRequestWrite, uint32(len(data)))
	if err := s.bulkOut(ctx, env.marshal(), nil); err != nil {
		return err
	}
	if err := s.bulkOut(ctx, data, progress); err != nil {
		return err
	}
	return s.readStatus(ctx)
}

// read wraps a READ envelope, then fills buf from the device, then checks
// the status reply. This is the C1 read() operation.
func (s *Session) read(ctx context.Context, buf []byte) error {
	env := newEnvelope(usbRequestRead, uint32(len(buf)))
	if err := s.bulkOut(ctx, env.marshal(), nil); err != nil {
		return err
	}
	if err := s.bulkIn(ctx, buf); err != nil {
		return err
	}
	return s.readStatus(ctx)
}

// readStatus reads the 13-byte device status and asserts the "AWUS" magic.
func (s *Session) readStatus(ctx context.Context) error {
	buf := make([]byte, usbResponseSize)
	if err := s.bulkIn(ctx, buf); err != nil {
		return err
	}
	if !bytes.HasPrefix(buf, []byte(usbResponseMagic)) {
		return newErr(KindFraming, "usb.readStatus",
			"response does not start with %q (got %q)", usbResponseMagic, buf[:4])
	}
	return nil
}

// writeTimeout and readTimeout are implemented in session.go; they bind this
// raw framing layer to the claimed gousb endpoints with the session's bulk
// transfer timeout.
