package fel

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/gousb"
	"github.com/google/uuid"
)

// USB identity of an Allwinner FEL device (§6).
const (
	VendorID  gousb.ID = 0x1F3A
	ProductID gousb.ID = 0xEFE8
)

// DefaultTimeout is the per-segment bulk transfer timeout (§4.1, §5).
const DefaultTimeout = 10 * time.Second

// Session is a handle to a claimed USB FEL interface: the endpoints, the
// bulk timeout, and lazily cached SoC parameters. One Session corresponds
// to one host-device conversation; only one Session may hold a given
// device at a time (spec §5).
type Session struct {
	ID uuid.UUID

	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint

	Timeout time.Duration
	Logger  *log.Logger
	Verbose bool

	// SPLCompletionDelay is the post-thunk wait before checking for the
	// eGON.FEL signature (spec §4.6, §9 open question). Exposed so tests
	// can shorten it instead of sleeping for real.
	SPLCompletionDelay time.Duration

	mu       sync.Mutex
	soc      *SoCInfo
	socKnown bool

	uboot loadedUboot
	stats Stats
}

// loadedUboot records the region of the last-transferred U-Boot image, used
// by the overwrite guard (C8). Folded into the Session instead of the
// original tool's process-wide globals, so multiple sessions can coexist.
type loadedUboot struct {
	entry uint32
	size  uint32
}

// OpenSession claims the first FEL device matching VendorID/ProductID (or,
// if busnum/devnum are both >= 0, the specific bus:device pair) and
// discovers its bulk IN/OUT endpoints.
func OpenSession(busnum, devnum int) (*Session, error) {
	ctx := gousb.NewContext()

	device, err := openDevice(ctx, busnum, devnum)
	if err != nil {
		ctx.Close()
		return nil, wrapErr(KindTransport, "session.open", err)
	}

	// Let libusb detach a bound kernel driver while the interface is
	// claimed and reattach it on release; platforms without support for
	// this return an error, which is ignored.
	_ = device.SetAutoDetach(true)

	config, err := device.Config(1)
	if err != nil {
		device.Close()
		ctx.Close()
		return nil, wrapErr(KindTransport, "session.config", err)
	}

	intf, err := config.Interface(0, 0)
	if err != nil {
		config.Close()
		device.Close()
		ctx.Close()
		return nil, wrapErr(KindTransport, "session.claimInterface", err)
	}

	epOutAddr, epInAddr, err := discoverBulkEndpoints(device.Desc)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, wrapErr(KindTransport, "session.discoverEndpoints", err)
	}

	epOut, err := intf.OutEndpoint(epOutAddr)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, wrapErr(KindTransport, "session.outEndpoint", err)
	}

	epIn, err := intf.InEndpoint(epInAddr)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, wrapErr(KindTransport, "session.inEndpoint", err)
	}

	return &Session{
		ID:                 uuid.New(),
		ctx:                ctx,
		device:             device,
		config:             config,
		intf:               intf,
		epOut:              epOut,
		epIn:               epIn,
		Timeout:            DefaultTimeout,
		Logger:             log.Default(),
		SPLCompletionDelay: 250 * time.Millisecond,
	}, nil
}

// openDevice opens the device by VID/PID, or by explicit bus:devnum if both
// are non-negative (mirrors fel.c's open_fel_device()).
func openDevice(ctx *gousb.Context, busnum, devnum int) (*gousb.Device, error) {
	if busnum >= 0 && devnum >= 0 {
		devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
			return desc.Bus == busnum && desc.Address == devnum
		})
		if err != nil {
			return nil, err
		}
		if len(devices) == 0 {
			return nil, fmt.Errorf("no USB device at bus %d device %d", busnum, devnum)
		}
		for _, d := range devices[1:] {
			d.Close()
		}
		dev := devices[0]
		if dev.Desc.Vendor != VendorID || dev.Desc.Product != ProductID {
			vendor, product := dev.Desc.Vendor, dev.Desc.Product
			dev.Close()
			return nil, fmt.Errorf("bus %d device %d is not a FEL device (got %s:%s)",
				busnum, devnum, vendor, product)
		}
		return dev, nil
	}

	dev, err := ctx.OpenDeviceWithVIDPID(VendorID, ProductID)
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, fmt.Errorf("FEL device not found (VID:%s PID:%s)", VendorID, ProductID)
	}
	return dev, nil
}

// discoverBulkEndpoints walks the device's first configuration's
// interfaces/alt-settings/endpoints and returns the bulk OUT and bulk IN
// endpoint addresses (spec §6).
func discoverBulkEndpoints(desc *gousb.DeviceDesc) (out, in gousb.EndpointAddress, err error) {
	cfg, ok := desc.Configs[1]
	if !ok {
		for _, c := range desc.Configs {
			cfg = c
			ok = true
			break
		}
	}
	if !ok {
		return 0, 0, fmt.Errorf("device exposes no configurations")
	}

	var haveOut, haveIn bool
	for _, iface := range cfg.Interfaces {
		for _, alt := range iface.AltSettings {
			for addr, ep := range alt.Endpoints {
				if ep.TransferType != gousb.TransferTypeBulk {
					continue
				}
				if ep.Direction == gousb.EndpointDirectionIn {
					in = addr
					haveIn = true
				} else {
					out = addr
					haveOut = true
				}
			}
		}
	}
	if !haveOut || !haveIn {
		return 0, 0, fmt.Errorf("could not find bulk IN/OUT endpoint pair")
	}
	return out, in, nil
}

// Close releases the FEL interface and the USB context. Safe to call once.
func (s *Session) Close() error {
	if s.intf != nil {
		s.intf.Close()
	}
	if s.config != nil {
		s.config.Close()
	}
	if s.device != nil {
		s.device.Close()
	}
	if s.ctx != nil {
		s.ctx.Close()
	}
	return nil
}

func (s *Session) writeTimeout(ctx context.Context, data []byte) (int, error) {
	cctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	n, err := s.epOut.WriteContext(cctx, data)
	s.stats.recordWrite(n)
	return n, err
}

func (s *Session) readTimeout(ctx context.Context, buf []byte) (int, error) {
	cctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	n, err := s.epIn.ReadContext(cctx, buf)
	s.stats.recordRead(n)
	return n, err
}

func (s *Session) logf(format string, args ...any) {
	if s.Verbose && s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}
