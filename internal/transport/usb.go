/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Real USB link, backed by gousb (libusb)
 */

package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// USBLink is a Link implementation backed by a real USB device via
// gousb. The zero value is not usable; create one with OpenUSBLink.
type USBLink struct {
	ctx    *gousb.Context
	addr   Addr
	dev    *gousb.Device
	cfg    *gousb.Config
	iface  *gousb.Interface
	inEp   *gousb.InEndpoint
	outEp  *gousb.OutEndpoint
	intrEp *gousb.InEndpoint
}

// OpenUSBLink locates and opens the device at addr and returns a Link
// for it. The gousb.Context is owned by the returned USBLink and
// closed along with it.
func OpenUSBLink(addr Addr) (*USBLink, error) {
	ctx := gousb.NewContext()

	found := false
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if found {
			return false
		}
		match := desc.Bus == addr.Bus && desc.Address == addr.Address
		found = found || match
		return match
	})

	if len(devs) > 1 {
		for _, extra := range devs[1:] {
			extra.Close()
		}
	}

	if err != nil || len(devs) == 0 {
		ctx.Close()
		return nil, NewError("open_usb", ErrKindNoDevice, fmt.Sprintf("%s: not found", addr))
	}

	return &USBLink{ctx: ctx, addr: addr, dev: devs[0]}, nil
}

// EnumerateMTP scans all attached USB devices and returns every one
// of them with all of its interface descriptors; it does not filter
// by IfDesc.IsMTP or any other test. It is the real link's discovery
// primitive; the caller ranks candidates (internal/probe) before
// opening one.
func EnumerateMTP() ([]DeviceDesc, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var found []DeviceDesc

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return true
	})
	for _, d := range devs {
		defer d.Close()
	}
	if err != nil {
		return nil, NewError("enumerate", ErrKindIO, err.Error())
	}

	for _, d := range devs {
		dd := DeviceDesc{
			Addr:    Addr{Bus: d.Desc.Bus, Address: d.Desc.Address},
			Vendor:  uint16(d.Desc.Vendor),
			Product: uint16(d.Desc.Product),
		}

		for _, cfg := range d.Desc.Configs {
			for _, intf := range cfg.Interfaces {
				for _, alt := range intf.AltSettings {
					dd.IfDescs = append(dd.IfDescs, IfDesc{
						Config:   cfg.Number,
						IfNum:    intf.Number,
						Alt:      alt.Number,
						Class:    int(alt.Class),
						SubClass: int(alt.SubClass),
						Proto:    int(alt.Protocol),
					})
				}
			}
		}

		found = append(found, dd)
	}

	return found, nil
}

// OpenUSB is a no-op while the device handle OpenUSBLink opened is
// still held. After Close it opens the device at the same address
// again, as the Link contract allows.
func (l *USBLink) OpenUSB(ctx context.Context) error {
	if l.dev == nil {
		fresh, err := OpenUSBLink(l.addr)
		if err != nil {
			return err
		}
		*l = *fresh
	}
	return nil
}

// ClaimInterface claims interface num on its default alternate
// setting and resolves its bulk-in, bulk-out, and interrupt-in
// endpoints.
func (l *USBLink) ClaimInterface(ctx context.Context, num int) (in, out, interrupt EndpointAddr, err error) {
	cfg, err := l.dev.Config(1)
	if err != nil {
		return 0, 0, 0, NewError("claim_interface", ErrKindBusy, err.Error())
	}

	iface, err := cfg.Interface(num, 0)
	if err != nil {
		cfg.Close()
		return 0, 0, 0, NewError("claim_interface", ErrKindBusy, err.Error())
	}

	var inAddr, outAddr, intrAddr gousb.EndpointAddress
	var haveIn, haveOut, haveIntr bool

	for _, epDesc := range iface.Setting.Endpoints {
		switch {
		case epDesc.TransferType == gousb.TransferTypeBulk && epDesc.Direction == gousb.EndpointDirectionIn:
			inAddr = epDesc.Address
			haveIn = true
		case epDesc.TransferType == gousb.TransferTypeBulk && epDesc.Direction == gousb.EndpointDirectionOut:
			outAddr = epDesc.Address
			haveOut = true
		case epDesc.TransferType == gousb.TransferTypeInterrupt && epDesc.Direction == gousb.EndpointDirectionIn:
			intrAddr = epDesc.Address
			haveIntr = true
		}
	}

	if !haveIn || !haveOut {
		iface.Close()
		cfg.Close()
		return 0, 0, 0, NewError("claim_interface", ErrKindIO, "MTP interface missing bulk endpoints")
	}

	inEp, err := iface.InEndpoint(int(inAddr.Number()))
	if err != nil {
		iface.Close()
		cfg.Close()
		return 0, 0, 0, NewError("claim_interface", ErrKindIO, err.Error())
	}

	outEp, err := iface.OutEndpoint(int(outAddr.Number()))
	if err != nil {
		iface.Close()
		cfg.Close()
		return 0, 0, 0, NewError("claim_interface", ErrKindIO, err.Error())
	}

	l.cfg = cfg
	l.iface = iface
	l.inEp = inEp
	l.outEp = outEp

	if haveIntr {
		intrEp, err := iface.InEndpoint(int(intrAddr.Number()))
		if err == nil {
			l.intrEp = intrEp
		}
	}

	return EndpointAddr(inAddr.Number()), EndpointAddr(outAddr.Number()), EndpointAddr(intrAddr.Number()), nil
}

// BulkOut writes data to ep, which must be the endpoint number
// returned by ClaimInterface's out value.
func (l *USBLink) BulkOut(ctx context.Context, ep EndpointAddr, data []byte, timeout time.Duration) (int, error) {
	if l.outEp == nil {
		return 0, NewError("bulk_out", ErrKindNoDevice, "no interface claimed")
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := l.outEp.WriteContext(cctx, data)
	if err != nil {
		return n, classifyUSBError("bulk_out", err)
	}
	return n, nil
}

// BulkIn reads up to maxBytes from ep.
func (l *USBLink) BulkIn(ctx context.Context, ep EndpointAddr, maxBytes int, timeout time.Duration) ([]byte, error) {
	if l.inEp == nil {
		return nil, NewError("bulk_in", ErrKindNoDevice, "no interface claimed")
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	buf := make([]byte, maxBytes)
	n, err := l.inEp.ReadContext(cctx, buf)
	if err != nil {
		return nil, classifyUSBError("bulk_in", err)
	}
	return buf[:n], nil
}

// InterruptIn reads one interrupt transfer from ep.
func (l *USBLink) InterruptIn(ctx context.Context, ep EndpointAddr, timeout time.Duration) ([]byte, error) {
	if l.intrEp == nil {
		return nil, NewError("interrupt_in", ErrKindIO, "no interrupt endpoint on this device")
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	buf := make([]byte, l.intrEp.Desc.MaxPacketSize)
	n, err := l.intrEp.ReadContext(cctx, buf)
	if err != nil {
		return nil, classifyUSBError("interrupt_in", err)
	}
	return buf[:n], nil
}

// ResetDevice issues a USB port reset.
func (l *USBLink) ResetDevice(ctx context.Context) error {
	if l.dev == nil {
		return NewError("reset_device", ErrKindNoDevice, l.addr.String())
	}
	if err := l.dev.Reset(); err != nil {
		return NewError("reset_device", ErrKindIO, err.Error())
	}
	return nil
}

// Close releases the claimed interface, config, and device handle.
func (l *USBLink) Close() error {
	if l.iface != nil {
		l.iface.Close()
		l.iface = nil
	}
	if l.cfg != nil {
		l.cfg.Close()
		l.cfg = nil
	}
	if l.dev != nil {
		l.dev.Close()
		l.dev = nil
	}
	if l.ctx != nil {
		l.ctx.Close()
		l.ctx = nil
	}
	return nil
}

// String identifies the link by bus/device address.
func (l *USBLink) String() string {
	return l.addr.String()
}

func classifyUSBError(op string, err error) error {
	msg := err.Error()

	switch {
	case err == context.DeadlineExceeded:
		return NewError(op, ErrKindTimeout, "")
	case isStallError(msg):
		return NewError(op, ErrKindStall, msg)
	case isNoDeviceError(msg):
		return NewError(op, ErrKindNoDevice, msg)
	case isAccessError(msg):
		return NewError(op, ErrKindAccessDenied, msg)
	case isBusyError(msg):
		return NewError(op, ErrKindBusy, msg)
	default:
		return NewError(op, ErrKindIO, msg)
	}
}

func isStallError(msg string) bool {
	return containsAny(msg, "pipe error", "stall", "halted")
}

func isNoDeviceError(msg string) bool {
	return containsAny(msg, "no device", "disconnected", "no such device")
}

func isAccessError(msg string) bool {
	return containsAny(msg, "access denied", "permission denied")
}

func isBusyError(msg string) bool {
	return containsAny(msg, "busy", "resource busy")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if indexOfFold(s, sub) >= 0 {
			return true
		}
	}
	return false
}

// indexOfFold is a tiny case-insensitive substring search, avoiding a
// dependency on strings.ToLower allocation for the common no-match
// case on the hot transfer path.
func indexOfFold(s, substr string) int {
	n, m := len(s), len(substr)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if equalFold(s[i:i+m], substr) {
			return i
		}
	}
	return -1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
