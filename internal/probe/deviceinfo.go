/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * GetDeviceInfo decode: the probe engine uses it to detect
 * capabilities, and the device façade keeps the same decoded
 * DeviceInfo.
 */

package probe

import (
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/wire"
)

// DeviceInfo is the PTP GetDeviceInfo dataset, decoded far enough to
// drive capability detection and the fallback ladder (spec.md §4.5).
type DeviceInfo struct {
	StandardVersion        uint16
	VendorExtensionID      uint32
	VendorExtensionVersion uint16
	VendorExtensionDesc    string
	FunctionalMode         uint16
	OperationsSupported    []uint16
	EventsSupported        []uint16
	DevicePropsSupported   []uint16
	CaptureFormats         []uint16
	ImageFormats           []uint16
	Manufacturer           string
	Model                  string
	DeviceVersion          string
	SerialNumber           string
}

// DecodeDeviceInfo decodes the GetDeviceInfo response payload per the
// PTP dataset layout: a u16, a u32, a u16, a string, a u16, five
// u16-arrays, then four strings.
func DecodeDeviceInfo(b []byte) (*DeviceInfo, error) {
	var info DeviceInfo
	off := 0

	need := func(n int) error {
		if len(b)-off < n {
			return &wire.ErrMalformed{Reason: "truncated device info"}
		}
		return nil
	}
	readU16 := func() (uint16, error) {
		if err := need(2); err != nil {
			return 0, err
		}
		v := uint16(b[off]) | uint16(b[off+1])<<8
		off += 2
		return v, nil
	}
	readU32 := func() (uint32, error) {
		if err := need(4); err != nil {
			return 0, err
		}
		v := uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
		off += 4
		return v, nil
	}
	readString := func() (string, error) {
		s, n, err := wire.DecodeString(b[off:])
		if err != nil {
			return "", err
		}
		off += n
		return s, nil
	}
	readU16Array := func() ([]uint16, error) {
		a, n, err := wire.DecodeU16Array(b[off:])
		if err != nil {
			return nil, err
		}
		off += n
		return a, nil
	}

	var err error
	if info.StandardVersion, err = readU16(); err != nil {
		return nil, err
	}
	if info.VendorExtensionID, err = readU32(); err != nil {
		return nil, err
	}
	if info.VendorExtensionVersion, err = readU16(); err != nil {
		return nil, err
	}
	if info.VendorExtensionDesc, err = readString(); err != nil {
		return nil, err
	}
	if info.FunctionalMode, err = readU16(); err != nil {
		return nil, err
	}
	if info.OperationsSupported, err = readU16Array(); err != nil {
		return nil, err
	}
	if info.EventsSupported, err = readU16Array(); err != nil {
		return nil, err
	}
	if info.DevicePropsSupported, err = readU16Array(); err != nil {
		return nil, err
	}
	if info.CaptureFormats, err = readU16Array(); err != nil {
		return nil, err
	}
	if info.ImageFormats, err = readU16Array(); err != nil {
		return nil, err
	}
	if info.Manufacturer, err = readString(); err != nil {
		return nil, err
	}
	if info.Model, err = readString(); err != nil {
		return nil, err
	}
	if info.DeviceVersion, err = readString(); err != nil {
		return nil, err
	}
	if info.SerialNumber, err = readString(); err != nil {
		return nil, err
	}

	return &info, nil
}

// SupportsOp reports whether opcode is present in OperationsSupported.
func (d *DeviceInfo) SupportsOp(opcode uint16) bool {
	for _, op := range d.OperationsSupported {
		if op == opcode {
			return true
		}
	}
	return false
}

// SupportsEvent reports whether the device declares it generates the
// given event code.
func (d *DeviceInfo) SupportsEvent(code uint16) bool {
	for _, e := range d.EventsSupported {
		if e == code {
			return true
		}
	}
	return false
}
