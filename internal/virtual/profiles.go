/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Virtual device profiles: preset phone/camera/media-player fixtures
 * for quirk-resolver regression tests (spec.md §4.10)
 */

package virtual

import (
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/quirks"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/session"
)

// StoragePreset seeds one storage on a preset Device.
type StoragePreset struct {
	ID          uint32
	Description string
	Capacity    uint64
	Free        uint64
	ReadOnly    bool
}

// Profile is a preset device identity plus the storage set and
// operation/event table it reports, used both to build a Device/Link
// pair for integration tests and to build the quirks.Fingerprint a
// real probe of the same device would produce.
type Profile struct {
	Name string

	VID, PID  uint16
	BcdDevice uint16
	Iface     quirks.InterfaceTriple

	Manufacturer  string
	Model         string
	DeviceVersion string
	SerialNumber  string

	OperationsSupported []uint16
	EventsSupported     []uint16

	Storages []StoragePreset
}

// Fingerprint builds the quirks.Fingerprint a real probe of this
// profile's device would produce, endpoint numbers included, so the
// same profile can drive both a virtual.Link and a quirk-resolver
// regression test.
func (p Profile) Fingerprint() quirks.Fingerprint {
	return quirks.Fingerprint{
		VID:               p.VID,
		PID:               p.PID,
		BcdDevice:         p.BcdDevice,
		Iface:             p.Iface,
		EndpointIn:        int(epIn),
		EndpointOut:       int(epOut),
		EndpointInterrupt: int(epInterrupt),
	}
}

// NewDevice builds a Device from the profile: identity, operation/
// event tables, and seeded storages.
func (p Profile) NewDevice() *Device {
	d := NewDevice()
	d.Manufacturer = p.Manufacturer
	d.Model = p.Model
	d.DeviceVersion = p.DeviceVersion
	d.SerialNumber = p.SerialNumber
	d.OperationsSupported = p.OperationsSupported
	d.EventsSupported = p.EventsSupported
	for _, s := range p.Storages {
		d.AddStorage(s.ID, s.Description, s.Capacity, s.Free, s.ReadOnly)
	}
	return d
}

// NewLink builds a Device from the profile and wraps it in a Link,
// ready to be handed to session.New.
func (p Profile) NewLink() *Link {
	return NewLink(p.NewDevice())
}

var commonOps = []uint16{
	uint16(session.OpGetDeviceInfo), uint16(session.OpOpenSession), uint16(session.OpCloseSession),
	uint16(session.OpGetStorageIDs), uint16(session.OpGetStorageInfo),
	uint16(session.OpGetObjectHandles), uint16(session.OpGetObjectInfo), uint16(session.OpGetObject),
	uint16(session.OpDeleteObject), uint16(session.OpSendObjectInfo), uint16(session.OpSendObject),
	uint16(session.OpMoveObject),
}

var commonEvents = []uint16{0x4002, 0x4003, 0x4004, 0x4005}

// PhoneProfile is a modern Android-style MTP device: vendor-specific
// interface class, full partial-64 and prop-list-5 support, and
// send-partial-object resume — the ladder's best case end to end.
func PhoneProfile() Profile {
	return Profile{
		Name:      "android-phone",
		VID:       0x18d1, // Google
		PID:       0x4ee1,
		BcdDevice: 0x0100,
		Iface:     quirks.InterfaceTriple{Class: 255, SubClass: 255, Protocol: 0},

		Manufacturer:  "Google",
		Model:         "Pixel MTP Device",
		DeviceVersion: "1.0",
		SerialNumber:  "PHONE0001",

		OperationsSupported: append(append([]uint16{}, commonOps...),
			uint16(session.OpGetPartialObject), uint16(session.OpGetPartialObject64),
			uint16(session.OpSendPartialObject), uint16(session.OpGetObjectPropList)),
		EventsSupported: commonEvents,

		Storages: []StoragePreset{
			{ID: 0x00010001, Description: "Internal shared storage", Capacity: 64 << 30, Free: 40 << 30},
		},
	}
}

// CameraProfile is a conservative still-image-class PTP camera:
// standard PTP interface triple, no prop-list or 64-bit partial
// support, read-only storage, no event pump data beyond the basics.
func CameraProfile() Profile {
	return Profile{
		Name:      "ptp-camera",
		VID:       0x04a9, // Canon
		PID:       0x32ea,
		BcdDevice: 0x0001,
		Iface:     quirks.InterfaceTriple{Class: 6, SubClass: 1, Protocol: 1},

		Manufacturer:  "Canon",
		Model:         "PowerShot (PTP)",
		DeviceVersion: "1.00",
		SerialNumber:  "",

		OperationsSupported: append(append([]uint16{}, commonOps...),
			uint16(session.OpGetPartialObject)),
		EventsSupported: []uint16{0x4002, 0x4003},

		Storages: []StoragePreset{
			{ID: 0x00010001, Description: "SD Card", Capacity: 32 << 30, Free: 2 << 30, ReadOnly: true},
		},
	}
}

// MediaPlayerProfile is a mid-tier MTP media player: prop-list-5
// enumeration support but neither 64-bit partial reads nor write
// resume, and no serial number (heuristic-key identity applies).
func MediaPlayerProfile() Profile {
	return Profile{
		Name:      "mtp-media-player",
		VID:       0x0781, // SanDisk
		PID:       0x74e1,
		BcdDevice: 0x0002,
		Iface:     quirks.InterfaceTriple{Class: 255, SubClass: 255, Protocol: 0},

		Manufacturer:  "SanDisk",
		Model:         "Sansa MTP Player",
		DeviceVersion: "2.00",
		SerialNumber:  "",

		OperationsSupported: append(append([]uint16{}, commonOps...),
			uint16(session.OpGetObjectPropList)),
		EventsSupported: commonEvents,

		Storages: []StoragePreset{
			{ID: 0x00010001, Description: "Music storage", Capacity: 8 << 30, Free: 1 << 30},
		},
	}
}

// Profiles returns all preset profiles, for table-driven regression
// tests over the full set.
func Profiles() []Profile {
	return []Profile{PhoneProfile(), CameraProfile(), MediaPlayerProfile()}
}
