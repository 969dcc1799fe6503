/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Device fingerprint: the tuple quirk matching keys off
 */

package quirks

import "fmt"

// InterfaceTriple is the (class, subclass, protocol) USB interface
// descriptor triple.
type InterfaceTriple struct {
	Class, SubClass, Protocol uint8
}

func (t InterfaceTriple) String() string {
	return fmt.Sprintf("%02x/%02x/%02x", t.Class, t.SubClass, t.Protocol)
}

// hasPrefix reports whether t matches pattern, where a zero field in
// pattern is a wildcard for that position. This implements the
// "interface triple prefix match" spec.md §4.6 requires: a pattern of
// {6, 0, 0} matches any PTP still-image interface regardless of
// subclass/protocol.
func (t InterfaceTriple) hasPrefix(pattern InterfaceTriple) bool {
	if pattern.Class != 0 && pattern.Class != t.Class {
		return false
	}
	if pattern.SubClass != 0 && pattern.SubClass != t.SubClass {
		return false
	}
	if pattern.Protocol != 0 && pattern.Protocol != t.Protocol {
		return false
	}
	return true
}

// Fingerprint identifies a device for quirk matching. It is never
// mutated after the first probe (spec.md §3).
type Fingerprint struct {
	VID, PID uint16
	BcdDevice uint16 // 0 if unknown
	Iface     InterfaceTriple
	EndpointIn, EndpointOut, EndpointInterrupt int
	// DeviceInfoHash is an optional hash of the raw GetDeviceInfo
	// response, reserved for future use per spec.md §9. Nothing in
	// this module sets it, and the matcher never consults it.
	DeviceInfoHash string
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%04x:%04x iface=%s", f.VID, f.PID, f.Iface)
}
