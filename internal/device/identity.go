/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Device identity: ephemeral id, stable id, registry
 */

// Package device implements the device façade (spec.md §4.4): the
// operation table, read/write/enumeration algorithms with fallback,
// the event pump, and the ephemeral/stable identity registry
// (SPEC_FULL.md §5).
package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/transport"
)

// EphemeralID encodes a device's current USB bus/address, per
// spec.md §3 "Device identity". It changes on every re-plug.
type EphemeralID struct {
	Bus     int
	Address int
}

func (e EphemeralID) String() string {
	return fmt.Sprintf("%d:%d", e.Bus, e.Address)
}

// EphemeralIDFromAddr derives an EphemeralID from a transport.Addr.
func EphemeralIDFromAddr(addr transport.Addr) EphemeralID {
	return EphemeralID{Bus: addr.Bus, Address: addr.Address}
}

// StableID computes the deterministic stable identifier for a
// device: VID and PID as "vvvv-pppp" in hex, followed by "-" and
// either its USB serial number (when reported) or a host-assigned
// identifier, passed through sanitizeIdent. The result is not hashed:
// the serial or host-assigned id appears in it as given. Ported from
// the teacher's UsbDeviceInfo.Ident() (usbcommon.go) with MTP's fields
// in place of IPP's make/model string.
func StableID(vid, pid uint16, serial string, hostAssigned string) string {
	id := fmt.Sprintf("%04x-%04x", vid, pid)

	if serial != "" {
		id += "-" + serial
	} else if hostAssigned != "" {
		id += "-" + hostAssigned
	}

	return sanitizeIdent(id)
}

// sanitizeIdent restricts id to the same character set the teacher's
// Ident() normalizes to: alphanumerics, '-' and '_', everything else
// folded to '-'.
func sanitizeIdent(id string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case '0' <= c && c <= '9':
		case 'a' <= c && c <= 'z':
		case 'A' <= c && c <= 'Z':
		case c == '-' || c == '_':
		default:
			c = '-'
		}
		return c
	}, id)
}

// NewHostAssignedID mints a fresh host-assigned identifier for a
// device that reports no USB serial, per spec.md §3's "a
// deterministic hash of VID:PID and the USB serial or a
// host-assigned UUID". The caller persists the result in the
// Registry; it is generated once per device, not re-derived on every
// plug.
func NewHostAssignedID() string {
	return uuid.New().String()
}
