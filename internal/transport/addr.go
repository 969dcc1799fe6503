/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * USB addressing
 */

package transport

import (
	"fmt"
	"sort"
)

// Addr identifies a USB device's position on the bus, independent of
// any particular open handle.
type Addr struct {
	Bus     int
	Address int
}

// String returns a human-readable representation of Addr.
func (a Addr) String() string {
	return fmt.Sprintf("Bus %.3d Device %.3d", a.Bus, a.Address)
}

// Less orders addresses for sorted AddrList storage.
func (a Addr) Less(b Addr) bool {
	return a.Bus < b.Bus || (a.Bus == b.Bus && a.Address < b.Address)
}

// AddrList is a sorted, duplicate-free list of device addresses. Use
// Add to insert; never append directly, or the sort invariant breaks.
type AddrList []Addr

// Add inserts addr into the list, preserving sort order and
// uniqueness.
func (list *AddrList) Add(addr Addr) {
	i := sort.Search(len(*list), func(n int) bool {
		return !(*list)[n].Less(addr)
	})

	if i < len(*list) && (*list)[i] == addr {
		return
	}

	if i == len(*list) {
		*list = append(*list, addr)
		return
	}

	*list = append(*list, (*list)[i])
	(*list)[i] = addr
}

// Find returns the index of addr in the list, or -1.
func (list AddrList) Find(addr Addr) int {
	i := sort.Search(len(list), func(n int) bool {
		return !list[n].Less(addr)
	})
	if i < len(list) && list[i] == addr {
		return i
	}
	return -1
}

// Diff computes which addresses were added and which were removed
// going from list1 to list2. Used by the real link's enumeration
// polling loop to detect hotplug/unplug events.
func (list1 AddrList) Diff(list2 AddrList) (added, removed AddrList) {
	for _, a := range list2 {
		if list1.Find(a) < 0 {
			added.Add(a)
		}
	}
	for _, a := range list1 {
		if list2.Find(a) < 0 {
			removed.Add(a)
		}
	}
	return
}

// IfAddr is the full address of a claimed USB interface: device
// address plus interface number, alternate setting, and the
// in/out/interrupt endpoint numbers discovered on it.
type IfAddr struct {
	Addr
	Num       int
	Alt       int
	In, Out   int
	Interrupt int
}

// String returns a human-readable representation of IfAddr.
func (ifa IfAddr) String() string {
	return fmt.Sprintf("Bus %.3d Device %.3d Interface %d Alt %d",
		ifa.Bus, ifa.Address, ifa.Num, ifa.Alt)
}

// DeviceDesc is a USB device descriptor as seen during enumeration,
// before any interface is claimed.
type DeviceDesc struct {
	Addr
	Vendor  uint16
	Product uint16
	BcdDev  uint16
	IfDescs []IfDesc
}

// IfDesc is a single USB interface descriptor, as reported by
// enumeration.
type IfDesc struct {
	Config   int
	IfNum    int
	Alt      int
	Class    int
	SubClass int
	Proto    int
}

// IsMTP reports whether the interface descriptor matches the still
// image / MTP class triple (6/1/1), or the vendor-specific class (255)
// combined with the Microsoft MTP interface GUID convention most
// Android and media-player devices use (255/255/0).
func (ifd IfDesc) IsMTP() bool {
	switch {
	case ifd.Class == 6 && ifd.SubClass == 1 && ifd.Proto == 1:
		return true
	case ifd.Class == 255 && ifd.SubClass == 255 && ifd.Proto == 0:
		return true
	}
	return false
}
