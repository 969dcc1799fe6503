/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Device façade: GetObjectPropList dataset decode
 */

package device

import (
	"encoding/binary"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/wire"
)

// MTP object property codes this façade reads off a prop-list-5 batch
// (spec.md §4.4's "prop-list-5" enumeration variant). The set is
// deliberately the minimum needed to assemble an ObjectInfo-equivalent
// record without a follow-up get-object-info round-trip.
const (
	propStorageID      uint16 = 0xDC01
	propObjectFormat   uint16 = 0xDC02
	propObjectSize     uint16 = 0xDC04
	propObjectFileName uint16 = 0xDC07
	propDateModified   uint16 = 0xDC09
	propParentObject   uint16 = 0xDC0B
	propName           uint16 = 0xDC44
)

// MTP property datatype codes.
const (
	datatypeUint16 uint16 = 0x0004
	datatypeUint32 uint16 = 0x0006
	datatypeUint64 uint16 = 0x0008
	datatypeString uint16 = 0xFFFF
)

// propEntry is one decoded quadruple from a GetObjectPropList
// response: { ObjectHandle, PropertyCode, Datatype, Value }.
type propEntry struct {
	Handle   uint32
	Property uint16
	Datatype uint16
	UintVal  uint64
	StrVal   string
}

// decodeObjectPropList decodes a get-object-prop-list response
// payload: a u32 count followed by that many quadruples.
func decodeObjectPropList(b []byte) ([]propEntry, error) {
	if len(b) < 4 {
		return nil, &wire.ErrMalformed{Reason: "truncated object prop list count"}
	}
	count := binary.LittleEndian.Uint32(b)
	off := 4

	entries := make([]propEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(b)-off < 8 {
			return nil, &wire.ErrMalformed{Reason: "truncated object prop list entry"}
		}
		e := propEntry{
			Handle:   binary.LittleEndian.Uint32(b[off:]),
			Property: binary.LittleEndian.Uint16(b[off+4:]),
			Datatype: binary.LittleEndian.Uint16(b[off+6:]),
		}
		off += 8

		switch e.Datatype {
		case datatypeUint16:
			if len(b)-off < 2 {
				return nil, &wire.ErrMalformed{Reason: "truncated uint16 property value"}
			}
			e.UintVal = uint64(binary.LittleEndian.Uint16(b[off:]))
			off += 2
		case datatypeUint32:
			if len(b)-off < 4 {
				return nil, &wire.ErrMalformed{Reason: "truncated uint32 property value"}
			}
			e.UintVal = uint64(binary.LittleEndian.Uint32(b[off:]))
			off += 4
		case datatypeUint64:
			if len(b)-off < 8 {
				return nil, &wire.ErrMalformed{Reason: "truncated uint64 property value"}
			}
			e.UintVal = binary.LittleEndian.Uint64(b[off:])
			off += 8
		case datatypeString:
			s, n, err := wire.DecodeString(b[off:])
			if err != nil {
				return nil, err
			}
			e.StrVal = s
			off += n
		default:
			// An unsupported datatype for a property this façade does
			// not look at; skip it as a raw uint32 so parsing can
			// continue rather than aborting the whole batch.
			if len(b)-off < 4 {
				return nil, &wire.ErrMalformed{Reason: "truncated unknown-datatype property value"}
			}
			off += 4
		}

		entries = append(entries, e)
	}

	return entries, nil
}
