/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Device façade: StorageInfo / ObjectInfo dataset codecs
 */

package device

import (
	"encoding/binary"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/session"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/wire"
)

// StorageInfo is the PTP StorageInfo dataset (spec.md §3 "Storage"),
// returned by get-storage-info.
type StorageInfo struct {
	StorageType        uint16
	FilesystemType      uint16
	AccessCapability    uint16
	MaxCapacity         uint64
	FreeSpaceBytes      uint64
	FreeSpaceInImages   uint32
	StorageDescription  string
	VolumeLabel         string
}

// ReadOnly reports whether AccessCapability forbids writes. PTP
// defines 0 = read-write, 1 = read-only, 2 = read-only with object
// deletion.
func (s StorageInfo) ReadOnly() bool {
	return s.AccessCapability == 1 || s.AccessCapability == 2
}

// DecodeStorageInfo decodes a get-storage-info response payload.
func DecodeStorageInfo(b []byte) (StorageInfo, error) {
	var info StorageInfo
	off := 0

	if len(b)-off < 2+2+2+8+8+4 {
		return StorageInfo{}, &wire.ErrMalformed{Reason: "truncated storage info"}
	}
	info.StorageType = binary.LittleEndian.Uint16(b[off:])
	off += 2
	info.FilesystemType = binary.LittleEndian.Uint16(b[off:])
	off += 2
	info.AccessCapability = binary.LittleEndian.Uint16(b[off:])
	off += 2
	info.MaxCapacity = binary.LittleEndian.Uint64(b[off:])
	off += 8
	info.FreeSpaceBytes = binary.LittleEndian.Uint64(b[off:])
	off += 8
	info.FreeSpaceInImages = binary.LittleEndian.Uint32(b[off:])
	off += 4

	desc, n, err := wire.DecodeString(b[off:])
	if err != nil {
		return StorageInfo{}, err
	}
	info.StorageDescription = desc
	off += n

	label, n, err := wire.DecodeString(b[off:])
	if err != nil {
		return StorageInfo{}, err
	}
	info.VolumeLabel = label

	return info, nil
}

// ObjectInfo is the PTP ObjectInfo dataset (spec.md §3 "Object"),
// shared by get-object-info and send-object-info.
type ObjectInfo struct {
	StorageID            uint32
	ObjectFormat         uint16
	ProtectionStatus     uint16
	ObjectCompressedSize uint32
	ThumbFormat          uint16
	ThumbCompressedSize  uint32
	ThumbPixWidth        uint32
	ThumbPixHeight       uint32
	ImagePixWidth        uint32
	ImagePixHeight       uint32
	ImageBitDepth        uint32
	ParentObject         uint32
	AssociationType      uint16
	AssociationDesc      uint32
	SequenceNumber       uint32
	Filename             string
	CaptureDate          string
	ModificationDate     string
	Keywords             string
}

// IsFolder reports whether the dataset describes an association
// (folder), per spec.md §3 invariant (iii).
func (o ObjectInfo) IsFolder() bool {
	return o.ObjectFormat == session.FormatAssociation
}

// EncodeObjectInfo encodes an ObjectInfo dataset for send-object-info.
func EncodeObjectInfo(o ObjectInfo) []byte {
	buf := make([]byte, 0, 64)
	buf = appendU32(buf, o.StorageID)
	buf = appendU16(buf, o.ObjectFormat)
	buf = appendU16(buf, o.ProtectionStatus)
	buf = appendU32(buf, o.ObjectCompressedSize)
	buf = appendU16(buf, o.ThumbFormat)
	buf = appendU32(buf, o.ThumbCompressedSize)
	buf = appendU32(buf, o.ThumbPixWidth)
	buf = appendU32(buf, o.ThumbPixHeight)
	buf = appendU32(buf, o.ImagePixWidth)
	buf = appendU32(buf, o.ImagePixHeight)
	buf = appendU32(buf, o.ImageBitDepth)
	buf = appendU32(buf, o.ParentObject)
	buf = appendU16(buf, o.AssociationType)
	buf = appendU32(buf, o.AssociationDesc)
	buf = appendU32(buf, o.SequenceNumber)
	buf = append(buf, wire.EncodeString(o.Filename)...)
	buf = append(buf, wire.EncodeString(o.CaptureDate)...)
	buf = append(buf, wire.EncodeString(o.ModificationDate)...)
	buf = append(buf, wire.EncodeString(o.Keywords)...)
	return buf
}

// DecodeObjectInfo decodes a get-object-info response payload.
func DecodeObjectInfo(b []byte) (ObjectInfo, error) {
	var o ObjectInfo
	off := 0

	need := func(n int) error {
		if len(b)-off < n {
			return &wire.ErrMalformed{Reason: "truncated object info"}
		}
		return nil
	}

	if err := need(4); err != nil {
		return ObjectInfo{}, err
	}
	o.StorageID = binary.LittleEndian.Uint32(b[off:])
	off += 4

	if err := need(2); err != nil {
		return ObjectInfo{}, err
	}
	o.ObjectFormat = binary.LittleEndian.Uint16(b[off:])
	off += 2

	if err := need(2); err != nil {
		return ObjectInfo{}, err
	}
	o.ProtectionStatus = binary.LittleEndian.Uint16(b[off:])
	off += 2

	if err := need(4); err != nil {
		return ObjectInfo{}, err
	}
	o.ObjectCompressedSize = binary.LittleEndian.Uint32(b[off:])
	off += 4

	if err := need(2); err != nil {
		return ObjectInfo{}, err
	}
	o.ThumbFormat = binary.LittleEndian.Uint16(b[off:])
	off += 2

	for _, dst := range []*uint32{&o.ThumbCompressedSize, &o.ThumbPixWidth, &o.ThumbPixHeight,
		&o.ImagePixWidth, &o.ImagePixHeight, &o.ImageBitDepth, &o.ParentObject} {
		if err := need(4); err != nil {
			return ObjectInfo{}, err
		}
		*dst = binary.LittleEndian.Uint32(b[off:])
		off += 4
	}

	if err := need(2); err != nil {
		return ObjectInfo{}, err
	}
	o.AssociationType = binary.LittleEndian.Uint16(b[off:])
	off += 2

	for _, dst := range []*uint32{&o.AssociationDesc, &o.SequenceNumber} {
		if err := need(4); err != nil {
			return ObjectInfo{}, err
		}
		*dst = binary.LittleEndian.Uint32(b[off:])
		off += 4
	}

	for _, dst := range []*string{&o.Filename, &o.CaptureDate, &o.ModificationDate, &o.Keywords} {
		s, n, err := wire.DecodeString(b[off:])
		if err != nil {
			return ObjectInfo{}, err
		}
		*dst = s
		off += n
	}

	return o, nil
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}
