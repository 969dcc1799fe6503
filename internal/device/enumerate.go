/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Device façade: enumeration algorithm with lazy batching
 */

package device

import (
	"context"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/session"
)

// Record is one enumerated child of a folder, assembled either from a
// get-object-prop-list batch or from a get-object-info round-trip,
// per spec.md §4.4's enumeration algorithm.
type Record struct {
	Handle       uint32
	ParentHandle uint32
	StorageID    uint32
	Name         string
	Size         *int64
	Format       uint16
	IsFolder     bool
}

// Enumerate lists the immediate children of parent within storageID,
// delivering them to yield in batches of at most batchSize so very
// large folders do not require unbounded buffering. It picks
// prop-list-5 (one get-object-prop-list round-trip per parent) when
// the ladder prefers it and the device supports the opcode; otherwise
// it falls back to get-object-handles followed by batched
// get-object-info calls.
func (d *Device) Enumerate(ctx context.Context, storageID, parent uint32, batchSize int, yield func([]Record) error) error {
	if batchSize <= 0 {
		batchSize = 256
	}

	if d.Ladder.Enumeration == "prop-list-5" && d.Info.SupportsOp(uint16(session.OpGetObjectPropList)) {
		return d.enumeratePropList(ctx, storageID, parent, batchSize, yield)
	}
	return d.enumerateHandlesThenInfo(ctx, storageID, parent, batchSize, yield)
}

func (d *Device) enumeratePropList(ctx context.Context, storageID, parent uint32, batchSize int, yield func([]Record) error) error {
	var buf []byte
	_, err := d.Ex.Execute(ctx, &session.Request{
		Op: session.OpGetObjectPropList,
		// Handle, Format (0 = all), Property (0xFFFFFFFF = all),
		// GroupCode, Depth (0 = immediate children only).
		Params: []uint32{parent, 0, 0xFFFFFFFF, 0, 0},
		DataIn: collect(&buf),
	})
	if err != nil {
		return err
	}

	entries, err := decodeObjectPropList(buf)
	if err != nil {
		return err
	}

	order := make([]uint32, 0)
	byHandle := make(map[uint32]*Record)
	get := func(h uint32) *Record {
		r, ok := byHandle[h]
		if !ok {
			r = &Record{Handle: h, StorageID: storageID, ParentHandle: parent}
			byHandle[h] = r
			order = append(order, h)
		}
		return r
	}

	for _, e := range entries {
		r := get(e.Handle)
		switch e.Property {
		case propObjectFormat:
			r.Format = uint16(e.UintVal)
			r.IsFolder = r.Format == session.FormatAssociation
		case propObjectSize:
			v := int64(e.UintVal)
			r.Size = &v
		case propParentObject:
			r.ParentHandle = uint32(e.UintVal)
		case propStorageID:
			r.StorageID = uint32(e.UintVal)
		case propName:
			// Prefer the dedicated Name property (0xDC44) over
			// ObjectFileName when a device reports both, matching
			// what Android-style MTP stacks actually populate.
			r.Name = e.StrVal
		case propObjectFileName:
			if r.Name == "" {
				r.Name = e.StrVal
			}
		}
	}

	batch := make([]Record, 0, batchSize)
	for _, h := range order {
		r := *byHandle[h]
		if r.IsFolder {
			r.Size = nil
		}
		batch = append(batch, r)
		if len(batch) == batchSize {
			if err := yield(batch); err != nil {
				return err
			}
			batch = make([]Record, 0, batchSize)
		}
	}
	if len(batch) > 0 {
		return yield(batch)
	}
	return nil
}

func (d *Device) enumerateHandlesThenInfo(ctx context.Context, storageID, parent uint32, batchSize int, yield func([]Record) error) error {
	handles, err := d.GetObjectHandles(ctx, storageID, 0, parent)
	if err != nil {
		return err
	}

	batch := make([]Record, 0, batchSize)
	for _, h := range handles {
		info, err := d.GetObjectInfo(ctx, h)
		if err != nil {
			return err
		}

		r := Record{
			Handle:       h,
			ParentHandle: info.ParentObject,
			StorageID:    info.StorageID,
			Name:         info.Filename,
			Format:       info.ObjectFormat,
			IsFolder:     info.IsFolder(),
		}
		if !r.IsFolder {
			size := int64(info.ObjectCompressedSize)
			r.Size = &size
		}

		batch = append(batch, r)
		if len(batch) == batchSize {
			if err := yield(batch); err != nil {
				return err
			}
			batch = make([]Record, 0, batchSize)
		}
	}
	if len(batch) > 0 {
		return yield(batch)
	}
	return nil
}
