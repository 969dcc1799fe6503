/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Device façade: read algorithm with partial/whole-object fallback
 */

package device

import (
	"context"
	"fmt"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/session"
)

// ReadObject streams an object's bytes to sink, applying the ladder
// selected by the probe engine (spec.md §4.4's read algorithm):
// partial-64 in max_chunk_bytes chunks when available, else partial-32
// when the offset and length fit in 32 bits, else a single
// get-object whole-object read with the leading offset bytes
// discarded. length <= 0 means "to the end of the object" and
// requires knowing totalSize up front (the caller typically already
// has it from GetObjectInfo).
//
// progress, if non-nil, is invoked after every chunk with the
// cumulative number of bytes delivered to sink so far.
func (d *Device) ReadObject(ctx context.Context, handle uint32, offset, length int64, totalSize int64, sink func([]byte) error, progress func(committed int64)) error {
	if length <= 0 {
		length = totalSize - offset
	}
	if length < 0 {
		return fmt.Errorf("device: read-object: offset %d beyond object size %d", offset, totalSize)
	}

	switch {
	case d.Ladder.Read == "partial-64" && d.Info.SupportsOp(uint16(session.OpGetPartialObject64)):
		return d.readPartial64(ctx, handle, offset, length, sink, progress)
	case d.Ladder.Read == "partial-32" && fitsUint32(offset) && fitsUint32(length):
		return d.readPartial32(ctx, handle, offset, length, sink, progress)
	default:
		return d.readWholeObject(ctx, handle, offset, length, sink, progress)
	}
}

func (d *Device) readPartial64(ctx context.Context, handle uint32, offset, length int64, sink func([]byte) error, progress func(int64)) error {
	chunk := int64(d.Ex.Tuning().MaxChunkBytes)
	if chunk <= 0 {
		chunk = 32 * 1024
	}

	var delivered int64
	for delivered < length {
		want := chunk
		if remaining := length - delivered; remaining < want {
			want = remaining
		}
		off := offset + delivered

		var got int64
		_, err := d.Ex.Execute(ctx, &session.Request{
			Op:     session.OpGetPartialObject64,
			Params: []uint32{handle, uint32(off), uint32(off >> 32), uint32(want), uint32(want >> 32)},
			DataIn: func(b []byte) error {
				got += int64(len(b))
				return sink(b)
			},
		})
		if err != nil {
			return err
		}
		delivered += got
		if progress != nil {
			progress(delivered)
		}
		if got == 0 {
			break // device reported end of object before length was reached
		}
	}
	return nil
}

func (d *Device) readPartial32(ctx context.Context, handle uint32, offset, length int64, sink func([]byte) error, progress func(int64)) error {
	chunk := int64(d.Ex.Tuning().MaxChunkBytes)
	if chunk <= 0 {
		chunk = 32 * 1024
	}

	var delivered int64
	for delivered < length {
		want := chunk
		if remaining := length - delivered; remaining < want {
			want = remaining
		}
		off := offset + delivered

		var got int64
		_, err := d.Ex.Execute(ctx, &session.Request{
			Op:     session.OpGetPartialObject,
			Params: []uint32{handle, uint32(off), uint32(want)},
			DataIn: func(b []byte) error {
				got += int64(len(b))
				return sink(b)
			},
		})
		if err != nil {
			return err
		}
		delivered += got
		if progress != nil {
			progress(delivered)
		}
		if got == 0 {
			break
		}
	}
	return nil
}

// readWholeObject is the last-resort fallback: it fetches the entire
// object and discards bytes before offset, then delivers up to length
// bytes to sink. Used when the device supports neither partial
// variant.
func (d *Device) readWholeObject(ctx context.Context, handle uint32, offset, length int64, sink func([]byte) error, progress func(int64)) error {
	var skipped, delivered int64

	_, err := d.Ex.Execute(ctx, &session.Request{
		Op:     session.OpGetObject,
		Params: []uint32{handle},
		DataIn: func(b []byte) error {
			if skipped < offset {
				skip := offset - skipped
				if skip > int64(len(b)) {
					skip = int64(len(b))
				}
				b = b[skip:]
				skipped += skip
			}
			if delivered >= length || len(b) == 0 {
				return nil
			}
			if remaining := length - delivered; int64(len(b)) > remaining {
				b = b[:remaining]
			}
			if err := sink(b); err != nil {
				return err
			}
			delivered += int64(len(b))
			if progress != nil {
				progress(delivered)
			}
			return nil
		},
	})
	return err
}

func fitsUint32(v int64) bool {
	return v >= 0 && v <= int64(^uint32(0))
}
