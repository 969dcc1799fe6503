/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Device façade: operation table, read/write algorithms
 */

package device

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/probe"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/session"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/wire"
)

// Device is the façade over one probed, session-open MTP device,
// composing the wire codec and session executor into the typed
// operation table of spec.md §4.4.
type Device struct {
	Ex        *session.Executor
	Info      *probe.DeviceInfo
	Ladder    probe.Ladder
	StableID  string
	Ephemeral EphemeralID
}

// New wraps a probe.Result (plus the identity the caller resolved via
// the Registry) into a Device ready to serve operations.
func New(result *probe.Result, stableID string, ephemeral EphemeralID) *Device {
	return &Device{
		Ex:        result.Executor,
		Info:      result.Info,
		Ladder:    result.Receipt.Ladder,
		StableID:  stableID,
		Ephemeral: ephemeral,
	}
}

// Close ends the MTP session and tears down the link.
func (d *Device) Close(ctx context.Context) error {
	_ = d.Ex.CloseSession(ctx)
	return d.Ex.Close()
}

// GetStorageIDs issues get-storage-ids.
func (d *Device) GetStorageIDs(ctx context.Context) ([]uint32, error) {
	var buf []byte
	_, err := d.Ex.Execute(ctx, &session.Request{
		Op:     session.OpGetStorageIDs,
		DataIn: collect(&buf),
	})
	if err != nil {
		return nil, err
	}
	ids, _, err := wire.DecodeU32Array(buf)
	if err != nil {
		return nil, fmt.Errorf("device: get-storage-ids: %w", err)
	}
	return ids, nil
}

// GetStorageInfo issues get-storage-info for storageID.
func (d *Device) GetStorageInfo(ctx context.Context, storageID uint32) (StorageInfo, error) {
	var buf []byte
	_, err := d.Ex.Execute(ctx, &session.Request{
		Op:     session.OpGetStorageInfo,
		Params: []uint32{storageID},
		DataIn: collect(&buf),
	})
	if err != nil {
		return StorageInfo{}, err
	}
	info, err := DecodeStorageInfo(buf)
	if err != nil {
		return StorageInfo{}, fmt.Errorf("device: get-storage-info: %w", err)
	}
	return info, nil
}

// GetObjectHandles issues get-object-handles. formatFilter 0 means
// all formats; parent session.RootHandle means the storage root.
func (d *Device) GetObjectHandles(ctx context.Context, storageID, formatFilter, parent uint32) ([]uint32, error) {
	var buf []byte
	_, err := d.Ex.Execute(ctx, &session.Request{
		Op:     session.OpGetObjectHandles,
		Params: []uint32{storageID, formatFilter, parent},
		DataIn: collect(&buf),
	})
	if err != nil {
		return nil, err
	}
	ids, _, err := wire.DecodeU32Array(buf)
	if err != nil {
		return nil, fmt.Errorf("device: get-object-handles: %w", err)
	}
	return ids, nil
}

// GetObjectInfo issues get-object-info for handle.
func (d *Device) GetObjectInfo(ctx context.Context, handle uint32) (ObjectInfo, error) {
	var buf []byte
	_, err := d.Ex.Execute(ctx, &session.Request{
		Op:     session.OpGetObjectInfo,
		Params: []uint32{handle},
		DataIn: collect(&buf),
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	info, err := DecodeObjectInfo(buf)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("device: get-object-info: %w", err)
	}
	return info, nil
}

// DeleteObject issues delete-object. Per spec.md §4.4, a folder's
// subtree is deleted recursively by the device itself.
func (d *Device) DeleteObject(ctx context.Context, handle uint32) error {
	_, err := d.Ex.Execute(ctx, &session.Request{
		Op:     session.OpDeleteObject,
		Params: []uint32{handle, 0},
	})
	return err
}

// MoveObject issues move-object. Crossing storages is only honored if
// the device accepts it; the façade does not pre-validate.
func (d *Device) MoveObject(ctx context.Context, handle, destStorageID, destParent uint32) error {
	_, err := d.Ex.Execute(ctx, &session.Request{
		Op:     session.OpMoveObject,
		Params: []uint32{handle, destStorageID, destParent},
	})
	return err
}

// SendObjectInfo issues send-object-info, returning the handle the
// device minted for the new object. It must be followed by SendObject
// (or ResumeSendObject) in the same session, per spec.md §4.4.
func (d *Device) SendObjectInfo(ctx context.Context, storageID, parent uint32, info ObjectInfo) (uint32, error) {
	payload := EncodeObjectInfo(info)
	resp, err := d.Ex.Execute(ctx, &session.Request{
		Op:         session.OpSendObjectInfo,
		Params:     []uint32{storageID, parent},
		DataOut:    bytes.NewReader(payload),
		DataOutLen: int64(len(payload)),
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Params) < 3 {
		return 0, fmt.Errorf("device: send-object-info: response missing new-object-handle param")
	}
	return resp.Params[2], nil
}

// SendObject streams size bytes from src as the object body, per a
// preceding SendObjectInfo.
func (d *Device) SendObject(ctx context.Context, src io.Reader, size int64) error {
	_, err := d.Ex.Execute(ctx, &session.Request{
		Op:         session.OpSendObject,
		DataOut:    src,
		DataOutLen: size,
	})
	return err
}

// ResumeSendObject resumes an interrupted write for an
// already-handle-assigned object, per spec.md §4.4's send-partial-
// object resume note: remaining streams from offset to totalSize.
func (d *Device) ResumeSendObject(ctx context.Context, handle uint32, remaining io.Reader, offset, totalSize int64) error {
	if !canResumeWrite(d.Ladder) {
		return fmt.Errorf("device: %s does not support send-partial-object resume", d.StableID)
	}
	length := totalSize - offset
	_, err := d.Ex.Execute(ctx, &session.Request{
		Op:         session.OpSendPartialObject,
		Params:     []uint32{handle, uint32(offset), uint32(length)},
		DataOut:    remaining,
		DataOutLen: length,
	})
	return err
}

// collect returns a session.DataSink that appends every chunk to buf.
func collect(buf *[]byte) session.DataSink {
	return func(chunk []byte) error {
		*buf = append(*buf, chunk...)
		return nil
	}
}

// canResumeWrite reports whether the selected ladder supports
// resuming an interrupted write via send-partial-object.
func canResumeWrite(l Ladder) bool {
	return l.Write == "partial"
}

// Ladder is an alias of probe.Ladder, so this package's read/write
// code can name the type locally. Being an alias of a type from
// another package, it cannot carry methods of its own.
type Ladder = probe.Ladder
