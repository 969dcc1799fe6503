/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Virtual link: transport.Link answering the wire protocol against a
 * Device (spec.md §4.10)
 */

package virtual

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/device"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/session"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/transport"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/wire"
)

const (
	epIn        transport.EndpointAddr = 1
	epOut       transport.EndpointAddr = 2
	epInterrupt transport.EndpointAddr = 3
)

// Raw PTP/MTP event codes this link fires, mirrored from
// internal/device/events.go (unexported there): this link encodes
// what that package decodes.
const (
	evtObjectAdded   uint16 = 0x4002
	evtObjectRemoved uint16 = 0x4003
	evtStoreAdded    uint16 = 0x4004
	evtStoreRemoved  uint16 = 0x4005
)

// pendingDataOut tracks a data-out phase spanning several BulkOut
// calls: the header call announces the total length, and the
// following calls deliver raw payload bytes with no framing of their
// own, mirroring exactly how session.Executor.streamDataOut writes.
type pendingDataOut struct {
	op    session.Op
	txid  uint32
	total int
	buf   []byte
}

// Link is a transport.Link that answers PTP/MTP commands against an
// in-memory Device instead of a real USB handle. It is the ground
// truth internal/probe, internal/session and internal/device tests
// run against, and the backing fixture for end-to-end read/write/
// enumerate scenarios (spec.md §8).
type Link struct {
	dev *Device

	mu       sync.Mutex
	queue    [][]byte
	awaiting *pendingDataOut

	// State the PTP write protocol requires across transactions:
	// send-object operates on the handle the immediately preceding
	// send-object-info minted, not on a parameter of its own.
	pendingHandle uint32

	sendObjectInfoStorageID uint32
	sendObjectInfoParent    uint32
	sendPartialOffset       uint32

	closed bool
}

// NewLink wraps dev in a transport.Link.
func NewLink(dev *Device) *Link {
	return &Link{dev: dev}
}

func (l *Link) OpenUSB(ctx context.Context) error { return nil }

func (l *Link) ClaimInterface(ctx context.Context, num int) (in, out, interrupt transport.EndpointAddr, err error) {
	return epIn, epOut, epInterrupt, nil
}

func (l *Link) BulkOut(ctx context.Context, ep transport.EndpointAddr, data []byte, timeout time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.awaiting != nil {
		l.awaiting.buf = append(l.awaiting.buf, data...)
		if len(l.awaiting.buf) >= l.awaiting.total {
			l.finishDataOutLocked(l.awaiting)
			l.awaiting = nil
		}
		return len(data), nil
	}

	totalLen, typ, code, txid, err := wire.DecodeHeader(data)
	if err != nil {
		return 0, err
	}

	switch typ {
	case wire.TypeCommand:
		c, err := wire.DecodeContainer(data)
		if err != nil {
			return 0, err
		}
		l.handleCommandLocked(c)
		return len(data), nil

	case wire.TypeData:
		payloadLen := totalLen - wire.HeaderSize
		awaiting := &pendingDataOut{op: session.Op(code), txid: txid, total: payloadLen}
		if len(data) > wire.HeaderSize {
			awaiting.buf = append(awaiting.buf, data[wire.HeaderSize:]...)
		}
		if len(awaiting.buf) >= awaiting.total {
			l.finishDataOutLocked(awaiting)
		} else {
			l.awaiting = awaiting
		}
		return len(data), nil

	default:
		return 0, transport.NewError("bulk_out", transport.ErrKindIO, "unexpected container type in command phase")
	}
}

func (l *Link) BulkIn(ctx context.Context, ep transport.EndpointAddr, maxBytes int, timeout time.Duration) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, transport.NewError("bulk_in", transport.ErrKindIO, "no response queued")
	}
	frame := l.queue[0]
	l.queue = l.queue[1:]
	return frame, nil
}

func (l *Link) InterruptIn(ctx context.Context, ep transport.EndpointAddr, timeout time.Duration) ([]byte, error) {
	select {
	case ev := <-l.dev.events:
		return wire.EncodeEvent(ev.Code, 0, ev.Params), nil
	case <-time.After(timeout):
		return nil, transport.NewError("interrupt_in", transport.ErrKindTimeout, "no event pending")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Link) ResetDevice(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue = nil
	l.awaiting = nil
	return nil
}

func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *Link) String() string { return "virtual" }

func (l *Link) respond(code session.RespCode, txid uint32, params []uint32) {
	l.queue = append(l.queue, wire.EncodeResponse(uint16(code), txid, params))
}

func (l *Link) respondData(opCode uint16, txid uint32, payload []byte, respCode session.RespCode, respParams []uint32) {
	l.queue = append(l.queue, wire.EncodeData(opCode, txid, payload))
	l.respond(respCode, txid, respParams)
}

// handleCommandLocked dispatches one decoded command container,
// appending the resulting data/response frames to l.queue, or parking
// l.awaiting when the operation expects a data-out phase.
func (l *Link) handleCommandLocked(c *wire.Container) {
	param := func(i int) uint32 {
		if i < len(c.Params) {
			return c.Params[i]
		}
		return 0
	}

	switch session.Op(c.Code) {
	case session.OpOpenSession, session.OpCloseSession:
		l.respond(session.RespOK, c.TxID, nil)

	case session.OpGetDeviceInfo:
		l.respondData(c.Code, c.TxID, l.encodeDeviceInfo(), session.RespOK, nil)

	case session.OpGetStorageIDs:
		l.respondData(c.Code, c.TxID, wire.EncodeU32Array(l.dev.StorageIDs()), session.RespOK, nil)

	case session.OpGetStorageInfo:
		s, ok := l.dev.storageInfo(param(0))
		if !ok {
			l.respond(session.RespInvalidParameter, c.TxID, nil)
			return
		}
		l.respondData(c.Code, c.TxID, encodeStorageInfo(s), session.RespOK, nil)

	case session.OpGetObjectHandles:
		storageID, parent := param(0), param(2)
		children := l.dev.childrenOf(storageID, parent)
		handles := make([]uint32, len(children))
		for i, o := range children {
			handles[i] = o.Handle
		}
		l.respondData(c.Code, c.TxID, wire.EncodeU32Array(handles), session.RespOK, nil)

	case session.OpGetObjectInfo:
		o, ok := l.dev.object(param(0))
		if !ok {
			l.respond(session.RespInvalidParameter, c.TxID, nil)
			return
		}
		l.respondData(c.Code, c.TxID, device.EncodeObjectInfo(objectInfoOf(o)), session.RespOK, nil)

	case session.OpGetObject:
		o, ok := l.dev.object(param(0))
		if !ok {
			l.respond(session.RespInvalidParameter, c.TxID, nil)
			return
		}
		l.respondData(c.Code, c.TxID, o.Data, session.RespOK, nil)

	case session.OpGetPartialObject:
		o, ok := l.dev.object(param(0))
		if !ok {
			l.respond(session.RespInvalidParameter, c.TxID, nil)
			return
		}
		off, want := uint64(param(1)), uint64(param(2))
		chunk := slicePartial(o.Data, off, want)
		l.respondData(c.Code, c.TxID, chunk, session.RespOK, []uint32{uint32(len(chunk))})

	case session.OpGetPartialObject64:
		o, ok := l.dev.object(param(0))
		if !ok {
			l.respond(session.RespInvalidParameter, c.TxID, nil)
			return
		}
		off := uint64(param(1)) | uint64(param(2))<<32
		want := uint64(param(3)) | uint64(param(4))<<32
		chunk := slicePartial(o.Data, off, want)
		l.respondData(c.Code, c.TxID, chunk, session.RespOK, []uint32{uint32(len(chunk))})

	case session.OpDeleteObject:
		if err := l.dev.deleteSubtree(param(0)); err != nil {
			l.respond(session.RespInvalidParameter, c.TxID, nil)
			return
		}
		l.dev.queueEvent(evtObjectRemoved, param(0))
		l.respond(session.RespOK, c.TxID, nil)

	case session.OpMoveObject:
		if err := l.dev.moveObject(param(0), param(1), param(2)); err != nil {
			l.respond(session.RespInvalidParameter, c.TxID, nil)
			return
		}
		l.respond(session.RespOK, c.TxID, nil)

	case session.OpGetObjectPropList:
		// Format/property/group-code/depth filters are accepted but
		// ignored: this fixture always returns every immediate child
		// with its format and name, which is what internal/device's
		// prop-list-5 path actually requests (format=all, property=all,
		// depth=0).
		l.respondData(c.Code, c.TxID, l.encodeObjectPropList(param(0)), session.RespOK, nil)

	case session.OpSendObjectInfo:
		// No response yet: the ObjectInfo dataset itself is this
		// transaction's data-out phase, which arrives as a separate
		// TypeData container and is finished in finishDataOutLocked.
		l.sendObjectInfoStorageID = param(0)
		l.sendObjectInfoParent = param(1)

	case session.OpSendObject:
		// Operates on the handle send-object-info just minted;
		// nothing to do until the data-out phase arrives.

	case session.OpSendPartialObject:
		l.pendingHandle = param(0)
		l.sendPartialOffset = param(1)

	default:
		l.respond(session.RespOperationNotSupported, c.TxID, nil)
	}
}

// finishDataOutLocked completes a data-out phase whose payload has
// fully arrived in p.buf, mutating the device and queuing the
// transaction's response frame.
func (l *Link) finishDataOutLocked(p *pendingDataOut) {
	switch p.op {
	case session.OpSendObjectInfo:
		storageID, parent := l.sendObjectInfoStorageID, l.sendObjectInfoParent
		info, err := device.DecodeObjectInfo(p.buf)
		if err != nil {
			l.respond(session.RespInvalidParameter, p.txid, nil)
			return
		}
		handle := l.dev.insertFromObjectInfo(storageID, parent, info)
		l.pendingHandle = handle
		l.dev.queueEvent(evtObjectAdded, handle)
		l.respond(session.RespOK, p.txid, []uint32{storageID, parent, handle})

	case session.OpSendObject:
		l.dev.appendData(l.pendingHandle, p.buf)
		l.respond(session.RespOK, p.txid, nil)

	case session.OpSendPartialObject:
		l.dev.writeAt(l.pendingHandle, l.sendPartialOffset, p.buf)
		l.respond(session.RespOK, p.txid, []uint32{uint32(len(p.buf))})
	}
}

func slicePartial(data []byte, off, want uint64) []byte {
	if off >= uint64(len(data)) {
		return nil
	}
	end := off + want
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	return data[off:end]
}

func objectInfoOf(o *Object) device.ObjectInfo {
	format := uint16(0x3000)
	size := uint32(len(o.Data))
	if o.IsFolder {
		format = session.FormatAssociation
		size = 0
	}
	return device.ObjectInfo{
		StorageID:            o.StorageID,
		ObjectFormat:         format,
		ObjectCompressedSize: size,
		ParentObject:         o.Parent,
		Filename:             o.Name,
		ModificationDate:     o.ModTime.UTC().Format("20060102T150405"),
	}
}

func encodeStorageInfo(s *Storage) []byte {
	accessCapability := uint16(0)
	if s.ReadOnly {
		accessCapability = 1
	}
	buf := make([]byte, 0, 32)
	buf = appendU16Local(buf, 3) // StorageType: fixed RAM
	buf = appendU16Local(buf, 3) // FilesystemType: DCF
	buf = appendU16Local(buf, accessCapability)
	buf = appendU64Local(buf, s.Capacity)
	buf = appendU64Local(buf, s.Free)
	buf = appendU32Local(buf, 0) // FreeSpaceInImages: unknown
	buf = append(buf, wire.EncodeString(s.Description)...)
	buf = append(buf, wire.EncodeString("")...) // VolumeLabel
	return buf
}

func (l *Link) encodeDeviceInfo() []byte {
	d := l.dev
	buf := make([]byte, 0, 128)
	buf = appendU16Local(buf, 100)      // StandardVersion
	buf = appendU32Local(buf, 0xFFFFFFFF) // VendorExtensionID: none
	buf = appendU16Local(buf, 0)        // VendorExtensionVersion
	buf = append(buf, wire.EncodeString("")...)
	buf = appendU16Local(buf, 0) // FunctionalMode
	buf = append(buf, wire.EncodeU16Array(d.OperationsSupported)...)
	buf = append(buf, wire.EncodeU16Array(d.EventsSupported)...)
	buf = append(buf, wire.EncodeU16Array(nil)...) // DevicePropsSupported
	buf = append(buf, wire.EncodeU16Array(nil)...) // CaptureFormats
	buf = append(buf, wire.EncodeU16Array([]uint16{0x3000, session.FormatAssociation})...)
	buf = append(buf, wire.EncodeString(d.Manufacturer)...)
	buf = append(buf, wire.EncodeString(d.Model)...)
	buf = append(buf, wire.EncodeString(d.DeviceVersion)...)
	buf = append(buf, wire.EncodeString(d.SerialNumber)...)
	return buf
}

// encodeObjectPropList answers get-object-prop-list for the immediate
// children of parent with the two properties internal/device's
// prop-list-5 enumeration reads: ObjectFormat and Name.
func (l *Link) encodeObjectPropList(parent uint32) []byte {
	var children []*Object
	for _, id := range l.dev.StorageIDs() {
		children = append(children, l.dev.childrenOf(id, parent)...)
	}

	buf := make([]byte, 0, 64)
	buf = appendU32Local(buf, uint32(2*len(children)))
	for _, o := range children {
		format := uint16(0x3000)
		if o.IsFolder {
			format = session.FormatAssociation
		}
		buf = appendU32Local(buf, o.Handle)
		buf = appendU16Local(buf, propObjectFormatCode)
		buf = appendU16Local(buf, datatypeUint16Code)
		buf = appendU16Local(buf, format)

		buf = appendU32Local(buf, o.Handle)
		buf = appendU16Local(buf, propNameCode)
		buf = appendU16Local(buf, datatypeStringCode)
		buf = append(buf, wire.EncodeString(o.Name)...)
	}
	return buf
}

// Property/datatype codes mirrored from internal/device/proplist.go
// (unexported there): this link encodes what that package decodes.
const (
	propObjectFormatCode uint16 = 0xDC02
	propNameCode          uint16 = 0xDC44
	datatypeUint16Code    uint16 = 0x0004
	datatypeStringCode    uint16 = 0xFFFF
)

func appendU16Local(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU32Local(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64Local(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}
