/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Virtual device: in-memory storage/object graph, ground truth for
 * tests of the session executor, enumeration, and high-level façade
 * operations (spec.md §4.10).
 */

// Package virtual implements a reference MTP device entirely in
// memory: a transport.Link that answers the wire protocol like a
// well-behaved device, backed by a Device holding storages and
// objects. It is the ground-truth fixture other packages' tests
// build against instead of a real USB device, plus a small set of
// preset profiles (phone/camera/media player) for regression-testing
// the quirk resolver.
package virtual

import (
	"fmt"
	"sync"
	"time"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/device"
)

// Storage is one in-memory storage unit.
type Storage struct {
	ID          uint32
	Description string
	Capacity    uint64
	Free        uint64
	ReadOnly    bool
}

// Object is one in-memory file or folder.
type Object struct {
	Handle   uint32
	Parent   uint32
	StorageID uint32
	Name     string
	Data     []byte
	IsFolder bool
	ModTime  time.Time
}

// Device is the in-memory object graph a virtual.Link answers
// commands against.
type Device struct {
	mu sync.Mutex

	Manufacturer        string
	Model               string
	DeviceVersion       string
	SerialNumber        string
	OperationsSupported []uint16
	EventsSupported     []uint16

	storages   map[uint32]*Storage
	objects    map[uint32]*Object
	nextHandle uint32

	events chan VirtualEvent
}

// VirtualEvent is an event queued by a mutation for delivery over the
// virtual link's interrupt endpoint, mirroring a real device firing
// an object-added/removed notification.
type VirtualEvent struct {
	Code   uint16
	Params []uint32
}

// NewDevice creates an empty virtual device. Use a Profile (see
// profiles.go) to pre-populate a realistic identity and storage set.
func NewDevice() *Device {
	return &Device{
		storages:   make(map[uint32]*Storage),
		objects:    make(map[uint32]*Object),
		nextHandle: 1,
		events:     make(chan VirtualEvent, 64),
	}
}

// AddStorage registers a storage and returns it.
func (d *Device) AddStorage(id uint32, description string, capacity, free uint64, readOnly bool) *Storage {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &Storage{ID: id, Description: description, Capacity: capacity, Free: free, ReadOnly: readOnly}
	d.storages[id] = s
	return s
}

// StorageIDs returns every registered storage id.
func (d *Device) StorageIDs() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]uint32, 0, len(d.storages))
	for id := range d.storages {
		ids = append(ids, id)
	}
	return ids
}

func (d *Device) storageInfo(id uint32) (*Storage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.storages[id]
	return s, ok
}

// CreateObject inserts an object directly (bypassing send-object-info/
// send-object), for test fixture setup. parent session.RootHandle
// (0xFFFFFFFF) means the storage root.
func (d *Device) CreateObject(storageID, parent uint32, name string, data []byte, isFolder bool) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.nextHandle
	d.nextHandle++
	d.objects[h] = &Object{
		Handle: h, Parent: parent, StorageID: storageID, Name: name,
		Data: append([]byte(nil), data...), IsFolder: isFolder, ModTime: time.Now(),
	}
	return h
}

func (d *Device) object(handle uint32) (*Object, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[handle]
	return o, ok
}

func (d *Device) childrenOf(storageID, parent uint32) []*Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Object
	for _, o := range d.objects {
		if o.StorageID == storageID && o.Parent == parent {
			out = append(out, o)
		}
	}
	return out
}

func (d *Device) deleteSubtree(handle uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.objects[handle]; !ok {
		return fmt.Errorf("virtual: no such object %d", handle)
	}
	var toDelete []uint32
	var collect func(h uint32)
	collect = func(h uint32) {
		toDelete = append(toDelete, h)
		for _, o := range d.objects {
			if o.Parent == h {
				collect(o.Handle)
			}
		}
	}
	collect(handle)
	for _, h := range toDelete {
		delete(d.objects, h)
	}
	return nil
}

func (d *Device) moveObject(handle, destStorage, destParent uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[handle]
	if !ok {
		return fmt.Errorf("virtual: no such object %d", handle)
	}
	o.StorageID = destStorage
	o.Parent = destParent
	return nil
}

func (d *Device) insertFromObjectInfo(storageID, parent uint32, info device.ObjectInfo) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.nextHandle
	d.nextHandle++
	d.objects[h] = &Object{
		Handle: h, Parent: parent, StorageID: storageID, Name: info.Filename,
		IsFolder: info.IsFolder(), ModTime: time.Now(),
	}
	return h
}

func (d *Device) appendData(handle uint32, chunk []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o, ok := d.objects[handle]; ok {
		o.Data = append(o.Data, chunk...)
	}
}

// writeAt overwrites handle's data starting at offset, growing the
// backing slice as needed, for send-partial-object resume.
func (d *Device) writeAt(handle uint32, offset uint32, chunk []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[handle]
	if !ok {
		return
	}
	end := int(offset) + len(chunk)
	if end > len(o.Data) {
		grown := make([]byte, end)
		copy(grown, o.Data)
		o.Data = grown
	}
	copy(o.Data[offset:end], chunk)
}

func (d *Device) queueEvent(code uint16, params ...uint32) {
	select {
	case d.events <- VirtualEvent{Code: code, Params: params}:
	default:
	}
}
