/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Device façade: event pump and subscriber fan-out
 */

package device

import (
	"context"
	"sync"
	"time"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/wire"
)

// EventKind is a decoded PTP/MTP event type (spec.md §4.4 "Event
// pump").
type EventKind int

const (
	EventUnknown EventKind = iota
	EventObjectAdded
	EventObjectRemoved
	EventObjectInfoChanged
	EventStoreAdded
	EventStoreRemoved
	EventStorageInfoChanged
	EventDeviceReset
)

// Raw PTP/MTP event codes, per the standard event-code table.
const (
	evtObjectAdded        uint16 = 0x4002
	evtObjectRemoved      uint16 = 0x4003
	evtStoreAdded         uint16 = 0x4004
	evtStoreRemoved       uint16 = 0x4005
	evtObjectInfoChanged  uint16 = 0x4007
	evtStorageInfoChanged uint16 = 0x400C
	evtDeviceReset        uint16 = 0x400B
)

// Event is a translated device event, fanned out to subscribers by
// value.
type Event struct {
	Kind         EventKind
	ObjectHandle uint32
	StorageID    uint32
	Params       []uint32
}

func decodeEvent(c *wire.Container) Event {
	e := Event{Params: c.Params}
	switch c.Code {
	case evtObjectAdded:
		e.Kind = EventObjectAdded
	case evtObjectRemoved:
		e.Kind = EventObjectRemoved
	case evtObjectInfoChanged:
		e.Kind = EventObjectInfoChanged
	case evtStoreAdded:
		e.Kind = EventStoreAdded
	case evtStoreRemoved:
		e.Kind = EventStoreRemoved
	case evtStorageInfoChanged:
		e.Kind = EventStorageInfoChanged
	case evtDeviceReset:
		e.Kind = EventDeviceReset
	default:
		e.Kind = EventUnknown
	}

	switch e.Kind {
	case EventObjectAdded, EventObjectRemoved, EventObjectInfoChanged:
		if len(c.Params) > 0 {
			e.ObjectHandle = c.Params[0]
		}
	case EventStoreAdded, EventStoreRemoved, EventStorageInfoChanged:
		if len(c.Params) > 0 {
			e.StorageID = c.Params[0]
		}
	}
	return e
}

// holdWindow bounds how long an event referencing an unindexed handle
// is held before being delivered anyway, per spec.md §4.4's "held
// briefly".
const holdWindow = 5 * time.Second

type heldEvent struct {
	event Event
	since time.Time
}

// EventSource is the minimal surface EventPump needs from
// *session.Executor; declared as an interface so tests can supply a
// fake without standing up a real link.
type EventSource interface {
	ReadEvent(ctx context.Context, timeout time.Duration) (*wire.Container, error)
}

// EventPump reads the interrupt-in endpoint and fans out translated
// events to subscribers, each with its own bounded drop-oldest
// channel so one slow subscriber cannot stall delivery to others.
type EventPump struct {
	ex EventSource

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	holdMu sync.Mutex
	held   []heldEvent
}

// NewEventPump wraps source (normally a *session.Executor).
func NewEventPump(source EventSource) *EventPump {
	return &EventPump{
		ex:   source,
		subs: make(map[int]chan Event),
	}
}

// Subscribe registers a new listener with a bounded channel of the
// given capacity. Unsubscribe must be called to release it.
func (p *EventPump) Subscribe(capacity int) (id int, ch <-chan Event) {
	if capacity <= 0 {
		capacity = 32
	}
	p.subMu.Lock()
	defer p.subMu.Unlock()
	id = p.nextSub
	p.nextSub++
	c := make(chan Event, capacity)
	p.subs[id] = c
	return id, c
}

// Unsubscribe removes and closes a listener's channel.
func (p *EventPump) Unsubscribe(id int) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	if c, ok := p.subs[id]; ok {
		close(c)
		delete(p.subs, id)
	}
}

// CloseAll closes every subscriber channel, per spec.md §3's "the
// stream closes on device close".
func (p *EventPump) CloseAll() {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for id, c := range p.subs {
		close(c)
		delete(p.subs, id)
	}
}

// Run reads events in a loop until ctx is cancelled or a read fails:
// the first ReadEvent error of any kind ends it (ctx.Err() if ctx was
// cancelled, else that error), with no retry. isKnownHandle reports whether an object
// handle is already present in the caller's index; events naming an
// unknown handle are held (see Flush) rather than delivered
// immediately, since a listener cannot yet do anything useful with a
// handle it hasn't indexed.
func (p *EventPump) Run(ctx context.Context, timeout time.Duration, isKnownHandle func(uint32) bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c, err := p.ex.ReadEvent(ctx, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		ev := decodeEvent(c)
		p.route(ev, isKnownHandle)
	}
}

func (p *EventPump) route(ev Event, isKnownHandle func(uint32) bool) {
	needsHandle := ev.Kind == EventObjectAdded || ev.Kind == EventObjectInfoChanged
	if needsHandle && isKnownHandle != nil && !isKnownHandle(ev.ObjectHandle) {
		p.holdMu.Lock()
		p.held = append(p.held, heldEvent{event: ev, since: time.Now()})
		p.holdMu.Unlock()
		return
	}
	p.publish(ev)
}

// Flush re-evaluates held events against the now-updated index,
// delivering any whose handle is known or whose hold window has
// elapsed, per spec.md §4.4. Call it after completing an enumeration.
func (p *EventPump) Flush(isKnownHandle func(uint32) bool) {
	p.holdMu.Lock()
	remaining := p.held[:0]
	var toDeliver []Event
	now := time.Now()
	for _, h := range p.held {
		if (isKnownHandle != nil && isKnownHandle(h.event.ObjectHandle)) || now.Sub(h.since) > holdWindow {
			toDeliver = append(toDeliver, h.event)
		} else {
			remaining = append(remaining, h)
		}
	}
	p.held = remaining
	p.holdMu.Unlock()

	for _, ev := range toDeliver {
		p.publish(ev)
	}
}

func (p *EventPump) publish(ev Event) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, c := range p.subs {
		select {
		case c <- ev:
		default:
			// Drop-oldest: make room for the newest event rather than
			// block the pump on a slow subscriber.
			select {
			case <-c:
			default:
			}
			select {
			case c <- ev:
			default:
			}
		}
	}
}
