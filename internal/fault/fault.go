/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Fault-injection link decorator
 */

// Package fault implements a transport.Link decorator driven by a
// mutable, serializable fault schedule. Tests construct a Schedule
// describing timeouts, stalls, disconnects and protocol errors keyed
// to an operation kind, a call index, a byte offset within a
// streaming transfer, or a delay, and wrap a real or virtual Link in
// a Link value that consumes the schedule as it runs.
package fault

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/transport"
)

// OpKind identifies which Link method a fault may trigger on.
type OpKind int

// Operation kinds, matching the transport.Link method set.
const (
	OpOpenUSB OpKind = iota
	OpClaimInterface
	OpBulkOut
	OpBulkIn
	OpInterruptIn
	OpResetDevice
	OpClose
)

func (k OpKind) String() string {
	switch k {
	case OpOpenUSB:
		return "open_usb"
	case OpClaimInterface:
		return "claim_interface"
	case OpBulkOut:
		return "bulk_out"
	case OpBulkIn:
		return "bulk_in"
	case OpInterruptIn:
		return "interrupt_in"
	case OpResetDevice:
		return "reset_device"
	case OpClose:
		return "close"
	}
	return "unknown"
}

// TriggerKind identifies how a Fault is matched against the stream of
// intercepted operations.
type TriggerKind int

// Trigger kinds.
const (
	// TriggerOnOperation matches every call to the named OpKind.
	TriggerOnOperation TriggerKind = iota
	// TriggerAtCallIndex matches the Nth call across all
	// operations (0-based), regardless of kind.
	TriggerAtCallIndex
	// TriggerAtByteOffset matches a single BulkIn/BulkOut call whose
	// own size (maxBytes for BulkIn, len(data) for BulkOut) is at
	// least the given offset, before the call is forwarded. Sizes are
	// not accumulated across calls.
	TriggerAtByteOffset
	// TriggerAfterDelay matches once the given duration has
	// elapsed since the first fault was added to the schedule.
	TriggerAfterDelay
)

// Trigger describes when a Fault fires.
type Trigger struct {
	Kind   TriggerKind
	Op     OpKind        // TriggerOnOperation
	Index  int64         // TriggerAtCallIndex
	Offset int64         // TriggerAtByteOffset
	Delay  time.Duration // TriggerAfterDelay
}

// OnOperation builds a Trigger that matches every call to op.
func OnOperation(op OpKind) Trigger {
	return Trigger{Kind: TriggerOnOperation, Op: op}
}

// AtCallIndex builds a Trigger that matches the n'th intercepted call.
func AtCallIndex(n int64) Trigger {
	return Trigger{Kind: TriggerAtCallIndex, Index: n}
}

// AtByteOffset builds a Trigger that matches a BulkIn/BulkOut call
// whose own size is at least offset (see TriggerAtByteOffset).
func AtByteOffset(offset int64) Trigger {
	return Trigger{Kind: TriggerAtByteOffset, Offset: offset}
}

// AfterDelay builds a Trigger that matches once d has elapsed since
// the first fault was added to the schedule.
func AfterDelay(d time.Duration) Trigger {
	return Trigger{Kind: TriggerAfterDelay, Delay: d}
}

// Fault is a single scheduled failure: fire on Trigger, return Err,
// Repeat times (a Repeat of 0 means "fire forever" until removed by
// ClearAll/Remove).
type Fault struct {
	Trigger Trigger
	Err     error
	Repeat  int
	Label   string
}

// Schedule is a plain, serializable value type listing faults in the
// order they should be tried. Tests build up multi-fault patterns
// (timeout then N busy retries then a disconnect at a byte offset) by
// appending to a Schedule before wrapping a Link with it.
type Schedule struct {
	mu     sync.Mutex
	faults []*Fault
	start  time.Time
}

// NewSchedule returns an empty, ready-to-use Schedule.
func NewSchedule() *Schedule {
	return &Schedule{start: time.Time{}}
}

// Add appends f to the schedule and returns its index, usable with
// Remove.
func (s *Schedule) Add(f Fault) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.start.IsZero() {
		s.start = timeNow()
	}
	s.faults = append(s.faults, &f)
	return len(s.faults) - 1
}

// Remove deletes the fault at index i, if present.
func (s *Schedule) Remove(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.faults) {
		return
	}
	s.faults = append(s.faults[:i], s.faults[i+1:]...)
}

// ClearAll removes every scheduled fault.
func (s *Schedule) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
}

// Len reports how many faults remain scheduled.
func (s *Schedule) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.faults)
}

// timeNow exists so tests can't accidentally rely on wall-clock
// ordering across the package boundary; it is just time.Now, named
// for clarity at call sites.
func timeNow() time.Time { return time.Now() }

// match scans the schedule in order for the first fault whose
// trigger matches the given intercepted call, consuming one repeat of
// it (removing it if exhausted). Returns the fault's error and true
// if a match fired.
func (s *Schedule) match(op OpKind, callIndex int64, byteOffset int64, hasOffset bool) (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.faults {
		var hit bool
		switch f.Trigger.Kind {
		case TriggerOnOperation:
			hit = f.Trigger.Op == op
		case TriggerAtCallIndex:
			hit = f.Trigger.Index == callIndex
		case TriggerAtByteOffset:
			hit = hasOffset && byteOffset >= f.Trigger.Offset
		case TriggerAfterDelay:
			hit = !s.start.IsZero() && timeNow().Sub(s.start) >= f.Trigger.Delay
		}

		if !hit {
			continue
		}

		if f.Repeat > 0 {
			f.Repeat--
			if f.Repeat == 0 {
				s.faults = append(s.faults[:i], s.faults[i+1:]...)
			}
		}

		return f.Err, true
	}

	return nil, false
}

// Link wraps a transport.Link with a Schedule. Every intercepted
// operation atomically increments a call counter before consulting
// the schedule, so TriggerAtCallIndex ordering is stable under
// concurrent use even though the session executor is normally the
// only caller.
type Link struct {
	inner     transport.Link
	schedule  *Schedule
	callCount int64
}

// Wrap returns a Link that decorates inner with sched.
func Wrap(inner transport.Link, sched *Schedule) *Link {
	return &Link{inner: inner, schedule: sched}
}

// Schedule returns the fault schedule this Link consults, so callers
// can mutate it after the Link has been constructed and handed to a
// session executor.
func (l *Link) Schedule() *Schedule {
	return l.schedule
}

func (l *Link) next(op OpKind) (error, int64) {
	idx := atomic.AddInt64(&l.callCount, 1) - 1
	err, _ := l.schedule.match(op, idx, 0, false)
	return err, idx
}

// OpenUSB implements transport.Link.
func (l *Link) OpenUSB(ctx context.Context) error {
	if err, _ := l.next(OpOpenUSB); err != nil {
		return err
	}
	return l.inner.OpenUSB(ctx)
}

// ClaimInterface implements transport.Link.
func (l *Link) ClaimInterface(ctx context.Context, num int) (transport.EndpointAddr, transport.EndpointAddr, transport.EndpointAddr, error) {
	if err, _ := l.next(OpClaimInterface); err != nil {
		return 0, 0, 0, err
	}
	return l.inner.ClaimInterface(ctx, num)
}

// BulkOut implements transport.Link, applying byte-offset triggers
// before forwarding.
func (l *Link) BulkOut(ctx context.Context, ep transport.EndpointAddr, data []byte, timeout time.Duration) (int, error) {
	idx := atomic.AddInt64(&l.callCount, 1) - 1
	if err, hit := l.schedule.match(OpBulkOut, idx, int64(len(data)), true); hit {
		return 0, err
	}
	return l.inner.BulkOut(ctx, ep, data, timeout)
}

// BulkIn implements transport.Link, applying byte-offset triggers
// before forwarding.
func (l *Link) BulkIn(ctx context.Context, ep transport.EndpointAddr, maxBytes int, timeout time.Duration) ([]byte, error) {
	idx := atomic.AddInt64(&l.callCount, 1) - 1
	if err, hit := l.schedule.match(OpBulkIn, idx, int64(maxBytes), true); hit {
		return nil, err
	}
	return l.inner.BulkIn(ctx, ep, maxBytes, timeout)
}

// InterruptIn implements transport.Link.
func (l *Link) InterruptIn(ctx context.Context, ep transport.EndpointAddr, timeout time.Duration) ([]byte, error) {
	if err, _ := l.next(OpInterruptIn); err != nil {
		return nil, err
	}
	return l.inner.InterruptIn(ctx, ep, timeout)
}

// ResetDevice implements transport.Link.
func (l *Link) ResetDevice(ctx context.Context) error {
	if err, _ := l.next(OpResetDevice); err != nil {
		return err
	}
	return l.inner.ResetDevice(ctx)
}

// Close implements transport.Link.
func (l *Link) Close() error {
	if err, _ := l.next(OpClose); err != nil {
		return err
	}
	return l.inner.Close()
}

// String implements transport.Link.
func (l *Link) String() string {
	return "fault(" + l.inner.String() + ")"
}
