package fault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/transport"
)

// stubLink is a minimal transport.Link that never fails on its own,
// so tests can attribute every observed error to the fault decorator.
type stubLink struct {
	bulkInCalls  int
	bulkOutCalls int
}

func (s *stubLink) OpenUSB(ctx context.Context) error { return nil }

func (s *stubLink) ClaimInterface(ctx context.Context, num int) (transport.EndpointAddr, transport.EndpointAddr, transport.EndpointAddr, error) {
	return 1, 2, 3, nil
}

func (s *stubLink) BulkOut(ctx context.Context, ep transport.EndpointAddr, data []byte, timeout time.Duration) (int, error) {
	s.bulkOutCalls++
	return len(data), nil
}

func (s *stubLink) BulkIn(ctx context.Context, ep transport.EndpointAddr, maxBytes int, timeout time.Duration) ([]byte, error) {
	s.bulkInCalls++
	return make([]byte, maxBytes), nil
}

func (s *stubLink) InterruptIn(ctx context.Context, ep transport.EndpointAddr, timeout time.Duration) ([]byte, error) {
	return nil, nil
}

func (s *stubLink) ResetDevice(ctx context.Context) error { return nil }
func (s *stubLink) Close() error                          { return nil }
func (s *stubLink) String() string                        { return "stub" }

var errInjected = transport.NewError("bulk_in", transport.ErrKindTimeout, "injected")

func TestOnOperationFiresOnce(t *testing.T) {
	sched := NewSchedule()
	sched.Add(Fault{Trigger: OnOperation(OpBulkIn), Err: errInjected, Repeat: 1})

	link := Wrap(&stubLink{}, sched)

	_, err := link.BulkIn(context.Background(), 1, 64, time.Second)
	if err != errInjected {
		t.Fatalf("first call: got %v, want injected error", err)
	}

	_, err = link.BulkIn(context.Background(), 1, 64, time.Second)
	if err != nil {
		t.Fatalf("second call should succeed after fault exhausted, got %v", err)
	}

	if sched.Len() != 0 {
		t.Fatalf("exhausted fault should be removed, schedule len = %d", sched.Len())
	}
}

func TestAtCallIndexOnlyMatchesThatCall(t *testing.T) {
	sched := NewSchedule()
	sched.Add(Fault{Trigger: AtCallIndex(2), Err: errInjected, Repeat: 1})

	link := Wrap(&stubLink{}, sched)

	for i := 0; i < 2; i++ {
		if _, err := link.BulkIn(context.Background(), 1, 8, time.Second); err != nil {
			t.Fatalf("call %d: unexpected error %v", i, err)
		}
	}

	if _, err := link.BulkIn(context.Background(), 1, 8, time.Second); err != errInjected {
		t.Fatalf("call 2: got %v, want injected error", err)
	}
}

func TestAtByteOffsetFiresWhenCrossed(t *testing.T) {
	sched := NewSchedule()
	sched.Add(Fault{Trigger: AtByteOffset(100), Err: errInjected, Repeat: 1})

	link := Wrap(&stubLink{}, sched)

	if _, err := link.BulkOut(context.Background(), 2, make([]byte, 50), time.Second); err != nil {
		t.Fatalf("under threshold: unexpected error %v", err)
	}

	if _, err := link.BulkOut(context.Background(), 2, make([]byte, 100), time.Second); err != errInjected {
		t.Fatalf("at threshold: got %v, want injected error", err)
	}
}

func TestRepeatCountDecrementsAcrossMultipleHits(t *testing.T) {
	sched := NewSchedule()
	sched.Add(Fault{Trigger: OnOperation(OpBulkIn), Err: errInjected, Repeat: 3})

	link := Wrap(&stubLink{}, sched)

	for i := 0; i < 3; i++ {
		if _, err := link.BulkIn(context.Background(), 1, 8, time.Second); err != errInjected {
			t.Fatalf("hit %d: got %v, want injected error", i, err)
		}
	}

	if _, err := link.BulkIn(context.Background(), 1, 8, time.Second); err != nil {
		t.Fatalf("after 3 hits fault should be exhausted, got %v", err)
	}
}

func TestZeroRepeatFiresForever(t *testing.T) {
	sched := NewSchedule()
	sched.Add(Fault{Trigger: OnOperation(OpResetDevice), Err: errInjected, Repeat: 0})

	link := Wrap(&stubLink{}, sched)

	for i := 0; i < 5; i++ {
		if err := link.ResetDevice(context.Background()); err != errInjected {
			t.Fatalf("call %d: got %v, want injected error to persist", i, err)
		}
	}

	if sched.Len() != 1 {
		t.Fatalf("persistent fault should not be removed, len = %d", sched.Len())
	}
}

func TestClearAllRemovesSchedule(t *testing.T) {
	sched := NewSchedule()
	sched.Add(Fault{Trigger: OnOperation(OpOpenUSB), Err: errInjected, Repeat: 1})
	sched.ClearAll()

	link := Wrap(&stubLink{}, sched)
	if err := link.OpenUSB(context.Background()); err != nil {
		t.Fatalf("cleared schedule should not fire, got %v", err)
	}
}

func TestLabelDoesNotAffectMatching(t *testing.T) {
	sched := NewSchedule()
	sched.Add(Fault{Trigger: OnOperation(OpClaimInterface), Err: errors.New("disconnect"), Repeat: 1, Label: "flaky-claim"})

	link := Wrap(&stubLink{}, sched)
	_, _, _, err := link.ClaimInterface(context.Background(), 0)
	if err == nil || err.Error() != "disconnect" {
		t.Fatalf("got %v", err)
	}
}
