package transport

import (
	"errors"
	"testing"
)

func TestKindOfAndRetryable(t *testing.T) {
	err := NewError("bulk_in", ErrKindTimeout, "")

	kind, ok := KindOf(err)
	if !ok || kind != ErrKindTimeout {
		t.Fatalf("got %v, %v", kind, ok)
	}

	if !Retryable(err) {
		t.Fatal("timeout should be retryable")
	}

	busy := NewError("claim_interface", ErrKindBusy, "")
	if !Retryable(busy) {
		t.Fatal("busy should be retryable")
	}

	stall := NewError("bulk_out", ErrKindStall, "")
	if Retryable(stall) {
		t.Fatal("stall should not be retryable")
	}

	if Retryable(errors.New("plain error")) {
		t.Fatal("non-transport error should not be retryable")
	}
}

func TestFatalNoDevice(t *testing.T) {
	err := NewError("bulk_out", ErrKindNoDevice, "unplugged")
	if !Fatal(err) {
		t.Fatal("no-device should be fatal")
	}

	if Fatal(NewError("bulk_out", ErrKindTimeout, "")) {
		t.Fatal("timeout should not be fatal")
	}
}

func TestErrorString(t *testing.T) {
	err := NewError("bulk_in", ErrKindStall, "pipe error")
	want := "bulk_in: stall: pipe error"
	if err.Error() != want {
		t.Fatalf("got %q want %q", err.Error(), want)
	}
}
