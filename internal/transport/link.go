/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Transport link contract
 */

// Package transport defines the Link contract the session executor
// consumes, and a gousb-backed implementation of it against a real
// USB device. A Link is deliberately narrow: open, claim, three
// transfer primitives, reset, close. The session executor is the only
// caller and serializes every call except InterruptIn: the executor's
// ReadEvent calls InterruptIn without that serialization, so it may
// run alongside a bulk transfer.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Link is the transport contract the session executor drives. An
// implementation may be a real USB device (gousb), or an in-memory
// fixture (internal/virtual), or a fault-injecting decorator
// (internal/fault) wrapping either.
type Link interface {
	// OpenUSB opens the underlying device handle. It is valid to
	// call OpenUSB again after Close.
	OpenUSB(ctx context.Context) error

	// ClaimInterface claims the given interface number for
	// exclusive use and returns the bulk-in, bulk-out, and
	// interrupt-in endpoint addresses to use for all subsequent
	// transfers.
	ClaimInterface(ctx context.Context, num int) (in, out, interrupt EndpointAddr, err error)

	// BulkOut writes bytes to the given endpoint and returns the
	// number of bytes written.
	BulkOut(ctx context.Context, ep EndpointAddr, data []byte, timeout time.Duration) (int, error)

	// BulkIn reads up to maxBytes from the given endpoint.
	BulkIn(ctx context.Context, ep EndpointAddr, maxBytes int, timeout time.Duration) ([]byte, error)

	// InterruptIn reads one interrupt transfer (an MTP event
	// container) from the given endpoint.
	InterruptIn(ctx context.Context, ep EndpointAddr, timeout time.Duration) ([]byte, error)

	// ResetDevice issues a USB bus reset, for recovery from a
	// stalled or wedged device.
	ResetDevice(ctx context.Context) error

	// Close releases the device handle. Close is idempotent.
	Close() error

	// String identifies the link for logging (bus/address or
	// fixture name).
	String() string
}

// EndpointAddr is a USB endpoint address, as reported by
// ClaimInterface.
type EndpointAddr int

// ErrorKind classifies a transport failure per the contract's error
// taxonomy: {timeout, stall/pipe, no-device, io(msg), access-denied,
// busy}.
type ErrorKind int

// Error kinds.
const (
	ErrKindTimeout ErrorKind = iota
	ErrKindStall
	ErrKindNoDevice
	ErrKindIO
	ErrKindAccessDenied
	ErrKindBusy
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindTimeout:
		return "timeout"
	case ErrKindStall:
		return "stall"
	case ErrKindNoDevice:
		return "no-device"
	case ErrKindIO:
		return "io"
	case ErrKindAccessDenied:
		return "access-denied"
	case ErrKindBusy:
		return "busy"
	}
	return "unknown"
}

// Error is the error type every Link method returns on failure.
type Error struct {
	Op  string
	K   ErrorKind
	Msg string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.K, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.K)
}

// NewError builds a transport Error.
func NewError(op string, kind ErrorKind, msg string) *Error {
	return &Error{Op: op, K: kind, Msg: msg}
}

// KindOf extracts the ErrorKind from err, if it is (or wraps) a
// *transport.Error. The second return value is false for any other
// error, including nil.
func KindOf(err error) (ErrorKind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.K, true
	}
	return 0, false
}

// Retryable reports whether err represents a transport failure the
// session executor should retry with backoff, per the contract:
// timeout and busy are retryable; stall, no-device, io and
// access-denied are not (no-device and access-denied are fatal to the
// session; stall and io require a higher-level recovery action).
func Retryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	return kind == ErrKindTimeout || kind == ErrKindBusy
}

// Fatal reports whether err should drive the session state machine
// straight to closed, bypassing retry entirely.
func Fatal(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == ErrKindNoDevice
}
