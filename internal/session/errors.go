/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Session-layer errors
 */

package session

import "fmt"

// ProtocolError wraps a non-OK PTP response code, per spec.md §7. It
// is never retried automatically: a non-OK response indicates device
// refusal, not a transient transport condition.
type ProtocolError struct {
	Op      Op
	Code    RespCode
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("op 0x%04x: %s (0x%04x): %s", uint16(e.Op), e.Code, uint16(e.Code), e.Message)
	}
	return fmt.Sprintf("op 0x%04x: %s (0x%04x)", uint16(e.Op), e.Code, uint16(e.Code))
}

// ErrTxIDMismatch is returned when a response container's echoed
// transaction id does not match the command that was issued; the
// executor treats this as fatal to the transaction (not retried) and
// the session is left in a known-bad state for the caller to close.
type ErrTxIDMismatch struct {
	Want, Got uint32
}

func (e *ErrTxIDMismatch) Error() string {
	return fmt.Sprintf("transaction id mismatch: sent %d, response echoed %d", e.Want, e.Got)
}

// ErrNotOpen is returned by any transaction attempted while the
// session is not in the open state.
var ErrNotOpen = fmt.Errorf("session: not open")

// ErrClosed is returned by any call attempted after Close.
var ErrClosed = fmt.Errorf("session: closed")

// ErrSessionIDZero reports a session id of 0, which is not a valid
// session id. Nothing in this package returns it: OpenSession
// replaces id 0 with 1.
var ErrSessionIDZero = fmt.Errorf("session: session id must be non-zero")
