/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Session executor: command/data/response state machine
 */

// Package session implements the PTP/MTP session executor: the
// closed -> usb-ready -> open state machine, the single in-flight
// command/data/response transaction protocol, transaction-id
// monotonicity, and transport-error retry with backoff. It consumes a
// transport.Link and produces typed responses; it knows nothing
// about storages, objects, or quirk policy, which is the device
// façade's job.
package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/transport"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/wire"
)

// State is one of the session executor's three states.
type State int

// States, per spec.md §4.3.
const (
	StateClosed State = iota
	StateUSBReady
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateUSBReady:
		return "usb-ready"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// Tuning is the subset of the device policy the executor needs to run
// transactions. The device façade derives it from a resolved
// quirks.Policy; tests can build one directly.
type Tuning struct {
	MaxChunkBytes    int
	IOTimeout        time.Duration
	HandshakeTimeout time.Duration
	InactivityTimeout time.Duration
	OverallDeadline  time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	RetryBackoff     float64
	ResetOnOpen      bool
}

// DefaultTuning returns the compiled-in defaults: 32 KiB chunks, long
// timeouts, no advanced ops assumed. The timeouts match the first
// stage of quirk policy assembly (spec.md §4.6); the chunk size does
// not, as that stage uses 16 KiB.
func DefaultTuning() Tuning {
	return Tuning{
		MaxChunkBytes:     32 * 1024,
		IOTimeout:         5 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		InactivityTimeout: 15 * time.Second,
		OverallDeadline:   60 * time.Second,
		MaxRetries:        3,
		RetryDelay:        100 * time.Millisecond,
		RetryBackoff:      2.0,
	}
}

// DataSink receives one chunk of a data-in phase. Returning an error
// aborts the transfer; the executor does not retry a sink error.
type DataSink func(chunk []byte) error

// Request is one MTP transaction: an operation code, up to five
// parameters, and an optional data-out or data-in phase (never both —
// the PTP data phase is unidirectional per transaction).
type Request struct {
	Op         Op
	Params     []uint32
	DataOut    io.Reader // non-nil: stream this to the device
	DataOutLen int64     // required when DataOut != nil
	DataIn     DataSink  // non-nil: invoked per received chunk
}

// Response is the decoded result of a transaction's response
// container.
type Response struct {
	Code   RespCode
	Params []uint32
}

// Executor drives the state machine and transaction protocol over a
// single transport.Link. It is safe for concurrent use: concurrent
// Execute calls are serialized in FIFO order.
type Executor struct {
	link   transport.Link
	tuning Tuning

	stateMu sync.Mutex
	state   State
	session uint32
	nextTx  uint32

	inEp, outEp, intrEp transport.EndpointAddr

	lock fifoLock
}

// New creates an Executor over link, initially closed.
func New(link transport.Link, tuning Tuning) *Executor {
	return &Executor{link: link, tuning: tuning, state: StateClosed}
}

// State returns the executor's current state.
func (e *Executor) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// Tuning returns the tuning the executor was constructed with, for
// callers (the probe engine's receipt, diagnostics) that need to
// reason about the timeouts/retries actually in effect.
func (e *Executor) Tuning() Tuning {
	return e.tuning
}

// OpenUSB opens the link and claims the MTP interface, moving
// closed -> usb-ready. ifaceNum is the interface number to claim, as
// selected by the probe engine.
func (e *Executor) OpenUSB(ctx context.Context, ifaceNum int) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.state != StateClosed {
		return fmt.Errorf("session: OpenUSB: not closed (state=%s)", e.state)
	}

	if err := e.link.OpenUSB(ctx); err != nil {
		return err
	}

	in, out, intr, err := e.link.ClaimInterface(ctx, ifaceNum)
	if err != nil {
		e.link.Close()
		return err
	}

	e.inEp, e.outEp, e.intrEp = in, out, intr
	e.state = StateUSBReady
	return nil
}

// OpenSession opens an MTP session with the given id (0 chooses 1),
// moving usb-ready -> open. It retries a busy response up to
// tuning.MaxRetries times, waiting the handshake timeout between
// attempts, per spec.md §4.5.
func (e *Executor) OpenSession(ctx context.Context, sessionID uint32) error {
	e.stateMu.Lock()
	if e.state != StateUSBReady {
		e.stateMu.Unlock()
		return fmt.Errorf("session: OpenSession: not usb-ready (state=%s)", e.state)
	}
	e.stateMu.Unlock()

	if sessionID == 0 {
		sessionID = 1
	}

	if e.tuning.ResetOnOpen {
		if err := e.link.ResetDevice(ctx); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.tuning.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(e.tuning.HandshakeTimeout):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		resp, err := e.runRaw(ctx, OpOpenSession, []uint32{sessionID}, nil, 0, nil, e.tuning.HandshakeTimeout)
		if err != nil {
			if transport.Fatal(err) {
				e.stateMu.Lock()
				e.state = StateClosed
				e.stateMu.Unlock()
				return err
			}
			lastErr = err
			continue
		}

		if resp.Code == RespDeviceBusy {
			lastErr = &ProtocolError{Op: OpOpenSession, Code: resp.Code}
			continue
		}

		if resp.Code != RespOK {
			return &ProtocolError{Op: OpOpenSession, Code: resp.Code}
		}

		e.stateMu.Lock()
		e.state = StateOpen
		e.session = sessionID
		e.nextTx = 1
		e.stateMu.Unlock()
		return nil
	}

	return lastErr
}

// CloseSession closes the MTP session, moving open -> usb-ready. It
// is idempotent: calling it when not open is a no-op.
func (e *Executor) CloseSession(ctx context.Context) error {
	e.stateMu.Lock()
	if e.state != StateOpen {
		e.stateMu.Unlock()
		return nil
	}
	e.stateMu.Unlock()

	_, err := e.Execute(ctx, &Request{Op: OpCloseSession})

	e.stateMu.Lock()
	e.state = StateUSBReady
	e.stateMu.Unlock()

	if err != nil && !transport.Fatal(err) {
		// Per spec.md §4.3, close-session is best-effort: the
		// session still moves to usb-ready even if the device
		// answered with something other than OK.
		return nil
	}
	return err
}

// ReadEvent reads one interrupt-in transfer and decodes it as an
// event container (type=4), for the device façade's event pump
// (spec.md §4.4). It takes no session lock: events arrive
// asynchronously to the command/response cycle and the interrupt
// endpoint is distinct from the bulk endpoints Execute uses.
func (e *Executor) ReadEvent(ctx context.Context, timeout time.Duration) (*wire.Container, error) {
	e.stateMu.Lock()
	ep := e.intrEp
	open := e.state == StateOpen
	e.stateMu.Unlock()
	if !open {
		return nil, ErrNotOpen
	}

	buf, err := e.link.InterruptIn(ctx, ep, timeout)
	if err != nil {
		return nil, err
	}
	if len(buf) < wire.HeaderSize {
		return nil, &wire.ErrMalformed{Reason: "short read: event container"}
	}
	return wire.DecodeContainer(buf)
}

// Close tears down the link unconditionally, from any state.
func (e *Executor) Close() error {
	e.stateMu.Lock()
	e.state = StateClosed
	e.stateMu.Unlock()
	return e.link.Close()
}

// Execute runs one transaction: command, optional data phase,
// response. It must be called with the session open. Retryable
// transport errors (timeout, busy) are retried up to
// tuning.MaxRetries times with exponential backoff; a fatal
// (no-device) error closes the session; protocol errors are returned
// to the caller without retry.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Response, error) {
	e.stateMu.Lock()
	if e.state != StateOpen {
		e.stateMu.Unlock()
		return nil, ErrNotOpen
	}
	e.stateMu.Unlock()

	if err := e.lock.Lock(ctx); err != nil {
		return nil, err
	}
	defer e.lock.Unlock()

	overallCtx := ctx
	var cancel context.CancelFunc
	if e.tuning.OverallDeadline > 0 {
		overallCtx, cancel = context.WithTimeout(ctx, e.tuning.OverallDeadline)
		defer cancel()
	}

	delay := e.tuning.RetryDelay
	var lastErr error

	for attempt := 0; attempt <= e.tuning.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-overallCtx.Done():
				return nil, overallCtx.Err()
			}
			delay = time.Duration(float64(delay) * e.tuning.RetryBackoff)
		}

		resp, err := e.runRaw(overallCtx, req.Op, req.Params, req.DataOut, req.DataOutLen, req.DataIn, e.tuning.IOTimeout)
		if err == nil {
			if resp.Code != RespOK {
				return resp, &ProtocolError{Op: req.Op, Code: resp.Code}
			}
			return resp, nil
		}

		if transport.Fatal(err) {
			e.stateMu.Lock()
			e.state = StateClosed
			e.stateMu.Unlock()
			return nil, err
		}

		if !transport.Retryable(err) {
			return nil, err
		}

		lastErr = err
	}

	return nil, lastErr
}

// allocTxID returns the next strictly monotonic transaction id.
func (e *Executor) allocTxID() uint32 {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	id := e.nextTx
	e.nextTx++
	return id
}

// runRaw sends one command (optionally with a data-out phase) and
// reads back either a data-in phase followed by a response, or a bare
// response. It does not touch executor state beyond reading it; state
// transitions belong to the caller.
func (e *Executor) runRaw(ctx context.Context, op Op, params []uint32, dataOut io.Reader, dataOutLen int64, dataIn DataSink, timeout time.Duration) (*Response, error) {
	txid := e.peekTxIDForRaw(op)

	cmd := wire.EncodeCommand(uint16(op), txid, params)
	if _, err := e.link.BulkOut(ctx, e.outEp, cmd, timeout); err != nil {
		return nil, err
	}

	if dataOut != nil {
		if err := e.streamDataOut(ctx, op, txid, dataOut, dataOutLen, timeout); err != nil {
			return nil, err
		}
	}

	first, err := e.readContainer(ctx, timeout)
	if err != nil {
		return nil, err
	}

	switch first.Type {
	case wire.TypeData:
		if err := e.drainDataIn(ctx, first, dataIn, timeout); err != nil {
			return nil, err
		}
		resp, err := e.readContainer(ctx, timeout)
		if err != nil {
			return nil, err
		}
		if resp.Type != wire.TypeResponse {
			return nil, fmt.Errorf("session: expected response container after data phase, got %s", resp.Type)
		}
		if resp.TxID != txid {
			return nil, &ErrTxIDMismatch{Want: txid, Got: resp.TxID}
		}
		return &Response{Code: RespCode(resp.Code), Params: resp.Params}, nil

	case wire.TypeResponse:
		if first.TxID != txid {
			return nil, &ErrTxIDMismatch{Want: txid, Got: first.TxID}
		}
		return &Response{Code: RespCode(first.Code), Params: first.Params}, nil

	default:
		return nil, fmt.Errorf("session: unexpected container type %s", first.Type)
	}
}

// peekTxIDForRaw chooses the transaction id for a raw command: the
// reserved id 0 for session open (per PTP convention, before a
// session's own transaction numbering begins), or the executor's
// current allocation otherwise.
func (e *Executor) peekTxIDForRaw(op Op) uint32 {
	if op == OpOpenSession {
		return 0
	}
	return e.allocTxID()
}

func (e *Executor) streamDataOut(ctx context.Context, op Op, txid uint32, r io.Reader, total int64, timeout time.Duration) error {
	hdr := wire.EncodeDataHeader(uint16(op), txid, int(total))
	if _, err := e.link.BulkOut(ctx, e.outEp, hdr, timeout); err != nil {
		return err
	}

	chunk := make([]byte, e.chunkSize())
	var sent int64
	for sent < total {
		n, err := r.Read(chunk)
		if n > 0 {
			if _, werr := e.link.BulkOut(ctx, e.outEp, chunk[:n], timeout); werr != nil {
				return werr
			}
			sent += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	if sent != total {
		return fmt.Errorf("session: data-out phase sent %d bytes, declared %d", sent, total)
	}

	return nil
}

func (e *Executor) drainDataIn(ctx context.Context, first *wire.Container, sink DataSink, timeout time.Duration) error {
	if sink == nil {
		return nil
	}
	if len(first.Payload) > 0 {
		return sink(first.Payload)
	}
	return nil
}

// readContainer reads one complete PTP container from the bulk-in
// endpoint, issuing additional transfers if the container spans more
// than one USB transfer.
func (e *Executor) readContainer(ctx context.Context, timeout time.Duration) (*wire.Container, error) {
	buf, err := e.link.BulkIn(ctx, e.inEp, e.chunkSize(), timeout)
	if err != nil {
		return nil, err
	}
	if len(buf) < wire.HeaderSize {
		return nil, &wire.ErrMalformed{Reason: "short read: less than one container header"}
	}

	totalLen, _, _, _, err := wire.DecodeHeader(buf)
	if err != nil {
		return nil, err
	}

	for len(buf) < totalLen {
		more, err := e.link.BulkIn(ctx, e.inEp, totalLen-len(buf), timeout)
		if err != nil {
			return nil, err
		}
		if len(more) == 0 {
			return nil, &wire.ErrMalformed{Reason: "short read: container truncated"}
		}
		buf = append(buf, more...)
	}

	return wire.DecodeContainer(buf)
}

func (e *Executor) chunkSize() int {
	if e.tuning.MaxChunkBytes > 0 {
		return e.tuning.MaxChunkBytes
	}
	return 32 * 1024
}
