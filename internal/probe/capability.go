/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Capability detection and fallback ladder selection
 */

package probe

import (
	"context"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/session"
)

// Capabilities records which advanced operations a device declared
// and, where a low-cost probe was possible, verified.
type Capabilities struct {
	SupportsPartial32       bool
	SupportsPartial64       bool
	SupportsSendPartial     bool
	SupportsGetObjectPropList bool
	SupportsEvents          bool
}

// DetectCapabilities inspects device-info.operations-supported
// (spec.md §4.5). It does not issue any bus traffic; VerifyCapability
// performs the optional low-cost confirmation call.
func DetectCapabilities(info *DeviceInfo) Capabilities {
	return Capabilities{
		SupportsPartial32:         info.SupportsOp(uint16(session.OpGetPartialObject)),
		SupportsPartial64:         info.SupportsOp(uint16(session.OpGetPartialObject64)),
		SupportsSendPartial:       info.SupportsOp(uint16(session.OpSendPartialObject)),
		SupportsGetObjectPropList: info.SupportsOp(uint16(session.OpGetObjectPropList)),
		SupportsEvents:            len(info.EventsSupported) > 0,
	}
}

// VerifyCapability issues a zero-length get-partial-object-64 against
// a known object handle to confirm the device's advertised support
// actually works, per spec.md §4.5 ("probe get-partial-object-64 on a
// known small object with zero length"). Devices that lie about
// operations-supported are common enough in the wild that the
// declaration alone isn't trusted for the riskiest opcode.
func VerifyCapability(ctx context.Context, ex *session.Executor, storageID, handle uint32) bool {
	_, err := ex.Execute(ctx, &session.Request{
		Op:     session.OpGetPartialObject64,
		Params: []uint32{handle, 0, 0, 0, 0},
	})
	return err == nil
}

// Ladder is the chosen fallback variant for each of the three
// operation families spec.md §4.5 names.
type Ladder struct {
	Enumeration string // "prop-list-5" | "handles-then-info"
	Read        string // "partial-64" | "partial-32" | "whole-object"
	Write       string // "partial" | "whole-object"
}

// SelectLadder picks the first supported variant in each family's
// preference order, folding in the policy's prefers-prop-list-
// enumeration switch.
func SelectLadder(caps Capabilities, prefersPropListEnumeration bool) Ladder {
	var l Ladder

	if prefersPropListEnumeration && caps.SupportsGetObjectPropList {
		l.Enumeration = "prop-list-5"
	} else {
		l.Enumeration = "handles-then-info"
	}

	switch {
	case caps.SupportsPartial64:
		l.Read = "partial-64"
	case caps.SupportsPartial32:
		l.Read = "partial-32"
	default:
		l.Read = "whole-object"
	}

	if caps.SupportsSendPartial {
		l.Write = "partial"
	} else {
		l.Write = "whole-object"
	}

	return l
}
