/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Interface ranking: pick the best USB interface to claim
 */

package probe

import (
	"fmt"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/transport"
)

// Score weights from spec.md §4.5.
const (
	scorePTPStillImage = 10
	scoreVendorMTP     = 12
	scoreMassStorage   = 0
)

// RankInterface scores one interface descriptor. A score of 0 means
// skip (e.g. mass-storage).
func RankInterface(ifd transport.IfDesc) int {
	switch {
	case ifd.Class == 0x06 && ifd.SubClass == 0x01 && ifd.Proto == 0x01:
		return scorePTPStillImage
	case ifd.Class == 0xFF:
		return scoreVendorMTP
	case ifd.Class == 0x08:
		return scoreMassStorage
	default:
		return 0
	}
}

// InterfaceAttempt records one candidate's ranking outcome, folded
// into the probe receipt.
type InterfaceAttempt struct {
	IfNum   int
	Score   int
	Success bool
	Error   string
}

// SelectInterface ranks every interface in desc and returns the
// highest-scoring one, breaking ties by preferring the
// earlier-declared interface. Endpoint validation (does the claimed
// interface actually expose the bulk in/out and, for vendor-MTP, an
// interrupt endpoint) happens in ClaimInterface once an interface is
// chosen — IfDesc itself carries no endpoint addresses, only the
// class/subclass/protocol triple; those appear on transport.IfAddr
// after a successful claim.
func SelectInterface(desc transport.DeviceDesc) (*transport.IfDesc, []InterfaceAttempt, error) {
	var attempts []InterfaceAttempt
	var best *transport.IfDesc
	bestScore := 0

	for i := range desc.IfDescs {
		ifd := desc.IfDescs[i]
		score := RankInterface(ifd)

		attempts = append(attempts, InterfaceAttempt{
			IfNum:   ifd.IfNum,
			Score:   score,
			Success: score > 0,
		})

		if score > bestScore {
			bestScore = score
			best = &desc.IfDescs[i]
		}
	}

	if best == nil {
		return nil, attempts, fmt.Errorf("probe: no usable MTP/PTP interface on %s", desc.Addr)
	}
	return best, attempts, nil
}
