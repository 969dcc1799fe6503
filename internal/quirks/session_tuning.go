/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Adapt a resolved policy's tuning to what the session executor needs
 */

package quirks

import (
	"time"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/session"
)

// ToSessionTuning projects the subset of Tuning the session executor
// consumes. Fields with no executor analogue (post-claim/post-open
// stabilize, hooks, disable-event-pump) are the probe engine's and
// device façade's concern, not the executor's.
func (t Tuning) ToSessionTuning() session.Tuning {
	d := session.DefaultTuning()
	return session.Tuning{
		MaxChunkBytes:     orInt(t.MaxChunkBytes, d.MaxChunkBytes),
		IOTimeout:         orDuration(t.IOTimeout, d.IOTimeout),
		HandshakeTimeout:  orDuration(t.HandshakeTimeout, d.HandshakeTimeout),
		InactivityTimeout: orDuration(t.InactivityTimeout, d.InactivityTimeout),
		OverallDeadline:   orDuration(t.OverallDeadline, d.OverallDeadline),
		MaxRetries:        d.MaxRetries,
		RetryDelay:        d.RetryDelay,
		RetryBackoff:      d.RetryBackoff,
		ResetOnOpen:       t.ResetOnOpen,
	}
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}
