/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Probe receipt: the diagnostic record persisted per stable device id
 */

package probe

import (
	"encoding/json"
	"io"
	"time"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/quirks"
)

// SessionOpenAttempt records the outcome of the probe's session-open
// step.
type SessionOpenAttempt struct {
	Succeeded     bool
	RequiredRetry bool
	Duration      time.Duration
	Error         string `json:",omitempty"`
}

// Receipt aggregates everything the probe engine learned about a
// device in one pass: interface ranking, session establishment,
// detected capabilities, selected fallback strategies, and the
// resolved policy (spec.md §4.5 "Probe receipt", §3).
type Receipt struct {
	Timestamp    time.Time
	Interfaces   []InterfaceAttempt
	SessionOpen  SessionOpenAttempt
	Capabilities Capabilities
	Ladder       Ladder
	Policy       *quirks.Policy
}

// Save writes the receipt as indented JSON.
func (r *Receipt) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// LoadReceipt reads a previously persisted receipt.
func LoadReceipt(r io.Reader) (*Receipt, error) {
	var rec Receipt
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
