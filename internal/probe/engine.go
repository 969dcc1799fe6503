/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Probe engine: rank interfaces, open a session, detect capabilities,
 * pick a fallback ladder, and assemble the receipt.
 */

package probe

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/quirks"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/session"
	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/transport"
)

// Result is everything a caller needs after a successful probe: an
// opened executor ready for the device façade to drive, the decoded
// device info, and the full diagnostic receipt.
type Result struct {
	Executor *session.Executor
	Info     *DeviceInfo
	Receipt  *Receipt
}

// Run probes one USB device end to end, per spec.md §4.5.
//
// desc is the device's descriptor (as returned by
// transport.EnumerateMTP); fp is the fingerprint built from it plus
// whatever of desc's endpoints are already known; db/learned/override
// feed the quirk resolver. newLink constructs a fresh transport.Link
// for a chosen interface — probe may need to try more than one, and
// each attempt needs its own link to claim independently.
//
// Interface-claim failure on one interface is non-fatal; the engine
// tries the next-ranked one. Session-open failure after the
// executor's internal retries is fatal.
func Run(ctx context.Context, desc transport.DeviceDesc, fp quirks.Fingerprint, model string, db *quirks.DB, learned *quirks.LearnedProfile, override *quirks.Override, newLink func() transport.Link) (*Result, error) {
	policy := quirks.Resolve(fp, model, db, learned, override)
	tuning := policy.Tuning.ToSessionTuning()

	ranked := rankedCandidates(desc)
	if len(ranked) == 0 {
		return nil, fmt.Errorf("probe: %s exposes no PTP/MTP-class interface", desc.Addr)
	}

	var attempts []InterfaceAttempt
	var lastErr error

	for _, ifd := range ranked {
		link := newLink()
		ex := session.New(link, tuning)

		claimErr := ex.OpenUSB(ctx, ifd.IfNum)
		attempts = append(attempts, InterfaceAttempt{
			IfNum:   ifd.IfNum,
			Score:   RankInterface(ifd),
			Success: claimErr == nil,
			Error:   errString(claimErr),
		})
		if claimErr != nil {
			lastErr = claimErr
			_ = ex.Close()
			continue
		}

		return finishProbe(ctx, ex, policy, attempts)
	}

	return nil, fmt.Errorf("probe: every candidate interface failed to claim: %w", lastErr)
}

// rankedCandidates returns desc's interfaces sorted by descending
// RankInterface score, dropping any that score zero.
func rankedCandidates(desc transport.DeviceDesc) []transport.IfDesc {
	type scored struct {
		ifd   transport.IfDesc
		score int
	}
	var all []scored
	for _, ifd := range desc.IfDescs {
		if s := RankInterface(ifd); s > 0 {
			all = append(all, scored{ifd, s})
		}
	}
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].score > all[j-1].score; j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
	out := make([]transport.IfDesc, len(all))
	for i, s := range all {
		out[i] = s.ifd
	}
	return out
}

func finishProbe(ctx context.Context, ex *session.Executor, policy *quirks.Policy, attempts []InterfaceAttempt) (*Result, error) {
	start := time.Now()
	openErr := ex.OpenSession(ctx, 1)
	elapsed := time.Since(start)

	sessionOpen := SessionOpenAttempt{
		Succeeded: openErr == nil,
		// A single open-session handshake normally completes within
		// one HandshakeTimeout window; taking noticeably longer is the
		// only externally observable sign that the executor's
		// internal busy-retry loop (session.Executor.OpenSession) had
		// to run more than once.
		RequiredRetry: elapsed > ex.Tuning().HandshakeTimeout,
		Duration:      elapsed,
		Error:         errString(openErr),
	}

	if openErr != nil {
		_ = ex.Close()
		return nil, fmt.Errorf("probe: session-open failed after retries: %w", openErr)
	}

	var infoBuf bytes.Buffer
	_, err := ex.Execute(ctx, &session.Request{
		Op: session.OpGetDeviceInfo,
		DataIn: func(chunk []byte) error {
			infoBuf.Write(chunk)
			return nil
		},
	})
	if err != nil {
		_ = ex.Close()
		return nil, fmt.Errorf("probe: get-device-info failed: %w", err)
	}

	info, err := DecodeDeviceInfo(infoBuf.Bytes())
	if err != nil {
		_ = ex.Close()
		return nil, fmt.Errorf("probe: malformed device info: %w", err)
	}

	caps := DetectCapabilities(info)
	ladder := SelectLadder(caps, policy.Flags.PrefersPropListEnumeration)

	receipt := &Receipt{
		Timestamp:    time.Now(),
		Interfaces:   attempts,
		SessionOpen:  sessionOpen,
		Capabilities: caps,
		Ladder:       ladder,
		Policy:       policy,
	}

	return &Result{Executor: ex, Info: info, Receipt: receipt}, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
