/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Policy assembly: defaults -> class-heuristic -> quirk -> learned -> override
 */

package quirks

import "time"

// Resolve assembles a Policy for fp following spec.md §4.6's five
// stages, in order, last writer wins per field. db, learned, and
// override may each be nil to skip that stage.
func Resolve(fp Fingerprint, model string, db *DB, learned *LearnedProfile, override *Override) *Policy {
	p := compiledDefaults()          // 1. compiled defaults
	applyClassHeuristic(p, fp.Iface) // 2. class heuristic

	if db != nil {
		if e := db.Match(fp, model); e != nil {
			applyEntry(p, e, SourceQuirk) // 3. matched quirk entry
		}
	}

	if learned != nil {
		applyLearned(p, learned) // 4. learned-profile numeric nudges
	}

	if override != nil {
		applyEntry(p, &Entry{Tuning: override.Tuning, Flags: override.Flags}, SourceOverride) // 5. explicit caller override
	}

	return p
}

func applyEntry(p *Policy, e *Entry, src Source) {
	t := e.Tuning
	if t.MaxChunkBytes != 0 {
		p.Tuning.MaxChunkBytes = t.MaxChunkBytes
		p.set("max_chunk_bytes", src)
	}
	if t.IOTimeoutMs != 0 {
		p.Tuning.IOTimeout = time.Duration(t.IOTimeoutMs) * time.Millisecond
		p.set("io_timeout", src)
	}
	if t.HandshakeTimeoutMs != 0 {
		p.Tuning.HandshakeTimeout = time.Duration(t.HandshakeTimeoutMs) * time.Millisecond
		p.set("handshake_timeout", src)
	}
	if t.StabilizeMs != 0 {
		d := time.Duration(t.StabilizeMs) * time.Millisecond
		p.Tuning.PostClaimStabilize = d
		p.Tuning.PostOpenStabilize = d
		p.set("post_claim_stabilize", src)
		p.set("post_open_stabilize", src)
	}
	if t.ResetOnOpen != nil {
		p.Tuning.ResetOnOpen = *t.ResetOnOpen
		p.set("reset_on_open", src)
	}
	if len(t.Hooks) > 0 {
		p.Tuning.Hooks = append([]Hook(nil), t.Hooks...)
		p.set("hooks", src)
	}

	f := e.Flags
	applyBoolFlag(p, f.RequiresKernelDetach, &p.Flags.RequiresKernelDetach, "requires_kernel_detach", src)
	applyBoolFlag(p, f.SupportsPartialRead64, &p.Flags.SupportsPartialRead64, "supports_partial_read_64", src)
	applyBoolFlag(p, f.SupportsGetObjectPropList, &p.Flags.SupportsGetObjectPropList, "supports_get_object_prop_list", src)
	applyBoolFlag(p, f.PrefersPropListEnumeration, &p.Flags.PrefersPropListEnumeration, "prefers_prop_list_enumeration", src)
	applyBoolFlag(p, f.RequireStabilization, &p.Flags.RequireStabilization, "require_stabilization", src)
	applyBoolFlag(p, f.SkipPTPReset, &p.Flags.SkipPTPReset, "skip_ptp_reset", src)
	applyBoolFlag(p, f.WriteToSubfolderOnly, &p.Flags.WriteToSubfolderOnly, "write_to_subfolder_only", src)
	applyBoolFlag(p, f.DisableEventPump, &p.Flags.DisableEventPump, "disable_event_pump", src)
	if f.ResetOnOpen != nil {
		p.Flags.ResetOnOpen = *f.ResetOnOpen
		p.Tuning.ResetOnOpen = *f.ResetOnOpen
		p.set("reset_on_open", src)
	}
	if f.PreferredWriteFolder != "" {
		p.Flags.PreferredWriteFolder = f.PreferredWriteFolder
		p.set("preferred_write_folder", src)
	}
}

func applyBoolFlag(p *Policy, v *bool, dst *bool, field string, src Source) {
	if v == nil {
		return
	}
	*dst = *v
	p.set(field, src)
}

// applyLearned implements stage 4: a learned optimal chunk size
// replaces the chunk size, a learned optimal I/O timeout adjusts the
// I/O timeout within a safety band, and a success rate below the
// trust floor forces conservative values instead of applying the
// learned ones. P95ThroughputBps is not consulted.
func applyLearned(p *Policy, l *LearnedProfile) {
	if l.SuccessRate > 0 && l.SuccessRate < successRateFloor {
		d := compiledDefaults()
		p.Tuning.MaxChunkBytes = d.Tuning.MaxChunkBytes
		p.Tuning.IOTimeout = d.Tuning.IOTimeout
		p.set("max_chunk_bytes", SourceLearned)
		p.set("io_timeout", SourceLearned)
		return
	}

	if l.OptimalChunkBytes > 0 {
		p.Tuning.MaxChunkBytes = l.OptimalChunkBytes
		p.set("max_chunk_bytes", SourceLearned)
	}

	if l.OptimalIOTimeout > 0 {
		lo := time.Duration(float64(p.Tuning.IOTimeout) / timeoutSafetyBandFactor)
		hi := time.Duration(float64(p.Tuning.IOTimeout) * timeoutSafetyBandFactor)
		nudged := l.OptimalIOTimeout
		if nudged < lo {
			nudged = lo
		}
		if nudged > hi {
			nudged = hi
		}
		p.Tuning.IOTimeout = nudged
		p.set("io_timeout", SourceLearned)
	}
}

