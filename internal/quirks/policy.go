/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Device policy: effective tuning + quirk flags + per-field provenance
 */

package quirks

import "time"

// Source names the origin of a resolved policy field, recorded in
// Policy.Sources for probe-receipt audit (spec.md §4.6, §3).
type Source string

const (
	SourceDefault       Source = "default"
	SourceClassHeuristic Source = "class-heuristic"
	SourceQuirk         Source = "quirk"
	SourceLearned       Source = "learned"
	SourceProbe         Source = "probe"
	SourceOverride      Source = "override"
)

// HookPhase names a point in the session lifecycle a quirk entry can
// attach a delay to.
type HookPhase string

const (
	HookPreOpenSession  HookPhase = "pre-open-session"
	HookPostOpenSession HookPhase = "post-open-session"
	HookPreTransfer     HookPhase = "pre-transfer"
	HookPostTransfer    HookPhase = "post-transfer"
	HookPreCloseSession HookPhase = "pre-close-session"
)

// Hook is one entry of the tuning's ordered hook list.
type Hook struct {
	Phase   HookPhase     `json:"phase"`
	Delay   time.Duration `json:"delay"`
}

// Tuning holds the numeric parameters governing executor behavior
// (spec.md §3 "Effective tuning").
type Tuning struct {
	MaxChunkBytes      int
	IOTimeout          time.Duration
	HandshakeTimeout   time.Duration
	InactivityTimeout  time.Duration
	OverallDeadline    time.Duration
	PostClaimStabilize time.Duration
	PostOpenStabilize  time.Duration
	ResetOnOpen        bool
	DisableEventPump   bool
	Hooks              []Hook
}

// Flags holds the boolean capability assertions and policy switches
// (spec.md §3 "Quirk flags").
type Flags struct {
	RequiresKernelDetach      bool
	SupportsPartialRead64     bool
	SupportsGetObjectPropList bool
	PrefersPropListEnumeration bool
	RequireStabilization      bool
	ResetOnOpen               bool
	SkipPTPReset              bool
	WriteToSubfolderOnly      bool
	DisableEventPump          bool
	PreferredWriteFolder      string
}

// Policy is the fully assembled device policy: tuning, flags, and
// the provenance of every field that was set. Immutable once
// resolved for a session.
type Policy struct {
	Tuning  Tuning
	Flags   Flags
	Sources map[string]Source
}

func newPolicy() *Policy {
	return &Policy{Sources: make(map[string]Source)}
}

func (p *Policy) set(field string, src Source) {
	p.Sources[field] = src
}

// compiledDefaults returns stage-1 of policy assembly: conservative
// defaults (short chunks, long timeouts, no advanced ops assumed),
// per spec.md §4.6 step 1.
func compiledDefaults() *Policy {
	p := newPolicy()
	p.Tuning = Tuning{
		MaxChunkBytes:      16 * 1024,
		IOTimeout:          5 * time.Second,
		HandshakeTimeout:   10 * time.Second,
		InactivityTimeout:  15 * time.Second,
		OverallDeadline:    60 * time.Second,
		PostClaimStabilize: 0,
		PostOpenStabilize:  0,
		ResetOnOpen:        false,
		DisableEventPump:   false,
	}
	p.Flags = Flags{
		RequiresKernelDetach:       false,
		SupportsPartialRead64:     false,
		SupportsGetObjectPropList: false,
		PrefersPropListEnumeration: false,
		RequireStabilization:      false,
		ResetOnOpen:               false,
		SkipPTPReset:              false,
		WriteToSubfolderOnly:      false,
		DisableEventPump:          false,
	}

	for _, f := range []string{
		"max_chunk_bytes", "io_timeout", "handshake_timeout",
		"inactivity_timeout", "overall_deadline", "post_claim_stabilize",
		"post_open_stabilize", "reset_on_open", "disable_event_pump",
		"requires_kernel_detach", "supports_partial_read_64",
		"supports_get_object_prop_list", "prefers_prop_list_enumeration",
		"require_stabilization", "skip_ptp_reset", "write_to_subfolder_only",
		"preferred_write_folder",
	} {
		p.set(f, SourceDefault)
	}
	return p
}

// applyClassHeuristic implements stage 2: if the interface class is
// PTP still-image (0x06), a device nearly always supports
// GetObjectPropList and needs no kernel-driver detach.
func applyClassHeuristic(p *Policy, iface InterfaceTriple) {
	if iface.Class != 0x06 {
		return
	}
	p.Flags.SupportsGetObjectPropList = true
	p.Flags.RequiresKernelDetach = false
	p.set("supports_get_object_prop_list", SourceClassHeuristic)
	p.set("requires_kernel_detach", SourceClassHeuristic)
}
