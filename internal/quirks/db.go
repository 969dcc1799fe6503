/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Quirk database: ordered entries keyed by HWID / bcd range / iface triple
 */

package quirks

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// TuningOverride mirrors Tuning but every field is optional, so an
// entry can override only what it means to. Zero-value /
// zero-duration fields mean "not specified" — they are never applied.
type TuningOverride struct {
	MaxChunkBytes      int    `json:"max_chunk_bytes,omitempty"`
	IOTimeoutMs        int    `json:"io_timeout_ms,omitempty"`
	HandshakeTimeoutMs int    `json:"handshake_timeout_ms,omitempty"`
	StabilizeMs        int    `json:"stabilize_ms,omitempty"`
	ResetOnOpen        *bool  `json:"reset_on_open,omitempty"`
	Hooks              []Hook `json:"hooks,omitempty"`
}

// FlagOverride mirrors Flags, with every field a pointer so "unset"
// is distinguishable from "explicitly false".
type FlagOverride struct {
	RequiresKernelDetach       *bool  `json:"requires_kernel_detach,omitempty"`
	SupportsPartialRead64      *bool  `json:"supports_partial_read_64,omitempty"`
	SupportsGetObjectPropList  *bool  `json:"supports_get_object_prop_list,omitempty"`
	PrefersPropListEnumeration *bool  `json:"prefers_prop_list_enumeration,omitempty"`
	RequireStabilization       *bool  `json:"require_stabilization,omitempty"`
	ResetOnOpen                *bool  `json:"reset_on_open,omitempty"`
	SkipPTPReset               *bool  `json:"skip_ptp_reset,omitempty"`
	WriteToSubfolderOnly       *bool  `json:"write_to_subfolder_only,omitempty"`
	DisableEventPump           *bool  `json:"disable_event_pump,omitempty"`
	PreferredWriteFolder       string `json:"preferred_write_folder,omitempty"`
}

// Entry is one row of the quirk database: a match key plus the
// overrides it contributes to policy assembly, per spec.md §4.6's
// "semantic shape" (§3 "Quirk database").
type Entry struct {
	// Match key.
	HWID        string `json:"hwid"`        // "VVVV:DDDD" or "VVVV:*"
	BcdMin      uint16 `json:"bcd_min,omitempty"`
	BcdMax      uint16 `json:"bcd_max,omitempty"` // 0 means "no upper bound check"
	IfaceClass    uint8 `json:"iface_class,omitempty"`
	IfaceSubClass uint8 `json:"iface_subclass,omitempty"`
	IfaceProtocol uint8 `json:"iface_protocol,omitempty"`
	ModelGlob   string `json:"model_glob,omitempty"` // optional model-name pattern, scored via GlobMatch

	Tuning TuningOverride `json:"tuning,omitempty"`
	Flags  FlagOverride   `json:"flags,omitempty"`

	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`

	hwid *HWIDPattern // parsed lazily by DB.compile
}

// DB is an ordered quirk database. Database order breaks ties among
// equally-weighted matches (spec.md §4.6).
type DB struct {
	Entries []Entry `json:"entries"`
}

// LoadDB reads a quirk database from r. The on-disk format is JSON;
// spec.md §1 treats the database's source format as external to the
// system being specified, so any reasonable concrete encoding
// satisfies it — JSON needs no schema compiler and matches the
// golden-file style the rest of the pack uses for fixtures.
func LoadDB(r io.Reader) (*DB, error) {
	var db DB
	if err := json.NewDecoder(r).Decode(&db); err != nil {
		return nil, err
	}
	db.compile()
	return &db, nil
}

// LoadDBFile loads a quirk database from a file path.
func LoadDBFile(path string) (*DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadDB(f)
}

// Save writes db to w as indented JSON.
func (db *DB) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(db)
}

func (db *DB) compile() {
	for i := range db.Entries {
		db.Entries[i].hwid = ParseHWIDPattern(db.Entries[i].HWID)
	}
}

// matchWeight returns the match weight of e against fp, or -1 if e
// does not match. HWID matching dominates (1000 exact / 1 wildcard,
// per hwid.go); a model-name glob, when present, is folded in at 2x
// its matched-character count so it outranks a bare VID wildcard
// (weight 1) but never an exact VID+PID match (weight 1000) — the
// same scale teacher's quirks.go uses for prioritizeAndSave.
func (e *Entry) matchWeight(fp Fingerprint, model string) int {
	if e.hwid == nil {
		return -1
	}
	w := e.hwid.Match(fp.VID, fp.PID)
	if w < 0 {
		return -1
	}

	if e.BcdMin != 0 && fp.BcdDevice < e.BcdMin {
		return -1
	}
	if e.BcdMax != 0 && fp.BcdDevice > e.BcdMax {
		return -1
	}

	pattern := InterfaceTriple{Class: e.IfaceClass, SubClass: e.IfaceSubClass, Protocol: e.IfaceProtocol}
	if pattern != (InterfaceTriple{}) && !fp.Iface.hasPrefix(pattern) {
		return -1
	}

	if e.ModelGlob != "" {
		g := GlobMatch(model, e.ModelGlob)
		if g < 0 {
			return -1
		}
		w += 2 * g
	}

	return w
}

// Match returns the best-matching entry for fp (and optional model
// name, used only for ModelGlob scoring), or nil if none matches.
// At most one entry is returned: the highest weight wins, database
// order breaking ties (spec.md §4.6).
func (db *DB) Match(fp Fingerprint, model string) *Entry {
	var best *Entry
	bestWeight := -1

	for i := range db.Entries {
		w := db.Entries[i].matchWeight(fp, model)
		if w < 0 {
			continue
		}
		if w > bestWeight {
			bestWeight = w
			best = &db.Entries[i]
		}
	}
	return best
}

// LearnedProfile holds per-device numeric observations fed back from
// probe receipts, consulted at policy-assembly stage 4 (spec.md
// §4.6 step 4).
type LearnedProfile struct {
	OptimalChunkBytes  int
	P95ThroughputBps   float64
	OptimalIOTimeout   time.Duration
	SuccessRate        float64 // in [0,1]
}

// successRateFloor below which a learned profile is distrusted and
// conservative values are forced instead of the learned ones.
const successRateFloor = 0.5

// safety band: a learned timeout may not be nudged more than this
// factor away from whatever the policy already carries.
const timeoutSafetyBandFactor = 2.0

// Override is the caller's explicit, highest-priority override
// (spec.md §4.6 step 5). Every field is optional.
type Override struct {
	Tuning TuningOverride
	Flags  FlagOverride
}
