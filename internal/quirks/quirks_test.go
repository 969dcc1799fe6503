package quirks

import (
	"bytes"
	"testing"
	"time"
)

func TestHWIDPatternExactAndWildcard(t *testing.T) {
	exact := ParseHWIDPattern("04e8:6860")
	if exact == nil {
		t.Fatal("expected pattern to parse")
	}
	if w := exact.Match(0x04e8, 0x6860); w != 1000 {
		t.Fatalf("exact match weight = %d, want 1000", w)
	}
	if w := exact.Match(0x04e8, 0x1234); w != -1 {
		t.Fatalf("mismatched PID should not match, got %d", w)
	}

	wild := ParseHWIDPattern("04e8:*")
	if wild == nil {
		t.Fatal("expected wildcard pattern to parse")
	}
	if w := wild.Match(0x04e8, 0x9999); w != 1 {
		t.Fatalf("wildcard match weight = %d, want 1", w)
	}
	if w := wild.Match(0x0781, 0x9999); w != -1 {
		t.Fatalf("wrong vendor should not match, got %d", w)
	}

	if ParseHWIDPattern("garbage") != nil {
		t.Fatal("malformed pattern should not parse")
	}
}

func TestGlobMatchWeighting(t *testing.T) {
	if g := GlobMatch("Galaxy S21", "Galaxy *"); g < 0 {
		t.Fatal("expected prefix match")
	}
	if g := GlobMatch("Galaxy S21", "Pixel *"); g != -1 {
		t.Fatalf("expected no match, got %d", g)
	}
	specific := GlobMatch("Galaxy S21", "Galaxy S21")
	prefix := GlobMatch("Galaxy S21", "Galaxy *")
	if specific <= prefix {
		t.Fatalf("more specific pattern should score higher: specific=%d prefix=%d", specific, prefix)
	}
}

func TestInterfaceTriplePrefixMatch(t *testing.T) {
	fp := Fingerprint{Iface: InterfaceTriple{Class: 0x06, SubClass: 0x01, Protocol: 0x01}}
	if !fp.Iface.hasPrefix(InterfaceTriple{Class: 0x06}) {
		t.Fatal("class-only pattern should match")
	}
	if fp.Iface.hasPrefix(InterfaceTriple{Class: 0xFF}) {
		t.Fatal("mismatched class should not match")
	}
}

func TestResolveEmptyDatabaseClassHeuristicPTP(t *testing.T) {
	fp := Fingerprint{VID: 0x04e8, PID: 0x6860, Iface: InterfaceTriple{Class: 0x06, SubClass: 0x01, Protocol: 0x01}}

	p := Resolve(fp, "", nil, nil, nil)

	if !p.Flags.SupportsGetObjectPropList {
		t.Fatal("expected supports_get_object_prop_list=true under PTP class heuristic")
	}
	if p.Flags.RequiresKernelDetach {
		t.Fatal("expected requires_kernel_detach=false under PTP class heuristic")
	}
	if p.Sources["supports_get_object_prop_list"] != SourceClassHeuristic {
		t.Fatalf("got source %q, want class-heuristic", p.Sources["supports_get_object_prop_list"])
	}
	if p.Sources["requires_kernel_detach"] != SourceClassHeuristic {
		t.Fatalf("got source %q, want class-heuristic", p.Sources["requires_kernel_detach"])
	}
}

func TestResolveEmptyDatabaseConservativeDefaultVendorClass(t *testing.T) {
	fp := Fingerprint{VID: 0x18d1, PID: 0x4ee1, Iface: InterfaceTriple{Class: 0xFF, SubClass: 0xFF, Protocol: 0x00}}

	p := Resolve(fp, "", nil, nil, nil)

	if p.Flags.SupportsGetObjectPropList {
		t.Fatal("expected conservative default for non-PTP class")
	}
	if p.Sources["supports_get_object_prop_list"] != SourceDefault {
		t.Fatalf("got source %q, want default", p.Sources["supports_get_object_prop_list"])
	}
	if p.Sources["requires_kernel_detach"] != SourceDefault {
		t.Fatalf("got source %q, want default", p.Sources["requires_kernel_detach"])
	}
}

func TestResolveQuirkEntryOverridesClassHeuristic(t *testing.T) {
	fp := Fingerprint{VID: 0x04e8, PID: 0x6860, Iface: InterfaceTriple{Class: 0x06, SubClass: 0x01, Protocol: 0x01}}

	db := &DB{Entries: []Entry{{
		HWID: "04e8:6860",
		Flags: FlagOverride{
			RequiresKernelDetach: boolPtr(true),
		},
		Tuning: TuningOverride{MaxChunkBytes: 1 << 20},
	}}}
	db.compile()

	p := Resolve(fp, "", db, nil, nil)

	if !p.Flags.RequiresKernelDetach {
		t.Fatal("quirk entry should override class heuristic")
	}
	if p.Sources["requires_kernel_detach"] != SourceQuirk {
		t.Fatalf("got source %q, want quirk", p.Sources["requires_kernel_detach"])
	}
	if p.Tuning.MaxChunkBytes != 1<<20 {
		t.Fatalf("got chunk size %d", p.Tuning.MaxChunkBytes)
	}
	if p.Sources["max_chunk_bytes"] != SourceQuirk {
		t.Fatalf("got source %q, want quirk", p.Sources["max_chunk_bytes"])
	}
}

func TestResolveMoreSpecificEntryWins(t *testing.T) {
	fp := Fingerprint{VID: 0x04e8, PID: 0x6860}

	db := &DB{Entries: []Entry{
		{HWID: "04e8:*", Tuning: TuningOverride{MaxChunkBytes: 4096}},
		{HWID: "04e8:6860", Tuning: TuningOverride{MaxChunkBytes: 65536}},
	}}
	db.compile()

	p := Resolve(fp, "", db, nil, nil)
	if p.Tuning.MaxChunkBytes != 65536 {
		t.Fatalf("expected the exact HWID entry to win, got %d", p.Tuning.MaxChunkBytes)
	}
}

func TestResolveLearnedProfileForcesConservativeOnLowSuccessRate(t *testing.T) {
	fp := Fingerprint{VID: 0x04e8, PID: 0x6860}

	db := &DB{Entries: []Entry{{HWID: "04e8:6860", Tuning: TuningOverride{MaxChunkBytes: 1 << 20}}}}
	db.compile()

	learned := &LearnedProfile{OptimalChunkBytes: 1 << 22, SuccessRate: 0.1}

	p := Resolve(fp, "", db, learned, nil)
	if p.Tuning.MaxChunkBytes != compiledDefaults().Tuning.MaxChunkBytes {
		t.Fatalf("expected conservative default chunk size on low success rate, got %d", p.Tuning.MaxChunkBytes)
	}
	if p.Sources["max_chunk_bytes"] != SourceLearned {
		t.Fatalf("got source %q, want learned", p.Sources["max_chunk_bytes"])
	}
}

func TestResolveLearnedProfileNudgesWithinSafetyBand(t *testing.T) {
	fp := Fingerprint{VID: 0x04e8, PID: 0x6860}

	learned := &LearnedProfile{OptimalIOTimeout: 100 * time.Hour, SuccessRate: 0.99}

	p := Resolve(fp, "", nil, learned, nil)

	base := compiledDefaults().Tuning.IOTimeout
	maxAllowed := time.Duration(float64(base) * timeoutSafetyBandFactor)
	if p.Tuning.IOTimeout != maxAllowed {
		t.Fatalf("expected timeout clamped to safety band %s, got %s", maxAllowed, p.Tuning.IOTimeout)
	}
}

func TestResolveExplicitOverrideWinsOverEverything(t *testing.T) {
	fp := Fingerprint{VID: 0x04e8, PID: 0x6860, Iface: InterfaceTriple{Class: 0x06}}

	db := &DB{Entries: []Entry{{HWID: "04e8:6860", Flags: FlagOverride{RequiresKernelDetach: boolPtr(true)}}}}
	db.compile()

	override := &Override{Flags: FlagOverride{RequiresKernelDetach: boolPtr(false)}}

	p := Resolve(fp, "", db, nil, override)
	if p.Flags.RequiresKernelDetach {
		t.Fatal("explicit override should win")
	}
	if p.Sources["requires_kernel_detach"] != SourceOverride {
		t.Fatalf("got source %q, want override", p.Sources["requires_kernel_detach"])
	}
}

func TestDBLoadSaveRoundTrip(t *testing.T) {
	db := &DB{Entries: []Entry{{
		HWID:        "04e8:6860",
		ModelGlob:   "Galaxy *",
		Category:    "phone",
		Description: "Samsung Galaxy phones",
		Tuning:      TuningOverride{MaxChunkBytes: 32768},
		Flags:       FlagOverride{SupportsGetObjectPropList: boolPtr(true)},
	}}}

	var buf bytes.Buffer
	if err := db.Save(&buf); err != nil {
		t.Fatalf("Save: %s", err)
	}

	loaded, err := LoadDB(&buf)
	if err != nil {
		t.Fatalf("LoadDB: %s", err)
	}
	if len(loaded.Entries) != 1 || loaded.Entries[0].HWID != "04e8:6860" {
		t.Fatalf("round-trip mismatch: %+v", loaded.Entries)
	}

	fp := Fingerprint{VID: 0x04e8, PID: 0x6860}
	if e := loaded.Match(fp, "Galaxy S21"); e == nil {
		t.Fatal("expected loaded entry to match after compile()")
	}
}

func TestDBMatchModelGlobTiesBrokenByWeight(t *testing.T) {
	db := &DB{Entries: []Entry{
		{HWID: "04e8:*", ModelGlob: "Galaxy *", Category: "generic-galaxy"},
		{HWID: "04e8:*", ModelGlob: "Galaxy S21", Category: "specific-galaxy"},
	}}
	db.compile()

	fp := Fingerprint{VID: 0x04e8, PID: 0x9999}
	e := db.Match(fp, "Galaxy S21")
	if e == nil || e.Category != "specific-galaxy" {
		t.Fatalf("expected the more specific model glob to win, got %+v", e)
	}
}

func boolPtr(b bool) *bool { return &b }
