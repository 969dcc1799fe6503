package device

import (
	"path/filepath"
	"testing"
)

func TestResolveHostAssignedPersistsAcrossLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")

	r1, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %s", err)
	}
	key := HeuristicKey(0x04e8, 0x6860, 0x06, 0x01, 0x01)
	id1, err := r1.ResolveHostAssigned(key)
	if err != nil {
		t.Fatalf("ResolveHostAssigned: %s", err)
	}

	r2, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry (reload): %s", err)
	}
	id2, err := r2.ResolveHostAssigned(key)
	if err != nil {
		t.Fatalf("ResolveHostAssigned (reload): %s", err)
	}

	if id1 != id2 {
		t.Fatalf("expected the same host-assigned id across reloads, got %q and %q", id1, id2)
	}
}

func TestResolveHostAssignedDistinguishesKeys(t *testing.T) {
	r, err := LoadRegistry(filepath.Join(t.TempDir(), "registry.json"))
	if err != nil {
		t.Fatal(err)
	}

	idA, _ := r.ResolveHostAssigned(HeuristicKey(0x04e8, 0x6860, 0x06, 0x01, 0x01))
	idB, _ := r.ResolveHostAssigned(HeuristicKey(0x04e8, 0x1234, 0x06, 0x01, 0x01))
	if idA == idB {
		t.Fatal("expected distinct products to get distinct host-assigned ids")
	}
}

func TestBindUnbindLiveMapping(t *testing.T) {
	r, err := LoadRegistry(filepath.Join(t.TempDir(), "registry.json"))
	if err != nil {
		t.Fatal(err)
	}

	eph := EphemeralID{Bus: 1, Address: 5}
	r.Bind(eph, "stable-1")

	if got, ok := r.StableFor(eph); !ok || got != "stable-1" {
		t.Fatalf("StableFor = (%q, %v), want (stable-1, true)", got, ok)
	}

	r.Unbind(eph)
	if _, ok := r.StableFor(eph); ok {
		t.Fatal("expected Unbind to remove the live mapping")
	}
}
