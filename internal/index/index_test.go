package index

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/store"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"), Migrations())
	if err != nil {
		t.Fatalf("store.Open: %s", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s.DB)
}

func sizePtr(n int64) *int64 { return &n }

func TestUpsertObjectNewRowBumpsCounter(t *testing.T) {
	ix := newTestIndex(t)

	obj := ObjectRow{StorageID: 1, Handle: 10, Name: "a.txt", PathKey: "/a.txt", Size: sizePtr(100), Format: 0x3000}
	changed, err := ix.UpsertObject("dev1", obj)
	if err != nil {
		t.Fatalf("UpsertObject: %s", err)
	}
	if !changed {
		t.Fatal("expected changed=true for a new row")
	}

	changes, err := ix.ChangesSince("dev1", 0)
	if err != nil {
		t.Fatalf("ChangesSince: %s", err)
	}
	if len(changes) != 1 || changes[0].Kind != ChangeUpserted || changes[0].Handle != 10 {
		t.Fatalf("got %+v", changes)
	}
}

func TestUpsertObjectUnchangedIsNoOp(t *testing.T) {
	ix := newTestIndex(t)

	obj := ObjectRow{StorageID: 1, Handle: 10, Name: "a.txt", PathKey: "/a.txt", Size: sizePtr(100), Format: 0x3000}
	if _, err := ix.UpsertObject("dev1", obj); err != nil {
		t.Fatal(err)
	}

	changed, err := ix.UpsertObject("dev1", obj)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("expected changed=false for an identical re-upsert")
	}

	changes, _ := ix.ChangesSince("dev1", 0)
	if len(changes) != 1 {
		t.Fatalf("expected exactly one change-log entry, got %d", len(changes))
	}
}

func TestMarkStaleThenSweepDetectsDeletion(t *testing.T) {
	ix := newTestIndex(t)

	a := ObjectRow{StorageID: 1, Handle: 1, Name: "a.txt", PathKey: "/a.txt", Format: 0x3000}
	b := ObjectRow{StorageID: 1, Handle: 2, Name: "b.txt", PathKey: "/b.txt", Format: 0x3000}
	if _, err := ix.UpsertObject("dev1", a); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.UpsertObject("dev1", b); err != nil {
		t.Fatal(err)
	}

	anchorChanges, _ := ix.ChangesSince("dev1", 0)
	anchor := anchorChanges[len(anchorChanges)-1].Counter

	// Re-crawl: "b.txt" was removed from the device side.
	if err := ix.MarkStaleChildren("dev1", 1, 0xFFFFFFFF); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.UpsertObject("dev1", a); err != nil {
		t.Fatal(err)
	}
	if err := ix.SweepStale("dev1", 1, 0xFFFFFFFF); err != nil {
		t.Fatal(err)
	}

	changes, err := ix.ChangesSince("dev1", anchor)
	if err != nil {
		t.Fatal(err)
	}
	// handle 1 gets re-upserted (coming out of stale counts as a
	// change per §4.7's Upsert rule); handle 2 never re-appeared in
	// the crawl and is swept as deleted.
	byHandle := map[uint32]ChangeKind{}
	for _, c := range changes {
		byHandle[c.Handle] = c.Kind
	}
	if byHandle[2] != ChangeDeleted {
		t.Fatalf("got %+v, want handle 2 recorded as deleted", changes)
	}
}

func TestChangesSinceDedupesToLastEntryPerHandle(t *testing.T) {
	ix := newTestIndex(t)

	obj := ObjectRow{StorageID: 1, Handle: 1, Name: "a.txt", PathKey: "/a.txt", Format: 0x3000}
	if _, err := ix.UpsertObject("dev1", obj); err != nil {
		t.Fatal(err)
	}
	obj.Name = "renamed.txt"
	if _, err := ix.UpsertObject("dev1", obj); err != nil {
		t.Fatal(err)
	}

	changes, err := ix.ChangesSince("dev1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected exactly one deduplicated entry, got %d: %+v", len(changes), changes)
	}
	if changes[0].Snapshot.Name != "renamed.txt" {
		t.Fatalf("expected terminal state in the deduplicated entry, got %+v", changes[0])
	}
}

func TestAnchorRoundTrip(t *testing.T) {
	for _, counter := range []uint64{0, 1, 42, 1 << 40} {
		b := EncodeAnchor(counter)
		if len(b) != 8 {
			t.Fatalf("EncodeAnchor(%d) = %d bytes, want 8", counter, len(b))
		}
		got, err := DecodeAnchor(b)
		if err != nil {
			t.Fatal(err)
		}
		if got != counter {
			t.Fatalf("DecodeAnchor(EncodeAnchor(%d)) = %d", counter, got)
		}
	}
}

func TestPruneChangeLogIsIdempotent(t *testing.T) {
	ix := newTestIndex(t)
	obj := ObjectRow{StorageID: 1, Handle: 1, Name: "a.txt", PathKey: "/a.txt", Format: 0x3000}
	if _, err := ix.UpsertObject("dev1", obj); err != nil {
		t.Fatal(err)
	}

	cutoff := time.Now().Add(time.Hour)
	if err := ix.PruneChangeLog("dev1", cutoff); err != nil {
		t.Fatal(err)
	}
	if err := ix.PruneChangeLog("dev1", cutoff); err != nil {
		t.Fatal(err)
	}

	changes, _ := ix.ChangesSince("dev1", 0)
	if len(changes) != 0 {
		t.Fatalf("expected change log pruned, got %d entries", len(changes))
	}
}
