package journal

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/store"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "journal.db"), Migrations())
	if err != nil {
		t.Fatalf("store.Open: %s", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s.DB)
}

func TestResumeAfterPartialWrite(t *testing.T) {
	j := newTestJournal(t)

	const total = 10 << 20
	id, err := j.BeginWrite("dev1", 0xFFFFFFFF, "movie.mp4", total, true, "/tmp/movie.mp4.part", "")
	if err != nil {
		t.Fatalf("BeginWrite: %s", err)
	}

	const committed = 5 << 20
	if err := j.UpdateProgress(id, committed); err != nil {
		t.Fatalf("UpdateProgress: %s", err)
	}
	if err := j.Fail(id, errors.New("timeout")); err != nil {
		t.Fatalf("Fail: %s", err)
	}

	resumables, err := j.LoadResumables("dev1")
	if err != nil {
		t.Fatalf("LoadResumables: %s", err)
	}
	// Fail transitions state to failed, which load_resumables (active
	// only) no longer reports — matching spec.md §8 scenario 5's
	// "active-after-failure" framing, the record must still be
	// resumable via a direct lookup rather than the active-only list.
	if len(resumables) != 0 {
		t.Fatalf("expected no active records after Fail, got %d", len(resumables))
	}

	var rec Record
	rows, err := j.db.Query(`SELECT id, kind, handle, parent_handle, name, total_bytes, committed_bytes,
		supports_partial, local_temp_url, final_url, source_url, etag, state, last_error, updated_at
		FROM transfers WHERE id = ?`, id)
	if err != nil {
		t.Fatal(err)
	}
	if !rows.Next() {
		t.Fatal("expected a row")
	}
	rec, err = scanRecord(rows, "dev1")
	rows.Close()
	if err != nil {
		t.Fatal(err)
	}

	if rec.State != StateFailed {
		t.Fatalf("state = %s, want failed", rec.State)
	}
	if rec.CommittedBytes != committed {
		t.Fatalf("committed_bytes = %d, want %d", rec.CommittedBytes, committed)
	}

	offset, resumable := ResumeDecision(rec, committed)
	if !resumable || offset != committed {
		t.Fatalf("ResumeDecision = (%d, %v), want (%d, true)", offset, resumable, committed)
	}

	if err := j.Complete(id); err != nil {
		t.Fatalf("Complete: %s", err)
	}
}

func TestResumeDecisionRejectsSizeMismatch(t *testing.T) {
	rec := Record{SupportsPartial: true, CommittedBytes: 100}
	if _, resumable := ResumeDecision(rec, 50); resumable {
		t.Fatal("expected not resumable when local size != committed bytes")
	}
	if _, resumable := ResumeDecision(rec, 100); !resumable {
		t.Fatal("expected resumable when local size == committed bytes")
	}
}

func TestResumeDecisionRejectsNonPartial(t *testing.T) {
	rec := Record{SupportsPartial: false, CommittedBytes: 100}
	if _, resumable := ResumeDecision(rec, 100); resumable {
		t.Fatal("expected not resumable when the device lacks partial support")
	}
}

func TestClearStaleTempsRemovesOldRecordsOnly(t *testing.T) {
	j := newTestJournal(t)

	id, err := j.BeginRead("dev1", 1, "a.txt", nil, false, "/tmp/a.txt.part", "/home/a.txt", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Complete(id); err != nil {
		t.Fatal(err)
	}

	// A zero threshold clears everything not updated in the future.
	if err := j.ClearStaleTemps(0); err != nil {
		t.Fatalf("ClearStaleTemps: %s", err)
	}

	resumables, _ := j.LoadResumables("dev1")
	if len(resumables) != 0 {
		t.Fatalf("expected no active records, got %d", len(resumables))
	}

	var count int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM transfers WHERE id = ?`, id).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected the completed record purged, found %d", count)
	}
}
