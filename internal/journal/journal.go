/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Transfer journal: begin/progress/fail/complete/resume
 */

package journal

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/store"
)

// Kind distinguishes a read (device -> host) from a write (host ->
// device) transfer.
type Kind string

const (
	KindRead  Kind = "read"
	KindWrite Kind = "write"
)

// State is a transfer record's lifecycle state.
type State string

const (
	StateActive    State = "active"
	StateFailed    State = "failed"
	StateCompleted State = "completed"
)

// Record mirrors spec.md §3 "Transfer record".
type Record struct {
	ID              string
	StableID        string
	Kind            Kind
	Handle          *uint32 // read: the source object; write: the new handle once assigned
	ParentHandle    *uint32 // write only: destination folder
	Name            string
	TotalBytes      int64
	CommittedBytes  int64
	SupportsPartial bool
	LocalTempURL    string
	FinalURL        string // read: destination; empty until the transfer completes
	SourceURL       string // write: origin, if copying from a local file
	ETag            string
	State           State
	LastError       string
	UpdatedAt       time.Time
}

// Journal is the transfer journal over a shared store.Store.
type Journal struct {
	db *sql.DB
}

// New wraps db (opened and migrated via store.Open with
// journal.Migrations()).
func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// BeginRead starts a device-to-host transfer record.
func (j *Journal) BeginRead(device string, handle uint32, name string, size *int64, supportsPartial bool, tempURL, finalURL, etag string) (string, error) {
	id := uuid.New().String()
	h := handle
	err := j.insert(Record{
		ID: id, StableID: device, Kind: KindRead, Handle: &h, Name: name,
		TotalBytes: sizeOrZero(size), SupportsPartial: supportsPartial,
		LocalTempURL: tempURL, FinalURL: finalURL, ETag: etag,
		State: StateActive, UpdatedAt: time.Now(),
	})
	return id, err
}

// BeginWrite starts a host-to-device transfer record.
func (j *Journal) BeginWrite(device string, parent uint32, name string, size int64, supportsPartial bool, tempURL, sourceURL string) (string, error) {
	id := uuid.New().String()
	p := parent
	err := j.insert(Record{
		ID: id, StableID: device, Kind: KindWrite, ParentHandle: &p, Name: name,
		TotalBytes: size, SupportsPartial: supportsPartial,
		LocalTempURL: tempURL, SourceURL: sourceURL,
		State: StateActive, UpdatedAt: time.Now(),
	})
	return id, err
}

func (j *Journal) insert(r Record) error {
	_, err := j.db.Exec(`
		INSERT INTO transfers (id, stable_id, kind, handle, parent_handle, name, total_bytes,
			committed_bytes, supports_partial, local_temp_url, final_url, source_url, etag, state, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?, '', ?)
	`, r.ID, r.StableID, string(r.Kind), nullableUint32(r.Handle), nullableUint32(r.ParentHandle), r.Name,
		r.TotalBytes, boolToInt(r.SupportsPartial), r.LocalTempURL, r.FinalURL, r.SourceURL, r.ETag,
		string(r.State), r.UpdatedAt.Unix())
	if err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	return nil
}

// UpdateProgress records committed bytes for an in-progress transfer.
func (j *Journal) UpdateProgress(id string, committedBytes int64) error {
	res, err := j.db.Exec(`UPDATE transfers SET committed_bytes = ?, updated_at = ? WHERE id = ? AND state = ?`,
		committedBytes, time.Now().Unix(), id, string(StateActive))
	if err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	return requireRowAffected(res, id)
}

// Fail marks a record failed, per spec.md §4.8: "record kept for
// resume".
func (j *Journal) Fail(id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := j.db.Exec(`UPDATE transfers SET state = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		string(StateFailed), msg, time.Now().Unix(), id)
	if err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	return requireRowAffected(res, id)
}

// Complete marks a record completed, setting committed_bytes to
// total_bytes.
func (j *Journal) Complete(id string) error {
	res, err := j.db.Exec(`
		UPDATE transfers SET state = ?, committed_bytes = total_bytes, updated_at = ? WHERE id = ?
	`, string(StateCompleted), time.Now().Unix(), id)
	if err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	return requireRowAffected(res, id)
}

// LoadResumables returns every active record for device.
func (j *Journal) LoadResumables(device string) ([]Record, error) {
	rows, err := j.db.Query(`
		SELECT id, kind, handle, parent_handle, name, total_bytes, committed_bytes, supports_partial,
			local_temp_url, final_url, source_url, etag, state, last_error, updated_at
		FROM transfers WHERE stable_id = ? AND state = ?
	`, device, string(StateActive))
	if err != nil {
		return nil, &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows, device)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// ClearStaleTemps removes completed/failed records last updated at or
// before now minus olderThan (at one-second resolution) and
// best-effort removes their local temp files.
func (j *Journal) ClearStaleTemps(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).Unix()

	rows, err := j.db.Query(`
		SELECT id, local_temp_url FROM transfers
		WHERE state IN (?, ?) AND updated_at <= ?
	`, string(StateCompleted), string(StateFailed), cutoff)
	if err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}

	var ids []string
	var temps []string
	for rows.Next() {
		var id, temp string
		if err := rows.Scan(&id, &temp); err != nil {
			rows.Close()
			return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
		}
		ids = append(ids, id)
		temps = append(temps, temp)
	}
	rows.Close()

	for _, t := range temps {
		if t != "" {
			os.Remove(t)
		}
	}
	for _, id := range ids {
		if _, err := j.db.Exec(`DELETE FROM transfers WHERE id = ?`, id); err != nil {
			return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
		}
	}
	return nil
}

// ResumeDecision applies spec.md §4.8's resume rule: if the record
// supports partial transfer and localSize equals its committed bytes,
// resumption may continue at that offset; otherwise the record is not
// resumable as-is and the caller should restart it. It performs no
// I/O itself — callers stat the local temp file and pass the size in,
// keeping the rule pure and independently testable.
func ResumeDecision(r Record, localSize int64) (offset int64, resumable bool) {
	if !r.SupportsPartial {
		return 0, false
	}
	if localSize != r.CommittedBytes {
		return 0, false
	}
	return r.CommittedBytes, true
}

func scanRecord(rows *sql.Rows, device string) (Record, error) {
	var r Record
	var handle, parentHandle sql.NullInt64
	var kind, state string
	var supportsPartial int
	var updatedAt int64

	err := rows.Scan(&r.ID, &kind, &handle, &parentHandle, &r.Name, &r.TotalBytes, &r.CommittedBytes,
		&supportsPartial, &r.LocalTempURL, &r.FinalURL, &r.SourceURL, &r.ETag, &state, &r.LastError, &updatedAt)
	if err != nil {
		return Record{}, &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}

	r.StableID = device
	r.Kind = Kind(kind)
	r.State = State(state)
	r.SupportsPartial = supportsPartial != 0
	r.UpdatedAt = time.Unix(updatedAt, 0)
	if handle.Valid {
		v := uint32(handle.Int64)
		r.Handle = &v
	}
	if parentHandle.Valid {
		v := uint32(parentHandle.Int64)
		r.ParentHandle = &v
	}
	return r, nil
}

func requireRowAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	if n == 0 {
		return fmt.Errorf("journal: no such active transfer record %q", id)
	}
	return nil
}

func sizeOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func nullableUint32(v *uint32) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
