/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Live index: upsert, mark-stale/sweep, changes-since, pruning
 */

package index

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/store"
)

// Index is the live index over a shared store.Store. Per spec.md §5,
// it is actor-like: every mutating call takes the same internal
// mutex for the duration of its transaction, but no caller holds that
// lock across an awaited USB I/O call — only across the sqlite
// transaction itself.
type Index struct {
	db *sql.DB
	mu sync.Mutex
}

// New wraps db (opened and migrated via store.Open with
// index.Migrations(), typically alongside journal.Migrations()).
func New(db *sql.DB) *Index {
	return &Index{db: db}
}

// UpsertDevice records a device as seen at the given time, per
// spec.md §4.7's `devices` table.
func (ix *Index) UpsertDevice(stableID, displayName string, seen time.Time) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, err := ix.db.Exec(`
		INSERT INTO devices (stable_id, display_name, last_seen) VALUES (?, ?, ?)
		ON CONFLICT (stable_id) DO UPDATE SET display_name = excluded.display_name, last_seen = excluded.last_seen
	`, stableID, displayName, seen.Unix())
	if err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	return nil
}

// UpsertStorage records a storage's current description and capacity.
func (ix *Index) UpsertStorage(stableID string, s StorageRow) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, err := ix.db.Exec(`
		INSERT INTO storages (stable_id, storage_id, description, capacity, free, read_only)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (stable_id, storage_id) DO UPDATE SET
			description = excluded.description, capacity = excluded.capacity,
			free = excluded.free, read_only = excluded.read_only
	`, stableID, s.StorageID, s.Description, s.Capacity, s.Free, boolToInt(s.ReadOnly))
	if err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	return nil
}

// MarkStaleChildren marks every existing row under (storageID,
// parent) stale, the first half of the re-crawl protocol
// (spec.md §4.7 "Mark-stale-then-purge protocol").
func (ix *Index) MarkStaleChildren(stableID string, storageID uint32, parent uint32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, err := ix.db.Exec(`
		UPDATE objects SET stale = 1
		WHERE stable_id = ? AND storage_id = ? AND parent_handle IS ?
	`, stableID, storageID, parentParam(parent))
	if err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	return nil
}

// UpsertObject writes or updates one object row. It compares against
// any existing row by primary key; a change_log row with
// kind=upserted is written (and the change counter bumped) only if
// something changed (name, parent, size, mtime, format, folder flag,
// or the row is coming out of stale) — otherwise the call is a no-op
// beyond clearing the stale flag, per spec.md §4.7 "Upsert".
func (ix *Index) UpsertObject(stableID string, obj ObjectRow) (changed bool, err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	tx, err := ix.db.Begin()
	if err != nil {
		return false, &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	defer tx.Rollback()

	existing, found, err := queryObject(tx, stableID, obj.StorageID, obj.Handle)
	if err != nil {
		return false, err
	}

	changed = !found || objectDiffers(existing, obj)

	counter := existing.ChangeCounter
	if changed {
		counter, err = ix.bumpCounter(tx, stableID)
		if err != nil {
			return false, err
		}
	}

	obj.ChangeCounter = counter
	obj.Stale = false

	_, err = tx.Exec(`
		INSERT INTO objects (stable_id, storage_id, handle, parent_handle, name, path_key, size, mtime, format, is_folder, change_counter, stale)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT (stable_id, storage_id, handle) DO UPDATE SET
			parent_handle = excluded.parent_handle, name = excluded.name, path_key = excluded.path_key,
			size = excluded.size, mtime = excluded.mtime, format = excluded.format,
			is_folder = excluded.is_folder, change_counter = excluded.change_counter, stale = 0
	`, stableID, obj.StorageID, obj.Handle, nullableUint32(obj.ParentHandle), obj.Name, obj.PathKey,
		nullableInt64(obj.Size), nullableInt64(obj.ModTime), obj.Format, boolToInt(obj.IsFolder), counter)
	if err != nil {
		return false, &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}

	if changed {
		if err := writeChangeLog(tx, stableID, counter, ChangeUpserted, obj.Handle, obj); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	return changed, nil
}

// SweepStale completes the re-crawl protocol: every row still marked
// stale under (storageID, parent) is recorded as kind=deleted in the
// change log and removed from objects.
func (ix *Index) SweepStale(stableID string, storageID uint32, parent uint32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	tx, err := ix.db.Begin()
	if err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT handle, parent_handle, name, path_key, size, mtime, format, is_folder, change_counter
		FROM objects
		WHERE stable_id = ? AND storage_id = ? AND parent_handle IS ? AND stale = 1
	`, stableID, storageID, parentParam(parent))
	if err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}

	var stale []ObjectRow
	for rows.Next() {
		var o ObjectRow
		var parentHandle sql.NullInt64
		var size, mtime sql.NullInt64
		if err := rows.Scan(&o.Handle, &parentHandle, &o.Name, &o.PathKey, &size, &mtime, &o.Format, &o.IsFolder, &o.ChangeCounter); err != nil {
			rows.Close()
			return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
		}
		o.StorageID = storageID
		if parentHandle.Valid {
			v := uint32(parentHandle.Int64)
			o.ParentHandle = &v
		}
		if size.Valid {
			o.Size = &size.Int64
		}
		if mtime.Valid {
			o.ModTime = &mtime.Int64
		}
		stale = append(stale, o)
	}
	rows.Close()

	for _, o := range stale {
		counter, err := ix.bumpCounter(tx, stableID)
		if err != nil {
			return err
		}
		if err := writeChangeLog(tx, stableID, counter, ChangeDeleted, o.Handle, o); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM objects WHERE stable_id = ? AND storage_id = ? AND handle = ?`, stableID, storageID, o.Handle); err != nil {
			return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
		}
	}

	return commitOrWrap(tx)
}

// ChangesSince returns every change_log entry for stableID with
// counter > anchor, deduplicated to the last entry per handle, per
// spec.md §4.7 "Deduplicated changes-since".
func (ix *Index) ChangesSince(stableID string, anchor uint64) ([]ChangeLogEntry, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rows, err := ix.db.Query(`
		SELECT counter, kind, handle, snapshot FROM change_log
		WHERE stable_id = ? AND counter > ?
		ORDER BY counter ASC
	`, stableID, anchor)
	if err != nil {
		return nil, &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	defer rows.Close()

	byHandle := map[uint32]ChangeLogEntry{}
	var order []uint32
	for rows.Next() {
		var e ChangeLogEntry
		var kind string
		var snapshot []byte
		if err := rows.Scan(&e.Counter, &kind, &e.Handle, &snapshot); err != nil {
			return nil, &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
		}
		e.StableID = stableID
		e.Kind = ChangeKind(kind)
		if len(snapshot) > 0 {
			if err := json.Unmarshal(snapshot, &e.Snapshot); err != nil {
				return nil, &store.StoreError{Kind: store.ErrKindCorruption, Message: err.Error()}
			}
		}
		if _, seen := byHandle[e.Handle]; !seen {
			order = append(order, e.Handle)
		}
		byHandle[e.Handle] = e
	}

	result := make([]ChangeLogEntry, 0, len(order))
	for _, h := range order {
		result = append(result, byHandle[h])
	}
	return result, nil
}

// PruneChangeLog drops change_log rows older than cutoff.
func (ix *Index) PruneChangeLog(stableID string, cutoff time.Time) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, err := ix.db.Exec(`DELETE FROM change_log WHERE stable_id = ? AND ts < ?`, stableID, cutoff.Unix())
	if err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	return nil
}

// EncodeAnchor renders counter as the opaque 8-byte big-endian sync
// anchor spec.md §4.7 specifies.
func EncodeAnchor(counter uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, counter)
	return b
}

// DecodeAnchor is the inverse of EncodeAnchor.
func DecodeAnchor(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("index: anchor must be 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func (ix *Index) bumpCounter(tx *sql.Tx, stableID string) (uint64, error) {
	_, err := tx.Exec(`INSERT INTO counters (stable_id, next_counter) VALUES (?, 2) ON CONFLICT (stable_id) DO NOTHING`, stableID)
	if err != nil {
		return 0, &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}

	var next uint64
	if err := tx.QueryRow(`SELECT next_counter FROM counters WHERE stable_id = ?`, stableID).Scan(&next); err != nil {
		return 0, &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}

	if _, err := tx.Exec(`UPDATE counters SET next_counter = ? WHERE stable_id = ?`, next+1, stableID); err != nil {
		return 0, &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}

	return next, nil
}

func queryObject(tx *sql.Tx, stableID string, storageID, handle uint32) (ObjectRow, bool, error) {
	var o ObjectRow
	var parentHandle sql.NullInt64
	var size, mtime sql.NullInt64

	row := tx.QueryRow(`
		SELECT parent_handle, name, path_key, size, mtime, format, is_folder, change_counter, stale
		FROM objects WHERE stable_id = ? AND storage_id = ? AND handle = ?
	`, stableID, storageID, handle)

	err := row.Scan(&parentHandle, &o.Name, &o.PathKey, &size, &mtime, &o.Format, &o.IsFolder, &o.ChangeCounter, &o.Stale)
	if err == sql.ErrNoRows {
		return ObjectRow{}, false, nil
	}
	if err != nil {
		return ObjectRow{}, false, &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}

	o.StorageID = storageID
	o.Handle = handle
	if parentHandle.Valid {
		v := uint32(parentHandle.Int64)
		o.ParentHandle = &v
	}
	if size.Valid {
		o.Size = &size.Int64
	}
	if mtime.Valid {
		o.ModTime = &mtime.Int64
	}
	return o, true, nil
}

// objectDiffers compares the fields spec.md §4.7's Upsert rule names:
// name, parent, size, mtime, format, folder, or coming out of stale.
func objectDiffers(existing, next ObjectRow) bool {
	if existing.Stale {
		return true
	}
	if existing.Name != next.Name {
		return true
	}
	if !uint32PtrEqual(existing.ParentHandle, next.ParentHandle) {
		return true
	}
	if !int64PtrEqual(existing.Size, next.Size) {
		return true
	}
	if !int64PtrEqual(existing.ModTime, next.ModTime) {
		return true
	}
	if existing.Format != next.Format {
		return true
	}
	if existing.IsFolder != next.IsFolder {
		return true
	}
	return false
}

func writeChangeLog(tx *sql.Tx, stableID string, counter uint64, kind ChangeKind, handle uint32, snapshot ObjectRow) error {
	blob, err := json.Marshal(snapshot)
	if err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	_, err = tx.Exec(`
		INSERT INTO change_log (stable_id, counter, kind, handle, snapshot, ts) VALUES (?, ?, ?, ?, ?, ?)
	`, stableID, counter, string(kind), handle, blob, time.Now().Unix())
	if err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	return nil
}

func commitOrWrap(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return &store.StoreError{Kind: store.ErrKindIO, Message: err.Error()}
	}
	return nil
}

func parentParam(parent uint32) interface{} {
	if parent == 0xFFFFFFFF {
		return nil
	}
	return parent
}

func nullableUint32(v *uint32) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64(v *int64) interface{} {
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

func uint32PtrEqual(a, b *uint32) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

func int64PtrEqual(a, b *int64) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}
