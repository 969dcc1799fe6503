/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Live index: row types
 */

package index

// ObjectRow is the live index's view of one MTP object: Object
// (spec.md §3) plus the device-id/change-tracking fields of
// "Indexed object".
type ObjectRow struct {
	StorageID     uint32
	Handle        uint32
	ParentHandle  *uint32 // nil at storage root
	Name          string
	PathKey       string
	Size          *int64 // nil for folders
	ModTime       *int64 // unix seconds, nil if the device withheld it
	Format        uint16
	IsFolder      bool
	ChangeCounter uint64
	Stale         bool
}

// StorageRow mirrors spec.md §3 "Storage".
type StorageRow struct {
	StorageID   uint32
	Description string
	Capacity    uint64
	Free        uint64
	ReadOnly    bool
}

// ChangeKind is the kind of a change_log entry.
type ChangeKind string

const (
	ChangeUpserted ChangeKind = "upserted"
	ChangeDeleted  ChangeKind = "deleted"
)

// ChangeLogEntry mirrors spec.md §3 "Change log entry".
type ChangeLogEntry struct {
	StableID string
	Counter  uint64
	Kind     ChangeKind
	Handle   uint32
	Snapshot ObjectRow
}
