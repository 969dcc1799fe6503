/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Transfer journal: sqlite schema
 */

// Package journal implements the transfer journal (spec.md §4.8):
// resumable read/write transfer records backed by the same store as
// internal/index, with a resume rule comparing a local temp file's
// size to the record's committed-bytes.
package journal

import "github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/store"

// Migrations returns the journal's schema migrations, for the caller
// to pass to store.Open alongside internal/index.Migrations().
func Migrations() []store.Migration {
	return []store.Migration{
		{Version: 1, SQL: schemaV1},
	}
}

const schemaV1 = `
CREATE TABLE transfers (
	id              TEXT PRIMARY KEY,
	stable_id       TEXT NOT NULL,
	kind            TEXT NOT NULL,
	handle          INTEGER,
	parent_handle   INTEGER,
	name            TEXT NOT NULL,
	total_bytes     INTEGER NOT NULL,
	committed_bytes INTEGER NOT NULL DEFAULT 0,
	supports_partial INTEGER NOT NULL,
	local_temp_url  TEXT NOT NULL,
	final_url       TEXT NOT NULL DEFAULT '',
	source_url      TEXT NOT NULL DEFAULT '',
	etag            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL,
	last_error      TEXT NOT NULL DEFAULT '',
	updated_at      INTEGER NOT NULL
);

CREATE INDEX transfers_by_device_state ON transfers (stable_id, state);
`
