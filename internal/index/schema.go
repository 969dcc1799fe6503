/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Live index: sqlite schema
 */

// Package index implements the live index (spec.md §4.7): a
// sqlite-backed mirror of every device's storage/object graph, kept
// current via mark-stale-then-sweep re-crawls, with a deduplicated
// change log readers consume through opaque sync anchors.
package index

import "github.com/EffortlessMetrics/SwiftMTP-dev-sub005/internal/store"

// Migrations returns the index's schema migrations, for the caller to
// pass to store.Open alongside internal/journal's (the two packages
// share one store, per spec.md §4.8 "Durability").
func Migrations() []store.Migration {
	return []store.Migration{
		{Version: 1, SQL: schemaV1},
	}
}

const schemaV1 = `
CREATE TABLE devices (
	stable_id    TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	last_seen    INTEGER NOT NULL
);

CREATE TABLE storages (
	stable_id   TEXT NOT NULL,
	storage_id  INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	capacity    INTEGER NOT NULL DEFAULT 0,
	free        INTEGER NOT NULL DEFAULT 0,
	read_only   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (stable_id, storage_id)
);

CREATE TABLE objects (
	stable_id      TEXT NOT NULL,
	storage_id     INTEGER NOT NULL,
	handle         INTEGER NOT NULL,
	parent_handle  INTEGER,
	name           TEXT NOT NULL,
	path_key       TEXT NOT NULL,
	size           INTEGER,
	mtime          INTEGER,
	format         INTEGER NOT NULL,
	is_folder      INTEGER NOT NULL,
	change_counter INTEGER NOT NULL,
	stale          INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (stable_id, storage_id, handle)
);

CREATE INDEX objects_by_parent ON objects (stable_id, storage_id, parent_handle);

CREATE TABLE change_log (
	stable_id TEXT NOT NULL,
	counter   INTEGER NOT NULL,
	kind      TEXT NOT NULL,
	handle    INTEGER NOT NULL,
	snapshot  BLOB,
	ts        INTEGER NOT NULL,
	PRIMARY KEY (stable_id, counter)
);

CREATE INDEX change_log_by_device ON change_log (stable_id, counter);

CREATE TABLE counters (
	stable_id    TEXT PRIMARY KEY,
	next_counter INTEGER NOT NULL DEFAULT 1
);
`
