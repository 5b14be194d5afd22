// Package index provides the SQLite-backed relational projection of the
// record files: listing, filtering, full-text search, tag vocabulary,
// relation edges, and the per-type sequence counters. The index is a
// disposable cache; the files stay authoritative and every row here can be
// reconstructed from them.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS items (
	type       TEXT NOT NULL,
	id         TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	priority   TEXT NOT NULL DEFAULT 'medium',
	status_id  INTEGER NOT NULL DEFAULT 1,
	start_date TEXT,
	end_date   TEXT,
	start_time TEXT,
	tags       TEXT NOT NULL DEFAULT '[]',
	related    TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (type, id)
);

CREATE TABLE IF NOT EXISTS statuses (
	id        INTEGER PRIMARY KEY,
	name      TEXT NOT NULL UNIQUE,
	is_closed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tags (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	usage_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS item_tags (
	item_type TEXT NOT NULL,
	item_id   TEXT NOT NULL,
	tag_id    INTEGER NOT NULL,
	PRIMARY KEY (item_type, item_id, tag_id)
);

CREATE TABLE IF NOT EXISTS related_items (
	source_type TEXT NOT NULL,
	source_id   TEXT NOT NULL,
	target_type TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	UNIQUE(source_type, source_id, target_type, target_id)
);

CREATE TABLE IF NOT EXISTS sequences (
	type          TEXT PRIMARY KEY,
	current_value INTEGER NOT NULL DEFAULT 0,
	base_type     TEXT NOT NULL DEFAULT 'tasks'
);

CREATE INDEX IF NOT EXISTS idx_items_created ON items(type, created_at);
CREATE INDEX IF NOT EXISTS idx_item_tags_tag ON item_tags(tag_id);
CREATE INDEX IF NOT EXISTS idx_related_source ON related_items(source_type, source_id);
CREATE INDEX IF NOT EXISTS idx_related_target ON related_items(target_type, target_id);

INSERT OR IGNORE INTO statuses (id, name, is_closed) VALUES
	(1, 'Open', 0),
	(2, 'In Progress', 0),
	(3, 'Review', 0),
	(4, 'Completed', 1),
	(5, 'Closed', 1),
	(6, 'On Hold', 0),
	(7, 'Cancelled', 1);

INSERT OR IGNORE INTO sequences (type, current_value, base_type) VALUES
	('issues', 0, 'tasks'),
	('plans', 0, 'tasks'),
	('docs', 0, 'documents'),
	('knowledge', 0, 'documents');
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
