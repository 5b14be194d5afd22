//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
			type UNINDEXED,
			title,
			description,
			content,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

// ftsUpsert rewrites the full-text shadow row keyed by the items rowid.
func ftsUpsert(tx *sql.Tx, rowid int64, it *models.Item) error {
	_, _ = tx.Exec(`DELETE FROM items_fts WHERE rowid = ?`, rowid)
	_, err := tx.Exec(`
		INSERT INTO items_fts (rowid, type, title, description, content, tags)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rowid, it.Type, it.Title, it.Description, it.Content, strings.Join(it.Tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, rowid int64) {
	_, _ = tx.Exec(`DELETE FROM items_fts WHERE rowid = ?`, rowid)
}

// SearchResult represents one full-text search hit.
type SearchResult struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Search performs an FTS5 full-text search across titles, descriptions,
// content, and tags.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT i.type,
		       i.id,
		       i.title,
		       snippet(items_fts, 3, '<b>', '</b>', '...', 64)
		FROM items_fts
		JOIN items i ON i.rowid = items_fts.rowid
		WHERE items_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Type, &r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
