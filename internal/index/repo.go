package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// MaxListLimit is the hard ceiling on list query limits.
const MaxListLimit = 10000

// Status is one entry of the fixed status vocabulary.
type Status struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsClosed bool   `json:"is_closed"`
}

// Tag is one entry of the tag vocabulary with its derived usage count.
type Tag struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	UsageCount int    `json:"usage_count"`
}

// TypeRow is one dynamic type registration from the sequences table.
type TypeRow struct {
	Name string
	Base string
}

// ListOptions controls ListItems filtering.
type ListOptions struct {
	// IncludeClosed keeps records whose status is marked closed.
	IncludeClosed bool
	// Statuses filters by an explicit status-name set. nil means no
	// filter; a non-nil empty set yields an empty result.
	Statuses []string
	// StartDate and EndDate bound an inclusive YYYY-MM-DD range.
	StartDate string
	EndDate   string
	// UseStartDate selects the record's own date column for the range
	// filter (date-partitioned types); otherwise updated_at is used.
	UseStartDate bool
	// Limit caps the result. Values <= 0 mean no limit; values above
	// MaxListLimit are clamped.
	Limit int
}

// UpsertItem projects one fully-materialized record into the index: the
// primary row, the full-text shadow entry, the tag edges, and the relation
// edges, all inside a single transaction so a partial failure cannot leave
// half-updated edges.
func (db *DB) UpsertItem(it *models.Item) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(nonNil(it.Tags))
	relatedJSON, _ := json.Marshal(nonNil(it.Related))

	_, err = tx.Exec(`
		INSERT INTO items (type, id, title, description, content, priority, status_id,
		                   start_date, end_date, start_time, tags, related, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, id) DO UPDATE SET
			title       = excluded.title,
			description = excluded.description,
			content     = excluded.content,
			priority    = excluded.priority,
			status_id   = excluded.status_id,
			start_date  = excluded.start_date,
			end_date    = excluded.end_date,
			start_time  = excluded.start_time,
			tags        = excluded.tags,
			related     = excluded.related,
			created_at  = excluded.created_at,
			updated_at  = excluded.updated_at
	`, it.Type, it.ID, it.Title, it.Description, it.Content, it.Priority, it.StatusID,
		nullable(it.StartDate), nullable(it.EndDate), nullable(it.StartTime),
		string(tagsJSON), string(relatedJSON), it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert item: %w", err)
	}

	var rowid int64
	if err := tx.QueryRow(`SELECT rowid FROM items WHERE type = ? AND id = ?`, it.Type, it.ID).Scan(&rowid); err != nil {
		return fmt.Errorf("index: item rowid: %w", err)
	}

	if err := ftsUpsert(tx, rowid, it); err != nil {
		return err
	}

	if err := rewriteTagEdges(tx, it); err != nil {
		return err
	}
	if err := rewriteRelationEdges(tx, it); err != nil {
		return err
	}

	return tx.Commit()
}

// rewriteTagEdges drops every tag edge scoped to the record, registers each
// tag in the vocabulary, reinserts the edges, and refreshes usage counts.
func rewriteTagEdges(tx *sql.Tx, it *models.Item) error {
	if _, err := tx.Exec(`DELETE FROM item_tags WHERE item_type = ? AND item_id = ?`, it.Type, it.ID); err != nil {
		return fmt.Errorf("index: clear tag edges: %w", err)
	}
	for _, name := range it.Tags {
		tagID, err := getOrCreateTag(tx, name)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO item_tags (item_type, item_id, tag_id) VALUES (?, ?, ?)`,
			it.Type, it.ID, tagID); err != nil {
			return fmt.Errorf("index: insert tag edge: %w", err)
		}
	}
	return refreshTagUsage(tx)
}

// rewriteRelationEdges drops every edge where the record is source or
// target and reinserts one edge per unique related reference. The unique
// constraint swallows redundant inserts.
func rewriteRelationEdges(tx *sql.Tx, it *models.Item) error {
	_, err := tx.Exec(`
		DELETE FROM related_items
		WHERE (source_type = ? AND source_id = ?) OR (target_type = ? AND target_id = ?)
	`, it.Type, it.ID, it.Type, it.ID)
	if err != nil {
		return fmt.Errorf("index: clear relation edges: %w", err)
	}
	for _, ref := range it.Related {
		targetType, targetID, ok := models.SplitRef(ref)
		if !ok {
			continue
		}
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO related_items (source_type, source_id, target_type, target_id)
			VALUES (?, ?, ?, ?)
		`, it.Type, it.ID, targetType, targetID); err != nil {
			return fmt.Errorf("index: insert relation edge: %w", err)
		}
	}
	return nil
}

func getOrCreateTag(tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.Exec(`INSERT OR IGNORE INTO tags (name) VALUES (?)`, name); err != nil {
		return 0, fmt.Errorf("index: register tag: %w", err)
	}
	var id int64
	if err := tx.QueryRow(`SELECT id FROM tags WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("index: tag id: %w", err)
	}
	return id, nil
}

func refreshTagUsage(tx *sql.Tx) error {
	_, err := tx.Exec(`
		UPDATE tags SET usage_count = (
			SELECT COUNT(*) FROM item_tags WHERE item_tags.tag_id = tags.id
		)
	`)
	if err != nil {
		return fmt.Errorf("index: refresh tag usage: %w", err)
	}
	return nil
}

// DeleteItem removes the record's row, its full-text entry, its tag edges,
// and every relation edge touching it, in one transaction.
func (db *DB) DeleteItem(typ, id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var rowid int64
	if err := tx.QueryRow(`SELECT rowid FROM items WHERE type = ? AND id = ?`, typ, id).Scan(&rowid); err == nil {
		ftsDelete(tx, rowid)
	}

	_, _ = tx.Exec(`DELETE FROM item_tags WHERE item_type = ? AND item_id = ?`, typ, id)
	_, _ = tx.Exec(`
		DELETE FROM related_items
		WHERE (source_type = ? AND source_id = ?) OR (target_type = ? AND target_id = ?)
	`, typ, id, typ, id)
	_, _ = tx.Exec(`DELETE FROM items WHERE type = ? AND id = ?`, typ, id)
	if err := refreshTagUsage(tx); err != nil {
		return err
	}

	return tx.Commit()
}

const itemColumns = `
	i.type, i.id, i.title, i.description, i.content, i.priority, i.status_id,
	COALESCE(s.name, ''), COALESCE(i.start_date, ''), COALESCE(i.end_date, ''),
	COALESCE(i.start_time, ''), i.tags, i.related, i.created_at, i.updated_at
`

func scanItem(rows *sql.Rows) (models.Item, error) {
	var it models.Item
	var tagsJSON, relatedJSON string
	err := rows.Scan(&it.Type, &it.ID, &it.Title, &it.Description, &it.Content,
		&it.Priority, &it.StatusID, &it.Status, &it.StartDate, &it.EndDate,
		&it.StartTime, &tagsJSON, &relatedJSON, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return it, fmt.Errorf("index: scan item: %w", err)
	}
	_ = json.Unmarshal([]byte(tagsJSON), &it.Tags)
	_ = json.Unmarshal([]byte(relatedJSON), &it.Related)
	return it, nil
}

// ListItems queries the relational projection only; it never touches the
// files. Results are ordered newest-created-first.
func (db *DB) ListItems(typ string, opt ListOptions) ([]models.Item, error) {
	if opt.Statuses != nil && len(opt.Statuses) == 0 {
		return []models.Item{}, nil
	}

	var (
		conds = []string{"i.type = ?"}
		args  = []any{typ}
	)

	switch {
	case opt.Statuses != nil:
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(opt.Statuses)), ",")
		conds = append(conds, "s.name IN ("+placeholders+")")
		for _, name := range opt.Statuses {
			args = append(args, name)
		}
	case !opt.IncludeClosed:
		conds = append(conds, "COALESCE(s.is_closed, 0) = 0")
	}

	dateExpr := "date(i.updated_at)"
	if opt.UseStartDate {
		dateExpr = "COALESCE(i.start_date, date(i.updated_at))"
	}
	if opt.StartDate != "" {
		conds = append(conds, dateExpr+" >= ?")
		args = append(args, opt.StartDate)
	}
	if opt.EndDate != "" {
		conds = append(conds, dateExpr+" <= ?")
		args = append(args, opt.EndDate)
	}

	query := `SELECT ` + itemColumns + `
		FROM items i LEFT JOIN statuses s ON s.id = i.status_id
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY i.created_at DESC, i.id DESC`

	if opt.Limit > 0 {
		limit := opt.Limit
		if limit > MaxListLimit {
			limit = MaxListLimit
		}
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list items: %w", err)
	}
	defer rows.Close()

	out := []models.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SearchByTag returns every record carrying the given tag, newest first.
func (db *DB) SearchByTag(tag string) ([]models.Item, error) {
	rows, err := db.conn.Query(`
		SELECT `+itemColumns+`
		FROM items i
		LEFT JOIN statuses s ON s.id = i.status_id
		JOIN item_tags it ON it.item_type = i.type AND it.item_id = i.id
		JOIN tags t ON t.id = it.tag_id
		WHERE t.name = ?
		ORDER BY i.created_at DESC, i.id DESC
	`, tag)
	if err != nil {
		return nil, fmt.Errorf("index: search by tag: %w", err)
	}
	defer rows.Close()

	out := []models.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// AllIDs returns every indexed id for a type.
func (db *DB) AllIDs(typ string) (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT id FROM items WHERE type = ?`, typ)
	if err != nil {
		return nil, fmt.Errorf("index: all ids: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// RelationEdges returns every stored relation edge, for diagnostics and tests.
func (db *DB) RelationEdges() ([][4]string, error) {
	rows, err := db.conn.Query(`
		SELECT source_type, source_id, target_type, target_id
		FROM related_items
		ORDER BY source_type, source_id, target_type, target_id
	`)
	if err != nil {
		return nil, fmt.Errorf("index: relation edges: %w", err)
	}
	defer rows.Close()
	var out [][4]string
	for rows.Next() {
		var e [4]string
		if err := rows.Scan(&e[0], &e[1], &e[2], &e[3]); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Statuses returns the status vocabulary ordered by id.
func (db *DB) Statuses() ([]Status, error) {
	rows, err := db.conn.Query(`SELECT id, name, is_closed FROM statuses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("index: statuses: %w", err)
	}
	defer rows.Close()
	var out []Status
	for rows.Next() {
		var s Status
		if err := rows.Scan(&s.ID, &s.Name, &s.IsClosed); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// StatusID resolves a status name to its id. ok is false when the name is
// not part of the vocabulary.
func (db *DB) StatusID(name string) (int, bool, error) {
	var id int
	err := db.conn.QueryRow(`SELECT id FROM statuses WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("index: status id: %w", err)
	}
	return id, true, nil
}

// StatusName resolves a status id to its name, or empty string if unknown.
func (db *DB) StatusName(id int) (string, error) {
	var name string
	err := db.conn.QueryRow(`SELECT name FROM statuses WHERE id = ?`, id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: status name: %w", err)
	}
	return name, nil
}

// Tags returns the tag vocabulary ordered by name.
func (db *DB) Tags() ([]Tag, error) {
	rows, err := db.conn.Query(`SELECT id, name, usage_count FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("index: tags: %w", err)
	}
	defer rows.Close()
	var out []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.UsageCount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// NextSequence atomically increments and returns the counter for a
// sequential type. The counter lives in the database so it survives
// restarts and never reuses a value after deletes.
func (db *DB) NextSequence(typ string) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`UPDATE sequences SET current_value = current_value + 1 WHERE type = ?`, typ)
	if err != nil {
		return 0, fmt.Errorf("index: bump sequence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("index: sequence for %q: %w", typ, apperr.ErrUnknownType)
	}
	var val int64
	if err := tx.QueryRow(`SELECT current_value FROM sequences WHERE type = ?`, typ).Scan(&val); err != nil {
		return 0, fmt.Errorf("index: read sequence: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index: commit sequence: %w", err)
	}
	return val, nil
}

// TypeRows returns every type registration from the sequences table.
func (db *DB) TypeRows() ([]TypeRow, error) {
	rows, err := db.conn.Query(`SELECT type, base_type FROM sequences ORDER BY type`)
	if err != nil {
		return nil, fmt.Errorf("index: type rows: %w", err)
	}
	defer rows.Close()
	var out []TypeRow
	for rows.Next() {
		var tr TypeRow
		if err := rows.Scan(&tr.Name, &tr.Base); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// BaseTypeOf returns the base kind registered for a dynamic type.
func (db *DB) BaseTypeOf(typ string) (string, bool, error) {
	var base string
	err := db.conn.QueryRow(`SELECT base_type FROM sequences WHERE type = ?`, typ).Scan(&base)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("index: base type: %w", err)
	}
	return base, true, nil
}

// InsertTypeRow registers a new dynamic type with a zeroed counter.
func (db *DB) InsertTypeRow(typ, base string) error {
	res, err := db.conn.Exec(`INSERT OR IGNORE INTO sequences (type, current_value, base_type) VALUES (?, 0, ?)`, typ, base)
	if err != nil {
		return fmt.Errorf("index: insert type: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: type %q: %w", typ, apperr.ErrDuplicate)
	}
	return nil
}

// DeleteTypeRow removes a dynamic type registration.
func (db *DB) DeleteTypeRow(typ string) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM sequences WHERE type = ?`, typ)
	if err != nil {
		return false, fmt.Errorf("index: delete type: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
