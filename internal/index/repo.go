package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/links"
	"github.com/starford/jotter/internal/models"
)

// ItemRow represents a row in the items table.
type ItemRow struct {
	Path      string
	Kind      models.ItemKind
	Owner     string
	Category  string
	ItemID    string
	UUID      string
	Title     string
	Tags      []string
	Checksum  string
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the link-index key of the row.
func (r ItemRow) Key() string { return links.Key(r.Category, r.ItemID) }

// Ref returns the link-index reference of the row.
func (r ItemRow) Ref() links.Ref { return links.Ref{Kind: r.Kind, Key: r.Key()} }

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string          `json:"path"`
	Kind    models.ItemKind `json:"kind"`
	Owner   string          `json:"owner"`
	Title   string          `json:"title"`
	Snippet string          `json:"snippet"`
}

// Filter narrows ListItems. Empty fields match everything; Archived selects
// archived rows instead of live ones.
type Filter struct {
	Kind     models.ItemKind
	Owner    string
	Category string
	Archived bool
	Limit    int
	Offset   int
}

const itemColumns = `path, kind, owner, category, item_id, uuid, title, tags, checksum, archived, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (ItemRow, error) {
	var (
		r        ItemRow
		kind     string
		tagsJSON string
	)
	if err := s.Scan(&r.Path, &kind, &r.Owner, &r.Category, &r.ItemID, &r.UUID, &r.Title,
		&tagsJSON, &r.Checksum, &r.Archived, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return ItemRow{}, err
	}
	r.Kind = models.ItemKind(kind)
	if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
		r.Tags = nil
	}
	return r, nil
}

// UpsertItem inserts or replaces an item, its FTS entry, and its outgoing
// references within a transaction.
func (db *DB) UpsertItem(row ItemRow, body string, refs []links.Ref) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if row.Tags == nil {
		row.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(row.Tags)
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = row.UpdatedAt
	}

	_, err = tx.Exec(`
		INSERT INTO items (path, kind, owner, category, item_id, uuid, title, tags, checksum, archived, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			kind       = excluded.kind,
			owner      = excluded.owner,
			category   = excluded.category,
			item_id    = excluded.item_id,
			uuid       = excluded.uuid,
			title      = excluded.title,
			tags       = excluded.tags,
			checksum   = excluded.checksum,
			archived   = excluded.archived,
			body       = excluded.body,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, row.Path, string(row.Kind), row.Owner, row.Category, row.ItemID, row.UUID, row.Title,
		string(tagsJSON), row.Checksum, row.Archived, body, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert item: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, row.Path, row.Title, body, row.Tags); err != nil {
		return err
	}

	// Replace references: delete old then bulk insert.
	if _, err := tx.Exec(`DELETE FROM links WHERE source_path = ?`, row.Path); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(refs) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO links (source_path, owner, source_kind, source_key, target_kind, target_key)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		src := row.Ref()
		for _, dst := range refs {
			if dst == src {
				continue
			}
			if _, err := stmt.Exec(row.Path, row.Owner, string(src.Kind), src.Key, string(dst.Kind), dst.Key); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteItem removes an item, its FTS entry, and its outgoing references.
func (db *DB) DeleteItem(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM links WHERE source_path = ?`, path); err != nil {
		return fmt.Errorf("index: delete links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM items WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete item: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for an item, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM items WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetItem returns the row stored for path.
func (db *DB) GetItem(path string) (*ItemRow, error) {
	r, err := scanItem(db.conn.QueryRow(`SELECT `+itemColumns+` FROM items WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get item: %w", err)
	}
	return &r, nil
}

// FindByUUID returns the live item carrying uuid.
func (db *DB) FindByUUID(uuid string) (*ItemRow, error) {
	if uuid == "" {
		return nil, fmt.Errorf("index: empty uuid: %w", apperr.ErrNotFound)
	}
	r, err := scanItem(db.conn.QueryRow(
		`SELECT `+itemColumns+` FROM items WHERE uuid = ? ORDER BY archived, path LIMIT 1`, uuid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: uuid %s: %w", uuid, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: find by uuid: %w", err)
	}
	return &r, nil
}

// ListItems returns rows matching f ordered by most recently updated.
func (db *DB) ListItems(f Filter) ([]ItemRow, error) {
	var (
		where = []string{"archived = ?"}
		args  = []any{f.Archived}
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, f.Owner)
	}
	if f.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, f.Category)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, f.Offset)

	rows, err := db.conn.Query(`SELECT `+itemColumns+` FROM items WHERE `+strings.Join(where, " AND ")+
		` ORDER BY updated_at DESC, path LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list items: %w", err)
	}
	defer rows.Close()

	var out []ItemRow
	for rows.Next() {
		r, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllPaths returns every indexed path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM items`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums returns path -> checksum for every indexed item.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM items`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// LinkIndex materialises the mention graph of owner's live documents. Every
// live item gets an entry, linked or not. Mentions made by archived documents
// are left out; mentions of them stay for FilterArchivedByKind to drop.
func (db *DB) LinkIndex(owner string) (*models.LinkIndex, error) {
	ix := links.New()

	items, err := db.conn.Query(`SELECT kind, category, item_id FROM items WHERE owner = ? AND archived = 0`, owner)
	if err != nil {
		return nil, fmt.Errorf("index: link items: %w", err)
	}
	defer items.Close()
	for items.Next() {
		var kind, cat, id string
		if err := items.Scan(&kind, &cat, &id); err != nil {
			return nil, err
		}
		links.SetOutgoing(ix, links.Ref{Kind: models.ItemKind(kind), Key: links.Key(cat, id)}, nil)
	}
	if err := items.Err(); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(`
		SELECT l.source_kind, l.source_key, l.target_kind, l.target_key
		FROM links l JOIN items i ON i.path = l.source_path
		WHERE l.owner = ? AND i.archived = 0`, owner)
	if err != nil {
		return nil, fmt.Errorf("index: links: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sk, skey, tk, tkey string
		if err := rows.Scan(&sk, &skey, &tk, &tkey); err != nil {
			return nil, err
		}
		links.Link(ix,
			links.Ref{Kind: models.ItemKind(sk), Key: skey},
			links.Ref{Kind: models.ItemKind(tk), Key: tkey})
	}
	return ix, rows.Err()
}

// ArchivedKeys returns the link keys of owner's archived items, split by
// kind. A key that also has a live item of the same kind is left out.
func (db *DB) ArchivedKeys(owner string) (notes, checklists map[string]struct{}, err error) {
	rows, err := db.conn.Query(`
		SELECT a.kind, a.category, a.item_id FROM items a
		WHERE a.owner = ? AND a.archived = 1
		AND NOT EXISTS (
			SELECT 1 FROM items l
			WHERE l.owner = a.owner AND l.kind = a.kind
			AND l.category = a.category AND l.item_id = a.item_id
			AND l.archived = 0
		)`, owner)
	if err != nil {
		return nil, nil, fmt.Errorf("index: archived keys: %w", err)
	}
	defer rows.Close()
	notes = make(map[string]struct{})
	checklists = make(map[string]struct{})
	for rows.Next() {
		var kind, cat, id string
		if err := rows.Scan(&kind, &cat, &id); err != nil {
			return nil, nil, err
		}
		if models.ItemKind(kind) == models.KindChecklist {
			checklists[links.Key(cat, id)] = struct{}{}
		} else {
			notes[links.Key(cat, id)] = struct{}{}
		}
	}
	return notes, checklists, rows.Err()
}

// NoteTags returns owner's live notes with their normalized tags, ready for
// tags.Build. An empty owner returns every owner's notes.
func (db *DB) NoteTags(owner string) ([]models.Note, error) {
	rows, err := db.ListItems(Filter{Kind: models.KindNote, Owner: owner})
	if err != nil {
		return nil, err
	}
	out := make([]models.Note, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Note{
			ID:        r.ItemID,
			UUID:      r.UUID,
			Title:     r.Title,
			Tags:      r.Tags,
			Category:  r.Category,
			Owner:     r.Owner,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

// Backlinks returns the paths of owner's items that mention target.
func (db *DB) Backlinks(owner string, target links.Ref) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT source_path FROM links
		WHERE owner = ? AND target_kind = ? AND target_key = ?
		ORDER BY source_path`, owner, string(target.Kind), target.Key)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
