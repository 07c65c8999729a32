//go:build sqlite_fts5

package index

import (
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM items_fts`).Scan(&count); err != nil {
		t.Fatalf("items_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := noteRow("alice", "Work", "fts")
	row.Title = "FTS Note"
	row.Tags = []string{"search"}
	if err := db.UpsertItem(row, "Jotter provides powerful full-text search capabilities.", nil); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != row.Path || results[0].Owner != "alice" {
		t.Errorf("result = %+v", results[0])
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	row := noteRow("alice", "Work", "gone")
	_ = db.UpsertItem(row, "vanishing content", nil)
	_ = db.DeleteItem(row.Path)

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Path == row.Path {
			t.Error("deleted item still in FTS index")
		}
	}
}

func TestFTS5_ArchivedExcluded(t *testing.T) {
	db := testDB(t)
	row := noteRow("alice", "Work", "old")
	row.Path = "notes/alice/.archive/Work/old.md"
	row.Archived = true
	_ = db.UpsertItem(row, "fossil text", nil)

	if results, _ := db.Search("fossil", 10); len(results) != 0 {
		t.Errorf("archived item returned: %+v", results)
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	row := noteRow("alice", "Work", "evo")
	row.Title = "Old"
	_ = db.UpsertItem(row, "original text", nil)
	row.Title = "New"
	_ = db.UpsertItem(row, "replacement text", nil)

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
