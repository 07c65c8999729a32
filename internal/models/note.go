package models

import "time"

// DefaultCategory is used when an item has no category.
const DefaultCategory = "Uncategorized"

// Note is a free-form document. Content is opaque to the engine.
type Note struct {
	ID        string    `json:"id"`
	UUID      string    `json:"uuid"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Category  string    `json:"category"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TagInfo describes one node of the hierarchical tag index.
type TagInfo struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Parent      string   `json:"parent,omitempty"`
	NoteUUIDs   []string `json:"noteUuids"`
	TotalCount  int      `json:"totalCount"`
}

// Relations lists related items by key, split by kind.
type Relations struct {
	Notes      []string `json:"notes"`
	Checklists []string `json:"checklists"`
}

// LinkEntry holds the outgoing and incoming mentions of one item.
type LinkEntry struct {
	IsLinkedTo     Relations `json:"isLinkedTo"`
	IsReferencedIn Relations `json:"isReferencedIn"`
}

// LinkIndex is the bidirectional mention graph, keyed by "category/id".
type LinkIndex struct {
	Notes      map[string]*LinkEntry `json:"notes"`
	Checklists map[string]*LinkEntry `json:"checklists"`
}
