package models

import "time"

// ItemKind distinguishes the two document kinds stored in a vault.
type ItemKind string

const (
	KindNote      ItemKind = "note"
	KindChecklist ItemKind = "checklist"
)

// Valid reports whether k is a known kind.
func (k ItemKind) Valid() bool { return k == KindNote || k == KindChecklist }

// FileMeta describes one vault file.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
