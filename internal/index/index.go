package index

import (
	"github.com/starford/jotter/internal/links"
	"github.com/starford/jotter/internal/models"
)

// ItemIndex defines the interface for document indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type ItemIndex interface {
	UpsertItem(row ItemRow, body string, refs []links.Ref) error
	DeleteItem(path string) error
	GetChecksum(path string) (string, error)
	GetItem(path string) (*ItemRow, error)
	FindByUUID(uuid string) (*ItemRow, error)
	ListItems(f Filter) ([]ItemRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	LinkIndex(owner string) (*models.LinkIndex, error)
	ArchivedKeys(owner string) (notes, checklists map[string]struct{}, err error)
	NoteTags(owner string) ([]models.Note, error)
	Backlinks(owner string, target links.Ref) ([]string, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies ItemIndex at compile time.
var _ ItemIndex = (*DB)(nil)
