package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/models"
)

const (
	// ArchiveDir holds archived documents inside an owner's tree.
	ArchiveDir = ".archive"
	// SharingDir holds the sharing tables, one per kind.
	SharingDir = "sharing"

	ext = ".md"
)

// KindDir returns the top-level vault directory for kind.
func KindDir(kind models.ItemKind) string {
	return string(kind) + "s"
}

// DocPath identifies one document by where it lives in the vault:
// <kind>s/<owner>/[.archive/]<category…>/<id>.md
type DocPath struct {
	Kind     models.ItemKind
	Owner    string
	Category string
	ID       string
	Archived bool
}

// String returns the vault-relative path. It does not validate.
func (d DocPath) String() string {
	parts := []string{KindDir(d.Kind), d.Owner}
	if d.Archived {
		parts = append(parts, ArchiveDir)
	}
	cat := d.Category
	if cat == "" {
		cat = models.DefaultCategory
	}
	parts = append(parts, cat, d.ID+ext)
	return path.Join(parts...)
}

// Archive returns the archived twin of d.
func (d DocPath) Archive() DocPath {
	d.Archived = true
	return d
}

// Validate rejects identities that would not map back onto themselves.
func (d DocPath) Validate() error {
	if !d.Kind.Valid() {
		return fmt.Errorf("storage: unknown kind %q: %w", d.Kind, apperr.ErrInvalidPath)
	}
	if err := validSegment(d.Owner); err != nil {
		return fmt.Errorf("storage: owner: %w", err)
	}
	if err := validSegment(d.ID); err != nil {
		return fmt.Errorf("storage: id: %w", err)
	}
	if d.Category == "" {
		return nil
	}
	for _, seg := range strings.Split(d.Category, "/") {
		if err := validSegment(seg); err != nil {
			return fmt.Errorf("storage: category %q: %w", d.Category, err)
		}
	}
	return nil
}

func validSegment(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("empty segment: %w", apperr.ErrInvalidPath)
	case strings.HasPrefix(s, "."):
		return fmt.Errorf("segment %q starts with a dot: %w", s, apperr.ErrInvalidPath)
	case strings.ContainsAny(s, `/\`):
		return fmt.Errorf("segment %q contains a separator: %w", s, apperr.ErrInvalidPath)
	}
	return nil
}

// ParseDocPath is the inverse of DocPath.String.
func ParseDocPath(p string) (DocPath, error) {
	p = path.Clean(strings.ReplaceAll(p, `\`, "/"))
	if !strings.HasSuffix(p, ext) {
		return DocPath{}, fmt.Errorf("storage: not a document: %s: %w", p, apperr.ErrInvalidPath)
	}
	segs := strings.Split(strings.TrimSuffix(p, ext), "/")
	if len(segs) < 4 {
		return DocPath{}, fmt.Errorf("storage: too short: %s: %w", p, apperr.ErrInvalidPath)
	}
	var d DocPath
	switch segs[0] {
	case KindDir(models.KindNote):
		d.Kind = models.KindNote
	case KindDir(models.KindChecklist):
		d.Kind = models.KindChecklist
	default:
		return DocPath{}, fmt.Errorf("storage: unknown kind dir: %s: %w", p, apperr.ErrInvalidPath)
	}
	d.Owner = segs[1]
	rest := segs[2:]
	if rest[0] == ArchiveDir {
		d.Archived = true
		rest = rest[1:]
	}
	if len(rest) < 2 {
		return DocPath{}, fmt.Errorf("storage: missing category: %s: %w", p, apperr.ErrInvalidPath)
	}
	d.Category = strings.Join(rest[:len(rest)-1], "/")
	d.ID = rest[len(rest)-1]
	if err := d.Validate(); err != nil {
		return DocPath{}, err
	}
	return d, nil
}
