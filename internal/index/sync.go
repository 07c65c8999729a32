package index

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/checklist"
	"github.com/starford/jotter/internal/checksum"
	"github.com/starford/jotter/internal/links"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/parser"
	"github.com/starford/jotter/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed documents are decoded and upserted
//   - documents removed from disk are deleted from the index
//
// Files outside the document layout are skipped.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		switch err := IndexFile(db, m, data); {
		case errors.Is(err, apperr.ErrInvalidPath):
			logger.Debug("sync: skipped", slog.String("path", m.Path))
		case err != nil:
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		default:
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteItem(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile decodes data according to the document kind encoded in meta.Path
// and upserts it. Paths outside the vault layout fail with apperr.ErrInvalidPath.
func IndexFile(db ItemIndex, meta models.FileMeta, data []byte) error {
	doc, err := storage.ParseDocPath(meta.Path)
	if err != nil {
		return err
	}
	row := ItemRow{
		Path:      doc.String(),
		Kind:      doc.Kind,
		Owner:     doc.Owner,
		Category:  doc.Category,
		ItemID:    doc.ID,
		Checksum:  checksum.Sum(data),
		Archived:  doc.Archived,
		CreatedAt: meta.CreatedAt,
		UpdatedAt: meta.UpdatedAt,
	}

	var (
		body    string
		targets []string
	)
	switch doc.Kind {
	case models.KindChecklist:
		c := checklist.Decode(checklist.Source{ID: doc.ID, Category: doc.Category, Owner: doc.Owner}, data)
		row.Title = c.Title
		var b strings.Builder
		checklist.Walk(c.Items, func(_ checklist.Path, it *models.ChecklistItem) bool {
			b.WriteString(it.Text)
			b.WriteByte('\n')
			return true
		})
		body = b.String()
		targets = parser.ExtractLinks(body)
	default:
		res, err := parser.Parse(data)
		if err != nil {
			return err
		}
		row.UUID = res.UUID
		row.Title = res.Title
		if row.Title == "" {
			row.Title = doc.ID
		}
		row.Tags = res.Tags
		body = res.Body
		targets = res.Links
	}

	return db.UpsertItem(row, body, resolveTargets(targets))
}

func resolveTargets(targets []string) []links.Ref {
	out := make([]links.Ref, 0, len(targets))
	for _, t := range targets {
		if ref, ok := links.ParseTarget(t); ok {
			out = append(out, ref)
		}
	}
	return out
}
