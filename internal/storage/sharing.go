package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/starford/jotter/internal/models"
)

// SharingPath returns the vault path of the sharing table for kind.
func SharingPath(kind models.ItemKind) string {
	return path.Join(SharingDir, KindDir(kind)+".json")
}

// ReadSharing loads the sharing table for kind. A missing file is an empty table.
func ReadSharing(p Provider, kind models.ItemKind) (models.SharingTable, error) {
	data, err := p.Read(SharingPath(kind))
	if errors.Is(err, fs.ErrNotExist) {
		return models.SharingTable{}, nil
	}
	if err != nil {
		return nil, err
	}
	table := models.SharingTable{}
	if len(data) == 0 {
		return table, nil
	}
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("storage: decode sharing table %s: %w", kind, err)
	}
	return table, nil
}

// WriteSharing replaces the sharing table for kind.
func WriteSharing(p Provider, kind models.ItemKind, table models.SharingTable) error {
	if table == nil {
		table = models.SharingTable{}
	}
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode sharing table %s: %w", kind, err)
	}
	return p.Write(SharingPath(kind), append(data, '\n'))
}
