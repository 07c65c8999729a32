// Package tags builds the hierarchical tag index over notes.
//
// Tag names are lowercase "/"-separated paths such as "work/urgent". Every
// ancestor of a used tag gets an entry of its own so the tree stays connected.
package tags

import (
	"slices"
	"strings"

	"github.com/starford/jotter/internal/models"
)

// Separator splits tag path segments.
const Separator = "/"

// Normalize lowercases a raw tag and strips a leading '#'.
func Normalize(raw string) string {
	t := strings.TrimSpace(raw)
	t = strings.TrimPrefix(t, "#")
	return strings.ToLower(strings.TrimSpace(t))
}

// MatchesFilter reports whether noteTag equals filterTag or lies beneath it.
// "workshop" does not match "work"; "work/urgent" does.
func MatchesFilter(noteTag, filterTag string) bool {
	n, f := Normalize(noteTag), Normalize(filterTag)
	if n == "" || f == "" {
		return false
	}
	return n == f || strings.HasPrefix(n, f+Separator)
}

// NoteMatches reports whether any of the note's tags matches filterTag.
func NoteMatches(note models.Note, filterTag string) bool {
	for _, t := range note.Tags {
		if MatchesFilter(t, filterTag) {
			return true
		}
	}
	return false
}

// FilterNotes returns the notes tagged with filterTag or one of its descendants.
func FilterNotes(notes []models.Note, filterTag string) []models.Note {
	var out []models.Note
	for _, n := range notes {
		if NoteMatches(n, filterTag) {
			out = append(out, n)
		}
	}
	return out
}

// Index maps a normalized tag name to its info.
type Index map[string]*models.TagInfo

type entry struct {
	info  *models.TagInfo
	notes map[string]struct{}
}

// Build creates the tag index for notes. Ancestors are registered first; the
// total counts are computed in a second pass once every entry exists.
func Build(notes []models.Note) Index {
	entries := make(map[string]*entry)
	ensure := func(name string) *entry {
		if e, ok := entries[name]; ok {
			return e
		}
		info := &models.TagInfo{Name: name, DisplayName: name, NoteUUIDs: []string{}}
		if i := strings.LastIndex(name, Separator); i >= 0 {
			info.DisplayName = name[i+1:]
			info.Parent = name[:i]
		}
		e := &entry{info: info, notes: make(map[string]struct{})}
		entries[name] = e
		return e
	}

	for _, n := range notes {
		for _, raw := range n.Tags {
			name := Normalize(raw)
			if name == "" {
				continue
			}
			segs := strings.Split(name, Separator)
			for i := 1; i < len(segs); i++ {
				ensure(strings.Join(segs[:i], Separator))
			}
			ensure(name).notes[noteID(n)] = struct{}{}
		}
	}

	// Aggregation: own notes plus notes of every strict descendant.
	idx := make(Index, len(entries))
	for name, e := range entries {
		union := make(map[string]struct{}, len(e.notes))
		for id := range e.notes {
			union[id] = struct{}{}
		}
		prefix := name + Separator
		for other, oe := range entries {
			if !strings.HasPrefix(other, prefix) {
				continue
			}
			for id := range oe.notes {
				union[id] = struct{}{}
			}
		}
		for id := range e.notes {
			e.info.NoteUUIDs = append(e.info.NoteUUIDs, id)
		}
		slices.Sort(e.info.NoteUUIDs)
		e.info.TotalCount = len(union)
		idx[name] = e.info
	}
	return idx
}

func noteID(n models.Note) string {
	if n.UUID != "" {
		return n.UUID
	}
	return n.Category + "/" + n.ID
}

// Names returns all tag names in sorted order.
func (idx Index) Names() []string {
	out := make([]string, 0, len(idx))
	for name := range idx {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Node is one tag in the tree view of the index.
type Node struct {
	*models.TagInfo
	Children []*Node `json:"children,omitempty"`
}

// Tree arranges the index into root nodes with sorted children.
func (idx Index) Tree() []*Node {
	nodes := make(map[string]*Node, len(idx))
	for name, info := range idx {
		nodes[name] = &Node{TagInfo: info}
	}
	var roots []*Node
	for _, name := range idx.Names() {
		n := nodes[name]
		if parent, ok := nodes[n.Parent]; ok && n.Parent != "" {
			parent.Children = append(parent.Children, n)
			continue
		}
		roots = append(roots, n)
	}
	return roots
}
