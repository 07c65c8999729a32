// Package links maintains the bidirectional mention graph between notes and
// checklists.
//
// Every edge is stored twice: in the source's IsLinkedTo and in the target's
// IsReferencedIn. All mutations in this package keep the two sides in step.
package links

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/jotter/internal/models"
)

// Kind says which sub-graph an item belongs to.
type Kind = models.ItemKind

const (
	KindNote      = models.KindNote
	KindChecklist = models.KindChecklist
)

// ErrAsymmetric is returned by Verify when an edge has only one side.
var ErrAsymmetric = errors.New("links: asymmetric edge")

// Ref identifies one item in the graph.
type Ref struct {
	Kind Kind
	Key  string
}

func (r Ref) String() string { return string(r.Kind) + ":" + r.Key }

// Note returns a note reference for category/id.
func Note(category, id string) Ref { return Ref{Kind: KindNote, Key: Key(category, id)} }

// Checklist returns a checklist reference for category/id.
func Checklist(category, id string) Ref { return Ref{Kind: KindChecklist, Key: Key(category, id)} }

// Key builds the "category/id" index key.
func Key(category, id string) string {
	if category == "" {
		category = models.DefaultCategory
	}
	return category + "/" + id
}

// ParseKey splits a key at its last "/" into category and id.
func ParseKey(key string) (category, id string) {
	i := strings.LastIndex(key, "/")
	if i < 0 {
		return models.DefaultCategory, key
	}
	return key[:i], key[i+1:]
}

// ParseTarget interprets a wikilink target: "note:Cat/id", "checklist:Cat/id"
// or a bare "Cat/id" (a note). Targets without a category get the default one.
func ParseTarget(target string) (Ref, bool) {
	kind := KindNote
	rest := strings.TrimSpace(target)
	if k, v, ok := strings.Cut(rest, ":"); ok {
		switch Kind(strings.ToLower(strings.TrimSpace(k))) {
		case KindNote:
			rest = v
		case KindChecklist:
			kind, rest = KindChecklist, v
		}
	}
	rest = strings.Trim(strings.TrimSpace(rest), "/")
	if rest == "" {
		return Ref{}, false
	}
	cat, id := ParseKey(rest)
	if id == "" {
		return Ref{}, false
	}
	return Ref{Kind: kind, Key: Key(cat, id)}, true
}

// New returns an empty index.
func New() *models.LinkIndex {
	return &models.LinkIndex{
		Notes:      make(map[string]*models.LinkEntry),
		Checklists: make(map[string]*models.LinkEntry),
	}
}

func graph(ix *models.LinkIndex, k Kind) map[string]*models.LinkEntry {
	if k == KindChecklist {
		if ix.Checklists == nil {
			ix.Checklists = make(map[string]*models.LinkEntry)
		}
		return ix.Checklists
	}
	if ix.Notes == nil {
		ix.Notes = make(map[string]*models.LinkEntry)
	}
	return ix.Notes
}

func entry(ix *models.LinkIndex, r Ref) *models.LinkEntry {
	g := graph(ix, r.Kind)
	e, ok := g[r.Key]
	if !ok {
		e = &models.LinkEntry{
			IsLinkedTo:     models.Relations{Notes: []string{}, Checklists: []string{}},
			IsReferencedIn: models.Relations{Notes: []string{}, Checklists: []string{}},
		}
		g[r.Key] = e
	}
	return e
}

func list(rel *models.Relations, k Kind) *[]string {
	if k == KindChecklist {
		return &rel.Checklists
	}
	return &rel.Notes
}

func addKey(l *[]string, key string) {
	if !slices.Contains(*l, key) {
		*l = append(*l, key)
		slices.Sort(*l)
	}
}

func dropKey(l *[]string, key string) {
	*l = slices.DeleteFunc(*l, func(k string) bool { return k == key })
}

// Entry returns the entry for r, or nil when r is not in the index.
func Entry(ix *models.LinkIndex, r Ref) *models.LinkEntry {
	if ix == nil {
		return nil
	}
	if r.Kind == KindChecklist {
		return ix.Checklists[r.Key]
	}
	return ix.Notes[r.Key]
}

// Link records that src mentions dst.
func Link(ix *models.LinkIndex, src, dst Ref) {
	if src == dst {
		return
	}
	addKey(list(&entry(ix, src).IsLinkedTo, dst.Kind), dst.Key)
	addKey(list(&entry(ix, dst).IsReferencedIn, src.Kind), src.Key)
}

// Unlink removes the mention of dst from src.
func Unlink(ix *models.LinkIndex, src, dst Ref) {
	if e := Entry(ix, src); e != nil {
		dropKey(list(&e.IsLinkedTo, dst.Kind), dst.Key)
	}
	if e := Entry(ix, dst); e != nil {
		dropKey(list(&e.IsReferencedIn, src.Kind), src.Key)
	}
}

// LinkedTo returns the outgoing mentions of r.
func LinkedTo(ix *models.LinkIndex, r Ref) []Ref {
	e := Entry(ix, r)
	if e == nil {
		return nil
	}
	return refs(e.IsLinkedTo)
}

// ReferencedIn returns the incoming mentions of r.
func ReferencedIn(ix *models.LinkIndex, r Ref) []Ref {
	e := Entry(ix, r)
	if e == nil {
		return nil
	}
	return refs(e.IsReferencedIn)
}

func refs(rel models.Relations) []Ref {
	out := make([]Ref, 0, len(rel.Notes)+len(rel.Checklists))
	for _, k := range rel.Notes {
		out = append(out, Ref{Kind: KindNote, Key: k})
	}
	for _, k := range rel.Checklists {
		out = append(out, Ref{Kind: KindChecklist, Key: k})
	}
	return out
}

// SetOutgoing replaces every mention made by src with targets.
func SetOutgoing(ix *models.LinkIndex, src Ref, targets []Ref) {
	for _, old := range LinkedTo(ix, src) {
		if !slices.Contains(targets, old) {
			Unlink(ix, src, old)
		}
	}
	if len(targets) == 0 {
		entry(ix, src)
		return
	}
	for _, t := range targets {
		Link(ix, src, t)
	}
}

// Remove drops r and every mention of it.
func Remove(ix *models.LinkIndex, r Ref) {
	for _, t := range LinkedTo(ix, r) {
		Unlink(ix, r, t)
	}
	for _, s := range ReferencedIn(ix, r) {
		Unlink(ix, s, r)
	}
	delete(graph(ix, r.Kind), r.Key)
}

// Rename moves r to a new key, rewriting the edges on both sides.
func Rename(ix *models.LinkIndex, from, to Ref) {
	if from == to || Entry(ix, from) == nil {
		return
	}
	out := LinkedTo(ix, from)
	in := ReferencedIn(ix, from)
	Remove(ix, from)
	entry(ix, to)
	for _, t := range out {
		if t == from {
			t = to
		}
		Link(ix, to, t)
	}
	for _, s := range in {
		if s == from {
			s = to
		}
		Link(ix, s, to)
	}
}

// FilterArchived returns a copy of ix without archived items. Archived keys
// are removed both as top-level entries and from every relation list, so no
// reference into archived content survives. A nil set filters nothing.
func FilterArchived(ix *models.LinkIndex, archived map[string]struct{}) *models.LinkIndex {
	return FilterArchivedByKind(ix, archived, archived)
}

// FilterArchivedByKind is FilterArchived with a separate archived set per
// kind, so an archived checklist never hides a live note with the same key.
func FilterArchivedByKind(ix *models.LinkIndex, notes, checklists map[string]struct{}) *models.LinkIndex {
	out := New()
	if ix == nil {
		return out
	}
	keepNote := func(k string) bool {
		_, gone := notes[k]
		return !gone
	}
	keepChecklist := func(k string) bool {
		_, gone := checklists[k]
		return !gone
	}
	copyGraph := func(dst, src map[string]*models.LinkEntry, keep func(string) bool) {
		for key, e := range src {
			if !keep(key) || e == nil {
				continue
			}
			dst[key] = &models.LinkEntry{
				IsLinkedTo: models.Relations{
					Notes:      filterKeys(e.IsLinkedTo.Notes, keepNote),
					Checklists: filterKeys(e.IsLinkedTo.Checklists, keepChecklist),
				},
				IsReferencedIn: models.Relations{
					Notes:      filterKeys(e.IsReferencedIn.Notes, keepNote),
					Checklists: filterKeys(e.IsReferencedIn.Checklists, keepChecklist),
				},
			}
		}
	}
	copyGraph(out.Notes, ix.Notes, keepNote)
	copyGraph(out.Checklists, ix.Checklists, keepChecklist)
	return out
}

func filterKeys(keys []string, keep func(string) bool) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if keep(k) {
			out = append(out, k)
		}
	}
	return out
}

// Verify checks that every edge is recorded on both sides.
func Verify(ix *models.LinkIndex) error {
	var errs []error
	check := func(srcKind Kind, g map[string]*models.LinkEntry) {
		for key, e := range g {
			src := Ref{Kind: srcKind, Key: key}
			for _, dst := range refs(e.IsLinkedTo) {
				back := Entry(ix, dst)
				if back == nil || !slices.Contains(*list(&back.IsReferencedIn, srcKind), key) {
					errs = append(errs, fmt.Errorf("%w: %s -> %s missing reference", ErrAsymmetric, src, dst))
				}
			}
			for _, from := range refs(e.IsReferencedIn) {
				fwd := Entry(ix, from)
				if fwd == nil || !slices.Contains(*list(&fwd.IsLinkedTo, srcKind), key) {
					errs = append(errs, fmt.Errorf("%w: %s <- %s missing link", ErrAsymmetric, src, from))
				}
			}
		}
	}
	check(KindNote, ix.Notes)
	check(KindChecklist, ix.Checklists)
	return errors.Join(errs...)
}
