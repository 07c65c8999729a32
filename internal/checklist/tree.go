package checklist

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/jotter/internal/models"
)

var (
	ErrInvalidPath  = errors.New("checklist: invalid item path")
	ErrItemNotFound = errors.New("checklist: item not found")
)

// Path addresses an item by sibling offsets from the root, e.g. "1.2.0" is
// the first child of the third child of the second top-level item.
type Path []int

// ParsePath parses the dotted form used at the API boundary.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	parts := strings.Split(s, ".")
	p := make(Path, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, s)
		}
		p[i] = n
	}
	return p, nil
}

// String returns the dotted form of p.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Child returns the path of the i-th child of p.
func (p Path) Child(i int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, i)
}

// Find returns a pointer to the item at p. The pointer is valid until the
// tree is next modified.
func Find(items []models.ChecklistItem, p Path) (*models.ChecklistItem, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	level := items
	var cur *models.ChecklistItem
	for _, i := range p {
		if i < 0 || i >= len(level) {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, p)
		}
		cur = &level[i]
		level = cur.Children
	}
	return cur, nil
}

// FindByID searches the whole tree for an item id.
func FindByID(items []models.ChecklistItem, id string) (Path, bool) {
	var found Path
	Walk(items, func(p Path, item *models.ChecklistItem) bool {
		if item.ID == id {
			found = p
			return false
		}
		return true
	})
	return found, found != nil
}

// Walk visits items depth-first in sibling order. Returning false stops the walk.
func Walk(items []models.ChecklistItem, fn func(Path, *models.ChecklistItem) bool) {
	walk(items, nil, fn)
}

func walk(items []models.ChecklistItem, prefix Path, fn func(Path, *models.ChecklistItem) bool) bool {
	for i := range items {
		p := prefix.Child(i)
		if !fn(p, &items[i]) {
			return false
		}
		if !walk(items[i].Children, p, fn) {
			return false
		}
	}
	return true
}

// Insert appends item under parent (nil parent means top level) and returns
// the updated root slice and the new item's path.
func Insert(items []models.ChecklistItem, parent Path, item models.ChecklistItem) ([]models.ChecklistItem, Path, error) {
	if len(parent) == 0 {
		item.Order = len(items)
		items = append(items, item)
		return items, Path{len(items) - 1}, nil
	}
	p, err := Find(items, parent)
	if err != nil {
		return items, nil, err
	}
	item.Order = len(p.Children)
	p.Children = append(p.Children, item)
	return items, parent.Child(len(p.Children) - 1), nil
}

// Remove deletes the item at p together with its children.
func Remove(items []models.ChecklistItem, p Path) ([]models.ChecklistItem, models.ChecklistItem, error) {
	if len(p) == 0 {
		return items, models.ChecklistItem{}, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	last := p[len(p)-1]
	if len(p) == 1 {
		if last < 0 || last >= len(items) {
			return items, models.ChecklistItem{}, fmt.Errorf("%w: %s", ErrItemNotFound, p)
		}
		removed := items[last]
		items = append(items[:last:last], items[last+1:]...)
		return items, removed, nil
	}
	parent, err := Find(items, p[:len(p)-1])
	if err != nil {
		return items, models.ChecklistItem{}, err
	}
	if last < 0 || last >= len(parent.Children) {
		return items, models.ChecklistItem{}, fmt.Errorf("%w: %s", ErrItemNotFound, p)
	}
	removed := parent.Children[last]
	parent.Children = append(parent.Children[:last:last], parent.Children[last+1:]...)
	if len(parent.Children) == 0 {
		parent.Children = nil
	}
	return items, removed, nil
}

// Update applies fn to the item at p.
func Update(items []models.ChecklistItem, p Path, fn func(*models.ChecklistItem)) error {
	item, err := Find(items, p)
	if err != nil {
		return err
	}
	fn(item)
	return nil
}

// SetCompleted marks the item at p. Completing an item completes its whole
// subtree; reopening touches only the item itself.
func SetCompleted(items []models.ChecklistItem, p Path, done bool) error {
	item, err := Find(items, p)
	if err != nil {
		return err
	}
	item.Completed = done
	if done {
		Walk(item.Children, func(_ Path, child *models.ChecklistItem) bool {
			child.Completed = true
			return true
		})
	}
	return nil
}

// SetTaskCompleted is SetCompleted for task lists: Status follows the
// completion flag on the item and on every cascaded child. A reopened item
// goes back to todo.
func SetTaskCompleted(items []models.ChecklistItem, p Path, done bool) error {
	item, err := Find(items, p)
	if err != nil {
		return err
	}
	if !done {
		item.Completed = false
		item.Status = models.StatusTodo
		return nil
	}
	item.Completed = true
	item.Status = models.StatusCompleted
	Walk(item.Children, func(_ Path, child *models.ChecklistItem) bool {
		child.Completed = true
		child.Status = models.StatusCompleted
		return true
	})
	return nil
}

// Resequence renumbers Order by position and derives ids from paths.
func Resequence(checklistID string, items []models.ChecklistItem) {
	Walk(items, func(p Path, item *models.ChecklistItem) bool {
		item.Order = p[len(p)-1]
		item.ID = checklistID + "-" + p.String()
		if len(item.Children) == 0 {
			item.Children = nil
		}
		return true
	})
}

// Move repositions the item at p among its siblings to index to.
func Move(items []models.ChecklistItem, p Path, to int) ([]models.ChecklistItem, Path, error) {
	if len(p) == 0 {
		return items, nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	siblings := items
	var parent *models.ChecklistItem
	if len(p) > 1 {
		var err error
		if parent, err = Find(items, p[:len(p)-1]); err != nil {
			return items, nil, err
		}
		siblings = parent.Children
	}
	from := p[len(p)-1]
	if from < 0 || from >= len(siblings) {
		return items, nil, fmt.Errorf("%w: %s", ErrItemNotFound, p)
	}
	to = max(0, min(to, len(siblings)-1))

	moved := siblings[from]
	siblings = append(siblings[:from:from], siblings[from+1:]...)
	siblings = append(siblings[:to], append([]models.ChecklistItem{moved}, siblings[to:]...)...)
	for i := range siblings {
		siblings[i].Order = i
	}
	if parent != nil {
		parent.Children = siblings
	} else {
		items = siblings
	}
	out := make(Path, len(p))
	copy(out, p)
	out[len(out)-1] = to
	return items, out, nil
}
