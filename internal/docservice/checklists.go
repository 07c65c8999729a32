package docservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/checklist"
	"github.com/starford/jotter/internal/index"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/storage"
)

// ChecklistSummary is a list entry.
type ChecklistSummary struct {
	Ref         Ref                `json:"ref"`
	Path        string             `json:"path"`
	Title       string             `json:"title"`
	Archived    bool               `json:"archived"`
	IsShared    bool               `json:"isShared"`
	Permissions models.Permissions `json:"permissions"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// ChecklistDetail is a decoded checklist together with the caller's verdict.
type ChecklistDetail struct {
	*models.Checklist
	Checksum    string             `json:"checksum"`
	Permissions models.Permissions `json:"permissions"`
}

// ListOptions narrows ListChecklists and ListNotes.
type ListOptions struct {
	Category      string
	Archived      bool
	IncludeShared bool
	Limit         int
	Offset        int
}

// ListChecklists returns the caller's checklists and, optionally, those
// shared with them.
func (s *Service) ListChecklists(_ context.Context, user models.User, opts ListOptions) ([]ChecklistSummary, error) {
	rows, err := s.db.ListItems(index.Filter{
		Kind:     models.KindChecklist,
		Owner:    user.Name,
		Category: opts.Category,
		Archived: opts.Archived,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
	if err != nil {
		return nil, err
	}
	owner := models.Permissions{
		PermissionSet: models.PermissionSet{CanRead: true, CanEdit: true, CanDelete: true},
		IsOwner:       true,
	}
	out := make([]ChecklistSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, ChecklistSummary{
			Ref:         Ref{Owner: r.Owner, Category: r.Category, ID: r.ItemID},
			Path:        r.Path,
			Title:       r.Title,
			Archived:    r.Archived,
			Permissions: owner,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	if !opts.IncludeShared || opts.Archived {
		return out, nil
	}

	shared, err := s.sharedWith(user, models.KindChecklist)
	if err != nil {
		return nil, err
	}
	for _, it := range shared {
		if opts.Category != "" && !strings.EqualFold(it.Ref.Category, opts.Category) {
			continue
		}
		out = append(out, ChecklistSummary{
			Ref:         it.Ref,
			Path:        it.Path,
			Title:       it.Title,
			IsShared:    true,
			Permissions: it.Permissions,
		})
	}
	return out, nil
}

// GetChecklist reads and decodes one checklist.
func (s *Service) GetChecklist(_ context.Context, user models.User, ref Ref) (*ChecklistDetail, error) {
	doc, err := ref.doc(models.KindChecklist)
	if err != nil {
		return nil, err
	}
	perms, err := s.authorize(user, doc, "", canRead)
	if err != nil {
		return nil, err
	}
	return s.loadChecklist(doc, user, perms)
}

func (s *Service) loadChecklist(doc storage.DocPath, user models.User, perms models.Permissions) (*ChecklistDetail, error) {
	path := doc.String()
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	meta, err := s.store.Stat(path)
	if err != nil {
		return nil, err
	}
	c := checklist.Decode(checklist.Source{
		ID:        doc.ID,
		Category:  doc.Category,
		Owner:     doc.Owner,
		IsShared:  doc.Owner != user.Name,
		CreatedAt: meta.CreatedAt,
		UpdatedAt: meta.UpdatedAt,
	}, data)
	return &ChecklistDetail{Checklist: c, Checksum: checksumOf(data), Permissions: perms}, nil
}

// CreateChecklistInput describes a new checklist.
type CreateChecklistInput struct {
	ID       string               `json:"id"`
	Title    string               `json:"title"`
	Type     models.ChecklistType `json:"type"`
	Category string               `json:"category"`
}

// CreateChecklist writes an empty checklist owned by the caller. The id is
// derived from the title when not given.
func (s *Service) CreateChecklist(_ context.Context, user models.User, in CreateChecklistInput) (*ChecklistDetail, error) {
	if user.Name == "" {
		return nil, fmt.Errorf("docservice: anonymous user: %w", apperr.ErrForbidden)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("docservice: title is required: %w", apperr.ErrInvalidInput)
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = models.DefaultCategory
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := in.ID
	if id == "" {
		id = s.newID(models.KindChecklist, user.Name, category, title)
	}
	doc, err := Ref{Owner: user.Name, Category: category, ID: id}.doc(models.KindChecklist)
	if err != nil {
		return nil, err
	}
	if s.exists(doc.String()) {
		return nil, fmt.Errorf("docservice: %s: %w", doc, apperr.ErrAlreadyExists)
	}

	c := checklist.New(id, title, in.Type, category, user.Name)
	data := checklist.Encode(c)
	meta, err := s.write(doc.String(), data)
	if err != nil {
		return nil, err
	}
	c.CreatedAt, c.UpdatedAt = meta.CreatedAt, meta.UpdatedAt
	s.publish(ActionCreated, doc.String())
	perms, _ := s.permissions(user, doc, "")
	return &ChecklistDetail{Checklist: c, Checksum: checksumOf(data), Permissions: perms}, nil
}

// DeleteChecklist removes the checklist and its shares.
func (s *Service) DeleteChecklist(_ context.Context, user models.User, ref Ref) error {
	doc, err := ref.doc(models.KindChecklist)
	if err != nil {
		return err
	}
	if _, err := s.authorize(user, doc, "", canDelete); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(doc, "")
}

// ArchiveChecklist moves the checklist into the owner's archive and drops
// its shares.
func (s *Service) ArchiveChecklist(_ context.Context, user models.User, ref Ref) (string, error) {
	doc, err := ref.doc(models.KindChecklist)
	if err != nil {
		return "", err
	}
	if _, err := s.authorize(user, doc, "", canDelete); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archive(doc, "")
}

// ItemInput describes a new checklist item.
type ItemInput struct {
	Text          string            `json:"text"`
	Status        models.TaskStatus `json:"status,omitempty"`
	EstimatedTime *int              `json:"estimatedTime,omitempty"`
	TargetDate    string            `json:"targetDate,omitempty"`
	PluginData    models.PluginData `json:"pluginData,omitempty"`
}

// ItemPatch changes selected fields of an item. Nil fields are left alone.
type ItemPatch struct {
	Text          *string            `json:"text,omitempty"`
	Completed     *bool              `json:"completed,omitempty"`
	Status        *models.TaskStatus `json:"status,omitempty"`
	EstimatedTime *int               `json:"estimatedTime,omitempty"`
	TargetDate    *string            `json:"targetDate,omitempty"`
	TimeEntries   []models.TimeEntry `json:"timeEntries,omitempty"`
	PluginData    models.PluginData  `json:"pluginData,omitempty"`
}

// AddItem appends an item under parent ("" for the top level).
func (s *Service) AddItem(ctx context.Context, user models.User, ref Ref, parent string, in ItemInput) (*ChecklistDetail, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("docservice: item text is required: %w", apperr.ErrInvalidInput)
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, fmt.Errorf("docservice: status %q: %w", in.Status, apperr.ErrInvalidInput)
	}
	at, err := parseItemPath(parent, true)
	if err != nil {
		return nil, err
	}
	return s.mutateChecklist(ctx, user, ref, func(c *models.Checklist) error {
		item := models.ChecklistItem{
			Text:          text,
			EstimatedTime: in.EstimatedTime,
			TargetDate:    in.TargetDate,
			PluginData:    in.PluginData,
		}
		if c.Type == models.ChecklistTask {
			item.Status = in.Status
			if item.Status == "" {
				item.Status = models.StatusTodo
			}
			item.Completed = item.Status == models.StatusCompleted
		}
		items, _, err := checklist.Insert(c.Items, at, item)
		c.Items = items
		return err
	})
}

// UpdateItem applies patch to the item at path.
func (s *Service) UpdateItem(ctx context.Context, user models.User, ref Ref, path string, patch ItemPatch) (*ChecklistDetail, error) {
	at, err := parseItemPath(path, false)
	if err != nil {
		return nil, err
	}
	if patch.Text != nil && strings.TrimSpace(*patch.Text) == "" {
		return nil, fmt.Errorf("docservice: item text is required: %w", apperr.ErrInvalidInput)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("docservice: status %q: %w", *patch.Status, apperr.ErrInvalidInput)
	}
	return s.mutateChecklist(ctx, user, ref, func(c *models.Checklist) error {
		if patch.Completed != nil {
			if err := setCompleted(c, at, *patch.Completed); err != nil {
				return err
			}
		}
		err := checklist.Update(c.Items, at, func(it *models.ChecklistItem) {
			if patch.Text != nil {
				it.Text = strings.TrimSpace(*patch.Text)
			}
			if patch.Status != nil {
				it.Status = *patch.Status
				it.Completed = it.Status == models.StatusCompleted
			}
			if patch.EstimatedTime != nil {
				it.EstimatedTime = patch.EstimatedTime
			}
			if patch.TargetDate != nil {
				it.TargetDate = *patch.TargetDate
			}
			if patch.TimeEntries != nil {
				it.TimeEntries = patch.TimeEntries
			}
			if patch.PluginData != nil {
				it.PluginData = patch.PluginData
			}
		})
		if err != nil {
			return err
		}
		if patch.Status != nil && *patch.Status == models.StatusCompleted {
			return setCompleted(c, at, true)
		}
		return nil
	})
}

// setCompleted marks the item at p and its subtree. Task lists keep Status in
// step with the completion flag.
func setCompleted(c *models.Checklist, p checklist.Path, done bool) error {
	if c.Type == models.ChecklistTask {
		return checklist.SetTaskCompleted(c.Items, p, done)
	}
	return checklist.SetCompleted(c.Items, p, done)
}

// ToggleItem flips the completion state of the item at path.
func (s *Service) ToggleItem(ctx context.Context, user models.User, ref Ref, path string) (*ChecklistDetail, error) {
	at, err := parseItemPath(path, false)
	if err != nil {
		return nil, err
	}
	return s.mutateChecklist(ctx, user, ref, func(c *models.Checklist) error {
		it, err := checklist.Find(c.Items, at)
		if err != nil {
			return err
		}
		return setCompleted(c, at, !it.Completed)
	})
}

// RemoveItem deletes the item at path together with its children.
func (s *Service) RemoveItem(ctx context.Context, user models.User, ref Ref, path string) (*ChecklistDetail, error) {
	at, err := parseItemPath(path, false)
	if err != nil {
		return nil, err
	}
	return s.mutateChecklist(ctx, user, ref, func(c *models.Checklist) error {
		items, _, err := checklist.Remove(c.Items, at)
		c.Items = items
		return err
	})
}

// MoveItem repositions the item at path among its siblings.
func (s *Service) MoveItem(ctx context.Context, user models.User, ref Ref, path string, to int) (*ChecklistDetail, error) {
	at, err := parseItemPath(path, false)
	if err != nil {
		return nil, err
	}
	return s.mutateChecklist(ctx, user, ref, func(c *models.Checklist) error {
		items, _, err := checklist.Move(c.Items, at, to)
		c.Items = items
		return err
	})
}

// mutateChecklist runs one read-modify-write cycle under the service lock.
func (s *Service) mutateChecklist(_ context.Context, user models.User, ref Ref, fn func(*models.Checklist) error) (*ChecklistDetail, error) {
	doc, err := ref.doc(models.KindChecklist)
	if err != nil {
		return nil, err
	}
	perms, err := s.authorize(user, doc, "", canEdit)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.loadChecklist(doc, user, perms)
	if err != nil {
		return nil, err
	}
	if err := fn(d.Checklist); err != nil {
		return nil, itemErr(err)
	}
	checklist.Resequence(d.ID, d.Items)

	data := checklist.Encode(d.Checklist)
	meta, err := s.write(doc.String(), data)
	if err != nil {
		return nil, err
	}
	d.UpdatedAt = meta.UpdatedAt
	d.Checksum = checksumOf(data)
	s.publish(ActionUpdated, doc.String())
	return d, nil
}

func parseItemPath(s string, allowRoot bool) (checklist.Path, error) {
	if s == "" && allowRoot {
		return nil, nil
	}
	p, err := checklist.ParsePath(s)
	if err != nil {
		return nil, fmt.Errorf("docservice: item path %q: %w", s, apperr.ErrInvalidInput)
	}
	return p, nil
}

func itemErr(err error) error {
	switch {
	case errors.Is(err, checklist.ErrItemNotFound):
		return fmt.Errorf("%w: %w", apperr.ErrNotFound, err)
	case errors.Is(err, checklist.ErrInvalidPath):
		return fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	return err
}
