package docservice

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/checksum"
	"github.com/starford/jotter/internal/index"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/parser"
	"github.com/starford/jotter/internal/storage"
	"github.com/starford/jotter/internal/tags"
)

func checksumOf(data []byte) string { return checksum.Sum(data) }

// NoteSummary is a list entry.
type NoteSummary struct {
	Ref         Ref                `json:"ref"`
	Path        string             `json:"path"`
	UUID        string             `json:"uuid"`
	Title       string             `json:"title"`
	Tags        []string           `json:"tags"`
	Archived    bool               `json:"archived"`
	IsShared    bool               `json:"isShared"`
	Permissions models.Permissions `json:"permissions"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// NoteDetail is a parsed note together with the caller's verdict.
type NoteDetail struct {
	models.Note
	Checksum    string             `json:"checksum"`
	IsShared    bool               `json:"isShared"`
	Permissions models.Permissions `json:"permissions"`
}

// NoteListOptions narrows ListNotes.
type NoteListOptions struct {
	ListOptions
	// Tag keeps notes tagged with it or one of its descendants.
	Tag string
}

// ListNotes returns the caller's notes and, optionally, those shared with them.
func (s *Service) ListNotes(_ context.Context, user models.User, opts NoteListOptions) ([]NoteSummary, error) {
	rows, err := s.db.ListItems(index.Filter{
		Kind:     models.KindNote,
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
	out := make([]NoteSummary, 0, len(rows))
	for _, r := range rows {
		if !tagged(r.Tags, opts.Tag) {
			continue
		}
		out = append(out, noteSummary(r, owner, false))
	}
	if !opts.IncludeShared || opts.Archived {
		return out, nil
	}

	shared, err := s.sharedWith(user, models.KindNote)
	if err != nil {
		return nil, err
	}
	for _, it := range shared {
		if opts.Category != "" && !strings.EqualFold(it.Ref.Category, opts.Category) {
			continue
		}
		row, err := s.db.GetItem(it.Path)
		if err != nil || !tagged(row.Tags, opts.Tag) {
			continue
		}
		out = append(out, noteSummary(*row, it.Permissions, true))
	}
	return out, nil
}

func tagged(noteTags []string, filter string) bool {
	if filter == "" {
		return true
	}
	return slices.ContainsFunc(noteTags, func(t string) bool { return tags.MatchesFilter(t, filter) })
}

func noteSummary(r index.ItemRow, perms models.Permissions, shared bool) NoteSummary {
	t := r.Tags
	if t == nil {
		t = []string{}
	}
	return NoteSummary{
		Ref:         Ref{Owner: r.Owner, Category: r.Category, ID: r.ItemID},
		Path:        r.Path,
		UUID:        r.UUID,
		Title:       r.Title,
		Tags:        t,
		Archived:    r.Archived,
		IsShared:    shared,
		Permissions: perms,
		UpdatedAt:   r.UpdatedAt,
	}
}

// GetNote reads and parses one note.
func (s *Service) GetNote(_ context.Context, user models.User, ref Ref) (*NoteDetail, error) {
	doc, err := ref.doc(models.KindNote)
	if err != nil {
		return nil, err
	}
	perms, err := s.authorize(user, doc, s.uuidOf(doc), canRead)
	if err != nil {
		return nil, err
	}
	d, _, err := s.loadNote(doc, user, perms)
	return d, err
}

func (s *Service) loadNote(doc storage.DocPath, user models.User, perms models.Permissions) (*NoteDetail, *parser.Result, error) {
	path := doc.String()
	data, err := s.read(path)
	if err != nil {
		return nil, nil, err
	}
	meta, err := s.store.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	title := res.Title
	if title == "" {
		title = doc.ID
	}
	t := res.Tags
	if t == nil {
		t = []string{}
	}
	return &NoteDetail{
		Note: models.Note{
			ID:        doc.ID,
			UUID:      res.UUID,
			Title:     title,
			Content:   res.Body,
			Tags:      t,
			Category:  doc.Category,
			Owner:     doc.Owner,
			CreatedAt: meta.CreatedAt,
			UpdatedAt: meta.UpdatedAt,
		},
		Checksum:    checksumOf(data),
		IsShared:    doc.Owner != user.Name,
		Permissions: perms,
	}, res, nil
}

// CreateNoteInput describes a new note.
type CreateNoteInput struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Content  string   `json:"content"`
}

// CreateNote writes a note owned by the caller with a fresh uuid.
func (s *Service) CreateNote(_ context.Context, user models.User, in CreateNoteInput) (*NoteDetail, error) {
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
		id = s.newID(models.KindNote, user.Name, category, title)
	}
	doc, err := Ref{Owner: user.Name, Category: category, ID: id}.doc(models.KindNote)
	if err != nil {
		return nil, err
	}
	if s.exists(doc.String()) {
		return nil, fmt.Errorf("docservice: %s: %w", doc, apperr.ErrAlreadyExists)
	}

	data, err := parser.Format(uuid.NewString(), title, cleanTags(in.Tags), in.Content)
	if err != nil {
		return nil, err
	}
	if _, err := s.write(doc.String(), data); err != nil {
		return nil, err
	}
	s.publish(ActionCreated, doc.String())
	perms, _ := s.permissions(user, doc, "")
	d, _, err := s.loadNote(doc, user, perms)
	return d, err
}

// NotePatch changes selected parts of a note. Nil fields are left alone.
type NotePatch struct {
	Title   *string  `json:"title,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Content *string  `json:"content,omitempty"`
}

// UpdateNote rewrites the note. A non-empty ifMatch must name the current
// checksum or the update fails with apperr.ErrConflict.
func (s *Service) UpdateNote(_ context.Context, user models.User, ref Ref, patch NotePatch, ifMatch string) (*NoteDetail, error) {
	doc, err := ref.doc(models.KindNote)
	if err != nil {
		return nil, err
	}
	perms, err := s.authorize(user, doc, s.uuidOf(doc), canEdit)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, fmt.Errorf("docservice: title is required: %w", apperr.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, res, err := s.loadNote(doc, user, perms)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && !checksum.Matches(ifMatch, cur.Checksum) {
		return nil, fmt.Errorf("docservice: %s changed: %w", doc, apperr.ErrConflict)
	}

	id := res.UUID
	if id == "" {
		id = uuid.NewString()
	}
	title, authored, body := cur.Title, res.AuthoredTags, cur.Content
	if patch.Title != nil {
		title = strings.TrimSpace(*patch.Title)
	}
	if patch.Tags != nil {
		authored = cleanTags(patch.Tags)
	}
	if patch.Content != nil {
		body = *patch.Content
	}

	data, err := parser.Format(id, title, authored, body)
	if err != nil {
		return nil, err
	}
	if _, err := s.write(doc.String(), data); err != nil {
		return nil, err
	}
	s.publish(ActionUpdated, doc.String())
	d, _, err := s.loadNote(doc, user, perms)
	return d, err
}

// DeleteNote removes the note and its shares.
func (s *Service) DeleteNote(_ context.Context, user models.User, ref Ref) error {
	doc, err := ref.doc(models.KindNote)
	if err != nil {
		return err
	}
	noteUUID := s.uuidOf(doc)
	if _, err := s.authorize(user, doc, noteUUID, canDelete); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(doc, noteUUID)
}

// ArchiveNote moves the note into the owner's archive and drops its shares.
func (s *Service) ArchiveNote(_ context.Context, user models.User, ref Ref) (string, error) {
	doc, err := ref.doc(models.KindNote)
	if err != nil {
		return "", err
	}
	noteUUID := s.uuidOf(doc)
	if _, err := s.authorize(user, doc, noteUUID, canDelete); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archive(doc, noteUUID)
}

// NotesByTag returns the caller's notes under tag, descendants included.
func (s *Service) NotesByTag(ctx context.Context, user models.User, tag string) ([]NoteSummary, error) {
	if tags.Normalize(tag) == "" {
		return nil, fmt.Errorf("docservice: tag is required: %w", apperr.ErrInvalidInput)
	}
	return s.ListNotes(ctx, user, NoteListOptions{Tag: tag})
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
