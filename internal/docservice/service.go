// Package docservice coordinates storage, the index and the document engine
// for checklists and notes, enforcing per-user permissions.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/index"
	"github.com/starford/jotter/internal/links"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/sharing"
	"github.com/starford/jotter/internal/storage"
	"github.com/starford/jotter/internal/tags"
)

// Event actions reported to the EventSink.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// EventSink receives a notification after every successful write.
type EventSink interface {
	PublishItemEvent(action, path string)
}

// Ref addresses one document.
type Ref struct {
	Owner    string `json:"owner"`
	Category string `json:"category"`
	ID       string `json:"id"`
}

func (r Ref) doc(kind models.ItemKind) (storage.DocPath, error) {
	d := storage.DocPath{Kind: kind, Owner: r.Owner, Category: r.Category, ID: r.ID}
	if d.Category == "" {
		d.Category = models.DefaultCategory
	}
	if err := d.Validate(); err != nil {
		return storage.DocPath{}, err
	}
	return d, nil
}

// Service coordinates storage and index operations.
type Service struct {
	store    storage.Provider
	db       index.ItemIndex
	resolver *sharing.Resolver
	events   EventSink
	logger   *slog.Logger
	now      func() time.Time

	// mu serializes read-modify-write cycles on documents and sharing tables.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithEvents sets the sink notified after writes.
func WithEvents(e EventSink) Option {
	return func(s *Service) { s.events = e }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the clock used for share timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a service. A nil resolver gets an uncached one.
func New(store storage.Provider, db index.ItemIndex, resolver *sharing.Resolver, opts ...Option) *Service {
	if resolver == nil {
		resolver = sharing.NewResolver(nil)
	}
	s := &Service{
		store:    store,
		db:       db,
		resolver: resolver,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) publish(action, path string) {
	if s.events != nil {
		s.events.PublishItemEvent(action, path)
	}
}

// permissions resolves what user may do with the document at doc.
func (s *Service) permissions(user models.User, doc storage.DocPath, uuid string) (models.Permissions, error) {
	target := sharing.Target{ID: doc.ID, UUID: uuid, Category: doc.Category, Owner: doc.Owner}
	if user.IsAdmin || (user.Name != "" && user.Name == doc.Owner) {
		return s.resolver.Effective(user, target, nil), nil
	}
	table, err := s.ownedSharing(doc.Kind, doc.Owner)
	if err != nil {
		return models.Permissions{}, err
	}
	perms := s.resolver.Effective(user, target, table)
	if !perms.CanRead && isPublic(table, target) {
		perms.CanRead = true
	}
	return perms, nil
}

// ownedSharing reads the kind's sharing table scoped to owner's entries.
func (s *Service) ownedSharing(kind models.ItemKind, owner string) (models.SharingTable, error) {
	table, err := storage.ReadSharing(s.store, kind)
	if err != nil {
		return nil, err
	}
	return sharing.ForOwner(table, owner), nil
}

// isPublic reports whether target sits in the public bucket of its owner's
// scoped table. Public items are readable by every signed-in user; edit and
// delete still need a user share.
func isPublic(table models.SharingTable, target sharing.Target) bool {
	if sharing.Info(table, target.ID, target.Category).IsPublic {
		return true
	}
	return target.UUID != "" && sharing.Info(table, target.UUID, target.Category).IsPublic
}

func (s *Service) authorize(user models.User, doc storage.DocPath, uuid string, need func(models.Permissions) bool) (models.Permissions, error) {
	if user.Name == "" {
		return models.Permissions{}, fmt.Errorf("docservice: anonymous user: %w", apperr.ErrForbidden)
	}
	perms, err := s.permissions(user, doc, uuid)
	if err != nil {
		return models.Permissions{}, err
	}
	if !need(perms) {
		return perms, fmt.Errorf("docservice: %s on %s: %w", user.Name, doc, apperr.ErrForbidden)
	}
	return perms, nil
}

func canRead(p models.Permissions) bool   { return p.CanRead }
func canEdit(p models.Permissions) bool   { return p.CanEdit }
func canDelete(p models.Permissions) bool { return p.CanDelete }

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("docservice: %s: %w", path, apperr.ErrNotFound)
	}
	return data, err
}

func (s *Service) exists(path string) bool {
	_, err := s.store.Stat(path)
	return err == nil
}

// write stores data at path and re-indexes it.
func (s *Service) write(path string, data []byte) (models.FileMeta, error) {
	if err := s.store.Write(path, data); err != nil {
		return models.FileMeta{}, err
	}
	meta, err := s.store.Stat(path)
	if err != nil {
		return models.FileMeta{}, err
	}
	if err := index.IndexFile(s.db, meta, data); err != nil {
		return models.FileMeta{}, err
	}
	return meta, nil
}

func (s *Service) reindex(path string) error {
	data, err := s.read(path)
	if err != nil {
		return err
	}
	meta, err := s.store.Stat(path)
	if err != nil {
		return err
	}
	return index.IndexFile(s.db, meta, data)
}

// remove deletes the document and scrubs it from the index and sharing table.
func (s *Service) remove(doc storage.DocPath, uuid string) error {
	path := doc.String()
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("docservice: %s: %w", path, apperr.ErrNotFound)
		}
		return err
	}
	if err := s.db.DeleteItem(path); err != nil {
		return err
	}
	s.unshareEverywhere(doc, uuid)
	s.logDangling(doc)
	s.publish(ActionDeleted, path)
	return nil
}

// archive moves the document under the owner's archive tree.
func (s *Service) archive(doc storage.DocPath, uuid string) (string, error) {
	from, to := doc.String(), doc.Archive().String()
	if s.exists(to) {
		return "", fmt.Errorf("docservice: %s: %w", to, apperr.ErrAlreadyExists)
	}
	if err := s.store.Move(from, to); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("docservice: %s: %w", from, apperr.ErrNotFound)
		}
		return "", err
	}
	if err := s.db.DeleteItem(from); err != nil {
		return "", err
	}
	if err := s.reindex(to); err != nil {
		return "", err
	}
	s.unshareEverywhere(doc, uuid)
	s.logDangling(doc)
	s.publish(ActionDeleted, from)
	s.publish(ActionCreated, to)
	return to, nil
}

// logDangling reports documents whose mentions of doc no longer resolve.
// The mentions stay in their text; the link index hides archived targets.
func (s *Service) logDangling(doc storage.DocPath) {
	sources, err := s.db.Backlinks(doc.Owner, links.Ref{Kind: doc.Kind, Key: links.Key(doc.Category, doc.ID)})
	if err != nil || len(sources) == 0 {
		return
	}
	s.logger.Info("docservice: removed item is still mentioned",
		slog.String("path", doc.String()),
		slog.Int("mentions", len(sources)))
}

func (s *Service) unshareEverywhere(doc storage.DocPath, uuid string) {
	table, err := storage.ReadSharing(s.store, doc.Kind)
	if err != nil {
		s.logger.Warn("docservice: read sharing table", slog.String("error", err.Error()))
		return
	}
	changed := sharing.UnshareAll(table, doc.Owner, doc.ID, doc.Category)
	if uuid != "" && sharing.UnshareAll(table, doc.Owner, uuid, doc.Category) {
		changed = true
	}
	if !changed {
		return
	}
	if err := storage.WriteSharing(s.store, doc.Kind, table); err != nil {
		s.logger.Warn("docservice: write sharing table", slog.String("error", err.Error()))
	}
}

// newID derives a file id from title and makes it unique among the owner's
// live and archived files of the kind.
func (s *Service) newID(kind models.ItemKind, owner, category, title string) string {
	base := slug(title)
	if base == "" {
		base = string(kind)
	}
	taken := func(id string) bool {
		doc := storage.DocPath{Kind: kind, Owner: owner, Category: category, ID: id}
		return s.exists(doc.String()) || s.exists(doc.Archive().String())
	}
	id := base
	for n := 2; taken(id); n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	return id
}

func slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// SharedItem is an entry of another user's document visible to the caller.
type SharedItem struct {
	Ref         Ref                `json:"ref"`
	Path        string             `json:"path"`
	Title       string             `json:"title"`
	Permissions models.Permissions `json:"permissions"`
	IsPublic    bool               `json:"isPublic"`
}

// sharedWith lists the kind's documents shared with user, publicly or directly.
func (s *Service) sharedWith(user models.User, kind models.ItemKind) ([]SharedItem, error) {
	table, err := storage.ReadSharing(s.store, kind)
	if err != nil {
		return nil, err
	}
	var out []SharedItem
	seen := make(map[string]struct{})
	for _, e := range sharing.SharedWith(table, user.Name, true) {
		row, err := s.sharedRow(kind, e)
		if err != nil || row.Owner == user.Name {
			continue
		}
		if _, dup := seen[row.Path]; dup {
			continue
		}
		target := sharing.Target{ID: row.ItemID, UUID: row.UUID, Category: row.Category, Owner: row.Owner}
		owned := sharing.ForOwner(table, row.Owner)
		perms := s.resolver.Effective(user, target, owned)
		public := isPublic(owned, target)
		if public {
			perms.CanRead = true
		}
		if !perms.CanRead {
			continue
		}
		seen[row.Path] = struct{}{}
		out = append(out, SharedItem{
			Ref:         Ref{Owner: row.Owner, Category: row.Category, ID: row.ItemID},
			Path:        row.Path,
			Title:       row.Title,
			Permissions: perms,
			IsPublic:    public,
		})
	}
	return out, nil
}

func (s *Service) sharedRow(kind models.ItemKind, e models.SharedEntry) (*index.ItemRow, error) {
	if e.ID != "" && e.SharedBy != "" {
		doc := storage.DocPath{Kind: kind, Owner: e.SharedBy, Category: e.Category, ID: e.ID}
		if doc.Validate() == nil {
			return s.db.GetItem(doc.String())
		}
	}
	if e.UUID != "" {
		return s.db.FindByUUID(e.UUID)
	}
	return nil, apperr.ErrNotFound
}

// ShareInput grants permissions on a document to a bucket ("public" or a
// username).
type ShareInput struct {
	Bucket      string               `json:"bucket"`
	Permissions models.PermissionSet `json:"permissions"`
}

func parseBucket(name string) (sharing.Bucket, error) {
	if strings.EqualFold(strings.TrimSpace(name), sharing.PublicBucket) {
		return sharing.Public(), nil
	}
	b, err := sharing.User(name)
	if err != nil {
		return sharing.Bucket{}, fmt.Errorf("docservice: bucket %q: %w", name, apperr.ErrInvalidInput)
	}
	return b, nil
}

func (s *Service) uuidOf(doc storage.DocPath) string {
	if doc.Kind != models.KindNote {
		return ""
	}
	row, err := s.db.GetItem(doc.String())
	if err != nil {
		return ""
	}
	return row.UUID
}

// Share records a share of the document. Only the owner or an admin may share.
func (s *Service) Share(_ context.Context, user models.User, kind models.ItemKind, ref Ref, in ShareInput) (models.SharingInfo, error) {
	doc, err := ref.doc(kind)
	if err != nil {
		return models.SharingInfo{}, err
	}
	bucket, err := parseBucket(in.Bucket)
	if err != nil {
		return models.SharingInfo{}, err
	}
	if !bucket.IsPublic() && bucket.Username() == doc.Owner {
		return models.SharingInfo{}, fmt.Errorf("docservice: cannot share with the owner: %w", apperr.ErrInvalidInput)
	}
	uuid := s.uuidOf(doc)
	if _, err := s.authorize(user, doc, uuid, func(p models.Permissions) bool { return p.IsOwner || user.IsAdmin }); err != nil {
		return models.SharingInfo{}, err
	}
	if !s.exists(doc.String()) {
		return models.SharingInfo{}, fmt.Errorf("docservice: %s: %w", doc, apperr.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := storage.ReadSharing(s.store, kind)
	if err != nil {
		return models.SharingInfo{}, err
	}
	table = sharing.Share(table, bucket, models.SharedEntry{
		ID:          doc.ID,
		UUID:        uuid,
		Category:    doc.Category,
		SharedBy:    doc.Owner,
		SharedAt:    s.now().UTC().Format(time.RFC3339),
		Permissions: in.Permissions,
	})
	if err := storage.WriteSharing(s.store, kind, table); err != nil {
		return models.SharingInfo{}, err
	}
	s.publish(ActionUpdated, doc.String())
	return sharing.Info(sharing.ForOwner(table, doc.Owner), doc.ID, doc.Category), nil
}

// Unshare removes the document from bucket.
func (s *Service) Unshare(_ context.Context, user models.User, kind models.ItemKind, ref Ref, bucketName string) (models.SharingInfo, error) {
	doc, err := ref.doc(kind)
	if err != nil {
		return models.SharingInfo{}, err
	}
	bucket, err := parseBucket(bucketName)
	if err != nil {
		return models.SharingInfo{}, err
	}
	uuid := s.uuidOf(doc)
	if _, err := s.authorize(user, doc, uuid, func(p models.Permissions) bool { return p.IsOwner || user.IsAdmin }); err != nil {
		return models.SharingInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := storage.ReadSharing(s.store, kind)
	if err != nil {
		return models.SharingInfo{}, err
	}
	removed := sharing.Unshare(table, bucket, doc.Owner, doc.ID, doc.Category)
	if uuid != "" && sharing.Unshare(table, bucket, doc.Owner, uuid, doc.Category) {
		removed = true
	}
	if !removed {
		return models.SharingInfo{}, fmt.Errorf("docservice: %s not shared with %s: %w", doc, bucket, apperr.ErrNotFound)
	}
	if err := storage.WriteSharing(s.store, kind, table); err != nil {
		return models.SharingInfo{}, err
	}
	s.publish(ActionUpdated, doc.String())
	return sharing.Info(sharing.ForOwner(table, doc.Owner), doc.ID, doc.Category), nil
}

// SharingInfo reports where the document is shared. Owner or admin only.
func (s *Service) SharingInfo(_ context.Context, user models.User, kind models.ItemKind, ref Ref) (models.SharingInfo, error) {
	doc, err := ref.doc(kind)
	if err != nil {
		return models.SharingInfo{}, err
	}
	uuid := s.uuidOf(doc)
	if _, err := s.authorize(user, doc, uuid, func(p models.Permissions) bool { return p.IsOwner || user.IsAdmin }); err != nil {
		return models.SharingInfo{}, err
	}
	table, err := s.ownedSharing(kind, doc.Owner)
	if err != nil {
		return models.SharingInfo{}, err
	}
	info := sharing.Info(table, doc.ID, doc.Category)
	if !info.Exists && uuid != "" {
		info = sharing.Info(table, uuid, doc.Category)
	}
	return info, nil
}

// TagTree returns the caller's tag hierarchy.
func (s *Service) TagTree(_ context.Context, user models.User) ([]*tags.Node, error) {
	notes, err := s.db.NoteTags(user.Name)
	if err != nil {
		return nil, err
	}
	return tags.Build(notes).Tree(), nil
}

// Tags returns the caller's flat tag index.
func (s *Service) Tags(_ context.Context, user models.User) (tags.Index, error) {
	notes, err := s.db.NoteTags(user.Name)
	if err != nil {
		return nil, err
	}
	return tags.Build(notes), nil
}

// Links returns the caller's mention graph without archived documents.
func (s *Service) Links(_ context.Context, user models.User) (*models.LinkIndex, error) {
	ix, err := s.db.LinkIndex(user.Name)
	if err != nil {
		return nil, err
	}
	if err := links.Verify(ix); err != nil {
		s.logger.Warn("docservice: link index asymmetric", slog.String("owner", user.Name), slog.String("error", err.Error()))
	}
	notes, checklists, err := s.db.ArchivedKeys(user.Name)
	if err != nil {
		return nil, err
	}
	return links.FilterArchivedByKind(ix, notes, checklists), nil
}

// ItemLinks returns the link entry of one of the caller's documents.
func (s *Service) ItemLinks(ctx context.Context, user models.User, kind models.ItemKind, ref Ref) (*models.LinkEntry, error) {
	doc, err := ref.doc(kind)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(user, doc, s.uuidOf(doc), canRead); err != nil {
		return nil, err
	}
	ix, err := s.Links(ctx, models.User{Name: doc.Owner})
	if err != nil {
		return nil, err
	}
	e := links.Entry(ix, links.Ref{Kind: kind, Key: links.Key(doc.Category, doc.ID)})
	if e == nil {
		return nil, fmt.Errorf("docservice: %s: %w", doc, apperr.ErrNotFound)
	}
	return e, nil
}

// SearchHit is one readable search result.
type SearchHit struct {
	index.SearchResult
	Ref Ref `json:"ref"`
}

// Search runs a full-text search and keeps only documents the caller may read.
func (s *Service) Search(_ context.Context, user models.User, query string, limit int) ([]SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return []SearchHit{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	// Over-fetch so permission filtering still fills the page.
	results, err := s.db.Search(query, limit*4)
	if err != nil {
		return nil, err
	}
	out := make([]SearchHit, 0, len(results))
	for _, r := range results {
		doc, err := storage.ParseDocPath(r.Path)
		if err != nil {
			continue
		}
		if doc.Owner != user.Name && !user.IsAdmin {
			perms, err := s.permissions(user, doc, s.uuidOf(doc))
			if err != nil || !perms.CanRead {
				continue
			}
		}
		out = append(out, SearchHit{
			SearchResult: r,
			Ref:          Ref{Owner: doc.Owner, Category: doc.Category, ID: doc.ID},
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
