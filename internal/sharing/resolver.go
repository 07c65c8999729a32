package sharing

import (
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/starford/jotter/internal/models"
)

// DefaultTTL is how long a resolved permission stays cached.
const DefaultTTL = 5 * time.Minute

type cacheKey struct {
	username string
	itemID   string
	category string
	table    string
}

type cacheEntry struct {
	perms   models.PermissionSet
	expires time.Time
}

// Cache holds resolved non-owner permissions until their TTL expires. Entries
// are never invalidated early; a change to the table yields a different key.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
}

// NewCache creates a cache. A nil clock means time.Now; ttl <= 0 means DefaultTTL.
func NewCache(ttl time.Duration, clock func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &Cache{ttl: ttl, now: clock, entries: make(map[cacheKey]cacheEntry)}
}

func (c *Cache) get(k cacheKey) (models.PermissionSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		return models.PermissionSet{}, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, k)
		return models.PermissionSet{}, false
	}
	return e.perms, true
}

func (c *Cache) put(k cacheKey, p models.PermissionSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, key)
		}
	}
	c.entries[k] = cacheEntry{perms: p, expires: now.Add(c.ttl)}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for _, e := range c.entries {
		if now.Before(e.expires) {
			n++
		}
	}
	return n
}

// Target identifies the item a permission is asked for.
type Target struct {
	ID       string
	UUID     string
	Category string
	Owner    string
}

// Resolver computes effective permissions.
type Resolver struct {
	cache *Cache
}

// NewResolver returns a resolver backed by cache. A nil cache disables caching.
func NewResolver(cache *Cache) *Resolver {
	return &Resolver{cache: cache}
}

// Effective returns what user may do with target. Owners and admins get full
// access without consulting the table or the cache. Anyone else gets the
// permissions of their own bucket, or none.
func (r *Resolver) Effective(user models.User, target Target, table models.SharingTable) models.Permissions {
	if user.Name != "" && (user.IsAdmin || user.Name == target.Owner) {
		return models.Permissions{
			PermissionSet: models.PermissionSet{CanRead: true, CanEdit: true, CanDelete: true},
			IsOwner:       user.Name == target.Owner,
		}
	}
	if user.Name == "" {
		return models.Permissions{}
	}

	var key cacheKey
	if r.cache != nil {
		key = cacheKey{
			username: user.Name,
			itemID:   target.ID,
			category: url.PathEscape(target.Category),
			table:    serialize(table),
		}
		if p, ok := r.cache.get(key); ok {
			return models.Permissions{PermissionSet: p}
		}
	}

	p, ok := Permissions(table, user.Name, target.ID, target.Category)
	if !ok && target.UUID != "" {
		p, _ = Permissions(table, user.Name, target.UUID, target.Category)
	}
	if r.cache != nil {
		r.cache.put(key, p)
	}
	return models.Permissions{PermissionSet: p}
}

func serialize(table models.SharingTable) string {
	b, err := json.Marshal(table)
	if err != nil {
		return ""
	}
	return string(b)
}
