// Package sharing resolves what a user may do with an item shared to them.
//
// A sharing table maps category -> bucket -> entries. The bucket is either the
// reserved "public" or a username. Owners and admins never reach the table.
// Two owners may use the same category and id, so lookups run on the table
// scoped to one owner (see ForOwner).
package sharing

import (
	"errors"
	"slices"
	"strings"

	"github.com/starford/jotter/internal/models"
)

// PublicBucket is the reserved bucket key for items shared with everyone.
const PublicBucket = "public"

// ErrReservedName is returned when "public" is used as a username.
var ErrReservedName = errors.New("sharing: reserved bucket name")

// Bucket is either Public or User(name). The zero value is Public.
type Bucket struct {
	user string
}

// Public returns the public bucket.
func Public() Bucket { return Bucket{} }

// User returns the bucket for name.
func User(name string) (Bucket, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, PublicBucket) {
		return Bucket{}, ErrReservedName
	}
	return Bucket{user: name}, nil
}

// ParseBucket interprets a stored bucket key.
func ParseBucket(key string) Bucket {
	if key == PublicBucket {
		return Public()
	}
	return Bucket{user: key}
}

// Key returns the storage key of b.
func (b Bucket) Key() string {
	if b.user == "" {
		return PublicBucket
	}
	return b.user
}

func (b Bucket) IsPublic() bool   { return b.user == "" }
func (b Bucket) Username() string { return b.user }
func (b Bucket) String() string   { return b.Key() }

// matches reports whether e refers to the target. A UUID match is enough; an
// id match also needs the category to agree, ignoring case.
func matches(e models.SharedEntry, targetID, category string) bool {
	if targetID == "" {
		return false
	}
	if e.UUID != "" && e.UUID == targetID {
		return true
	}
	return e.ID == targetID && strings.EqualFold(e.Category, category)
}

// ForOwner returns a copy of table holding only the entries shared by owner.
func ForOwner(table models.SharingTable, owner string) models.SharingTable {
	out := make(models.SharingTable)
	for cat, buckets := range table {
		for key, entries := range buckets {
			for _, e := range entries {
				if e.SharedBy != owner {
					continue
				}
				if out[cat] == nil {
					out[cat] = make(map[string][]models.SharedEntry)
				}
				out[cat][key] = append(out[cat][key], e)
			}
		}
	}
	return out
}

func sharedBy(e models.SharedEntry, owner string) bool {
	return owner == "" || e.SharedBy == owner
}

// Info reports whether the target appears anywhere in the table, whether it
// is public and which users it is shared with.
func Info(table models.SharingTable, targetID, category string) models.SharingInfo {
	info := models.SharingInfo{SharedWith: []string{}}
	for _, buckets := range table {
		for key, entries := range buckets {
			if !slices.ContainsFunc(entries, func(e models.SharedEntry) bool {
				return matches(e, targetID, category)
			}) {
				continue
			}
			info.Exists = true
			if b := ParseBucket(key); b.IsPublic() {
				info.IsPublic = true
			} else if !slices.Contains(info.SharedWith, b.Username()) {
				info.SharedWith = append(info.SharedWith, b.Username())
			}
		}
	}
	slices.Sort(info.SharedWith)
	return info
}

// Permissions returns the permissions stored in username's bucket for the
// target. The public bucket is not consulted. ok is false when nothing is
// shared with the user.
func Permissions(table models.SharingTable, username, targetID, category string) (models.PermissionSet, bool) {
	if username == "" || username == PublicBucket {
		return models.PermissionSet{}, false
	}
	for _, buckets := range table {
		for _, e := range buckets[username] {
			if matches(e, targetID, category) {
				return e.Permissions, true
			}
		}
	}
	return models.PermissionSet{}, false
}

// Share records entry in bucket, replacing an existing entry for the same item
// of the same owner.
func Share(table models.SharingTable, b Bucket, entry models.SharedEntry) models.SharingTable {
	if table == nil {
		table = make(models.SharingTable)
	}
	if entry.Category == "" {
		entry.Category = models.DefaultCategory
	}
	buckets := table[entry.Category]
	if buckets == nil {
		buckets = make(map[string][]models.SharedEntry)
		table[entry.Category] = buckets
	}
	key := b.Key()
	list := slices.DeleteFunc(buckets[key], func(e models.SharedEntry) bool {
		if e.SharedBy != entry.SharedBy {
			return false
		}
		if entry.UUID != "" && e.UUID == entry.UUID {
			return true
		}
		return entry.ID != "" && e.ID == entry.ID && strings.EqualFold(e.Category, entry.Category)
	})
	buckets[key] = append(list, entry)
	return table
}

// Unshare removes every entry for the target shared by owner from bucket and
// reports whether anything was removed. An empty owner matches every owner.
// Empty buckets and categories are pruned.
func Unshare(table models.SharingTable, b Bucket, owner, targetID, category string) bool {
	key := b.Key()
	removed := false
	for cat, buckets := range table {
		entries, ok := buckets[key]
		if !ok {
			continue
		}
		kept := slices.DeleteFunc(entries, func(e models.SharedEntry) bool {
			return sharedBy(e, owner) && matches(e, targetID, category)
		})
		if len(kept) == len(entries) {
			continue
		}
		removed = true
		if len(kept) == 0 {
			delete(buckets, key)
		} else {
			buckets[key] = kept
		}
		if len(buckets) == 0 {
			delete(table, cat)
		}
	}
	return removed
}

// UnshareAll removes the target shared by owner from every bucket.
func UnshareAll(table models.SharingTable, owner, targetID, category string) bool {
	var keys []string
	for _, buckets := range table {
		for key := range buckets {
			keys = append(keys, key)
		}
	}
	removed := false
	for _, key := range keys {
		if Unshare(table, ParseBucket(key), owner, targetID, category) {
			removed = true
		}
	}
	return removed
}

// SharedWith returns every entry shared with username, including public ones
// when includePublic is set.
func SharedWith(table models.SharingTable, username string, includePublic bool) []models.SharedEntry {
	var out []models.SharedEntry
	for _, buckets := range table {
		if username != "" && username != PublicBucket {
			out = append(out, buckets[username]...)
		}
		if includePublic {
			out = append(out, buckets[PublicBucket]...)
		}
	}
	slices.SortFunc(out, func(a, b models.SharedEntry) int {
		if c := strings.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		if c := strings.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		if c := strings.Compare(a.SharedBy, b.SharedBy); c != 0 {
			return c
		}
		return strings.Compare(a.UUID, b.UUID)
	})
	return slices.CompactFunc(out, func(a, b models.SharedEntry) bool {
		return a.Category == b.Category && a.ID == b.ID && a.SharedBy == b.SharedBy && a.UUID == b.UUID
	})
}
