package models

// PermissionSet is what a sharing entry grants.
type PermissionSet struct {
	CanRead   bool `json:"canRead"`
	CanEdit   bool `json:"canEdit"`
	CanDelete bool `json:"canDelete"`
}

// Permissions is the effective verdict for a user on an item.
type Permissions struct {
	PermissionSet
	IsOwner bool `json:"isOwner"`
}

// SharedEntry records one share of an item inside a bucket.
type SharedEntry struct {
	ID          string        `json:"id,omitempty"`
	UUID        string        `json:"uuid,omitempty"`
	Category    string        `json:"category"`
	SharedBy    string        `json:"sharedBy,omitempty"`
	SharedAt    string        `json:"sharedAt,omitempty"`
	Permissions PermissionSet `json:"permissions"`
}

// SharingTable maps category -> bucket -> entries. A bucket is a username or
// the reserved "public".
type SharingTable map[string]map[string][]SharedEntry

// SharingInfo summarises where an item is shared.
type SharingInfo struct {
	Exists     bool     `json:"exists"`
	IsPublic   bool     `json:"isPublic"`
	SharedWith []string `json:"sharedWith"`
}
