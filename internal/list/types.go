// Package list defines the list data model and the Store abstraction over
// durable list persistence.
//
// A List is the aggregate root: it owns its Metadata, Settings, and an
// ordered sequence of Items by composition. All mutation goes through a
// Store implementation; there is no direct-mutation path.
package list

import "time"

// Item is a single entry in a list. Identity is the ID; Text is not required
// to be unique unless the owning list forbids duplicates.
type Item struct {
	// ID is an opaque unique token.
	ID string `json:"id"`

	// Text is the item content.
	Text string `json:"text"`

	// Completed marks the item done (todo-style lists).
	Completed bool `json:"completed,omitempty"`

	// CreatedAt is when the item was first stored.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is bumped on every item mutation.
	UpdatedAt time.Time `json:"updatedAt"`

	// Metadata is an open key-value bag for client use.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Metadata is the display identity of a list. Name is unique across all
// lists, case-insensitively; the store enforces this at creation and rename.
type Metadata struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Color       string    `json:"color,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SortOrder is a display hint for clients; the store never reorders items
// on its own.
type SortOrder string

const (
	SortManual       SortOrder = "manual"
	SortAlphabetical SortOrder = "alphabetical"
	SortCreated      SortOrder = "created"
	SortUpdated      SortOrder = "updated"
)

// IsValid reports whether s is a recognised sort order.
func (s SortOrder) IsValid() bool {
	switch s {
	case SortManual, SortAlphabetical, SortCreated, SortUpdated:
		return true
	}
	return false
}

// Settings governs how the store applies item-level operations and how
// clients are expected to present the list.
type Settings struct {
	// AllowDuplicates permits multiple items with the same text. When false,
	// AddItem rejects case-insensitive text collisions.
	AllowDuplicates bool `json:"allowDuplicates"`

	// MaxItems is a client-side hint for bounding the item count, like
	// SortOrder. The store does not enforce it; the hard cap on model-driven
	// edits is the reconciler's own item limit.
	MaxItems int `json:"maxItems,omitempty"`

	// SortOrder is a display hint, not enforced by the store.
	SortOrder SortOrder `json:"sortOrder"`

	// AutoComplete enables completion affordances in clients.
	AutoComplete bool `json:"autoComplete"`
}

// List is the aggregate root owned by the Store.
type List struct {
	// ID is an opaque unique token.
	ID string `json:"id"`

	// Type is the list category (see the listtype package for the fixed
	// enumeration and per-category interpretation policies).
	Type string `json:"type"`

	Metadata Metadata `json:"metadata"`
	Items    []Item   `json:"items"`
	Settings Settings `json:"settings"`
}

// CreateRequest carries the fields for Store.Create. Name is required; the
// zero Settings value is replaced by the category defaults merged with any
// caller overrides before the request reaches the store.
type CreateRequest struct {
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Color       string    `json:"color,omitempty"`
	Settings    *Settings `json:"settings,omitempty"`
}

// UpdateRequest carries a partial update for Store.Update. Nil fields retain
// their prior values.
type UpdateRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Icon        *string   `json:"icon,omitempty"`
	Color       *string   `json:"color,omitempty"`
	Settings    *Settings `json:"settings,omitempty"`
}

// ItemUpdate carries a partial update for Store.UpdateItem. Nil fields retain
// their prior values; ID and CreatedAt are never caller-writable.
type ItemUpdate struct {
	Text      *string        `json:"text,omitempty"`
	Completed *bool          `json:"completed,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
