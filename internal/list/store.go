package list

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested list or item does not exist.
var ErrNotFound = errors.New("list: not found")

// ErrDuplicateName is returned by Create and Update when the requested name
// collides case-insensitively with another list.
var ErrDuplicateName = errors.New("list: a list with that name already exists")

// ErrDuplicateItem is returned by AddItem when the list forbids duplicates
// and an item with the same text (case-insensitive) is already present.
var ErrDuplicateItem = errors.New("list: item already exists in this list")

// ErrStorage wraps I/O failures of the backing document. Read failures on
// GetAll are swallowed (fail-open); write failures always surface as this.
var ErrStorage = errors.New("list: storage failure")

// Store provides durable CRUD for lists and their items.
// Implementations must be safe for concurrent use.
type Store interface {
	// GetAll returns every list in insertion order. It never fails the
	// caller: on read or parse failure it returns an empty slice and logs
	// the condition.
	GetAll(ctx context.Context) []List

	// Get retrieves a single list by ID.
	// Returns [ErrNotFound] when no list with that ID exists.
	Get(ctx context.Context, id string) (List, error)

	// Create allocates a fresh list from req. Settings arrive already merged
	// with category defaults. Returns [ErrDuplicateName] on a
	// case-insensitive name collision.
	Create(ctx context.Context, req CreateRequest) (List, error)

	// Update merges the provided fields into an existing list; omitted
	// fields retain their prior values. Returns [ErrNotFound] if absent and
	// [ErrDuplicateName] if the rename collides with a different list.
	Update(ctx context.Context, id string, req UpdateRequest) (List, error)

	// Delete removes a list and all its items. The returned bool reports
	// whether a list was actually removed; deleting a missing ID is a no-op,
	// not an error.
	Delete(ctx context.Context, id string) (bool, error)

	// ReplaceItems substitutes a list's entire item collection in one call.
	// This is the reconciler's application path. Returns [ErrNotFound] if
	// the list does not exist.
	ReplaceItems(ctx context.Context, id string, items []Item) (List, error)

	// AddItem appends one item. Returns [ErrDuplicateItem] when the list
	// forbids duplicates and the text matches an existing item
	// case-insensitively, and [ErrNotFound] when the list is absent.
	AddItem(ctx context.Context, id string, item Item) (Item, error)

	// UpdateItem applies a partial update to a single item, preserving its
	// ID and CreatedAt. Returns [ErrNotFound] when the list or item is absent.
	UpdateItem(ctx context.Context, id, itemID string, upd ItemUpdate) (Item, error)

	// DeleteItem removes a single item. Returns [ErrNotFound] when the list
	// or item is absent.
	DeleteItem(ctx context.Context, id, itemID string) error
}
