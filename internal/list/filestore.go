package list

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Document version for the multi-list file format.
const documentVersion = "2.0"

// defaultBackupRetention is how many timestamped backups are kept before the
// oldest are pruned.
const defaultBackupRetention = 10

// document is the on-disk shape of the whole store: every list in one file,
// atomically rewritten on each mutation.
type document struct {
	Lists       []List    `json:"lists"`
	LastUpdated time.Time `json:"lastUpdated"`
	Version     string    `json:"version"`
}

// FileStore is a [Store] backed by a single JSON document on disk.
//
// Every operation re-reads the document from durable storage — no in-memory
// cache is kept between requests. A process-level file lock serialises
// read-modify-write cycles so that two handlers in the same (or another)
// process cannot interleave a whole-document rewrite. Before any overwrite of
// a non-empty document, a timestamped backup copy is written to a sibling
// directory and the backup set is pruned to the retention count.
type FileStore struct {
	path      string
	backupDir string
	retention int
	lock      *flock.Flock
}

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// FileOption is a functional option for configuring a [FileStore].
type FileOption func(*FileStore)

// WithBackupDir overrides the backup directory. Default: a "backups"
// directory next to the document file.
func WithBackupDir(dir string) FileOption {
	return func(s *FileStore) {
		s.backupDir = dir
	}
}

// WithBackupRetention sets how many backups are kept. Default: 10.
func WithBackupRetention(n int) FileOption {
	return func(s *FileStore) {
		if n > 0 {
			s.retention = n
		}
	}
}

// NewFileStore creates a [FileStore] persisting to the JSON document at path.
// The parent directory is created if it does not exist.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{
		path:      path,
		backupDir: filepath.Join(filepath.Dir(path), "backups"),
		retention: defaultBackupRetention,
		lock:      flock.New(path + ".lock"),
	}
	for _, o := range opts {
		o(s)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("list: create store dir: %w", err)
	}
	return s, nil
}

// GetAll implements [Store.GetAll]. Read or parse failures are logged and
// yield an empty slice so the caller stays usable after a corrupted or
// missing document.
func (s *FileStore) GetAll(ctx context.Context) []List {
	if err := s.lock.RLock(); err != nil {
		slog.Warn("list store: acquire read lock", "err", err)
		return []List{}
	}
	defer s.lock.Unlock()

	doc, err := s.load()
	if err != nil {
		slog.Warn("list store: read document, treating as empty", "path", s.path, "err", err)
		return []List{}
	}
	return doc.Lists
}

// Get implements [Store.Get].
func (s *FileStore) Get(ctx context.Context, id string) (List, error) {
	if err := s.lock.RLock(); err != nil {
		return List{}, fmt.Errorf("%w: lock: %v", ErrStorage, err)
	}
	defer s.lock.Unlock()

	doc, err := s.load()
	if err != nil {
		return List{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	for _, l := range doc.Lists {
		if l.ID == id {
			return l, nil
		}
	}
	return List{}, ErrNotFound
}

// Create implements [Store.Create].
func (s *FileStore) Create(ctx context.Context, req CreateRequest) (List, error) {
	var created List
	err := s.mutate(func(doc *document) error {
		for _, l := range doc.Lists {
			if strings.EqualFold(l.Metadata.Name, req.Name) {
				return ErrDuplicateName
			}
		}

		now := time.Now().UTC()
		created = List{
			ID:   uuid.NewString(),
			Type: req.Type,
			Metadata: Metadata{
				Name:        req.Name,
				Description: req.Description,
				Icon:        req.Icon,
				Color:       req.Color,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
			Items: []Item{},
		}
		if req.Settings != nil {
			created.Settings = *req.Settings
		}
		doc.Lists = append(doc.Lists, created)
		return nil
	})
	if err != nil {
		return List{}, err
	}
	return created, nil
}

// Update implements [Store.Update].
func (s *FileStore) Update(ctx context.Context, id string, req UpdateRequest) (List, error) {
	var updated List
	err := s.mutate(func(doc *document) error {
		idx := indexOf(doc.Lists, id)
		if idx < 0 {
			return ErrNotFound
		}

		if req.Name != nil {
			for _, other := range doc.Lists {
				if other.ID != id && strings.EqualFold(other.Metadata.Name, *req.Name) {
					return ErrDuplicateName
				}
			}
			doc.Lists[idx].Metadata.Name = *req.Name
		}
		if req.Description != nil {
			doc.Lists[idx].Metadata.Description = *req.Description
		}
		if req.Icon != nil {
			doc.Lists[idx].Metadata.Icon = *req.Icon
		}
		if req.Color != nil {
			doc.Lists[idx].Metadata.Color = *req.Color
		}
		if req.Settings != nil {
			doc.Lists[idx].Settings = *req.Settings
		}
		doc.Lists[idx].Metadata.UpdatedAt = time.Now().UTC()
		updated = doc.Lists[idx]
		return nil
	})
	if err != nil {
		return List{}, err
	}
	return updated, nil
}

// Delete implements [Store.Delete].
func (s *FileStore) Delete(ctx context.Context, id string) (bool, error) {
	removed := false
	err := s.mutate(func(doc *document) error {
		idx := indexOf(doc.Lists, id)
		if idx < 0 {
			return nil
		}
		doc.Lists = append(doc.Lists[:idx], doc.Lists[idx+1:]...)
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// ReplaceItems implements [Store.ReplaceItems].
func (s *FileStore) ReplaceItems(ctx context.Context, id string, items []Item) (List, error) {
	var updated List
	err := s.mutate(func(doc *document) error {
		idx := indexOf(doc.Lists, id)
		if idx < 0 {
			return ErrNotFound
		}
		if items == nil {
			items = []Item{}
		}
		doc.Lists[idx].Items = items
		doc.Lists[idx].Metadata.UpdatedAt = time.Now().UTC()
		updated = doc.Lists[idx]
		return nil
	})
	if err != nil {
		return List{}, err
	}
	return updated, nil
}

// AddItem implements [Store.AddItem].
func (s *FileStore) AddItem(ctx context.Context, id string, item Item) (Item, error) {
	var added Item
	err := s.mutate(func(doc *document) error {
		idx := indexOf(doc.Lists, id)
		if idx < 0 {
			return ErrNotFound
		}
		l := &doc.Lists[idx]
		if !l.Settings.AllowDuplicates {
			for _, existing := range l.Items {
				if strings.EqualFold(existing.Text, item.Text) {
					return ErrDuplicateItem
				}
			}
		}

		now := time.Now().UTC()
		added = item
		added.ID = uuid.NewString()
		added.CreatedAt = now
		added.UpdatedAt = now
		l.Items = append(l.Items, added)
		l.Metadata.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	return added, nil
}

// UpdateItem implements [Store.UpdateItem]. ID and CreatedAt survive any
// caller-supplied values.
func (s *FileStore) UpdateItem(ctx context.Context, id, itemID string, upd ItemUpdate) (Item, error) {
	var updated Item
	err := s.mutate(func(doc *document) error {
		idx := indexOf(doc.Lists, id)
		if idx < 0 {
			return ErrNotFound
		}
		l := &doc.Lists[idx]
		for i := range l.Items {
			if l.Items[i].ID != itemID {
				continue
			}
			if upd.Text != nil {
				l.Items[i].Text = *upd.Text
			}
			if upd.Completed != nil {
				l.Items[i].Completed = *upd.Completed
			}
			if upd.Metadata != nil {
				l.Items[i].Metadata = upd.Metadata
			}
			l.Items[i].UpdatedAt = time.Now().UTC()
			l.Metadata.UpdatedAt = l.Items[i].UpdatedAt
			updated = l.Items[i]
			return nil
		}
		return ErrNotFound
	})
	if err != nil {
		return Item{}, err
	}
	return updated, nil
}

// DeleteItem implements [Store.DeleteItem].
func (s *FileStore) DeleteItem(ctx context.Context, id, itemID string) error {
	return s.mutate(func(doc *document) error {
		idx := indexOf(doc.Lists, id)
		if idx < 0 {
			return ErrNotFound
		}
		l := &doc.Lists[idx]
		for i := range l.Items {
			if l.Items[i].ID == itemID {
				l.Items = append(l.Items[:i], l.Items[i+1:]...)
				l.Metadata.UpdatedAt = time.Now().UTC()
				return nil
			}
		}
		return ErrNotFound
	})
}

// ---- persistence ----

// mutate runs one locked read-modify-write cycle: load the document, apply
// fn, and persist. Domain errors from fn abort before anything is written.
func (s *FileStore) mutate(fn func(*document) error) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("%w: lock: %v", ErrStorage, err)
	}
	defer s.lock.Unlock()

	doc, err := s.load()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if err := fn(doc); err != nil {
		return err
	}

	if err := s.save(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// load reads the document from disk. A missing file yields an empty document.
func (s *FileStore) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &document{Lists: []List{}, Version: documentVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", s.path, err)
	}
	if len(data) == 0 {
		return &document{Lists: []List{}, Version: documentVersion}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %q: %w", s.path, err)
	}
	if doc.Lists == nil {
		doc.Lists = []List{}
	}
	return &doc, nil
}

// save backs up the current non-empty document, then atomically rewrites it
// (write to a temp file, then rename).
func (s *FileStore) save(doc *document) error {
	if err := s.backup(); err != nil {
		return err
	}

	doc.LastUpdated = time.Now().UTC()
	doc.Version = documentVersion

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// backup copies the current document to the backup directory when it holds
// at least one list, then prunes backups beyond the retention count,
// oldest first. A flawed wholesale replace is thus always recoverable from
// the last good copy.
func (s *FileStore) backup() error {
	current, err := s.load()
	if err != nil {
		// Nothing recoverable to back up.
		slog.Warn("list store: skipping backup of unreadable document", "path", s.path, "err", err)
		return nil
	}
	if len(current.Lists) == 0 {
		return nil
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read document for backup: %w", err)
	}

	name := fmt.Sprintf("lists-%s.json", time.Now().UTC().Format("20060102-150405.000000000"))
	if err := os.WriteFile(filepath.Join(s.backupDir, name), data, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	pruneBackups(s.backupDir, "lists-", s.retention)
	return nil
}

// pruneBackups removes the oldest backups with the given name prefix beyond
// the retention count. Failures are logged, never fatal: pruning is
// housekeeping.
func pruneBackups(dir, prefix string, retention int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("list store: read backup dir", "err", err)
		return
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= retention {
		return
	}

	// Timestamped names sort chronologically.
	sort.Strings(names)
	for _, name := range names[:len(names)-retention] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			slog.Warn("list store: prune backup", "backup", name, "err", err)
		}
	}
}

// indexOf returns the position of the list with the given ID, or -1.
func indexOf(lists []List, id string) int {
	for i, l := range lists {
		if l.ID == id {
			return i
		}
	}
	return -1
}
