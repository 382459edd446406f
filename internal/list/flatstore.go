package list

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// flatVersion is the document version of the legacy single-grocery-list format.
const flatVersion = "1.0"

// flatDocument is the on-disk shape of the legacy grocery store: bare item
// texts, no per-item identity.
type flatDocument struct {
	Items       []string  `json:"items"`
	LastUpdated time.Time `json:"lastUpdated"`
	Version     string    `json:"version"`
}

// FlatStore persists the legacy single grocery list as a flat JSON document.
// It backs the /api/grocery surface and the one-shot migration into the
// multi-list store. Same discipline as [FileStore]: no cache, file lock
// around read-modify-write, atomic rewrite, backup of the non-empty document
// before every overwrite. The legacy reconciliation path replaces the whole
// list wholesale, so a flawed model response must stay recoverable here too.
type FlatStore struct {
	path      string
	backupDir string
	retention int
	lock      *flock.Flock
}

// FlatOption is a functional option for configuring a [FlatStore].
type FlatOption func(*FlatStore)

// WithFlatBackupDir overrides the backup directory. Default: a "backups"
// directory next to the document file.
func WithFlatBackupDir(dir string) FlatOption {
	return func(s *FlatStore) {
		s.backupDir = dir
	}
}

// WithFlatBackupRetention sets how many backups are kept. Default: 10.
func WithFlatBackupRetention(n int) FlatOption {
	return func(s *FlatStore) {
		if n > 0 {
			s.retention = n
		}
	}
}

// NewFlatStore creates a [FlatStore] persisting to path.
func NewFlatStore(path string, opts ...FlatOption) (*FlatStore, error) {
	s := &FlatStore{
		path:      path,
		backupDir: filepath.Join(filepath.Dir(path), "backups"),
		retention: defaultBackupRetention,
		lock:      flock.New(path + ".lock"),
	}
	for _, o := range opts {
		o(s)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("list: create flat store dir: %w", err)
	}
	return s, nil
}

// Items returns the current grocery item texts. Fail-open on read errors.
func (s *FlatStore) Items(ctx context.Context) []string {
	if err := s.lock.RLock(); err != nil {
		slog.Warn("flat store: acquire read lock", "err", err)
		return []string{}
	}
	defer s.lock.Unlock()

	doc, err := s.load()
	if err != nil {
		slog.Warn("flat store: read document, treating as empty", "path", s.path, "err", err)
		return []string{}
	}
	return doc.Items
}

// Replace substitutes the whole item collection.
func (s *FlatStore) Replace(ctx context.Context, items []string) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("%w: lock: %v", ErrStorage, err)
	}
	defer s.lock.Unlock()

	if items == nil {
		items = []string{}
	}
	return s.save(&flatDocument{Items: items})
}

// Clear empties the list.
func (s *FlatStore) Clear(ctx context.Context) error {
	return s.Replace(ctx, []string{})
}

// load reads the flat document; a missing file yields an empty document.
func (s *FlatStore) load() (*flatDocument, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &flatDocument{Items: []string{}, Version: flatVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", s.path, err)
	}
	if len(data) == 0 {
		return &flatDocument{Items: []string{}, Version: flatVersion}, nil
	}

	var doc flatDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %q: %w", s.path, err)
	}
	if doc.Items == nil {
		doc.Items = []string{}
	}
	return &doc, nil
}

// save backs up the current non-empty document, then atomically rewrites it.
func (s *FlatStore) save(doc *flatDocument) error {
	if err := s.backup(); err != nil {
		return err
	}

	doc.LastUpdated = time.Now().UTC()
	doc.Version = flatVersion

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal flat document: %v", ErrStorage, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write temp file: %v", ErrStorage, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename temp file: %v", ErrStorage, err)
	}
	return nil
}

// backup copies the current document to the backup directory when it holds
// at least one item, then prunes backups beyond the retention count, oldest
// first.
func (s *FlatStore) backup() error {
	current, err := s.load()
	if err != nil {
		// Nothing recoverable to back up.
		slog.Warn("flat store: skipping backup of unreadable document", "path", s.path, "err", err)
		return nil
	}
	if len(current.Items) == 0 {
		return nil
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return fmt.Errorf("%w: create backup dir: %v", ErrStorage, err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: read document for backup: %v", ErrStorage, err)
	}

	name := fmt.Sprintf("grocery-%s.json", time.Now().UTC().Format("20060102-150405.000000000"))
	if err := os.WriteFile(filepath.Join(s.backupDir, name), data, 0o644); err != nil {
		return fmt.Errorf("%w: write backup: %v", ErrStorage, err)
	}

	pruneBackups(s.backupDir, "grocery-", s.retention)
	return nil
}
