package list

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the lists table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
//
// Items live as a JSONB array on the owning list row: the item collection is
// always read and replaced as a unit (the whole-list-replace contract), so a
// separate items table would buy nothing but join overhead.
const Schema = `
CREATE TABLE IF NOT EXISTS lists (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL DEFAULT 'custom',
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon        TEXT NOT NULL DEFAULT '',
    color       TEXT NOT NULL DEFAULT '',
    settings    JSONB NOT NULL DEFAULT '{}',
    items       JSONB NOT NULL DEFAULT '[]',
    position    BIGINT GENERATED ALWAYS AS IDENTITY,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_lists_name_ci ON lists(lower(name));
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL, for deployments where the
// single-writer assumption of [FileStore] does not hold. The case-insensitive
// unique index on name enforces the duplicate-name invariant at the database
// level, and per-row updates replace the whole-document rewrite.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] on the given connection or pool.
// The caller is responsible for calling [PostgresStore.Migrate] to ensure the
// schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the lists table and indexes if
// they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("list: migrate: %w", err)
	}
	return nil
}

const listColumns = `id, type, name, description, icon, color, settings, items, created_at, updated_at`

// GetAll implements [Store.GetAll]. Insertion order follows the identity column.
func (s *PostgresStore) GetAll(ctx context.Context) []List {
	rows, err := s.db.Query(ctx, `SELECT `+listColumns+` FROM lists ORDER BY position`)
	if err != nil {
		slog.Warn("list store: query all lists, treating as empty", "err", err)
		return []List{}
	}
	defer rows.Close()

	lists := []List{}
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			slog.Warn("list store: scan list row", "err", err)
			return []List{}
		}
		lists = append(lists, l)
	}
	if rows.Err() != nil {
		slog.Warn("list store: iterate list rows", "err", rows.Err())
		return []List{}
	}
	return lists
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, id string) (List, error) {
	row := s.db.QueryRow(ctx, `SELECT `+listColumns+` FROM lists WHERE id = $1`, id)
	l, err := scanList(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return List{}, ErrNotFound
	}
	if err != nil {
		return List{}, fmt.Errorf("%w: get: %v", ErrStorage, err)
	}
	return l, nil
}

// Create implements [Store.Create].
func (s *PostgresStore) Create(ctx context.Context, req CreateRequest) (List, error) {
	settings := Settings{}
	if req.Settings != nil {
		settings = *req.Settings
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return List{}, fmt.Errorf("%w: marshal settings: %v", ErrStorage, err)
	}

	created := List{
		ID:   uuid.NewString(),
		Type: req.Type,
		Metadata: Metadata{
			Name:        req.Name,
			Description: req.Description,
			Icon:        req.Icon,
			Color:       req.Color,
		},
		Items:    []Item{},
		Settings: settings,
	}

	const query = `
		INSERT INTO lists (id, type, name, description, icon, color, settings, items)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'[]')
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		created.ID, created.Type, req.Name, req.Description, req.Icon, req.Color, settingsJSON,
	).Scan(&created.Metadata.CreatedAt, &created.Metadata.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return List{}, ErrDuplicateName
		}
		return List{}, fmt.Errorf("%w: create: %v", ErrStorage, err)
	}
	return created, nil
}

// Update implements [Store.Update].
func (s *PostgresStore) Update(ctx context.Context, id string, req UpdateRequest) (List, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return List{}, err
	}

	if req.Name != nil {
		current.Metadata.Name = *req.Name
	}
	if req.Description != nil {
		current.Metadata.Description = *req.Description
	}
	if req.Icon != nil {
		current.Metadata.Icon = *req.Icon
	}
	if req.Color != nil {
		current.Metadata.Color = *req.Color
	}
	if req.Settings != nil {
		current.Settings = *req.Settings
	}

	settingsJSON, err := json.Marshal(current.Settings)
	if err != nil {
		return List{}, fmt.Errorf("%w: marshal settings: %v", ErrStorage, err)
	}

	const query = `
		UPDATE lists
		SET name = $2, description = $3, icon = $4, color = $5, settings = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err = s.db.QueryRow(ctx, query,
		id, current.Metadata.Name, current.Metadata.Description,
		current.Metadata.Icon, current.Metadata.Color, settingsJSON,
	).Scan(&current.Metadata.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return List{}, ErrNotFound
	}
	if err != nil {
		if isDuplicateKeyError(err) {
			return List{}, ErrDuplicateName
		}
		return List{}, fmt.Errorf("%w: update: %v", ErrStorage, err)
	}
	return current, nil
}

// Delete implements [Store.Delete]. Items live on the deleted row, so no
// separate cleanup is needed.
func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM lists WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("%w: delete: %v", ErrStorage, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReplaceItems implements [Store.ReplaceItems].
func (s *PostgresStore) ReplaceItems(ctx context.Context, id string, items []Item) (List, error) {
	if items == nil {
		items = []Item{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return List{}, fmt.Errorf("%w: marshal items: %v", ErrStorage, err)
	}

	tag, err := s.db.Exec(ctx, `UPDATE lists SET items = $2, updated_at = now() WHERE id = $1`, id, itemsJSON)
	if err != nil {
		return List{}, fmt.Errorf("%w: replace items: %v", ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return List{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

// AddItem implements [Store.AddItem].
func (s *PostgresStore) AddItem(ctx context.Context, id string, item Item) (Item, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}

	if !current.Settings.AllowDuplicates {
		for _, existing := range current.Items {
			if strings.EqualFold(existing.Text, item.Text) {
				return Item{}, ErrDuplicateItem
			}
		}
	}

	now := time.Now().UTC()
	item.ID = uuid.NewString()
	item.CreatedAt = now
	item.UpdatedAt = now

	if _, err := s.ReplaceItems(ctx, id, append(current.Items, item)); err != nil {
		return Item{}, err
	}
	return item, nil
}

// UpdateItem implements [Store.UpdateItem].
func (s *PostgresStore) UpdateItem(ctx context.Context, id, itemID string, upd ItemUpdate) (Item, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}

	for i := range current.Items {
		if current.Items[i].ID != itemID {
			continue
		}
		if upd.Text != nil {
			current.Items[i].Text = *upd.Text
		}
		if upd.Completed != nil {
			current.Items[i].Completed = *upd.Completed
		}
		if upd.Metadata != nil {
			current.Items[i].Metadata = upd.Metadata
		}
		current.Items[i].UpdatedAt = time.Now().UTC()
		if _, err := s.ReplaceItems(ctx, id, current.Items); err != nil {
			return Item{}, err
		}
		return current.Items[i], nil
	}
	return Item{}, ErrNotFound
}

// DeleteItem implements [Store.DeleteItem].
func (s *PostgresStore) DeleteItem(ctx context.Context, id, itemID string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	for i := range current.Items {
		if current.Items[i].ID == itemID {
			items := append(current.Items[:i], current.Items[i+1:]...)
			_, err := s.ReplaceItems(ctx, id, items)
			return err
		}
	}
	return ErrNotFound
}

// scanList scans one lists row into a List. JSONB columns arrive as raw bytes.
func scanList(row pgx.Row) (List, error) {
	var (
		l            List
		settingsJSON []byte
		itemsJSON    []byte
	)
	err := row.Scan(
		&l.ID, &l.Type, &l.Metadata.Name, &l.Metadata.Description,
		&l.Metadata.Icon, &l.Metadata.Color, &settingsJSON, &itemsJSON,
		&l.Metadata.CreatedAt, &l.Metadata.UpdatedAt,
	)
	if err != nil {
		return List{}, err
	}
	if err := json.Unmarshal(settingsJSON, &l.Settings); err != nil {
		return List{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &l.Items); err != nil {
		return List{}, fmt.Errorf("unmarshal items: %w", err)
	}
	if l.Items == nil {
		l.Items = []Item{}
	}
	return l, nil
}

// isDuplicateKeyError reports whether err is a PostgreSQL unique-violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
