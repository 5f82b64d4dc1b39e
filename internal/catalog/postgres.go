package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	dErrors "libraflow/pkg/domainerrors"
)

// PostgresStore keeps the item read model in the items table.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, item *Item) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO items (id, title, authors, item_type, status, copies_available, total_copies, damaged, version, created_at, updated_at)
		VALUES (:id, :title, :authors, :item_type, :status, :copies_available, :total_copies, :damaged, :version, :created_at, :updated_at)
	`, item)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	var item Item
	err := s.db.GetContext(ctx, &item, `
		SELECT id, title, authors, item_type, status, copies_available, total_copies, damaged, version, created_at, updated_at
		FROM items
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "item %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) Update(ctx context.Context, item *Item, expectedVersion int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items
		SET status = $1, copies_available = $2, damaged = $3, version = $4, updated_at = $5
		WHERE id = $6 AND version = $7
	`, item.Status, item.CopiesAvailable, item.Damaged, item.Version, item.UpdatedAt, item.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, item.ID); err != nil {
			return err
		}
		return dErrors.Newf(dErrors.CodeConflict, "item %s changed since version %d", item.ID, expectedVersion)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Item, error) {
	var items []*Item
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, title, authors, item_type, status, copies_available, total_copies, damaged, version, created_at, updated_at
		FROM items
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}
