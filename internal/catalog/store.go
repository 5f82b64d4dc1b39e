package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Store persists the current view of items. Update is optimistic: it fails
// with a conflict unless the stored version equals expectedVersion.
type Store interface {
	Create(ctx context.Context, item *Item) error
	Get(ctx context.Context, id uuid.UUID) (*Item, error)
	Update(ctx context.Context, item *Item, expectedVersion int) error
	List(ctx context.Context) ([]*Item, error)
}
