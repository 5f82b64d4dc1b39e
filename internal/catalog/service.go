// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"

	"libraflow/pkg/eventstore"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddItem(ctx context.Context, title, authors string, itemType ItemType, copies int) (*Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	ListItems(ctx context.Context) ([]*Item, error)
	// History returns the item's recorded transitions, oldest first.
	History(ctx context.Context, id uuid.UUID) ([]eventstore.Event, error)
	// Verify replays the history and checks it against the stored item.
	Verify(ctx context.Context, id uuid.UUID) (Snapshot, error)
}
