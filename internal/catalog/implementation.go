// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"libraflow/internal/platform/clock"
	dErrors "libraflow/pkg/domainerrors"
	"libraflow/pkg/eventstore"
)

// service implements the Service interface.
type service struct {
	eventStore eventstore.Store
	store      Store
	clock      clock.Clock
	logger     *slog.Logger
}

type Option func(*service)

func WithClock(c clock.Clock) Option {
	return func(s *service) { s.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

// NewService creates a new catalog service instance.
func NewService(es eventstore.Store, store Store, opts ...Option) Service {
	s := &service{
		eventStore: es,
		store:      store,
		clock:      clock.System{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddItem creates a new item in the catalog.
func (s *service) AddItem(ctx context.Context, title, authors string, itemType ItemType, copies int) (*Item, error) {
	item, err := NewItem(title, authors, itemType, copies, s.clock.Now())
	if err != nil {
		return nil, err
	}

	event, err := eventstore.NewEvent(EventItemAdded, ItemAddedEvent{
		ID:          item.ID,
		Title:       item.Title,
		Authors:     item.Authors,
		Type:        item.Type,
		TotalCopies: item.TotalCopies,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	if err := s.eventStore.AppendEvents(ctx, item.ID, AggregateType, 0, []eventstore.Event{event}); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	item.Version = 1
	if err := s.store.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update read model: %w", err)
	}

	s.logger.InfoContext(ctx, "item added",
		"item_id", item.ID, "item_type", item.Type, "copies", item.TotalCopies)
	return item, nil
}

// GetItem retrieves an item from the catalog by its ID.
func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.store.Get(ctx, id)
}

func (s *service) ListItems(ctx context.Context) ([]*Item, error) {
	return s.store.List(ctx)
}

func (s *service) History(ctx context.Context, id uuid.UUID) ([]eventstore.Event, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.eventStore.LoadEvents(ctx, id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return events, nil
}

func (s *service) Verify(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	events, err := s.eventStore.LoadEvents(ctx, id, 0, 0)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load history: %w", err)
	}

	snap, err := Replay(events)
	if err != nil {
		return snap, dErrors.Wrap(err, dErrors.CodeInternal, "history does not replay")
	}
	if snap.Status != item.Status || snap.CopiesAvailable != item.CopiesAvailable || snap.Version != item.Version {
		return snap, dErrors.Newf(dErrors.CodeInternal,
			"item %s diverged from history: stored %s/%d@v%d, replayed %s/%d@v%d",
			id, item.Status, item.CopiesAvailable, item.Version, snap.Status, snap.CopiesAvailable, snap.Version)
	}
	return snap, nil
}
