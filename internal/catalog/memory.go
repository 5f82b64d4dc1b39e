package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	dErrors "libraflow/pkg/domainerrors"
)

// MemoryStore is an in-process Store. Get returns copies so callers never
// alias stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]Item)}
}

func (s *MemoryStore) Create(_ context.Context, item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; ok {
		return dErrors.Newf(dErrors.CodeConflict, "item %s already exists", item.ID)
	}
	s.items[item.ID] = *item
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "item %s not found", id)
	}
	return &item, nil
}

func (s *MemoryStore) Update(_ context.Context, item *Item, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[item.ID]
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "item %s not found", item.ID)
	}
	if cur.Version != expectedVersion {
		return dErrors.Newf(dErrors.CodeConflict, "item %s is at version %d, expected %d", item.ID, cur.Version, expectedVersion)
	}
	s.items[item.ID] = *item
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Item, 0, len(s.items))
	for _, item := range s.items {
		item := item
		out = append(out, &item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
