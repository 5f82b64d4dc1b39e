package reservation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "libraflow/pkg/domainerrors"
)

type MemoryStore struct {
	mu   sync.RWMutex
	seq  int64
	rows map[uuid.UUID]Reservation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[uuid.UUID]Reservation)}
}

func (s *MemoryStore) Insert(_ context.Context, r *Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Status == Active {
		for _, row := range s.rows {
			if row.Status == Active && row.ItemID == r.ItemID && row.UserID == r.UserID {
				return dErrors.Newf(dErrors.CodeConflict, "user %s already holds an active reservation on %s", r.UserID, r.ItemID)
			}
		}
	}
	s.seq++
	r.Seq = s.seq
	s.rows[r.ID] = *r
	return nil
}

func (s *MemoryStore) FindActive(_ context.Context, itemID, userID uuid.UUID) (*Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows {
		if row.Status == Active && row.ItemID == itemID && row.UserID == userID {
			return &row, nil
		}
	}
	return nil, dErrors.Newf(dErrors.CodeNotFound, "no active reservation by %s on %s", userID, itemID)
}

func (s *MemoryStore) ListActive(_ context.Context, itemID uuid.UUID) ([]*Reservation, error) {
	return s.filter(func(r Reservation) bool { return r.Status == Active && r.ItemID == itemID }), nil
}

func (s *MemoryStore) ListDue(_ context.Context, now time.Time) ([]*Reservation, error) {
	return s.filter(func(r Reservation) bool { return r.Status == Active && r.ExpiryDate.Before(now) }), nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*Reservation, error) {
	return s.filter(func(r Reservation) bool { return r.UserID == userID }), nil
}

func (s *MemoryStore) Transition(_ context.Context, id uuid.UUID, from, to Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.Status != from {
		return false, nil
	}
	if to == Active {
		for _, other := range s.rows {
			if other.ID != id && other.Status == Active && other.ItemID == row.ItemID && other.UserID == row.UserID {
				return false, dErrors.Newf(dErrors.CodeConflict, "user %s already holds an active reservation on %s", row.UserID, row.ItemID)
			}
		}
	}
	row.Status = to
	s.rows[id] = row
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *MemoryStore) filter(keep func(Reservation) bool) []*Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Reservation
	for _, row := range s.rows {
		if keep(row) {
			row := row
			out = append(out, &row)
		}
	}
	sortFIFO(out)
	return out
}

func sortFIFO(rs []*Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].ReservationDate.Equal(rs[j].ReservationDate) {
			return rs[i].ReservationDate.Before(rs[j].ReservationDate)
		}
		return rs[i].Seq < rs[j].Seq
	})
}
