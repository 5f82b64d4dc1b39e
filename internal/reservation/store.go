package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists reservations. Transition is a compare-and-set on status and
// reports whether the row moved.
type Store interface {
	Insert(ctx context.Context, r *Reservation) error
	FindActive(ctx context.Context, itemID, userID uuid.UUID) (*Reservation, error)
	// ListActive returns Active rows of an item ordered by date then Seq.
	ListActive(ctx context.Context, itemID uuid.UUID) ([]*Reservation, error)
	// ListDue returns Active rows whose expiry is before now.
	ListDue(ctx context.Context, now time.Time) ([]*Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Reservation, error)
	Transition(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
