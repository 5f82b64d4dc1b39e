package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"libraflow/internal/platform/clock"
	dErrors "libraflow/pkg/domainerrors"
)

// Queue is the FIFO view over a Store. Callers serialize mutations per item.
type Queue struct {
	store Store
	clock clock.Clock
}

func NewQueue(store Store, c clock.Clock) *Queue {
	return &Queue{store: store, clock: c}
}

// Enqueue adds a claim held for holdDays. If the user already has an Active
// row on the item it is returned unchanged and created is false.
func (q *Queue) Enqueue(ctx context.Context, itemID, userID uuid.UUID, holdDays int) (r *Reservation, created bool, err error) {
	existing, err := q.store.FindActive(ctx, itemID, userID)
	if err == nil {
		return existing, false, nil
	}
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, false, err
	}

	now := q.clock.Now()
	r = &Reservation{
		ID:              uuid.New(),
		UserID:          userID,
		ItemID:          itemID,
		ReservationDate: now,
		ExpiryDate:      now.Add(time.Duration(holdDays) * 24 * time.Hour),
		Status:          Active,
	}
	if err := q.store.Insert(ctx, r); err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// Cancel marks the user's Active reservation Cancelled.
func (q *Queue) Cancel(ctx context.Context, itemID, userID uuid.UUID) (*Reservation, error) {
	r, err := q.store.FindActive(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}
	ok, err := q.store.Transition(ctx, r.ID, Active, Cancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "reservation %s is no longer active", r.ID)
	}
	r.Status = Cancelled
	return r, nil
}

// Reinstate moves a cancelled or expired reservation back to Active.
func (q *Queue) Reinstate(ctx context.Context, r *Reservation) error {
	ok, err := q.store.Transition(ctx, r.ID, r.Status, Active)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("reservation %s is no longer %s", r.ID, r.Status)
	}
	r.Status = Active
	return nil
}

// Discard removes a row created by Enqueue that must not survive.
func (q *Queue) Discard(ctx context.Context, r *Reservation) error {
	return q.store.Delete(ctx, r.ID)
}

// Active lists the claimable reservations of an item, first in line first.
func (q *Queue) Active(ctx context.Context, itemID uuid.UUID) ([]*Reservation, error) {
	rows, err := q.store.ListActive(ctx, itemID)
	if err != nil {
		return nil, err
	}
	now := q.clock.Now()
	out := rows[:0]
	for _, r := range rows {
		if r.Claimable(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

// NextActive returns the head of the queue, or nil when nobody is waiting.
func (q *Queue) NextActive(ctx context.Context, itemID uuid.UUID) (*Reservation, error) {
	rows, err := q.Active(ctx, itemID)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (q *Queue) Len(ctx context.Context, itemID uuid.UUID) (int, error) {
	rows, err := q.Active(ctx, itemID)
	return len(rows), err
}

// Position is the 1-based place of userID in the queue, 0 if absent.
func (q *Queue) Position(ctx context.Context, itemID, userID uuid.UUID) (int, error) {
	rows, err := q.Active(ctx, itemID)
	if err != nil {
		return 0, err
	}
	for i, r := range rows {
		if r.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, nil
}

// Due lists Active rows past their expiry across all items.
func (q *Queue) Due(ctx context.Context) ([]*Reservation, error) {
	return q.store.ListDue(ctx, q.clock.Now())
}

// Expire moves r from Active to Expired. It reports false when another
// caller got there first.
func (q *Queue) Expire(ctx context.Context, r *Reservation) (bool, error) {
	ok, err := q.store.Transition(ctx, r.ID, Active, Expired)
	if ok {
		r.Status = Expired
	}
	return ok, err
}

func (q *Queue) ForUser(ctx context.Context, userID uuid.UUID) ([]*Reservation, error) {
	return q.store.ListByUser(ctx, userID)
}
