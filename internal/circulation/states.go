package circulation

import (
	"context"

	"libraflow/internal/catalog"
	"libraflow/internal/notify"
	"libraflow/internal/policy"
	"libraflow/internal/reservation"
	dErrors "libraflow/pkg/domainerrors"
)

// itemState is the behaviour of an item in one status. Methods mutate the
// transition's item and never commit.
type itemState interface {
	borrow(t *transition) (*Transaction, error)
	reserve(t *transition) (*reservation.Reservation, error)
	giveBack(t *transition, damaged bool) (*Transaction, error)
	reviewComplete(t *transition, resolved bool) error
}

func stateOf(s catalog.Status) itemState {
	switch s {
	case catalog.CheckedOut:
		return checkedOutState{}
	case catalog.Reserved:
		return reservedState{}
	case catalog.UnderReview:
		return underReviewState{}
	default:
		return availableState{}
	}
}

func invalid(t *transition, op string) error {
	return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot %s %q while it is %s", op, t.item.Title, t.item.Status)
}

// enqueue is shared by every state: reserving never changes copies.
func enqueue(t *transition) (*reservation.Reservation, error) {
	m, err := t.requireMember()
	if err != nil {
		return nil, err
	}
	if !policy.CanReserve(m.Role) {
		return nil, dErrors.Newf(dErrors.CodePermissionDenied, "%s members may not reserve items", m.Role)
	}
	r, created, err := t.engine.queue.Enqueue(t.ctx, t.item.ID, t.actor, t.engine.holdDays)
	if err != nil {
		return nil, err
	}
	if created {
		t.onRollback(func(ctx context.Context) error { return t.engine.queue.Discard(ctx, r) })
	}
	return r, nil
}

func notUnderReview(t *transition) error {
	return dErrors.Newf(dErrors.CodeInvalidTransition, "%q is not under review", t.item.Title)
}

type availableState struct{}

func (availableState) borrow(t *transition) (*Transaction, error) {
	if err := t.admitBorrower(); err != nil {
		return nil, err
	}
	return t.checkout()
}

func (availableState) reserve(t *transition) (*reservation.Reservation, error) {
	r, err := enqueue(t)
	if err != nil {
		return nil, err
	}
	t.item.Status = catalog.Reserved
	return r, nil
}

// giveBack on an Available item only happens for multi-copy items with
// copies still out.
func (availableState) giveBack(t *transition, damaged bool) (*Transaction, error) {
	if _, err := t.engine.ledger.OpenFor(t.ctx, t.actor, t.item.ID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, invalid(t, "return")
		}
		return nil, err
	}
	return t.checkin(damaged)
}

func (availableState) reviewComplete(t *transition, _ bool) error {
	return notUnderReview(t)
}

type checkedOutState struct{}

func (checkedOutState) borrow(t *transition) (*Transaction, error) {
	return nil, invalid(t, "borrow")
}

func (checkedOutState) reserve(t *transition) (*reservation.Reservation, error) {
	return enqueue(t)
}

func (checkedOutState) giveBack(t *transition, damaged bool) (*Transaction, error) {
	return t.checkin(damaged)
}

func (checkedOutState) reviewComplete(t *transition, _ bool) error {
	return notUnderReview(t)
}

type reservedState struct{}

// borrow lets only the head of the queue claim the item. A drained queue
// makes the item behave as Available.
func (reservedState) borrow(t *transition) (*Transaction, error) {
	head, err := t.engine.queue.NextActive(t.ctx, t.item.ID)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return availableState{}.borrow(t)
	}
	if head.UserID != t.actor {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "%q is reserved for another member", t.item.Title)
	}
	if err := t.admitBorrower(); err != nil {
		return nil, err
	}

	claimed, err := t.engine.queue.Cancel(t.ctx, t.item.ID, t.actor)
	if err != nil {
		return nil, err
	}
	t.onRollback(func(ctx context.Context) error { return t.engine.queue.Reinstate(ctx, claimed) })
	return t.checkout()
}

func (reservedState) reserve(t *transition) (*reservation.Reservation, error) {
	return enqueue(t)
}

func (reservedState) giveBack(t *transition, damaged bool) (*Transaction, error) {
	return t.checkin(damaged)
}

func (reservedState) reviewComplete(t *transition, _ bool) error {
	return notUnderReview(t)
}

type underReviewState struct{}

func (underReviewState) borrow(t *transition) (*Transaction, error) {
	return nil, invalid(t, "borrow")
}

func (underReviewState) reserve(t *transition) (*reservation.Reservation, error) {
	return enqueue(t)
}

func (underReviewState) giveBack(t *transition, _ bool) (*Transaction, error) {
	return nil, invalid(t, "return")
}

func (underReviewState) reviewComplete(t *transition, resolved bool) error {
	if !resolved {
		return nil
	}
	t.item.Damaged = false
	if err := t.settle(); err != nil {
		return err
	}
	if t.item.Status == catalog.Reserved {
		head, err := t.engine.queue.NextActive(t.ctx, t.item.ID)
		if err != nil {
			return err
		}
		if head != nil {
			t.emit(notify.ReservationAvailable, head.UserID)
		}
	}
	return nil
}
