package circulation

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"libraflow/internal/catalog"
	"libraflow/internal/membership"
	"libraflow/internal/notify"
	"libraflow/internal/policy"
	"libraflow/internal/reservation"
	dErrors "libraflow/pkg/domainerrors"
)

// errUnchanged aborts a transition without error when there is nothing to commit.
var errUnchanged = errors.New("nothing to commit")

// transition is the working set of one operation on one item. States
// mutate item and register compensations here; the engine commits or
// rolls back.
type transition struct {
	ctx     context.Context
	engine  *Engine
	trigger catalog.Trigger
	actor   uuid.UUID
	before  catalog.Item
	item    *catalog.Item
	member  *membership.Member
	undo    []func(context.Context) error
	events  []notify.Event
}

func (t *transition) onRollback(fn func(context.Context) error) {
	t.undo = append(t.undo, fn)
}

func (t *transition) rollback() {
	if len(t.undo) > 0 {
		t.engine.metrics.rolledBack()
	}
	ctx := context.WithoutCancel(t.ctx)
	for i := len(t.undo) - 1; i >= 0; i-- {
		if err := t.undo[i](ctx); err != nil {
			t.engine.logger.ErrorContext(ctx, "compensation failed",
				"item_id", t.item.ID,
				"trigger", t.trigger,
				"error", err,
			)
		}
	}
	t.undo = nil
	t.events = nil
}

func (t *transition) emit(typ notify.EventType, userID uuid.UUID) {
	t.events = append(t.events, notify.Event{
		Type:       typ,
		UserID:     userID,
		ItemID:     t.item.ID,
		ItemTitle:  t.item.Title,
		OccurredAt: t.engine.clock.Now(),
	})
}

// requireMember loads the acting member once.
func (t *transition) requireMember() (*membership.Member, error) {
	if t.member != nil {
		return t.member, nil
	}
	m, err := t.engine.members.Get(t.ctx, t.actor)
	if err != nil {
		return nil, err
	}
	t.member = m
	return m, nil
}

// settle re-derives the status of an undamaged item from copies and queue.
func (t *transition) settle() error {
	waiting, err := t.engine.queue.Len(t.ctx, t.item.ID)
	if err != nil {
		return err
	}
	t.item.Status = catalog.Derive(t.item.CopiesAvailable, waiting)
	return nil
}

// headID returns the user at the front of the item's queue, or uuid.Nil.
func (t *transition) headID() (uuid.UUID, error) {
	head, err := t.engine.queue.NextActive(t.ctx, t.item.ID)
	if err != nil || head == nil {
		return uuid.Nil, err
	}
	return head.UserID, nil
}

// shelfHead returns the head of a Reserved item's queue when a copy is on
// the shelf for them, or nil.
func (t *transition) shelfHead() (*reservation.Reservation, error) {
	if t.item.Status != catalog.Reserved || t.item.CopiesAvailable == 0 {
		return nil, nil
	}
	return t.engine.queue.NextActive(t.ctx, t.item.ID)
}

// announceHead emits reservation_available when the shelf head is no
// longer prev.
func (t *transition) announceHead(prev uuid.UUID) error {
	head, err := t.shelfHead()
	if err != nil {
		return err
	}
	if head != nil && head.UserID != prev {
		t.emit(notify.ReservationAvailable, head.UserID)
	}
	return nil
}

// admitBorrower checks eligibility, duplicate loans and the borrow limit.
func (t *transition) admitBorrower() error {
	m, err := t.requireMember()
	if err != nil {
		return err
	}
	if !policy.CanBorrow(m.Role, t.item.Type) {
		return dErrors.Newf(dErrors.CodePermissionDenied, "%s members may not borrow %s items", m.Role, t.item.Type)
	}
	if _, err := t.engine.ledger.OpenFor(t.ctx, t.actor, t.item.ID); err == nil {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "member %s already has %q on loan", t.actor, t.item.Title)
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return err
	}
	open, err := t.engine.ledger.OpenCount(t.ctx, t.actor)
	if err != nil {
		return err
	}
	if !policy.WithinLimit(m.Role, open) {
		return dErrors.Newf(dErrors.CodePermissionDenied, "borrow limit of %d reached", policy.For(m.Role).BorrowLimit)
	}
	return nil
}

// checkout opens a loan and takes a copy. Callers run admitBorrower first.
func (t *transition) checkout() (*Transaction, error) {
	if t.item.CopiesAvailable == 0 {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "no copies of %q left", t.item.Title)
	}
	tx, err := t.engine.ledger.Open(t.ctx, t.actor, t.item.ID, policy.LoanPeriod(t.member.Role))
	if err != nil {
		return nil, err
	}
	t.onRollback(func(ctx context.Context) error { return t.engine.ledger.Discard(ctx, tx) })

	t.item.CopiesAvailable--
	if err := t.settle(); err != nil {
		return nil, err
	}
	return tx, nil
}

// checkin completes the actor's loan and puts the copy back.
func (t *transition) checkin(damaged bool) (*Transaction, error) {
	tx, err := t.engine.ledger.OpenFor(t.ctx, t.actor, t.item.ID)
	if err != nil {
		return nil, err
	}
	if t.item.CopiesAvailable >= t.item.TotalCopies {
		return nil, dErrors.Newf(dErrors.CodeInternal, "item %s has all %d copies on the shelf", t.item.ID, t.item.TotalCopies)
	}

	snapshot := *tx
	if err := t.engine.ledger.Complete(t.ctx, tx); err != nil {
		return nil, err
	}
	t.onRollback(func(ctx context.Context) error { return t.engine.ledger.Restore(ctx, snapshot, false) })

	t.item.CopiesAvailable++
	if damaged {
		t.item.Damaged = true
		t.item.Status = catalog.UnderReview
		return tx, nil
	}

	head, err := t.engine.queue.NextActive(t.ctx, t.item.ID)
	if err != nil {
		return nil, err
	}
	if err := t.settle(); err != nil {
		return nil, err
	}
	if head != nil {
		t.emit(notify.BookReturnedNotifyNext, head.UserID)
	}
	return tx, nil
}
