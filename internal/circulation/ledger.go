package circulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"libraflow/internal/platform/clock"
	dErrors "libraflow/pkg/domainerrors"
)

// Ledger owns the borrowing transactions. It does not touch items; the
// engine adjusts copies and status around each ledger call.
type Ledger struct {
	store  Store
	clock  clock.Clock
	window time.Duration
}

// NewLedger builds a ledger. A non-positive window means RevokeWindow.
func NewLedger(store Store, c clock.Clock, window time.Duration) *Ledger {
	if window <= 0 {
		window = RevokeWindow
	}
	return &Ledger{store: store, clock: c, window: window}
}

// Open starts a loan due after loanPeriod.
func (l *Ledger) Open(ctx context.Context, userID, itemID uuid.UUID, loanPeriod time.Duration) (*Transaction, error) {
	now := l.clock.Now()
	tx := &Transaction{
		ID:         uuid.New(),
		UserID:     userID,
		ItemID:     itemID,
		BorrowDate: now,
		DueDate:    now.Add(loanPeriod),
		Status:     TxActive,
	}
	if err := l.store.Insert(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Complete closes tx as returned now.
func (l *Ledger) Complete(ctx context.Context, tx *Transaction) error {
	now := l.clock.Now()
	tx.Status = TxCompleted
	tx.ReturnDate = &now
	return l.store.Update(ctx, tx)
}

// Revoke deletes tx if it is still inside the grace window.
func (l *Ledger) Revoke(ctx context.Context, tx *Transaction) error {
	if err := l.CanRevoke(tx); err != nil {
		return err
	}
	return l.store.Delete(ctx, tx.ID)
}

// CanRevoke checks the grace window without touching storage.
func (l *Ledger) CanRevoke(tx *Transaction) error {
	if l.clock.Now().Sub(tx.BorrowDate) > l.window {
		return dErrors.Newf(dErrors.CodeExpiredWindow, "revoke window of %s has passed", l.window)
	}
	return nil
}

// Restore writes back a snapshot taken before Complete or Revoke.
func (l *Ledger) Restore(ctx context.Context, snapshot Transaction, deleted bool) error {
	if deleted {
		return l.store.Insert(ctx, &snapshot)
	}
	return l.store.Update(ctx, &snapshot)
}

// Discard removes a loan opened by a transition that did not commit.
func (l *Ledger) Discard(ctx context.Context, tx *Transaction) error {
	return l.store.Delete(ctx, tx.ID)
}

func (l *Ledger) OpenFor(ctx context.Context, userID, itemID uuid.UUID) (*Transaction, error) {
	return l.store.FindOpen(ctx, userID, itemID)
}

func (l *Ledger) OpenCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return l.store.CountOpen(ctx, userID)
}

func (l *Ledger) History(ctx context.Context, userID uuid.UUID) ([]*Transaction, error) {
	return l.store.ListByUser(ctx, userID)
}

// DueWithin lists Active loans due within lead that have not been reminded.
func (l *Ledger) DueWithin(ctx context.Context, lead time.Duration) ([]*Transaction, error) {
	return l.store.ListDueBy(ctx, l.clock.Now().Add(lead))
}

// MarkReminded stamps the reminder once on an Active loan. It reports false
// if the loan was already stamped or is no longer Active.
func (l *Ledger) MarkReminded(ctx context.Context, tx *Transaction) (bool, error) {
	now := l.clock.Now()
	ok, err := l.store.MarkReminded(ctx, tx.ID, now)
	if err != nil {
		return false, fmt.Errorf("mark reminded: %w", err)
	}
	if ok {
		tx.ReminderSentAt = &now
	}
	return ok, nil
}

// PastDue lists Active loans whose due date has passed.
func (l *Ledger) PastDue(ctx context.Context) ([]*Transaction, error) {
	return l.store.ListPastDue(ctx, l.clock.Now())
}

// MarkOverdue moves tx from Active to Overdue. It reports false if tx had
// already moved.
func (l *Ledger) MarkOverdue(ctx context.Context, tx *Transaction) (bool, error) {
	ok, err := l.store.SetStatus(ctx, tx.ID, TxActive, TxOverdue)
	if err != nil {
		return false, err
	}
	if ok {
		tx.Status = TxOverdue
	}
	return ok, nil
}
