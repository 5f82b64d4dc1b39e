package circulation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraflow/internal/catalog"
	"libraflow/internal/notify"
	"libraflow/internal/policy"
	"libraflow/internal/reservation"
)

func TestScanDueDateRemindersOnce(t *testing.T) {
	f := newFixture(t)
	book := f.addItem(t, catalog.EBook, 1)
	user := f.addMember(t, policy.Student)

	tx, err := f.engine.Borrow(f.ctx, book, user)
	require.NoError(t, err)

	n, err := f.engine.ScanDueDateReminders(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "not yet within lead")

	f.clock.Advance(12*24*time.Hour + time.Hour)
	n, err = f.engine.ScanDueDateReminders(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.engine.ScanDueDateReminders(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	reminders := f.bus.of(notify.DueDateApproaching)
	require.Len(t, reminders, 1)
	assert.Equal(t, user, reminders[0].UserID)
	assert.Equal(t, "Dune", reminders[0].ItemTitle)
	require.NotNil(t, reminders[0].DueDate)
	assert.Equal(t, tx.DueDate, *reminders[0].DueDate)
}

func TestScanExpiredReservations(t *testing.T) {
	f := newFixture(t)
	book := f.addItem(t, catalog.PrintedBook, 1)
	holder := f.addMember(t, policy.Student)
	waiter := f.addMember(t, policy.Researcher)

	_, err := f.engine.Borrow(f.ctx, book, holder)
	require.NoError(t, err)
	_, err = f.engine.Reserve(f.ctx, book, waiter)
	require.NoError(t, err)
	_, err = f.engine.Return(f.ctx, book, holder, false)
	require.NoError(t, err)
	require.Equal(t, catalog.Reserved, f.item(t, book).Status)

	f.clock.Advance(7*24*time.Hour + time.Second)
	n, err := f.engine.ScanExpiredReservations(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.engine.ScanExpiredReservations(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	expired := f.bus.of(notify.ReservationExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, waiter, expired[0].UserID)

	assert.Equal(t, catalog.Available, f.item(t, book).Status)
	rs, err := f.engine.Reservations(f.ctx, waiter)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, reservation.Expired, rs[0].Status)
	f.verify(t, book)
}

func TestScanExpiredLeavesCheckedOutItems(t *testing.T) {
	f := newFixture(t)
	book := f.addItem(t, catalog.PrintedBook, 1)
	holder := f.addMember(t, policy.Faculty)
	waiter := f.addMember(t, policy.Student)

	_, err := f.engine.Borrow(f.ctx, book, holder)
	require.NoError(t, err)
	_, err = f.engine.Reserve(f.ctx, book, waiter)
	require.NoError(t, err)

	f.clock.Advance(8 * 24 * time.Hour)
	n, err := f.engine.ScanExpiredReservations(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, catalog.CheckedOut, f.item(t, book).Status)
	f.verify(t, book)
}

func TestScanOverdue(t *testing.T) {
	f := newFixture(t)
	book := f.addItem(t, catalog.EBook, 1)
	user := f.addMember(t, policy.Student)

	_, err := f.engine.Borrow(f.ctx, book, user)
	require.NoError(t, err)

	f.clock.Advance(14*24*time.Hour + 3*time.Hour + 30*time.Minute)
	n, err := f.engine.ScanOverdue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.engine.ScanOverdue(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	open, err := f.ledger.OpenFor(f.ctx, user, book)
	require.NoError(t, err)
	assert.Equal(t, TxOverdue, open.Status)

	tx, err := f.engine.Return(f.ctx, book, user, false)
	require.NoError(t, err)
	assert.Equal(t, TxCompleted, tx.Status)
	assert.Equal(t, 3.5, LateFee(tx))
}

// returnAfterListing completes a loan between the reminder listing and the
// per-loan work.
type returnAfterListing struct {
	Store
	after func()
}

func (s *returnAfterListing) ListDueBy(ctx context.Context, t time.Time) ([]*Transaction, error) {
	txs, err := s.Store.ListDueBy(ctx, t)
	if s.after != nil {
		s.after()
	}
	return txs, err
}

func TestScanDueDateRemindersSkipsReturnedLoans(t *testing.T) {
	f := newFixture(t)
	store := &returnAfterListing{Store: NewMemoryStore()}
	f.ledger = NewLedger(store, f.clock, RevokeWindow)
	f.engine = NewEngine(f.items, f.members, f.events, f.queue, f.ledger, f.bus, WithClock(f.clock))
	book := f.addItem(t, catalog.EBook, 1)
	user := f.addMember(t, policy.Student)

	_, err := f.engine.Borrow(f.ctx, book, user)
	require.NoError(t, err)
	f.clock.Advance(12*24*time.Hour + time.Hour)

	store.after = func() {
		_, err := f.engine.Return(f.ctx, book, user, false)
		require.NoError(t, err)
	}
	n, err := f.engine.ScanDueDateReminders(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.bus.of(notify.DueDateApproaching))

	history, err := f.engine.History(f.ctx, user)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, TxCompleted, history[0].Status)
	assert.Nil(t, history[0].ReminderSentAt)
}

func TestScanExpiredAnnouncesNextInLine(t *testing.T) {
	f := newFixture(t)
	book := f.addItem(t, catalog.PrintedBook, 1)
	holder := f.addMember(t, policy.Student)
	lapsedA := f.addMember(t, policy.Student)
	lapsedB := f.addMember(t, policy.Researcher)
	next := f.addMember(t, policy.Student)

	_, err := f.engine.Borrow(f.ctx, book, holder)
	require.NoError(t, err)
	_, err = f.engine.Reserve(f.ctx, book, lapsedA)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.engine.Reserve(f.ctx, book, lapsedB)
	require.NoError(t, err)
	f.clock.Advance(3 * 24 * time.Hour)
	_, err = f.engine.Reserve(f.ctx, book, next)
	require.NoError(t, err)
	_, err = f.engine.Return(f.ctx, book, holder, false)
	require.NoError(t, err)

	f.clock.Advance(4*24*time.Hour + time.Hour)
	n, err := f.engine.ScanExpiredReservations(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	available := f.bus.of(notify.ReservationAvailable)
	require.Len(t, available, 1)
	assert.Equal(t, next, available[0].UserID)
	assert.Equal(t, catalog.Reserved, f.item(t, book).Status)

	_, err = f.engine.Borrow(f.ctx, book, next)
	require.NoError(t, err)
	f.verify(t, book)
}
