package command

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"libraflow/internal/circulation"
	"libraflow/internal/reservation"
	dErrors "libraflow/pkg/domainerrors"
)

type mockCirculation struct {
	mock.Mock
}

func (m *mockCirculation) Borrow(ctx context.Context, itemID, userID uuid.UUID) (*circulation.Transaction, error) {
	args := m.Called(ctx, itemID, userID)
	tx, _ := args.Get(0).(*circulation.Transaction)
	return tx, args.Error(1)
}

func (m *mockCirculation) Return(ctx context.Context, itemID, userID uuid.UUID, damaged bool) (*circulation.Transaction, error) {
	args := m.Called(ctx, itemID, userID, damaged)
	tx, _ := args.Get(0).(*circulation.Transaction)
	return tx, args.Error(1)
}

func (m *mockCirculation) Reserve(ctx context.Context, itemID, userID uuid.UUID) (*reservation.Reservation, error) {
	args := m.Called(ctx, itemID, userID)
	r, _ := args.Get(0).(*reservation.Reservation)
	return r, args.Error(1)
}

func (m *mockCirculation) Revoke(ctx context.Context, itemID, userID uuid.UUID) error {
	return m.Called(ctx, itemID, userID).Error(0)
}

func (m *mockCirculation) CancelReservation(ctx context.Context, itemID, userID uuid.UUID) error {
	return m.Called(ctx, itemID, userID).Error(0)
}

type panicky struct{}

func (panicky) Name() string                  { return "panicky" }
func (panicky) Execute(context.Context) error { return nil }
func (panicky) Undo(context.Context) error    { panic("boom") }

func TestBorrowUndoRevokes(t *testing.T) {
	ctx := context.Background()
	svc := &mockCirculation{}
	item, user := uuid.New(), uuid.New()
	svc.On("Borrow", mock.Anything, item, user).Return(&circulation.Transaction{ID: uuid.New()}, nil)
	svc.On("Revoke", mock.Anything, item, user).Return(nil).Once()

	inv := NewInvoker()
	require.NoError(t, inv.Execute(ctx, user, NewBorrow(svc, item, user)))
	assert.Equal(t, 1, inv.Depth(user))

	res := inv.UndoLast(ctx, user)
	assert.True(t, res.Undone)
	assert.NoError(t, res.Err)
	assert.Equal(t, "borrow", res.Command)
	assert.Zero(t, inv.Depth(user))
	svc.AssertExpectations(t)
}

func TestBorrowUndoOutsideWindow(t *testing.T) {
	ctx := context.Background()
	svc := &mockCirculation{}
	item, user := uuid.New(), uuid.New()
	svc.On("Borrow", mock.Anything, item, user).Return(&circulation.Transaction{ID: uuid.New()}, nil)
	svc.On("Revoke", mock.Anything, item, user).Return(dErrors.New(dErrors.CodeExpiredWindow, "too late"))

	inv := NewInvoker()
	require.NoError(t, inv.Execute(ctx, user, NewBorrow(svc, item, user)))

	res := inv.UndoLast(ctx, user)
	assert.False(t, res.Undone)
	assert.ErrorIs(t, res.Err, dErrors.ErrExpiredWindow)
}

func TestFailedExecuteIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	svc := &mockCirculation{}
	item, user := uuid.New(), uuid.New()
	svc.On("Borrow", mock.Anything, item, user).Return(nil, dErrors.New(dErrors.CodeInvalidTransition, "checked out"))

	inv := NewInvoker()
	err := inv.Execute(ctx, user, NewBorrow(svc, item, user))
	assert.ErrorIs(t, err, dErrors.ErrInvalidTransition)
	assert.Zero(t, inv.Depth(user))

	res := inv.UndoLast(ctx, user)
	assert.ErrorIs(t, res.Err, ErrNothingToUndo)
}

func TestReturnCannotBeUndone(t *testing.T) {
	ctx := context.Background()
	svc := &mockCirculation{}
	item, user := uuid.New(), uuid.New()
	svc.On("Return", mock.Anything, item, user, true).Return(&circulation.Transaction{}, nil)

	inv := NewInvoker()
	require.NoError(t, inv.Execute(ctx, user, NewReturn(svc, item, user, true)))

	res := inv.UndoLast(ctx, user)
	assert.ErrorIs(t, res.Err, ErrUndoNotSupported)
	assert.Equal(t, "return", res.Command)
	svc.AssertNotCalled(t, "Borrow", mock.Anything, mock.Anything, mock.Anything)
}

func TestReserveUndoCancels(t *testing.T) {
	ctx := context.Background()
	svc := &mockCirculation{}
	item, user := uuid.New(), uuid.New()
	svc.On("Reserve", mock.Anything, item, user).Return(&reservation.Reservation{ID: uuid.New()}, nil)
	svc.On("CancelReservation", mock.Anything, item, user).Return(nil)

	inv := NewInvoker()
	require.NoError(t, inv.Execute(ctx, user, NewReserve(svc, item, user)))
	res := inv.UndoLast(ctx, user)
	assert.True(t, res.Undone)
	svc.AssertCalled(t, "CancelReservation", mock.Anything, item, user)
}

func TestUndoRecoversPanics(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	inv := NewInvoker()
	require.NoError(t, inv.Execute(ctx, user, panicky{}))

	var res UndoResult
	assert.NotPanics(t, func() { res = inv.UndoLast(ctx, user) })
	assert.False(t, res.Undone)
	assert.ErrorContains(t, res.Err, "boom")
}

func TestHistoryIsBoundedAndPerUser(t *testing.T) {
	ctx := context.Background()
	svc := &mockCirculation{}
	svc.On("Reserve", mock.Anything, mock.Anything, mock.Anything).Return(&reservation.Reservation{}, nil)
	alice, bob := uuid.New(), uuid.New()

	inv := NewInvoker(WithDepth(3))
	for i := 0; i < 5; i++ {
		require.NoError(t, inv.Execute(ctx, alice, NewReserve(svc, uuid.New(), alice)))
	}
	require.NoError(t, inv.Execute(ctx, bob, NewReserve(svc, uuid.New(), bob)))

	assert.Equal(t, 3, inv.Depth(alice))
	assert.Equal(t, 1, inv.Depth(bob))
	assert.Equal(t, DefaultDepth, NewInvoker().depth)
}
