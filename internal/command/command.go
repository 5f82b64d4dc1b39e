// Package command wraps circulation operations as undoable commands.
package command

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"libraflow/internal/circulation"
	"libraflow/internal/reservation"
)

var (
	ErrUndoNotSupported = errors.New("undo not supported")
	ErrNothingToUndo    = errors.New("nothing to undo")
)

// Command is one user action. Undo is only called after a successful Execute.
type Command interface {
	Name() string
	Execute(ctx context.Context) error
	Undo(ctx context.Context) error
}

// Circulation is the part of the engine commands drive.
type Circulation interface {
	Borrow(ctx context.Context, itemID, userID uuid.UUID) (*circulation.Transaction, error)
	Return(ctx context.Context, itemID, userID uuid.UUID, damaged bool) (*circulation.Transaction, error)
	Reserve(ctx context.Context, itemID, userID uuid.UUID) (*reservation.Reservation, error)
	Revoke(ctx context.Context, itemID, userID uuid.UUID) error
	CancelReservation(ctx context.Context, itemID, userID uuid.UUID) error
}

type BorrowCommand struct {
	svc    Circulation
	ItemID uuid.UUID
	UserID uuid.UUID

	Transaction *circulation.Transaction
}

func NewBorrow(svc Circulation, itemID, userID uuid.UUID) *BorrowCommand {
	return &BorrowCommand{svc: svc, ItemID: itemID, UserID: userID}
}

func (c *BorrowCommand) Name() string { return "borrow" }

func (c *BorrowCommand) Execute(ctx context.Context) error {
	tx, err := c.svc.Borrow(ctx, c.ItemID, c.UserID)
	if err != nil {
		return err
	}
	c.Transaction = tx
	return nil
}

// Undo revokes the loan. Outside the revoke window it fails with
// expired_window.
func (c *BorrowCommand) Undo(ctx context.Context) error {
	if c.Transaction == nil {
		return ErrNothingToUndo
	}
	return c.svc.Revoke(ctx, c.ItemID, c.UserID)
}

type ReturnCommand struct {
	svc     Circulation
	ItemID  uuid.UUID
	UserID  uuid.UUID
	Damaged bool

	Transaction *circulation.Transaction
}

func NewReturn(svc Circulation, itemID, userID uuid.UUID, damaged bool) *ReturnCommand {
	return &ReturnCommand{svc: svc, ItemID: itemID, UserID: userID, Damaged: damaged}
}

func (c *ReturnCommand) Name() string { return "return" }

func (c *ReturnCommand) Execute(ctx context.Context) error {
	tx, err := c.svc.Return(ctx, c.ItemID, c.UserID, c.Damaged)
	if err != nil {
		return err
	}
	c.Transaction = tx
	return nil
}

func (c *ReturnCommand) Undo(context.Context) error {
	return ErrUndoNotSupported
}

type ReserveCommand struct {
	svc    Circulation
	ItemID uuid.UUID
	UserID uuid.UUID

	Reservation *reservation.Reservation
}

func NewReserve(svc Circulation, itemID, userID uuid.UUID) *ReserveCommand {
	return &ReserveCommand{svc: svc, ItemID: itemID, UserID: userID}
}

func (c *ReserveCommand) Name() string { return "reserve" }

func (c *ReserveCommand) Execute(ctx context.Context) error {
	r, err := c.svc.Reserve(ctx, c.ItemID, c.UserID)
	if err != nil {
		return err
	}
	c.Reservation = r
	return nil
}

func (c *ReserveCommand) Undo(ctx context.Context) error {
	if c.Reservation == nil {
		return ErrNothingToUndo
	}
	return c.svc.CancelReservation(ctx, c.ItemID, c.UserID)
}
