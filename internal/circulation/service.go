// internal/circulation/service.go
package circulation

import (
	"context"

	"github.com/google/uuid"

	"libraflow/internal/reservation"
)

// Service defines the circulation operations. Engine is the implementation.
type Service interface {
	Borrow(ctx context.Context, itemID, userID uuid.UUID) (*Transaction, error)
	Reserve(ctx context.Context, itemID, userID uuid.UUID) (*reservation.Reservation, error)
	Return(ctx context.Context, itemID, userID uuid.UUID, damaged bool) (*Transaction, error)
	Revoke(ctx context.Context, itemID, userID uuid.UUID) error
	CancelReservation(ctx context.Context, itemID, userID uuid.UUID) error
	ReviewComplete(ctx context.Context, itemID, actorID uuid.UUID, resolved bool) error
	ApplyPriority(ctx context.Context, itemID, userID uuid.UUID) (bool, error)

	ScanDueDateReminders(ctx context.Context) (int, error)
	ScanExpiredReservations(ctx context.Context) (int, error)
	ScanOverdue(ctx context.Context) (int, error)

	Queue(ctx context.Context, itemID uuid.UUID) ([]*reservation.Reservation, error)
	History(ctx context.Context, userID uuid.UUID) ([]*Transaction, error)
	Reservations(ctx context.Context, userID uuid.UUID) ([]*reservation.Reservation, error)
}

var _ Service = (*Engine)(nil)
