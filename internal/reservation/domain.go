// Package reservation keeps the per-item FIFO of pending claims.
package reservation

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	Active    Status = "active"
	Expired   Status = "expired"
	Cancelled Status = "cancelled"
)

// DefaultHoldDays is how long a reservation stays claimable.
const DefaultHoldDays = 7

// Reservation is a (user, item) claim. Seq breaks ties between equal
// reservation dates and is assigned by the store on insert.
type Reservation struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	ItemID          uuid.UUID `json:"item_id" db:"item_id"`
	ReservationDate time.Time `json:"reservation_date" db:"reservation_date"`
	ExpiryDate      time.Time `json:"expiry_date" db:"expiry_date"`
	Status          Status    `json:"status" db:"status"`
	Seq             int64     `json:"seq" db:"seq"`
}

// Claimable reports whether r still counts towards the queue at now.
func (r *Reservation) Claimable(now time.Time) bool {
	return r.Status == Active && !r.ExpiryDate.Before(now)
}
