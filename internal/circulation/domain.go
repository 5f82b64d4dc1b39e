// internal/circulation/domain.go
package circulation

import (
	"time"

	"github.com/google/uuid"
)

// TxStatus is the lifecycle of a borrowing transaction.
type TxStatus string

const (
	TxActive    TxStatus = "active"
	TxCompleted TxStatus = "completed"
	TxOverdue   TxStatus = "overdue"
)

// RevokeWindow bounds how long after a borrow it may still be revoked.
const RevokeWindow = 2 * time.Hour

// ReminderLead is how far ahead of the due date a reminder goes out.
const ReminderLead = 48 * time.Hour

// Transaction records one loan of one item to one user.
type Transaction struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	UserID         uuid.UUID  `json:"user_id" db:"user_id"`
	ItemID         uuid.UUID  `json:"item_id" db:"item_id"`
	BorrowDate     time.Time  `json:"borrow_date" db:"borrow_date"`
	DueDate        time.Time  `json:"due_date" db:"due_date"`
	ReturnDate     *time.Time `json:"return_date,omitempty" db:"return_date"`
	Status         TxStatus   `json:"status" db:"status"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty" db:"reminder_sent_at"`
}

// Open reports whether the loan still holds a copy.
func (t *Transaction) Open() bool {
	return t.Status == TxActive || t.Status == TxOverdue
}

// LateFee is the number of hours the item came back after its due date.
// Open transactions and on-time returns cost nothing.
func LateFee(t *Transaction) float64 {
	if t.ReturnDate == nil {
		return 0
	}
	late := t.ReturnDate.Sub(t.DueDate).Hours()
	if late < 0 {
		return 0
	}
	return late
}
