// Package notify dispatches circulation events to observers. The engine only
// guarantees emission; observers own delivery.
package notify

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	ReservationAvailable    EventType = "reservation_available"
	DueDateApproaching      EventType = "due_date_approaching"
	BookReturnedNotifyNext  EventType = "book_returned_notify_next"
	ReservationExpired      EventType = "reservation_expired"
	ReservationQueueUpdated EventType = "reservation_queue_updated"
)

// Event is the payload handed to observers. DueDate is set only for
// DueDateApproaching.
type Event struct {
	Type       EventType  `json:"type"`
	UserID     uuid.UUID  `json:"user"`
	ItemID     uuid.UUID  `json:"item"`
	ItemTitle  string     `json:"item_title,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
