// internal/catalog/domain.go
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Status is the availability of an item.
type Status string

const (
	Available   Status = "available"
	CheckedOut  Status = "checked_out"
	Reserved    Status = "reserved"
	UnderReview Status = "under_review"
)

func (s Status) Valid() bool {
	switch s {
	case Available, CheckedOut, Reserved, UnderReview:
		return true
	}
	return false
}

// ItemType distinguishes catalog subtypes. Only printed books carry more than
// one copy.
type ItemType string

const (
	EBook         ItemType = "ebook"
	PrintedBook   ItemType = "printed_book"
	ResearchPaper ItemType = "research_paper"
	Audiobook     ItemType = "audiobook"
	Journal       ItemType = "journal"
)

func (t ItemType) Valid() bool {
	switch t {
	case EBook, PrintedBook, ResearchPaper, Audiobook, Journal:
		return true
	}
	return false
}

// CopyCounted reports whether the type tracks more than one physical copy.
func (t ItemType) CopyCounted() bool {
	return t == PrintedBook
}

// Item represents a book or other library item.
type Item struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Authors         string    `json:"authors" db:"authors"`
	Type            ItemType  `json:"item_type" db:"item_type"`
	Status          Status    `json:"status" db:"status"`
	CopiesAvailable int       `json:"copies_available" db:"copies_available"`
	TotalCopies     int       `json:"total_copies" db:"total_copies"`
	Damaged         bool      `json:"damaged" db:"damaged"`
	Version         int       `json:"version" db:"version"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

const (
	EventItemAdded      = "ItemAdded"
	EventItemCirculated = "ItemCirculated"

	AggregateType = "item"
)

// ItemAddedEvent is recorded when a new item enters the catalog.
type ItemAddedEvent struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Authors     string    `json:"authors"`
	Type        ItemType  `json:"item_type"`
	TotalCopies int       `json:"total_copies"`
}

// ItemCirculatedEvent is recorded for every committed circulation trigger,
// including ones that leave the status unchanged.
type ItemCirculatedEvent struct {
	Trigger         Trigger   `json:"trigger"`
	UserID          uuid.UUID `json:"user_id"`
	From            Status    `json:"from"`
	To              Status    `json:"to"`
	CopiesAvailable int       `json:"copies_available"`
	Damaged         bool      `json:"damaged"`
}
