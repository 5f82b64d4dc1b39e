package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "libraflow/pkg/domainerrors"
)

// NewItem builds an Available item. Copy counts are only honoured for
// printed books; every other type is a single copy.
func NewItem(title, authors string, itemType ItemType, copies int, now time.Time) (*Item, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if !itemType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown item type %q", itemType)
	}

	if !itemType.CopyCounted() {
		copies = 1
	}
	if copies < 1 {
		return nil, dErrors.Newf(dErrors.CodeValidation, "printed books need at least one copy, got %d", copies)
	}

	return &Item{
		ID:              uuid.New(),
		Title:           title,
		Authors:         strings.TrimSpace(authors),
		Type:            itemType,
		Status:          Available,
		CopiesAvailable: copies,
		TotalCopies:     copies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
