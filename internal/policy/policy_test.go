package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"libraflow/internal/catalog"
)

var itemTypes = []catalog.ItemType{
	catalog.EBook, catalog.PrintedBook, catalog.ResearchPaper, catalog.Audiobook, catalog.Journal,
}

func TestTable(t *testing.T) {
	tests := []struct {
		role   Role
		limit  int
		period time.Duration
	}{
		{Student, 3, 14 * day},
		{Faculty, 10, 30 * day},
		{Researcher, 5, 21 * day},
		{Guest, 0, 0},
		{Librarian, Unlimited, 60 * day},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			rules := For(tt.role)
			assert.Equal(t, tt.limit, rules.BorrowLimit)
			assert.Equal(t, tt.period, LoanPeriod(tt.role))
		})
	}
}

func TestGuestNeverBorrowsOrReserves(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		it := rapid.SampledFrom(itemTypes).Draw(t, "item_type")
		if CanBorrow(Guest, it) {
			t.Fatalf("guest may borrow %s", it)
		}
		if CanReserve(Guest) {
			t.Fatalf("guest may reserve")
		}
	})
}

func TestResearchPaperRestriction(t *testing.T) {
	assert.True(t, CanBorrow(Faculty, catalog.ResearchPaper))
	assert.True(t, CanBorrow(Researcher, catalog.ResearchPaper))
	assert.False(t, CanBorrow(Student, catalog.ResearchPaper))
	assert.False(t, CanBorrow(Librarian, catalog.ResearchPaper))

	assert.True(t, CanReserve(Student))
	assert.True(t, CanBorrow(Student, catalog.PrintedBook))
}

func TestWithinLimit(t *testing.T) {
	assert.True(t, WithinLimit(Student, 2))
	assert.False(t, WithinLimit(Student, 3))
	assert.True(t, WithinLimit(Librarian, 10_000))
	assert.False(t, WithinLimit(Role("visitor"), 0))
}

func TestCanEditCatalog(t *testing.T) {
	assert.True(t, CanEditCatalog(Librarian))
	assert.False(t, CanEditCatalog(Faculty))
}
