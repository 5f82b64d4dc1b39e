// Package policy maps member roles to borrowing rules. It is a lookup table,
// not a type hierarchy: every rule is data.
package policy

import (
	"time"

	"libraflow/internal/catalog"
)

// Role of a library member.
type Role string

const (
	Student    Role = "student"
	Faculty    Role = "faculty"
	Researcher Role = "researcher"
	Guest      Role = "guest"
	Librarian  Role = "librarian"
)

// Unlimited marks a role without a borrow cap.
const Unlimited = -1

// Rules are the per-role limits.
type Rules struct {
	BorrowLimit int
	LoanPeriod  time.Duration
}

const day = 24 * time.Hour

var table = map[Role]Rules{
	Student:    {BorrowLimit: 3, LoanPeriod: 14 * day},
	Faculty:    {BorrowLimit: 10, LoanPeriod: 30 * day},
	Researcher: {BorrowLimit: 5, LoanPeriod: 21 * day},
	Guest:      {BorrowLimit: 0, LoanPeriod: 0},
	Librarian:  {BorrowLimit: Unlimited, LoanPeriod: 60 * day},
}

func (r Role) Valid() bool {
	_, ok := table[r]
	return ok
}

// For returns the rules of r. Unknown roles get the Guest rules.
func For(r Role) Rules {
	if rules, ok := table[r]; ok {
		return rules
	}
	return table[Guest]
}

// LoanPeriod is how long a member of role r keeps a borrowed item.
func LoanPeriod(r Role) time.Duration {
	return For(r).LoanPeriod
}

// WithinLimit reports whether a member holding open loans may take another.
func WithinLimit(r Role, open int) bool {
	limit := For(r).BorrowLimit
	return limit == Unlimited || open < limit
}

// IsRestricted reports whether borrowing t needs a research role.
func IsRestricted(t catalog.ItemType) bool {
	return t == catalog.ResearchPaper
}

// CanBorrow: guests never; research papers only for faculty and researchers.
func CanBorrow(r Role, t catalog.ItemType) bool {
	if !r.Valid() || r == Guest {
		return false
	}
	if IsRestricted(t) {
		return r == Faculty || r == Researcher
	}
	return true
}

// CanReserve is false only for guests. Item type does not matter.
func CanReserve(r Role) bool {
	return r.Valid() && r != Guest
}

func CanEditCatalog(r Role) bool {
	return r == Librarian
}
