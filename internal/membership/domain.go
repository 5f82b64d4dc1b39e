// internal/membership/domain.go
package membership

import (
	"time"

	"github.com/google/uuid"

	"libraflow/internal/policy"
)

// Member represents a library member.
type Member struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	Email     string      `json:"email" db:"email"`
	Role      policy.Role `json:"role" db:"role"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

const (
	EventMemberRegistered  = "MemberRegistered"
	EventMemberRoleChanged = "MemberRoleChanged"

	AggregateType = "member"
)

// MemberRegisteredEvent is published when a new member registers.
type MemberRegisteredEvent struct {
	ID    uuid.UUID   `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  policy.Role `json:"role"`
}

// MemberRoleChangedEvent is published when a member's role is changed.
type MemberRoleChangedEvent struct {
	ID      uuid.UUID   `json:"id"`
	OldRole policy.Role `json:"old_role"`
	NewRole policy.Role `json:"new_role"`
}
