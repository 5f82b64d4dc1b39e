// internal/membership/service.go
package membership

import (
	"context"

	"github.com/google/uuid"

	"libraflow/internal/policy"
)

// Service defines the interface for the membership service.
type Service interface {
	RegisterMember(ctx context.Context, name, email string, role policy.Role) (*Member, error)
	GetMember(ctx context.Context, id uuid.UUID) (*Member, error)
	ChangeRole(ctx context.Context, id uuid.UUID, role policy.Role) error
}
