// internal/membership/implementation.go
package membership

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"libraflow/internal/platform/clock"
	"libraflow/internal/policy"
	dErrors "libraflow/pkg/domainerrors"
	"libraflow/pkg/eventstore"
)

// service implements the Service interface.
type service struct {
	eventStore  eventstore.Store
	store       Store
	rateLimiter *rate.Limiter
	clock       clock.Clock
	logger      *slog.Logger
}

type Option func(*service)

// WithRegistrationLimit throttles RegisterMember to n per minute with the given burst.
func WithRegistrationLimit(perMinute, burst int) Option {
	return func(s *service) {
		s.rateLimiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *service) { s.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

// NewService creates a new membership service instance.
func NewService(es eventstore.Store, store Store, opts ...Option) Service {
	s := &service{
		eventStore:  es,
		store:       store,
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 30),
		clock:       clock.System{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterMember creates a new member.
func (s *service) RegisterMember(ctx context.Context, name, email string, role policy.Role) (*Member, error) {
	if !s.rateLimiter.Allow() {
		return nil, dErrors.New(dErrors.CodeRateLimited, "rate limit exceeded")
	}
	if !role.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown role %q", role)
	}

	member := &Member{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Email:     strings.TrimSpace(email),
		Role:      role,
		CreatedAt: s.clock.Now(),
	}

	event, err := eventstore.NewEvent(EventMemberRegistered, MemberRegisteredEvent{
		ID:    member.ID,
		Email: member.Email,
		Name:  member.Name,
		Role:  member.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	if err := s.store.Create(ctx, member); err != nil {
		return nil, err
	}
	if err := s.eventStore.AppendEvents(ctx, member.ID, AggregateType, 0, []eventstore.Event{event}); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	s.logger.InfoContext(ctx, "member registered", "member_id", member.ID, "role", member.Role)
	return member, nil
}

// GetMember retrieves a member by their ID.
func (s *service) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	return s.store.Get(ctx, id)
}

// ChangeRole updates a member's role. Open loans keep their due dates.
func (s *service) ChangeRole(ctx context.Context, id uuid.UUID, role policy.Role) error {
	if !role.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown role %q", role)
	}
	member, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	version, err := s.eventStore.GetCurrentVersion(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read member version: %w", err)
	}
	event, err := eventstore.NewEvent(EventMemberRoleChanged, MemberRoleChangedEvent{
		ID:      id,
		OldRole: member.Role,
		NewRole: role,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if err := s.eventStore.AppendEvents(ctx, id, AggregateType, version, []eventstore.Event{event}); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return s.store.UpdateRole(ctx, id, role)
}
