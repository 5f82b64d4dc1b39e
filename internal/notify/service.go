package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"libraflow/internal/membership"
	"libraflow/internal/platform/clock"
)

// Recipients resolves a user to an address.
type Recipients interface {
	GetMember(ctx context.Context, id uuid.UUID) (*membership.Member, error)
}

// Sender is the notification sink observers write to.
type Sender interface {
	Send(ctx context.Context, userID uuid.UUID, subject, message string) error
}

// Service records an in-app notification and queues an email for it.
type Service struct {
	store      Store
	recipients Recipients
	delivery   *Delivery
	clock      clock.Clock
	logger     *slog.Logger
}

type ServiceOption func(*Service)

func WithDelivery(d *Delivery) ServiceOption {
	return func(s *Service) { s.delivery = d }
}

func WithServiceClock(c clock.Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, recipients Recipients, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		recipients: recipients,
		clock:      clock.System{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Send(ctx context.Context, userID uuid.UUID, subject, message string) error {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Subject:   subject,
		Message:   message,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	if s.delivery == nil {
		return nil
	}
	member, err := s.recipients.GetMember(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	s.delivery.Enqueue(Mail{To: member.Email, Subject: subject, Body: message})
	return nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Notification, error) {
	return s.store.ListByUser(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.MarkRead(ctx, userID, id)
}
