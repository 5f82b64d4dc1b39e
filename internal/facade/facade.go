// Package facade is the single entry point callers use for circulation.
// It applies the Faculty priority step before borrowing, routes actions
// through the undoable command invoker, and nudges the reminder scan after
// loans change.
package facade

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"libraflow/internal/catalog"
	"libraflow/internal/circulation"
	"libraflow/internal/command"
	"libraflow/internal/membership"
	"libraflow/internal/policy"
	"libraflow/internal/reservation"
	dErrors "libraflow/pkg/domainerrors"
)

// ReminderTrigger asks for an out-of-band due-date reminder scan. It must
// not block.
type ReminderTrigger interface {
	Trigger(job string) bool
}

// Members resolves the acting member for permission checks.
type Members interface {
	GetMember(ctx context.Context, id uuid.UUID) (*membership.Member, error)
}

type Facade struct {
	engine    circulation.Service
	invoker   *command.Invoker
	members   Members
	catalog   catalog.Service
	reminders ReminderTrigger
	logger    *slog.Logger
}

type Option func(*Facade)

func WithReminders(r ReminderTrigger) Option {
	return func(f *Facade) { f.reminders = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Facade) { f.logger = logger }
}

func New(engine circulation.Service, invoker *command.Invoker, members Members, catalogSvc catalog.Service, opts ...Option) *Facade {
	f := &Facade{
		engine:  engine,
		invoker: invoker,
		members: members,
		catalog: catalogSvc,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Borrow runs the priority step, then the borrow command. The priority
// step's effects stay even when the borrow is rejected.
func (f *Facade) Borrow(ctx context.Context, itemID, userID uuid.UUID) (*circulation.Transaction, error) {
	if _, err := f.engine.ApplyPriority(ctx, itemID, userID); err != nil {
		return nil, err
	}

	cmd := command.NewBorrow(f.engine, itemID, userID)
	if err := f.invoker.Execute(ctx, userID, cmd); err != nil {
		return nil, err
	}
	f.remind(ctx)
	return cmd.Transaction, nil
}

func (f *Facade) Reserve(ctx context.Context, itemID, userID uuid.UUID) (*reservation.Reservation, error) {
	cmd := command.NewReserve(f.engine, itemID, userID)
	if err := f.invoker.Execute(ctx, userID, cmd); err != nil {
		return nil, err
	}
	return cmd.Reservation, nil
}

func (f *Facade) Return(ctx context.Context, itemID, userID uuid.UUID, damaged bool) (*circulation.Transaction, error) {
	cmd := command.NewReturn(f.engine, itemID, userID, damaged)
	if err := f.invoker.Execute(ctx, userID, cmd); err != nil {
		return nil, err
	}
	f.remind(ctx)
	return cmd.Transaction, nil
}

func (f *Facade) Revoke(ctx context.Context, itemID, userID uuid.UUID) error {
	return f.engine.Revoke(ctx, itemID, userID)
}

func (f *Facade) CancelReservation(ctx context.Context, itemID, userID uuid.UUID) error {
	return f.engine.CancelReservation(ctx, itemID, userID)
}

// UndoLast never fails; the outcome is in the result.
func (f *Facade) UndoLast(ctx context.Context, userID uuid.UUID) command.UndoResult {
	return f.invoker.UndoLast(ctx, userID)
}

// ReviewComplete requires a librarian.
func (f *Facade) ReviewComplete(ctx context.Context, itemID, actorID uuid.UUID, resolved bool) error {
	if err := f.requireCatalogEditor(ctx, actorID); err != nil {
		return err
	}
	return f.engine.ReviewComplete(ctx, itemID, actorID, resolved)
}

// AddItem requires a librarian.
func (f *Facade) AddItem(ctx context.Context, actorID uuid.UUID, title, authors string, itemType catalog.ItemType, copies int) (*catalog.Item, error) {
	if err := f.requireCatalogEditor(ctx, actorID); err != nil {
		return nil, err
	}
	return f.catalog.AddItem(ctx, title, authors, itemType, copies)
}

func (f *Facade) requireCatalogEditor(ctx context.Context, actorID uuid.UUID) error {
	actor, err := f.members.GetMember(ctx, actorID)
	if err != nil {
		return err
	}
	if !policy.CanEditCatalog(actor.Role) {
		return dErrors.Newf(dErrors.CodePermissionDenied, "%s members may not edit the catalog", actor.Role)
	}
	return nil
}

func (f *Facade) remind(ctx context.Context) {
	if f.reminders == nil {
		return
	}
	if !f.reminders.Trigger(circulation.JobReminders) {
		f.logger.DebugContext(ctx, "reminder scan already pending")
	}
}
