// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"libraflow/internal/catalog"
	"libraflow/internal/membership"
	"libraflow/internal/notify"
	"libraflow/internal/platform/clock"
	"libraflow/internal/platform/lock"
	"libraflow/internal/policy"
	"libraflow/internal/reservation"
	dErrors "libraflow/pkg/domainerrors"
	"libraflow/pkg/eventstore"
)

// Engine runs every circulation operation under the item's lock, through
// the item's current state, and commits the result to the item store and
// the item's history before notifying observers.
type Engine struct {
	items   catalog.Store
	members membership.Store
	events  eventstore.Store
	queue   *reservation.Queue
	ledger  *Ledger
	bus     notify.Notifier

	locker       lock.Locker
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *Metrics
	tracer       trace.Tracer
	holdDays     int
	reminderLead time.Duration
}

type Option func(*Engine)

// WithLocker replaces the in-process item lock, e.g. with lock.Redis.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithClock must match the clock given to the queue and ledger.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithHoldDays(days int) Option {
	return func(e *Engine) { e.holdDays = days }
}

func WithReminderLead(d time.Duration) Option {
	return func(e *Engine) { e.reminderLead = d }
}

// NewEngine wires the engine. bus may be nil.
func NewEngine(items catalog.Store, members membership.Store, events eventstore.Store, queue *reservation.Queue, ledger *Ledger, bus notify.Notifier, opts ...Option) *Engine {
	e := &Engine{
		items:        items,
		members:      members,
		events:       events,
		queue:        queue,
		ledger:       ledger,
		bus:          bus,
		locker:       lock.NewLocal(),
		clock:        clock.System{},
		logger:       slog.Default(),
		tracer:       otel.Tracer("libraflow/circulation"),
		holdDays:     reservation.DefaultHoldDays,
		reminderLead: ReminderLead,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Borrow checks out a copy of itemID to userID.
func (e *Engine) Borrow(ctx context.Context, itemID, userID uuid.UUID) (*Transaction, error) {
	var tx *Transaction
	err := e.withMemberLock(ctx, userID, func() error {
		return e.run(ctx, catalog.TriggerBorrow, itemID, userID, func(t *transition, st itemState) error {
			var err error
			tx, err = st.borrow(t)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Reserve puts userID in the item's queue. Reserving twice returns the
// existing reservation.
func (e *Engine) Reserve(ctx context.Context, itemID, userID uuid.UUID) (*reservation.Reservation, error) {
	var r *reservation.Reservation
	err := e.run(ctx, catalog.TriggerReserve, itemID, userID, func(t *transition, st itemState) error {
		var err error
		r, err = st.reserve(t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Return completes userID's loan of itemID. A damaged return sends the item
// to review.
func (e *Engine) Return(ctx context.Context, itemID, userID uuid.UUID, damaged bool) (*Transaction, error) {
	var tx *Transaction
	err := e.run(ctx, catalog.TriggerReturn, itemID, userID, func(t *transition, st itemState) error {
		var err error
		tx, err = st.giveBack(t, damaged)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Revoke deletes a loan made within the revoke window and forces the item
// back to Available whatever the queue holds.
func (e *Engine) Revoke(ctx context.Context, itemID, userID uuid.UUID) error {
	return e.run(ctx, catalog.TriggerRevoke, itemID, userID, func(t *transition, _ itemState) error {
		tx, err := e.ledger.OpenFor(t.ctx, userID, itemID)
		if err != nil {
			return err
		}
		if err := e.ledger.Revoke(t.ctx, tx); err != nil {
			return err
		}
		snapshot := *tx
		t.onRollback(func(ctx context.Context) error { return e.ledger.Restore(ctx, snapshot, true) })

		if t.item.CopiesAvailable < t.item.TotalCopies {
			t.item.CopiesAvailable++
		}
		t.item.Status = catalog.Available
		return nil
	})
}

// CancelReservation withdraws userID from the queue. A Reserved item whose
// queue drains becomes Available; otherwise a new head is told a copy waits.
func (e *Engine) CancelReservation(ctx context.Context, itemID, userID uuid.UUID) error {
	return e.run(ctx, catalog.TriggerCancel, itemID, userID, func(t *transition, _ itemState) error {
		prev, err := t.headID()
		if err != nil {
			return err
		}
		r, err := e.queue.Cancel(t.ctx, itemID, userID)
		if err != nil {
			return err
		}
		t.onRollback(func(ctx context.Context) error { return e.queue.Reinstate(ctx, r) })
		if t.item.Status != catalog.Reserved {
			return nil
		}
		if err := t.settle(); err != nil {
			return err
		}
		return t.announceHead(prev)
	})
}

// ReviewComplete ends the review of a damaged item. Unresolved reviews keep
// the item under review.
func (e *Engine) ReviewComplete(ctx context.Context, itemID, actorID uuid.UUID, resolved bool) error {
	return e.run(ctx, catalog.TriggerReview, itemID, actorID, func(t *transition, st itemState) error {
		return st.reviewComplete(t, resolved)
	})
}

// ApplyPriority moves a Faculty member who is not first in a Reserved
// item's queue into a fresh reservation and tells the current head. It
// reports whether anything changed. The fresh reservation is dated now, so
// the member lands at the back of the queue.
func (e *Engine) ApplyPriority(ctx context.Context, itemID, userID uuid.UUID) (applied bool, err error) {
	start := time.Now()
	ctx, span := e.startSpan(ctx, "priority", itemID, userID)
	defer func() { e.finish(span, "priority", start, err) }()

	unlock, err := e.locker.Lock(ctx, itemID.String())
	if err != nil {
		return false, fmt.Errorf("lock item %s: %w", itemID, err)
	}
	defer unlock()

	item, err := e.items.Get(ctx, itemID)
	if err != nil {
		return false, err
	}
	if item.Status != catalog.Reserved {
		return false, nil
	}
	member, err := e.members.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if member.Role != policy.Faculty {
		return false, nil
	}
	head, err := e.queue.NextActive(ctx, itemID)
	if err != nil || head == nil || head.UserID == userID {
		return false, err
	}

	if _, err := e.queue.Cancel(ctx, itemID, userID); err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return false, err
	}
	if _, _, err := e.queue.Enqueue(ctx, itemID, userID, 0); err != nil {
		return false, err
	}

	e.logger.InfoContext(ctx, "priority reservation applied",
		"item_id", itemID,
		"user_id", userID,
		"displaced_head", head.UserID,
	)
	e.dispatch(ctx, notify.Event{
		Type:       notify.ReservationQueueUpdated,
		UserID:     head.UserID,
		ItemID:     itemID,
		ItemTitle:  item.Title,
		OccurredAt: e.clock.Now(),
	})
	return true, nil
}

// Queue lists the item's claimable reservations, head first.
func (e *Engine) Queue(ctx context.Context, itemID uuid.UUID) ([]*reservation.Reservation, error) {
	if _, err := e.items.Get(ctx, itemID); err != nil {
		return nil, err
	}
	return e.queue.Active(ctx, itemID)
}

// History lists a member's loans, most recent first.
func (e *Engine) History(ctx context.Context, userID uuid.UUID) ([]*Transaction, error) {
	return e.ledger.History(ctx, userID)
}

// Reservations lists every reservation a member has made.
func (e *Engine) Reservations(ctx context.Context, userID uuid.UUID) ([]*reservation.Reservation, error) {
	return e.queue.ForUser(ctx, userID)
}

// run executes apply under the item lock and commits the transition.
// apply returning errUnchanged ends the run quietly without a commit.
func (e *Engine) run(ctx context.Context, trigger catalog.Trigger, itemID, actor uuid.UUID, apply func(*transition, itemState) error) (err error) {
	start := time.Now()
	ctx, span := e.startSpan(ctx, string(trigger), itemID, actor)
	defer func() { e.finish(span, string(trigger), start, err) }()

	unlock, err := e.locker.Lock(ctx, itemID.String())
	if err != nil {
		return fmt.Errorf("lock item %s: %w", itemID, err)
	}
	defer unlock()

	item, err := e.items.Get(ctx, itemID)
	if err != nil {
		return err
	}
	t := &transition{
		ctx:     ctx,
		engine:  e,
		trigger: trigger,
		actor:   actor,
		before:  *item,
		item:    item,
	}

	if err := apply(t, stateOf(item.Status)); err != nil {
		t.rollback()
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	if err := e.commit(t); err != nil {
		t.rollback()
		return err
	}

	span.SetAttributes(
		attribute.String("item.from", string(t.before.Status)),
		attribute.String("item.to", string(t.item.Status)),
	)
	e.logger.DebugContext(ctx, "item transitioned",
		"item_id", itemID,
		"trigger", trigger,
		"from", t.before.Status,
		"to", t.item.Status,
		"copies_available", t.item.CopiesAvailable,
	)
	for _, ev := range t.events {
		e.dispatch(ctx, ev)
	}
	return nil
}

// commit writes the item and appends the transition to its history. The
// item write is compensated if the append fails.
func (e *Engine) commit(t *transition) error {
	from, to := t.before.Status, t.item.Status
	if !catalog.Allowed(t.trigger, from, to) {
		return dErrors.Newf(dErrors.CodeInternal, "%s produced %s -> %s", t.trigger, from, to)
	}
	copies := t.item.CopiesAvailable
	if copies < 0 || copies > t.item.TotalCopies || (to == catalog.CheckedOut) != (copies == 0) {
		return dErrors.Newf(dErrors.CodeInternal, "%s left %s with %d of %d copies", t.trigger, to, copies, t.item.TotalCopies)
	}

	ev, err := eventstore.NewEvent(catalog.EventItemCirculated, catalog.ItemCirculatedEvent{
		Trigger:         t.trigger,
		UserID:          t.actor,
		From:            from,
		To:              to,
		CopiesAvailable: copies,
		Damaged:         t.item.Damaged,
	})
	if err != nil {
		return fmt.Errorf("encode transition: %w", err)
	}

	t.item.Version = t.before.Version + 1
	t.item.UpdatedAt = e.clock.Now()
	if err := e.items.Update(t.ctx, t.item, t.before.Version); err != nil {
		return err
	}
	t.onRollback(func(ctx context.Context) error {
		restored := t.before
		return e.items.Update(ctx, &restored, t.item.Version)
	})

	err = e.events.AppendEvents(t.ctx, t.item.ID, catalog.AggregateType, t.before.Version, []eventstore.Event{ev})
	if errors.Is(err, eventstore.ErrConcurrencyConflict) {
		return dErrors.Wrap(err, dErrors.CodeConflict, "item history moved concurrently")
	}
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

func (e *Engine) dispatch(ctx context.Context, ev notify.Event) {
	if e.bus == nil {
		return
	}
	e.bus.Notify(ctx, ev)
	e.metrics.emitted(string(ev.Type))
}

// withMemberLock serializes a member's borrows so the borrow limit holds
// across items. It is always taken before the item lock.
func (e *Engine) withMemberLock(ctx context.Context, userID uuid.UUID, fn func() error) error {
	unlock, err := e.locker.Lock(ctx, memberLockKey(userID))
	if err != nil {
		return fmt.Errorf("lock member %s: %w", userID, err)
	}
	defer unlock()
	return fn()
}

func memberLockKey(userID uuid.UUID) string {
	return "member:" + userID.String()
}

// withItemLock runs fn while holding the item's lock.
func (e *Engine) withItemLock(ctx context.Context, itemID uuid.UUID, fn func() error) error {
	unlock, err := e.locker.Lock(ctx, itemID.String())
	if err != nil {
		return fmt.Errorf("lock item %s: %w", itemID, err)
	}
	defer unlock()
	return fn()
}

func (e *Engine) startSpan(ctx context.Context, op string, itemID, userID uuid.UUID) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "circulation."+op,
		trace.WithAttributes(
			attribute.String("item.id", itemID.String()),
			attribute.String("user.id", userID.String()),
		),
	)
}

func (e *Engine) finish(span trace.Span, op string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	e.metrics.observe(op, start, err)
}
