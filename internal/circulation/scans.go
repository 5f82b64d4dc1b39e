package circulation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libraflow/internal/catalog"
	"libraflow/internal/notify"
	"libraflow/internal/reservation"
)

// Scan job names, also used as metric labels and CLI arguments.
const (
	JobReminders = "reminders"
	JobExpired   = "expired"
	JobOverdue   = "overdue"
)

// ScanDueDateReminders emits due_date_approaching once per Active loan due
// within the reminder lead.
func (e *Engine) ScanDueDateReminders(ctx context.Context) (n int, err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "circulation.scan."+JobReminders)
	defer func() { e.finishScan(span, JobReminders, start, n, err) }()

	txs, err := e.ledger.DueWithin(ctx, e.reminderLead)
	if err != nil {
		return 0, err
	}
	var errs []error
	for _, tx := range txs {
		err := e.withItemLock(ctx, tx.ItemID, func() error {
			item, err := e.items.Get(ctx, tx.ItemID)
			if err != nil {
				return err
			}
			ok, err := e.ledger.MarkReminded(ctx, tx)
			if err != nil || !ok {
				return err
			}
			due := tx.DueDate
			e.dispatch(ctx, notify.Event{
				Type:       notify.DueDateApproaching,
				UserID:     tx.UserID,
				ItemID:     tx.ItemID,
				ItemTitle:  item.Title,
				DueDate:    &due,
				OccurredAt: e.clock.Now(),
			})
			n++
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return n, errors.Join(errs...)
}

// ScanExpiredReservations expires every Active reservation past its expiry
// date, emits reservation_expired for each, and re-derives Reserved items
// whose queue drained. A member left at the head of a Reserved item with a
// copy on the shelf gets reservation_available once per scan.
func (e *Engine) ScanExpiredReservations(ctx context.Context) (n int, err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "circulation.scan."+JobExpired)
	defer func() { e.finishScan(span, JobExpired, start, n, err) }()

	due, err := e.queue.Due(ctx)
	if err != nil {
		return 0, err
	}
	announced := make(map[uuid.UUID]uuid.UUID)
	var errs []error
	for _, r := range due {
		expired, err := e.expire(ctx, r, announced)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if expired {
			n++
		}
	}
	return n, errors.Join(errs...)
}

// expire lapses r. announced maps items to the reservation already told it
// is first, so a head behind several lapsed rows is told once.
func (e *Engine) expire(ctx context.Context, r *reservation.Reservation, announced map[uuid.UUID]uuid.UUID) (bool, error) {
	expired := false
	var head *reservation.Reservation
	err := e.run(ctx, catalog.TriggerExpire, r.ItemID, r.UserID, func(t *transition, _ itemState) error {
		ok, err := e.queue.Expire(t.ctx, r)
		if err != nil {
			return err
		}
		if !ok {
			return errUnchanged
		}
		t.onRollback(func(ctx context.Context) error { return e.queue.Reinstate(ctx, r) })
		t.emit(notify.ReservationExpired, r.UserID)
		if t.item.Status != catalog.Reserved {
			expired = true
			return nil
		}
		if err := t.settle(); err != nil {
			return err
		}
		if head, err = t.shelfHead(); err != nil {
			return err
		}
		// Only a lapsed row that was ahead of the head hands it the copy.
		if head != nil && (head.ReservationDate.Before(r.ReservationDate) || announced[r.ItemID] == head.ID) {
			head = nil
		}
		if head != nil {
			t.emit(notify.ReservationAvailable, head.UserID)
		}
		expired = true
		return nil
	})
	if err == nil && head != nil {
		announced[r.ItemID] = head.ID
	}
	return expired, err
}

// ScanOverdue marks Active loans past their due date as Overdue.
func (e *Engine) ScanOverdue(ctx context.Context) (n int, err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "circulation.scan."+JobOverdue)
	defer func() { e.finishScan(span, JobOverdue, start, n, err) }()

	txs, err := e.ledger.PastDue(ctx)
	if err != nil {
		return 0, err
	}
	var errs []error
	for _, tx := range txs {
		err := e.withItemLock(ctx, tx.ItemID, func() error {
			ok, err := e.ledger.MarkOverdue(ctx, tx)
			if ok {
				n++
			}
			return err
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return n, errors.Join(errs...)
}

func (e *Engine) finishScan(span trace.Span, job string, start time.Time, n int, err error) {
	span.SetAttributes(attribute.Int("scan.rows", n))
	e.finish(span, "scan_"+job, start, err)
	e.metrics.scanned(job, n)
	if n > 0 || err != nil {
		e.logger.Info("scan finished", "job", job, "rows", n, "error", err)
	}
}
