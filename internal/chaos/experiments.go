package chaos

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"libraflow/internal/catalog"
	"libraflow/internal/circulation"
	"libraflow/internal/reservation"
	dErrors "libraflow/pkg/domainerrors"
)

// Target is the circulation surface experiments drive. Both the in-process
// facade and the HTTP client satisfy it.
type Target interface {
	Borrow(ctx context.Context, itemID, userID uuid.UUID) (*circulation.Transaction, error)
	Reserve(ctx context.Context, itemID, userID uuid.UUID) (*reservation.Reservation, error)
	Return(ctx context.Context, itemID, userID uuid.UUID, damaged bool) (*circulation.Transaction, error)
	CancelReservation(ctx context.Context, itemID, userID uuid.UUID) error
}

// Inspector reads item state for steady-state metrics.
type Inspector interface {
	GetItem(ctx context.Context, id uuid.UUID) (*catalog.Item, error)
}

// copiesInRange reports 1 while the item's shelf count is within [0, total].
func copiesInRange(inspector Inspector, itemID uuid.UUID) Metric {
	return Metric{
		Name: "copies_in_range",
		Query: func(ctx context.Context) (float64, error) {
			item, err := inspector.GetItem(ctx, itemID)
			if err != nil {
				return 0, err
			}
			if item.CopiesAvailable < 0 || item.CopiesAvailable > item.TotalCopies {
				return 0, nil
			}
			return 1, nil
		},
		Threshold: Threshold{Operator: "==", Value: 1},
	}
}

// LastCopyContention has every user borrow itemID at once. No more loans
// may succeed than copies were on the shelf.
func LastCopyContention(target Target, inspector Inspector, itemID uuid.UUID, users []uuid.UUID) Experiment {
	var (
		mu      sync.Mutex
		winners []uuid.UUID
		onShelf = -1
	)

	shelf := func(ctx context.Context) (int, error) {
		item, err := inspector.GetItem(ctx, itemID)
		if err != nil {
			return 0, err
		}
		return item.CopiesAvailable, nil
	}

	return Experiment{
		Name:       "last-copy-contention",
		Hypothesis: "Concurrent borrows never hand out more copies than are on the shelf",
		SteadyState: []Metric{
			copiesInRange(inspector, itemID),
			{
				Name: "excess_loans",
				Query: func(ctx context.Context) (float64, error) {
					mu.Lock()
					defer mu.Unlock()
					if onShelf < 0 {
						return 0, nil
					}
					return float64(max(len(winners)-onShelf, 0)), nil
				},
				Threshold: Threshold{Operator: "==", Value: 0},
			},
		},
		Method: []Action{
			{
				Type:   "concurrent-borrow",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					n, err := shelf(ctx)
					if err != nil {
						return err
					}
					mu.Lock()
					onShelf = n
					mu.Unlock()

					var wg sync.WaitGroup
					errs := make(chan error, len(users))
					for _, user := range users {
						wg.Add(1)
						go func() {
							defer wg.Done()
							if _, err := target.Borrow(ctx, itemID, user); err != nil {
								errs <- err
								return
							}
							mu.Lock()
							winners = append(winners, user)
							mu.Unlock()
						}()
					}
					wg.Wait()
					close(errs)
					return unexpected(errs)
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "return-loans",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					mu.Lock()
					held := append([]uuid.UUID(nil), winners...)
					mu.Unlock()

					var errs []error
					for _, user := range held {
						if _, err := target.Return(ctx, itemID, user, false); err != nil {
							errs = append(errs, err)
						}
					}
					return errors.Join(errs...)
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "excess_loans",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "No more loans than copies on the shelf",
			},
			{
				Metric:    "copies_in_range",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "Copies available stays within [0, total]",
			},
		},
	}
}

// DuplicateReservation has one user reserve itemID attempts times at once.
// Every attempt must resolve to the same reservation.
func DuplicateReservation(target Target, inspector Inspector, itemID, userID uuid.UUID, attempts int) Experiment {
	var (
		mu  sync.Mutex
		ids = make(map[uuid.UUID]struct{})
	)

	return Experiment{
		Name:       "duplicate-reservation",
		Hypothesis: "Concurrent reservations by one member collapse into a single reservation",
		SteadyState: []Metric{
			copiesInRange(inspector, itemID),
			{
				Name: "distinct_reservations",
				Query: func(context.Context) (float64, error) {
					mu.Lock()
					defer mu.Unlock()
					return float64(len(ids)), nil
				},
				Threshold: Threshold{Operator: "<=", Value: 1},
			},
		},
		Method: []Action{
			{
				Type:   "concurrent-reserve",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					var wg sync.WaitGroup
					errs := make(chan error, attempts)
					for range attempts {
						wg.Add(1)
						go func() {
							defer wg.Done()
							r, err := target.Reserve(ctx, itemID, userID)
							if err != nil {
								errs <- err
								return
							}
							mu.Lock()
							ids[r.ID] = struct{}{}
							mu.Unlock()
						}()
					}
					wg.Wait()
					close(errs)
					return errors.Join(drain(errs)...)
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "cancel-reservation",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					return target.CancelReservation(ctx, itemID, userID)
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "distinct_reservations",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "Exactly one reservation exists for the member",
			},
		},
	}
}

func drain(errs <-chan error) []error {
	var out []error
	for err := range errs {
		out = append(out, err)
	}
	return out
}

// unexpected joins the errors that are not ordinary domain rejections.
func unexpected(errs <-chan error) error {
	var out []error
	for _, err := range drain(errs) {
		if !rejection(err) {
			out = append(out, err)
		}
	}
	return errors.Join(out...)
}

func rejection(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInvalidTransition, dErrors.CodePermissionDenied:
		return true
	}
	return false
}
