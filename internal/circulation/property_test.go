package circulation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"libraflow/internal/catalog"
	"libraflow/internal/policy"
	dErrors "libraflow/pkg/domainerrors"
)

// Random operation sequences must always leave an item whose stored view
// matches its replayed history, with copies accounted for by open loans.
func TestRandomOperationsReplay(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		copies := rapid.IntRange(1, 3).Draw(rt, "copies")
		item, err := f.catalog.AddItem(f.ctx, "Solaris", "Stanislaw Lem", catalog.PrintedBook, copies)
		if err != nil {
			rt.Fatalf("add item: %v", err)
		}

		roles := []policy.Role{policy.Student, policy.Faculty, policy.Researcher, policy.Guest}
		users := make([]uuid.UUID, 0, len(roles))
		for _, role := range roles {
			users = append(users, f.addMember(t, role))
		}
		librarian := f.addMember(t, policy.Librarian)

		ops := rapid.SliceOfN(rapid.IntRange(0, 7), 1, 40).Draw(rt, "ops")
		for i, op := range ops {
			user := rapid.SampledFrom(users).Draw(rt, "user")
			var err error
			switch op {
			case 0:
				_, err = f.engine.Borrow(f.ctx, item.ID, user)
			case 1:
				_, err = f.engine.Reserve(f.ctx, item.ID, user)
			case 2:
				_, err = f.engine.Return(f.ctx, item.ID, user, false)
			case 3:
				_, err = f.engine.Return(f.ctx, item.ID, user, true)
			case 4:
				err = f.engine.Revoke(f.ctx, item.ID, user)
			case 5:
				err = f.engine.CancelReservation(f.ctx, item.ID, user)
			case 6:
				resolved := rapid.Bool().Draw(rt, "resolved")
				err = f.engine.ReviewComplete(f.ctx, item.ID, librarian, resolved)
			case 7:
				f.clock.Advance(time.Duration(rapid.IntRange(1, 10*24).Draw(rt, "hours")) * time.Hour)
				_, err = f.engine.ScanExpiredReservations(f.ctx)
			}

			if err != nil {
				if c := dErrors.CodeOf(err); c == dErrors.CodeInternal || c == dErrors.CodeConflict {
					rt.Fatalf("op %d (%d): unexpected error: %v", i, op, err)
				}
			}

			snap, verr := f.catalog.Verify(f.ctx, item.ID)
			if verr != nil {
				rt.Fatalf("op %d (%d): %v", i, op, verr)
			}

			open := 0
			for _, u := range users {
				if _, err := f.ledger.OpenFor(f.ctx, u, item.ID); err == nil {
					open++
				}
			}
			if snap.CopiesAvailable+open != snap.TotalCopies {
				rt.Fatalf("op %d (%d): %d copies on shelf and %d on loan of %d", i, op, snap.CopiesAvailable, open, snap.TotalCopies)
			}
		}
	})
}
