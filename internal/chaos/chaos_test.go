package chaos

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraflow/internal/app"
	"libraflow/internal/catalog"
	"libraflow/internal/clients"
	"libraflow/internal/platform/config"
	"libraflow/internal/policy"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestThresholds(t *testing.T) {
	cases := []struct {
		op    string
		value float64
		want  bool
	}{
		{">", 2, true},
		{"<", 2, false},
		{">=", 1, true},
		{"<=", 1, true},
		{"==", 1, true},
		{"!=", 1, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Threshold{Operator: tc.op, Value: 1}.holds(tc.value), tc.op)
	}
}

func TestRunAbortsOnInvalidSteadyState(t *testing.T) {
	injected := false
	exp := Experiment{
		Name: "broken",
		SteadyState: []Metric{{
			Name:      "always_down",
			Query:     func(context.Context) (float64, error) { return 0, errors.New("unreachable") },
			Threshold: Threshold{Operator: "==", Value: 1},
		}},
		Method: []Action{{Execute: func(context.Context) error { injected = true; return nil }}},
	}

	res, err := NewRunner(WithLogger(quietLogger())).Run(context.Background(), exp)
	assert.ErrorIs(t, err, ErrSteadyStateInvalid)
	assert.False(t, res.SteadyStateValid)
	assert.False(t, injected)
}

func TestObservationRecordsRecovery(t *testing.T) {
	var samples int
	exp := Experiment{
		Name: "flapping",
		SteadyState: []Metric{{
			Name: "health",
			Query: func(context.Context) (float64, error) {
				samples++
				if samples == 2 {
					return 0, nil
				}
				return 1, nil
			},
			Threshold: Threshold{Operator: "==", Value: 1},
		}},
		Validation: []Assertion{{Metric: "health", Condition: func(v float64) bool { return v == 1 }, Message: "healthy"}},
		Duration:   50 * time.Millisecond,
	}

	r := NewRunner(WithLogger(quietLogger()), WithSampleInterval(5*time.Millisecond))
	res, err := r.Run(context.Background(), exp)
	require.NoError(t, err)
	assert.True(t, res.HypothesisHeld)
	require.Len(t, res.Violations, 1)
	assert.NotNil(t, res.MTTR)
	assert.Len(t, r.Results(), 1)
}

type fixture struct {
	client    *clients.Client
	librarian uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	a, err := app.New(ctx, config.Default(), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	srv := httptest.NewServer(a.Router)
	t.Cleanup(srv.Close)

	f := &fixture{client: clients.New(srv.URL)}
	lib, err := f.client.RegisterMember(ctx, "Lin", "lin@example.org", policy.Librarian)
	require.NoError(t, err)
	f.librarian = lib.ID
	return f
}

func (f *fixture) members(t *testing.T, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, n)
	for range n {
		m, err := f.client.RegisterMember(context.Background(), "reader", uuid.NewString()+"@example.org", policy.Student)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}
	return ids
}

func TestLastCopyContention(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item, err := f.client.AddItem(ctx, f.librarian, "Snow Crash", "Neal Stephenson", catalog.PrintedBook, 2)
	require.NoError(t, err)
	users := f.members(t, 12)

	res, err := NewRunner(WithLogger(quietLogger())).Run(ctx, LastCopyContention(f.client, f.client, item.ID, users))
	require.NoError(t, err)
	assert.True(t, res.HypothesisHeld, res.FailedAssertions)
	assert.Empty(t, res.ErrorEvents)

	got, err := f.client.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CopiesAvailable)
	assert.Equal(t, catalog.Available, got.Status)
}

func TestGameDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item, err := f.client.AddItem(ctx, f.librarian, "Blindsight", "Peter Watts", catalog.EBook, 1)
	require.NoError(t, err)
	users := f.members(t, 4)

	results, err := NewRunner(WithLogger(quietLogger())).ExecuteGameDay(ctx, GameDay{
		Name: "contention",
		Scenarios: []Experiment{
			LastCopyContention(f.client, f.client, item.ID, users),
			DuplicateReservation(f.client, f.client, item.ID, users[0], 8),
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.HypothesisHeld, "%s: %v", res.ExperimentName, res.FailedAssertions)
	}

	queue, err := f.client.Queue(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, queue)
}
