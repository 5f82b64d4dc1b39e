package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraflow/internal/catalog"
	"libraflow/internal/circulation"
	"libraflow/internal/clients"
	"libraflow/internal/platform/config"
	"libraflow/internal/policy"
	dErrors "libraflow/pkg/domainerrors"
)

func newServer(t *testing.T) (*App, *clients.Client) {
	t.Helper()
	a, err := New(context.Background(), config.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(a.Router)
	t.Cleanup(srv.Close)
	return a, clients.New(srv.URL)
}

func TestCirculationOverHTTP(t *testing.T) {
	ctx := context.Background()
	_, client := newServer(t)

	librarian, err := client.RegisterMember(ctx, "Lin", "lin@example.org", policy.Librarian)
	require.NoError(t, err)
	s1, err := client.RegisterMember(ctx, "Sam", "sam@example.org", policy.Student)
	require.NoError(t, err)
	s2, err := client.RegisterMember(ctx, "Ria", "ria@example.org", policy.Student)
	require.NoError(t, err)

	_, err = client.AddItem(ctx, s1.ID, "Dune", "Frank Herbert", catalog.PrintedBook, 1)
	assert.ErrorIs(t, err, dErrors.ErrPermissionDenied)

	item, err := client.AddItem(ctx, librarian.ID, "Dune", "Frank Herbert", catalog.PrintedBook, 1)
	require.NoError(t, err)

	tx, err := client.Borrow(ctx, item.ID, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.TxActive, tx.Status)

	_, err = client.Borrow(ctx, item.ID, s2.ID)
	assert.ErrorIs(t, err, dErrors.ErrInvalidTransition)

	res, err := client.Reserve(ctx, item.ID, s2.ID)
	require.NoError(t, err)
	queue, err := client.Queue(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, res.ID, queue[0].ID)

	_, err = client.Return(ctx, item.ID, s1.ID, false)
	require.NoError(t, err)
	got, err := client.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.Reserved, got.Status)

	_, err = client.Borrow(ctx, item.ID, s2.ID)
	require.NoError(t, err)

	undo, err := client.Undo(ctx, s2.ID)
	require.NoError(t, err)
	assert.True(t, undo.Undone)
	assert.Equal(t, "borrow", undo.Command)

	got, err = client.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.Available, got.Status)
	assert.Equal(t, 1, got.CopiesAvailable)

	err = client.Revoke(ctx, item.ID, s2.ID)
	assert.ErrorIs(t, err, dErrors.ErrNotFound)
}

func TestNotificationsAndMetricsAreServed(t *testing.T) {
	ctx := context.Background()
	a, client := newServer(t)

	librarian, err := client.RegisterMember(ctx, "Lin", "lin@example.org", policy.Librarian)
	require.NoError(t, err)
	holder, err := client.RegisterMember(ctx, "Sam", "sam@example.org", policy.Faculty)
	require.NoError(t, err)
	waiter, err := client.RegisterMember(ctx, "Ria", "ria@example.org", policy.Researcher)
	require.NoError(t, err)
	item, err := client.AddItem(ctx, librarian.ID, "Godel Escher Bach", "Douglas Hofstadter", catalog.EBook, 1)
	require.NoError(t, err)

	_, err = client.Borrow(ctx, item.ID, holder.ID)
	require.NoError(t, err)
	_, err = client.Reserve(ctx, item.ID, waiter.ID)
	require.NoError(t, err)
	_, err = client.Return(ctx, item.ID, holder.ID, false)
	require.NoError(t, err)

	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/members/" + waiter.ID.String() + "/notifications")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Godel Escher Bach")

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "libraflow_circulation_operations_total")
	assert.Contains(t, string(body), `trigger="return"`)

	assert.True(t, a.Scheduler.Trigger(circulation.JobOverdue))
}
