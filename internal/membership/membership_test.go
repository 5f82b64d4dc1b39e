package membership

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraflow/internal/policy"
	dErrors "libraflow/pkg/domainerrors"
	"libraflow/pkg/eventstore"
)

func TestRegisterAndChangeRole(t *testing.T) {
	ctx := context.Background()
	es := eventstore.NewMemoryStore()
	svc := NewService(es, NewMemoryStore())

	m, err := svc.RegisterMember(ctx, "Ada", "ada@example.org", policy.Student)
	require.NoError(t, err)

	_, err = svc.RegisterMember(ctx, "Ada again", "ADA@example.org", policy.Student)
	assert.ErrorIs(t, err, dErrors.ErrConflict)

	require.NoError(t, svc.ChangeRole(ctx, m.ID, policy.Faculty))
	got, err := svc.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, policy.Faculty, got.Role)

	events, err := es.LoadEvents(ctx, m.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventMemberRoleChanged, events[1].EventType)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	svc := NewService(eventstore.NewMemoryStore(), NewMemoryStore())
	_, err := svc.RegisterMember(context.Background(), "x", "x@example.org", policy.Role("admin"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestRegistrationIsRateLimited(t *testing.T) {
	svc := NewService(eventstore.NewMemoryStore(), NewMemoryStore(), WithRegistrationLimit(1, 1))
	_, err := svc.RegisterMember(context.Background(), "a", "a@example.org", policy.Student)
	require.NoError(t, err)
	_, err = svc.RegisterMember(context.Background(), "b", "b@example.org", policy.Student)
	assert.Error(t, err)
}

func TestHandlerValidatesBody(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(NewService(eventstore.NewMemoryStore(), NewMemoryStore())).Routes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/members",
		strings.NewReader(`{"name":"Ada","email":"not-an-email","role":"student"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/members",
		strings.NewReader(`{"name":"Ada","email":"ada@example.org","role":"faculty"}`)))
	assert.Equal(t, http.StatusCreated, w.Code)
}
