package circulation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraflow/internal/catalog"
	"libraflow/internal/policy"
)

func TestHandlerViews(t *testing.T) {
	f := newFixture(t)
	book := f.addItem(t, catalog.EBook, 1)
	holder := f.addMember(t, policy.Student)
	waiter := f.addMember(t, policy.Student)

	_, err := f.engine.Borrow(f.ctx, book, holder)
	require.NoError(t, err)
	f.clock.Advance(14*24*time.Hour + 2*time.Hour)
	_, err = f.engine.Reserve(f.ctx, book, waiter)
	require.NoError(t, err)
	_, err = f.engine.Return(f.ctx, book, holder, false)
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(f.engine).Routes(r)

	t.Run("queue", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+book.String()+"/queue", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body, 1)
		assert.Equal(t, waiter.String(), body[0]["user_id"])
	})

	t.Run("transactions carry late fee", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/members/"+holder.String()+"/transactions", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body, 1)
		assert.Equal(t, "completed", body[0]["status"])
		assert.Equal(t, 2.0, body[0]["late_fee"])
	})

	t.Run("bad id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/members/nope/reservations", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
