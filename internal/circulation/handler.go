// internal/circulation/handler.go
package circulation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	dErrors "libraflow/pkg/domainerrors"
	"libraflow/pkg/httputil"
)

// Handler serves the circulation read views. Mutations go through the facade.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/items/{itemID}/queue", h.handleQueue)
	r.Get("/members/{memberID}/transactions", h.handleTransactions)
	r.Get("/members/{memberID}/reservations", h.handleReservations)
}

type transactionView struct {
	*Transaction
	LateFee float64 `json:"late_fee"`
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	queue, err := h.service.Queue(r.Context(), itemID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, queue)
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	txs, err := h.service.History(r.Context(), memberID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, transactionView{Transaction: tx, LateFee: LateFee(tx)})
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) handleReservations(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rs, err := h.service.Reservations(r.Context(), memberID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rs)
}

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "invalid %s", param)
	}
	return id, nil
}
