package facade

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"libraflow/internal/catalog"
	dErrors "libraflow/pkg/domainerrors"
	"libraflow/pkg/httputil"
)

// Handler exposes the facade over HTTP.
type Handler struct {
	facade   *Facade
	validate *validator.Validate
}

func NewHandler(f *Facade) *Handler {
	return &Handler{facade: f, validate: validator.New()}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/items", h.handleAddItem)
	r.Post("/items/{itemID}/borrow", h.handleBorrow)
	r.Post("/items/{itemID}/reserve", h.handleReserve)
	r.Post("/items/{itemID}/return", h.handleReturn)
	r.Post("/items/{itemID}/revoke", h.handleRevoke)
	r.Post("/items/{itemID}/cancel-reservation", h.handleCancelReservation)
	r.Post("/items/{itemID}/review", h.handleReview)
	r.Post("/members/{memberID}/undo", h.handleUndo)
}

type memberRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type returnRequest struct {
	UserID  string `json:"user_id" validate:"required,uuid"`
	Damaged bool   `json:"damaged"`
}

type reviewRequest struct {
	ActorID  string `json:"actor_id" validate:"required,uuid"`
	Resolved bool   `json:"resolved"`
}

type addItemRequest struct {
	ActorID  string `json:"actor_id" validate:"required,uuid"`
	Title    string `json:"title" validate:"required,max=500"`
	Authors  string `json:"authors" validate:"max=500"`
	ItemType string `json:"item_type" validate:"required,oneof=ebook printed_book research_paper audiobook journal"`
	Copies   int    `json:"copies" validate:"gte=0,lte=10000"`
}

type undoResponse struct {
	Command string `json:"command,omitempty"`
	Undone  bool   `json:"undone"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	itemID, userID, ok := h.memberAction(w, r)
	if !ok {
		return
	}
	tx, err := h.facade.Borrow(r.Context(), itemID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tx)
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	itemID, userID, ok := h.memberAction(w, r)
	if !ok {
		return
	}
	res, err := h.facade.Reserve(r.Context(), itemID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req returnRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	tx, err := h.facade.Return(r.Context(), itemID, uuid.MustParse(req.UserID), req.Damaged)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	itemID, userID, ok := h.memberAction(w, r)
	if !ok {
		return
	}
	if err := h.facade.Revoke(r.Context(), itemID, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	itemID, userID, ok := h.memberAction(w, r)
	if !ok {
		return
	}
	if err := h.facade.CancelReservation(r.Context(), itemID, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req reviewRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.facade.ReviewComplete(r.Context(), itemID, uuid.MustParse(req.ActorID), req.Resolved); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	item, err := h.facade.AddItem(r.Context(), uuid.MustParse(req.ActorID), req.Title, req.Authors, catalog.ItemType(req.ItemType), req.Copies)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleUndo(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "memberID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res := h.facade.UndoLast(r.Context(), userID)
	body := undoResponse{Command: res.Command, Undone: res.Undone}
	if res.Err != nil {
		body.Error = res.Err.Error()
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

// memberAction parses the item from the path and the member from the body.
func (h *Handler) memberAction(w http.ResponseWriter, r *http.Request) (itemID, userID uuid.UUID, ok bool) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httputil.WriteError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	var req memberRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return itemID, uuid.MustParse(req.UserID), true
}

func (h *Handler) decode(r *http.Request, v any) error {
	if err := httputil.DecodeJSON(r, v); err != nil {
		return err
	}
	if err := h.validate.Struct(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
	}
	return nil
}

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "invalid %s", param)
	}
	return id, nil
}
