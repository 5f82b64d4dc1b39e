package notify

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	dErrors "libraflow/pkg/domainerrors"
	"libraflow/pkg/httputil"
)

// Handler serves a member's in-app notifications.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/members/{memberID}/notifications", h.handleList)
	r.Post("/members/{memberID}/notifications/{notificationID}/read", h.handleMarkRead)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "memberID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.List(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if list == nil {
		list = []*Notification{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "memberID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	id, err := uuidParam(r, "notificationID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.MarkRead(r.Context(), userID, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "invalid %s", name)
	}
	return id, nil
}
