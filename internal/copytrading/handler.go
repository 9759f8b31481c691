package copytrading

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"brokerhub/internal/httputil"
	"brokerhub/internal/store"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Roster(w http.ResponseWriter, r *http.Request) {
	experts, err := h.svc.Roster(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"experts": experts})
}

func (h *Handler) Copy(w http.ResponseWriter, r *http.Request, userID string) {
	sub, err := h.svc.Copy(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sub)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request, userID string) {
	sub, err := h.svc.Cancel(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}

func (h *Handler) Subscriptions(w http.ResponseWriter, r *http.Request, userID string) {
	subs, err := h.svc.Subscriptions(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"subscriptions": subs})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "not found"})
	case errors.Is(err, ErrExpertInactive), errors.Is(err, ErrNotSubscribed):
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{Error: err.Error()})
	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
	}
}
