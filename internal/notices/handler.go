// Package notices serves the user's admin messages.
package notices

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"brokerhub/internal/httputil"
	"brokerhub/internal/store"
)

type Handler struct {
	store store.Store
}

func NewHandler(st store.Store) *Handler {
	return &Handler{store: st}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, userID string) {
	out, err := h.store.ListNotices(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"notices": out})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request, userID string) {
	err := h.store.MarkNoticeRead(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "not found"})
			return
		}
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
