package plans

import (
	"net/http"

	"brokerhub/internal/httputil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Catalog(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"plans": Catalog})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request, userID string) {
	st, err := h.svc.Status(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "not found"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}
