package kyc

import (
	"errors"
	"net/http"

	"brokerhub/internal/httputil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type submitRequest struct {
	FullName       string `json:"full_name"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	State          string `json:"state"`
	City           string `json:"city"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request, userID string) {
	var req submitRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	rec, err := h.svc.Submit(r.Context(), userID, SubmitInput{
		FullName:       req.FullName,
		DocumentType:   req.DocumentType,
		DocumentNumber: req.DocumentNumber,
		State:          req.State,
		City:           req.City,
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrAlreadyVerified) {
			status = http.StatusConflict
		}
		httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request, userID string) {
	rec, err := h.svc.Status(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotSubmitted) {
			httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": "not_submitted"})
			return
		}
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	status := "pending"
	if rec.Verified {
		status = "verified"
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": status, "record": rec})
}
