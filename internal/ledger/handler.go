package ledger

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

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request, userID string) {
	l, err := h.svc.Snapshot(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"account_balance": l.AccountBalance,
		"profit_today":    l.ProfitToday,
		"bonus_amount":    l.BonusAmount,
	})
}

func (h *Handler) ClaimProfit(w http.ResponseWriter, r *http.Request, userID string) {
	claimed, err := h.svc.ClaimProfit(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"claimed": claimed})
}

func (h *Handler) ClaimBonus(w http.ResponseWriter, r *http.Request, userID string) {
	claimed, err := h.svc.ClaimBonus(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"claimed": claimed})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "user not found"})
	case errors.Is(err, ErrNothingToClaim):
		httputil.WriteJSON(w, http.StatusConflict, httputil.ErrorResponse{Error: "nothing to claim"})
	case errors.Is(err, ErrInsufficientFunds):
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{Error: "insufficient funds"})
	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "internal error"})
	}
}
