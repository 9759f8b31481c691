// Package positions exposes the user-facing trade endpoints. All
// balance effects go through the reconciliation engine.
package positions

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"brokerhub/internal/httputil"
	"brokerhub/internal/ledger"
	"brokerhub/internal/reconcile"
	"brokerhub/internal/store"
	"brokerhub/internal/types"
)

type Handler struct {
	engine *reconcile.Engine
	store  store.Store
}

func NewHandler(engine *reconcile.Engine, st store.Store) *Handler {
	return &Handler{engine: engine, store: st}
}

type openRequest struct {
	Asset    string          `json:"asset"`
	Side     string          `json:"side"`
	Amount   decimal.Decimal `json:"amount"`
	Leverage string          `json:"leverage"`
	Duration string          `json:"duration"`
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request, userID string) {
	var req openRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	p, err := h.engine.OpenPosition(r.Context(), userID, reconcile.OpenInput{
		Asset:    req.Asset,
		Side:     types.PositionSide(req.Side),
		Amount:   req.Amount,
		Leverage: req.Leverage,
		Duration: req.Duration,
		Actor:    types.ActorUser,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request, userID string) {
	id := chi.URLParam(r, "id")
	p, err := h.engine.ClosePosition(r.Context(), userID, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) ListOpen(w http.ResponseWriter, r *http.Request, userID string) {
	h.list(w, r, userID, types.PositionStatusOpen)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request, userID string) {
	h.list(w, r, userID, types.PositionStatusClosed)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, userID string, status types.PositionStatus) {
	out, err := h.store.ListPositions(r.Context(), userID, status)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"positions": out})
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, store.ErrNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "not found"})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ledger.ErrInvalidTransition):
		httputil.WriteJSON(w, http.StatusConflict, httputil.ErrorResponse{Error: err.Error()})
	default:
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
	}
}
