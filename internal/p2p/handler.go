package p2p

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"brokerhub/internal/httputil"
	"brokerhub/internal/store"
)

type Handler struct {
	svc  *Service
	chat *ChatHub
}

func NewHandler(svc *Service, chat *ChatHub) *Handler {
	return &Handler{svc: svc, chat: chat}
}

func (h *Handler) Vendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.svc.Vendors(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"vendors": vendors})
}

type openTradeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) OpenTrade(w http.ResponseWriter, r *http.Request, userID string) {
	var req openTradeRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	tr, err := h.svc.OpenTrade(r.Context(), userID, chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tr)
}

func (h *Handler) GetTrade(w http.ResponseWriter, r *http.Request, userID string) {
	tr, err := h.svc.GetTrade(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tr)
}

func (h *Handler) ListTrades(w http.ResponseWriter, r *http.Request, userID string) {
	trades, err := h.svc.ListTrades(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

type markPaidRequest struct {
	ProofFile string `json:"proof_file"`
}

func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request, userID string) {
	var req markPaidRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	tr, err := h.svc.MarkPaid(r.Context(), userID, chi.URLParam(r, "id"), req.ProofFile)
	if err != nil {
		writeError(w, err)
		return
	}
	h.chat.BroadcastSystem(tr.ID, "Buyer marked the trade as paid.")
	httputil.WriteJSON(w, http.StatusOK, tr)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request, userID string) {
	tr, err := h.svc.Cancel(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.chat.BroadcastSystem(tr.ID, "Trade cancelled by the buyer.")
	httputil.WriteJSON(w, http.StatusOK, tr)
}

func (h *Handler) Messages(w http.ResponseWriter, r *http.Request, userID string) {
	msgs, err := h.svc.Messages(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type postMessageRequest struct {
	Body string `json:"body"`
}

func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request, userID string) {
	var req postMessageRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	m, err := h.svc.PostMessage(r.Context(), userID, chi.URLParam(r, "id"), req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	h.chat.Broadcast(m.TradeID, *m)
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "not found"})
	case errors.Is(err, ErrNotParticipant):
		httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrBadTransition):
		httputil.WriteJSON(w, http.StatusConflict, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrVendorInactive), errors.Is(err, ErrAmountOutOfRange):
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{Error: err.Error()})
	default:
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
	}
}
