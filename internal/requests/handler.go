// Package requests exposes deposit and withdrawal submission plus the
// user's request history, activity feed, and CSV statement export.
package requests

import (
	"encoding/csv"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"brokerhub/internal/httputil"
	"brokerhub/internal/ledger"
	"brokerhub/internal/model"
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

type depositRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	ProofFile string          `json:"proof_file"`
}

func (h *Handler) SubmitDeposit(w http.ResponseWriter, r *http.Request, userID string) {
	var req depositRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.engine.SubmitDeposit(r.Context(), userID, req.Amount, model.RequestNote{
		Method:    req.Method,
		ProofFile: req.ProofFile,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

type withdrawalRequest struct {
	Amount  decimal.Decimal    `json:"amount"`
	Method  string             `json:"method"`
	Address string             `json:"address"`
	Bank    *model.BankDetails `json:"bank"`
}

func (h *Handler) SubmitWithdrawal(w http.ResponseWriter, r *http.Request, userID string) {
	var req withdrawalRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if req.Method == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "method is required"})
		return
	}
	if req.Method == "bank" && req.Bank == nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "bank details are required"})
		return
	}
	if req.Method != "bank" && req.Address == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "wallet address is required"})
		return
	}
	out, err := h.engine.SubmitWithdrawal(r.Context(), userID, req.Amount, model.RequestNote{
		Method:  req.Method,
		Address: req.Address,
		Bank:    req.Bank,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request, userID string) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	out, err := h.store.ListRequests(r.Context(), userID, limit)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	items := make([]map[string]any, 0, len(out))
	for _, req := range out {
		items = append(items, map[string]any{
			"id":          req.ID,
			"kind":        req.Kind,
			"amount":      req.Amount,
			"status":      req.Status,
			"destination": req.Note.MaskedDestination(),
			"created_at":  req.CreatedAt,
			"decided_at":  req.DecidedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": items})
}

type activityItem struct {
	Kind   string `json:"kind"`
	Label  string `json:"label"`
	Amount string `json:"amount"`
	Status string `json:"status"`
	At     string `json:"at"`
}

// Activity merges recent money requests and closed positions into one
// feed, newest first.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request, userID string) {
	reqs, err := h.store.ListRequests(r.Context(), userID, 20)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	closed, err := h.store.ListPositions(r.Context(), userID, types.PositionStatusClosed)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	var items []activityItem
	for _, rq := range reqs {
		items = append(items, activityItem{
			Kind:   string(rq.Kind),
			Label:  rq.Note.MaskedDestination(),
			Amount: rq.Amount.String(),
			Status: string(rq.Status),
			At:     rq.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	for _, p := range closed {
		if p.ClosedAt == nil {
			continue
		}
		items = append(items, activityItem{
			Kind:   "trade",
			Label:  p.Asset,
			Amount: p.Amount.Add(p.Profit).String(),
			Status: "closed",
			At:     p.ClosedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].At > items[j].At })
	if len(items) > 20 {
		items = items[:20]
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"activity": items})
}

// Statement exports the user's decided requests as CSV, ordered by
// decision time.
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request, userID string) {
	reqs, err := h.store.ListRequests(r.Context(), userID, 0)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	var decided []model.MoneyRequest
	for _, rq := range reqs {
		if rq.Decided() && rq.DecidedAt != nil {
			decided = append(decided, rq)
		}
	}
	sort.Slice(decided, func(i, j int) bool { return decided[i].DecidedAt.Before(*decided[j].DecidedAt) })

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="statement.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"decided_at", "kind", "amount", "status", "destination"})
	for _, rq := range decided {
		_ = cw.Write([]string{
			rq.DecidedAt.UTC().Format("2006-01-02 15:04:05"),
			string(rq.Kind),
			rq.Amount.String(),
			string(rq.Status),
			rq.Note.MaskedDestination(),
		})
	}
	cw.Flush()
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
