// Package admin is the back-office console API. Every balance-touching
// operation goes through the reconciliation engine; the handlers here
// only translate HTTP into engine and service calls.
package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"brokerhub/internal/httputil"
	"brokerhub/internal/kyc"
	"brokerhub/internal/ledger"
	"brokerhub/internal/model"
	"brokerhub/internal/p2p"
	"brokerhub/internal/plans"
	"brokerhub/internal/reconcile"
	"brokerhub/internal/store"
	"brokerhub/internal/types"
)

type Config struct {
	Email        string
	PasswordHash string
	JWTSecret    []byte
	JWTIssuer    string
	JWTTTL       time.Duration
}

type Handler struct {
	cfg     Config
	engine  *reconcile.Engine
	store   store.Store
	kycSvc  *kyc.Service
	planSvc *plans.Service
	p2pSvc  *p2p.Service
	log     zerolog.Logger
}

func NewHandler(cfg Config, engine *reconcile.Engine, st store.Store, kycSvc *kyc.Service, planSvc *plans.Service, p2pSvc *p2p.Service, log zerolog.Logger) *Handler {
	return &Handler{cfg: cfg, engine: engine, store: st, kycSvc: kycSvc, planSvc: planSvc, p2pSvc: p2pSvc, log: log}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if req.Email != h.cfg.Email ||
		bcrypt.CompareHashAndPassword([]byte(h.cfg.PasswordHash), []byte(req.Password)) != nil {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid credentials"})
		return
	}
	token, err := signAdminToken(h.cfg.JWTSecret, h.cfg.JWTIssuer, req.Email, h.cfg.JWTTTL)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	h.log.Info().Str("email", req.Email).Msg("admin login")
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

func (h *Handler) Me(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"email": h.cfg.Email, "realm": "admin"})
}

// --- positions ---

type openPositionRequest struct {
	UserID   string          `json:"user_id"`
	Asset    string          `json:"asset"`
	Side     string          `json:"side"`
	Amount   decimal.Decimal `json:"amount"`
	Leverage string          `json:"leverage"`
	Duration string          `json:"duration"`
}

func (h *Handler) OpenPosition(w http.ResponseWriter, r *http.Request) {
	var req openPositionRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	p, err := h.engine.OpenPosition(r.Context(), req.UserID, reconcile.OpenInput{
		Asset:    req.Asset,
		Side:     types.PositionSide(req.Side),
		Amount:   req.Amount,
		Leverage: req.Leverage,
		Duration: req.Duration,
		Actor:    types.ActorAdmin,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

type editPositionRequest struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
	Profit decimal.Decimal `json:"profit"`
	Status string          `json:"status"`
}

// EditPosition is the console's save hook: the engine diffs the stored
// position against the submitted state and applies the ledger delta.
func (h *Handler) EditPosition(w http.ResponseWriter, r *http.Request) {
	var req editPositionRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	p, err := h.engine.ApplyPositionEdit(r.Context(), req.UserID, reconcile.PositionEdit{
		ID:     chi.URLParam(r, "id"),
		Amount: req.Amount,
		Profit: req.Profit,
		Status: types.PositionStatus(req.Status),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) ReopenPosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	p, err := h.engine.ReopenPosition(r.Context(), req.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// --- money requests ---

func (h *Handler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	kind := types.RequestKind(r.URL.Query().Get("kind"))
	out, err := h.store.ListPendingRequests(r.Context(), kind)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": out})
}

type decideRequest struct {
	Approve bool `json:"approve"`
}

func (h *Handler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.engine.DecideRequest(r.Context(), chi.URLParam(r, "id"), req.Approve)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type bulkDecideRequest struct {
	RequestIDs []string `json:"request_ids"`
	Approve    bool     `json:"approve"`
}

func (h *Handler) BulkDecide(w http.ResponseWriter, r *http.Request) {
	var req bulkDecideRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if len(req.RequestIDs) == 0 {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "request_ids is empty"})
		return
	}
	results := h.engine.DecideMany(r.Context(), req.RequestIDs, req.Approve)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

// --- kyc ---

type kycReviewRequest struct {
	Verified bool `json:"verified"`
}

func (h *Handler) ReviewKYC(w http.ResponseWriter, r *http.Request) {
	var req kycReviewRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.kycSvc.Review(r.Context(), chi.URLParam(r, "userID"), req.Verified); err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- plans ---

type setPlanRequest struct {
	CurrentPlan string `json:"current_plan"`
	PendingPlan string `json:"pending_plan"`
	Progress    int    `json:"progress"`
	Note        string `json:"note"`
}

func (h *Handler) SetPlan(w http.ResponseWriter, r *http.Request) {
	var req setPlanRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	u, err := h.planSvc.Apply(r.Context(), chi.URLParam(r, "id"), plans.SetInput{
		CurrentPlan: types.PlanCode(req.CurrentPlan),
		PendingPlan: types.PlanCode(req.PendingPlan),
		Progress:    req.Progress,
		Note:        req.Note,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

// --- bonus ---

type bonusRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) CreditBonus(w http.ResponseWriter, r *http.Request) {
	var req bonusRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.engine.CreditBonus(r.Context(), chi.URLParam(r, "id"), req.Amount); err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- notices ---

type noticeRequest struct {
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (h *Handler) CreateNotice(w http.ResponseWriter, r *http.Request) {
	var req noticeRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if req.UserID == "" || req.Title == "" || req.Message == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "user_id, title and message are required"})
		return
	}
	n := &model.Notice{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Title:     req.Title,
		Message:   req.Message,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.AddNotice(r.Context(), n); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, n)
}

// --- p2p trades ---

type tradeStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetTradeStatus(w http.ResponseWriter, r *http.Request) {
	var req tradeStatusRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	tr, err := h.p2pSvc.SetStatus(r.Context(), chi.URLParam(r, "id"), types.TradeStatus(req.Status))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tr)
}

// --- recompute ---

func (h *Handler) RecomputeProfit(w http.ResponseWriter, r *http.Request) {
	sum, err := h.engine.RecomputeProfit(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"profit_today": sum.String()})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, store.ErrNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "not found"})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ledger.ErrInvalidTransition), errors.Is(err, p2p.ErrBadTransition):
		httputil.WriteJSON(w, http.StatusConflict, httputil.ErrorResponse{Error: err.Error()})
	default:
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
	}
}
