package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"brokerhub/internal/admin"
	"brokerhub/internal/auth"
	"brokerhub/internal/copytrading"
	"brokerhub/internal/health"
	"brokerhub/internal/httputil"
	"brokerhub/internal/kyc"
	"brokerhub/internal/ledger"
	"brokerhub/internal/marketdata"
	"brokerhub/internal/metrics"
	"brokerhub/internal/notices"
	"brokerhub/internal/p2p"
	"brokerhub/internal/plans"
	"brokerhub/internal/positions"
	"brokerhub/internal/requests"
)

type RouterDeps struct {
	AuthHandler      *auth.Handler
	AuthService      *auth.Service
	LedgerHandler    *ledger.Handler
	PositionsHandler *positions.Handler
	RequestsHandler  *requests.Handler
	KYCHandler       *kyc.Handler
	PlansHandler     *plans.Handler
	CopyHandler      *copytrading.Handler
	P2PHandler       *p2p.Handler
	ChatHub          *p2p.ChatHub
	NoticesHandler   *notices.Handler
	MarketHandler    *marketdata.Handler
	AdminHandler     *admin.Handler
	HealthHandler    *health.Handler
	EventsWS         *EventsWSHandler
	InternalToken    string
	JWTSecret        string
	JWTIssuer        string
	AllowedOrigin    string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(corsMiddleware(d.AllowedOrigin))
	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/health", d.HealthHandler.Ready)
	r.Get("/health/live", d.HealthHandler.Live)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
		})

		r.Get("/plans", d.PlansHandler.Catalog)
		r.Get("/vendors", d.P2PHandler.Vendors)

		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))

			r.Get("/me", user(d.AuthHandler.Me))
			r.Get("/ledger", user(d.LedgerHandler.Snapshot))
			r.Post("/ledger/profit/claim", user(d.LedgerHandler.ClaimProfit))
			r.Post("/ledger/bonus/claim", user(d.LedgerHandler.ClaimBonus))

			r.Post("/positions", user(d.PositionsHandler.Open))
			r.Get("/positions", user(d.PositionsHandler.ListOpen))
			r.Get("/positions/history", user(d.PositionsHandler.History))
			r.Post("/positions/{id}/close", user(d.PositionsHandler.Close))

			r.Post("/deposits", user(d.RequestsHandler.SubmitDeposit))
			r.Post("/withdrawals", user(d.RequestsHandler.SubmitWithdrawal))
			r.Get("/requests/recent", user(d.RequestsHandler.Recent))
			r.Get("/activity/recent", user(d.RequestsHandler.Activity))
			r.Get("/statement.csv", user(d.RequestsHandler.Statement))

			r.Post("/kyc", user(d.KYCHandler.Submit))
			r.Get("/kyc/status", user(d.KYCHandler.Status))

			r.Get("/plans/status", user(d.PlansHandler.Status))

			r.Get("/experts", d.CopyHandler.Roster)
			r.Get("/experts/subscriptions", user(d.CopyHandler.Subscriptions))
			r.Post("/experts/{id}/copy", user(d.CopyHandler.Copy))
			r.Post("/experts/{id}/cancel", user(d.CopyHandler.Cancel))

			r.Post("/vendors/{id}/trades", user(d.P2PHandler.OpenTrade))
			r.Get("/trades", user(d.P2PHandler.ListTrades))
			r.Get("/trades/{id}", user(d.P2PHandler.GetTrade))
			r.Post("/trades/{id}/paid", user(d.P2PHandler.MarkPaid))
			r.Post("/trades/{id}/cancel", user(d.P2PHandler.Cancel))
			r.Get("/trades/{id}/messages", user(d.P2PHandler.Messages))
			r.Post("/trades/{id}/messages", user(d.P2PHandler.PostMessage))
			r.Get("/trades/{id}/ws", user(func(w http.ResponseWriter, r *http.Request, userID string) {
				d.ChatHub.Serve(w, r, userID, chi.URLParam(r, "id"))
			}))

			r.Get("/notices", user(d.NoticesHandler.List))
			r.Post("/notices/{id}/read", user(d.NoticesHandler.MarkRead))

			r.Get("/watchlist", d.MarketHandler.Watchlist)
			r.Get("/events/ws", user(d.EventsWS.Serve))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", d.AdminHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(admin.AuthMiddleware([]byte(d.JWTSecret), d.JWTIssuer))
				r.Get("/me", d.AdminHandler.Me)

				r.Post("/positions", d.AdminHandler.OpenPosition)
				r.Put("/positions/{id}", d.AdminHandler.EditPosition)
				r.Post("/positions/{id}/reopen", d.AdminHandler.ReopenPosition)

				r.Get("/requests/pending", d.AdminHandler.PendingRequests)
				r.Put("/requests/{id}", d.AdminHandler.DecideRequest)
				r.Post("/requests/decide", d.AdminHandler.BulkDecide)

				r.Put("/kyc/{userID}", d.AdminHandler.ReviewKYC)
				r.Put("/users/{id}/plan", d.AdminHandler.SetPlan)
				r.Post("/users/{id}/bonus", d.AdminHandler.CreditBonus)
				r.Post("/notices", d.AdminHandler.CreateNotice)
				r.Put("/trades/{id}/status", d.AdminHandler.SetTradeStatus)
				r.Post("/recompute/{userID}", d.AdminHandler.RecomputeProfit)
			})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(InternalAuth(d.InternalToken))
		r.Get("/internal/health/full", d.HealthHandler.Full)
		r.Get("/metrics", metrics.Handler().ServeHTTP)
	})

	return r
}

func user(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		fn(w, r, userID)
	}
}

func corsMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || allowedOrigin == "*" {
				origin = "*"
			} else if origin != allowedOrigin {
				origin = allowedOrigin
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Internal-Token")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
