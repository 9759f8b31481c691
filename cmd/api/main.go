package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brokerhub/internal/admin"
	"brokerhub/internal/auth"
	"brokerhub/internal/config"
	"brokerhub/internal/copytrading"
	"brokerhub/internal/db"
	"brokerhub/internal/health"
	"brokerhub/internal/httpserver"
	"brokerhub/internal/kyc"
	"brokerhub/internal/ledger"
	"brokerhub/internal/marketdata"
	"brokerhub/internal/notices"
	"brokerhub/internal/notify"
	"brokerhub/internal/observability"
	"brokerhub/internal/p2p"
	"brokerhub/internal/plans"
	"brokerhub/internal/positions"
	"brokerhub/internal/reconcile"
	"brokerhub/internal/requests"
	"brokerhub/internal/store"
)

func main() {
	log := observability.NewLogger("api")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	st := store.NewPostgresStore(pool)

	bus := notify.NewBus()
	notifier := notify.NewHub(bus, cfg.NotifyWebhookURL, observability.NewLogger("notify"))

	engine := reconcile.NewEngine(st, notifier, observability.NewLogger("reconcile"))
	ledgerSvc := ledger.NewService(st, observability.NewLogger("ledger"))
	authSvc := auth.NewService(st, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL)
	kycSvc := kyc.NewService(st, notifier, observability.NewLogger("kyc"))
	planSvc := plans.NewService(st, notifier, observability.NewLogger("plans"))
	copySvc := copytrading.NewService(st, observability.NewLogger("copytrading"))
	p2pSvc := p2p.NewService(st, observability.NewLogger("p2p"))
	chatHub := p2p.NewChatHub(p2pSvc, cfg.WebSocketOrigin, observability.NewLogger("chat"))

	adminHandler := admin.NewHandler(admin.Config{
		Email:        cfg.AdminEmail,
		PasswordHash: cfg.AdminPasswordHash,
		JWTSecret:    []byte(cfg.JWTSecret),
		JWTIssuer:    cfg.JWTIssuer,
		JWTTTL:       cfg.AdminJWTTTL,
	}, engine, st, kycSvc, planSvc, p2pSvc, observability.NewLogger("admin"))

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:      auth.NewHandler(authSvc),
		AuthService:      authSvc,
		LedgerHandler:    ledger.NewHandler(ledgerSvc),
		PositionsHandler: positions.NewHandler(engine, st),
		RequestsHandler:  requests.NewHandler(engine, st),
		KYCHandler:       kyc.NewHandler(kycSvc),
		PlansHandler:     plans.NewHandler(planSvc),
		CopyHandler:      copytrading.NewHandler(copySvc),
		P2PHandler:       p2p.NewHandler(p2pSvc, chatHub),
		ChatHub:          chatHub,
		NoticesHandler:   notices.NewHandler(st),
		MarketHandler:    marketdata.NewHandler(marketdata.StaticProvider{}, cfg.QuoteCacheTTL),
		AdminHandler:     adminHandler,
		HealthHandler:    health.NewHandler(st, cfg.AppMode),
		EventsWS:         httpserver.NewEventsWSHandler(bus, cfg.WebSocketOrigin),
		InternalToken:    cfg.InternalToken,
		JWTSecret:        cfg.JWTSecret,
		JWTIssuer:        cfg.JWTIssuer,
		AllowedOrigin:    cfg.WebSocketOrigin,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("mode", cfg.AppMode).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
