// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"libraflow/internal/api"
	"libraflow/internal/auth"
	"libraflow/internal/catalog"
	"libraflow/internal/config"
	"libraflow/internal/database"
	"libraflow/internal/eventlog"
	"libraflow/internal/lending"
	"libraflow/internal/observability"
	"libraflow/internal/stream"
	"libraflow/internal/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.NewLogger(cfg.PrettyLogs)

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing setup failed")
	}
	defer shutdownTracing(context.Background())

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("schema setup failed")
	}

	books := catalog.NewStore(db)
	log := eventlog.New(db)
	registry := webhook.NewRegistry(db)
	dispatcher := webhook.NewDispatcher(registry, cfg.DispatcherWorkers, cfg.DeliveryTimeout, logger)
	defer dispatcher.Close()

	lendingSvc := lending.NewService(db, books, log, dispatcher)
	authSvc := auth.NewService(db, cfg.JWTSecret, cfg.TokenTTL)
	streamSrv := stream.NewServer(log, cfg.StreamPollInterval, cfg.StreamBatchSize, logger)

	lendingHandler := lending.NewHandler(lendingSvc)
	webhookHandler := webhook.NewHandler(registry)
	eventsHandler := eventlog.NewHandler(log)
	authHandler := auth.NewHandler(authSvc)

	limiter := api.NewRateLimiter(cfg.RateLimitPerMinute)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(limiter.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"service": "libraflow"}, "healthy")
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/members", authHandler.Register)
		r.Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authSvc.Middleware)

			r.Post("/books", lendingHandler.CreateBook)
			r.Get("/books", lendingHandler.ListBooks)
			r.Get("/books/{id}", lendingHandler.GetBook)
			r.Put("/books/{id}", lendingHandler.UpdateBook)
			r.Delete("/books/{id}", lendingHandler.DeleteBook)
			r.Post("/books/{id}/borrow", lendingHandler.Borrow)
			r.Post("/books/{id}/return", lendingHandler.Return)

			r.Post("/webhooks", webhookHandler.Register)
			r.Get("/webhooks", webhookHandler.List)
			r.Delete("/webhooks/{id}", webhookHandler.Deactivate)

			r.Get("/events", eventsHandler.Query)
		})
	})

	r.With(authSvc.Middleware).Get("/ws/events", streamSrv.HandleEvents)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", cfg.Addr).Msg("libraflow api listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("shutdown complete")
}
