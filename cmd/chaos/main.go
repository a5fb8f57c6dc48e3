// cmd/chaos/main.go
package main

import (
	"context"
	"os"
	"time"

	"libraflow/chaos"
	"libraflow/internal/catalog"
	"libraflow/internal/config"
	"libraflow/internal/database"
	"libraflow/internal/eventlog"
	"libraflow/internal/lending"
	"libraflow/internal/observability"
	"libraflow/internal/webhook"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.NewLogger(cfg.PrettyLogs)

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

	svc := lending.NewService(db, books, log, dispatcher)

	engine := chaos.NewEngine(logger)
	engine.Register(chaos.ConcurrentBorrowRace(svc, db, 25))
	engine.Register(chaos.WebhookOutage(svc, registry))

	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	results := engine.RunAll(runCtx)
	if err := chaos.Summary(results); err != nil {
		logger.Error().Err(err).Msg("chaos run failed")
		os.Exit(1)
	}
	logger.Info().Int("experiments", len(results)).Msg("all experiments passed")
}
