package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"budgetwise/internal/cache"
	"budgetwise/internal/config"
	"budgetwise/internal/database"
	"budgetwise/internal/events"
	"budgetwise/internal/logger"
	"budgetwise/internal/services"
	"budgetwise/internal/worker"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Named("recurring-worker")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	store, closeStore := summaryStore(cfg, log)
	defer closeStore()

	publisher, err := events.New(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		log.Warnw("event publishing unavailable, continuing without it", "error", err)
		publisher = events.NopPublisher{}
	}
	defer publisher.Close()

	db := dbManager.DB()
	budgets := services.NewBudgetService(db, store)
	resolver := services.NewTemplateResolver(db, cfg.TemplateSearchMonths)
	processor := services.NewRecurrenceProcessor(
		services.NewRecurrentTransactionService(db, store),
		budgets,
		services.NewMaterializer(budgets, resolver),
		services.WithPublisher(publisher),
	)
	runner := worker.NewRunner(services.NewUserService(db), processor, cfg.RecurringWorkers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner.Start(ctx, cfg.RecurringInterval)
	log.Info("Recurring worker shutdown complete")
	return nil
}

// summaryStore returns the store the worker invalidates summaries in. Only a
// Redis shared with the API is useful here; an API running its in-process
// LRU keeps serving summaries up to SUMMARY_CACHE_TTL old after a run.
func summaryStore(cfg *config.Config, log *zap.SugaredLogger) (cache.Store, func()) {
	if cfg.RedisURL == "" {
		log.Warnw("REDIS_URL not set, API summary caches are not invalidated by this worker",
			"max_staleness", cfg.SummaryCacheTTL)
		return cache.Nop{}, func() {}
	}
	redisStore, err := cache.NewRedis(cfg.RedisURL, cfg.SummaryCacheTTL)
	if err != nil {
		log.Warnw("summary cache unavailable, cached summaries may be stale", "error", err)
		return cache.Nop{}, func() {}
	}
	return redisStore, func() { redisStore.Close() }
}
