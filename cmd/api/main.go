package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"budgetwise/internal/cache"
	"budgetwise/internal/config"
	"budgetwise/internal/database"
	"budgetwise/internal/events"
	"budgetwise/internal/logger"
	"budgetwise/internal/validator"

	_ "budgetwise/internal/docs" // Import swagger docs
)

// @title           BudgetWise API
// @version         1.0
// @description     BudgetWise keeps monthly budgets with categories and transactions, and turns recurring income and expenses into transactions month after month.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey SchedulerKey
// @in header
// @name X-Scheduler-Key

const (
	summaryCacheSize = 1024
	shutdownTimeout  = 15 * time.Second
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	summaryCache, err := cache.New(appConfig.RedisURL, appConfig.SummaryCacheTTL, summaryCacheSize)
	if err != nil {
		log.Warnw("summary cache unavailable, continuing without it", "error", err)
		summaryCache = cache.Nop{}
	}
	if closer, ok := summaryCache.(io.Closer); ok {
		defer closer.Close()
	}

	publisher, err := events.New(appConfig.AMQPURL, appConfig.AMQPExchange, appConfig.AMQPQueue)
	if err != nil {
		log.Warnw("event publishing unavailable, continuing without it", "error", err)
		publisher = events.NopPublisher{}
	}
	defer publisher.Close()

	app := newApplication(dbManager.DB(), summaryCache, publisher, appConfig)
	router := newRouter(app, appConfig)

	if appConfig.SchedulerAPIKey == "" {
		log.Warn("SCHEDULER_API_KEY is not set, the internal recurring endpoint is disabled")
	}

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting BudgetWise server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
