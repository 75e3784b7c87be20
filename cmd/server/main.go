package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"alcyxob/coach-scheduler/internal/api"
	"alcyxob/coach-scheduler/internal/app"
	"alcyxob/coach-scheduler/internal/config"
	"alcyxob/coach-scheduler/internal/jobs"
)

// @title Coach Scheduler API
// @version 1.0
// @description Materializes coaching plans into dated client executions, replicates plan weeks and recovers workshop topics.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("could not load config", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Info("starting coach scheduler", "address", cfg.Server.Address)

	if cfg.JWT.Secret == "" {
		logger.Error("jwt.secret must be set")
		os.Exit(1)
	}

	// --- Database, storage and services ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("could not initialize application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	// --- Background jobs ---
	scheduler, err := jobs.NewScheduler(cfg.Jobs.TopicRefreshSchedule, application.Location, application.Topics, logger)
	if err != nil {
		logger.Error("invalid jobs.topic_refresh_schedule", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	// --- HTTP ---
	gin.SetMode(gin.ReleaseMode)
	router, err := api.NewRouter(logger, cfg.JWT.Secret, application.Location, application.Executions, application.Replications, application.Topics)
	if err != nil {
		logger.Error("could not set up routes", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// --- Graceful Shutdown ---
	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-serverErr:
		logger.Error("server stopped unexpectedly", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("background job still running at shutdown")
	}
	logger.Info("server exiting")
}
