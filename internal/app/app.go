// Package app wires configuration, the datastore and the services together for the
// server and maintenance binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"alcyxob/coach-scheduler/internal/config"
	"alcyxob/coach-scheduler/internal/repository/mongo"
	"alcyxob/coach-scheduler/internal/service"
	"alcyxob/coach-scheduler/internal/storage"
)

// App holds the services built from one configuration.
type App struct {
	Config   config.Config
	Location *time.Location

	Executions   service.ExecutionService
	Replications service.ReplicationService
	Topics       service.TopicRecoveryService
	Repos        service.Repositories

	client *mongodriver.Client
	logger *slog.Logger
}

// NewLogger builds the process logger. Output is JSON on stdout.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// New connects to MongoDB, makes sure the indexes exist and builds the services.
// Media storage is optional: without a bucket the calendar carries no media URLs.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return nil, fmt.Errorf("schedule timezone: %w", err)
	}

	client, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.Database.Name)

	indexCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := mongo.EnsureIndexes(indexCtx, db); err != nil {
		_ = mongo.DisconnectDB(client)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	logger.Info("database ready", "database", cfg.Database.Name, "transactions", cfg.Database.Transactions)

	files, err := storage.NewS3Storage(ctx, cfg.S3, logger)
	switch {
	case errors.Is(err, storage.ErrStorageNotConfigured):
		logger.Warn("media storage not configured, calendar entries will have no media URLs")
		files = nil
	case err != nil:
		_ = mongo.DisconnectDB(client)
		return nil, fmt.Errorf("init media storage: %w", err)
	}

	repos := service.Repositories{
		UnitOfWork:    mongo.NewUnitOfWork(client, cfg.Database.Transactions),
		Activities:    mongo.NewMongoActivityRepository(db),
		Enrollments:   mongo.NewMongoEnrollmentRepository(db),
		Plans:         mongo.NewMongoPlanRepository(db),
		PeriodConfigs: mongo.NewMongoPeriodConfigRepository(db),
		Exercises:     mongo.NewMongoExerciseRepository(db),
		Executions:    mongo.NewMongoExecutionRepository(db),
		Topics:        mongo.NewMongoWorkshopTopicRepository(db),
		TopicLogs:     mongo.NewMongoTopicLogRepository(db),
		Replications:  mongo.NewMongoReplicationRepository(db),
	}

	return &App{
		Config:   cfg,
		Location: loc,
		Executions: service.NewExecutionService(repos, files, service.ScheduleOptions{
			PeriodLengthDays: cfg.Schedule.PeriodLengthDays,
			BatchTimeout:     cfg.Schedule.BatchTimeout,
			Location:         loc,
		}, logger),
		Replications: service.NewReplicationService(repos, logger),
		Topics: service.NewTopicRecoveryService(repos, service.RecoveryOptions{
			DefaultCapacity: cfg.Workshop.DefaultCapacity,
			Location:        loc,
		}, logger),
		Repos:  repos,
		client: client,
		logger: logger,
	}, nil
}

// Close disconnects from MongoDB.
func (a *App) Close() {
	a.logger.Info("disconnecting MongoDB")
	if err := mongo.DisconnectDB(a.client); err != nil {
		a.logger.Error("failed to disconnect MongoDB", "error", err)
	}
}
