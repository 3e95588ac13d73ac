package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resort/cmd/consumers/handlers"
	"resort/cmd/consumers/jobs"
	"resort/internal/config"
	"resort/internal/consumers"
	"resort/internal/logger"
	"resort/internal/models"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	slog.Info("Starting consumers service...")

	// Client ids must differ from the API's within the streaming cluster
	cfg.NATS.ClientID = "resort-consumers"

	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	if index := consumerService.Search(); index != nil {
		sync := handlers.NewSearchSyncHandler(consumerService.Reservations(), index)
		if err := consumerService.Subscribe(models.SubjectActivityRecorded, sync.HandleActivityRecorded); err != nil {
			logger.Fatal("Failed to start search sync", "error", err)
		}
	}

	ctx, stop := context.WithCancel(context.Background())

	services := consumerService.Services()
	sweeper := jobs.NewStatusSweeperJob(services.Sweeper, cfg.SweepInterval)
	reminders := jobs.NewReminderJob(services.Reminders, cfg.ReminderInterval, cfg.ReminderWindow)
	sweeper.Start(ctx)
	reminders.Start(ctx)

	slog.Info("Consumers service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down consumers service...")

	sweeper.Stop()
	reminders.Stop()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}

	slog.Info("Consumers service stopped")
}
