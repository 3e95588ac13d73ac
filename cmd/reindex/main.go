package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"resort/internal/config"
	"resort/internal/database"
	"resort/internal/logger"
	"resort/internal/models"
	"resort/internal/repository"
	"resort/internal/search"

	"github.com/joho/godotenv"
)

type reservationPager interface {
	ListAll(ctx context.Context, afterID int64, limit int) ([]models.Reservation, error)
}

type reservationIndexer interface {
	IndexReservation(ctx context.Context, r *models.Reservation) error
}

func main() {
	var batchSize int
	flag.IntVar(&batchSize, "batch", 500, "Reservations fetched per page")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel, "text")

	esCfg := config.LoadElasticsearchConfig()
	if !esCfg.Enabled() {
		logger.Fatal("ELASTICSEARCH_URL is not set")
	}

	slog.Info("Connecting to database")
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	index, err := search.NewElasticsearchClient(esCfg)
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", "error", err)
	}

	if _, err := reindex(context.Background(), repository.NewReservationRepository(db), index, batchSize); err != nil {
		logger.Fatal("Reindex failed", "error", err)
	}
}

// reindex pages through every reservation by id and indexes each one.
// Individual indexing failures are logged and counted, not fatal.
func reindex(ctx context.Context, repo reservationPager, index reservationIndexer, batchSize int) (int, error) {
	start := time.Now()
	var afterID int64
	indexed, failed := 0, 0

	for {
		batch, err := repo.ListAll(ctx, afterID, batchSize)
		if err != nil {
			return indexed, fmt.Errorf("failed to fetch reservations after id %d: %w", afterID, err)
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			if err := index.IndexReservation(ctx, &batch[i]); err != nil {
				slog.Error("Failed to index reservation", "code", batch[i].Code, "error", err)
				failed++
				continue
			}
			indexed++
		}

		afterID = batch[len(batch)-1].ID
		slog.Info("Indexed batch", "last_id", afterID, "indexed", indexed)

		if len(batch) < batchSize {
			break
		}
	}

	elapsed := time.Since(start)
	slog.Info("Reindex completed",
		"indexed", indexed,
		"failed", failed,
		"duration", elapsed.String())

	return indexed, nil
}
