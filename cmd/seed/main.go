package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"resort/internal/config"
	"resort/internal/database"
	"resort/internal/logger"
	"resort/internal/models"
	"resort/internal/repository"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

var (
	catalogFile = flag.String("file", "", "JSON catalog with accommodations, amenities and blackouts (default: built-in sample)")
	dryRun      = flag.Bool("dry-run", false, "Show what would be written without making changes")
)

// Catalog is the seed file layout
type Catalog struct {
	Accommodations []models.Accommodation    `json:"accommodations"`
	Amenities      []models.Amenity          `json:"amenities"`
	Blackouts      []models.BlockedDateRange `json:"blackouts"`
}

// Rates are in centavos.
var sampleCatalog = Catalog{
	Accommodations: []models.Accommodation{
		{ID: "villa-1", Name: "Garden Villa", Type: "villa", Capacity: 6, DayRate: 450000, NightRate: 650000, ExtraPersonRate: 50000},
		{ID: "villa-2", Name: "Poolside Villa", Type: "villa", Capacity: 8, DayRate: 550000, NightRate: 800000, ExtraPersonRate: 50000},
		{ID: "cottage-1", Name: "Beach Cottage", Type: "cottage", Capacity: 4, DayRate: 150000, NightRate: 250000, ExtraPersonRate: 30000},
		{ID: "cottage-2", Name: "Hillside Cottage", Type: "cottage", Capacity: 4, DayRate: 150000, NightRate: 250000, ExtraPersonRate: 30000},
		{ID: "pavilion", Name: "Events Pavilion", Type: "pavilion", Capacity: 80, DayRate: 1500000, NightRate: 2500000},
	},
	Amenities: []models.Amenity{
		{ID: "kayak", Name: "Kayak", Price: 80000, Active: true},
		{ID: "bbq-grill", Name: "BBQ Grill", Price: 50000, Active: true},
		{ID: "videoke", Name: "Videoke Set", Price: 100000, Active: true},
		{ID: "extra-bed", Name: "Extra Bed", Price: 40000, Active: true},
		{ID: "bonfire", Name: "Bonfire Setup", Price: 60000, Active: false},
	},
}

// sampleBlackouts are relative to today so a fresh environment always has
// something on the calendar.
func sampleBlackouts(now time.Time) []models.BlockedDateRange {
	today := now.UTC().Truncate(24 * time.Hour)
	cottage := "cottage-2"
	return []models.BlockedDateRange{
		{
			AccommodationID: &cottage,
			StartAt:         today.AddDate(0, 0, 14),
			EndAt:           today.AddDate(0, 0, 16),
			Kind:            models.BlockMaintenance,
			Reason:          "Roof repair",
		},
		{
			StartAt: today.AddDate(0, 0, 30),
			EndAt:   today.AddDate(0, 0, 31),
			Kind:    models.BlockBlackout,
			Reason:  "Private resort event",
		},
	}
}

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel, "text")

	catalog, err := loadCatalog(*catalogFile)
	if err != nil {
		logger.Fatal("Failed to load catalog", "error", err)
	}

	if *dryRun {
		for _, acc := range catalog.Accommodations {
			slog.Info("Would upsert accommodation", "id", acc.ID, "name", acc.Name, "night_rate", acc.NightRate)
		}
		for _, a := range catalog.Amenities {
			slog.Info("Would upsert amenity", "id", a.ID, "name", a.Name, "price", a.Price)
		}
		for _, br := range catalog.Blackouts {
			slog.Info("Would replace blackout", "id", br.ID, "kind", br.Kind, "start_at", br.StartAt, "end_at", br.EndAt)
		}
		return
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	repos := repository.NewRepositories(db)
	if err := seed(context.Background(), db, repos.Catalog, repos.BlockedRanges, catalog); err != nil {
		logger.Fatal("Failed to seed catalog", "error", err)
	}

	slog.Info("Catalog seeded",
		"accommodations", len(catalog.Accommodations),
		"amenities", len(catalog.Amenities),
		"blackouts", len(catalog.Blackouts))
}

func loadCatalog(path string) (Catalog, error) {
	if path == "" {
		c := sampleCatalog
		c.Blackouts = sampleBlackouts(time.Now())
		return withBlackoutIDs(c), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}

	var catalog Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("invalid catalog file %s: %w", path, err)
	}
	return withBlackoutIDs(catalog), validateCatalog(catalog)
}

// withBlackoutIDs derives a stable id from each blackout's scope and reason so
// that re-running the seed replaces ranges instead of duplicating them.
func withBlackoutIDs(c Catalog) Catalog {
	for i := range c.Blackouts {
		br := &c.Blackouts[i]
		if br.ID != "" {
			continue
		}
		scope := "all"
		if br.AccommodationID != nil {
			scope = *br.AccommodationID
		}
		br.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("resort-seed:"+scope+":"+br.Reason)).String()
	}
	return c
}

func validateCatalog(c Catalog) error {
	for _, acc := range c.Accommodations {
		if acc.ID == "" || acc.Capacity <= 0 {
			return fmt.Errorf("accommodation %q needs an id and a positive capacity", acc.Name)
		}
		if acc.DayRate < 0 || acc.NightRate < 0 || acc.ExtraPersonRate < 0 {
			return fmt.Errorf("accommodation %s has a negative rate", acc.ID)
		}
	}
	for _, a := range c.Amenities {
		if a.ID == "" || a.Price < 0 {
			return fmt.Errorf("amenity %q needs an id and a non-negative price", a.Name)
		}
	}
	for _, br := range c.Blackouts {
		if !br.StartAt.Before(br.EndAt) {
			return fmt.Errorf("blackout %q must start before it ends", br.Reason)
		}
		if br.Kind != models.BlockBlackout && br.Kind != models.BlockMaintenance {
			return fmt.Errorf("blackout %q has unknown kind %q", br.Reason, br.Kind)
		}
	}
	return nil
}

// seed writes the whole catalog in one transaction.
func seed(ctx context.Context, db *database.DB, repo *repository.CatalogRepository, blocked *repository.BlockedRangeRepository, c Catalog) error {
	return db.WithTx(ctx, func(ctx context.Context) error {
		for i := range c.Accommodations {
			if err := repo.UpsertAccommodation(ctx, &c.Accommodations[i]); err != nil {
				return fmt.Errorf("accommodation %s: %w", c.Accommodations[i].ID, err)
			}
		}
		for i := range c.Amenities {
			if err := repo.UpsertAmenity(ctx, &c.Amenities[i]); err != nil {
				return fmt.Errorf("amenity %s: %w", c.Amenities[i].ID, err)
			}
		}
		now := time.Now().UTC()
		for i := range c.Blackouts {
			br := &c.Blackouts[i]
			if _, err := blocked.Delete(ctx, br.ID); err != nil {
				return err
			}
			br.CreatedAt = now
			if err := blocked.Create(ctx, br); err != nil {
				return fmt.Errorf("blackout %s: %w", br.ID, err)
			}
		}
		return nil
	})
}
