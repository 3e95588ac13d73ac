package repository

import (
	"context"
	"database/sql"
	"fmt"

	"resort/internal/database"
	"resort/internal/models"

	"github.com/lib/pq"
)

// CatalogRepository reads accommodations and amenities
type CatalogRepository struct {
	db *database.DB
}

func NewCatalogRepository(db *database.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) GetAccommodation(ctx context.Context, id string) (*models.Accommodation, error) {
	acc := &models.Accommodation{}
	query := `
		SELECT id, name, type, capacity, day_rate, night_rate, extra_person_rate
		FROM accommodations
		WHERE id = $1`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query, id).Scan(
		&acc.ID,
		&acc.Name,
		&acc.Type,
		&acc.Capacity,
		&acc.DayRate,
		&acc.NightRate,
		&acc.ExtraPersonRate,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return acc, err
}

// GetAmenitiesByIDs returns the active amenities among ids; unknown ids are skipped.
func (r *CatalogRepository) GetAmenitiesByIDs(ctx context.Context, ids []string) ([]models.Amenity, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, name, price, active
		FROM amenities
		WHERE id = ANY($1) AND active
		ORDER BY id`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get amenities: %w", err)
	}
	defer rows.Close()

	var amenities []models.Amenity
	for rows.Next() {
		var a models.Amenity
		if err := rows.Scan(&a.ID, &a.Name, &a.Price, &a.Active); err != nil {
			return nil, err
		}
		amenities = append(amenities, a)
	}
	return amenities, rows.Err()
}

// UpsertAccommodation is used by the seed command.
func (r *CatalogRepository) UpsertAccommodation(ctx context.Context, acc *models.Accommodation) error {
	query := `
		INSERT INTO accommodations (id, name, type, capacity, day_rate, night_rate, extra_person_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, type = EXCLUDED.type, capacity = EXCLUDED.capacity,
		    day_rate = EXCLUDED.day_rate, night_rate = EXCLUDED.night_rate,
		    extra_person_rate = EXCLUDED.extra_person_rate`

	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		acc.ID, acc.Name, acc.Type, acc.Capacity, acc.DayRate, acc.NightRate, acc.ExtraPersonRate)
	return err
}

// UpsertAmenity is used by the seed command.
func (r *CatalogRepository) UpsertAmenity(ctx context.Context, a *models.Amenity) error {
	query := `
		INSERT INTO amenities (id, name, price, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price, active = EXCLUDED.active`

	_, err := r.db.Conn(ctx).ExecContext(ctx, query, a.ID, a.Name, a.Price, a.Active)
	return err
}
