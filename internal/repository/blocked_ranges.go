package repository

import (
	"context"
	"database/sql"
	"fmt"

	"resort/internal/database"
	"resort/internal/models"
)

type BlockedRangeRepository struct {
	db *database.DB
}

func NewBlockedRangeRepository(db *database.DB) *BlockedRangeRepository {
	return &BlockedRangeRepository{db: db}
}

// List returns manual ranges. With an accommodation id, only global ranges and
// ranges scoped to that accommodation are returned.
func (r *BlockedRangeRepository) List(ctx context.Context, accommodationID *string) ([]models.BlockedDateRange, error) {
	query := `
		SELECT id, accommodation_id, start_at, end_at, kind, reason, created_at
		FROM blocked_date_ranges
		WHERE $1::text IS NULL OR accommodation_id IS NULL OR accommodation_id = $1
		ORDER BY start_at`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, accommodationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked ranges: %w", err)
	}
	defer rows.Close()

	var ranges []models.BlockedDateRange
	for rows.Next() {
		var (
			br    models.BlockedDateRange
			accID sql.NullString
		)
		if err := rows.Scan(&br.ID, &accID, &br.StartAt, &br.EndAt, &br.Kind, &br.Reason, &br.CreatedAt); err != nil {
			return nil, err
		}
		if accID.Valid {
			br.AccommodationID = &accID.String
		}
		ranges = append(ranges, br)
	}
	return ranges, rows.Err()
}

func (r *BlockedRangeRepository) Create(ctx context.Context, br *models.BlockedDateRange) error {
	query := `
		INSERT INTO blocked_date_ranges (id, accommodation_id, start_at, end_at, kind, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		br.ID, br.AccommodationID, br.StartAt, br.EndAt, br.Kind, br.Reason, br.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create blocked range: %w", err)
	}
	return nil
}

func (r *BlockedRangeRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM blocked_date_ranges WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete blocked range %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}
