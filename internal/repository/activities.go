package repository

import (
	"context"
	"fmt"

	"resort/internal/database"
	"resort/internal/models"
)

// ActivityRepository is the append-only reservation audit log
type ActivityRepository struct {
	db *database.DB
}

func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Insert(ctx context.Context, event *models.ActivityEvent) error {
	query := `
		INSERT INTO reservation_activities (reservation_code, kind, description, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		event.ReservationCode, event.Kind, event.Description, event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

func (r *ActivityRepository) ListByReservation(ctx context.Context, code string) ([]models.ActivityEvent, error) {
	query := `
		SELECT id, reservation_code, kind, description, created_at
		FROM reservation_activities
		WHERE reservation_code = $1
		ORDER BY created_at, id`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var events []models.ActivityEvent
	for rows.Next() {
		var e models.ActivityEvent
		if err := rows.Scan(&e.ID, &e.ReservationCode, &e.Kind, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
