package repository

import (
	"context"
	"database/sql"
	"fmt"

	"resort/internal/database"
	"resort/internal/models"
)

type PaymentRepository struct {
	db *database.DB
}

func NewPaymentRepository(db *database.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// InsertIfAbsent is the reconciliation commit point: it returns false when a
// payment for the same intent already exists. A concurrent insert of the same
// intent blocks on the unique index until the other transaction ends.
func (r *PaymentRepository) InsertIfAbsent(ctx context.Context, payment *models.Payment) (bool, error) {
	query := `
		INSERT INTO payments (intent_id, reservation_code, amount, method, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (intent_id) DO NOTHING
		RETURNING id`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		payment.IntentID,
		payment.ReservationCode,
		payment.Amount,
		payment.Method,
		payment.CreatedAt,
	).Scan(&payment.ID)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert payment for intent %s: %w", payment.IntentID, err)
	}
	return true, nil
}

func (r *PaymentRepository) GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	payment := &models.Payment{}
	query := `
		SELECT id, intent_id, reservation_code, amount, method, created_at
		FROM payments
		WHERE intent_id = $1`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query, intentID).Scan(
		&payment.ID,
		&payment.IntentID,
		&payment.ReservationCode,
		&payment.Amount,
		&payment.Method,
		&payment.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return payment, err
}
