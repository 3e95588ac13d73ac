package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"resort/internal/database"
	apperrors "resort/internal/errors"
	"resort/internal/models"
)

type ReservationRepository struct {
	db *database.DB
}

func NewReservationRepository(db *database.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationColumns = `
	id, code, accommodation_id, guest_user_id, guest_name, guest_email, guest_phone,
	start_at, end_at, status, payment_status, payment_method, guests,
	entrance_adult, entrance_child, entrance_pwd_senior, amenities,
	amount_accommodation, amount_entrance, amount_amenities, amount_extra_person,
	amount_total, amount_paid, reschedule, walk_in, reminder_sent, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		r          models.Reservation
		userID     sql.NullString
		amenities  []byte
		reschedule []byte
	)

	err := row.Scan(
		&r.ID,
		&r.Code,
		&r.AccommodationID,
		&userID,
		&r.Guest.Name,
		&r.Guest.Email,
		&r.Guest.Phone,
		&r.StartAt,
		&r.EndAt,
		&r.Status,
		&r.PaymentStatus,
		&r.PaymentMethod,
		&r.Guests,
		&r.Entrances.Adult,
		&r.Entrances.Child,
		&r.Entrances.PWDSenior,
		&amenities,
		&r.Amount.Accommodation,
		&r.Amount.Entrance,
		&r.Amount.Amenities,
		&r.Amount.ExtraPersonFee,
		&r.Amount.Total,
		&r.Amount.TotalPaid,
		&reschedule,
		&r.WalkIn,
		&r.ReminderSent,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		r.Guest.UserID = &userID.String
	}
	if len(amenities) > 0 {
		if err := json.Unmarshal(amenities, &r.Amenities); err != nil {
			return nil, fmt.Errorf("failed to decode amenities of %s: %w", r.Code, err)
		}
	}
	if len(reschedule) > 0 {
		r.Reschedule = &models.RescheduleRequest{}
		if err := json.Unmarshal(reschedule, r.Reschedule); err != nil {
			return nil, fmt.Errorf("failed to decode reschedule of %s: %w", r.Code, err)
		}
	}
	return &r, nil
}

func scanReservations(rows *sql.Rows) ([]models.Reservation, error) {
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *r)
	}
	return reservations, rows.Err()
}

// JSONB columns are sent as text; lib/pq would encode []byte as bytea.
func encodeJSONColumns(r *models.Reservation) (amenities string, reschedule *string, err error) {
	lines := r.Amenities
	if lines == nil {
		lines = []models.AmenityLine{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode amenities: %w", err)
	}
	amenities = string(raw)

	if r.Reschedule != nil {
		raw, err := json.Marshal(r.Reschedule)
		if err != nil {
			return "", nil, fmt.Errorf("failed to encode reschedule: %w", err)
		}
		s := string(raw)
		reschedule = &s
	}
	return amenities, reschedule, nil
}

// LockAccommodation serializes date-range writers for one accommodation
// until the surrounding transaction ends.
func (r *ReservationRepository) LockAccommodation(ctx context.Context, accommodationID string) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, accommodationID)
	if err != nil {
		return fmt.Errorf("failed to lock accommodation %s: %w", accommodationID, err)
	}
	return nil
}

func (r *ReservationRepository) HasConflict(ctx context.Context, accommodationID string, start, end time.Time, excludeCode string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE accommodation_id = $1
			  AND status <> 'CANCELLED'
			  AND start_at < $3
			  AND end_at > $2
			  AND code <> $4
		)`

	var exists bool
	err := r.db.Conn(ctx).QueryRowContext(ctx, query, accommodationID, start, end, excludeCode).Scan(&exists)
	return exists, err
}

// Create inserts the reservation. A taken code yields ErrDuplicateCode without
// aborting the transaction; an overlapping range yields ErrRangeOverlap.
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	amenities, reschedule, err := encodeJSONColumns(res)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reservations (
			code, accommodation_id, guest_user_id, guest_name, guest_email, guest_phone,
			start_at, end_at, status, payment_status, payment_method, guests,
			entrance_adult, entrance_child, entrance_pwd_senior, amenities,
			amount_accommodation, amount_entrance, amount_amenities, amount_extra_person,
			amount_total, amount_paid, reschedule, walk_in, reminder_sent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $26)
		ON CONFLICT (code) DO NOTHING
		RETURNING id`

	err = r.db.Conn(ctx).QueryRowContext(ctx, query,
		res.Code,
		res.AccommodationID,
		res.Guest.UserID,
		res.Guest.Name,
		res.Guest.Email,
		res.Guest.Phone,
		res.StartAt,
		res.EndAt,
		res.Status,
		res.PaymentStatus,
		res.PaymentMethod,
		res.Guests,
		res.Entrances.Adult,
		res.Entrances.Child,
		res.Entrances.PWDSenior,
		amenities,
		res.Amount.Accommodation,
		res.Amount.Entrance,
		res.Amount.Amenities,
		res.Amount.ExtraPersonFee,
		res.Amount.Total,
		res.Amount.TotalPaid,
		reschedule,
		res.WalkIn,
		res.ReminderSent,
		res.CreatedAt,
	).Scan(&res.ID)

	switch {
	case err == sql.ErrNoRows:
		return apperrors.ErrDuplicateCode
	case isExclusionViolation(err):
		return apperrors.ErrRangeOverlap
	case err != nil:
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	res.UpdatedAt = res.CreatedAt
	return nil
}

func (r *ReservationRepository) Update(ctx context.Context, res *models.Reservation) error {
	amenities, reschedule, err := encodeJSONColumns(res)
	if err != nil {
		return err
	}

	query := `
		UPDATE reservations
		SET accommodation_id = $2, guest_user_id = $3, guest_name = $4, guest_email = $5,
		    guest_phone = $6, start_at = $7, end_at = $8, status = $9, payment_status = $10,
		    payment_method = $11, guests = $12, entrance_adult = $13, entrance_child = $14,
		    entrance_pwd_senior = $15, amenities = $16, amount_accommodation = $17,
		    amount_entrance = $18, amount_amenities = $19, amount_extra_person = $20,
		    amount_total = $21, amount_paid = $22, reschedule = $23, walk_in = $24,
		    reminder_sent = $25, updated_at = $26
		WHERE code = $1`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		res.Code,
		res.AccommodationID,
		res.Guest.UserID,
		res.Guest.Name,
		res.Guest.Email,
		res.Guest.Phone,
		res.StartAt,
		res.EndAt,
		res.Status,
		res.PaymentStatus,
		res.PaymentMethod,
		res.Guests,
		res.Entrances.Adult,
		res.Entrances.Child,
		res.Entrances.PWDSenior,
		amenities,
		res.Amount.Accommodation,
		res.Amount.Entrance,
		res.Amount.Amenities,
		res.Amount.ExtraPersonFee,
		res.Amount.Total,
		res.Amount.TotalPaid,
		reschedule,
		res.WalkIn,
		res.ReminderSent,
		res.UpdatedAt,
	)
	if isExclusionViolation(err) {
		return apperrors.ErrRangeOverlap
	}
	if err != nil {
		return fmt.Errorf("failed to update reservation %s: %w", res.Code, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("reservation %s not found", res.Code)
	}
	return nil
}

func (r *ReservationRepository) GetByCode(ctx context.Context, code string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE code = $1`

	res, err := scanReservation(r.db.Conn(ctx).QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return res, err
}

// GetByCodeForUpdate reads a reservation with SELECT ... FOR UPDATE. Outside
// a transaction the lock is released as soon as the statement ends.
func (r *ReservationRepository) GetByCodeForUpdate(ctx context.Context, code string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE code = $1 FOR UPDATE`

	res, err := scanReservation(r.db.Conn(ctx).QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return res, err
}

func (r *ReservationRepository) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	var (
		conditions []string
		args       []any
	)
	addArg := func(cond string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != nil {
		addArg("status = $%d", *filter.Status)
	}
	if filter.AccommodationID != nil {
		addArg("accommodation_id = $%d", *filter.AccommodationID)
	}
	if filter.WalkIn != nil {
		addArg("walk_in = $%d", *filter.WalkIn)
	}
	if filter.From != nil {
		addArg("end_at > $%d", *filter.From)
	}
	if filter.To != nil {
		addArg("start_at < $%d", *filter.To)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reservations: %w", err)
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations` + where +
		fmt.Sprintf(" ORDER BY start_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reservations: %w", err)
	}
	reservations, err := scanReservations(rows)
	if err != nil {
		return nil, 0, err
	}
	return reservations, total, nil
}

// ListAll streams every reservation in id order, used by the reindex command.
func (r *ReservationRepository) ListAll(ctx context.Context, afterID int64, limit int) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id > $1 ORDER BY id LIMIT $2`

	rows, err := r.db.QueryWithRetry(ctx, query, afterID, limit)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

func (r *ReservationRepository) Delete(ctx context.Context, code string) (bool, error) {
	result, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM reservations WHERE code = $1`, code)
	if err != nil {
		return false, fmt.Errorf("failed to delete reservation %s: %w", code, err)
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// CancelStalePending moves PENDING reservations whose start has passed to CANCELLED.
func (r *ReservationRepository) CancelStalePending(ctx context.Context, now time.Time) ([]string, error) {
	return r.transition(ctx, `
		UPDATE reservations
		SET status = 'CANCELLED', updated_at = $1
		WHERE status = 'PENDING' AND start_at < $1
		RETURNING code`, now)
}

// CompleteElapsed moves CONFIRMED reservations whose end has passed to COMPLETED.
func (r *ReservationRepository) CompleteElapsed(ctx context.Context, now time.Time) ([]string, error) {
	return r.transition(ctx, `
		UPDATE reservations
		SET status = 'COMPLETED', updated_at = $1
		WHERE status = 'CONFIRMED' AND end_at < $1
		RETURNING code`, now)
}

func (r *ReservationRepository) transition(ctx context.Context, query string, now time.Time) ([]string, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to transition reservations: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// ClaimDueReminders flips reminder_sent on CONFIRMED reservations starting in
// [from, to) and returns the claimed rows.
func (r *ReservationRepository) ClaimDueReminders(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	query := `
		UPDATE reservations
		SET reminder_sent = TRUE
		WHERE status = 'CONFIRMED' AND reminder_sent = FALSE
		  AND start_at >= $1 AND start_at < $2
		RETURNING ` + reservationColumns

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to claim reminders: %w", err)
	}
	return scanReservations(rows)
}

func (r *ReservationRepository) ListConfirmed(ctx context.Context, accommodationID *string) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE status = 'CONFIRMED' AND ($1::text IS NULL OR accommodation_id = $1)
		ORDER BY start_at`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, accommodationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed reservations: %w", err)
	}
	return scanReservations(rows)
}
