package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"resort/internal/clock"
	apperrors "resort/internal/errors"
	"resort/internal/logger"
	"resort/internal/metrics"
	"resort/internal/models"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxCodeAttempts = 5
)

type ReservationService struct {
	tx           TxRunner
	reservations ReservationStore
	catalog      CatalogStore
	activities   ActivityStore
	availability *AvailabilityService
	amenities    *amenityPricer
	fx           *effects
	search       SearchIndex
	clock        clock.Clock
	newCode      func() string
}

func NewReservationService(tx TxRunner, reservations ReservationStore, catalog CatalogStore, activities ActivityStore, availability *AvailabilityService, amenities *amenityPricer, fx *effects, search SearchIndex, clk clock.Clock) *ReservationService {
	return &ReservationService{
		tx:           tx,
		reservations: reservations,
		catalog:      catalog,
		activities:   activities,
		availability: availability,
		amenities:    amenities,
		fx:           fx,
		search:       search,
		clock:        clk,
		newCode:      newReservationCode,
	}
}

// newReservationCode returns a short shareable code such as RS-4F1A09C2.
func newReservationCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "RS-" + strings.ToUpper(raw[:8])
}

// createGate runs inside the creation transaction, before the reservation is
// inserted, with the code the reservation will get.
type createGate func(ctx context.Context, code string) error

// Create creates a reservation directly (staff or walk-in path).
func (s *ReservationService) Create(ctx context.Context, req *models.CreateReservationRequest) (*models.Reservation, error) {
	return s.create(ctx, req, "staff", nil)
}

func (s *ReservationService) create(ctx context.Context, req *models.CreateReservationRequest, source string, gate createGate) (*models.Reservation, error) {
	if err := validateStay(req.StartAt, req.EndAt, req.Guests, req.Entrances); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Guest.Name) == "" {
		return nil, apperrors.Validation("guest name is required")
	}

	status := req.Status
	if status == "" {
		status = models.StatusPending
	}
	if status != models.StatusPending && status != models.StatusConfirmed {
		return nil, apperrors.Validation("a new reservation must be PENDING or CONFIRMED, got %s", status)
	}

	acc, err := s.catalog.GetAccommodation(ctx, req.AccommodationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get accommodation: %w", err)
	}
	if acc == nil {
		return nil, apperrors.NotFound("accommodation %s not found", req.AccommodationID)
	}

	amount := req.Amount
	lines := []models.AmenityLine{}
	if len(req.Amenities) > 0 {
		var subtotal int64
		lines, subtotal, err = s.amenities.lines(ctx, req.Amenities)
		if err != nil {
			return nil, err
		}
		amount.Amenities = subtotal
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	amount.Recalculate()

	if amount.TotalPaid < amount.MinimumPayable() {
		return nil, apperrors.Validation("insufficient payment: at least %s is required, got %s",
			formatMoney(amount.MinimumPayable()), formatMoney(amount.TotalPaid))
	}

	now := s.clock.Now()
	r := &models.Reservation{
		AccommodationID: acc.ID,
		Guest:           req.Guest,
		StartAt:         req.StartAt.UTC(),
		EndAt:           req.EndAt.UTC(),
		Status:          status,
		PaymentStatus:   amount.PaymentStatus(),
		PaymentMethod:   req.PaymentMethod,
		Guests:          req.Guests,
		Entrances:       req.Entrances,
		Amenities:       lines,
		Amount:          amount,
		WalkIn:          req.WalkIn.Bool(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for attempt := 1; ; attempt++ {
		r.Code = s.newCode()
		err = s.tx.WithTx(ctx, func(ctx context.Context) error {
			if gate != nil {
				if err := gate(ctx, r.Code); err != nil {
					return err
				}
			}
			if err := s.availability.ensureFree(ctx, r.AccommodationID, r.StartAt, r.EndAt, ""); err != nil {
				return err
			}
			return s.reservations.Create(ctx, r)
		})
		if !errors.Is(err, apperrors.ErrDuplicateCode) || attempt == maxCodeAttempts {
			break
		}
		logger.WithContext(ctx).Warn("Reservation code collision, retrying", "code", r.Code, "attempt", attempt)
	}

	switch {
	case errors.Is(err, apperrors.ErrRangeOverlap):
		return nil, errDatesUnavailable()
	case apperrors.KindOf(err) != apperrors.KindInternal:
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	metrics.ReservationsCreated.WithLabelValues(source).Inc()
	logger.WithContext(ctx).Info("Reservation created",
		"code", r.Code,
		"accommodation_id", r.AccommodationID,
		"status", r.Status,
		"source", source)

	s.fx.record(ctx, creationEvents(r, now))
	s.fx.notify(ctx, models.NotifyReservationCreated, r, "")
	s.fx.index(ctx, r)
	if r.Status == models.StatusConfirmed {
		s.fx.invalidateCalendar(ctx)
	}

	return r, nil
}

func validateAmount(a models.AmountBreakdown) error {
	if a.Accommodation < 0 || a.Entrance < 0 || a.Amenities < 0 || a.ExtraPersonFee < 0 || a.TotalPaid < 0 {
		return apperrors.Validation("amounts cannot be negative")
	}
	return nil
}

func (s *ReservationService) Get(ctx context.Context, code string) (*models.Reservation, error) {
	r, err := s.reservations.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if r == nil {
		return nil, apperrors.NotFound("reservation %s not found", code)
	}
	return r, nil
}

func (s *ReservationService) List(ctx context.Context, filter models.ReservationFilter) (*models.ListReservationsResponse, error) {
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = defaultPageSize
	}
	if filter.Page < 1 {
		return nil, apperrors.Validation("page must be at least 1")
	}
	if filter.PageSize < 1 || filter.PageSize > maxPageSize {
		return nil, apperrors.Validation("pageSize must be between 1 and %d", maxPageSize)
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperrors.Validation("unknown status %s", *filter.Status)
	}

	items, total, err := s.reservations.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	if items == nil {
		items = []models.Reservation{}
	}

	return &models.ListReservationsResponse{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// Search runs a free-text query against the search index and loads the hits.
func (s *ReservationService) Search(ctx context.Context, query string, page, pageSize int) (*models.ListReservationsResponse, error) {
	if s.search == nil {
		return nil, apperrors.Upstream(nil, "reservation search is not configured")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	codes, total, err := s.search.Search(ctx, query, page, pageSize)
	if err != nil {
		return nil, apperrors.Upstream(err, "reservation search failed")
	}

	items := make([]models.Reservation, 0, len(codes))
	for _, code := range codes {
		r, err := s.reservations.GetByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to get reservation: %w", err)
		}
		if r != nil {
			items = append(items, *r)
		}
	}

	return &models.ListReservationsResponse{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func applyPatch(r *models.Reservation, patch *models.ReservationPatch) error {
	if patch.AccommodationID != nil {
		r.AccommodationID = *patch.AccommodationID
	}
	if patch.Guest != nil {
		r.Guest = *patch.Guest
	}
	if patch.StartAt != nil {
		r.StartAt = patch.StartAt.UTC()
	}
	if patch.EndAt != nil {
		r.EndAt = patch.EndAt.UTC()
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return apperrors.Validation("unknown status %s", *patch.Status)
		}
		r.Status = *patch.Status
	}
	if patch.Guests != nil {
		r.Guests = *patch.Guests
	}
	if patch.Entrances != nil {
		r.Entrances = *patch.Entrances
	}
	if patch.PaymentMethod != nil {
		r.PaymentMethod = *patch.PaymentMethod
	}
	if patch.WalkIn != nil {
		r.WalkIn = *patch.WalkIn
	}
	if a := patch.Amount; a != nil {
		if a.Accommodation != nil {
			r.Amount.Accommodation = *a.Accommodation
		}
		if a.Entrance != nil {
			r.Amount.Entrance = *a.Entrance
		}
		if a.Amenities != nil {
			return apperrors.Validation("the amenity amount follows the amenity line items; update them through the amenities endpoint")
		}
		if a.ExtraPersonFee != nil {
			r.Amount.ExtraPersonFee = *a.ExtraPersonFee
		}
		if a.TotalPaid != nil {
			r.Amount.TotalPaid = *a.TotalPaid
		}
	}
	return nil
}

// Update applies a partial patch. The total is always recomputed from its
// components and the date range is re-validated when it, the accommodation
// or a cancelled status changes. The row stays locked from read to write.
func (s *ReservationService) Update(ctx context.Context, code string, patch *models.ReservationPatch) (*models.Reservation, error) {
	now := s.clock.Now()
	var before, after models.Reservation

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := lockReservation(ctx, s.reservations, code)
		if err != nil {
			return err
		}
		before = *current
		after = current.Clone()

		if err := applyPatch(&after, patch); err != nil {
			return err
		}
		if err := validateStay(after.StartAt, after.EndAt, after.Guests, after.Entrances); err != nil {
			return err
		}
		if err := validateAmount(after.Amount); err != nil {
			return err
		}
		if strings.TrimSpace(after.Guest.Name) == "" {
			return apperrors.Validation("guest name is required")
		}

		if after.AccommodationID != before.AccommodationID {
			acc, err := s.catalog.GetAccommodation(ctx, after.AccommodationID)
			if err != nil {
				return fmt.Errorf("failed to get accommodation: %w", err)
			}
			if acc == nil {
				return apperrors.NotFound("accommodation %s not found", after.AccommodationID)
			}
		}

		after.Amount.Recalculate()
		after.PaymentStatus = after.Amount.PaymentStatus()
		after.UpdatedAt = now

		rangeMoved := !before.StartAt.Equal(after.StartAt) || !before.EndAt.Equal(after.EndAt) ||
			before.AccommodationID != after.AccommodationID ||
			before.Status == models.StatusCancelled
		if rangeMoved && after.Status != models.StatusCancelled {
			if err := s.availability.ensureFree(ctx, after.AccommodationID, after.StartAt, after.EndAt, after.Code); err != nil {
				return err
			}
		}
		return s.reservations.Update(ctx, &after)
	})
	switch {
	case errors.Is(err, apperrors.ErrRangeOverlap):
		return nil, errDatesUnavailable()
	case apperrors.KindOf(err) != apperrors.KindInternal:
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}

	s.fx.record(ctx, DiffReservations(before, after, now))
	s.fx.index(ctx, &after)
	if affectsCalendar(&before, &after) {
		s.fx.invalidateCalendar(ctx)
	}
	return &after, nil
}

// lockReservation loads a reservation and locks its row until the
// transaction carried by ctx ends.
func lockReservation(ctx context.Context, store ReservationStore, code string) (*models.Reservation, error) {
	r, err := store.GetByCodeForUpdate(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}
	if r == nil {
		return nil, apperrors.NotFound("reservation %s not found", code)
	}
	return r, nil
}

// affectsCalendar reports whether the set of booked ranges may have changed.
func affectsCalendar(before, after *models.Reservation) bool {
	if before.Status != models.StatusConfirmed && after.Status != models.StatusConfirmed {
		return false
	}
	return before.Status != after.Status ||
		before.AccommodationID != after.AccommodationID ||
		!before.StartAt.Equal(after.StartAt) ||
		!before.EndAt.Equal(after.EndAt)
}

// UpdateAmenities replaces the amenity line items and recomputes the totals.
func (s *ReservationService) UpdateAmenities(ctx context.Context, code string, items []models.AmenityItem) (*models.Reservation, error) {
	lines, subtotal, err := s.amenities.lines(ctx, items)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var before, after models.Reservation

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := lockReservation(ctx, s.reservations, code)
		if err != nil {
			return err
		}
		before = *current
		after = current.Clone()
		after.Amenities = lines
		after.Amount.Amenities = subtotal
		after.Amount.Recalculate()
		after.PaymentStatus = after.Amount.PaymentStatus()
		after.UpdatedAt = now
		return s.reservations.Update(ctx, &after)
	})
	switch {
	case apperrors.KindOf(err) != apperrors.KindInternal:
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to update amenities: %w", err)
	}

	events := []models.ActivityEvent{amenityEvent(after.Code, lines, now)}
	events = append(events, paymentEvents(before, after, now)...)
	s.fx.record(ctx, events)
	s.fx.index(ctx, &after)
	return &after, nil
}

// Delete removes a reservation permanently.
func (s *ReservationService) Delete(ctx context.Context, code string) error {
	deleted, err := s.reservations.Delete(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	if !deleted {
		return apperrors.NotFound("reservation %s not found", code)
	}

	logger.WithContext(ctx).Info("Reservation deleted", "code", code)
	s.fx.record(ctx, []models.ActivityEvent{
		newActivity(models.ActivityUpdated, code, s.clock.Now(), "Reservation deleted"),
	})
	s.fx.unindex(ctx, code)
	s.fx.invalidateCalendar(ctx)
	return nil
}

// Activity returns the audit trail of a reservation. A reservation with no
// recorded events gets a synthetic creation event, which is persisted.
func (s *ReservationService) Activity(ctx context.Context, code string) ([]models.ActivityEvent, error) {
	r, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	events, err := s.activities.ListByReservation(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	if len(events) > 0 {
		return events, nil
	}

	created := newActivity(models.ActivityCreated, r.Code, r.CreatedAt,
		"Reservation created for %s (%s)", r.AccommodationID, formatRange(r.StartAt, r.EndAt))
	if err := s.activities.Insert(ctx, &created); err != nil {
		logger.WithContext(ctx).Warn("Failed to persist synthetic creation event", "error", err, "code", code)
	}
	return []models.ActivityEvent{created}, nil
}
