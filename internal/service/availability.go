package service

import (
	"context"
	"fmt"
	"time"

	apperrors "resort/internal/errors"
)

// AvailabilityService answers whether a date range is free for an accommodation.
type AvailabilityService struct {
	reservations ReservationStore
	blocked      BlockedRangeStore
}

func NewAvailabilityService(reservations ReservationStore, blocked BlockedRangeStore) *AvailabilityService {
	return &AvailabilityService{reservations: reservations, blocked: blocked}
}

// HasConflict reports whether a non-cancelled reservation of accommodationID
// overlaps [start, end). excludeCode, when set, is ignored.
func (s *AvailabilityService) HasConflict(ctx context.Context, accommodationID string, start, end time.Time, excludeCode string) (bool, error) {
	conflict, err := s.reservations.HasConflict(ctx, accommodationID, start, end, excludeCode)
	if err != nil {
		return false, fmt.Errorf("failed to check availability: %w", err)
	}
	return conflict, nil
}

// ensureFree must run inside a transaction: it takes the accommodation lock,
// which is held until commit, and then checks for overlaps.
func (s *AvailabilityService) ensureFree(ctx context.Context, accommodationID string, start, end time.Time, excludeCode string) error {
	if err := s.reservations.LockAccommodation(ctx, accommodationID); err != nil {
		return err
	}
	conflict, err := s.HasConflict(ctx, accommodationID, start, end, excludeCode)
	if err != nil {
		return err
	}
	if conflict {
		return errDatesUnavailable()
	}
	return nil
}

// IsBlackedOut reports whether a manual blackout or maintenance range that
// applies to accommodationID overlaps [start, end).
func (s *AvailabilityService) IsBlackedOut(ctx context.Context, accommodationID string, start, end time.Time) (bool, error) {
	if s.blocked == nil {
		return false, nil
	}
	ranges, err := s.blocked.List(ctx, &accommodationID)
	if err != nil {
		return false, err
	}
	for _, br := range ranges {
		if br.StartAt.Before(end) && start.Before(br.EndAt) {
			return true, nil
		}
	}
	return false, nil
}

func errDatesUnavailable() error {
	return apperrors.Conflict("dates unavailable: the selected range overlaps another reservation")
}
