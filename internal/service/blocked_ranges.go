package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"resort/internal/clock"
	apperrors "resort/internal/errors"
	"resort/internal/logger"
	"resort/internal/models"

	"github.com/google/uuid"
)

const allAccommodationsScope = "all"

// BlockedRangeService manages manual blackouts and serves the aggregated
// calendar of unavailable ranges.
type BlockedRangeService struct {
	blocked      BlockedRangeStore
	reservations ReservationStore
	catalog      CatalogStore
	cache        CalendarCache
	clock        clock.Clock
}

func NewBlockedRangeService(blocked BlockedRangeStore, reservations ReservationStore, catalog CatalogStore, cache CalendarCache, clk clock.Clock) *BlockedRangeService {
	return &BlockedRangeService{
		blocked:      blocked,
		reservations: reservations,
		catalog:      catalog,
		cache:        cache,
		clock:        clk,
	}
}

func originOf(br models.BlockedDateRange) models.BlockOrigin {
	switch {
	case br.Kind == models.BlockMaintenance:
		return models.OriginMaintenance
	case br.AccommodationID == nil:
		return models.OriginResortBlackout
	default:
		return models.OriginAccommodationBlock
	}
}

// List merges manual ranges with read-only ranges derived from confirmed
// reservations. A nil accommodationID returns the calendar of the whole resort.
func (s *BlockedRangeService) List(ctx context.Context, accommodationID *string) ([]models.BlockedDateRange, error) {
	scope := allAccommodationsScope
	if accommodationID != nil {
		scope = *accommodationID
	}
	log := logger.WithContext(ctx).With("scope", scope)

	cacheable := false
	var version int64
	if s.cache != nil {
		cached, v, hit, err := s.cache.Get(ctx, scope)
		switch {
		case err != nil:
			log.Warn("Calendar cache read failed", "error", err)
		case hit:
			return cached, nil
		default:
			cacheable, version = true, v
		}
	}

	manual, err := s.blocked.List(ctx, accommodationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked ranges: %w", err)
	}
	confirmed, err := s.reservations.ListConfirmed(ctx, accommodationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed reservations: %w", err)
	}

	ranges := make([]models.BlockedDateRange, 0, len(manual)+len(confirmed))
	for _, br := range manual {
		br.Origin = originOf(br)
		ranges = append(ranges, br)
	}
	for _, r := range confirmed {
		accID := r.AccommodationID
		ranges = append(ranges, models.BlockedDateRange{
			AccommodationID: &accID,
			StartAt:         r.StartAt,
			EndAt:           r.EndAt,
			Origin:          models.OriginBooked,
			ReservationCode: r.Code,
			ReadOnly:        true,
		})
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].StartAt.Before(ranges[j].StartAt)
	})

	if cacheable {
		if err := s.cache.Set(ctx, version, scope, ranges); err != nil {
			log.Warn("Calendar cache write failed", "error", err)
		}
	}
	return ranges, nil
}

func (s *BlockedRangeService) Create(ctx context.Context, req *models.CreateBlockedRangeRequest) (*models.BlockedDateRange, error) {
	if !req.StartAt.Before(req.EndAt) {
		return nil, apperrors.Validation("invalid date range: start must be before end")
	}
	kind := req.Kind
	if kind == "" {
		kind = models.BlockBlackout
	}
	if kind != models.BlockBlackout && kind != models.BlockMaintenance {
		return nil, apperrors.Validation("kind must be BLACKOUT or MAINTENANCE")
	}

	if req.AccommodationID != nil {
		acc, err := s.catalog.GetAccommodation(ctx, *req.AccommodationID)
		if err != nil {
			return nil, fmt.Errorf("failed to get accommodation: %w", err)
		}
		if acc == nil {
			return nil, apperrors.NotFound("accommodation %s not found", *req.AccommodationID)
		}
	}

	br := &models.BlockedDateRange{
		ID:              uuid.NewString(),
		AccommodationID: req.AccommodationID,
		StartAt:         req.StartAt.UTC(),
		EndAt:           req.EndAt.UTC(),
		Kind:            kind,
		Reason:          req.Reason,
		CreatedAt:       s.clock.Now(),
	}
	br.Origin = originOf(*br)

	if err := s.blocked.Create(ctx, br); err != nil {
		return nil, fmt.Errorf("failed to create blocked range: %w", err)
	}

	logger.WithContext(ctx).Info("Blocked range created",
		"id", br.ID,
		"kind", br.Kind,
		"start_at", br.StartAt.Format(time.RFC3339),
		"end_at", br.EndAt.Format(time.RFC3339))

	s.invalidate(ctx)
	return br, nil
}

func (s *BlockedRangeService) Delete(ctx context.Context, id string) error {
	deleted, err := s.blocked.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete blocked range: %w", err)
	}
	if !deleted {
		return apperrors.NotFound("blocked range %s not found", id)
	}
	logger.WithContext(ctx).Info("Blocked range deleted", "id", id)
	s.invalidate(ctx)
	return nil
}

func (s *BlockedRangeService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.WithContext(ctx).Warn("Failed to invalidate calendar cache", "error", err)
	}
}
