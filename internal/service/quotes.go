package service

import (
	"context"
	"fmt"
	"time"

	apperrors "resort/internal/errors"
	"resort/internal/models"
)

type QuoteService struct {
	catalog      CatalogStore
	availability *AvailabilityService
	amenities    *amenityPricer
	fees         models.EntranceFees
}

func NewQuoteService(catalog CatalogStore, availability *AvailabilityService, amenities *amenityPricer, fees models.EntranceFees) *QuoteService {
	return &QuoteService{
		catalog:      catalog,
		availability: availability,
		amenities:    amenities,
		fees:         fees,
	}
}

// nightsBetween counts calendar midnights crossed in start's location.
func nightsBetween(start, end time.Time) int {
	end = end.In(start.Location())
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	startDay := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	endDay := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(endDay.Sub(startDay).Hours() / 24)
}

// priceStay computes every amount component except amenities.
func priceStay(acc *models.Accommodation, start, end time.Time, guests int, entrances models.EntranceTickets, fees models.EntranceFees) (models.AmountBreakdown, int) {
	nights := nightsBetween(start, end)

	var amount models.AmountBreakdown
	if nights == 0 {
		amount.Accommodation = acc.DayRate
	} else {
		amount.Accommodation = acc.NightRate * int64(nights)
	}
	amount.Entrance = fees.Total(entrances)
	if extra := guests - acc.Capacity; extra > 0 {
		amount.ExtraPersonFee = int64(extra) * acc.ExtraPersonRate
	}
	return amount, nights
}

func validateStay(start, end time.Time, guests int, entrances models.EntranceTickets) error {
	if !start.Before(end) {
		return apperrors.Validation("invalid date range: start must be before end")
	}
	if guests < 1 {
		return apperrors.Validation("guests must be at least 1")
	}
	if entrances.Adult < 0 || entrances.Child < 0 || entrances.PWDSenior < 0 {
		return apperrors.Validation("entrance ticket quantities cannot be negative")
	}
	return nil
}

// Quote prices a prospective stay and reports whether the dates are free.
func (s *QuoteService) Quote(ctx context.Context, req *models.QuoteRequest) (*models.QuoteResponse, error) {
	if err := validateStay(req.StartAt, req.EndAt, req.Guests, req.Entrances); err != nil {
		return nil, err
	}

	acc, err := s.catalog.GetAccommodation(ctx, req.AccommodationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get accommodation: %w", err)
	}
	if acc == nil {
		return nil, apperrors.NotFound("accommodation %s not found", req.AccommodationID)
	}

	amount, nights := priceStay(acc, req.StartAt, req.EndAt, req.Guests, req.Entrances, s.fees)

	lines, subtotal, err := s.amenities.lines(ctx, req.Amenities)
	if err != nil {
		return nil, err
	}
	amount.Amenities = subtotal
	amount.Recalculate()

	conflict, err := s.availability.HasConflict(ctx, req.AccommodationID, req.StartAt, req.EndAt, "")
	if err != nil {
		return nil, err
	}
	blackedOut, err := s.availability.IsBlackedOut(ctx, req.AccommodationID, req.StartAt, req.EndAt)
	if err != nil {
		return nil, fmt.Errorf("failed to check blocked ranges: %w", err)
	}

	return &models.QuoteResponse{
		Amount:         amount,
		MinimumPayable: amount.MinimumPayable(),
		Nights:         nights,
		Amenities:      lines,
		Available:      !conflict && !blackedOut,
	}, nil
}
