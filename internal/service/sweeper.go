package service

import (
	"context"
	"fmt"

	"resort/internal/clock"
	"resort/internal/logger"
	"resort/internal/metrics"
	"resort/internal/models"
)

// SweepResult lists the reservations moved by one sweep.
type SweepResult struct {
	Cancelled []string `json:"cancelled"`
	Completed []string `json:"completed"`
}

// SweeperService applies the time-driven status transitions.
type SweeperService struct {
	reservations ReservationStore
	fx           *effects
	clock        clock.Clock
}

func NewSweeperService(reservations ReservationStore, fx *effects, clk clock.Clock) *SweeperService {
	return &SweeperService{reservations: reservations, fx: fx, clock: clk}
}

// CheckAndUpdateReservationStatus cancels PENDING reservations whose start has
// passed and completes CONFIRMED reservations whose end has passed. Running it
// again with no time elapsed changes nothing.
func (s *SweeperService) CheckAndUpdateReservationStatus(ctx context.Context) (*SweepResult, error) {
	now := s.clock.Now()

	cancelled, err := s.reservations.CancelStalePending(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel stale reservations: %w", err)
	}
	completed, err := s.reservations.CompleteElapsed(ctx, now)
	if err != nil {
		return &SweepResult{Cancelled: cancelled}, fmt.Errorf("failed to complete elapsed reservations: %w", err)
	}

	result := &SweepResult{Cancelled: cancelled, Completed: completed}
	if len(cancelled) == 0 && len(completed) == 0 {
		return result, nil
	}

	metrics.SweeperTransitions.WithLabelValues(string(models.StatusCancelled)).Add(float64(len(cancelled)))
	metrics.SweeperTransitions.WithLabelValues(string(models.StatusCompleted)).Add(float64(len(completed)))

	logger.WithContext(ctx).Info("Reservation statuses swept",
		"cancelled", len(cancelled),
		"completed", len(completed))

	s.afterTransition(ctx, cancelled, models.StatusPending, models.StatusCancelled)
	s.afterTransition(ctx, completed, models.StatusConfirmed, models.StatusCompleted)

	if len(completed) > 0 {
		s.fx.invalidateCalendar(ctx)
	}
	return result, nil
}

func (s *SweeperService) afterTransition(ctx context.Context, codes []string, from, to models.ReservationStatus) {
	now := s.clock.Now()
	for _, code := range codes {
		s.fx.record(ctx, []models.ActivityEvent{
			newActivity(models.ActivityStatusChanged, code, now, "Status changed from %s to %s", from, to),
		})
		if s.fx.search == nil {
			continue
		}
		r, err := s.reservations.GetByCode(ctx, code)
		if err != nil || r == nil {
			logger.WithContext(ctx).Warn("Failed to reload swept reservation", "error", err, "code", code)
			continue
		}
		s.fx.index(ctx, r)
	}
}
