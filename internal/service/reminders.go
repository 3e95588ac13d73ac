package service

import (
	"context"
	"fmt"
	"time"

	"resort/internal/clock"
	"resort/internal/logger"
	"resort/internal/metrics"
	"resort/internal/models"
)

// ReminderService sends the one-shot pre-arrival reminder.
type ReminderService struct {
	reservations ReservationStore
	fx           *effects
	clock        clock.Clock
}

func NewReminderService(reservations ReservationStore, fx *effects, clk clock.Clock) *ReminderService {
	return &ReminderService{reservations: reservations, fx: fx, clock: clk}
}

// SendDue claims CONFIRMED reservations starting within window and queues a
// reminder for each. A reservation is claimed at most once.
func (s *ReminderService) SendDue(ctx context.Context, window time.Duration) (int, error) {
	now := s.clock.Now()
	due, err := s.reservations.ClaimDueReminders(ctx, now, now.Add(window))
	if err != nil {
		return 0, fmt.Errorf("failed to claim reminders: %w", err)
	}

	for i := range due {
		s.fx.notify(ctx, models.NotifyReminder, &due[i], "")
		metrics.RemindersSent.Inc()
	}
	if len(due) > 0 {
		logger.WithContext(ctx).Info("Reservation reminders queued", "count", len(due))
	}
	return len(due), nil
}
