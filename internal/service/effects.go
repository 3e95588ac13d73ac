package service

import (
	"context"

	"resort/internal/clock"
	"resort/internal/logger"
	"resort/internal/models"
)

// effects runs the post-commit side effects of reservation writes. None of
// them can fail the operation that triggered them; failures are logged.
type effects struct {
	activities ActivityStore
	bus        Publisher
	search     SearchIndex
	calendar   CalendarCache
	clock      clock.Clock
}

func (e *effects) record(ctx context.Context, events []models.ActivityEvent) {
	for i := range events {
		event := &events[i]
		if e.activities != nil {
			if err := e.activities.Insert(ctx, event); err != nil {
				logger.WithContext(ctx).Error("Failed to record activity",
					"error", err,
					"code", event.ReservationCode,
					"kind", event.Kind)
			}
		}
		if e.bus != nil {
			if err := e.bus.Publish(models.SubjectActivityRecorded, event); err != nil {
				logger.WithContext(ctx).Error("Failed to publish activity",
					"error", err,
					"code", event.ReservationCode,
					"kind", event.Kind)
			}
		}
	}
}

func (e *effects) notify(ctx context.Context, kind models.NotificationKind, r *models.Reservation, reason string) {
	if e.bus == nil {
		return
	}
	req := models.NotificationRequest{
		Kind:            kind,
		ReservationCode: r.Code,
		Guest:           r.Guest,
		AccommodationID: r.AccommodationID,
		StartAt:         r.StartAt,
		EndAt:           r.EndAt,
		Reason:          reason,
		Timestamp:       e.clock.Now(),
	}
	if req.Kind == models.NotifyRescheduleRequested && r.Reschedule != nil {
		req.StartAt = r.Reschedule.NewStartAt
		req.EndAt = r.Reschedule.NewEndAt
	}
	if err := e.bus.Publish(models.SubjectNotificationRequest, req); err != nil {
		logger.WithContext(ctx).Error("Failed to queue notification",
			"error", err,
			"code", r.Code,
			"kind", kind)
	}
}

func (e *effects) published(ctx context.Context, r *models.Reservation, intentID string) {
	if e.bus == nil {
		return
	}
	event := models.ReservationCreatedEvent{
		ReservationCode: r.Code,
		AccommodationID: r.AccommodationID,
		IntentID:        intentID,
		Total:           r.Amount.Total,
		TotalPaid:       r.Amount.TotalPaid,
		Timestamp:       e.clock.Now(),
	}
	if err := e.bus.Publish(models.SubjectReservationCreated, event); err != nil {
		logger.WithContext(ctx).Error("Failed to publish reservation created event",
			"error", err,
			"code", r.Code)
	}
}

func (e *effects) index(ctx context.Context, r *models.Reservation) {
	if e.search == nil {
		return
	}
	if err := e.search.IndexReservation(ctx, r); err != nil {
		logger.WithContext(ctx).Warn("Failed to index reservation", "error", err, "code", r.Code)
	}
}

func (e *effects) unindex(ctx context.Context, code string) {
	if e.search == nil {
		return
	}
	if err := e.search.DeleteReservation(ctx, code); err != nil {
		logger.WithContext(ctx).Warn("Failed to remove reservation from index", "error", err, "code", code)
	}
}

func (e *effects) invalidateCalendar(ctx context.Context) {
	if e.calendar == nil {
		return
	}
	if err := e.calendar.Invalidate(ctx); err != nil {
		logger.WithContext(ctx).Warn("Failed to invalidate calendar cache", "error", err)
	}
}
