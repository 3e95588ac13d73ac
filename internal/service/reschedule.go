package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resort/internal/clock"
	apperrors "resort/internal/errors"
	"resort/internal/logger"
	"resort/internal/models"
)

// Guests may only ask to move a stay that starts at least this far ahead.
const rescheduleLeadTime = 48 * time.Hour

type RescheduleService struct {
	tx           TxRunner
	reservations ReservationStore
	availability *AvailabilityService
	fx           *effects
	clock        clock.Clock
}

func NewRescheduleService(tx TxRunner, reservations ReservationStore, availability *AvailabilityService, fx *effects, clk clock.Clock) *RescheduleService {
	return &RescheduleService{
		tx:           tx,
		reservations: reservations,
		availability: availability,
		fx:           fx,
		clock:        clk,
	}
}

// Request records a pending date change. The reservation dates stay as they
// are until staff approve it.
func (s *RescheduleService) Request(ctx context.Context, code string, newStart, newEnd time.Time, requestedBy string) (*models.Reservation, error) {
	newStart, newEnd = newStart.UTC(), newEnd.UTC()
	if !newStart.Before(newEnd) {
		return nil, apperrors.Validation("invalid date range: start must be before end")
	}

	now := s.clock.Now()
	var r *models.Reservation

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := lockReservation(ctx, s.reservations, code)
		if err != nil {
			return err
		}

		if current.Status != models.StatusPending && current.Status != models.StatusConfirmed {
			return apperrors.State("a %s reservation cannot be rescheduled", current.Status)
		}
		if current.StartAt.Sub(now) < rescheduleLeadTime {
			return apperrors.Validation("reschedule requests must be made at least 48 hours before the stay")
		}
		if current.Reschedule != nil && current.Reschedule.Status == models.ReschedulePending {
			return apperrors.State("a reschedule request is already pending")
		}

		conflict, err := s.availability.HasConflict(ctx, current.AccommodationID, newStart, newEnd, current.Code)
		if err != nil {
			return err
		}
		if conflict {
			return errDatesUnavailable()
		}

		current.Reschedule = &models.RescheduleRequest{
			Status:      models.ReschedulePending,
			OldStartAt:  current.StartAt,
			OldEndAt:    current.EndAt,
			NewStartAt:  newStart,
			NewEndAt:    newEnd,
			RequestedBy: requestedBy,
			RequestedAt: now,
		}
		current.UpdatedAt = now
		r = current
		return s.reservations.Update(ctx, current)
	})
	switch {
	case apperrors.KindOf(err) != apperrors.KindInternal:
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to store reschedule request: %w", err)
	}

	logger.WithContext(ctx).Info("Reschedule requested",
		"code", r.Code,
		"new_start_at", newStart,
		"new_end_at", newEnd)

	s.fx.record(ctx, []models.ActivityEvent{
		newActivity(models.ActivityRescheduleRequested, r.Code, now,
			"Reschedule requested by %s: %s to %s", requestedBy,
			formatRange(r.StartAt, r.EndAt), formatRange(newStart, newEnd)),
	})
	s.fx.notify(ctx, models.NotifyRescheduleRequested, r, "")
	s.fx.index(ctx, r)
	return r, nil
}

// Decide approves or rejects the pending request. The pending state is checked
// on the locked row, and approval re-checks the new range under the
// accommodation lock before moving the dates.
func (s *RescheduleService) Decide(ctx context.Context, code string, action models.RescheduleAction, reason *string, decidedBy string) (*models.Reservation, error) {
	if action != models.RescheduleApprove && action != models.RescheduleReject {
		return nil, apperrors.Validation("action must be APPROVE or REJECT")
	}

	now := s.clock.Now()
	var decided *models.Reservation

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := lockReservation(ctx, s.reservations, code)
		if err != nil {
			return err
		}
		if current.Reschedule == nil || current.Reschedule.Status != models.ReschedulePending {
			return apperrors.State("no pending reschedule request")
		}

		if action == models.RescheduleApprove {
			req := current.Reschedule
			if err := s.availability.ensureFree(ctx, current.AccommodationID, req.NewStartAt, req.NewEndAt, current.Code); err != nil {
				return err
			}
			current.StartAt = req.NewStartAt
			current.EndAt = req.NewEndAt
			current.Reschedule.Status = models.RescheduleApproved
		} else {
			current.Reschedule.Status = models.RescheduleRejected
		}
		current.Reschedule.DecidedBy = &decidedBy
		current.Reschedule.DecidedAt = &now
		current.Reschedule.DecisionReason = reason
		current.UpdatedAt = now
		decided = current
		return s.reservations.Update(ctx, current)
	})

	switch {
	case errors.Is(err, apperrors.ErrRangeOverlap):
		return nil, errDatesUnavailable()
	case apperrors.KindOf(err) != apperrors.KindInternal:
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to decide reschedule request: %w", err)
	}

	reasonText := ""
	if reason != nil {
		reasonText = *reason
	}

	logger.WithContext(ctx).Info("Reschedule decided",
		"code", decided.Code,
		"action", action,
		"decided_by", decidedBy)

	description := fmt.Sprintf("Reschedule %s by %s", decided.Reschedule.Status, decidedBy)
	if reasonText != "" {
		description += ": " + reasonText
	}
	s.fx.record(ctx, []models.ActivityEvent{
		newActivity(models.ActivityRescheduleDecided, decided.Code, now, "%s", description),
	})

	if action == models.RescheduleApprove {
		s.fx.notify(ctx, models.NotifyRescheduleApproved, decided, "")
		s.fx.invalidateCalendar(ctx)
	} else {
		s.fx.notify(ctx, models.NotifyRescheduleRejected, decided, reasonText)
	}
	s.fx.index(ctx, decided)
	return decided, nil
}
