package service

import (
	"testing"
	"time"

	apperrors "resort/internal/errors"
	"resort/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestReschedule(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(10), day(12)))

	updated, err := f.svc.Reschedules.Request(f.ctx, r.Code, day(15), day(17), "maria@example.test")
	require.NoError(t, err)

	require.NotNil(t, updated.Reschedule)
	assert.Equal(t, models.ReschedulePending, updated.Reschedule.Status)
	assert.Equal(t, day(10), updated.Reschedule.OldStartAt)
	assert.Equal(t, day(15), updated.Reschedule.NewStartAt)
	assert.Equal(t, day(10), updated.StartAt, "dates move only on approval")

	assert.Contains(t, f.activityKinds(r.Code), models.ActivityRescheduleRequested)
	notes := f.bus.Notifications(models.NotifyRescheduleRequested)
	require.Len(t, notes, 1)
	assert.Equal(t, day(15), notes[0].StartAt)
}

func TestRequestReschedule_Guards(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, f *fixture) string
		newStart time.Time
		newEnd   time.Time
		kind     apperrors.Kind
	}{
		{
			name: "less than 48 hours before the stay",
			setup: func(t *testing.T, f *fixture) string {
				return f.mustCreate(t, staffRequest(testNow.Add(47*time.Hour), testNow.Add(70*time.Hour))).Code
			},
			newStart: day(15),
			newEnd:   day(17),
			kind:     apperrors.KindValidation,
		},
		{
			name: "new range is empty",
			setup: func(t *testing.T, f *fixture) string {
				return f.mustCreate(t, staffRequest(day(10), day(12))).Code
			},
			newStart: day(17),
			newEnd:   day(17),
			kind:     apperrors.KindValidation,
		},
		{
			name: "new range is taken",
			setup: func(t *testing.T, f *fixture) string {
				f.mustCreate(t, staffRequest(day(16), day(18)))
				return f.mustCreate(t, staffRequest(day(10), day(12))).Code
			},
			newStart: day(15),
			newEnd:   day(17),
			kind:     apperrors.KindConflict,
		},
		{
			name: "cancelled reservation",
			setup: func(t *testing.T, f *fixture) string {
				code := f.mustCreate(t, staffRequest(day(10), day(12))).Code
				cancelled := models.StatusCancelled
				_, err := f.svc.Reservations.Update(f.ctx, code, &models.ReservationPatch{Status: &cancelled})
				require.NoError(t, err)
				return code
			},
			newStart: day(15),
			newEnd:   day(17),
			kind:     apperrors.KindState,
		},
		{
			name:     "unknown reservation",
			setup:    func(t *testing.T, f *fixture) string { return "RS-MISSING" },
			newStart: day(15),
			newEnd:   day(17),
			kind:     apperrors.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			code := tt.setup(t, f)

			_, err := f.svc.Reschedules.Request(f.ctx, code, tt.newStart, tt.newEnd, "guest")
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}
}

func TestRequestReschedule_AlreadyPending(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(10), day(12)))

	_, err := f.svc.Reschedules.Request(f.ctx, r.Code, day(15), day(17), "guest")
	require.NoError(t, err)

	_, err = f.svc.Reschedules.Request(f.ctx, r.Code, day(20), day(22), "guest")
	assert.Equal(t, apperrors.KindState, apperrors.KindOf(err))
}

func TestDecideReschedule_Approve(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(10), day(12)))
	_, err := f.svc.Reschedules.Request(f.ctx, r.Code, day(15), day(17), "guest")
	require.NoError(t, err)

	decided, err := f.svc.Reschedules.Decide(f.ctx, r.Code, models.RescheduleApprove, nil, "frontdesk")
	require.NoError(t, err)

	assert.Equal(t, day(15), decided.StartAt)
	assert.Equal(t, day(17), decided.EndAt)
	assert.Equal(t, models.RescheduleApproved, decided.Reschedule.Status)
	require.NotNil(t, decided.Reschedule.DecidedBy)
	assert.Equal(t, "frontdesk", *decided.Reschedule.DecidedBy)

	assert.Contains(t, f.activityKinds(r.Code), models.ActivityRescheduleDecided)
	assert.Len(t, f.bus.Notifications(models.NotifyRescheduleApproved), 1)

	// The old range is free again and a new request may be opened.
	f.mustCreate(t, staffRequest(day(10), day(12)))
	_, err = f.svc.Reschedules.Request(f.ctx, r.Code, day(20), day(22), "guest")
	assert.NoError(t, err)
}

func TestDecideReschedule_Reject(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(10), day(12)))
	_, err := f.svc.Reschedules.Request(f.ctx, r.Code, day(15), day(17), "guest")
	require.NoError(t, err)

	reason := "fully booked for a private event"
	decided, err := f.svc.Reschedules.Decide(f.ctx, r.Code, models.RescheduleReject, &reason, "frontdesk")
	require.NoError(t, err)

	assert.Equal(t, day(10), decided.StartAt)
	assert.Equal(t, day(12), decided.EndAt)
	assert.Equal(t, models.RescheduleRejected, decided.Reschedule.Status)

	notes := f.bus.Notifications(models.NotifyRescheduleRejected)
	require.Len(t, notes, 1)
	assert.Equal(t, reason, notes[0].Reason)

	_, err = f.svc.Reschedules.Decide(f.ctx, r.Code, models.RescheduleApprove, nil, "frontdesk")
	assert.Equal(t, apperrors.KindState, apperrors.KindOf(err))
}

func TestDecideReschedule_ApprovalRechecksAvailability(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(10), day(12)))
	_, err := f.svc.Reschedules.Request(f.ctx, r.Code, day(15), day(17), "guest")
	require.NoError(t, err)

	f.mustCreate(t, staffRequest(day(16), day(18)))

	_, err = f.svc.Reschedules.Decide(f.ctx, r.Code, models.RescheduleApprove, nil, "frontdesk")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	stored, err := f.svc.Reservations.Get(f.ctx, r.Code)
	require.NoError(t, err)
	assert.Equal(t, day(10), stored.StartAt)
	assert.Equal(t, models.ReschedulePending, stored.Reschedule.Status)
}

func TestDecideReschedule_InvalidAction(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(10), day(12)))

	_, err := f.svc.Reschedules.Decide(f.ctx, r.Code, "MAYBE", nil, "frontdesk")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = f.svc.Reschedules.Decide(f.ctx, r.Code, models.RescheduleApprove, nil, "frontdesk")
	assert.Equal(t, apperrors.KindState, apperrors.KindOf(err))
}

func TestDecideReschedule_ConcurrentDecisions(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(10), day(12)))
	_, err := f.svc.Reschedules.Request(f.ctx, r.Code, day(20), day(22), "guest")
	require.NoError(t, err)

	// A second staff member approves while the rejection holds the row.
	var approval <-chan error
	f.useReservations(&hookedReservations{
		ReservationStore: f.store.ReservationStore(),
		afterLock: func() {
			approval = concurrently(func() error {
				_, err := f.svc.Reschedules.Decide(f.ctx, r.Code, models.RescheduleApprove, nil, "staff-b")
				return err
			})
		},
	})

	reason := "no availability"
	rejected, err := f.svc.Reschedules.Decide(f.ctx, r.Code, models.RescheduleReject, &reason, "staff-a")
	require.NoError(t, err)
	assert.Equal(t, models.RescheduleRejected, rejected.Reschedule.Status)

	require.NotNil(t, approval)
	err = <-approval
	require.Error(t, err)
	assert.Equal(t, apperrors.KindState, apperrors.KindOf(err))

	stored, err := f.svc.Reservations.Get(f.ctx, r.Code)
	require.NoError(t, err)
	assert.Equal(t, day(10), stored.StartAt)
	assert.Equal(t, day(12), stored.EndAt)
	assert.Equal(t, models.RescheduleRejected, stored.Reschedule.Status)
	require.NotNil(t, stored.Reschedule.DecidedBy)
	assert.Equal(t, "staff-a", *stored.Reschedule.DecidedBy)

	assert.Len(t, f.bus.Notifications(models.NotifyRescheduleRejected), 1)
	assert.Empty(t, f.bus.Notifications(models.NotifyRescheduleApproved))
}

func TestRequestReschedule_ConcurrentRequests(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(10), day(12)))

	var second <-chan error
	f.useReservations(&hookedReservations{
		ReservationStore: f.store.ReservationStore(),
		afterLock: func() {
			second = concurrently(func() error {
				_, err := f.svc.Reschedules.Request(f.ctx, r.Code, day(30), day(32), "guest")
				return err
			})
		},
	})

	_, err := f.svc.Reschedules.Request(f.ctx, r.Code, day(20), day(22), "guest")
	require.NoError(t, err)

	require.NotNil(t, second)
	assert.Equal(t, apperrors.KindState, apperrors.KindOf(<-second))

	stored, err := f.svc.Reservations.Get(f.ctx, r.Code)
	require.NoError(t, err)
	assert.Equal(t, day(20), stored.Reschedule.NewStartAt)
}
