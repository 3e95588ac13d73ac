package service

import (
	"testing"
	"time"

	"resort/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_Transitions(t *testing.T) {
	f := newFixture(t)

	pending := f.mustCreate(t, staffRequest(day(2), day(3)))

	confirmedReq := staffRequest(day(4), day(5))
	confirmedReq.Status = models.StatusConfirmed
	confirmed := f.mustCreate(t, confirmedReq)

	future := f.mustCreate(t, staffRequest(day(20), day(21)))

	// Nothing is due yet.
	result, err := f.svc.Sweeper.CheckAndUpdateReservationStatus(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Cancelled)
	assert.Empty(t, result.Completed)

	f.clock.Set(day(6))

	result, err = f.svc.Sweeper.CheckAndUpdateReservationStatus(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{pending.Code}, result.Cancelled)
	assert.Equal(t, []string{confirmed.Code}, result.Completed)

	for code, want := range map[string]models.ReservationStatus{
		pending.Code:   models.StatusCancelled,
		confirmed.Code: models.StatusCompleted,
		future.Code:    models.StatusPending,
	} {
		r, err := f.svc.Reservations.Get(f.ctx, code)
		require.NoError(t, err)
		assert.Equal(t, want, r.Status, code)
	}
	assert.Contains(t, f.activityKinds(pending.Code), models.ActivityStatusChanged)

	// A second run with no time elapsed is a no-op.
	result, err = f.svc.Sweeper.CheckAndUpdateReservationStatus(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Cancelled)
	assert.Empty(t, result.Completed)
}

func TestSweeper_ConfirmedStayInProgressIsKept(t *testing.T) {
	f := newFixture(t)

	req := staffRequest(day(2), day(5))
	req.Status = models.StatusConfirmed
	r := f.mustCreate(t, req)

	f.clock.Set(day(3))
	result, err := f.svc.Sweeper.CheckAndUpdateReservationStatus(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Completed)

	f.clock.Set(day(5))
	result, err = f.svc.Sweeper.CheckAndUpdateReservationStatus(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Completed, "end is exclusive of the current instant")

	f.clock.Set(day(5).Add(time.Second))
	result, err = f.svc.Sweeper.CheckAndUpdateReservationStatus(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{r.Code}, result.Completed)
}

func TestReminders_SentOnce(t *testing.T) {
	f := newFixture(t)

	soon := staffRequest(testNow.Add(20*time.Hour), testNow.Add(44*time.Hour))
	soon.Status = models.StatusConfirmed
	r := f.mustCreate(t, soon)

	later := staffRequest(day(10), day(11))
	later.Status = models.StatusConfirmed
	f.mustCreate(t, later)

	f.mustCreate(t, staffRequest(testNow.Add(50*time.Hour), testNow.Add(60*time.Hour)))

	sent, err := f.svc.Reminders.SendDue(f.ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	notes := f.bus.Notifications(models.NotifyReminder)
	require.Len(t, notes, 1)
	assert.Equal(t, r.Code, notes[0].ReservationCode)

	sent, err = f.svc.Reminders.SendDue(f.ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSweeper_CancellationSurvivesConcurrentEdit(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(2), day(3)))
	f.clock.Set(day(2).Add(time.Hour))

	// The sweep fires while the amenity edit holds the row.
	var result *SweepResult
	var sweep <-chan error
	f.useReservations(&hookedReservations{
		ReservationStore: f.store.ReservationStore(),
		afterLock: func() {
			sweep = concurrently(func() error {
				var err error
				result, err = f.svc.Sweeper.CheckAndUpdateReservationStatus(f.ctx)
				return err
			})
		},
	})

	edited, err := f.svc.Reservations.UpdateAmenities(f.ctx, r.Code, []models.AmenityItem{{AmenityID: "kayak", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, edited.Status)

	require.NotNil(t, sweep)
	require.NoError(t, <-sweep)
	assert.Equal(t, []string{r.Code}, result.Cancelled)

	stored, err := f.svc.Reservations.Get(f.ctx, r.Code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, stored.Status)
	require.Len(t, stored.Amenities, 1)
	assert.Equal(t, int64(80000), stored.Amount.Amenities)
}

func TestReminders_ClaimSurvivesConcurrentEdit(t *testing.T) {
	f := newFixture(t)
	req := staffRequest(testNow.Add(20*time.Hour), testNow.Add(44*time.Hour))
	req.Status = models.StatusConfirmed
	r := f.mustCreate(t, req)

	var reminders <-chan error
	f.useReservations(&hookedReservations{
		ReservationStore: f.store.ReservationStore(),
		afterLock: func() {
			reminders = concurrently(func() error {
				_, err := f.svc.Reminders.SendDue(f.ctx, 24*time.Hour)
				return err
			})
		},
	})

	phone := "+639179876543"
	guest := r.Guest
	guest.Phone = phone
	_, err := f.svc.Reservations.Update(f.ctx, r.Code, &models.ReservationPatch{Guest: &guest})
	require.NoError(t, err)

	require.NotNil(t, reminders)
	require.NoError(t, <-reminders)

	stored, err := f.svc.Reservations.Get(f.ctx, r.Code)
	require.NoError(t, err)
	assert.True(t, stored.ReminderSent)
	assert.Equal(t, phone, stored.Guest.Phone)

	sent, err := f.svc.Reminders.SendDue(f.ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, f.bus.Notifications(models.NotifyReminder), 1)
}
