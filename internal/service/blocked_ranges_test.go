package service

import (
	"context"
	"fmt"
	"testing"

	apperrors "resort/internal/errors"
	"resort/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCalendar struct {
	version       int64
	entries       map[string][]models.BlockedDateRange
	invalidations int
}

func newMemoryCalendar() *memoryCalendar {
	return &memoryCalendar{entries: map[string][]models.BlockedDateRange{}}
}

func calendarKey(version int64, scope string) string {
	return fmt.Sprintf("v%d:%s", version, scope)
}

func (m *memoryCalendar) Get(ctx context.Context, scope string) ([]models.BlockedDateRange, int64, bool, error) {
	ranges, ok := m.entries[calendarKey(m.version, scope)]
	return ranges, m.version, ok, nil
}

func (m *memoryCalendar) Set(ctx context.Context, version int64, scope string, ranges []models.BlockedDateRange) error {
	m.entries[calendarKey(version, scope)] = ranges
	return nil
}

func (m *memoryCalendar) Invalidate(ctx context.Context) error {
	m.invalidations++
	m.version++
	return nil
}

func TestBlockedRanges_Calendar(t *testing.T) {
	f := newFixture(t)

	resortWide, err := f.svc.BlockedRanges.Create(f.ctx, &models.CreateBlockedRangeRequest{
		StartAt: day(1),
		EndAt:   day(2),
		Reason:  "typhoon",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OriginResortBlackout, resortWide.Origin)
	assert.Equal(t, models.BlockBlackout, resortWide.Kind)

	villaID := villa
	maintenance, err := f.svc.BlockedRanges.Create(f.ctx, &models.CreateBlockedRangeRequest{
		AccommodationID: &villaID,
		StartAt:         day(3),
		EndAt:           day(4),
		Kind:            models.BlockMaintenance,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OriginMaintenance, maintenance.Origin)

	cottage := "cottage-1"
	_, err = f.svc.BlockedRanges.Create(f.ctx, &models.CreateBlockedRangeRequest{
		AccommodationID: &cottage,
		StartAt:         day(5),
		EndAt:           day(6),
	})
	require.NoError(t, err)

	booked := staffRequest(day(7), day(8))
	booked.Status = models.StatusConfirmed
	r := f.mustCreate(t, booked)
	f.mustCreate(t, staffRequest(day(9), day(10)))

	ranges, err := f.svc.BlockedRanges.List(f.ctx, &villaID)
	require.NoError(t, err)
	require.Len(t, ranges, 3)

	assert.Equal(t, models.OriginResortBlackout, ranges[0].Origin)
	assert.Equal(t, models.OriginMaintenance, ranges[1].Origin)
	assert.Equal(t, models.OriginBooked, ranges[2].Origin)
	assert.Equal(t, r.Code, ranges[2].ReservationCode)
	assert.True(t, ranges[2].ReadOnly)

	all, err := f.svc.BlockedRanges.List(f.ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestBlockedRanges_QuoteRespectsBlackouts(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.BlockedRanges.Create(f.ctx, &models.CreateBlockedRangeRequest{StartAt: day(10), EndAt: day(11)})
	require.NoError(t, err)

	quote, err := f.svc.Quotes.Quote(f.ctx, &models.QuoteRequest{
		AccommodationID: villa,
		StartAt:         day(10),
		EndAt:           day(11),
		Guests:          2,
	})
	require.NoError(t, err)
	assert.False(t, quote.Available)

	_, err = f.svc.Payments.Initiate(f.ctx, paymentRequest(day(10), day(11), 250000))
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	// Staff may still book over a blackout.
	f.mustCreate(t, staffRequest(day(10), day(11)))
}

func TestBlockedRanges_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.BlockedRanges.Create(f.ctx, &models.CreateBlockedRangeRequest{StartAt: day(2), EndAt: day(1)})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = f.svc.BlockedRanges.Create(f.ctx, &models.CreateBlockedRangeRequest{StartAt: day(1), EndAt: day(2), Kind: "HOLIDAY"})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	missing := "treehouse"
	_, err = f.svc.BlockedRanges.Create(f.ctx, &models.CreateBlockedRangeRequest{AccommodationID: &missing, StartAt: day(1), EndAt: day(2)})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	err = f.svc.BlockedRanges.Delete(f.ctx, "no-such-id")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestBlockedRanges_CacheInvalidation(t *testing.T) {
	f := newFixture(t)
	cache := newMemoryCalendar()
	f.svc.BlockedRanges.cache = cache
	f.svc.Reservations.fx.calendar = cache

	ranges, err := f.svc.BlockedRanges.List(f.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, ranges)
	assert.Contains(t, cache.entries, calendarKey(0, allAccommodationsScope))

	br, err := f.svc.BlockedRanges.Create(f.ctx, &models.CreateBlockedRangeRequest{StartAt: day(1), EndAt: day(2)})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidations)

	ranges, err = f.svc.BlockedRanges.List(f.ctx, nil)
	require.NoError(t, err)
	assert.Len(t, ranges, 1)

	confirmed := staffRequest(day(5), day(6))
	confirmed.Status = models.StatusConfirmed
	f.mustCreate(t, confirmed)
	assert.Equal(t, 2, cache.invalidations)

	require.NoError(t, f.svc.BlockedRanges.Delete(f.ctx, br.ID))
	assert.Equal(t, 3, cache.invalidations)
}

func TestBlockedRanges_BookingDuringCacheFill(t *testing.T) {
	f := newFixture(t)
	cache := newMemoryCalendar()
	f.svc.BlockedRanges.cache = cache
	f.svc.Reservations.fx.calendar = cache

	confirmed := staffRequest(day(5), day(6))
	confirmed.Status = models.StatusConfirmed

	// The booking commits after the calendar query ran but before the
	// result is written back to the cache.
	f.svc.BlockedRanges.reservations = &hookedReservations{
		ReservationStore: f.store.ReservationStore(),
		afterListConfirmed: func() {
			f.mustCreate(t, confirmed)
		},
	}

	stale, err := f.svc.BlockedRanges.List(f.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, stale)

	fresh, err := f.svc.BlockedRanges.List(f.ctx, nil)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, models.OriginBooked, fresh[0].Origin)
}
