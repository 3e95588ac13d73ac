package service

import (
	"strings"
	"sync"
	"testing"

	apperrors "resort/internal/errors"
	"resort/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReservation(t *testing.T) {
	f := newFixture(t)

	r, err := f.svc.Reservations.Create(f.ctx, staffRequest(day(5), day(6)))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(r.Code, "RS-"))
	assert.Len(t, r.Code, len("RS-")+8)
	assert.Equal(t, models.StatusPending, r.Status)
	assert.Equal(t, models.PaymentPartiallyPaid, r.PaymentStatus)
	assert.Equal(t, int64(500000), r.Amount.Total)
	assert.Equal(t, testNow, r.CreatedAt)

	stored, err := f.svc.Reservations.Get(f.ctx, r.Code)
	require.NoError(t, err)
	assert.Equal(t, r.Code, stored.Code)

	assert.Equal(t, []models.ActivityKind{models.ActivityCreated}, f.activityKinds(r.Code))
	assert.Len(t, f.bus.Notifications(models.NotifyReservationCreated), 1)
}

func TestCreateReservation_FullyPaidAtCreation(t *testing.T) {
	f := newFixture(t)

	req := staffRequest(day(5), day(6))
	req.Status = models.StatusConfirmed
	req.Amount.TotalPaid = 500000

	r := f.mustCreate(t, req)

	assert.Equal(t, models.PaymentFullyPaid, r.PaymentStatus)
	assert.Equal(t, []models.ActivityKind{models.ActivityCreated, models.ActivityPaymentFullyPaid}, f.activityKinds(r.Code))
}

func TestCreateReservation_InsufficientPayment(t *testing.T) {
	f := newFixture(t)

	req := staffRequest(day(5), day(6))
	req.Amount.TotalPaid = 249999

	_, err := f.svc.Reservations.Create(f.ctx, req)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Contains(t, apperrors.MessageOf(err), "insufficient payment")
	assert.Equal(t, 0, f.store.ReservationCount())
}

func TestCreateReservation_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*models.CreateReservationRequest)
		kind   apperrors.Kind
	}{
		{"start after end", func(r *models.CreateReservationRequest) { r.StartAt, r.EndAt = r.EndAt, r.StartAt }, apperrors.KindValidation},
		{"empty range", func(r *models.CreateReservationRequest) { r.EndAt = r.StartAt }, apperrors.KindValidation},
		{"no guests", func(r *models.CreateReservationRequest) { r.Guests = 0 }, apperrors.KindValidation},
		{"missing guest name", func(r *models.CreateReservationRequest) { r.Guest.Name = " " }, apperrors.KindValidation},
		{"negative amount", func(r *models.CreateReservationRequest) { r.Amount.Entrance = -1 }, apperrors.KindValidation},
		{"terminal status", func(r *models.CreateReservationRequest) { r.Status = models.StatusCompleted }, apperrors.KindValidation},
		{"unknown accommodation", func(r *models.CreateReservationRequest) { r.AccommodationID = "nope" }, apperrors.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := staffRequest(day(5), day(6))
			tt.mutate(req)

			_, err := f.svc.Reservations.Create(f.ctx, req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}
}

func TestCreateReservation_NoOverlap(t *testing.T) {
	f := newFixture(t)

	first := f.mustCreate(t, staffRequest(day(10), day(12)))

	_, err := f.svc.Reservations.Create(f.ctx, staffRequest(day(11), day(13)))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	assert.Contains(t, apperrors.MessageOf(err), "dates unavailable")

	// Ranges are half-open, so back-to-back stays are allowed.
	f.mustCreate(t, staffRequest(day(12), day(14)))

	other := staffRequest(day(11), day(13))
	other.AccommodationID = "cottage-1"
	f.mustCreate(t, other)

	cancelled := models.StatusCancelled
	_, err = f.svc.Reservations.Update(f.ctx, first.Code, &models.ReservationPatch{Status: &cancelled})
	require.NoError(t, err)

	f.mustCreate(t, staffRequest(day(10), day(12)))
	assert.Equal(t, 4, f.store.ReservationCount())
}

func TestCreateReservation_ConcurrentOverlap(t *testing.T) {
	f := newFixture(t)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Reservations.Create(f.ctx, staffRequest(day(20), day(22)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case apperrors.IsKind(err, apperrors.KindConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, 1, f.store.ReservationCount())
}

func TestCreateReservation_RetriesCodeCollision(t *testing.T) {
	f := newFixture(t)

	existing := f.mustCreate(t, staffRequest(day(5), day(6)))

	codes := []string{existing.Code, "RS-FRESH001"}
	f.svc.Reservations.newCode = func() string {
		code := codes[0]
		codes = codes[1:]
		return code
	}

	r, err := f.svc.Reservations.Create(f.ctx, staffRequest(day(7), day(8)))
	require.NoError(t, err)
	assert.Equal(t, "RS-FRESH001", r.Code)
}

func TestCreateReservation_PricesAmenities(t *testing.T) {
	f := newFixture(t)

	req := staffRequest(day(5), day(6))
	req.Amenities = []models.AmenityItem{{AmenityID: "kayak", Quantity: 2}}
	req.Amount.Amenities = 1

	r := f.mustCreate(t, req)

	require.Len(t, r.Amenities, 1)
	assert.Equal(t, 1, r.Amenities[0].Quantity)
	assert.Equal(t, int64(80000), r.Amount.Amenities)
	assert.Equal(t, int64(580000), r.Amount.Total)
}

func TestUpdateReservation_RecomputesTotal(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(5), day(6)))

	entrance := int64(30000)
	updated, err := f.svc.Reservations.Update(f.ctx, r.Code, &models.ReservationPatch{
		Amount: &models.AmountPatch{Entrance: &entrance},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(530000), updated.Amount.Total)
	assert.Equal(t, updated.Amount.Sum(), updated.Amount.Total)
	assert.Equal(t, models.PaymentPartiallyPaid, updated.PaymentStatus)

	paid := int64(530000)
	updated, err = f.svc.Reservations.Update(f.ctx, r.Code, &models.ReservationPatch{
		Amount: &models.AmountPatch{TotalPaid: &paid},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFullyPaid, updated.PaymentStatus)

	kinds := f.activityKinds(r.Code)
	assert.Contains(t, kinds, models.ActivityPaymentChanged)
	assert.Contains(t, kinds, models.ActivityPaymentFullyPaid)
}

func TestUpdateReservation_RepairsInconsistentTotal(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(5), day(6)))

	broken := *r
	broken.Amount.Total = 1
	f.store.PutReservation(broken)

	name := "Maria S. Santos"
	updated, err := f.svc.Reservations.Update(f.ctx, r.Code, &models.ReservationPatch{
		Guest: &models.GuestInfo{Name: name, Email: r.Guest.Email, Phone: r.Guest.Phone},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500000), updated.Amount.Total)
}

func TestUpdateReservation_AmenityAmountFollowsLines(t *testing.T) {
	f := newFixture(t)
	req := staffRequest(day(5), day(6))
	req.Amenities = []models.AmenityItem{{AmenityID: "kayak", Quantity: 1}}
	r := f.mustCreate(t, req)

	amenities := int64(999)
	entrance := int64(30000)
	_, err := f.svc.Reservations.Update(f.ctx, r.Code, &models.ReservationPatch{
		Amount: &models.AmountPatch{Amenities: &amenities, Entrance: &entrance},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	stored, err := f.svc.Reservations.Get(f.ctx, r.Code)
	require.NoError(t, err)
	assert.Equal(t, int64(80000), stored.Amount.Amenities)
	assert.Equal(t, int64(0), stored.Amount.Entrance)
	assert.Equal(t, int64(580000), stored.Amount.Total)
}

func TestUpdateReservation_ScheduleConflict(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, staffRequest(day(10), day(12)))
	r := f.mustCreate(t, staffRequest(day(5), day(6)))

	start, end := day(11), day(13)
	_, err := f.svc.Reservations.Update(f.ctx, r.Code, &models.ReservationPatch{StartAt: &start, EndAt: &end})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	stored, err := f.svc.Reservations.Get(f.ctx, r.Code)
	require.NoError(t, err)
	assert.Equal(t, day(5), stored.StartAt)
}

func TestUpdateReservation_OwnRangeIsNotAConflict(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(5), day(8)))

	end := day(7)
	updated, err := f.svc.Reservations.Update(f.ctx, r.Code, &models.ReservationPatch{EndAt: &end})
	require.NoError(t, err)
	assert.Equal(t, day(7), updated.EndAt)
	assert.Contains(t, f.activityKinds(r.Code), models.ActivityScheduleChanged)
}

func TestUpdateReservation_ReactivationRechecksAvailability(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(5), day(6)))

	cancelled := models.StatusCancelled
	_, err := f.svc.Reservations.Update(f.ctx, r.Code, &models.ReservationPatch{Status: &cancelled})
	require.NoError(t, err)

	f.mustCreate(t, staffRequest(day(5), day(6)))

	confirmed := models.StatusConfirmed
	_, err = f.svc.Reservations.Update(f.ctx, r.Code, &models.ReservationPatch{Status: &confirmed})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestUpdateReservation_NoTrackedChange(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(5), day(6)))

	_, err := f.svc.Reservations.Update(f.ctx, r.Code, &models.ReservationPatch{})
	require.NoError(t, err)

	kinds := f.activityKinds(r.Code)
	assert.Equal(t, models.ActivityUpdated, kinds[len(kinds)-1])
}

func TestUpdateReservation_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Reservations.Update(f.ctx, "RS-MISSING", &models.ReservationPatch{})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestUpdateAmenities(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(5), day(6)))

	updated, err := f.svc.Reservations.UpdateAmenities(f.ctx, r.Code, []models.AmenityItem{
		{AmenityID: "kayak", Quantity: 3},
		{AmenityID: "bbq", Quantity: 0},
		{AmenityID: "unknown", Quantity: 1},
		{AmenityID: "karaoke", Quantity: 1},
		{AmenityID: "kayak", Quantity: 1},
	})
	require.NoError(t, err)

	require.Len(t, updated.Amenities, 1)
	line := updated.Amenities[0]
	assert.Equal(t, "kayak", line.AmenityID)
	assert.Equal(t, "Kayak", line.Name)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, int64(80000), line.Subtotal)
	assert.Equal(t, int64(80000), updated.Amount.Amenities)
	assert.Equal(t, int64(580000), updated.Amount.Total)

	kinds := f.activityKinds(r.Code)
	assert.Contains(t, kinds, models.ActivityUpdated)
	assert.Contains(t, kinds, models.ActivityPaymentChanged)
}

func TestUpdateAmenities_ReachesFullPayment(t *testing.T) {
	f := newFixture(t)
	req := staffRequest(day(5), day(6))
	req.Amenities = []models.AmenityItem{{AmenityID: "bbq", Quantity: 1}}
	req.Amount.TotalPaid = 620000
	r := f.mustCreate(t, req)
	require.Equal(t, models.PaymentFullyPaid, r.PaymentStatus)

	updated, err := f.svc.Reservations.UpdateAmenities(f.ctx, r.Code, []models.AmenityItem{{AmenityID: "kayak", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(580000), updated.Amount.Total)
	assert.Equal(t, models.PaymentFullyPaid, updated.PaymentStatus)

	updated, err = f.svc.Reservations.UpdateAmenities(f.ctx, r.Code, []models.AmenityItem{
		{AmenityID: "kayak", Quantity: 1},
		{AmenityID: "bbq", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(700000), updated.Amount.Total)
	assert.Equal(t, models.PaymentPartiallyPaid, updated.PaymentStatus)
}

func TestDeleteReservation(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, staffRequest(day(5), day(6)))

	require.NoError(t, f.svc.Reservations.Delete(f.ctx, r.Code))

	_, err := f.svc.Reservations.Get(f.ctx, r.Code)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	err = f.svc.Reservations.Delete(f.ctx, r.Code)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestListReservations(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.mustCreate(t, staffRequest(day(5+2*i), day(6+2*i)))
	}
	walkIn := staffRequest(day(30), day(31))
	walkIn.WalkIn = true
	walkIn.Status = models.StatusConfirmed
	f.mustCreate(t, walkIn)

	page, err := f.svc.Reservations.List(f.ctx, models.ReservationFilter{Page: 2, PageSize: 4})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	assert.Len(t, page.Items, 2)

	yes := true
	page, err = f.svc.Reservations.List(f.ctx, models.ReservationFilter{WalkIn: &yes})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)

	_, err = f.svc.Reservations.List(f.ctx, models.ReservationFilter{PageSize: 101})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	bogus := models.ReservationStatus("LOST")
	_, err = f.svc.Reservations.List(f.ctx, models.ReservationFilter{Status: &bogus})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestSearchReservations_Unconfigured(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Reservations.Search(f.ctx, "maria", 1, 20)
	assert.Equal(t, apperrors.KindUpstream, apperrors.KindOf(err))
}

func TestActivity_SynthesizesCreationEvent(t *testing.T) {
	f := newFixture(t)
	f.store.PutReservation(models.Reservation{
		Code:            "RS-LEGACY01",
		AccommodationID: villa,
		StartAt:         day(5),
		EndAt:           day(6),
		Status:          models.StatusConfirmed,
		CreatedAt:       testNow.AddDate(0, -1, 0),
	})

	events, err := f.svc.Reservations.Activity(f.ctx, "RS-LEGACY01")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.ActivityCreated, events[0].Kind)
	assert.Equal(t, testNow.AddDate(0, -1, 0), events[0].CreatedAt)

	events, err = f.svc.Reservations.Activity(f.ctx, "RS-LEGACY01")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
