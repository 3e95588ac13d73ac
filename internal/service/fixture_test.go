package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"resort/internal/clock"
	"resort/internal/models"
	"resort/internal/testutil"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

const villa = "villa-1"

type fixture struct {
	ctx     context.Context
	store   *testutil.Store
	temp    *testutil.TempBookings
	gateway *testutil.Gateway
	bus     *testutil.Bus
	clock   *clock.Manual
	deps    Deps
	svc     *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := clock.NewManual(testNow)
	store := testutil.NewStore()
	store.AddAccommodation(models.Accommodation{
		ID:              villa,
		Name:            "Garden Villa",
		Type:            "villa",
		Capacity:        4,
		DayRate:         300000,
		NightRate:       500000,
		ExtraPersonRate: 50000,
	})
	store.AddAccommodation(models.Accommodation{
		ID:        "cottage-1",
		Name:      "Beach Cottage",
		Type:      "cottage",
		Capacity:  2,
		DayRate:   150000,
		NightRate: 250000,
	})
	store.AddAmenity(models.Amenity{ID: "kayak", Name: "Kayak", Price: 80000, Active: true})
	store.AddAmenity(models.Amenity{ID: "bbq", Name: "BBQ Grill", Price: 120000, Active: true})
	store.AddAmenity(models.Amenity{ID: "karaoke", Name: "Karaoke", Price: 50000, Active: false})

	f := &fixture{
		ctx:     context.Background(),
		store:   store,
		temp:    testutil.NewTempBookings(clk),
		gateway: testutil.NewGateway(),
		bus:     &testutil.Bus{},
		clock:   clk,
	}
	f.deps = Deps{
		Tx:            store,
		Reservations:  store.ReservationStore(),
		Payments:      store.PaymentStore(),
		Catalog:       store.CatalogStore(),
		BlockedRanges: store.BlockedRangeStore(),
		Activities:    store.ActivityStore(),
		TempBookings:  f.temp,
		Gateway:       f.gateway,
		Bus:           f.bus,
		Clock:         clk,
		EntranceFees: models.EntranceFees{
			Adult:     15000,
			Child:     10000,
			PWDSenior: 12000,
		},
		TempBookingTTL:   30 * time.Minute,
		PaymentReturnURL: "https://resort.example.test/payment/return",
	}
	f.svc = NewServices(f.deps)
	return f
}

// useReservations rebuilds the services around a different reservation store.
func (f *fixture) useReservations(store ReservationStore) {
	f.deps.Reservations = store
	f.svc = NewServices(f.deps)
}

// hookedReservations runs a callback once, right after the first locked read
// or calendar read, so another writer can interleave with the caller.
type hookedReservations struct {
	ReservationStore
	afterLock          func()
	afterListConfirmed func()

	lockOnce sync.Once
	listOnce sync.Once
}

func (h *hookedReservations) GetByCodeForUpdate(ctx context.Context, code string) (*models.Reservation, error) {
	r, err := h.ReservationStore.GetByCodeForUpdate(ctx, code)
	if h.afterLock != nil {
		h.lockOnce.Do(h.afterLock)
	}
	return r, err
}

func (h *hookedReservations) ListConfirmed(ctx context.Context, accommodationID *string) ([]models.Reservation, error) {
	out, err := h.ReservationStore.ListConfirmed(ctx, accommodationID)
	if h.afterListConfirmed != nil {
		h.listOnce.Do(h.afterListConfirmed)
	}
	return out, err
}

// concurrently starts fn and returns a channel with its error.
func concurrently(fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	return done
}

// day returns midnight UTC n days after testNow.
func day(n int) time.Time {
	return time.Date(2026, 3, 1+n, 0, 0, 0, 0, time.UTC)
}

func staffRequest(start, end time.Time) *models.CreateReservationRequest {
	return &models.CreateReservationRequest{
		AccommodationID: villa,
		Guest: models.GuestInfo{
			Name:  "Maria Santos",
			Email: "maria@example.test",
			Phone: "+639171234567",
		},
		StartAt: start,
		EndAt:   end,
		Guests:  2,
		Amount: models.AmountBreakdown{
			Accommodation: 500000,
			TotalPaid:     250000,
		},
		PaymentMethod: "cash",
	}
}

func (f *fixture) mustCreate(t *testing.T, req *models.CreateReservationRequest) *models.Reservation {
	t.Helper()
	r, err := f.svc.Reservations.Create(f.ctx, req)
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	return r
}

func (f *fixture) activityKinds(code string) []models.ActivityKind {
	var kinds []models.ActivityKind
	for _, event := range f.store.Activities() {
		if event.ReservationCode == code {
			kinds = append(kinds, event.Kind)
		}
	}
	return kinds
}
