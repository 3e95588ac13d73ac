package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "resort/internal/errors"
	"resort/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentRequest(start, end time.Time, amount int64) *models.InitiatePaymentRequest {
	return &models.InitiatePaymentRequest{
		QuoteRequest: models.QuoteRequest{
			AccommodationID: villa,
			StartAt:         start,
			EndAt:           end,
			Guests:          2,
			Entrances:       models.EntranceTickets{Adult: 2},
			Amenities:       []models.AmenityItem{{AmenityID: "kayak", Quantity: 1}},
		},
		Guest: models.GuestInfo{
			Name:  "Juan dela Cruz",
			Email: "juan@example.test",
			Phone: "+639181112222",
		},
		PaymentMethod: "gcash",
		AmountToPay:   amount,
	}
}

// initiate opens a payment for one night at the villa: 500000 + 30000 + 80000.
func (f *fixture) initiate(t *testing.T) string {
	t.Helper()
	resp, err := f.svc.Payments.Initiate(f.ctx, paymentRequest(day(10), day(11), 250000))
	require.NoError(t, err)
	return resp.IntentID
}

func TestInitiatePayment(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Payments.Initiate(f.ctx, paymentRequest(day(10), day(11), 250000))
	require.NoError(t, err)

	assert.NotEmpty(t, resp.IntentID)
	assert.Equal(t, string(models.IntentAwaitingNextAction), resp.Status)
	assert.Equal(t, f.gateway.RedirectURL, resp.RedirectURL)
	assert.Equal(t, []int64{250000}, f.gateway.Intents)

	booking, err := f.temp.Get(f.ctx, resp.IntentID)
	require.NoError(t, err)
	require.NotNil(t, booking)
	assert.Equal(t, int64(610000), booking.Amount.Total)
	assert.Equal(t, int64(250000), booking.Amount.TotalPaid)
	assert.Equal(t, testNow.Add(30*time.Minute), booking.ExpiresAt)
	assert.Equal(t, 0, f.store.ReservationCount(), "no reservation before payment")
}

func TestInitiatePayment_Rejections(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, staffRequest(day(20), day(21)))

	tests := []struct {
		name string
		req  *models.InitiatePaymentRequest
		kind apperrors.Kind
	}{
		{"below minimum", paymentRequest(day(10), day(11), 249999), apperrors.KindValidation},
		{"above total", paymentRequest(day(10), day(11), 610001), apperrors.KindValidation},
		{"dates taken", paymentRequest(day(20), day(21), 250000), apperrors.KindConflict},
		{"missing email", func() *models.InitiatePaymentRequest {
			req := paymentRequest(day(10), day(11), 250000)
			req.Guest.Email = ""
			return req
		}(), apperrors.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Payments.Initiate(f.ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}
	assert.Equal(t, 0, f.temp.Len())
}

func TestInitiatePayment_GatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.gateway.AttachErr = errors.New("connection reset")

	_, err := f.svc.Payments.Initiate(f.ctx, paymentRequest(day(10), day(11), 250000))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUpstream, apperrors.KindOf(err))
	assert.Equal(t, 0, f.temp.Len())
}

func TestWebhook_IdempotentReconciliation(t *testing.T) {
	f := newFixture(t)
	intentID := f.initiate(t)

	require.NoError(t, f.svc.Payments.HandleWebhook(f.ctx, EventPaymentPaid, intentID))
	require.NoError(t, f.svc.Payments.HandleWebhook(f.ctx, EventPaymentPaid, intentID))

	assert.Equal(t, 1, f.store.ReservationCount())
	assert.Equal(t, 1, f.store.PaymentCount())
	assert.Equal(t, 0, f.temp.Len())

	payment, err := f.store.PaymentStore().GetByIntentID(f.ctx, intentID)
	require.NoError(t, err)
	require.NotNil(t, payment)

	r, err := f.svc.Reservations.Get(f.ctx, payment.ReservationCode)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, r.Status)
	assert.Equal(t, int64(610000), r.Amount.Total)
	assert.Len(t, r.Amenities, 1)
	assert.Len(t, f.bus.Messages(models.SubjectReservationCreated), 1)

	for i := 0; i < 3; i++ {
		status, err := f.svc.Payments.Status(f.ctx, intentID)
		require.NoError(t, err)
		assert.Equal(t, models.ReconcileSuccess, status.Status)
		assert.Equal(t, payment.ReservationCode, status.ReservationCode)
	}
	assert.Equal(t, 1, f.store.ReservationCount())
}

func TestWebhook_PaymentFailed(t *testing.T) {
	f := newFixture(t)
	intentID := f.initiate(t)

	require.NoError(t, f.svc.Payments.HandleWebhook(f.ctx, EventPaymentFailed, intentID))
	assert.Equal(t, 0, f.temp.Len())

	status, err := f.svc.Payments.Status(f.ctx, intentID)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileFailure, status.Status)
	assert.Equal(t, 0, f.store.ReservationCount())
}

func TestWebhook_UnknownIntentIsIgnored(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.svc.Payments.HandleWebhook(f.ctx, EventPaymentPaid, "pi_unknown"))
	assert.NoError(t, f.svc.Payments.HandleWebhook(f.ctx, "source.chargeable", "pi_unknown"))
	assert.Equal(t, 0, f.store.ReservationCount())
}

func TestPaymentStatus_PullPath(t *testing.T) {
	tests := []struct {
		name      string
		status    models.IntentStatus
		lookupErr error
		want      models.ReconcileStatus
		tempLeft  int
		created   int
	}{
		{"awaiting action", models.IntentAwaitingNextAction, nil, models.ReconcileProcessing, 1, 0},
		{"processing", models.IntentProcessing, nil, models.ReconcileProcessing, 1, 0},
		{"gateway unreachable", "", errors.New("timeout"), models.ReconcileProcessing, 1, 0},
		{"failed", models.IntentFailed, nil, models.ReconcileFailure, 0, 0},
		{"canceled", models.IntentCanceled, nil, models.ReconcileFailure, 0, 0},
		{"succeeded", models.IntentSucceeded, nil, models.ReconcileSuccess, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			intentID := f.initiate(t)
			if tt.status != "" {
				f.gateway.SetStatus(intentID, tt.status)
			}
			f.gateway.LookupErr = tt.lookupErr

			resp, err := f.svc.Payments.Status(f.ctx, intentID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, tt.tempLeft, f.temp.Len())
			assert.Equal(t, tt.created, f.store.ReservationCount())
			if tt.want == models.ReconcileSuccess {
				assert.NotEmpty(t, resp.ReservationCode)
			}
		})
	}
}

func TestPaymentStatus_ExpiredBooking(t *testing.T) {
	f := newFixture(t)
	intentID := f.initiate(t)
	f.gateway.SetStatus(intentID, models.IntentSucceeded)

	f.clock.Advance(31 * time.Minute)

	resp, err := f.svc.Payments.Status(f.ctx, intentID)
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileFailure, resp.Status)
	assert.Equal(t, 0, f.store.ReservationCount())
}

func TestPaymentRace_PushAndPull(t *testing.T) {
	f := newFixture(t)
	intentID := f.initiate(t)
	f.gateway.SetStatus(intentID, models.IntentSucceeded)

	const pollers = 5
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[string]bool{}
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := f.svc.Payments.HandleWebhook(f.ctx, EventPaymentPaid, intentID); err != nil {
			t.Errorf("webhook: %v", err)
		}
	}()
	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.svc.Payments.Status(f.ctx, intentID)
			if err != nil {
				t.Errorf("status: %v", err)
				return
			}
			if resp.Status != models.ReconcileSuccess {
				t.Errorf("status = %s, want success", resp.Status)
				return
			}
			mu.Lock()
			codes[resp.ReservationCode] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.store.ReservationCount())
	assert.Equal(t, 1, f.store.PaymentCount())
	assert.Len(t, codes, 1, "every caller sees the same reservation code")

	payment, err := f.store.PaymentStore().GetByIntentID(f.ctx, intentID)
	require.NoError(t, err)
	assert.True(t, codes[payment.ReservationCode])
}

func TestFinalize_DatesTakenMeanwhile(t *testing.T) {
	f := newFixture(t)
	intentID := f.initiate(t)

	f.mustCreate(t, staffRequest(day(10), day(11)))

	err := f.svc.Payments.HandleWebhook(f.ctx, EventPaymentPaid, intentID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	assert.Equal(t, 0, f.store.PaymentCount())
	assert.Equal(t, 1, f.temp.Len())
}
