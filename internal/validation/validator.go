package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"resort/internal/logger"
	"resort/internal/models"
)

// APIValidator runs a smoke scenario against a live API: it prices a stay,
// books it, exercises the conflict and reschedule guards and cleans up after
// itself.
type APIValidator struct {
	baseURL         string
	accommodationID string
	client          *http.Client
	// start of the probe stay; far enough out to avoid real bookings
	start time.Time
}

func NewAPIValidator(baseURL, accommodationID string) *APIValidator {
	start := time.Now().UTC().AddDate(1, 0, 0).Truncate(24 * time.Hour)
	return &APIValidator{
		baseURL:         baseURL,
		accommodationID: accommodationID,
		client:          &http.Client{Timeout: 10 * time.Second},
		start:           start,
	}
}

// WithStart moves the probe stay; used when the server runs on a fake clock.
func (v *APIValidator) WithStart(start time.Time) *APIValidator {
	v.start = start
	return v
}

// ValidateAll проверяет все endpoints
func (v *APIValidator) ValidateAll() error {
	slog.Info("Starting API validation", "base_url", v.baseURL)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"health", v.validateHealth},
		{"quote", v.validateQuote},
		{"reservations", v.validateReservations},
		{"blocked dates", v.validateBlockedDates},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("%s validation failed: %w", step.name, err)
		}
		slog.Info("Validation step passed", "step", step.name)
	}

	slog.Info("All endpoints passed validation")
	return nil
}

func (v *APIValidator) validateHealth() error {
	return v.call(http.MethodGet, "/health", nil, http.StatusOK, nil)
}

func (v *APIValidator) validateQuote() error {
	var quote models.QuoteResponse
	err := v.call(http.MethodPost, "/api/quotes", models.QuoteRequest{
		AccommodationID: v.accommodationID,
		StartAt:         v.start,
		EndAt:           v.start.Add(24 * time.Hour),
		Guests:          2,
	}, http.StatusOK, &quote)
	if err != nil {
		return err
	}

	if quote.Nights != 1 {
		return fmt.Errorf("POST /api/quotes: expected 1 night, got %d", quote.Nights)
	}
	if quote.Amount.Total != quote.Amount.Sum() {
		return fmt.Errorf("POST /api/quotes: total %d does not match components %d", quote.Amount.Total, quote.Amount.Sum())
	}
	if quote.MinimumPayable != quote.Amount.MinimumPayable() {
		return fmt.Errorf("POST /api/quotes: unexpected minimum payable %d", quote.MinimumPayable)
	}
	return nil
}

func (v *APIValidator) validateReservations() error {
	req := models.CreateReservationRequest{
		AccommodationID: v.accommodationID,
		Guest:           models.GuestInfo{Name: "API Validator", Email: "validator@resort.local"},
		StartAt:         v.start,
		EndAt:           v.start.Add(24 * time.Hour),
		Guests:          1,
		Amount:          models.AmountBreakdown{Accommodation: 100000, TotalPaid: 50000},
		PaymentMethod:   "cash",
	}

	var created models.Reservation
	if err := v.call(http.MethodPost, "/api/reservations", req, http.StatusCreated, &created); err != nil {
		return err
	}
	if created.Code == "" || created.Status != models.StatusPending {
		return fmt.Errorf("POST /api/reservations: unexpected reservation %q in status %s", created.Code, created.Status)
	}
	defer func() {
		if err := v.call(http.MethodDelete, "/api/reservations/"+created.Code, nil, http.StatusNoContent, nil); err != nil {
			slog.Warn("Failed to remove validation reservation", "code", created.Code, "error", err)
		}
	}()

	overlap := req
	overlap.StartAt = v.start.Add(12 * time.Hour)
	overlap.EndAt = v.start.Add(36 * time.Hour)
	if err := v.call(http.MethodPost, "/api/reservations", overlap, http.StatusConflict, nil); err != nil {
		return err
	}

	// Half-open ranges: a stay starting at the previous end is allowed.
	adjacent := req
	adjacent.StartAt = req.EndAt
	adjacent.EndAt = req.EndAt.Add(24 * time.Hour)
	var next models.Reservation
	if err := v.call(http.MethodPost, "/api/reservations", adjacent, http.StatusCreated, &next); err != nil {
		return err
	}
	if err := v.call(http.MethodDelete, "/api/reservations/"+next.Code, nil, http.StatusNoContent, nil); err != nil {
		return err
	}

	var fetched models.Reservation
	if err := v.call(http.MethodGet, "/api/reservations/"+created.Code, nil, http.StatusOK, &fetched); err != nil {
		return err
	}
	if fetched.Amount.Total != fetched.Amount.Sum() {
		return fmt.Errorf("GET /api/reservations/%s: inconsistent total", created.Code)
	}

	var cleared models.Reservation
	if err := v.call(http.MethodPut, "/api/reservations/"+created.Code+"/amenities", models.UpdateAmenitiesRequest{
		Items: []models.AmenityItem{},
	}, http.StatusOK, &cleared); err != nil {
		return err
	}
	if len(cleared.Amenities) != 0 || cleared.Amount.Amenities != 0 || cleared.Amount.Total != cleared.Amount.Sum() {
		return fmt.Errorf("PUT /api/reservations/%s/amenities: amenities not cleared", created.Code)
	}

	var page models.ListReservationsResponse
	if err := v.call(http.MethodGet, "/api/reservations?pageSize=5", nil, http.StatusOK, &page); err != nil {
		return err
	}
	if page.PageSize != 5 {
		return fmt.Errorf("GET /api/reservations: expected page size 5, got %d", page.PageSize)
	}

	if err := v.call(http.MethodPost, "/api/reservations/"+created.Code+"/reschedule", models.RescheduleRequestBody{
		NewStartAt: v.start.Add(72 * time.Hour),
		NewEndAt:   v.start.Add(48 * time.Hour),
	}, http.StatusBadRequest, nil); err != nil {
		return err
	}

	if err := v.call(http.MethodPost, "/api/reservations/"+created.Code+"/reschedule/decision", models.RescheduleDecisionRequest{
		Action: models.RescheduleApprove,
	}, http.StatusUnprocessableEntity, nil); err != nil {
		return err
	}

	var events []models.ActivityEvent
	if err := v.call(http.MethodGet, "/api/reservations/"+created.Code+"/activity", nil, http.StatusOK, &events); err != nil {
		return err
	}
	if len(events) == 0 || events[0].Kind != models.ActivityCreated {
		return fmt.Errorf("GET /api/reservations/%s/activity: missing creation event", created.Code)
	}

	return v.call(http.MethodGet, "/api/reservations/RS-DOESNOTEXIST", nil, http.StatusNotFound, nil)
}

func (v *APIValidator) validateBlockedDates() error {
	var ranges []models.BlockedDateRange
	if err := v.call(http.MethodGet, "/api/blocked-dates?accommodationId="+v.accommodationID, nil, http.StatusOK, &ranges); err != nil {
		return err
	}
	for _, r := range ranges {
		if r.Origin == models.OriginBooked && !r.ReadOnly {
			return fmt.Errorf("GET /api/blocked-dates: booked range %s is not read-only", r.ReservationCode)
		}
	}

	return v.call(http.MethodPost, "/api/blocked-dates", models.CreateBlockedRangeRequest{
		StartAt: v.start.Add(24 * time.Hour),
		EndAt:   v.start,
	}, http.StatusBadRequest, nil)
}

// call sends body as JSON, checks the status code and decodes into out when non-nil.
func (v *APIValidator) call(method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, v.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: expected %d, got %d: %s", method, path, wantStatus, resp.StatusCode, payload)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
		}
	}
	return nil
}

// RunValidation запускает валидацию API
func RunValidation(baseURL, accommodationID string) {
	if err := NewAPIValidator(baseURL, accommodationID).ValidateAll(); err != nil {
		logger.Fatal("Validation failed", "error", err)
	}
}
