package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"resort/internal/clock"
	apperrors "resort/internal/errors"
	"resort/internal/logger"
	"resort/internal/metrics"
	"resort/internal/models"
)

// Gateway webhook event types handled by the push path.
const (
	EventPaymentPaid   = "payment.paid"
	EventPaymentFailed = "payment.failed"
)

// errAlreadyReconciled aborts a finalize transaction whose payment record was
// already written by a concurrent or earlier delivery.
var errAlreadyReconciled = errors.New("payment already reconciled")

var allowedPaymentMethods = []string{"gcash", "paymaya", "grab_pay", "card"}

type PaymentService struct {
	payments     PaymentStore
	temp         TemporaryBookingStore
	gateway      PaymentGateway
	quotes       *QuoteService
	reservations *ReservationService
	clock        clock.Clock
	ttl          time.Duration
	returnURL    string
}

func NewPaymentService(payments PaymentStore, temp TemporaryBookingStore, gateway PaymentGateway, quotes *QuoteService, reservations *ReservationService, clk clock.Clock, ttl time.Duration, returnURL string) *PaymentService {
	return &PaymentService{
		payments:     payments,
		temp:         temp,
		gateway:      gateway,
		quotes:       quotes,
		reservations: reservations,
		clock:        clk,
		ttl:          ttl,
		returnURL:    returnURL,
	}
}

// Initiate prices the stay, opens a gateway intent and parks the booking in
// the temporary store until the payment is reconciled.
func (s *PaymentService) Initiate(ctx context.Context, req *models.InitiatePaymentRequest) (*models.InitiatePaymentResponse, error) {
	if strings.TrimSpace(req.Guest.Name) == "" || strings.TrimSpace(req.Guest.Email) == "" {
		return nil, apperrors.Validation("guest name and email are required")
	}
	if req.PaymentMethod == "" {
		return nil, apperrors.Validation("payment method is required")
	}

	quote, err := s.quotes.Quote(ctx, &req.QuoteRequest)
	if err != nil {
		return nil, err
	}
	if !quote.Available {
		return nil, errDatesUnavailable()
	}

	amount := quote.Amount
	if req.AmountToPay < quote.MinimumPayable {
		return nil, apperrors.Validation("insufficient payment: at least %s is required, got %s",
			formatMoney(quote.MinimumPayable), formatMoney(req.AmountToPay))
	}
	if req.AmountToPay > amount.Total {
		return nil, apperrors.Validation("amount to pay exceeds the total of %s", formatMoney(amount.Total))
	}
	amount.TotalPaid = req.AmountToPay

	intentID, err := s.gateway.CreateIntent(ctx, req.AmountToPay, allowedPaymentMethods)
	if err != nil {
		return nil, apperrors.Upstream(err, "failed to create payment intent")
	}

	methodID, err := s.gateway.CreateMethod(ctx, req.PaymentMethod, models.BillingInfo{
		Name:  req.Guest.Name,
		Email: req.Guest.Email,
		Phone: req.Guest.Phone,
	})
	if err != nil {
		return nil, apperrors.Upstream(err, "failed to create payment method")
	}

	now := s.clock.Now()
	booking := &models.TemporaryBooking{
		IntentID:        intentID,
		AccommodationID: req.AccommodationID,
		Guest:           req.Guest,
		StartAt:         req.StartAt.UTC(),
		EndAt:           req.EndAt.UTC(),
		Guests:          req.Guests,
		Entrances:       req.Entrances,
		Amount:          amount,
		Amenities:       normalizeAmenityItems(req.Amenities),
		PaymentMethod:   req.PaymentMethod,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
	}
	if err := s.temp.Put(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to store temporary booking: %w", err)
	}

	result, err := s.gateway.Attach(ctx, intentID, methodID, s.returnURL)
	if err != nil {
		if delErr := s.temp.Delete(ctx, intentID); delErr != nil {
			logger.WithContext(ctx).Warn("Failed to drop temporary booking", "error", delErr, "intent_id", intentID)
		}
		return nil, apperrors.Upstream(err, "failed to attach payment method")
	}

	logger.WithContext(ctx).Info("Payment initiated",
		"intent_id", intentID,
		"accommodation_id", req.AccommodationID,
		"amount", req.AmountToPay,
		"status", result.Status)

	return &models.InitiatePaymentResponse{
		IntentID:    intentID,
		Status:      string(result.Status),
		RedirectURL: result.RedirectURL,
	}, nil
}

// HandleWebhook is the push path. Unknown event types and intents without a
// temporary booking are acknowledged and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, eventType, intentID string) error {
	log := logger.WithContext(ctx).With("intent_id", intentID, "event_type", eventType)
	if intentID == "" {
		return apperrors.Validation("webhook event carries no payment intent id")
	}

	switch eventType {
	case EventPaymentPaid:
		booking, err := s.temp.Get(ctx, intentID)
		if err != nil {
			return fmt.Errorf("failed to get temporary booking: %w", err)
		}
		if booking == nil {
			log.Info("No temporary booking for paid intent, nothing to reconcile")
			metrics.Reconciliations.WithLabelValues("push", "noop").Inc()
			return nil
		}
		code, err := s.finalize(ctx, booking)
		if err != nil {
			metrics.Reconciliations.WithLabelValues("push", "error").Inc()
			return err
		}
		metrics.Reconciliations.WithLabelValues("push", "success").Inc()
		log.Info("Payment reconciled", "code", code)
		return nil

	case EventPaymentFailed:
		if err := s.temp.Delete(ctx, intentID); err != nil {
			return fmt.Errorf("failed to delete temporary booking: %w", err)
		}
		metrics.Reconciliations.WithLabelValues("push", "failure").Inc()
		log.Info("Payment failed, temporary booking dropped")
		return nil

	default:
		log.Debug("Ignoring webhook event")
		return nil
	}
}

// Status is the pull path. Gateway lookup errors are reported as processing.
func (s *PaymentService) Status(ctx context.Context, intentID string) (*models.PaymentStatusResponse, error) {
	log := logger.WithContext(ctx).With("intent_id", intentID)
	resp := &models.PaymentStatusResponse{IntentID: intentID}

	payment, err := s.payments.GetByIntentID(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment != nil {
		resp.Status = models.ReconcileSuccess
		resp.ReservationCode = payment.ReservationCode
		return resp, nil
	}

	booking, err := s.temp.Get(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get temporary booking: %w", err)
	}
	if booking == nil {
		// A concurrent finalize deletes the booking only after its payment commits.
		payment, err := s.payments.GetByIntentID(ctx, intentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get payment: %w", err)
		}
		if payment != nil {
			resp.Status = models.ReconcileSuccess
			resp.ReservationCode = payment.ReservationCode
			return resp, nil
		}
		resp.Status = models.ReconcileFailure
		return resp, nil
	}

	status, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		log.Warn("Gateway lookup failed, reporting processing", "error", err)
		resp.Status = models.ReconcileProcessing
		return resp, nil
	}

	switch status {
	case models.IntentSucceeded:
		code, err := s.finalize(ctx, booking)
		if err != nil {
			metrics.Reconciliations.WithLabelValues("pull", "error").Inc()
			return nil, err
		}
		metrics.Reconciliations.WithLabelValues("pull", "success").Inc()
		resp.Status = models.ReconcileSuccess
		resp.ReservationCode = code

	case models.IntentFailed, models.IntentCanceled:
		if err := s.temp.Delete(ctx, intentID); err != nil {
			log.Warn("Failed to drop temporary booking", "error", err)
		}
		metrics.Reconciliations.WithLabelValues("pull", "failure").Inc()
		resp.Status = models.ReconcileFailure

	default:
		resp.Status = models.ReconcileProcessing
	}
	return resp, nil
}

// finalize turns a paid temporary booking into a confirmed reservation. The
// payment insert is the commit point: whichever path inserts it first creates
// the reservation and every other caller gets the existing code back.
func (s *PaymentService) finalize(ctx context.Context, booking *models.TemporaryBooking) (string, error) {
	existing, err := s.payments.GetByIntentID(ctx, booking.IntentID)
	if err != nil {
		return "", fmt.Errorf("failed to get payment: %w", err)
	}
	if existing != nil {
		return existing.ReservationCode, nil
	}

	req := &models.CreateReservationRequest{
		AccommodationID: booking.AccommodationID,
		Guest:           booking.Guest,
		StartAt:         booking.StartAt,
		EndAt:           booking.EndAt,
		Status:          models.StatusConfirmed,
		Guests:          booking.Guests,
		Entrances:       booking.Entrances,
		Amount:          booking.Amount,
		Amenities:       booking.Amenities,
		PaymentMethod:   booking.PaymentMethod,
	}

	gate := func(ctx context.Context, code string) error {
		inserted, err := s.payments.InsertIfAbsent(ctx, &models.Payment{
			IntentID:        booking.IntentID,
			ReservationCode: code,
			Amount:          booking.Amount.TotalPaid,
			Method:          booking.PaymentMethod,
			CreatedAt:       s.clock.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}
		if !inserted {
			return errAlreadyReconciled
		}
		return nil
	}

	r, err := s.reservations.create(ctx, req, "payment", gate)
	if err != nil {
		if errors.Is(err, errAlreadyReconciled) || apperrors.IsKind(err, apperrors.KindConflict) {
			existing, getErr := s.payments.GetByIntentID(ctx, booking.IntentID)
			if getErr != nil {
				return "", fmt.Errorf("failed to get payment: %w", getErr)
			}
			if existing != nil {
				return existing.ReservationCode, nil
			}
		}
		logger.WithContext(ctx).Error("Failed to finalize paid booking",
			"error", err,
			"intent_id", booking.IntentID)
		return "", err
	}

	s.reservations.fx.published(ctx, r, booking.IntentID)

	if err := s.temp.Delete(ctx, booking.IntentID); err != nil {
		logger.WithContext(ctx).Warn("Failed to drop temporary booking", "error", err, "intent_id", booking.IntentID)
	}
	return r.Code, nil
}
