package models

import (
	"fmt"
	"strings"
	"time"
)

// FlexibleBool accepts booleans encoded as strings or numbers
type FlexibleBool bool

// UnmarshalJSON parses true/false, "1"/"0", "yes"/"no" and "on"/"off"
func (fb *FlexibleBool) UnmarshalJSON(data []byte) error {
	str := string(data)
	str = strings.Trim(str, `"`)

	switch strings.ToLower(str) {
	case "true", "1", "yes", "on":
		*fb = true
	case "false", "0", "no", "off", "null", "":
		*fb = false
	default:
		return fmt.Errorf("invalid boolean value: %s", str)
	}
	return nil
}

// Bool returns the plain bool value
func (fb FlexibleBool) Bool() bool {
	return bool(fb)
}

// AmenityItem is a requested amenity and quantity
type AmenityItem struct {
	AmenityID string `json:"amenity_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

// CreateReservationRequest is the staff / walk-in creation payload
type CreateReservationRequest struct {
	AccommodationID string            `json:"accommodation_id" binding:"required"`
	Guest           GuestInfo         `json:"guest"`
	StartAt         time.Time         `json:"start_at" binding:"required"`
	EndAt           time.Time         `json:"end_at" binding:"required"`
	Status          ReservationStatus `json:"status,omitempty"`
	Guests          int               `json:"guests"`
	Entrances       EntranceTickets   `json:"entrances"`
	Amount          AmountBreakdown   `json:"amount"`
	Amenities       []AmenityItem     `json:"amenities,omitempty"`
	PaymentMethod   string            `json:"payment_method,omitempty"`
	WalkIn          FlexibleBool      `json:"walk_in,omitempty"`
}

// AmountPatch carries the amount fields a patch may touch
type AmountPatch struct {
	Accommodation  *int64 `json:"accommodation,omitempty"`
	Entrance       *int64 `json:"entrance,omitempty"`
	Amenities      *int64 `json:"amenities,omitempty"`
	ExtraPersonFee *int64 `json:"extra_person_fee,omitempty"`
	TotalPaid      *int64 `json:"total_paid,omitempty"`
}

// ReservationPatch is a partial update; nil fields are left untouched
type ReservationPatch struct {
	AccommodationID *string            `json:"accommodation_id,omitempty"`
	Guest           *GuestInfo         `json:"guest,omitempty"`
	StartAt         *time.Time         `json:"start_at,omitempty"`
	EndAt           *time.Time         `json:"end_at,omitempty"`
	Status          *ReservationStatus `json:"status,omitempty"`
	Guests          *int               `json:"guests,omitempty"`
	Entrances       *EntranceTickets   `json:"entrances,omitempty"`
	Amount          *AmountPatch       `json:"amount,omitempty"`
	PaymentMethod   *string            `json:"payment_method,omitempty"`
	WalkIn          *bool              `json:"walk_in,omitempty"`
}

// UpdateAmenitiesRequest replaces the amenity line items of a reservation
type UpdateAmenitiesRequest struct {
	Items []AmenityItem `json:"items"`
}

// RescheduleRequestBody opens a date-change request
type RescheduleRequestBody struct {
	NewStartAt time.Time `json:"new_start_at" binding:"required"`
	NewEndAt   time.Time `json:"new_end_at" binding:"required"`
}

// RescheduleAction is a staff decision on a pending request
type RescheduleAction string

const (
	RescheduleApprove RescheduleAction = "APPROVE"
	RescheduleReject  RescheduleAction = "REJECT"
)

// RescheduleDecisionRequest decides a pending reschedule
type RescheduleDecisionRequest struct {
	Action RescheduleAction `json:"action" binding:"required"`
	Reason *string          `json:"reason,omitempty"`
}

// ReservationFilter narrows the reservation list
type ReservationFilter struct {
	Status          *ReservationStatus
	AccommodationID *string
	WalkIn          *bool
	From            *time.Time
	To              *time.Time
	Page            int
	PageSize        int
}

// ListReservationsResponse is a page of reservations
type ListReservationsResponse struct {
	Items    []Reservation `json:"items"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// QuoteRequest prices a prospective stay
type QuoteRequest struct {
	AccommodationID string          `json:"accommodation_id" binding:"required"`
	StartAt         time.Time       `json:"start_at" binding:"required"`
	EndAt           time.Time       `json:"end_at" binding:"required"`
	Guests          int             `json:"guests"`
	Entrances       EntranceTickets `json:"entrances"`
	Amenities       []AmenityItem   `json:"amenities,omitempty"`
}

// QuoteResponse is the computed price of a stay
type QuoteResponse struct {
	Amount         AmountBreakdown `json:"amount"`
	MinimumPayable int64           `json:"minimum_payable"`
	Nights         int             `json:"nights"`
	Amenities      []AmenityLine   `json:"amenities"`
	Available      bool            `json:"available"`
}

// BillingInfo is forwarded to the payment gateway when creating a method
type BillingInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// InitiatePaymentRequest starts the guest self-service payment flow
type InitiatePaymentRequest struct {
	QuoteRequest
	Guest         GuestInfo `json:"guest"`
	PaymentMethod string    `json:"payment_method" binding:"required"`
	AmountToPay   int64     `json:"amount_to_pay" binding:"required"`
}

// InitiatePaymentResponse returns the intent and, when required, where to send the guest
type InitiatePaymentResponse struct {
	IntentID    string `json:"intent_id"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// ReconcileStatus is the outcome reported by the pull path
type ReconcileStatus string

const (
	ReconcileSuccess    ReconcileStatus = "success"
	ReconcileProcessing ReconcileStatus = "processing"
	ReconcileFailure    ReconcileStatus = "failure"
)

// PaymentStatusResponse is returned by the status poll endpoint
type PaymentStatusResponse struct {
	IntentID        string          `json:"intent_id"`
	Status          ReconcileStatus `json:"status"`
	ReservationCode string          `json:"reservation_code,omitempty"`
}

// PaymentWebhookPayload is the gateway event envelope
type PaymentWebhookPayload struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Type string `json:"type"`
			Data struct {
				ID         string `json:"id"`
				Attributes struct {
					PaymentIntentID string `json:"payment_intent_id"`
					Status          string `json:"status"`
				} `json:"attributes"`
			} `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}

// EventType returns the gateway event type, e.g. payment.paid
func (p *PaymentWebhookPayload) EventType() string {
	return p.Data.Attributes.Type
}

// IntentID returns the payment intent the event refers to
func (p *PaymentWebhookPayload) IntentID() string {
	return p.Data.Attributes.Data.Attributes.PaymentIntentID
}

// CreateBlockedRangeRequest declares a manual blackout
type CreateBlockedRangeRequest struct {
	AccommodationID *string   `json:"accommodation_id,omitempty"`
	StartAt         time.Time `json:"start_at" binding:"required"`
	EndAt           time.Time `json:"end_at" binding:"required"`
	Kind            BlockKind `json:"kind,omitempty"`
	Reason          string    `json:"reason"`
}
