package models

import (
	"time"
)

// Amounts are minor currency units (centavos).

// ReservationStatus is the lifecycle state of a reservation
type ReservationStatus string

const (
	StatusPending     ReservationStatus = "PENDING"
	StatusConfirmed   ReservationStatus = "CONFIRMED"
	StatusCancelled   ReservationStatus = "CANCELLED"
	StatusCompleted   ReservationStatus = "COMPLETED"
	StatusRescheduled ReservationStatus = "RESCHEDULED"
	StatusArchived    ReservationStatus = "ARCHIVED"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusRescheduled, StatusArchived:
		return true
	}
	return false
}

// PaymentStatus is derived from the amount breakdown
type PaymentStatus string

const (
	PaymentFullyPaid     PaymentStatus = "FULLY_PAID"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
)

// RescheduleStatus is the state of a date-change request
type RescheduleStatus string

const (
	ReschedulePending  RescheduleStatus = "PENDING"
	RescheduleApproved RescheduleStatus = "APPROVED"
	RescheduleRejected RescheduleStatus = "REJECTED"
)

// Accommodation represents a bookable unit
type Accommodation struct {
	ID              string `json:"id" db:"id"`
	Name            string `json:"name" db:"name"`
	Type            string `json:"type" db:"type"`
	Capacity        int    `json:"capacity" db:"capacity"`
	DayRate         int64  `json:"day_rate" db:"day_rate"`
	NightRate       int64  `json:"night_rate" db:"night_rate"`
	ExtraPersonRate int64  `json:"extra_person_rate" db:"extra_person_rate"`
}

// Amenity represents an optional add-on
type Amenity struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Price  int64  `json:"price" db:"price"`
	Active bool   `json:"active" db:"active"`
}

// GuestInfo is a snapshot of the guest at booking time, not a live account link
type GuestInfo struct {
	UserID *string `json:"user_id,omitempty"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Phone  string  `json:"phone"`
}

// EntranceTickets holds day-use ticket quantities per guest category
type EntranceTickets struct {
	Adult     int `json:"adult"`
	Child     int `json:"child"`
	PWDSenior int `json:"pwd_senior"`
}

// AmenityLine is an amenity priced as of the time it was added
type AmenityLine struct {
	AmenityID string `json:"amenity_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

// AmountBreakdown holds the financial components of a reservation
type AmountBreakdown struct {
	Accommodation  int64 `json:"accommodation"`
	Entrance       int64 `json:"entrance"`
	Amenities      int64 `json:"amenities"`
	ExtraPersonFee int64 `json:"extra_person_fee"`
	Total          int64 `json:"total"`
	TotalPaid      int64 `json:"total_paid"`
}

// Sum returns the total implied by the four components.
func (a AmountBreakdown) Sum() int64 {
	return a.Accommodation + a.Entrance + a.Amenities + a.ExtraPersonFee
}

// Recalculate sets Total from its components and reports whether it changed.
func (a *AmountBreakdown) Recalculate() bool {
	sum := a.Sum()
	if a.Total == sum {
		return false
	}
	a.Total = sum
	return true
}

// MinimumPayable is half the accommodation subtotal, rounded up.
func (a AmountBreakdown) MinimumPayable() int64 {
	return (a.Accommodation + 1) / 2
}

// PaymentStatus derives the payment state from paid vs total.
func (a AmountBreakdown) PaymentStatus() PaymentStatus {
	if a.TotalPaid >= a.Total {
		return PaymentFullyPaid
	}
	return PaymentPartiallyPaid
}

// RescheduleRequest is the date-change sub-record embedded in a reservation
type RescheduleRequest struct {
	Status         RescheduleStatus `json:"status"`
	OldStartAt     time.Time        `json:"old_start_at"`
	OldEndAt       time.Time        `json:"old_end_at"`
	NewStartAt     time.Time        `json:"new_start_at"`
	NewEndAt       time.Time        `json:"new_end_at"`
	RequestedBy    string           `json:"requested_by"`
	RequestedAt    time.Time        `json:"requested_at"`
	DecidedBy      *string          `json:"decided_by,omitempty"`
	DecidedAt      *time.Time       `json:"decided_at,omitempty"`
	DecisionReason *string          `json:"decision_reason,omitempty"`
}

// Reservation represents a durable booking
type Reservation struct {
	ID              int64              `json:"id" db:"id"`
	Code            string             `json:"code" db:"code"`
	AccommodationID string             `json:"accommodation_id" db:"accommodation_id"`
	Guest           GuestInfo          `json:"guest"`
	StartAt         time.Time          `json:"start_at" db:"start_at"`
	EndAt           time.Time          `json:"end_at" db:"end_at"`
	Status          ReservationStatus  `json:"status" db:"status"`
	PaymentStatus   PaymentStatus      `json:"payment_status" db:"payment_status"`
	PaymentMethod   string             `json:"payment_method,omitempty" db:"payment_method"`
	Guests          int                `json:"guests" db:"guests"`
	Entrances       EntranceTickets    `json:"entrances"`
	Amenities       []AmenityLine      `json:"amenities"`
	Amount          AmountBreakdown    `json:"amount"`
	Reschedule      *RescheduleRequest `json:"reschedule,omitempty" db:"reschedule"`
	WalkIn          bool               `json:"walk_in" db:"walk_in"`
	ReminderSent    bool               `json:"reminder_sent" db:"reminder_sent"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy suitable for before/after comparison.
func (r Reservation) Clone() Reservation {
	c := r
	if r.Guest.UserID != nil {
		id := *r.Guest.UserID
		c.Guest.UserID = &id
	}
	if r.Amenities != nil {
		c.Amenities = append([]AmenityLine(nil), r.Amenities...)
	}
	if r.Reschedule != nil {
		rs := *r.Reschedule
		c.Reschedule = &rs
	}
	return c
}

// TemporaryBooking holds a not-yet-committed reservation keyed by payment intent
type TemporaryBooking struct {
	IntentID        string          `json:"intent_id"`
	AccommodationID string          `json:"accommodation_id"`
	Guest           GuestInfo       `json:"guest"`
	StartAt         time.Time       `json:"start_at"`
	EndAt           time.Time       `json:"end_at"`
	Guests          int             `json:"guests"`
	Entrances       EntranceTickets `json:"entrances"`
	Amount          AmountBreakdown `json:"amount"`
	Amenities       []AmenityItem   `json:"amenities"`
	PaymentMethod   string          `json:"payment_method"`
	CreatedAt       time.Time       `json:"created_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

// Expired reports whether the entry must be treated as gone.
func (t *TemporaryBooking) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Payment is an immutable record of a captured external payment
type Payment struct {
	ID              int64     `json:"id" db:"id"`
	IntentID        string    `json:"intent_id" db:"intent_id"`
	ReservationCode string    `json:"reservation_code" db:"reservation_code"`
	Amount          int64     `json:"amount" db:"amount"`
	Method          string    `json:"method" db:"method"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// BlockKind distinguishes manually declared ranges
type BlockKind string

const (
	BlockBlackout    BlockKind = "BLACKOUT"
	BlockMaintenance BlockKind = "MAINTENANCE"
)

// BlockOrigin tags an entry of the aggregated calendar
type BlockOrigin string

const (
	OriginResortBlackout     BlockOrigin = "RESORT_BLACKOUT"
	OriginAccommodationBlock BlockOrigin = "ACCOMMODATION_BLOCK"
	OriginMaintenance        BlockOrigin = "MAINTENANCE"
	OriginBooked             BlockOrigin = "BOOKED"
)

// BlockedDateRange is a manual blackout or a range synthesized from a confirmed reservation
type BlockedDateRange struct {
	ID              string      `json:"id,omitempty" db:"id"`
	AccommodationID *string     `json:"accommodation_id,omitempty" db:"accommodation_id"`
	StartAt         time.Time   `json:"start_at" db:"start_at"`
	EndAt           time.Time   `json:"end_at" db:"end_at"`
	Kind            BlockKind   `json:"kind,omitempty" db:"kind"`
	Reason          string      `json:"reason,omitempty" db:"reason"`
	Origin          BlockOrigin `json:"origin"`
	ReservationCode string      `json:"reservation_code,omitempty"`
	ReadOnly        bool        `json:"read_only"`
	CreatedAt       time.Time   `json:"created_at,omitempty" db:"created_at"`
}

// ActivityKind is the audit event taxonomy
type ActivityKind string

const (
	ActivityCreated             ActivityKind = "RESERVATION_CREATED"
	ActivityScheduleChanged     ActivityKind = "SCHEDULE_CHANGED"
	ActivityStatusChanged       ActivityKind = "STATUS_CHANGED"
	ActivityPaymentChanged      ActivityKind = "PAYMENT_CHANGED"
	ActivityPaymentFullyPaid    ActivityKind = "PAYMENT_FULLY_PAID"
	ActivityRescheduleRequested ActivityKind = "RESCHEDULE_REQUESTED"
	ActivityRescheduleDecided   ActivityKind = "RESCHEDULE_DECIDED"
	ActivityGuestCountChanged   ActivityKind = "GUEST_COUNT_CHANGED"
	ActivityEntranceChanged     ActivityKind = "ENTRANCE_CHANGED"
	ActivityAccommodation       ActivityKind = "ACCOMMODATION_CHANGED"
	ActivityGuestInfoChanged    ActivityKind = "GUEST_INFO_CHANGED"
	ActivityWalkInChanged       ActivityKind = "WALK_IN_CHANGED"
	ActivityUpdated             ActivityKind = "RESERVATION_UPDATED"
)

// ActivityEvent is an append-only audit entry
type ActivityEvent struct {
	ID              int64        `json:"id,omitempty" db:"id"`
	Kind            ActivityKind `json:"kind" db:"kind"`
	ReservationCode string       `json:"reservation_code" db:"reservation_code"`
	Description     string       `json:"description" db:"description"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
}

// EntranceFees are per-category day-use prices
type EntranceFees struct {
	Adult     int64 `json:"adult"`
	Child     int64 `json:"child"`
	PWDSenior int64 `json:"pwd_senior"`
}

// Total prices a set of entrance tickets.
func (f EntranceFees) Total(t EntranceTickets) int64 {
	return int64(t.Adult)*f.Adult + int64(t.Child)*f.Child + int64(t.PWDSenior)*f.PWDSenior
}

// IntentStatus is the gateway's view of a payment intent
type IntentStatus string

const (
	IntentSucceeded             IntentStatus = "succeeded"
	IntentProcessing            IntentStatus = "processing"
	IntentAwaitingNextAction    IntentStatus = "awaiting_next_action"
	IntentAwaitingPaymentMethod IntentStatus = "awaiting_payment_method"
	IntentFailed                IntentStatus = "failed"
	IntentCanceled              IntentStatus = "canceled"
)

// AttachResult is returned when a payment method is attached to an intent
type AttachResult struct {
	Status      IntentStatus `json:"status"`
	RedirectURL string       `json:"redirect_url,omitempty"`
}
