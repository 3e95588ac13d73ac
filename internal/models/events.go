package models

import "time"

// NATS subjects
const (
	SubjectActivityRecorded    = "reservation.activity"
	SubjectReservationCreated  = "reservation.created"
	SubjectNotificationRequest = "notification.requested"
)

// NotificationKind selects the message a guest receives
type NotificationKind string

const (
	NotifyReservationCreated  NotificationKind = "reservation_created"
	NotifyRescheduleRequested NotificationKind = "reschedule_requested"
	NotifyRescheduleApproved  NotificationKind = "reschedule_approved"
	NotifyRescheduleRejected  NotificationKind = "reschedule_rejected"
	NotifyReminder            NotificationKind = "reservation_reminder"
)

// NotificationRequest asks the delivery worker to email and text a guest
type NotificationRequest struct {
	Kind            NotificationKind `json:"kind"`
	ReservationCode string           `json:"reservation_code"`
	Guest           GuestInfo        `json:"guest"`
	AccommodationID string           `json:"accommodation_id"`
	StartAt         time.Time        `json:"start_at"`
	EndAt           time.Time        `json:"end_at"`
	Reason          string           `json:"reason,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}

// ReservationCreatedEvent is published after a reservation is committed
type ReservationCreatedEvent struct {
	ReservationCode string    `json:"reservation_code"`
	AccommodationID string    `json:"accommodation_id"`
	IntentID        string    `json:"intent_id,omitempty"`
	Total           int64     `json:"total"`
	TotalPaid       int64     `json:"total_paid"`
	Timestamp       time.Time `json:"timestamp"`
}
