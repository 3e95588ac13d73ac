package service

import (
	"fmt"
	"strings"
	"time"

	"resort/internal/models"
)

const timeLayout = "2006-01-02 15:04"

func formatMoney(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%sPHP %d.%02d", sign, v/100, v%100)
}

func formatRange(start, end time.Time) string {
	return start.Format(timeLayout) + " to " + end.Format(timeLayout)
}

func newActivity(kind models.ActivityKind, code string, at time.Time, format string, args ...any) models.ActivityEvent {
	return models.ActivityEvent{
		Kind:            kind,
		ReservationCode: code,
		Description:     fmt.Sprintf(format, args...),
		CreatedAt:       at,
	}
}

// creationEvents are recorded when a reservation is first committed.
func creationEvents(r *models.Reservation, at time.Time) []models.ActivityEvent {
	events := []models.ActivityEvent{
		newActivity(models.ActivityCreated, r.Code, at,
			"Reservation created for %s (%s), total %s, paid %s",
			r.AccommodationID, formatRange(r.StartAt, r.EndAt),
			formatMoney(r.Amount.Total), formatMoney(r.Amount.TotalPaid)),
	}
	if r.PaymentStatus == models.PaymentFullyPaid {
		events = append(events, newActivity(models.ActivityPaymentFullyPaid, r.Code, at,
			"Reservation fully paid (%s)", formatMoney(r.Amount.TotalPaid)))
	}
	return events
}

// DiffReservations derives one activity event per changed axis between two
// snapshots of the same reservation. When no tracked axis changed a single
// generic update event is returned.
func DiffReservations(before, after models.Reservation, at time.Time) []models.ActivityEvent {
	code := after.Code
	var events []models.ActivityEvent

	if !before.StartAt.Equal(after.StartAt) || !before.EndAt.Equal(after.EndAt) {
		events = append(events, newActivity(models.ActivityScheduleChanged, code, at,
			"Schedule changed from %s to %s",
			formatRange(before.StartAt, before.EndAt), formatRange(after.StartAt, after.EndAt)))
	}

	if before.Status != after.Status {
		events = append(events, newActivity(models.ActivityStatusChanged, code, at,
			"Status changed from %s to %s", before.Status, after.Status))
	}

	events = append(events, paymentEvents(before, after, at)...)

	if before.Guests != after.Guests {
		events = append(events, newActivity(models.ActivityGuestCountChanged, code, at,
			"Guest count changed from %d to %d", before.Guests, after.Guests))
	}

	if before.Entrances != after.Entrances {
		events = append(events, newActivity(models.ActivityEntranceChanged, code, at,
			"Entrance tickets changed from %s to %s",
			formatEntrances(before.Entrances), formatEntrances(after.Entrances)))
	}

	if before.AccommodationID != after.AccommodationID {
		events = append(events, newActivity(models.ActivityAccommodation, code, at,
			"Accommodation changed from %s to %s", before.AccommodationID, after.AccommodationID))
	}

	if fields := changedGuestFields(before.Guest, after.Guest); len(fields) > 0 {
		events = append(events, newActivity(models.ActivityGuestInfoChanged, code, at,
			"Guest %s updated", strings.Join(fields, ", ")))
	}

	if before.WalkIn != after.WalkIn {
		events = append(events, newActivity(models.ActivityWalkInChanged, code, at,
			"Walk-in flag set to %t", after.WalkIn))
	}

	if len(events) == 0 {
		events = append(events, newActivity(models.ActivityUpdated, code, at, "Reservation updated"))
	}
	return events
}

// paymentEvents reports a change of paid amount, total or payment status, and
// the moment a reservation becomes fully paid.
func paymentEvents(before, after models.Reservation, at time.Time) []models.ActivityEvent {
	code := after.Code
	var events []models.ActivityEvent

	if before.Amount.TotalPaid != after.Amount.TotalPaid ||
		before.Amount.Total != after.Amount.Total ||
		before.PaymentStatus != after.PaymentStatus ||
		before.PaymentMethod != after.PaymentMethod {
		events = append(events, newActivity(models.ActivityPaymentChanged, code, at,
			"Payment changed: paid %s of %s (was %s of %s), %s",
			formatMoney(after.Amount.TotalPaid), formatMoney(after.Amount.Total),
			formatMoney(before.Amount.TotalPaid), formatMoney(before.Amount.Total),
			after.PaymentStatus))
	}

	if before.PaymentStatus != models.PaymentFullyPaid && after.PaymentStatus == models.PaymentFullyPaid {
		events = append(events, newActivity(models.ActivityPaymentFullyPaid, code, at,
			"Reservation fully paid (%s)", formatMoney(after.Amount.TotalPaid)))
	}
	return events
}

func formatEntrances(t models.EntranceTickets) string {
	return fmt.Sprintf("adult %d, child %d, PWD/senior %d", t.Adult, t.Child, t.PWDSenior)
}

func changedGuestFields(before, after models.GuestInfo) []string {
	var fields []string
	if before.Name != after.Name {
		fields = append(fields, "name")
	}
	if before.Email != after.Email {
		fields = append(fields, "email")
	}
	if before.Phone != after.Phone {
		fields = append(fields, "phone")
	}
	if !equalPtr(before.UserID, after.UserID) {
		fields = append(fields, "account")
	}
	return fields
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func amenityEvent(code string, lines []models.AmenityLine, at time.Time) models.ActivityEvent {
	if len(lines) == 0 {
		return newActivity(models.ActivityUpdated, code, at, "Amenities cleared")
	}
	names := make([]string, len(lines))
	for i, line := range lines {
		names[i] = fmt.Sprintf("%s x%d (%s)", line.Name, line.Quantity, formatMoney(line.Subtotal))
	}
	return newActivity(models.ActivityUpdated, code, at, "Amenities updated: %s", strings.Join(names, ", "))
}
