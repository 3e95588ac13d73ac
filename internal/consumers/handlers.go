package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"resort/internal/logger"
	"resort/internal/metrics"
	"resort/internal/models"

	"github.com/nats-io/stan.go"
)

type Mailer interface {
	Enabled() bool
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

type Texter interface {
	Enabled() bool
	SendSMS(ctx context.Context, number, text string) error
}

// errMalformed marks messages that will never succeed and must not be redelivered.
var errMalformed = errors.New("malformed message")

const deliveryTimeout = 20 * time.Second

type Handlers struct {
	mail Mailer
	sms  Texter
}

func NewHandlers(mail Mailer, sms Texter) *Handlers {
	return &Handlers{mail: mail, sms: sms}
}

// HandleNotificationRequested delivers a guest notification by email and SMS.
// Delivery failures leave the message unacked so the streaming server
// redelivers it after AckWait.
func (h *Handlers) HandleNotificationRequested(m *stan.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if err := h.deliver(ctx, m.Data); err != nil && !errors.Is(err, errMalformed) {
		slog.Error("Notification delivery failed, awaiting redelivery", "error", err, "redelivered", m.Redelivered)
		return
	}
	if err := m.Ack(); err != nil {
		slog.Error("Failed to ack notification", "error", err)
	}
}

func (h *Handlers) deliver(ctx context.Context, data []byte) error {
	var req models.NotificationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		slog.Error("Failed to unmarshal notification request", "error", err)
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	msg, ok := render(req)
	if !ok {
		slog.Warn("Unknown notification kind", "kind", req.Kind, "reservation_code", req.ReservationCode)
		return errMalformed
	}

	log := logger.WithFields("kind", req.Kind, "reservation_code", req.ReservationCode)
	var failed error

	if h.mail != nil && h.mail.Enabled() && req.Guest.Email != "" {
		if err := h.mail.SendEmail(ctx, req.Guest.Email, msg.subject, msg.html); err != nil {
			metrics.NotificationsDelivered.WithLabelValues("email", "error").Inc()
			log.Error("Failed to send email", "error", err)
			failed = errors.Join(failed, err)
		} else {
			metrics.NotificationsDelivered.WithLabelValues("email", "ok").Inc()
		}
	}

	if h.sms != nil && h.sms.Enabled() && req.Guest.Phone != "" {
		if err := h.sms.SendSMS(ctx, req.Guest.Phone, msg.text); err != nil {
			metrics.NotificationsDelivered.WithLabelValues("sms", "error").Inc()
			log.Error("Failed to send SMS", "error", err)
			failed = errors.Join(failed, err)
		} else {
			metrics.NotificationsDelivered.WithLabelValues("sms", "ok").Inc()
		}
	}

	if failed == nil {
		log.Info("Notification delivered")
	}
	return failed
}

type message struct {
	subject string
	html    string
	text    string
}

const stayLayout = "Jan 2, 2006 3:04 PM"

func render(req models.NotificationRequest) (message, bool) {
	stay := fmt.Sprintf("%s to %s", req.StartAt.Format(stayLayout), req.EndAt.Format(stayLayout))

	var subject, line string
	switch req.Kind {
	case models.NotifyReservationCreated:
		subject = "Your reservation " + req.ReservationCode
		line = "Your reservation " + req.ReservationCode + " is booked for " + stay + "."
	case models.NotifyRescheduleRequested:
		subject = "Reschedule request received"
		line = "We received your request to move reservation " + req.ReservationCode + " to " + stay + ". We will let you know once it is reviewed."
	case models.NotifyRescheduleApproved:
		subject = "Reschedule approved"
		line = "Reservation " + req.ReservationCode + " has been moved to " + stay + "."
	case models.NotifyRescheduleRejected:
		subject = "Reschedule declined"
		line = "Your request to reschedule " + req.ReservationCode + " was declined."
		if req.Reason != "" {
			line += " Reason: " + req.Reason
		}
	case models.NotifyReminder:
		subject = "See you soon"
		line = "A reminder that your stay (" + req.ReservationCode + ") starts " + req.StartAt.Format(stayLayout) + "."
	default:
		return message{}, false
	}

	greeting := "Hi " + req.Guest.Name + ","
	return message{
		subject: subject,
		html:    "<p>" + html.EscapeString(greeting) + "</p><p>" + html.EscapeString(line) + "</p>",
		text:    greeting + " " + line,
	}, true
}
