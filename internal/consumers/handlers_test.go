package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"resort/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEmail struct{ to, subject, body string }

type fakeMail struct {
	enabled bool
	err     error
	sent    []sentEmail
}

func (f *fakeMail) Enabled() bool { return f.enabled }

func (f *fakeMail) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{to, subject, htmlBody})
	return nil
}

type fakeSMS struct {
	enabled bool
	err     error
	sent    map[string]string
}

func (f *fakeSMS) Enabled() bool { return f.enabled }

func (f *fakeSMS) SendSMS(ctx context.Context, number, text string) error {
	if f.err != nil {
		return f.err
	}
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[number] = text
	return nil
}

func notification(kind models.NotificationKind) []byte {
	data, _ := json.Marshal(models.NotificationRequest{
		Kind:            kind,
		ReservationCode: "RS-AB12CD34",
		Guest:           models.GuestInfo{Name: "Ana <Reyes>", Email: "ana@example.test", Phone: "+639170000000"},
		StartAt:         time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC),
		EndAt:           time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC),
		Reason:          "fully booked",
	})
	return data
}

func TestDeliver(t *testing.T) {
	mail := &fakeMail{enabled: true}
	sms := &fakeSMS{enabled: true}
	h := NewHandlers(mail, sms)

	require.NoError(t, h.deliver(context.Background(), notification(models.NotifyReservationCreated)))

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "ana@example.test", mail.sent[0].to)
	assert.Contains(t, mail.sent[0].subject, "RS-AB12CD34")
	assert.Contains(t, mail.sent[0].body, "Ana &lt;Reyes&gt;")
	assert.Contains(t, sms.sent["+639170000000"], "Mar 5, 2026 2:00 PM")
}

func TestDeliver_Failures(t *testing.T) {
	t.Run("malformed payload", func(t *testing.T) {
		h := NewHandlers(&fakeMail{enabled: true}, nil)
		err := h.deliver(context.Background(), []byte(`{"kind":`))
		assert.ErrorIs(t, err, errMalformed)
	})

	t.Run("unknown kind", func(t *testing.T) {
		h := NewHandlers(&fakeMail{enabled: true}, nil)
		err := h.deliver(context.Background(), notification("birthday"))
		assert.ErrorIs(t, err, errMalformed)
	})

	t.Run("provider error is retryable", func(t *testing.T) {
		mail := &fakeMail{enabled: true, err: errors.New("smtp down")}
		sms := &fakeSMS{enabled: true}
		h := NewHandlers(mail, sms)

		err := h.deliver(context.Background(), notification(models.NotifyReminder))
		require.Error(t, err)
		assert.NotErrorIs(t, err, errMalformed)
		assert.Len(t, sms.sent, 1, "other channels still deliver")
	})

	t.Run("disabled channels", func(t *testing.T) {
		mail := &fakeMail{}
		h := NewHandlers(mail, &fakeSMS{})
		require.NoError(t, h.deliver(context.Background(), notification(models.NotifyReminder)))
		assert.Empty(t, mail.sent)
	})
}

func TestRender(t *testing.T) {
	for _, kind := range []models.NotificationKind{
		models.NotifyReservationCreated,
		models.NotifyRescheduleRequested,
		models.NotifyRescheduleApproved,
		models.NotifyRescheduleRejected,
		models.NotifyReminder,
	} {
		var req models.NotificationRequest
		require.NoError(t, json.Unmarshal(notification(kind), &req))

		msg, ok := render(req)
		require.True(t, ok, kind)
		assert.NotEmpty(t, msg.subject, kind)
		assert.Contains(t, msg.text, "RS-AB12CD34", kind)
	}

	var rejected models.NotificationRequest
	require.NoError(t, json.Unmarshal(notification(models.NotifyRescheduleRejected), &rejected))
	msg, _ := render(rejected)
	assert.Contains(t, msg.text, "Reason: fully booked")
}
