package testutil

import (
	"context"
	"fmt"
	"sync"

	"resort/internal/clock"
	"resort/internal/models"
)

// TempBookings is an in-memory temporary booking store honoring ExpiresAt.
type TempBookings struct {
	mu       sync.Mutex
	clock    clock.Clock
	bookings map[string]models.TemporaryBooking
}

func NewTempBookings(clk clock.Clock) *TempBookings {
	return &TempBookings{clock: clk, bookings: make(map[string]models.TemporaryBooking)}
}

func (t *TempBookings) Put(ctx context.Context, booking *models.TemporaryBooking) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bookings[booking.IntentID] = *booking
	return nil
}

func (t *TempBookings) Get(ctx context.Context, intentID string) (*models.TemporaryBooking, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	booking, ok := t.bookings[intentID]
	if !ok || booking.Expired(t.clock.Now()) {
		return nil, nil
	}
	return &booking, nil
}

func (t *TempBookings) Delete(ctx context.Context, intentID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.bookings, intentID)
	return nil
}

func (t *TempBookings) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.bookings)
}

// Gateway is a scriptable payment gateway.
type Gateway struct {
	mu       sync.Mutex
	seq      int
	statuses map[string]models.IntentStatus

	RedirectURL  string
	AttachStatus models.IntentStatus
	CreateErr    error
	AttachErr    error
	LookupErr    error

	Intents []int64
}

func NewGateway() *Gateway {
	return &Gateway{
		statuses:     make(map[string]models.IntentStatus),
		AttachStatus: models.IntentAwaitingNextAction,
		RedirectURL:  "https://pay.example.test/redirect",
	}
}

func (g *Gateway) CreateIntent(ctx context.Context, amount int64, allowedMethods []string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return "", g.CreateErr
	}
	g.seq++
	id := fmt.Sprintf("pi_%d", g.seq)
	g.statuses[id] = models.IntentAwaitingPaymentMethod
	g.Intents = append(g.Intents, amount)
	return id, nil
}

func (g *Gateway) CreateMethod(ctx context.Context, methodType string, billing models.BillingInfo) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("pm_%d", g.seq), nil
}

func (g *Gateway) Attach(ctx context.Context, intentID, methodID, returnURL string) (*models.AttachResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AttachErr != nil {
		return nil, g.AttachErr
	}
	g.statuses[intentID] = g.AttachStatus
	result := &models.AttachResult{Status: g.AttachStatus}
	if g.AttachStatus == models.IntentAwaitingNextAction {
		result.RedirectURL = g.RedirectURL
	}
	return result, nil
}

func (g *Gateway) GetIntent(ctx context.Context, intentID string) (models.IntentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.LookupErr != nil {
		return "", g.LookupErr
	}
	status, ok := g.statuses[intentID]
	if !ok {
		return "", fmt.Errorf("intent %s not found", intentID)
	}
	return status, nil
}

// SetStatus moves an intent to status, as the gateway would after the guest pays.
func (g *Gateway) SetStatus(intentID string, status models.IntentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[intentID] = status
}

// Message is one recorded publish.
type Message struct {
	Subject string
	Data    any
}

// Bus records everything published on it.
type Bus struct {
	mu       sync.Mutex
	messages []Message
}

func (b *Bus) Publish(subject string, data any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, Message{Subject: subject, Data: data})
	return nil
}

func (b *Bus) Messages(subject string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	for _, m := range b.messages {
		if m.Subject == subject {
			out = append(out, m)
		}
	}
	return out
}

// Notifications returns the queued notification requests of kind.
func (b *Bus) Notifications(kind models.NotificationKind) []models.NotificationRequest {
	var out []models.NotificationRequest
	for _, m := range b.Messages(models.SubjectNotificationRequest) {
		if req, ok := m.Data.(models.NotificationRequest); ok && req.Kind == kind {
			out = append(out, req)
		}
	}
	return out
}
