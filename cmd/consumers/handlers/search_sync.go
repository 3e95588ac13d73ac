package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"resort/internal/models"

	"github.com/nats-io/stan.go"
)

type ReservationReader interface {
	GetByCode(ctx context.Context, code string) (*models.Reservation, error)
}

type ReservationIndex interface {
	IndexReservation(ctx context.Context, r *models.Reservation) error
	DeleteReservation(ctx context.Context, code string) error
}

// SearchSyncHandler keeps the search index in step with the database by
// reindexing a reservation whenever an activity event is recorded for it.
// The API indexes inline as well; this consumer repairs anything it missed.
type SearchSyncHandler struct {
	reservations ReservationReader
	index        ReservationIndex
}

func NewSearchSyncHandler(reservations ReservationReader, index ReservationIndex) *SearchSyncHandler {
	return &SearchSyncHandler{
		reservations: reservations,
		index:        index,
	}
}

// HandleActivityRecorded handles reservation.activity events
func (h *SearchSyncHandler) HandleActivityRecorded(msg *stan.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var event models.ActivityEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		slog.Error("Failed to unmarshal activity event", "error", err)
		msg.Ack() // Acknowledge even on unmarshal error to avoid redelivery
		return
	}

	if err := h.Sync(ctx, event.ReservationCode); err != nil {
		slog.Error("Failed to sync reservation to search", "error", err, "reservation_code", event.ReservationCode)
		return
	}
	msg.Ack()
}

// Sync reindexes code, or removes it from the index when it no longer exists.
func (h *SearchSyncHandler) Sync(ctx context.Context, code string) error {
	if code == "" {
		return nil
	}

	r, err := h.reservations.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to load reservation: %w", err)
	}

	if r == nil {
		slog.Debug("Reservation gone, removing from index", "reservation_code", code)
		return h.index.DeleteReservation(ctx, code)
	}

	if err := h.index.IndexReservation(ctx, r); err != nil {
		return err
	}
	slog.Debug("Reservation reindexed", "reservation_code", code, "status", r.Status)
	return nil
}
