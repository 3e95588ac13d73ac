package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resort/internal/clock"
	"resort/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings the server.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return rdb, nil
}

// TempBookingStore keeps not-yet-paid bookings keyed by payment intent.
// Redis expires keys on its own; readers also compare ExpiresAt against the
// clock so an entry is never served past its deadline.
type TempBookingStore struct {
	client *redis.Client
	clock  clock.Clock
	prefix string
}

func NewTempBookingStore(client *redis.Client, clk clock.Clock) *TempBookingStore {
	return &TempBookingStore{
		client: client,
		clock:  clk,
		prefix: "temp_booking:",
	}
}

func (s *TempBookingStore) key(intentID string) string {
	return s.prefix + intentID
}

func (s *TempBookingStore) Put(ctx context.Context, booking *models.TemporaryBooking) error {
	ttl := booking.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return fmt.Errorf("temporary booking %s already expired", booking.IntentID)
	}

	payload, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("failed to marshal temporary booking: %w", err)
	}

	if err := s.client.Set(ctx, s.key(booking.IntentID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store temporary booking %s: %w", booking.IntentID, err)
	}
	return nil
}

func (s *TempBookingStore) Get(ctx context.Context, intentID string) (*models.TemporaryBooking, error) {
	payload, err := s.client.Get(ctx, s.key(intentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("temporary booking lookup error: %w", err)
	}

	var booking models.TemporaryBooking
	if err := json.Unmarshal(payload, &booking); err != nil {
		return nil, fmt.Errorf("invalid temporary booking %s: %w", intentID, err)
	}

	if booking.Expired(s.clock.Now()) {
		return nil, nil
	}
	return &booking, nil
}

func (s *TempBookingStore) Delete(ctx context.Context, intentID string) error {
	if err := s.client.Del(ctx, s.key(intentID)).Err(); err != nil {
		return fmt.Errorf("failed to delete temporary booking %s: %w", intentID, err)
	}
	return nil
}
