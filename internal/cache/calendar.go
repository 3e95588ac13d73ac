package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"resort/internal/models"

	"github.com/redis/rueidis"
)

type CalendarConfig struct {
	Addr     string
	Password string
	TTL      time.Duration
	// DisableCache turns off client-side caching for servers without
	// CLIENT TRACKING support.
	DisableCache bool
}

const calendarVersionKey = "calendar:version"

// CalendarCache caches aggregated blocked ranges per scope. Entries are keyed
// by a global version number; Invalidate bumps the version so every scope is
// recomputed on the next read. Both the version and the entries are served
// from rueidis client-side cache, which the server invalidates on write.
type CalendarCache struct {
	client rueidis.Client
	ttl    time.Duration
}

func NewCalendarCache(cfg CalendarConfig) (*CalendarCache, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{cfg.Addr},
		Password:     cfg.Password,
		DisableCache: cfg.DisableCache,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect calendar cache: %w", err)
	}
	return &CalendarCache{client: client, ttl: cfg.TTL}, nil
}

func (c *CalendarCache) version(ctx context.Context) (int64, error) {
	v, err := c.client.DoCache(ctx, c.client.B().Get().Key(calendarVersionKey).Cache(), c.ttl).AsInt64()
	if rueidis.IsRedisNil(err) {
		return 0, nil
	}
	return v, err
}

func (c *CalendarCache) entryKey(version int64, scope string) string {
	return "calendar:v" + strconv.FormatInt(version, 10) + ":" + scope
}

// Get returns the cached ranges for scope, whether there was a hit and the
// version it looked under. A miss is filled by passing that version to Set.
func (c *CalendarCache) Get(ctx context.Context, scope string) ([]models.BlockedDateRange, int64, bool, error) {
	version, err := c.version(ctx)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to read calendar version: %w", err)
	}

	raw, err := c.client.DoCache(ctx, c.client.B().Get().Key(c.entryKey(version, scope)).Cache(), c.ttl).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, version, false, fmt.Errorf("failed to read calendar entry: %w", err)
	}

	var ranges []models.BlockedDateRange
	if err := json.Unmarshal(raw, &ranges); err != nil {
		return nil, version, false, fmt.Errorf("invalid calendar entry: %w", err)
	}
	return ranges, version, true, nil
}

// Set stores ranges under the version observed by the Get that missed. An
// Invalidate in between leaves the entry under a version nobody reads.
func (c *CalendarCache) Set(ctx context.Context, version int64, scope string, ranges []models.BlockedDateRange) error {
	payload, err := json.Marshal(ranges)
	if err != nil {
		return fmt.Errorf("failed to marshal calendar entry: %w", err)
	}

	cmd := c.client.B().Setex().Key(c.entryKey(version, scope)).
		Seconds(int64(c.ttl / time.Second)).Value(rueidis.BinaryString(payload)).Build()
	return c.client.Do(ctx, cmd).Error()
}

func (c *CalendarCache) Invalidate(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Incr().Key(calendarVersionKey).Build()).Error()
}

func (c *CalendarCache) Close() {
	c.client.Close()
}
