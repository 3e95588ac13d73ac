package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "REDIS_ADDR", "CALENDAR_CACHE_ADDR", "CALENDAR_CACHE_CLIENT_TRACKING",
		"TEMP_BOOKING_TTL", "SWEEP_INTERVAL", "ENTRANCE_FEE_ADULT"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.TempBookingTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, "localhost:6379", cfg.Calendar.Addr)
	assert.False(t, cfg.Calendar.DisableCache)
	assert.Equal(t, int64(15000), cfg.EntranceFees.Adult)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CALENDAR_CACHE_ADDR", "")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("TEMP_BOOKING_TTL", "10m")
	t.Setenv("SWEEP_INTERVAL", "not-a-duration")
	t.Setenv("DB_MAX_OPEN_CONNS", "nope")
	t.Setenv("CALENDAR_CACHE_CLIENT_TRACKING", "off")
	t.Setenv("ENTRANCE_FEE_CHILD", "5000")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "redis:6379", cfg.Calendar.Addr)
	assert.Equal(t, 10*time.Minute, cfg.TempBookingTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Calendar.DisableCache)
	assert.Equal(t, int64(5000), cfg.EntranceFees.Child)
}

func TestLoadElasticsearchConfig(t *testing.T) {
	t.Setenv("ELASTICSEARCH_URL", "")
	assert.False(t, LoadElasticsearchConfig().Enabled())

	t.Setenv("ELASTICSEARCH_URL", "http://es:9200")
	cfg := LoadElasticsearchConfig()
	assert.True(t, cfg.Enabled())
	assert.Equal(t, "reservations", cfg.Index)
}
