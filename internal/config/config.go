package config

import (
	"os"
	"strconv"
	"time"

	"resort/internal/cache"
	"resort/internal/database"
	"resort/internal/external"
	"resort/internal/messaging"
	"resort/internal/models"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration
	JWTSecret      string

	Database database.Config
	Redis    cache.RedisConfig
	Calendar cache.CalendarConfig
	NATS     messaging.Config
	Payment  external.PaymentConfig
	Mail     external.MailConfig
	SMS      external.SMSConfig

	TempBookingTTL   time.Duration
	SweepInterval    time.Duration
	ReminderInterval time.Duration
	ReminderWindow   time.Duration
	EntranceFees     models.EntranceFees
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,
		JWTSecret:      getEnv("JWT_SECRET", ""),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "resort"),
			Password:           getEnv("DB_PASSWORD", "resort123"),
			DBName:             getEnv("DB_NAME", "resort"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		Redis: cache.RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},

		Calendar: cache.CalendarConfig{
			Addr:     getEnv("CALENDAR_CACHE_ADDR", getEnv("REDIS_ADDR", "localhost:6379")),
			Password: getEnv("REDIS_PASSWORD", ""),
			TTL:      getEnvDuration("CALENDAR_CACHE_TTL", 5*time.Minute),
			// Managed Redis offerings without CLIENT TRACKING need this off.
			DisableCache: getEnv("CALENDAR_CACHE_CLIENT_TRACKING", "on") == "off",
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "resort"),
			ClientID:  getEnv("NATS_CLIENT_ID", "resort-api"),
		},

		Payment: external.PaymentConfig{
			BaseURL:       getEnv("PAYMENT_GATEWAY_URL", "https://api.paymongo.com/v1"),
			SecretKey:     getEnv("PAYMENT_SECRET_KEY", ""),
			WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			ReturnURL:     getEnv("PAYMENT_RETURN_URL", "http://localhost:3000/booking/status"),
			Timeout:       time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 30)) * time.Second,
		},

		Mail: external.MailConfig{
			BaseURL: getEnv("MAIL_API_URL", ""),
			APIKey:  getEnv("MAIL_API_KEY", ""),
			From:    getEnv("MAIL_FROM", "reservations@resort.local"),
			Timeout: time.Duration(getEnvInt("MAIL_TIMEOUT_SEC", 15)) * time.Second,
		},

		SMS: external.SMSConfig{
			BaseURL: getEnv("SMS_API_URL", ""),
			APIKey:  getEnv("SMS_API_KEY", ""),
			Sender:  getEnv("SMS_SENDER", "RESORT"),
			Timeout: time.Duration(getEnvInt("SMS_TIMEOUT_SEC", 15)) * time.Second,
		},

		TempBookingTTL:   getEnvDuration("TEMP_BOOKING_TTL", 30*time.Minute),
		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", time.Minute),
		ReminderInterval: getEnvDuration("REMINDER_INTERVAL", 15*time.Minute),
		ReminderWindow:   getEnvDuration("REMINDER_WINDOW", 24*time.Hour),

		EntranceFees: models.EntranceFees{
			Adult:     int64(getEnvInt("ENTRANCE_FEE_ADULT", 15000)),
			Child:     int64(getEnvInt("ENTRANCE_FEE_CHILD", 10000)),
			PWDSenior: int64(getEnvInt("ENTRANCE_FEE_PWD_SENIOR", 12000)),
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration разбирает значения вида "30m" или "90s"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
