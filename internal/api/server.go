package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"resort/internal/cache"
	"resort/internal/clock"
	"resort/internal/config"
	"resort/internal/database"
	"resort/internal/external"
	"resort/internal/handlers"
	"resort/internal/messaging"
	"resort/internal/middleware"
	"resort/internal/repository"
	"resort/internal/search"
	"resort/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	redis    *redis.Client
	calendar *cache.CalendarCache
	nats     *messaging.NATSClient
	search   *search.ElasticsearchClient
	services *service.Services
}

// NewServer connects every backing service and builds the router.
// Elasticsearch and the calendar cache are optional: when they are
// unavailable the API keeps serving without search or cached calendars.
func NewServer(cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	rdb, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		db.Close()
		return nil, err
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		rdb.Close()
		db.Close()
		return nil, err
	}

	s := &Server{
		config: cfg,
		db:     db,
		redis:  rdb,
		nats:   natsClient,
	}

	clk := clock.NewSystem()
	repos := repository.NewRepositories(db)
	deps := service.Deps{
		Tx:               db,
		Reservations:     repos.Reservations,
		Payments:         repos.Payments,
		Catalog:          repos.Catalog,
		BlockedRanges:    repos.BlockedRanges,
		Activities:       repos.Activities,
		TempBookings:     cache.NewTempBookingStore(rdb, clk),
		Gateway:          external.NewPaymentClient(cfg.Payment),
		Bus:              natsClient,
		Clock:            clk,
		EntranceFees:     cfg.EntranceFees,
		TempBookingTTL:   cfg.TempBookingTTL,
		PaymentReturnURL: cfg.Payment.ReturnURL,
	}

	// Interfaces are only assigned when the client exists so that the
	// services see a true nil rather than a typed nil pointer.
	if calendar, err := cache.NewCalendarCache(cfg.Calendar); err != nil {
		slog.Warn("Calendar cache disabled", "error", err)
	} else {
		s.calendar = calendar
		deps.Calendar = calendar
	}

	if esCfg := config.LoadElasticsearchConfig(); esCfg.Enabled() {
		es, err := search.NewElasticsearchClient(esCfg)
		if err != nil {
			slog.Warn("Reservation search disabled", "error", err)
		} else {
			s.search = es
			deps.Search = es
		}
	}

	s.services = service.NewServices(deps)

	s.router = gin.New()
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.Metrics())
	s.router.Use(middleware.Actor(cfg.JWTSecret))

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	handlers.NewHandlers(s.services, s.config.Payment.WebhookSecret).RegisterRoutes(api)

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	db := s.db.HealthCheck(ctx)
	status := http.StatusOK
	if db.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	redisStatus := "healthy"
	if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	searchStatus := "disabled"
	if s.search != nil {
		searchStatus = "healthy"
		if err := s.search.HealthCheck(ctx); err != nil {
			searchStatus = "degraded"
		}
	}

	c.JSON(status, gin.H{
		"status":   db.Status,
		"service":  "resort-api",
		"database": db,
		"redis":    redisStatus,
		"search":   searchStatus,
	})
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	if s.calendar != nil {
		s.calendar.Close()
	}

	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Error("Error closing Redis connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
