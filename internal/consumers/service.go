package consumers

import (
	"context"
	"log/slog"

	"resort/internal/cache"
	"resort/internal/clock"
	"resort/internal/config"
	"resort/internal/database"
	"resort/internal/external"
	"resort/internal/messaging"
	"resort/internal/models"
	"resort/internal/repository"
	"resort/internal/search"
	"resort/internal/service"

	"github.com/nats-io/stan.go"
)

const queueGroup = "consumers"

// ConsumerService hosts the asynchronous side of the system: notification
// delivery and the services backing the periodic jobs.
type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	calendar *cache.CalendarCache
	search   *search.ElasticsearchClient
	repos    *repository.Repositories
	services *service.Services
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	cs := &ConsumerService{
		db:    db,
		nats:  natsClient,
		repos: repository.NewRepositories(db),
	}

	deps := service.Deps{
		Tx:            db,
		Reservations:  cs.repos.Reservations,
		Payments:      cs.repos.Payments,
		Catalog:       cs.repos.Catalog,
		BlockedRanges: cs.repos.BlockedRanges,
		Activities:    cs.repos.Activities,
		Bus:           natsClient,
		Clock:         clock.NewSystem(),
		EntranceFees:  cfg.EntranceFees,
	}

	if calendar, err := cache.NewCalendarCache(cfg.Calendar); err != nil {
		slog.Warn("Calendar cache disabled", "error", err)
	} else {
		cs.calendar = calendar
		deps.Calendar = calendar
	}

	if esCfg := config.LoadElasticsearchConfig(); esCfg.Enabled() {
		es, err := search.NewElasticsearchClient(esCfg)
		if err != nil {
			slog.Warn("Reservation search disabled", "error", err)
		} else {
			cs.search = es
			deps.Search = es
		}
	}

	cs.services = service.NewServices(deps)
	cs.handlers = NewHandlers(external.NewMailClient(cfg.Mail), external.NewSMSClient(cfg.SMS))

	return cs, nil
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	if err := cs.Subscribe(models.SubjectNotificationRequest, cs.handlers.HandleNotificationRequested); err != nil {
		return err
	}

	slog.Info("All consumers started successfully")
	return nil
}

// Subscribe joins the consumers queue group on subject with manual acks.
func (cs *ConsumerService) Subscribe(subject string, handler stan.MsgHandler) error {
	sub, err := cs.nats.SubscribeQueue(subject, queueGroup, handler)
	if err != nil {
		return err
	}
	cs.subs = append(cs.subs, sub)
	return nil
}

func (cs *ConsumerService) Services() *service.Services {
	return cs.services
}

func (cs *ConsumerService) Reservations() *repository.ReservationRepository {
	return cs.repos.Reservations
}

// Search returns nil when Elasticsearch is not configured.
func (cs *ConsumerService) Search() *search.ElasticsearchClient {
	return cs.search
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	// Close rather than Unsubscribe keeps the durable position.
	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.calendar != nil {
		cs.calendar.Close()
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
