package service

import (
	"context"
	"time"

	"resort/internal/clock"
	"resort/internal/models"
)

// TxRunner runs fn inside one storage transaction carried by ctx.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ReservationStore interface {
	LockAccommodation(ctx context.Context, accommodationID string) error
	HasConflict(ctx context.Context, accommodationID string, start, end time.Time, excludeCode string) (bool, error)
	Create(ctx context.Context, r *models.Reservation) error
	Update(ctx context.Context, r *models.Reservation) error
	GetByCode(ctx context.Context, code string) (*models.Reservation, error)
	// GetByCodeForUpdate locks the row until the transaction in ctx ends.
	GetByCodeForUpdate(ctx context.Context, code string) (*models.Reservation, error)
	List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error)
	Delete(ctx context.Context, code string) (bool, error)
	CancelStalePending(ctx context.Context, now time.Time) ([]string, error)
	CompleteElapsed(ctx context.Context, now time.Time) ([]string, error)
	ClaimDueReminders(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
	ListConfirmed(ctx context.Context, accommodationID *string) ([]models.Reservation, error)
}

type PaymentStore interface {
	InsertIfAbsent(ctx context.Context, payment *models.Payment) (bool, error)
	GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
}

type CatalogStore interface {
	GetAccommodation(ctx context.Context, id string) (*models.Accommodation, error)
	GetAmenitiesByIDs(ctx context.Context, ids []string) ([]models.Amenity, error)
}

type BlockedRangeStore interface {
	List(ctx context.Context, accommodationID *string) ([]models.BlockedDateRange, error)
	Create(ctx context.Context, br *models.BlockedDateRange) error
	Delete(ctx context.Context, id string) (bool, error)
}

type ActivityStore interface {
	Insert(ctx context.Context, event *models.ActivityEvent) error
	ListByReservation(ctx context.Context, code string) ([]models.ActivityEvent, error)
}

type TemporaryBookingStore interface {
	Put(ctx context.Context, booking *models.TemporaryBooking) error
	Get(ctx context.Context, intentID string) (*models.TemporaryBooking, error)
	Delete(ctx context.Context, intentID string) error
}

type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount int64, allowedMethods []string) (string, error)
	CreateMethod(ctx context.Context, methodType string, billing models.BillingInfo) (string, error)
	Attach(ctx context.Context, intentID, methodID, returnURL string) (*models.AttachResult, error)
	GetIntent(ctx context.Context, intentID string) (models.IntentStatus, error)
}

// Publisher is the event bus used for activity and notification fan-out.
type Publisher interface {
	Publish(subject string, data any) error
}

type SearchIndex interface {
	IndexReservation(ctx context.Context, r *models.Reservation) error
	DeleteReservation(ctx context.Context, code string) error
	Search(ctx context.Context, query string, page, pageSize int) ([]string, int, error)
}

// CalendarCache stores aggregated calendars per scope. Set takes the version
// returned by the Get that missed.
type CalendarCache interface {
	Get(ctx context.Context, scope string) ([]models.BlockedDateRange, int64, bool, error)
	Set(ctx context.Context, version int64, scope string, ranges []models.BlockedDateRange) error
	Invalidate(ctx context.Context) error
}

// Deps wires the services. Bus, Search and Calendar are optional.
type Deps struct {
	Tx            TxRunner
	Reservations  ReservationStore
	Payments      PaymentStore
	Catalog       CatalogStore
	BlockedRanges BlockedRangeStore
	Activities    ActivityStore
	TempBookings  TemporaryBookingStore
	Gateway       PaymentGateway
	Bus           Publisher
	Search        SearchIndex
	Calendar      CalendarCache
	Clock         clock.Clock

	EntranceFees     models.EntranceFees
	TempBookingTTL   time.Duration
	PaymentReturnURL string
}

type Services struct {
	Availability  *AvailabilityService
	Quotes        *QuoteService
	Reservations  *ReservationService
	Reschedules   *RescheduleService
	Payments      *PaymentService
	BlockedRanges *BlockedRangeService
	Sweeper       *SweeperService
	Reminders     *ReminderService
}

func NewServices(deps Deps) *Services {
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if deps.TempBookingTTL <= 0 {
		deps.TempBookingTTL = 30 * time.Minute
	}

	fx := &effects{
		activities: deps.Activities,
		bus:        deps.Bus,
		search:     deps.Search,
		calendar:   deps.Calendar,
		clock:      deps.Clock,
	}
	availability := NewAvailabilityService(deps.Reservations, deps.BlockedRanges)
	amenities := &amenityPricer{catalog: deps.Catalog}
	quotes := NewQuoteService(deps.Catalog, availability, amenities, deps.EntranceFees)
	reservations := NewReservationService(deps.Tx, deps.Reservations, deps.Catalog, deps.Activities, availability, amenities, fx, deps.Search, deps.Clock)

	return &Services{
		Availability:  availability,
		Quotes:        quotes,
		Reservations:  reservations,
		Reschedules:   NewRescheduleService(deps.Tx, deps.Reservations, availability, fx, deps.Clock),
		Payments:      NewPaymentService(deps.Payments, deps.TempBookings, deps.Gateway, quotes, reservations, deps.Clock, deps.TempBookingTTL, deps.PaymentReturnURL),
		BlockedRanges: NewBlockedRangeService(deps.BlockedRanges, deps.Reservations, deps.Catalog, deps.Calendar, deps.Clock),
		Sweeper:       NewSweeperService(deps.Reservations, fx, deps.Clock),
		Reminders:     NewReminderService(deps.Reservations, fx, deps.Clock),
	}
}
