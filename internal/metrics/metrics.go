package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resort_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "resort_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ReservationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resort_reservations_created_total",
		Help: "Reservations created, by source (staff or payment).",
	}, []string{"source"})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resort_payment_reconciliations_total",
		Help: "Payment reconciliation outcomes by path (push or pull).",
	}, []string{"path", "outcome"})

	SweeperTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resort_sweeper_transitions_total",
		Help: "Reservations moved by the status sweeper.",
	}, []string{"to"})

	RemindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resort_reminders_sent_total",
		Help: "Reservation reminders claimed and queued.",
	})

	NotificationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resort_notifications_delivered_total",
		Help: "Notification deliveries by channel and result.",
	}, []string{"channel", "result"})
)
