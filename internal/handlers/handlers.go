package handlers

import (
	"net/http"
	"strconv"
	"time"

	apperrors "resort/internal/errors"
	"resort/internal/logger"
	"resort/internal/service"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	services      *service.Services
	webhookSecret string
	now           func() time.Time
}

func NewHandlers(services *service.Services, webhookSecret string) *Handlers {
	return &Handlers{
		services:      services,
		webhookSecret: webhookSecret,
		now:           time.Now,
	}
}

// RegisterRoutes mounts every API endpoint under api.
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/quotes", h.Quote)

	reservations := api.Group("/reservations")
	{
		reservations.POST("", h.CreateReservation)
		reservations.GET("", h.ListReservations)
		reservations.GET("/search", h.SearchReservations)
		reservations.GET("/:code", h.GetReservation)
		reservations.PATCH("/:code", h.UpdateReservation)
		reservations.DELETE("/:code", h.DeleteReservation)
		reservations.PUT("/:code/amenities", h.UpdateAmenities)
		reservations.POST("/:code/reschedule", h.RequestReschedule)
		reservations.POST("/:code/reschedule/decision", h.DecideReschedule)
		reservations.GET("/:code/activity", h.ListActivity)
	}

	payments := api.Group("/payments")
	{
		payments.POST("/initiate", h.InitiatePayment)
		payments.GET("/:intentId/status", h.PaymentStatus)
		payments.POST("/webhook", h.PaymentWebhook)
	}

	blocked := api.Group("/blocked-dates")
	{
		blocked.GET("", h.ListBlockedDates)
		blocked.POST("", h.CreateBlockedDate)
		blocked.DELETE("/:id", h.DeleteBlockedDate)
	}
}

// respondError maps a typed error to its status code. Internal failures are
// logged and answered with a generic message.
func respondError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperrors.KindValidation:
		status = http.StatusBadRequest
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindConflict:
		status = http.StatusConflict
	case apperrors.KindState:
		status = http.StatusUnprocessableEntity
	case apperrors.KindUpstream:
		status = http.StatusBadGateway
	}

	log := logger.WithContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "error", err, "path", c.FullPath())
		_ = c.Error(err)
	} else {
		log.Info("Request rejected", "error", err, "kind", kind)
	}

	c.JSON(status, gin.H{
		"error": apperrors.MessageOf(err),
		"kind":  kind,
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": err.Error(),
		"kind":  apperrors.KindValidation,
	})
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be an integer", "kind": apperrors.KindValidation})
		return 0, false
	}
	return v, true
}

func queryTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be an RFC 3339 timestamp", "kind": apperrors.KindValidation})
		return nil, false
	}
	return &t, true
}
