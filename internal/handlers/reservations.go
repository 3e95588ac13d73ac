package handlers

import (
	"net/http"
	"strconv"

	"resort/internal/middleware"
	"resort/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateReservation - POST /api/reservations
// Staff and walk-in reservations, created without the payment flow.
func (h *Handlers) CreateReservation(c *gin.Context) {
	var req models.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	reservation, err := h.services.Reservations.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reservation)
}

// ListReservations - GET /api/reservations
func (h *Handlers) ListReservations(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	pageSize, ok := queryInt(c, "pageSize", 20)
	if !ok {
		return
	}
	from, ok := queryTime(c, "from")
	if !ok {
		return
	}
	to, ok := queryTime(c, "to")
	if !ok {
		return
	}

	filter := models.ReservationFilter{
		From:     from,
		To:       to,
		Page:     page,
		PageSize: pageSize,
	}
	if status := c.Query("status"); status != "" {
		s := models.ReservationStatus(status)
		filter.Status = &s
	}
	if accID := c.Query("accommodationId"); accID != "" {
		filter.AccommodationID = &accID
	}
	if walkIn := c.Query("walkIn"); walkIn != "" {
		v, err := strconv.ParseBool(walkIn)
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.WalkIn = &v
	}

	response, err := h.services.Reservations.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SearchReservations - GET /api/reservations/search?q=
func (h *Handlers) SearchReservations(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	pageSize, ok := queryInt(c, "pageSize", 20)
	if !ok {
		return
	}

	response, err := h.services.Reservations.Search(c.Request.Context(), c.Query("q"), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetReservation - GET /api/reservations/:code
func (h *Handlers) GetReservation(c *gin.Context) {
	reservation, err := h.services.Reservations.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

// UpdateReservation - PATCH /api/reservations/:code
func (h *Handlers) UpdateReservation(c *gin.Context) {
	var patch models.ReservationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}

	reservation, err := h.services.Reservations.Update(c.Request.Context(), c.Param("code"), &patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

// DeleteReservation - DELETE /api/reservations/:code
func (h *Handlers) DeleteReservation(c *gin.Context) {
	if err := h.services.Reservations.Delete(c.Request.Context(), c.Param("code")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UpdateAmenities - PUT /api/reservations/:code/amenities
func (h *Handlers) UpdateAmenities(c *gin.Context) {
	var req models.UpdateAmenitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	reservation, err := h.services.Reservations.UpdateAmenities(c.Request.Context(), c.Param("code"), req.Items)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

// RequestReschedule - POST /api/reservations/:code/reschedule
func (h *Handlers) RequestReschedule(c *gin.Context) {
	var req models.RescheduleRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	reservation, err := h.services.Reschedules.Request(c.Request.Context(), c.Param("code"),
		req.NewStartAt, req.NewEndAt, middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, reservation)
}

// DecideReschedule - POST /api/reservations/:code/reschedule/decision
func (h *Handlers) DecideReschedule(c *gin.Context) {
	var req models.RescheduleDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	reservation, err := h.services.Reschedules.Decide(c.Request.Context(), c.Param("code"),
		req.Action, req.Reason, middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

// ListActivity - GET /api/reservations/:code/activity
func (h *Handlers) ListActivity(c *gin.Context) {
	events, err := h.services.Reservations.Activity(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}
