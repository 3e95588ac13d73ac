package handlers

import (
	"net/http"

	"resort/internal/models"

	"github.com/gin-gonic/gin"
)

// ListBlockedDates - GET /api/blocked-dates?accommodationId=
// Manual blackouts merged with ranges held by confirmed reservations.
func (h *Handlers) ListBlockedDates(c *gin.Context) {
	var accommodationID *string
	if id := c.Query("accommodationId"); id != "" {
		accommodationID = &id
	}

	ranges, err := h.services.BlockedRanges.List(c.Request.Context(), accommodationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ranges)
}

// CreateBlockedDate - POST /api/blocked-dates
func (h *Handlers) CreateBlockedDate(c *gin.Context) {
	var req models.CreateBlockedRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	br, err := h.services.BlockedRanges.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, br)
}

// DeleteBlockedDate - DELETE /api/blocked-dates/:id
func (h *Handlers) DeleteBlockedDate(c *gin.Context) {
	if err := h.services.BlockedRanges.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
