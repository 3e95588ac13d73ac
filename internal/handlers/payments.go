package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "resort/internal/errors"
	"resort/internal/external"
	"resort/internal/logger"
	"resort/internal/models"

	"github.com/gin-gonic/gin"
)

// Payments handlers

// Quote - POST /api/quotes
// Prices a stay before the guest commits to paying.
func (h *Handlers) Quote(c *gin.Context) {
	var req models.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	quote, err := h.services.Quotes.Quote(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// InitiatePayment - POST /api/payments/initiate
func (h *Handlers) InitiatePayment(c *gin.Context) {
	var req models.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	response, err := h.services.Payments.Initiate(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// PaymentStatus - GET /api/payments/:intentId/status
// Pull-path reconciliation; never fails for "not yet paid".
func (h *Handlers) PaymentStatus(c *gin.Context) {
	response, err := h.services.Payments.Status(c.Request.Context(), c.Param("intentId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// maxWebhookBody caps the webhook payload read into memory.
const maxWebhookBody = 1 << 20

// PaymentWebhook - POST /api/payments/webhook
// Push-path reconciliation. The raw body is needed for the signature check.
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "webhook payload too large", "kind": apperrors.KindValidation})
			return
		}
		badRequest(c, err)
		return
	}

	header := c.GetHeader(external.WebhookSignatureHeader)
	if err := external.VerifyWebhookSignature(header, body, h.webhookSecret, h.now()); err != nil {
		logger.WithContext(c.Request.Context()).Warn("Rejected webhook", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "kind": apperrors.KindValidation})
		return
	}

	var payload models.PaymentWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		badRequest(c, errors.New("malformed webhook payload"))
		return
	}

	if err := h.services.Payments.HandleWebhook(c.Request.Context(), payload.EventType(), payload.IntentID()); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusOK)
}
