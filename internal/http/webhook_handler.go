package http

import (
	"io"
	"log"
	"net/http"

	"github.com/clawdbot/platform/provisioning-service/internal/service"
	"github.com/gin-gonic/gin"
)

// WebhookHandler processes billing provider webhooks. The raw body must be
// read before any parsing: the signature covers the exact bytes sent.
type WebhookHandler struct {
	billingService *service.BillingService
}

func NewWebhookHandler(billingService *service.BillingService) *WebhookHandler {
	return &WebhookHandler{billingService: billingService}
}

// HandleStripeWebhook verifies and dispatches one billing event
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	event, err := h.billingService.VerifyWebhook(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Printf("[Webhook] Signature verification failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	if err := h.billingService.HandleEvent(c.Request.Context(), event); err != nil {
		log.Printf("[Webhook] Failed to handle event %s (%s): %v", event.ID, event.Type, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event handling failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
