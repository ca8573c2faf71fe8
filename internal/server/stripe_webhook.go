package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/guardbook/internal/observability/logger"
	"go.uber.org/zap"
)

// maxWebhookBodyBytes matches the provider's documented event size ceiling.
const maxWebhookBodyBytes = 64 << 10

const headerStripeSignature = "Stripe-Signature"

type webhookResponse struct {
	Received bool   `json:"received"`
	Handled  bool   `json:"handled"`
	Type     string `json:"type"`
}

// HandleStripeWebhook reads the raw body untouched; the signature covers the
// exact bytes, so the body must not be bound or re-encoded first.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, ErrPayloadTooLarge)
			return
		}
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	result, err := s.webhooks.Ingest(ctx, payload, c.GetHeader(headerStripeSignature))
	if result.Type != "" {
		c.Set("event_type", result.Type)
	}
	if err != nil {
		logger.WithContext(ctx, s.log).Debug("webhook not accepted", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, webhookResponse{
		Received: true,
		Handled:  result.Handled,
		Type:     result.Type,
	})
}
