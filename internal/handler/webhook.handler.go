package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/infrastructure/payment"
)

const maxWebhookBody = 1 << 20

// paymentWebhook verifies the signature over the exact bytes received, so the
// body is read raw rather than bound.
func (s *Server) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		abortWithError(c, &domain.ValidationError{Field: "body", Reason: "could not be read"})
		return
	}

	outcome, err := s.deps.Webhooks.HandleEvent(c.Request.Context(), body, c.GetHeader(payment.SignatureHeader))
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.logger.Debug("webhook handled", zap.String("outcome", string(outcome)))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
