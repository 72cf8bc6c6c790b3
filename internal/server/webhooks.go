package server

import (
	"errors"
	"io"
	"net/http"

	mandatedomain "github.com/finvoice/recurpay/internal/mandate/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// BankMandateWebhook receives the payer-approval callback. The bank retries
// on non-2xx, so anything that a retry cannot fix is acknowledged with 200.
func (s *Server) BankMandateWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil || len(payload) == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.mandateSvc.HandleBankCallback(c.Request.Context(), payload)
	switch {
	case err == nil:
	case errors.Is(err, mandatedomain.ErrMandateNotFound):
		// Unknown merchantTranId; a redelivery will not change the outcome.
		s.log.Warn("bank callback for unknown transaction", zap.Int("payload_bytes", len(payload)))
	case errors.Is(err, mandatedomain.ErrInvalidCallback):
		AbortWithError(c, err)
		return
	default:
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
