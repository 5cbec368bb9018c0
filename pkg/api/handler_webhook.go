package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/responder/pkg/pagerduty"
)

// pagerDutyWebhookHandler handles POST /webhooks/pagerduty.
// Parsable content always gets 200 with a status token; a bad signature is
// 401 and storage failures are 500 so the sender retries.
func (s *Server) pagerDutyWebhookHandler(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, newHTTPError(http.StatusRequestEntityTooLarge, "payload too large"))
			return
		}
		abortWithError(c, newHTTPError(http.StatusBadRequest, "failed to read body"))
		return
	}

	if s.webhookSecret != "" {
		if err := pagerduty.VerifySignature(s.webhookSecret, body, c.GetHeader(pagerduty.SignatureHeader)); err != nil {
			slog.Warn("Rejected webhook with invalid signature", "remote_addr", c.ClientIP())
			abortWithError(c, newHTTPError(http.StatusUnauthorized, "invalid signature"))
			return
		}
	}

	out, err := s.ingest.Ingest(c.Request.Context(), body)
	if err != nil {
		slog.Error("Failed to ingest webhook", "error", err)
		abortWithError(c, newHTTPError(http.StatusInternalServerError, "failed to process webhook"))
		return
	}
	c.JSON(http.StatusOK, out)
}
