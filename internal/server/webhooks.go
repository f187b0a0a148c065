package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

func (s *Server) IngestPaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	if provider == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.webhookSvc.Ingest(c.Request.Context(), provider, payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
