package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type IngestEventRequest struct {
	Type      string `json:"type"`
	InvoiceID string `json:"invoice_id"`
}

// IngestEvent accepts lifecycle event tags from internal triggers. Any
// tag is persisted; a failed insert is the only error path.
func (s *Server) IngestEvent(c *gin.Context) {
	var req IngestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	eventType := strings.TrimSpace(req.Type)
	if eventType == "" {
		AbortWithError(c, newValidationError("type", "invalid_type", "missing event type"))
		return
	}
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(req.InvoiceID))
	if err != nil {
		AbortWithError(c, newValidationError("invoice_id", "invalid_invoice_id", "invalid invoice id"))
		return
	}

	if err := s.eventSvc.Emit(c.Request.Context(), eventType, invoiceID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
