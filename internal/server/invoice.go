package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/invoray/internal/invoice/domain"
	"github.com/smallbiznis/invoray/pkg/db/pagination"
)

type CreateInvoiceRequest struct {
	Currency string                     `json:"currency"`
	Items    []CreateInvoiceItemRequest `json:"items"`
}

type CreateInvoiceItemRequest struct {
	Description     string `json:"description"`
	Quantity        int64  `json:"quantity"`
	UnitAmountCents int64  `json:"unit_amount_cents"`
}

type UpdateInvoiceStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	items := make([]invoicedomain.CreateInvoiceItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, invoicedomain.CreateInvoiceItem{
			Description:     strings.TrimSpace(item.Description),
			Quantity:        item.Quantity,
			UnitAmountCents: item.UnitAmountCents,
		})
	}

	inv, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		Currency: strings.TrimSpace(req.Currency),
		Items:    items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": inv})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := invoicedomain.ListInvoiceRequest{Pagination: page}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, ok := invoicedomain.ParseStatus(raw)
		if !ok {
			AbortWithError(c, invoicedomain.ErrInvalidStatus)
			return
		}
		req.Status = &status
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices, "page_info": resp.PageInfo})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	inv, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": inv})
}

func (s *Server) UpdateInvoiceStatus(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req UpdateInvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	// The service validates the raw value against the status enum.
	inv, err := s.invoiceSvc.UpdateStatus(c.Request.Context(), id, invoicedomain.Status(strings.TrimSpace(req.Status)))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": inv})
}

func (s *Server) ListInvoiceEvents(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	// Scope check: the invoice must resolve under the caller's org.
	if _, err := s.invoiceSvc.GetByID(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	events, err := s.eventSvc.List(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}
