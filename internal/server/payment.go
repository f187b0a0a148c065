package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/invoray/internal/orgcontext"
)

type BillingPortalRequest struct {
	CompanyID string `json:"companyId"`
	ReturnURL string `json:"returnUrl"`
}

func (s *Server) CreatePaymentIntent(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	intent, err := s.paymentSvc.CreatePaymentIntent(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"clientSecret":  intent.ClientSecret,
		"invoiceAmount": intent.AmountCents,
		"currency":      intent.Currency,
	})
}

func (s *Server) CreateBillingPortalSession(c *gin.Context) {
	var req BillingPortalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	companyID, err := snowflake.ParseString(strings.TrimSpace(req.CompanyID))
	if err != nil {
		AbortWithError(c, newValidationError("companyId", "invalid_company_id", "companyId is required"))
		return
	}

	// The body's company must match the org the request is scoped to.
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok || orgID != companyID {
		AbortWithError(c, ErrNotFound)
		return
	}

	session, err := s.paymentSvc.CreatePortalSession(c.Request.Context(), strings.TrimSpace(req.ReturnURL))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": session.URL})
}
