package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	orgdomain "github.com/smallbiznis/invoray/internal/organization/domain"
	"github.com/smallbiznis/invoray/internal/orgcontext"
)

type CreateOrganizationRequest struct {
	Name         string `json:"name"`
	SupportEmail string `json:"support_email"`
}

type InviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type UpsertBillingProfileRequest struct {
	Provider           string `json:"provider"`
	ProviderCustomerID string `json:"provider_customer_id"`
	Currency           string `json:"currency"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	userID, ok := orgcontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.organizationSvc.CreateOrganization(c.Request.Context(), orgdomain.CreateOrganizationRequest{
		Name:         strings.TrimSpace(req.Name),
		SupportEmail: strings.TrimSpace(req.SupportEmail),
		CreatorID:    userID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": org})
}

func (s *Server) ListOrganizations(c *gin.Context) {
	userID, ok := orgcontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgs, err := s.organizationSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orgs})
}

func (s *Server) InviteMember(c *gin.Context) {
	userID, ok := orgcontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	member, err := s.organizationSvc.IsMember(c.Request.Context(), orgID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !member {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req InviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invite, err := s.organizationSvc.InviteMember(c.Request.Context(), orgdomain.InviteMemberRequest{
		OrgID:     orgID,
		Email:     strings.TrimSpace(req.Email),
		Role:      strings.TrimSpace(req.Role),
		InvitedBy: userID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": invite})
}

func (s *Server) AcceptInvite(c *gin.Context) {
	userID, ok := orgcontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	inviteID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	if err := s.organizationSvc.AcceptInvite(c.Request.Context(), inviteID, userID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) UpsertBillingProfile(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req UpsertBillingProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	profile, err := s.organizationSvc.UpsertBillingProfile(c.Request.Context(), orgdomain.UpsertBillingProfileRequest{
		OrgID:              orgID,
		Provider:           strings.TrimSpace(req.Provider),
		ProviderCustomerID: strings.TrimSpace(req.ProviderCustomerID),
		Currency:           strings.TrimSpace(req.Currency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": profile})
}
