package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/invoray/internal/orgcontext"
	"go.uber.org/zap"
)

const HeaderOrg = "X-Org-ID"

// AuthRequired resolves the session cookie and stores the user id on the
// request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := orgcontext.WithUserID(c.Request.Context(), session.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OrgContext resolves X-Org-ID, checks the caller's membership and scopes
// the request context to the org. A missing or foreign org reads as not
// found rather than forbidden.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := orgcontext.UserIDFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))
		if raw == "" {
			AbortWithError(c, newValidationError("org_id", "invalid_org_id", "missing org header"))
			return
		}
		orgID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid org header"))
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

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// PaymentIntentRateLimit throttles payment intent creation per org.
func (s *Server) PaymentIntentRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.paymentLimiter.Enabled() {
			c.Next()
			return
		}
		orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		result, err := s.paymentLimiter.AllowOrg(c.Request.Context(), orgID.String())
		if err != nil {
			// Limiter outage must not block payments.
			s.log.Warn("payment intent rate limit check", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
				Type:    "rate_limited",
				Message: "too many payment intent requests",
			}})
			return
		}
		c.Next()
	}
}

// CORSAllowAll opens a route group to cross-origin callers. Only the
// event ingestion endpoint uses it.
func CORSAllowAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
