package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/invoray/internal/auth/domain"
	invoicedomain "github.com/smallbiznis/invoray/internal/invoice/domain"
	orgdomain "github.com/smallbiznis/invoray/internal/organization/domain"
	paymentdomain "github.com/smallbiznis/invoray/internal/payment/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, invoicedomain.ErrConflict),
		errors.Is(err, invoicedomain.ErrTransitionDenied),
		errors.Is(err, orgdomain.ErrAlreadyMember),
		errors.Is(err, orgdomain.ErrInviteAlreadyAccepted):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, paymentdomain.ErrGateway):
		return http.StatusBadGateway, errorPayload{
			Type:    "bad_gateway",
			Message: "payment gateway error",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, invoicedomain.ErrInvalidStatus),
		errors.Is(err, invoicedomain.ErrInvalidAmount),
		errors.Is(err, invoicedomain.ErrInvalidCurrency),
		errors.Is(err, invoicedomain.ErrNoItems),
		errors.Is(err, orgdomain.ErrInvalidName),
		errors.Is(err, orgdomain.ErrInvalidProfile),
		errors.Is(err, authdomain.ErrWeakPassword),
		errors.Is(err, paymentdomain.ErrInvalidState),
		errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrInvalidPayload):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, orgdomain.ErrNotFound),
		errors.Is(err, orgdomain.ErrInviteNotFound),
		errors.Is(err, orgdomain.ErrBillingNotConfigured),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, invoicedomain.ErrInvalidStatus):
		return "invalid_status"
	case errors.Is(err, invoicedomain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, invoicedomain.ErrInvalidCurrency):
		return "invalid_currency"
	case errors.Is(err, invoicedomain.ErrNoItems):
		return "invalid_items"
	case errors.Is(err, orgdomain.ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, orgdomain.ErrInvalidProfile):
		return "invalid_billing_profile"
	case errors.Is(err, authdomain.ErrWeakPassword):
		return "invalid_password"
	case errors.Is(err, paymentdomain.ErrInvalidState):
		return "invalid_invoice_state"
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, paymentdomain.ErrInvalidPayload):
		return "invalid_payload"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") && code != "invalid_request" {
		return strings.TrimPrefix(code, "invalid_")
	}
	if code == "invalid_request" {
		return "request"
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_invoice_state":
		return "invoice is not payable in its current status"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog maps an error to (type, code) for request log fields.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", code
	default:
		return "client_error", code
	}
}
