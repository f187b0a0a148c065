package domain

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// CreatePaymentIntent creates a gateway payment intent for a sent
	// invoice and records the attempt.
	CreatePaymentIntent(ctx context.Context, invoiceID snowflake.ID) (*PaymentIntent, error)
	// CreatePortalSession opens a hosted billing portal session for the
	// org's gateway customer. An empty returnURL falls back to the
	// configured default.
	CreatePortalSession(ctx context.Context, returnURL string) (*PortalSession, error)
	ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]Payment, error)
}

// WebhookService ingests asynchronous gateway notifications.
type WebhookService interface {
	Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

var (
	ErrInvalidState     = errors.New("invoice not payable in current status")
	ErrNotFound         = errors.New("payment not found")
	ErrProviderNotFound = errors.New("payment provider not found")
	ErrInvalidConfig    = errors.New("invalid gateway config")
	ErrGateway          = errors.New("gateway request failed")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrEventIgnored     = errors.New("webhook event ignored")
)
