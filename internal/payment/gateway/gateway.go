// Package gateway defines the payment provider abstraction and the
// provider registry.
package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoray/internal/payment/domain"
)

// CreateIntentRequest carries everything a provider needs to open a
// payment intent. Amounts are integer minor units.
type CreateIntentRequest struct {
	AmountCents    int64
	Currency       string
	OrgID          snowflake.ID
	InvoiceID      snowflake.ID
	IdempotencyKey string
}

// Intent is the provider's view of a created payment intent.
type Intent struct {
	ProviderPaymentID string
	ClientSecret      string
	Status            string
	AmountCents       int64
	Currency          string
}

// PortalRequest opens a hosted billing portal session for an existing
// gateway customer.
type PortalRequest struct {
	CustomerID string
	ReturnURL  string
}

type Gateway interface {
	Provider() string
	CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (Intent, error)
	CreatePortalSession(ctx context.Context, req PortalRequest) (domain.PortalSession, error)
	VerifyWebhook(payload []byte, headers http.Header) error
	ParseWebhook(payload []byte) (*domain.WebhookEvent, error)
}

type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	registry := &Registry{gateways: map[string]Gateway{}}
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(gw.Provider()))
		if provider == "" {
			continue
		}
		registry.gateways[provider] = gw
	}
	return registry
}

func (r *Registry) Lookup(provider string) (Gateway, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	gw, ok := r.gateways[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return gw, nil
}
