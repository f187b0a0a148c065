package service

import (
	"context"
	"errors"
	"net/http"

	invoicedomain "github.com/smallbiznis/invoray/internal/invoice/domain"
	"github.com/smallbiznis/invoray/internal/orgcontext"
	"github.com/smallbiznis/invoray/internal/payment/domain"
	"github.com/smallbiznis/invoray/internal/payment/gateway"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type WebhookParams struct {
	fx.In

	Log        *zap.Logger
	Repo       domain.Repository
	Gateways   *gateway.Registry
	InvoiceSvc invoicedomain.Service
}

type WebhookService struct {
	log        *zap.Logger
	repo       domain.Repository
	gateways   *gateway.Registry
	invoiceSvc invoicedomain.Service
}

func NewWebhookService(p WebhookParams) domain.WebhookService {
	return &WebhookService{
		log:        p.Log.Named("payment.webhook"),
		repo:       p.Repo,
		gateways:   p.Gateways,
		invoiceSvc: p.InvoiceSvc,
	}
}

// Ingest verifies and applies a gateway notification. Events the gateway
// does not recognize are acknowledged without effect so providers stop
// retrying them.
func (s *WebhookService) Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	gw, err := s.gateways.Lookup(provider)
	if err != nil {
		return err
	}
	if err := gw.VerifyWebhook(payload, headers); err != nil {
		return err
	}

	event, err := gw.ParseWebhook(payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			return nil
		}
		return err
	}

	switch event.Type {
	case domain.EventTypePaymentSucceeded:
		return s.applySucceeded(ctx, event)
	case domain.EventTypePaymentFailed:
		return s.applyFailed(ctx, event)
	default:
		return nil
	}
}

func (s *WebhookService) applySucceeded(ctx context.Context, event *domain.WebhookEvent) error {
	payment := s.resolvePayment(ctx, event)
	if payment != nil {
		if err := s.repo.UpdateStatus(ctx, payment.ID, domain.StatusSucceeded); err != nil {
			return err
		}
	}

	invoiceID := event.InvoiceID
	orgID := event.OrgID
	if payment != nil {
		invoiceID = &payment.InvoiceID
		orgID = payment.OrgID
	}
	if invoiceID == nil || orgID == 0 {
		s.log.Warn("webhook without invoice reference",
			zap.String("provider", event.Provider),
			zap.String("provider_event_id", event.ProviderEventID),
		)
		return nil
	}

	// Reuse the invoice status flow so the transition rules apply and
	// the paid lifecycle event is emitted exactly once.
	scoped := orgcontext.WithOrgID(ctx, orgID)
	if _, err := s.invoiceSvc.UpdateStatus(scoped, *invoiceID, invoicedomain.StatusPaid); err != nil {
		if errors.Is(err, invoicedomain.ErrConflict) || errors.Is(err, invoicedomain.ErrTransitionDenied) {
			s.log.Warn("webhook invoice status skipped",
				zap.String("invoice_id", invoiceID.String()),
				zap.Error(err),
			)
			return nil
		}
		return err
	}
	return nil
}

func (s *WebhookService) applyFailed(ctx context.Context, event *domain.WebhookEvent) error {
	payment := s.resolvePayment(ctx, event)
	if payment == nil {
		s.log.Warn("failed webhook without payment row",
			zap.String("provider", event.Provider),
			zap.String("provider_payment_id", event.ProviderPaymentID),
		)
		return nil
	}
	return s.repo.UpdateStatus(ctx, payment.ID, domain.StatusFailed)
}

func (s *WebhookService) resolvePayment(ctx context.Context, event *domain.WebhookEvent) *domain.Payment {
	if event.ProviderPaymentID == "" {
		return nil
	}
	payment, err := s.repo.GetByProviderPaymentID(ctx, event.Provider, event.ProviderPaymentID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("lookup payment by provider id", zap.Error(err))
		}
		return nil
	}
	return payment
}
