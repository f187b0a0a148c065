package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/invoray/internal/config"
	invoicedomain "github.com/smallbiznis/invoray/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/invoray/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/invoray/internal/organization/domain"
	"github.com/smallbiznis/invoray/internal/orgcontext"
	"github.com/smallbiznis/invoray/internal/payment/domain"
	"github.com/smallbiznis/invoray/internal/payment/gateway"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultProvider = "stripe"

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Gateways   *gateway.Registry
	InvoiceSvc invoicedomain.Service
	OrgSvc     orgdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	cfg        config.Config
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	gateways   *gateway.Registry
	invoiceSvc invoicedomain.Service
	orgSvc     orgdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		cfg:        p.Cfg,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		gateways:   p.Gateways,
		invoiceSvc: p.InvoiceSvc,
		orgSvc:     p.OrgSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// CreatePaymentIntent records the attempt before talking to the gateway,
// then promotes it to pending once the gateway accepts. A bookkeeping
// failure after the gateway call is logged, never surfaced: the intent
// exists and the webhook will reconcile the row.
func (s *Service) CreatePaymentIntent(ctx context.Context, invoiceID snowflake.ID) (*domain.PaymentIntent, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, invoicedomain.ErrNotFound
	}

	invoice, err := s.invoiceSvc.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != invoicedomain.StatusSent {
		return nil, domain.ErrInvalidState
	}

	provider := s.resolveProvider(ctx, orgID)
	gw, err := s.gateways.Lookup(provider)
	if err != nil {
		return nil, err
	}

	payment := domain.Payment{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		InvoiceID:      invoice.ID,
		Provider:       provider,
		Status:         domain.StatusInitiated,
		AmountCents:    invoice.AmountCents,
		Currency:       invoice.Currency,
		IdempotencyKey: ulid.Make().String(),
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, err
	}

	intent, err := gw.CreatePaymentIntent(ctx, gateway.CreateIntentRequest{
		AmountCents:    invoice.AmountCents,
		Currency:       invoice.Currency,
		OrgID:          orgID,
		InvoiceID:      invoice.ID,
		IdempotencyKey: payment.IdempotencyKey,
	})
	if err != nil {
		s.recordIntent(provider, "failed")
		if updateErr := s.repo.UpdateStatus(ctx, payment.ID, domain.StatusFailed); updateErr != nil {
			s.log.Warn("mark payment failed",
				zap.String("payment_id", payment.ID.String()),
				zap.Error(updateErr),
			)
		}
		return nil, err
	}

	if err := s.repo.MarkPending(ctx, payment.ID, intent.ProviderPaymentID); err != nil {
		s.log.Error("mark payment pending",
			zap.String("payment_id", payment.ID.String()),
			zap.String("provider_payment_id", intent.ProviderPaymentID),
			zap.Error(err),
		)
	}
	s.recordIntent(provider, "succeeded")

	return &domain.PaymentIntent{
		PaymentID:         payment.ID,
		Provider:          provider,
		ProviderPaymentID: intent.ProviderPaymentID,
		ClientSecret:      intent.ClientSecret,
		Status:            domain.StatusPending,
		AmountCents:       invoice.AmountCents,
		Currency:          invoice.Currency,
	}, nil
}

func (s *Service) CreatePortalSession(ctx context.Context, returnURL string) (*domain.PortalSession, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orgdomain.ErrNotFound
	}

	profile, err := s.orgSvc.GetBillingProfile(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if profile.ProviderCustomerID == "" {
		return nil, orgdomain.ErrBillingNotConfigured
	}

	gw, err := s.gateways.Lookup(profile.Provider)
	if err != nil {
		return nil, err
	}

	if returnURL == "" {
		returnURL = s.cfg.Stripe.PortalBaseURL
	}
	session, err := gw.CreatePortalSession(ctx, gateway.PortalRequest{
		CustomerID: profile.ProviderCustomerID,
		ReturnURL:  returnURL,
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Service) ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]domain.Payment, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, invoicedomain.ErrNotFound
	}
	return s.repo.ListByInvoice(ctx, orgID, invoiceID)
}

// resolveProvider prefers the org's billing profile provider and falls
// back to the platform default when billing is not configured.
func (s *Service) resolveProvider(ctx context.Context, orgID snowflake.ID) string {
	profile, err := s.orgSvc.GetBillingProfile(ctx, orgID)
	if err != nil {
		if !errors.Is(err, orgdomain.ErrBillingNotConfigured) {
			s.log.Warn("resolve billing profile", zap.Error(err))
		}
		return defaultProvider
	}
	if profile.Provider == "" {
		return defaultProvider
	}
	return profile.Provider
}

func (s *Service) recordIntent(provider, outcome string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordPaymentIntent(provider, outcome)
	}
}
