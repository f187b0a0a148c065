package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/invoray/internal/config"
	eventrepo "github.com/smallbiznis/invoray/internal/event/repository"
	eventservice "github.com/smallbiznis/invoray/internal/event/service"
	invoicedomain "github.com/smallbiznis/invoray/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/invoray/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/invoray/internal/invoice/service"
	orgdomain "github.com/smallbiznis/invoray/internal/organization/domain"
	"github.com/smallbiznis/invoray/internal/orgcontext"
	paymentdomain "github.com/smallbiznis/invoray/internal/payment/domain"
	"github.com/smallbiznis/invoray/internal/payment/gateway"
	"github.com/smallbiznis/invoray/internal/payment/gateway/stripe"
	paymentrepo "github.com/smallbiznis/invoray/internal/payment/repository"
	paymentservice "github.com/smallbiznis/invoray/internal/payment/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixedBillingProfileOrgService struct {
	orgdomain.Service
	profile *orgdomain.BillingProfile
}

func (s fixedBillingProfileOrgService) GetBillingProfile(ctx context.Context, orgID snowflake.ID) (*orgdomain.BillingProfile, error) {
	if s.profile == nil {
		return nil, orgdomain.ErrBillingNotConfigured
	}
	return s.profile, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE invoices (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'draft',
			amount_cents BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL,
			revision BIGINT NOT NULL DEFAULT 1,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE invoice_items (
			id BIGINT PRIMARY KEY,
			invoice_id BIGINT NOT NULL,
			description TEXT,
			quantity BIGINT NOT NULL,
			unit_amount_cents BIGINT NOT NULL,
			amount_cents BIGINT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE payments (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			invoice_id BIGINT NOT NULL,
			provider TEXT NOT NULL,
			status TEXT NOT NULL,
			amount_cents BIGINT NOT NULL,
			currency TEXT NOT NULL,
			idempotency_key TEXT NOT NULL,
			provider_payment_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE events (
			id BIGINT PRIMARY KEY,
			type TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

type fixture struct {
	db           *gorm.DB
	invoiceSvc   invoicedomain.Service
	paymentSvc   paymentdomain.Service
	gatewayCalls *atomic.Int64
}

func newFixture(t *testing.T, profile *orgdomain.BillingProfile) *fixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(11)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	var calls atomic.Int64
	fakeStripe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "pi_test_123",
			"client_secret": "pi_test_123_secret",
			"status":        "requires_payment_method",
			"amount":        9500,
			"currency":      r.PostFormValue("currency"),
		})
	}))
	t.Cleanup(fakeStripe.Close)

	eventSvc := eventservice.NewService(eventservice.Params{
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  eventrepo.NewRepository(db),
	})
	invoiceSvc := invoiceservice.NewService(invoiceservice.Params{
		Cfg:      config.Config{},
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     invoicerepo.NewRepository(db),
		EventSvc: eventSvc,
	})

	stripeGW := stripe.New(stripe.Config{
		APIKey:        "sk_test_abc",
		WebhookSecret: "whsec_test",
		BaseURL:       fakeStripe.URL,
	})

	paymentSvc := paymentservice.NewService(paymentservice.Params{
		Cfg:        config.Config{},
		Log:        zap.NewNop(),
		GenID:      node,
		Repo:       paymentrepo.NewRepository(db),
		Gateways:   gateway.NewRegistry(stripeGW),
		InvoiceSvc: invoiceSvc,
		OrgSvc:     fixedBillingProfileOrgService{profile: profile},
	})

	return &fixture{
		db:           db,
		invoiceSvc:   invoiceSvc,
		paymentSvc:   paymentSvc,
		gatewayCalls: &calls,
	}
}

func orgContext(orgID snowflake.ID) context.Context {
	return orgcontext.WithOrgID(context.Background(), orgID)
}

func createSentInvoice(t *testing.T, f *fixture, ctx context.Context) *invoicedomain.Invoice {
	t.Helper()

	inv, err := f.invoiceSvc.Create(ctx, invoicedomain.CreateInvoiceRequest{
		Currency: "usd",
		Items: []invoicedomain.CreateInvoiceItem{
			{Description: "seats", Quantity: 3, UnitAmountCents: 1500},
			{Description: "support", Quantity: 1, UnitAmountCents: 5000},
		},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	sent, err := f.invoiceSvc.UpdateStatus(ctx, inv.ID, invoicedomain.StatusSent)
	if err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	return sent
}

func TestCreatePaymentIntentForSentInvoice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := orgContext(snowflake.ID(300))

	inv := createSentInvoice(t, f, ctx)

	intent, err := f.paymentSvc.CreatePaymentIntent(ctx, inv.ID)
	if err != nil {
		t.Fatalf("create payment intent: %v", err)
	}

	if intent.ClientSecret != "pi_test_123_secret" {
		t.Fatalf("unexpected client secret %q", intent.ClientSecret)
	}
	if intent.AmountCents != inv.AmountCents {
		t.Fatalf("expected amount %d, got %d", inv.AmountCents, intent.AmountCents)
	}
	if got := f.gatewayCalls.Load(); got != 1 {
		t.Fatalf("expected one gateway call, got %d", got)
	}

	var payment paymentdomain.Payment
	if err := f.db.Raw("SELECT * FROM payments WHERE invoice_id = ?", inv.ID).Scan(&payment).Error; err != nil {
		t.Fatalf("read payment: %v", err)
	}
	if payment.Status != paymentdomain.StatusPending {
		t.Fatalf("expected pending, got %s", payment.Status)
	}
	if payment.ProviderPaymentID != "pi_test_123" {
		t.Fatalf("expected provider payment id, got %q", payment.ProviderPaymentID)
	}
	if payment.AmountCents != inv.AmountCents {
		t.Fatalf("expected payment amount %d, got %d", inv.AmountCents, payment.AmountCents)
	}
	if payment.IdempotencyKey == "" {
		t.Fatal("expected idempotency key to be set")
	}
}

func TestCreatePaymentIntentRejectsNonSentInvoice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := orgContext(snowflake.ID(300))

	inv, err := f.invoiceSvc.Create(ctx, invoicedomain.CreateInvoiceRequest{
		Currency: "usd",
		Items:    []invoicedomain.CreateInvoiceItem{{Quantity: 1, UnitAmountCents: 1000}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	for _, status := range []invoicedomain.Status{
		invoicedomain.StatusDraft,
		invoicedomain.StatusPaid,
		invoicedomain.StatusOverdue,
	} {
		if status != invoicedomain.StatusDraft {
			if _, err := f.invoiceSvc.UpdateStatus(ctx, inv.ID, status); err != nil {
				t.Fatalf("set status %s: %v", status, err)
			}
		}

		_, err := f.paymentSvc.CreatePaymentIntent(ctx, inv.ID)
		if !errors.Is(err, paymentdomain.ErrInvalidState) {
			t.Fatalf("status %s: expected ErrInvalidState, got %v", status, err)
		}
	}

	if got := f.gatewayCalls.Load(); got != 0 {
		t.Fatalf("expected no gateway calls, got %d", got)
	}
	var count int64
	if err := f.db.Raw("SELECT COUNT(*) FROM payments").Scan(&count).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no payment rows, got %d", count)
	}
}

func TestCreatePaymentIntentScopedToOrg(t *testing.T) {
	f := newFixture(t, nil)

	inv := createSentInvoice(t, f, orgContext(snowflake.ID(300)))

	_, err := f.paymentSvc.CreatePaymentIntent(orgContext(snowflake.ID(400)), inv.ID)
	if !errors.Is(err, invoicedomain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign org, got %v", err)
	}
}

func TestCreatePaymentIntentGatewayFailureMarksPaymentFailed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := orgContext(snowflake.ID(300))

	inv := createSentInvoice(t, f, ctx)

	// Point the registry at a gateway whose server is already gone.
	deadServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadServer.Close()
	node, err := snowflake.NewNode(12)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	brokenSvc := paymentservice.NewService(paymentservice.Params{
		Cfg:   config.Config{},
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  paymentrepo.NewRepository(f.db),
		Gateways: gateway.NewRegistry(stripe.New(stripe.Config{
			APIKey:  "sk_test_abc",
			BaseURL: deadServer.URL,
		})),
		InvoiceSvc: f.invoiceSvc,
		OrgSvc:     fixedBillingProfileOrgService{},
	})

	_, err = brokenSvc.CreatePaymentIntent(ctx, inv.ID)
	if !errors.Is(err, paymentdomain.ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}

	var status string
	if err := f.db.Raw("SELECT status FROM payments WHERE invoice_id = ?", inv.ID).Scan(&status).Error; err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status != string(paymentdomain.StatusFailed) {
		t.Fatalf("expected failed payment row, got %s", status)
	}
}

func TestCreatePortalSessionRequiresBillingProfile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := orgContext(snowflake.ID(300))

	_, err := f.paymentSvc.CreatePortalSession(ctx, "")
	if !errors.Is(err, orgdomain.ErrBillingNotConfigured) {
		t.Fatalf("expected ErrBillingNotConfigured, got %v", err)
	}
}

func TestCreatePortalSessionReturnsURL(t *testing.T) {
	portal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/billing_portal/sessions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostFormValue("customer") != "cus_123" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":  "bps_test",
			"url": "https://billing.stripe.com/session/bps_test",
		})
	}))
	defer portal.Close()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(13)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	svc := paymentservice.NewService(paymentservice.Params{
		Cfg:   config.Config{},
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  paymentrepo.NewRepository(db),
		Gateways: gateway.NewRegistry(stripe.New(stripe.Config{
			APIKey:  "sk_test_abc",
			BaseURL: portal.URL,
		})),
		InvoiceSvc: nil,
		OrgSvc: fixedBillingProfileOrgService{profile: &orgdomain.BillingProfile{
			OrgID:              snowflake.ID(300),
			Provider:           "stripe",
			ProviderCustomerID: "cus_123",
			Currency:           "USD",
		}},
	})

	session, err := svc.CreatePortalSession(orgContext(snowflake.ID(300)), "https://app.example.com/billing")
	if err != nil {
		t.Fatalf("create portal session: %v", err)
	}
	if session.URL != "https://billing.stripe.com/session/bps_test" {
		t.Fatalf("unexpected portal url %q", session.URL)
	}
}
