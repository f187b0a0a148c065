package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/invoray/internal/auth/domain"
	"github.com/smallbiznis/invoray/internal/auth/session"
	"github.com/smallbiznis/invoray/internal/config"
	invoicedomain "github.com/smallbiznis/invoray/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/invoray/internal/payment/domain"
	"go.uber.org/zap"
)

type fakeAuthService struct {
	authenticateCalls int
}

func (f *fakeAuthService) CreateUser(ctx context.Context, req authdomain.CreateUserRequest) (*authdomain.User, error) {
	_ = ctx
	_ = req
	return nil, authdomain.ErrUserExists
}

func (f *fakeAuthService) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	_ = ctx
	_ = req
	return nil, authdomain.ErrInvalidCredentials
}

func (f *fakeAuthService) Logout(ctx context.Context, rawToken string) error {
	_ = ctx
	_ = rawToken
	return nil
}

func (f *fakeAuthService) Authenticate(ctx context.Context, rawToken string) (*authdomain.Session, error) {
	f.authenticateCalls++
	_ = ctx
	_ = rawToken
	return nil, authdomain.ErrInvalidSession
}

func (f *fakeAuthService) GetUser(ctx context.Context, userID snowflake.ID) (*authdomain.User, error) {
	_ = ctx
	_ = userID
	return nil, authdomain.ErrUserNotFound
}

type fakeInvoiceService struct {
	calls int
}

func (f *fakeInvoiceService) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	f.calls++
	_ = ctx
	_ = req
	return nil, invoicedomain.ErrNotFound
}

func (f *fakeInvoiceService) GetByID(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	f.calls++
	_ = ctx
	_ = id
	return nil, invoicedomain.ErrNotFound
}

func (f *fakeInvoiceService) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	f.calls++
	_ = ctx
	_ = req
	return invoicedomain.ListInvoiceResponse{}, nil
}

func (f *fakeInvoiceService) UpdateStatus(ctx context.Context, id snowflake.ID, target invoicedomain.Status) (*invoicedomain.Invoice, error) {
	f.calls++
	_ = ctx
	_ = id
	_ = target
	return nil, invoicedomain.ErrNotFound
}

type fakePaymentService struct {
	calls int
}

func (f *fakePaymentService) CreatePaymentIntent(ctx context.Context, invoiceID snowflake.ID) (*paymentdomain.PaymentIntent, error) {
	f.calls++
	_ = ctx
	_ = invoiceID
	return nil, paymentdomain.ErrNotFound
}

func (f *fakePaymentService) CreatePortalSession(ctx context.Context, returnURL string) (*paymentdomain.PortalSession, error) {
	f.calls++
	_ = ctx
	_ = returnURL
	return nil, paymentdomain.ErrNotFound
}

func (f *fakePaymentService) ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]paymentdomain.Payment, error) {
	_ = ctx
	_ = invoiceID
	return nil, nil
}

func newTestServer() (*Server, *fakeAuthService, *fakeInvoiceService, *fakePaymentService) {
	gin.SetMode(gin.TestMode)

	authSvc := &fakeAuthService{}
	invoiceSvc := &fakeInvoiceService{}
	paymentSvc := &fakePaymentService{}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())

	srv := &Server{
		engine:     router,
		log:        zap.NewNop(),
		sessions:   session.NewManager(config.Config{}),
		authSvc:    authSvc,
		invoiceSvc: invoiceSvc,
		paymentSvc: paymentSvc,
	}
	srv.registerAPIRoutes()

	return srv, authSvc, invoiceSvc, paymentSvc
}

func TestUnauthenticatedRequestsReturn401(t *testing.T) {
	cases := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPatch, "/api/invoices/123/status", `{"status":"sent"}`},
		{http.MethodPost, "/api/invoices/123/payment-intent", ""},
		{http.MethodPost, "/api/billing/portal", `{"companyId":"123"}`},
	}

	for _, tc := range cases {
		srv, _, invoiceSvc, paymentSvc := newTestServer()

		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		resp := httptest.NewRecorder()
		srv.engine.ServeHTTP(resp, req)

		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected status 401, got %d", tc.method, tc.path, resp.Code)
		}
		if invoiceSvc.calls != 0 {
			t.Fatalf("%s %s: expected invoice service untouched, got %d calls", tc.method, tc.path, invoiceSvc.calls)
		}
		if paymentSvc.calls != 0 {
			t.Fatalf("%s %s: expected payment service untouched, got %d calls", tc.method, tc.path, paymentSvc.calls)
		}
	}
}

func TestInvalidSessionCookieReturns401(t *testing.T) {
	srv, authSvc, invoiceSvc, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPatch, "/api/invoices/123/status", strings.NewReader(`{"status":"sent"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: srv.sessions.CookieName(), Value: "expired-token"})
	resp := httptest.NewRecorder()
	srv.engine.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
	if authSvc.authenticateCalls != 1 {
		t.Fatalf("expected one authenticate call, got %d", authSvc.authenticateCalls)
	}
	if invoiceSvc.calls != 0 {
		t.Fatalf("expected invoice service untouched, got %d calls", invoiceSvc.calls)
	}
}
