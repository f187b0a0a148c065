package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/invoray/internal/auth"
	authdomain "github.com/smallbiznis/invoray/internal/auth/domain"
	"github.com/smallbiznis/invoray/internal/auth/session"
	"github.com/smallbiznis/invoray/internal/config"
	"github.com/smallbiznis/invoray/internal/event"
	eventdomain "github.com/smallbiznis/invoray/internal/event/domain"
	"github.com/smallbiznis/invoray/internal/invoice"
	invoicedomain "github.com/smallbiznis/invoray/internal/invoice/domain"
	"github.com/smallbiznis/invoray/internal/migration"
	"github.com/smallbiznis/invoray/internal/observability"
	obslogger "github.com/smallbiznis/invoray/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/invoray/internal/observability/metrics"
	obstracing "github.com/smallbiznis/invoray/internal/observability/tracing"
	"github.com/smallbiznis/invoray/internal/organization"
	organizationdomain "github.com/smallbiznis/invoray/internal/organization/domain"
	"github.com/smallbiznis/invoray/internal/payment"
	paymentdomain "github.com/smallbiznis/invoray/internal/payment/domain"
	"github.com/smallbiznis/invoray/internal/ratelimit"
	"github.com/smallbiznis/invoray/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	config.Module,
	observability.Module,
	db.Module,
	migration.Module,
	auth.Module,
	organization.Module,
	event.Module,
	invoice.Module,
	payment.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger, metrics *obsmetrics.Metrics, registry *prometheus.Registry) *gin.Engine {
	if !cfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log, obslogger.MiddlewareConfig{
		Debug:           cfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(cfg config.Config, log *zap.Logger, metrics *obsmetrics.Metrics, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(cfg, log, metrics, registry)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	genID           *snowflake.Node
	sessions        *session.Manager
	authSvc         authdomain.Service
	organizationSvc organizationdomain.Service
	invoiceSvc      invoicedomain.Service
	paymentSvc      paymentdomain.Service
	webhookSvc      paymentdomain.WebhookService
	eventSvc        eventdomain.Service
	paymentLimiter  *ratelimit.PaymentIntentLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	GenID           *snowflake.Node
	Sessions        *session.Manager
	AuthSvc         authdomain.Service
	OrganizationSvc organizationdomain.Service
	InvoiceSvc      invoicedomain.Service
	PaymentSvc      paymentdomain.Service
	WebhookSvc      paymentdomain.WebhookService
	EventSvc        eventdomain.Service
	PaymentLimiter  *ratelimit.PaymentIntentLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		genID:           p.GenID,
		sessions:        p.Sessions,
		authSvc:         p.AuthSvc,
		organizationSvc: p.OrganizationSvc,
		invoiceSvc:      p.InvoiceSvc,
		paymentSvc:      p.PaymentSvc,
		webhookSvc:      p.WebhookSvc,
		eventSvc:        p.EventSvc,
		paymentLimiter:  p.PaymentLimiter,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerPublicRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.Signup)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	api.POST("/orgs", s.CreateOrganization)
	api.GET("/orgs", s.ListOrganizations)
	api.POST("/orgs/:id/invites", s.InviteMember)
	api.POST("/invites/:id/accept", s.AcceptInvite)

	scoped := api.Group("", s.OrgContext())
	scoped.POST("/invoices", s.CreateInvoice)
	scoped.GET("/invoices", s.ListInvoices)
	scoped.GET("/invoices/:id", s.GetInvoiceByID)
	scoped.GET("/invoices/:id/events", s.ListInvoiceEvents)
	scoped.PATCH("/invoices/:id/status", s.UpdateInvoiceStatus)
	scoped.POST("/invoices/:id/payment-intent", s.PaymentIntentRateLimit(), s.CreatePaymentIntent)
	scoped.PUT("/billing/profile", s.UpsertBillingProfile)
	scoped.POST("/billing/portal", s.CreateBillingPortalSession)
}

func (s *Server) registerPublicRoutes() {
	events := s.engine.Group("/api/events", CORSAllowAll())
	events.POST("", s.IngestEvent)
	events.OPTIONS("", func(c *gin.Context) {})

	s.engine.POST("/api/payments/webhooks/:provider", s.IngestPaymentWebhook)
}
