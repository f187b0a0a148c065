package payment

import (
	"github.com/smallbiznis/invoray/internal/config"
	"github.com/smallbiznis/invoray/internal/payment/gateway"
	"github.com/smallbiznis/invoray/internal/payment/gateway/stripe"
	"github.com/smallbiznis/invoray/internal/payment/repository"
	"github.com/smallbiznis/invoray/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(newStripeGateway),
	fx.Provide(newRegistry),
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
	fx.Provide(service.NewWebhookService),
)

func newStripeGateway(cfg config.Config) *stripe.Gateway {
	return stripe.New(stripe.Config{
		APIKey:        cfg.Stripe.APIKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})
}

func newRegistry(stripeGW *stripe.Gateway) *gateway.Registry {
	return gateway.NewRegistry(stripeGW)
}
