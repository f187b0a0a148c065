package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, payment Payment) error
	GetByID(ctx context.Context, id snowflake.ID) (*Payment, error)
	GetByProviderPaymentID(ctx context.Context, provider string, providerPaymentID string) (*Payment, error)
	ListByInvoice(ctx context.Context, orgID snowflake.ID, invoiceID snowflake.ID) ([]Payment, error)
	// MarkPending attaches the gateway intent id to an initiated attempt.
	MarkPending(ctx context.Context, id snowflake.ID, providerPaymentID string) error
	UpdateStatus(ctx context.Context, id snowflake.ID, status Status) error
}
