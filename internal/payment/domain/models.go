// Package domain contains payment bookkeeping models and the gateway
// webhook event shape.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status tracks a payment attempt through the gateway round trip.
type Status string

const (
	// StatusInitiated is recorded before the gateway is called.
	StatusInitiated Status = "initiated"
	// StatusPending means the gateway accepted the intent and we are
	// waiting on a webhook.
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Payment is one attempt to collect an invoice through a gateway. A new
// row is inserted per attempt; rows are only ever moved forward in status.
type Payment struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID             snowflake.ID `gorm:"not null;index" json:"org_id"`
	InvoiceID         snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	Provider          string       `gorm:"type:text;not null" json:"provider"`
	Status            Status       `gorm:"type:text;not null" json:"status"`
	AmountCents       int64        `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Currency          string       `gorm:"type:text;not null" json:"currency"`
	IdempotencyKey    string       `gorm:"type:text;not null;uniqueIndex" json:"idempotency_key"`
	ProviderPaymentID string       `gorm:"type:text;index" json:"provider_payment_id"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// PaymentIntent is what handlers return to the client after a gateway
// intent has been created. The client secret is never persisted.
type PaymentIntent struct {
	PaymentID         snowflake.ID `json:"payment_id"`
	Provider          string       `json:"provider"`
	ProviderPaymentID string       `json:"provider_payment_id"`
	ClientSecret      string       `json:"client_secret"`
	Status            Status       `json:"status"`
	AmountCents       int64        `json:"amount_cents"`
	Currency          string       `json:"currency"`
}

// PortalSession is a short-lived hosted billing portal URL.
type PortalSession struct {
	URL string `json:"url"`
}

// WebhookEventType classifies a parsed gateway notification.
type WebhookEventType string

const (
	EventTypePaymentSucceeded WebhookEventType = "payment_succeeded"
	EventTypePaymentFailed    WebhookEventType = "payment_failed"
)

// WebhookEvent is the provider-neutral form of a gateway notification.
type WebhookEvent struct {
	Provider          string
	ProviderEventID   string
	ProviderPaymentID string
	Type              WebhookEventType
	OrgID             snowflake.ID
	InvoiceID         *snowflake.ID
	AmountCents       int64
	Currency          string
	OccurredAt        time.Time
	RawPayload        []byte
}
