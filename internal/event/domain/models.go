// Package domain contains the append-only lifecycle event log.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Event is an append-only record of an invoice lifecycle transition.
// Rows are never updated or deleted.
type Event struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Type      string            `gorm:"type:text;not null;index" json:"type"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"payload"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "events" }

// Lifecycle event types with registered handlers. Unknown types are still
// persisted; they simply have no handler.
const (
	TypeInvoiceCreated = "invoice.created"
	TypeInvoiceSent    = "invoice.sent"
	TypeInvoicePaid    = "invoice.paid"
	TypeInvoiceOverdue = "invoice.overdue"
)

type Service interface {
	Emit(ctx context.Context, eventType string, invoiceID snowflake.ID) error
	List(ctx context.Context, invoiceID snowflake.ID) ([]Event, error)
}

type Repository interface {
	Append(ctx context.Context, event Event) error
	ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]Event, error)
}

var (
	ErrInvalidType = errors.New("invalid event type")
)
