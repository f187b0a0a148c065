// Package domain contains persistence models and the status state machine
// for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status represents invoice lifecycle states.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// ParseStatus validates a raw status value against the enumeration.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusDraft, StatusSent, StatusPaid, StatusOverdue:
		return Status(raw), true
	default:
		return "", false
	}
}

// Invoice represents a billable record with a monetary total and lifecycle
// status. Amounts are integer minor currency units throughout; floats never
// touch money.
type Invoice struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID      `gorm:"not null;index" json:"org_id"`
	Status      Status            `gorm:"type:text;not null;default:'draft'" json:"status"`
	AmountCents int64             `gorm:"column:amount_cents;not null;default:0" json:"amount_cents"`
	Currency    string            `gorm:"type:text;not null" json:"currency"`
	Revision    int64             `gorm:"not null;default:1" json:"revision"`
	Items       []InvoiceItem     `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID       snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	Description     string       `gorm:"type:text" json:"description"`
	Quantity        int64        `gorm:"not null" json:"quantity"`
	UnitAmountCents int64        `gorm:"column:unit_amount_cents;not null" json:"unit_amount_cents"`
	AmountCents     int64        `gorm:"column:amount_cents;not null" json:"amount_cents"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }
