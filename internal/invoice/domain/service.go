package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoray/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, target Status) (*Invoice, error)
}

type CreateInvoiceRequest struct {
	Currency string
	Items    []CreateInvoiceItem
}

type CreateInvoiceItem struct {
	Description     string
	Quantity        int64
	UnitAmountCents int64
}

type ListInvoiceRequest struct {
	Status *Status
	pagination.Pagination
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

var (
	ErrNotFound         = errors.New("invoice not found")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrTransitionDenied = errors.New("status transition not allowed")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrNoItems          = errors.New("invoice requires at least one item")
	ErrConflict         = errors.New("invoice revision conflict")
)
