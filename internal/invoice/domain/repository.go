package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type ListFilter struct {
	OrgID  snowflake.ID
	Status *Status
	// AfterID bounds cursor pagination; zero means first page.
	AfterID snowflake.ID
	Limit   int
}

type Repository interface {
	Create(ctx context.Context, invoice Invoice) error
	// GetByID fetches an invoice with its items, scoped to the org.
	GetByID(ctx context.Context, orgID snowflake.ID, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]*Invoice, error)
	// UpdateStatus applies a revision-conditional status write and reports
	// whether a row matched.
	UpdateStatus(ctx context.Context, id snowflake.ID, target Status, expectedRevision int64) (bool, error)
}
