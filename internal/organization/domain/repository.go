package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type OrganizationListItem struct {
	ID        snowflake.ID `json:"id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	Role      string       `json:"role"`
	CreatedAt time.Time    `json:"created_at"`
}

type Repository interface {
	CreateOrganization(ctx context.Context, org Organization) error
	GetOrganization(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	AddMember(ctx context.Context, member OrganizationMember) error
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListItem, error)
	IsMember(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (bool, error)
	CreateInvite(ctx context.Context, invite OrganizationInvite) error
	GetInvite(ctx context.Context, inviteID snowflake.ID) (*OrganizationInvite, error)
	UpdateInvite(ctx context.Context, invite OrganizationInvite) error
	GetBillingProfile(ctx context.Context, orgID snowflake.ID) (*BillingProfile, error)
	UpsertBillingProfile(ctx context.Context, profile BillingProfile) error
}
