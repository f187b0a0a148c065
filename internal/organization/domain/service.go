package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListItem, error)
	IsMember(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (bool, error)
	InviteMember(ctx context.Context, req InviteMemberRequest) (*OrganizationInvite, error)
	AcceptInvite(ctx context.Context, inviteID snowflake.ID, userID snowflake.ID) error
	GetBillingProfile(ctx context.Context, orgID snowflake.ID) (*BillingProfile, error)
	UpsertBillingProfile(ctx context.Context, req UpsertBillingProfileRequest) (*BillingProfile, error)
}

type CreateOrganizationRequest struct {
	Name         string
	SupportEmail string
	CreatorID    snowflake.ID
}

type InviteMemberRequest struct {
	OrgID     snowflake.ID
	Email     string
	Role      string
	InvitedBy snowflake.ID
}

type UpsertBillingProfileRequest struct {
	OrgID              snowflake.ID
	Provider           string
	ProviderCustomerID string
	Currency           string
}

var (
	ErrNotFound              = errors.New("organization not found")
	ErrInviteNotFound        = errors.New("invite not found")
	ErrInviteAlreadyAccepted = errors.New("invite already accepted")
	ErrAlreadyMember         = errors.New("user already a member")
	ErrInvalidName           = errors.New("invalid organization name")
	ErrInvalidProfile        = errors.New("invalid billing profile")
	ErrBillingNotConfigured  = errors.New("billing not configured")
)
