// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant.
type Organization struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name         string            `gorm:"type:text;not null" json:"name"`
	Slug         string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	SupportEmail string            `gorm:"type:text;column:support_email" json:"support_email"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// OrganizationMember represents membership of a user in an organization.
type OrganizationMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:1" json:"org_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:2" json:"user_id"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// OrganizationInvite tracks a pending invite to an organization.
type OrganizationInvite struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	Email     string       `gorm:"type:text;not null" json:"email"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	Status    string       `gorm:"type:text;not null" json:"status"`
	InvitedBy snowflake.ID `gorm:"column:invited_by;not null;index" json:"invited_by"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationInvite) TableName() string { return "organization_invites" }

const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
)

// BillingProfile stores the gateway billing identity for an organization.
// An organization without a profile has no billing set up yet.
type BillingProfile struct {
	OrgID              snowflake.ID `gorm:"primaryKey" json:"org_id"`
	Provider           string       `gorm:"type:text;not null" json:"provider"`
	ProviderCustomerID string       `gorm:"column:provider_customer_id;type:text;not null" json:"provider_customer_id"`
	Currency           string       `gorm:"type:text;not null" json:"currency"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BillingProfile) TableName() string { return "org_billing_profiles" }
