package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoray/internal/organization/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Create(&org).Error
}

func (r *repository) GetOrganization(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Where("id = ?", orgID).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *repository) AddMember(ctx context.Context, member domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Create(&member).Error
}

func (r *repository) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	var items []domain.OrganizationListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.slug, m.role, o.created_at
		 FROM organizations o
		 JOIN organization_members m ON m.org_id = o.id
		 WHERE m.user_id = ?
		 ORDER BY o.created_at ASC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *repository) IsMember(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.OrganizationMember{}).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateInvite(ctx context.Context, invite domain.OrganizationInvite) error {
	return r.db.WithContext(ctx).Create(&invite).Error
}

func (r *repository) GetInvite(ctx context.Context, inviteID snowflake.ID) (*domain.OrganizationInvite, error) {
	var invite domain.OrganizationInvite
	err := r.db.WithContext(ctx).Where("id = ?", inviteID).First(&invite).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, err
	}
	return &invite, nil
}

func (r *repository) UpdateInvite(ctx context.Context, invite domain.OrganizationInvite) error {
	return r.db.WithContext(ctx).
		Model(&domain.OrganizationInvite{}).
		Where("id = ?", invite.ID).
		Updates(map[string]any{"status": invite.Status}).Error
}

func (r *repository) GetBillingProfile(ctx context.Context, orgID snowflake.ID) (*domain.BillingProfile, error) {
	var profile domain.BillingProfile
	err := r.db.WithContext(ctx).Where("org_id = ?", orgID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBillingNotConfigured
		}
		return nil, err
	}
	return &profile, nil
}

func (r *repository) UpsertBillingProfile(ctx context.Context, profile domain.BillingProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"provider", "provider_customer_id", "currency", "updated_at"}),
		}).
		Create(&profile).Error
}
