package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/invoray/internal/organization/domain"
	"github.com/smallbiznis/invoray/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("organization.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) CreateOrganization(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	org := domain.Organization{
		ID:           s.genID.Generate(),
		Name:         name,
		Slug:         slug.Make(name),
		SupportEmail: strings.TrimSpace(req.SupportEmail),
		Metadata:     datatypes.JSONMap{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateOrganization(ctx, org); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Slug collision: disambiguate with the org id suffix.
			org.Slug = fmt.Sprintf("%s-%s", org.Slug, org.ID.String())
			if err := s.repo.CreateOrganization(ctx, org); err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	}

	member := domain.OrganizationMember{
		ID:        s.genID.Generate(),
		OrgID:     org.ID,
		UserID:    req.CreatorID,
		Role:      domain.RoleOwner,
		CreatedAt: now,
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("org_id", org.ID.String()),
		zap.String("slug", org.Slug),
	)

	return &org, nil
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	return s.repo.ListOrganizationsByUser(ctx, userID)
}

func (s *Service) IsMember(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (bool, error) {
	return s.repo.IsMember(ctx, orgID, userID)
}

func (s *Service) InviteMember(ctx context.Context, req domain.InviteMemberRequest) (*domain.OrganizationInvite, error) {
	if _, err := s.repo.GetOrganization(ctx, req.OrgID); err != nil {
		return nil, err
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = domain.RoleMember
	}

	invite := domain.OrganizationInvite{
		ID:        s.genID.Generate(),
		OrgID:     req.OrgID,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Role:      role,
		Status:    domain.InviteStatusPending,
		InvitedBy: req.InvitedBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateInvite(ctx, invite); err != nil {
		return nil, err
	}

	return &invite, nil
}

func (s *Service) AcceptInvite(ctx context.Context, inviteID snowflake.ID, userID snowflake.ID) error {
	invite, err := s.repo.GetInvite(ctx, inviteID)
	if err != nil {
		return err
	}
	if invite.Status == domain.InviteStatusAccepted {
		return domain.ErrInviteAlreadyAccepted
	}

	isMember, err := s.repo.IsMember(ctx, invite.OrgID, userID)
	if err != nil {
		return err
	}
	if isMember {
		return domain.ErrAlreadyMember
	}

	member := domain.OrganizationMember{
		ID:        s.genID.Generate(),
		OrgID:     invite.OrgID,
		UserID:    userID,
		Role:      invite.Role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		return err
	}

	invite.Status = domain.InviteStatusAccepted
	return s.repo.UpdateInvite(ctx, *invite)
}

func (s *Service) GetBillingProfile(ctx context.Context, orgID snowflake.ID) (*domain.BillingProfile, error) {
	return s.repo.GetBillingProfile(ctx, orgID)
}

func (s *Service) UpsertBillingProfile(ctx context.Context, req domain.UpsertBillingProfileRequest) (*domain.BillingProfile, error) {
	if _, err := s.repo.GetOrganization(ctx, req.OrgID); err != nil {
		return nil, err
	}

	customerID := strings.TrimSpace(req.ProviderCustomerID)
	if customerID == "" {
		return nil, domain.ErrInvalidProfile
	}
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = "stripe"
	}

	now := time.Now().UTC()
	profile := domain.BillingProfile{
		OrgID:              req.OrgID,
		Provider:           provider,
		ProviderCustomerID: customerID,
		Currency:           strings.ToUpper(strings.TrimSpace(req.Currency)),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.UpsertBillingProfile(ctx, profile); err != nil {
		return nil, err
	}

	s.log.Info("billing profile updated",
		zap.String("org_id", req.OrgID.String()),
		zap.String("provider", provider),
	)

	return &profile, nil
}
