package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/invoray/internal/organization/domain"
	orgrepo "github.com/smallbiznis/invoray/internal/organization/repository"
	orgservice "github.com/smallbiznis/invoray/internal/organization/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE organizations (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			support_email TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE organization_members (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			role TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE (org_id, user_id)
		)`,
		`CREATE TABLE organization_invites (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			email TEXT NOT NULL,
			role TEXT NOT NULL,
			status TEXT NOT NULL,
			invited_by BIGINT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE org_billing_profiles (
			org_id BIGINT PRIMARY KEY,
			provider TEXT NOT NULL,
			provider_customer_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(16)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	svc := orgservice.NewService(orgservice.Params{
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  orgrepo.NewRepository(db),
	})
	return svc, db
}

func TestCreateOrganizationMakesCreatorOwner(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	creator := snowflake.ID(500)

	org, err := svc.CreateOrganization(ctx, domain.CreateOrganizationRequest{
		Name:      "Acme Rockets Ltd",
		CreatorID: creator,
	})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	if org.Slug != "acme-rockets-ltd" {
		t.Fatalf("unexpected slug %q", org.Slug)
	}

	member, err := svc.IsMember(ctx, org.ID, creator)
	if err != nil {
		t.Fatalf("is member: %v", err)
	}
	if !member {
		t.Fatal("expected creator to be a member")
	}

	items, err := svc.ListByUser(ctx, creator)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one org, got %d", len(items))
	}
	if items[0].Role != domain.RoleOwner {
		t.Fatalf("expected owner role, got %s", items[0].Role)
	}
}

func TestCreateOrganizationSlugCollision(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	first, err := svc.CreateOrganization(ctx, domain.CreateOrganizationRequest{
		Name:      "Acme",
		CreatorID: snowflake.ID(1),
	})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := svc.CreateOrganization(ctx, domain.CreateOrganizationRequest{
		Name:      "Acme",
		CreatorID: snowflake.ID(2),
	})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	if first.Slug == second.Slug {
		t.Fatalf("expected distinct slugs, both %q", first.Slug)
	}
}

func TestCreateOrganizationRejectsEmptyName(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateOrganization(context.Background(), domain.CreateOrganizationRequest{
		Name:      "   ",
		CreatorID: snowflake.ID(1),
	})
	if !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestInviteAndAccept(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := snowflake.ID(500)
	invitee := snowflake.ID(501)

	org, err := svc.CreateOrganization(ctx, domain.CreateOrganizationRequest{
		Name:      "Acme",
		CreatorID: owner,
	})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}

	invite, err := svc.InviteMember(ctx, domain.InviteMemberRequest{
		OrgID:     org.ID,
		Email:     "New.Member@Example.com",
		InvitedBy: owner,
	})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if invite.Email != "new.member@example.com" {
		t.Fatalf("expected normalized email, got %q", invite.Email)
	}
	if invite.Role != domain.RoleMember {
		t.Fatalf("expected default member role, got %s", invite.Role)
	}

	if err := svc.AcceptInvite(ctx, invite.ID, invitee); err != nil {
		t.Fatalf("accept: %v", err)
	}

	member, err := svc.IsMember(ctx, org.ID, invitee)
	if err != nil {
		t.Fatalf("is member: %v", err)
	}
	if !member {
		t.Fatal("expected invitee to be a member")
	}

	if err := svc.AcceptInvite(ctx, invite.ID, invitee); !errors.Is(err, domain.ErrInviteAlreadyAccepted) && !errors.Is(err, domain.ErrAlreadyMember) {
		t.Fatalf("expected repeat accept to fail, got %v", err)
	}
}

func TestGetBillingProfileNotConfigured(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	org, err := svc.CreateOrganization(ctx, domain.CreateOrganizationRequest{
		Name:      "Acme",
		CreatorID: snowflake.ID(1),
	})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}

	_, err = svc.GetBillingProfile(ctx, org.ID)
	if !errors.Is(err, domain.ErrBillingNotConfigured) {
		t.Fatalf("expected ErrBillingNotConfigured, got %v", err)
	}
}

func TestUpsertBillingProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	org, err := svc.CreateOrganization(ctx, domain.CreateOrganizationRequest{
		Name:      "Acme",
		CreatorID: snowflake.ID(1),
	})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}

	if _, err := svc.UpsertBillingProfile(ctx, domain.UpsertBillingProfileRequest{
		OrgID: org.ID,
	}); !errors.Is(err, domain.ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile without customer id, got %v", err)
	}

	if _, err := svc.UpsertBillingProfile(ctx, domain.UpsertBillingProfileRequest{
		OrgID:              org.ID,
		ProviderCustomerID: "cus_123",
		Currency:           "usd",
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	profile, err := svc.GetBillingProfile(ctx, org.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.Provider != "stripe" {
		t.Fatalf("expected default provider stripe, got %q", profile.Provider)
	}
	if profile.Currency != "USD" {
		t.Fatalf("expected normalized currency, got %q", profile.Currency)
	}

	// A second write for the same org replaces the profile.
	if _, err := svc.UpsertBillingProfile(ctx, domain.UpsertBillingProfileRequest{
		OrgID:              org.ID,
		ProviderCustomerID: "cus_456",
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	profile, err = svc.GetBillingProfile(ctx, org.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.ProviderCustomerID != "cus_456" {
		t.Fatalf("expected replaced customer id, got %q", profile.ProviderCustomerID)
	}
}
