package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoray/internal/payment/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, payment domain.Payment) error {
	return r.db.WithContext(ctx).Create(&payment).Error
}

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) GetByProviderPaymentID(ctx context.Context, provider string, providerPaymentID string) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_payment_id = ?", provider, providerPaymentID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByInvoice(ctx context.Context, orgID snowflake.ID, invoiceID snowflake.ID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND invoice_id = ?", orgID, invoiceID).
		Order("id DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) MarkPending(ctx context.Context, id snowflake.ID, providerPaymentID string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":              domain.StatusPending,
			"provider_payment_id": providerPaymentID,
			"updated_at":          time.Now().UTC(),
		}).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id snowflake.ID, status domain.Status) error {
	return r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}
