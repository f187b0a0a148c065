package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoray/internal/invoice/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, invoice domain.Invoice) error {
	return r.db.WithContext(ctx).Create(&invoice).Error
}

func (r *repository) GetByID(ctx context.Context, orgID snowflake.ID, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND org_id = ?", id, orgID).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Invoice, error) {
	query := r.db.WithContext(ctx).
		Where("org_id = ?", filter.OrgID).
		Order("id DESC")

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.AfterID != 0 {
		query = query.Where("id < ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		// One extra row so the caller can detect another page.
		query = query.Limit(filter.Limit + 1)
	}

	var invoices []*domain.Invoice
	if err := query.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id snowflake.ID, target domain.Status, expectedRevision int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ? AND revision = ?", id, expectedRevision).
		Updates(map[string]any{
			"status":     target,
			"revision":   expectedRevision + 1,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
