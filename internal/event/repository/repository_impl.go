package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoray/internal/event/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Append(ctx context.Context, event domain.Event) error {
	return r.db.WithContext(ctx).Create(&event).Error
}

func (r *repository) ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]domain.Event, error) {
	var events []domain.Event
	err := r.db.WithContext(ctx).
		Where("payload ->> 'invoice_id' = ?", invoiceID.String()).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
