package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoray/internal/event/domain"
	obsmetrics "github.com/smallbiznis/invoray/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Handler reacts to a persisted lifecycle event. Handlers are extension
// points for notification dispatch; failures do not fail the emission.
type Handler func(ctx context.Context, event domain.Event) error

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
	handlers   map[string]Handler
}

func NewService(p Params) domain.Service {
	s := &Service{
		log:        p.Log.Named("event.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}

	// Registered tags currently only log; notification delivery hooks in here.
	s.handlers = map[string]Handler{
		domain.TypeInvoiceCreated: s.logOnly,
		domain.TypeInvoiceSent:    s.logOnly,
		domain.TypeInvoicePaid:    s.logOnly,
		domain.TypeInvoiceOverdue: s.logOnly,
	}

	return s
}

// Emit appends an event row and runs the handler registered for its type.
// Unknown types are accepted and persisted without a handler.
func (s *Service) Emit(ctx context.Context, eventType string, invoiceID snowflake.ID) error {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return domain.ErrInvalidType
	}

	event := domain.Event{
		ID:   s.genID.Generate(),
		Type: eventType,
		Payload: datatypes.JSONMap{
			"invoice_id": invoiceID.String(),
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Append(ctx, event); err != nil {
		return err
	}

	s.obsMetrics.RecordLifecycleEvent(eventType)

	handler, ok := s.handlers[eventType]
	if !ok {
		s.log.Info("event persisted without handler",
			zap.String("type", eventType),
			zap.String("invoice_id", invoiceID.String()),
		)
		return nil
	}

	if err := handler(ctx, event); err != nil {
		s.log.Warn("event handler failed",
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Service) List(ctx context.Context, invoiceID snowflake.ID) ([]domain.Event, error) {
	return s.repo.ListByInvoice(ctx, invoiceID)
}

func (s *Service) logOnly(ctx context.Context, event domain.Event) error {
	s.log.Info("lifecycle event",
		zap.String("type", event.Type),
		zap.Any("payload", map[string]any(event.Payload)),
	)
	return nil
}
