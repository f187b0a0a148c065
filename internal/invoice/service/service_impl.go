package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoray/internal/config"
	eventdomain "github.com/smallbiznis/invoray/internal/event/domain"
	invoicedomain "github.com/smallbiznis/invoray/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/invoray/internal/observability/metrics"
	"github.com/smallbiznis/invoray/internal/orgcontext"
	"github.com/smallbiznis/invoray/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       invoicedomain.Repository
	EventSvc   eventdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	genID       *snowflake.Node
	repo        invoicedomain.Repository
	eventSvc    eventdomain.Service
	obsMetrics  *obsmetrics.Metrics
	transitions invoicedomain.TransitionGraph
}

func NewService(p Params) invoicedomain.Service {
	transitions := invoicedomain.PermissiveTransitions()
	if p.Cfg.EnforceInvoiceTransitions {
		transitions = invoicedomain.StrictTransitions()
	}

	return &Service{
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		eventSvc:    p.EventSvc,
		obsMetrics:  p.ObsMetrics,
		transitions: transitions,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, invoicedomain.ErrNotFound
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(currency) != 3 {
		return nil, invoicedomain.ErrInvalidCurrency
	}
	if len(req.Items) == 0 {
		return nil, invoicedomain.ErrNoItems
	}

	now := time.Now().UTC()
	invoiceID := s.genID.Generate()

	var total int64
	items := make([]invoicedomain.InvoiceItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.UnitAmountCents < 0 {
			return nil, invoicedomain.ErrInvalidAmount
		}
		amount := item.Quantity * item.UnitAmountCents
		if item.UnitAmountCents != 0 && amount/item.UnitAmountCents != item.Quantity {
			return nil, invoicedomain.ErrInvalidAmount
		}
		total += amount
		if total < 0 {
			return nil, invoicedomain.ErrInvalidAmount
		}
		items = append(items, invoicedomain.InvoiceItem{
			ID:              s.genID.Generate(),
			InvoiceID:       invoiceID,
			Description:     strings.TrimSpace(item.Description),
			Quantity:        item.Quantity,
			UnitAmountCents: item.UnitAmountCents,
			AmountCents:     amount,
			CreatedAt:       now,
		})
	}

	invoice := invoicedomain.Invoice{
		ID:          invoiceID,
		OrgID:       orgID,
		Status:      invoicedomain.StatusDraft,
		AmountCents: total,
		Currency:    currency,
		Revision:    1,
		Metadata:    datatypes.JSONMap{},
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, err
	}

	s.emit(ctx, eventdomain.TypeInvoiceCreated, invoiceID)

	return &invoice, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, invoicedomain.ErrNotFound
	}
	return s.repo.GetByID(ctx, orgID, id)
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrNotFound
	}

	limit := req.PageSize
	if limit <= 0 {
		limit = 20
	}

	filter := invoicedomain.ListFilter{
		OrgID:  orgID,
		Status: req.Status,
		Limit:  limit,
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err == nil && cursor.ID != "" {
			if after, parseErr := snowflake.ParseString(cursor.ID); parseErr == nil {
				filter.AfterID = after
			}
		}
	}

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(rows, limit, func(inv *invoicedomain.Invoice) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: inv.ID.String()})
		return token
	})

	if len(rows) > limit {
		rows = rows[:limit]
	}
	invoices := make([]invoicedomain.Invoice, 0, len(rows))
	for _, row := range rows {
		invoices = append(invoices, *row)
	}

	return invoicedomain.ListInvoiceResponse{
		PageInfo: *pageInfo,
		Invoices: invoices,
	}, nil
}

// UpdateStatus applies a validated status transition with an optimistic
// revision check. Lifecycle events are emitted best-effort after the write.
func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, target invoicedomain.Status) (*invoicedomain.Invoice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, invoicedomain.ErrNotFound
	}

	if _, valid := invoicedomain.ParseStatus(string(target)); !valid {
		return nil, invoicedomain.ErrInvalidStatus
	}

	invoice, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if !s.transitions.Allowed(invoice.Status, target) {
		return nil, invoicedomain.ErrTransitionDenied
	}

	matched, err := s.repo.UpdateStatus(ctx, invoice.ID, target, invoice.Revision)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, invoicedomain.ErrConflict
	}

	changed := invoice.Status != target
	invoice.Status = target
	invoice.Revision++

	if changed {
		s.obsMetrics.RecordStatusChange(string(target))
		s.emit(ctx, "invoice."+string(target), invoice.ID)
	}

	return invoice, nil
}

func (s *Service) emit(ctx context.Context, eventType string, invoiceID snowflake.ID) {
	if err := s.eventSvc.Emit(ctx, eventType, invoiceID); err != nil {
		s.log.Warn("emit lifecycle event failed",
			zap.String("type", eventType),
			zap.String("invoice_id", invoiceID.String()),
			zap.Error(err),
		)
	}
}
