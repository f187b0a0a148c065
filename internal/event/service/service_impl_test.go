package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/invoray/internal/event/domain"
	eventrepo "github.com/smallbiznis/invoray/internal/event/repository"
	eventservice "github.com/smallbiznis/invoray/internal/event/service"
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

	if err := db.Exec(`CREATE TABLE events (
		id BIGINT PRIMARY KEY,
		type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) domain.Service {
	t.Helper()

	node, err := snowflake.NewNode(14)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return eventservice.NewService(eventservice.Params{
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  eventrepo.NewRepository(db),
	})
}

func TestEmitPersistsKnownType(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	invoiceID := snowflake.ID(42)

	if err := svc.Emit(context.Background(), domain.TypeInvoiceSent, invoiceID); err != nil {
		t.Fatalf("emit: %v", err)
	}

	events, err := svc.List(context.Background(), invoiceID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Type != domain.TypeInvoiceSent {
		t.Fatalf("unexpected type %s", events[0].Type)
	}
}

func TestEmitPersistsUnknownTypeWithoutHandler(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	invoiceID := snowflake.ID(42)

	// Tags without a registered handler still land in the log.
	if err := svc.Emit(context.Background(), "invoice.custom_notification", invoiceID); err != nil {
		t.Fatalf("emit unknown type: %v", err)
	}

	var count int64
	if err := db.Raw("SELECT COUNT(*) FROM events WHERE type = 'invoice.custom_notification'").Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected unknown tag to be persisted, got %d rows", count)
	}
}

func TestEmitRejectsEmptyType(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	err := svc.Emit(context.Background(), "   ", snowflake.ID(1))
	if !errors.Is(err, domain.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestListScopedToInvoice(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	if err := svc.Emit(context.Background(), domain.TypeInvoiceCreated, snowflake.ID(1)); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if err := svc.Emit(context.Background(), domain.TypeInvoiceCreated, snowflake.ID(2)); err != nil {
		t.Fatalf("emit: %v", err)
	}

	events, err := svc.List(context.Background(), snowflake.ID(1))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event for invoice 1, got %d", len(events))
	}
}
