package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoray/internal/payment/domain"
	"github.com/smallbiznis/invoray/internal/payment/gateway"
)

func sign(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestCreatePaymentIntentSendsFormEncodedRequest(t *testing.T) {
	var gotAuth, gotIdem, gotAmount, gotCurrency, gotInvoiceID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotIdem = r.Header.Get("Idempotency-Key")
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotAmount = r.PostFormValue("amount")
		gotCurrency = r.PostFormValue("currency")
		gotInvoiceID = r.PostFormValue("metadata[invoice_id]")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "pi_123",
			"client_secret": "pi_123_secret",
			"status":        "requires_payment_method",
			"amount":        2500,
			"currency":      "usd",
		})
	}))
	defer server.Close()

	gw := New(Config{APIKey: "sk_test", BaseURL: server.URL})
	intent, err := gw.CreatePaymentIntent(context.Background(), gateway.CreateIntentRequest{
		AmountCents:    2500,
		Currency:       "USD",
		OrgID:          snowflake.ID(1),
		InvoiceID:      snowflake.ID(42),
		IdempotencyKey: "01HTEST",
	})
	if err != nil {
		t.Fatalf("create payment intent: %v", err)
	}

	if intent.ProviderPaymentID != "pi_123" || intent.ClientSecret != "pi_123_secret" {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if gotAuth != "Bearer sk_test" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotIdem != "01HTEST" {
		t.Fatalf("unexpected idempotency key %q", gotIdem)
	}
	if gotAmount != "2500" || gotCurrency != "usd" {
		t.Fatalf("unexpected form values amount=%q currency=%q", gotAmount, gotCurrency)
	}
	if gotInvoiceID != snowflake.ID(42).String() {
		t.Fatalf("unexpected invoice metadata %q", gotInvoiceID)
	}
}

func TestCreatePaymentIntentSurfacesGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Your card was declined."},
		})
	}))
	defer server.Close()

	gw := New(Config{APIKey: "sk_test", BaseURL: server.URL})
	_, err := gw.CreatePaymentIntent(context.Background(), gateway.CreateIntentRequest{
		AmountCents: 100,
		Currency:    "USD",
	})
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}
}

func TestVerifyWebhook(t *testing.T) {
	gw := New(Config{APIKey: "sk_test", WebhookSecret: "whsec_abc"})
	payload := []byte(`{"id":"evt_1"}`)
	ts := time.Now().Unix()

	headers := http.Header{}
	headers.Set("Stripe-Signature", sign(payload, "whsec_abc", ts))
	if err := gw.VerifyWebhook(payload, headers); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	headers.Set("Stripe-Signature", sign(payload, "whsec_other", ts))
	if err := gw.VerifyWebhook(payload, headers); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	headers.Del("Stripe-Signature")
	if err := gw.VerifyWebhook(payload, headers); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for missing header, got %v", err)
	}
}

func TestParseWebhookPaymentIntentSucceeded(t *testing.T) {
	gw := New(Config{APIKey: "sk_test", WebhookSecret: "whsec_abc"})

	payload, _ := json.Marshal(map[string]any{
		"id":      "evt_9",
		"type":    "payment_intent.succeeded",
		"created": 1700000000,
		"data": map[string]any{
			"object": map[string]any{
				"id":              "pi_9",
				"amount":          1200,
				"amount_received": 1200,
				"currency":        "eur",
				"metadata": map[string]any{
					"invoice_id": "77",
					"org_id":     "5",
				},
			},
		},
	})

	event, err := gw.ParseWebhook(payload)
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}
	if event.Type != domain.EventTypePaymentSucceeded {
		t.Fatalf("unexpected type %s", event.Type)
	}
	if event.ProviderPaymentID != "pi_9" {
		t.Fatalf("unexpected provider payment id %q", event.ProviderPaymentID)
	}
	if event.AmountCents != 1200 || event.Currency != "EUR" {
		t.Fatalf("unexpected amount %d %s", event.AmountCents, event.Currency)
	}
	if event.InvoiceID == nil || *event.InvoiceID != snowflake.ID(77) {
		t.Fatalf("unexpected invoice id %v", event.InvoiceID)
	}
	if event.OrgID != snowflake.ID(5) {
		t.Fatalf("unexpected org id %v", event.OrgID)
	}
}

func TestParseWebhookIgnoresOtherEvents(t *testing.T) {
	gw := New(Config{APIKey: "sk_test", WebhookSecret: "whsec_abc"})

	payload, _ := json.Marshal(map[string]any{
		"id":   "evt_10",
		"type": "charge.refunded",
		"data": map[string]any{"object": map[string]any{}},
	})

	_, err := gw.ParseWebhook(payload)
	if !errors.Is(err, domain.ErrEventIgnored) {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}
}

func TestParseWebhookRejectsMalformedPayload(t *testing.T) {
	gw := New(Config{APIKey: "sk_test"})
	if _, err := gw.ParseWebhook([]byte("not json")); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}
