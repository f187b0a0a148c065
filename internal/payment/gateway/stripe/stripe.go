// Package stripe implements the payment gateway against the Stripe HTTP
// API with form-encoded requests. No SDK; the surface we use is small.
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
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoray/internal/payment/domain"
	"github.com/smallbiznis/invoray/internal/payment/gateway"
)

const defaultBaseURL = "https://api.stripe.com"

// Config carries the platform Stripe credentials. BaseURL and HTTPClient
// exist so tests can point the gateway at a local server.
type Config struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string
	HTTPClient    *http.Client
}

type Gateway struct {
	apiKey        string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

func New(cfg Config) *Gateway {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 12 * time.Second}
	}
	return &Gateway{
		apiKey:        strings.TrimSpace(cfg.APIKey),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        client,
	}
}

func (g *Gateway) Provider() string { return "stripe" }

func (g *Gateway) CreatePaymentIntent(ctx context.Context, req gateway.CreateIntentRequest) (gateway.Intent, error) {
	values := url.Values{}
	values.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	values.Set("currency", strings.ToLower(req.Currency))
	values.Set("automatic_payment_methods[enabled]", "false")
	values.Set("payment_method_types[]", "card")
	values.Set("metadata[invoice_id]", req.InvoiceID.String())
	values.Set("metadata[org_id]", req.OrgID.String())

	var intent stripePaymentIntent
	if err := g.doRequest(ctx, http.MethodPost, "/v1/payment_intents", values, req.IdempotencyKey, &intent); err != nil {
		return gateway.Intent{}, err
	}
	if intent.ID == "" {
		return gateway.Intent{}, domain.ErrGateway
	}
	return gateway.Intent{
		ProviderPaymentID: intent.ID,
		ClientSecret:      intent.ClientSecret,
		Status:            intent.Status,
		AmountCents:       intent.Amount,
		Currency:          strings.ToUpper(intent.Currency),
	}, nil
}

func (g *Gateway) CreatePortalSession(ctx context.Context, req gateway.PortalRequest) (domain.PortalSession, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return domain.PortalSession{}, domain.ErrInvalidConfig
	}
	values := url.Values{}
	values.Set("customer", customerID)
	if returnURL := strings.TrimSpace(req.ReturnURL); returnURL != "" {
		values.Set("return_url", returnURL)
	}

	var session stripePortalSession
	if err := g.doRequest(ctx, http.MethodPost, "/v1/billing_portal/sessions", values, "", &session); err != nil {
		return domain.PortalSession{}, err
	}
	if session.URL == "" {
		return domain.PortalSession{}, domain.ErrGateway
	}
	return domain.PortalSession{URL: session.URL}, nil
}

// VerifyWebhook checks the Stripe-Signature header: HMAC-SHA256 of
// "<timestamp>.<payload>" keyed with the endpoint secret.
func (g *Gateway) VerifyWebhook(payload []byte, headers http.Header) error {
	if g.webhookSecret == "" {
		return domain.ErrInvalidConfig
	}
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

func (g *Gateway) ParseWebhook(payload []byte) (*domain.WebhookEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	switch strings.TrimSpace(event.Type) {
	case "payment_intent.succeeded":
		return g.parsePaymentIntent(event, payload, domain.EventTypePaymentSucceeded)
	case "payment_intent.payment_failed":
		return g.parsePaymentIntent(event, payload, domain.EventTypePaymentFailed)
	default:
		return nil, domain.ErrEventIgnored
	}
}

type stripePaymentIntent struct {
	ID             string         `json:"id"`
	ClientSecret   string         `json:"client_secret"`
	Status         string         `json:"status"`
	Amount         int64          `json:"amount"`
	AmountReceived int64          `json:"amount_received"`
	Currency       string         `json:"currency"`
	Created        int64          `json:"created"`
	Metadata       map[string]any `json:"metadata"`
}

type stripePortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Gateway) parsePaymentIntent(event stripeEvent, payload []byte, eventType domain.WebhookEventType) (*domain.WebhookEvent, error) {
	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	amount := intent.AmountReceived
	if amount <= 0 {
		amount = intent.Amount
	}

	orgID := parseMetadataID(intent.Metadata, "org_id")
	var invoiceID *snowflake.ID
	if id := parseMetadataID(intent.Metadata, "invoice_id"); id != 0 {
		invoiceID = &id
	}

	return &domain.WebhookEvent{
		Provider:          "stripe",
		ProviderEventID:   event.ID,
		ProviderPaymentID: intent.ID,
		Type:              eventType,
		OrgID:             orgID,
		InvoiceID:         invoiceID,
		AmountCents:       amount,
		Currency:          strings.ToUpper(strings.TrimSpace(intent.Currency)),
		OccurredAt:        timestamp(intent.Created, event.Created),
		RawPayload:        payload,
	}, nil
}

func (g *Gateway) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
	out any,
) error {
	if g.apiKey == "" {
		return domain.ErrInvalidConfig
	}
	body := ""
	if values != nil {
		body = values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return domain.ErrGateway
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			return domain.ErrGateway
		}
		return fmt.Errorf("%w: %s", domain.ErrGateway, message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	return nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

func parseMetadataID(metadata map[string]any, key string) snowflake.ID {
	if metadata == nil {
		return 0
	}
	raw, ok := metadata[key]
	if !ok {
		return 0
	}
	var value string
	switch cast := raw.(type) {
	case string:
		value = strings.TrimSpace(cast)
	case float64:
		value = strconv.FormatInt(int64(cast), 10)
	case json.Number:
		value = cast.String()
	default:
		return 0
	}
	if value == "" {
		return 0
	}
	id, err := snowflake.ParseString(value)
	if err != nil {
		return 0
	}
	return id
}
