package billing

import (
	"cmp"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/refund"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/motorworks/internal/telemetry"
)

// MercadoPagoName is the registry key of the Mercado Pago provider.
const MercadoPagoName = "mercadopago"

// ErrMissingMercadoPagoAccessToken is returned when no access token is configured.
var ErrMissingMercadoPagoAccessToken = errors.New("billing: missing MERCADOPAGO_ACCESS_TOKEN")

// mpPayments is the subset of payment.Client the provider uses.
type mpPayments interface {
	Create(ctx context.Context, request payment.Request) (*payment.Response, error)
	Get(ctx context.Context, id int) (*payment.Response, error)
}

// mpRefunds is the subset of refund.Client the provider uses.
type mpRefunds interface {
	CreatePartialRefund(ctx context.Context, paymentID int, amount float64) (*refund.Response, error)
}

// MercadoPagoConfig contains configuration for the Mercado Pago provider.
type MercadoPagoConfig struct {
	AccessToken string

	// WebhookSecret signs the x-signature header of notifications.
	WebhookSecret string

	// StatementDescriptor is shown on the card statement.
	StatementDescriptor string
}

// MercadoPagoProvider implements Provider using the Mercado Pago payments API.
type MercadoPagoProvider struct {
	payments   mpPayments
	refunds    mpRefunds
	secret     string
	descriptor string
}

// NewMercadoPagoProvider creates a Mercado Pago provider.
func NewMercadoPagoProvider(cfg MercadoPagoConfig) (*MercadoPagoProvider, error) {
	if cfg.AccessToken == "" {
		return nil, ErrMissingMercadoPagoAccessToken
	}
	client := &http.Client{Transport: telemetry.NewTracingTransport(nil)}
	sdkCfg, err := config.New(cfg.AccessToken, config.WithHTTPClient(idempotentRequester{client: client}))
	if err != nil {
		return nil, fmt.Errorf("mercadopago: sdk config: %w", err)
	}
	return &MercadoPagoProvider{
		payments:   payment.NewClient(sdkCfg),
		refunds:    refund.NewClient(sdkCfg),
		secret:     cfg.WebhookSecret,
		descriptor: cfg.StatementDescriptor,
	}, nil
}

func (m *MercadoPagoProvider) Name() string { return MercadoPagoName }

type idempotencyKeyCtx struct{}

func withIdempotencyKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// idempotentRequester replaces the random X-Idempotency-Key the SDK puts on
// every write with the caller's key, so a resent request is deduplicated.
type idempotentRequester struct {
	client *http.Client
}

func (r idempotentRequester) Do(req *http.Request) (*http.Response, error) {
	if key, ok := req.Context().Value(idempotencyKeyCtx{}).(string); ok {
		req.Header.Set("X-Idempotency-Key", key)
	}
	return r.client.Do(req)
}

// Charge creates a card payment from a card token.
func (m *MercadoPagoProvider) Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	if params.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if params.Token == "" {
		return nil, ErrMissingToken
	}

	metadata := make(map[string]any, len(params.Metadata))
	for k, v := range params.Metadata {
		metadata[k] = v
	}
	req := payment.Request{
		TransactionAmount:   centsToUnits(params.AmountCents),
		Token:               params.Token,
		Description:         params.Description,
		Installments:        1,
		ExternalReference:   params.IdempotencyKey,
		StatementDescriptor: m.descriptor,
		Metadata:            metadata,
	}
	if email := params.Metadata["payer_email"]; email != "" {
		req.Payer = &payment.PayerRequest{Email: email}
	}

	resp, err := m.payments.Create(withIdempotencyKey(ctx, params.IdempotencyKey), req)
	if err != nil {
		return nil, &ProviderError{Provider: MercadoPagoName, Message: "failed to create payment", OriginalError: err, Temporary: ctx.Err() == nil}
	}
	return mpChargeResult(resp), nil
}

func mpChargeResult(resp *payment.Response) *ChargeResult {
	result := &ChargeResult{
		TransactionID: strconv.Itoa(resp.ID),
		Raw: map[string]string{
			"mp_status":        resp.Status,
			"mp_status_detail": resp.StatusDetail,
		},
	}
	switch resp.Status {
	case "approved", "authorized":
		result.Status = ChargeSucceeded
	case "pending", "in_process":
		result.Status = ChargeRequiresAction
		result.RequiresAction = true
	default:
		result.Status = ChargeFailed
		result.FailureReason = cmp.Or(resp.StatusDetail, resp.Status)
	}
	return result
}

// Refund refunds part or all of an approved payment.
func (m *MercadoPagoProvider) Refund(ctx context.Context, params RefundParams) (*RefundResult, error) {
	if params.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	id, err := strconv.Atoi(params.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: invalid payment id %q: %w", params.TransactionID, err)
	}
	resp, err := m.refunds.CreatePartialRefund(withIdempotencyKey(ctx, params.IdempotencyKey), id, centsToUnits(params.AmountCents))
	if err != nil {
		return nil, &ProviderError{Provider: MercadoPagoName, Message: "failed to create refund", OriginalError: err}
	}
	return &RefundResult{RefundID: strconv.Itoa(resp.ID), Status: resp.Status}, nil
}

type mpNotification struct {
	ID     json.Number `json:"id"`
	Type   string      `json:"type"`
	Action string      `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ParseWebhook verifies the x-signature header and fetches the payment the
// notification refers to, since notifications carry only its id.
func (m *MercadoPagoProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	var n mpNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("mercadopago: parse notification: %w", err)
	}
	if err := VerifyMercadoPagoSignature(m.secret, n.Data.ID, signature); err != nil {
		return nil, err
	}

	out := &WebhookEvent{ID: n.ID.String(), Type: EventIgnored}
	if n.Type != "payment" {
		return out, nil
	}
	id, err := strconv.Atoi(n.Data.ID)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: invalid payment id %q: %w", n.Data.ID, err)
	}
	resp, err := m.payments.Get(ctx, id)
	if err != nil {
		return nil, &ProviderError{Provider: MercadoPagoName, Message: "failed to fetch payment", OriginalError: err, Temporary: true}
	}

	out.TransactionID = strconv.Itoa(resp.ID)
	switch {
	case resp.Status == "refunded" || resp.Status == "charged_back" || resp.TransactionAmountRefunded > 0:
		out.Type = EventPaymentRefunded
		out.AmountCents = unitsToCents(resp.TransactionAmountRefunded)
	case resp.Status == "approved":
		out.Type = EventPaymentSucceeded
	case resp.Status == "rejected" || resp.Status == "cancelled":
		out.Type = EventPaymentFailed
		out.FailureReason = cmp.Or(resp.StatusDetail, resp.Status)
	}
	return out, nil
}

// VerifyMercadoPagoSignature checks an x-signature header of the form
// "ts=<unix>,v1=<hex hmac>" against the manifest "id:<data.id>;ts:<ts>;".
func VerifyMercadoPagoSignature(secret, dataID, header string) error {
	if secret == "" || header == "" {
		return ErrInvalidWebhookSignature
	}
	var ts, v1 string
	for part := range strings.SplitSeq(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return ErrInvalidWebhookSignature
	}
	want, err := hex.DecodeString(v1)
	if err != nil {
		return ErrInvalidWebhookSignature
	}
	if !hmac.Equal(want, signMercadoPago(secret, dataID, ts)) {
		return ErrInvalidWebhookSignature
	}
	return nil
}

// SignMercadoPagoHeader builds a valid x-signature header; used by tests and
// local tooling that replays notifications.
func SignMercadoPagoHeader(secret, dataID, ts string) string {
	return "ts=" + ts + ",v1=" + hex.EncodeToString(signMercadoPago(secret, dataID, ts))
}

func signMercadoPago(secret, dataID, ts string) []byte {
	var manifest strings.Builder
	if dataID != "" {
		manifest.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	manifest.WriteString("ts:" + ts + ";")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest.String()))
	return mac.Sum(nil)
}

func centsToUnits(cents int64) float64 {
	return decimal.NewFromInt(cents).Shift(-2).InexactFloat64()
}

func unitsToCents(units float64) int64 {
	return decimal.NewFromFloat(units).Shift(2).Round(0).IntPart()
}
