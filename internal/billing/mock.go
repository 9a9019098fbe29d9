package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
)

// Deterministic test tokens understood by MockProvider.
const (
	MockTokenSuccess  = "tok_visa"
	MockTokenDeclined = "tok_declined"
	MockToken3DS      = "tok_3ds"
	MockTokenTimeout  = "tok_timeout"
	MockTokenError    = "tok_error"
)

// MockProvider is a billing provider for tests and PAYMENT_GATEWAY_MOCK mode.
// Outcomes are driven by the payment token; the Func fields override them.
type MockProvider struct {
	name   string
	secret string

	// ChargeFunc allows customizing charge behavior
	ChargeFunc func(ctx context.Context, params ChargeParams) (*ChargeResult, error)

	// RefundFunc allows customizing refund behavior
	RefundFunc func(ctx context.Context, params RefundParams) (*RefundResult, error)

	mu      sync.Mutex
	seq     int
	charges map[string]ChargeParams
	refunds map[string]RefundParams

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// NewMockProvider creates a mock provider registered under name. Webhooks
// must be signed with MockSignature(secret, payload).
func NewMockProvider(name, secret string) *MockProvider {
	return &MockProvider{
		name:    name,
		secret:  secret,
		charges: make(map[string]ChargeParams),
		refunds: make(map[string]RefundParams),
	}
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) record(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, call)
	m.seq++
	return m.seq
}

// Calls returns a snapshot of the call log.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

// Charge simulates a charge according to the token.
func (m *MockProvider) Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	n := m.record(fmt.Sprintf("Charge(%d, %s, %s)", params.AmountCents, params.Currency, params.Token))

	if m.ChargeFunc != nil {
		return m.ChargeFunc(ctx, params)
	}
	if params.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	txID := fmt.Sprintf("mock_txn_%d", n)
	switch params.Token {
	case "":
		return nil, ErrMissingToken
	case MockTokenDeclined:
		return &ChargeResult{Status: ChargeFailed, TransactionID: txID, FailureReason: "card declined"}, nil
	case MockToken3DS:
		return &ChargeResult{
			Status:         ChargeRequiresAction,
			TransactionID:  txID,
			RequiresAction: true,
			ActionURL:      "https://mock.invalid/3ds/" + txID,
		}, nil
	case MockTokenTimeout:
		<-ctx.Done()
		return nil, ctx.Err()
	case MockTokenError:
		return nil, &ProviderError{Provider: m.name, Message: "gateway unavailable", Code: "api_error", Temporary: true}
	}

	m.mu.Lock()
	m.charges[txID] = params
	m.mu.Unlock()
	return &ChargeResult{Status: ChargeSucceeded, TransactionID: txID}, nil
}

// Refund simulates a refund of a previously recorded charge.
func (m *MockProvider) Refund(ctx context.Context, params RefundParams) (*RefundResult, error) {
	n := m.record(fmt.Sprintf("Refund(%s, %d)", params.TransactionID, params.AmountCents))

	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, params)
	}
	if params.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	id := fmt.Sprintf("mock_re_%d", n)
	m.mu.Lock()
	m.refunds[id] = params
	m.mu.Unlock()
	return &RefundResult{RefundID: id, Status: "succeeded"}, nil
}

// RefundedCents sums refunds recorded against a transaction.
func (m *MockProvider) RefundedCents(txID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, r := range m.refunds {
		if r.TransactionID == txID {
			total += r.AmountCents
		}
	}
	return total
}

type mockEvent struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	TransactionID string `json:"transaction_id"`
	AmountCents   int64  `json:"amount_cents"`
	FailureReason string `json:"failure_reason"`
}

// ParseWebhook accepts a JSON WebhookEvent signed with MockSignature.
func (m *MockProvider) ParseWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	m.record("ParseWebhook")

	want, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(want, mockMAC(m.secret, payload)) {
		return nil, ErrInvalidWebhookSignature
	}
	var e mockEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("mock: parse event: %w", err)
	}
	switch e.Type {
	case EventPaymentSucceeded, EventPaymentFailed, EventPaymentRefunded:
	default:
		e.Type = EventIgnored
	}
	return &WebhookEvent{
		ID:            e.ID,
		Type:          e.Type,
		TransactionID: e.TransactionID,
		AmountCents:   e.AmountCents,
		FailureReason: e.FailureReason,
	}, nil
}

// MockSignature signs a payload for MockProvider.ParseWebhook.
func MockSignature(secret string, payload []byte) string {
	return hex.EncodeToString(mockMAC(secret, payload))
}

func mockMAC(secret string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}
