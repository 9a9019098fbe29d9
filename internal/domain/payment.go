package domain

import (
	"time"

	"github.com/dukerupert/motorworks/internal/address"
	"github.com/google/uuid"
)

// Payment settles exactly one order or booking.
type Payment struct {
	ID                    uuid.UUID         `json:"id"`
	OrderID               *uuid.UUID        `json:"order_id,omitempty"`
	BookingID             *uuid.UUID        `json:"booking_id,omitempty"`
	AmountCents           int64             `json:"amount_cents"`
	Currency              string            `json:"currency"`
	Method                string            `json:"method"`
	Provider              string            `json:"provider"`
	ProviderTransactionID string            `json:"provider_transaction_id,omitempty"`
	Status                PaymentStatus     `json:"status"`
	RetryCount            int               `json:"retry_count"`
	FailureReason         string            `json:"failure_reason,omitempty"`
	BillingAddress        *address.Address  `json:"billing_address,omitempty"`
	ProviderMetadata      map[string]string `json:"provider_metadata,omitempty"`
	RequiresAction        bool              `json:"requires_action"`
	ActionURL             string            `json:"action_url,omitempty"`
	RefundedCents         int64             `json:"refunded_cents"`
	RefundPendingCents    int64             `json:"refund_pending_cents"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	ProcessedAt           *time.Time        `json:"processed_at,omitempty"`
	FailedAt              *time.Time        `json:"failed_at,omitempty"`
	RefundedAt            *time.Time        `json:"refunded_at,omitempty"`
}

// RefundableCents is what remains after previous refunds and refunds
// still waiting on the provider.
func (p Payment) RefundableCents() int64 {
	return p.AmountCents - p.RefundedCents - p.RefundPendingCents
}

// Refund statuses set by the workflow. Settled refunds carry the
// provider's own status instead.
const (
	RefundStatusPending = "pending_provider"
	RefundStatusFailed  = "failed"
)

// PaymentRefund records one refund request forwarded to the provider.
type PaymentRefund struct {
	ID               uuid.UUID  `json:"id"`
	PaymentID        uuid.UUID  `json:"payment_id"`
	ProviderRefundID string     `json:"provider_refund_id"`
	AmountCents      int64      `json:"amount_cents"`
	Reason           string     `json:"reason,omitempty"`
	Status           string     `json:"status"`
	ExpectedBy       time.Time  `json:"expected_by"`
	CreatedAt        time.Time  `json:"created_at"`
	SettledAt        *time.Time `json:"settled_at,omitempty"`
}
