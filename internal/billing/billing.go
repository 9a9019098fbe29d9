// Package billing adapts external payment providers to the payment
// workflow. Providers only move money; status bookkeeping belongs to the
// caller.
package billing

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Charge outcomes reported by a provider.
const (
	ChargeSucceeded      = "succeeded"
	ChargeFailed         = "failed"
	ChargeRequiresAction = "requires_action"
)

// Normalised webhook event types.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
	EventIgnored          = "ignored"
)

// Provider is the adapter contract every payment gateway implements.
//
// Charge must honour ctx cancellation so the workflow's provider timeout
// can interrupt a slow gateway. A declined charge is not an error: it is
// reported as a ChargeResult with Status ChargeFailed.
type Provider interface {
	// Name is the registry key, e.g. "stripe".
	Name() string

	// Charge attempts to collect the amount using a tokenised payment
	// method.
	Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error)

	// Refund returns part or all of a previously captured charge.
	Refund(ctx context.Context, params RefundParams) (*RefundResult, error)

	// ParseWebhook verifies the signature of an inbound notification and
	// normalises it. Unsupported event types come back as EventIgnored.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// ChargeParams contains parameters for a charge.
type ChargeParams struct {
	// AmountCents is the amount to charge in the smallest currency unit.
	AmountCents int64

	// Currency is a lowercase ISO 4217 code.
	Currency string

	// Token identifies the tokenised payment method.
	Token string

	// Description appears on the provider dashboard.
	Description string

	// IdempotencyKey prevents duplicate charges on retry.
	IdempotencyKey string

	// Metadata is forwarded to the provider.
	Metadata map[string]string
}

// ChargeResult is the provider's answer to a charge.
type ChargeResult struct {
	Status         string
	TransactionID  string
	RequiresAction bool
	ActionURL      string
	FailureReason  string
	Raw            map[string]string
}

// RefundParams contains parameters for a refund.
type RefundParams struct {
	TransactionID string
	AmountCents   int64
	Reason        string

	// IdempotencyKey makes a resent refund request a no-op at the provider.
	IdempotencyKey string
}

// RefundResult is the provider's answer to a refund request.
type RefundResult struct {
	RefundID string
	Status   string
}

// WebhookEvent is a verified, provider-neutral notification.
type WebhookEvent struct {
	ID            string
	Type          string
	TransactionID string

	// AmountCents is the cumulative refunded amount for refund events.
	AmountCents   int64
	FailureReason string
}

// Registry resolves providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry holding the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider under its Name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
