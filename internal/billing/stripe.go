package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dukerupert/motorworks/internal/telemetry"
)

// StripeName is the registry key of the Stripe provider.
const StripeName = "stripe"

// StripeProvider implements Provider using Stripe payment intents.
type StripeProvider struct {
	config  StripeConfig
	intents *paymentintent.Client
	refunds *refund.Client
}

// NewStripeProvider creates a Stripe provider. The SDK backend is private
// to the provider so several keys can coexist in one process.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(int64(cfg.MaxRetries)),
		HTTPClient:        &http.Client{Timeout: cfg.Timeout, Transport: telemetry.NewTracingTransport(nil)},
	}
	if cfg.BackendURL != "" {
		backendCfg.URL = stripe.String(cfg.BackendURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	return &StripeProvider{
		config:  cfg,
		intents: &paymentintent.Client{B: backend, Key: cfg.APIKey},
		refunds: &refund.Client{B: backend, Key: cfg.APIKey},
	}, nil
}

func (s *StripeProvider) Name() string { return StripeName }

// Charge creates and confirms a payment intent in one call.
func (s *StripeProvider) Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	if params.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if params.Token == "" {
		return nil, ErrMissingToken
	}

	piParams := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(params.AmountCents),
		Currency:      stripe.String(params.Currency),
		PaymentMethod: stripe.String(params.Token),
		Confirm:       stripe.Bool(true),
	}
	if params.Description != "" {
		piParams.Description = stripe.String(params.Description)
	}
	if s.config.ReturnURL != "" {
		piParams.ReturnURL = stripe.String(s.config.ReturnURL)
	} else {
		piParams.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		}
	}
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		piParams.SetIdempotencyKey(params.IdempotencyKey)
	}
	piParams.Context = ctx

	pi, err := s.intents.New(piParams)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			result := &ChargeResult{Status: ChargeFailed, FailureReason: serr.Msg}
			if serr.PaymentIntent != nil {
				result.TransactionID = serr.PaymentIntent.ID
			}
			return result, nil
		}
		return nil, s.wrapError(err, "failed to create payment intent")
	}

	return intentResult(pi), nil
}

func intentResult(pi *stripe.PaymentIntent) *ChargeResult {
	result := &ChargeResult{
		TransactionID: pi.ID,
		Raw:           map[string]string{"stripe_status": string(pi.Status)},
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Status = ChargeSucceeded
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusProcessing:
		result.Status = ChargeRequiresAction
		result.RequiresAction = true
		if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
			result.ActionURL = pi.NextAction.RedirectToURL.URL
		}
	default:
		result.Status = ChargeFailed
		result.FailureReason = "payment intent " + string(pi.Status)
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			result.FailureReason = pi.LastPaymentError.Msg
		}
	}
	return result
}

// Refund refunds part or all of a confirmed payment intent.
func (s *StripeProvider) Refund(ctx context.Context, params RefundParams) (*RefundResult, error) {
	if params.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	rParams := &stripe.RefundParams{
		PaymentIntent: stripe.String(params.TransactionID),
		Amount:        stripe.Int64(params.AmountCents),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if params.Reason != "" {
		rParams.AddMetadata("reason", params.Reason)
	}
	if params.IdempotencyKey != "" {
		rParams.SetIdempotencyKey(params.IdempotencyKey)
	}
	rParams.Context = ctx

	r, err := s.refunds.New(rParams)
	if err != nil {
		return nil, s.wrapError(err, "failed to create refund")
	}
	return &RefundResult{RefundID: r.ID, Status: string(r.Status)}, nil
}

// ParseWebhook verifies the Stripe-Signature header and normalises
// payment intent and charge refund events.
func (s *StripeProvider) ParseWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: EventIgnored}
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("stripe: parse payment intent: %w", err)
		}
		out.TransactionID = pi.ID
		out.Type = EventPaymentSucceeded
		if event.Type == stripe.EventTypePaymentIntentPaymentFailed {
			out.Type = EventPaymentFailed
			if pi.LastPaymentError != nil {
				out.FailureReason = pi.LastPaymentError.Msg
			}
		}

	case stripe.EventTypeChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("stripe: parse charge: %w", err)
		}
		if ch.PaymentIntent == nil {
			return out, nil
		}
		out.Type = EventPaymentRefunded
		out.TransactionID = ch.PaymentIntent.ID
		out.AmountCents = ch.AmountRefunded
	}
	return out, nil
}

func (s *StripeProvider) wrapError(err error, message string) error {
	pe := &ProviderError{Provider: StripeName, Message: message, OriginalError: err}
	var serr *stripe.Error
	if errors.As(err, &serr) {
		pe.Message = serr.Msg
		pe.Code = string(serr.Code)
		pe.RequestID = serr.RequestID
		pe.Temporary = serr.HTTPStatusCode >= 500 ||
			serr.HTTPStatusCode == http.StatusTooManyRequests ||
			serr.Type == stripe.ErrorTypeAPI
		if pe.Message == "" {
			pe.Message = message + " (status " + strconv.Itoa(serr.HTTPStatusCode) + ")"
		}
	}
	return pe
}
