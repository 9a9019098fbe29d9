// Package webhook receives asynchronous payment notifications from the
// billing providers.
package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/dukerupert/motorworks/internal/billing"
	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/handler"
	"github.com/dukerupert/motorworks/internal/service"
)

// DefaultSignatureHeader is read for providers without a header of their own.
const DefaultSignatureHeader = "X-Webhook-Signature"

// signatureHeaders names the header each provider signs its notifications in.
var signatureHeaders = map[string]string{
	billing.StripeName:      "Stripe-Signature",
	billing.MercadoPagoName: "X-Signature",
}

// SignatureHeader returns the signature header for a provider.
func SignatureHeader(provider string) string {
	if h, ok := signatureHeaders[provider]; ok {
		return h
	}
	return DefaultSignatureHeader
}

// PaymentHandler handles provider webhook events
type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler creates a new payment webhook handler
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// HandleWebhook handles POST /webhooks/{provider}.
//
// Verification and reconciliation live in the payment service. A 2xx tells
// the provider to stop redelivering, so only signature and parse failures
// and unknown payments are answered with an error status:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	logger := domain.LoggerFromContext(r.Context()).With("provider", provider)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handler.ErrorResponse(w, r, domain.Invalid("", "Webhook payload too large"))
			return
		}
		handler.ErrorResponse(w, r, domain.Invalid("", "Error reading request body"))
		return
	}

	signature := r.Header.Get(SignatureHeader(provider))
	if signature == "" {
		logger.WarnContext(r.Context(), "webhook rejected: missing signature")
		handler.ErrorResponse(w, r, domain.ErrInvalidWebhookSignature.With("webhook.receive", nil))
		return
	}

	result, err := h.paymentService.HandleWebhook(r.Context(), provider, payload, signature)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	logger.InfoContext(r.Context(), "webhook processed",
		"event_id", result.EventID,
		"event_type", result.EventType,
		"applied", result.Applied,
	)
	handler.WriteJSON(w, http.StatusOK, map[string]any{
		"received": true,
		"result":   result,
	})
}
