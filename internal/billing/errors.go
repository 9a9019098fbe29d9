package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProvider is returned when no provider is registered under a name.
	ErrUnknownProvider = errors.New("billing: unknown provider")

	// ErrInvalidAPIKey is returned when a provider credential is missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")

	// ErrInvalidAmount is returned for non-positive charge or refund amounts.
	ErrInvalidAmount = errors.New("billing: amount must be positive")

	// ErrMissingToken is returned when a charge carries no payment method token.
	ErrMissingToken = errors.New("billing: payment method token is required")
)

// ProviderError wraps a gateway API error with additional context.
type ProviderError struct {
	Provider      string // Registry name of the failing provider
	Message       string // Human-readable error message
	Code          string // Provider error code (e.g., "card_declined")
	RequestID     string // Provider request ID for debugging
	Temporary     bool   // Likely transient and retryable
	OriginalError error  // Original error from the SDK
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.OriginalError
}

// IsTemporary returns true if err is a provider error likely to succeed on retry.
func IsTemporary(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Temporary
}
