package billing

import (
	"errors"
	"strings"
	"time"
)

// StripeConfig contains configuration for Stripe provider.
type StripeConfig struct {
	// APIKey is the Stripe secret key (sk_test_... or sk_live_...)
	APIKey string

	// WebhookSecret is the webhook signing secret (whsec_...)
	// Used to verify webhook signatures from Stripe
	WebhookSecret string

	// ReturnURL receives the customer after a redirect-based
	// authentication step. Empty disables redirect payment methods.
	ReturnURL string

	// MaxRetries is the maximum number of retries for transient failures
	// Default: 2
	MaxRetries int

	// Timeout bounds each HTTP call to Stripe.
	// Default: 30s
	Timeout time.Duration

	// BackendURL overrides the API base URL; tests point it at a local server.
	BackendURL string
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("stripe: API key is required")
	}
	if c.WebhookSecret == "" {
		return errors.New("stripe: webhook secret is required")
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *StripeConfig) IsTestMode() bool {
	return strings.HasPrefix(c.APIKey, "sk_test_")
}

func (c *StripeConfig) withDefaults() StripeConfig {
	cfg := *c
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg
}
