package service

import (
	"cmp"
	"log/slog"
	"time"

	"github.com/dukerupert/motorworks/internal/address"
	"github.com/dukerupert/motorworks/internal/cache"
	"github.com/dukerupert/motorworks/internal/notify"
)

// DefaultProviderTimeout bounds a single provider call.
const DefaultProviderTimeout = 15 * time.Second

// Options carries the ambient collaborators shared by every workflow.
// Zero values are replaced with working defaults.
type Options struct {
	Logger *slog.Logger

	// Location is the business time zone used for booking dates and
	// daily reference numbers.
	Location *time.Location

	// Now is the clock. Tests substitute a fixed one.
	Now func() time.Time

	Events notify.Publisher
	Cache  cache.Cache

	// Addresses checks and normalizes address snapshots at checkout.
	Addresses address.Validator

	Currency        string
	ProviderTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Events == nil {
		o.Events = notify.NewLogPublisher(o.Logger)
	}
	if o.Cache == nil {
		o.Cache = cache.Noop{}
	}
	if o.Addresses == nil {
		o.Addresses = address.NewBasicValidator()
	}
	o.Currency = cmp.Or(o.Currency, "usd")
	o.ProviderTimeout = cmp.Or(o.ProviderTimeout, DefaultProviderTimeout)
	return o
}
