package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

// SentryConfig holds configuration for Sentry error tracking.
type SentryConfig struct {
	DSN         string
	Enabled     bool
	Environment string
	Release     string

	// SampleRate is the share of errors sent, 0 means all of them.
	SampleRate float64
	// TracesSampleRate is the share of transactions traced; 0 disables tracing.
	TracesSampleRate float64
	Debug            bool
}

var enabled atomic.Bool

// InitSentry configures the global Sentry client. Every capture helper in
// this package is a no-op until it succeeds. The returned func flushes
// pending events and should run on shutdown.
func InitSentry(cfg SentryConfig, logger *slog.Logger) (func(), error) {
	noop := func() {}
	if !cfg.Enabled {
		logger.Info("Sentry disabled")
		return noop, nil
	}
	if cfg.DSN == "" {
		logger.Warn("SENTRY_ENABLED is set without SENTRY_DSN; error tracking stays off")
		return noop, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		EnableTracing:    cfg.TracesSampleRate > 0,
		Debug:            cfg.Debug,
		BeforeSend:       scrubRequestBody,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	enabled.Store(true)

	logger.Info("Sentry initialized",
		"environment", cfg.Environment,
		"release", cfg.Release,
		"sample_rate", sampleRate,
		"traces_sample_rate", cfg.TracesSampleRate,
	)
	return func() { sentry.Flush(flushTimeout) }, nil
}

// Card tokens and addresses travel in request bodies.
func scrubRequestBody(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		event.Request.Data = ""
	}
	return event
}

// IsEnabled reports whether InitSentry configured a client.
func IsEnabled() bool {
	return enabled.Load()
}

// hubFor returns the request hub installed by SentryMiddleware, or the
// global hub outside a request.
func hubFor(ctx context.Context) *sentry.Hub {
	if ctx != nil {
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			return hub
		}
	}
	return sentry.CurrentHub()
}

func capture(hub *sentry.Hub, extras map[string]any, send func(*sentry.Hub)) {
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		send(hub)
	})
}

// CaptureError reports an error that happened outside a request, such as in
// a background job.
func CaptureError(err error, extras map[string]any) {
	CaptureErrorFromContext(context.Background(), err, extras)
}

// CaptureErrorFromContext reports err on the request's hub so the event
// carries the request and actor set by SentryMiddleware.
func CaptureErrorFromContext(ctx context.Context, err error, extras map[string]any) {
	if !IsEnabled() || err == nil {
		return
	}
	capture(hubFor(ctx), extras, func(h *sentry.Hub) { h.CaptureException(err) })
}

// CaptureWarning reports a condition that needs a human but is not an
// error, such as a provider contradicting the stored payment state.
func CaptureWarning(ctx context.Context, message string, extras map[string]any) {
	if !IsEnabled() {
		return
	}
	capture(hubFor(ctx), extras, func(h *sentry.Hub) {
		h.Scope().SetLevel(sentry.LevelWarning)
		h.CaptureMessage(message)
	})
}

// UserInfo identifies the actor of a request.
type UserInfo struct {
	ID   string
	Role string
}

// UserContextExtractor resolves the actor from a request context.
type UserContextExtractor func(ctx context.Context) *UserInfo

// SentryMiddleware gives each request its own hub carrying the request and
// the actor returned by user, and reports panics before answering with a
// JSON 500. Place it after the middleware that resolves the actor.
func SentryMiddleware(user UserContextExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			hub := sentry.CurrentHub().Clone()
			hub.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetRequest(r)
				if user == nil {
					return
				}
				if u := user(r.Context()); u != nil {
					scope.SetUser(sentry.User{ID: u.ID})
					scope.SetTag("role", u.Role)
				}
			})
			ctx := sentry.SetHubOnContext(r.Context(), hub)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hub.RecoverWithContext(ctx, rec)
				hub.Flush(flushTimeout)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"code":"internal","message":"An internal error occurred. Please try again later."}}`))
			}()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TracingTransport records outbound provider calls as http.client spans.
type TracingTransport struct {
	Base http.RoundTripper
}

// NewTracingTransport wraps base, or http.DefaultTransport when base is nil.
func NewTracingTransport(base http.RoundTripper) *TracingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &TracingTransport{Base: base}
}

func (t *TracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !IsEnabled() {
		return t.Base.RoundTrip(req)
	}

	span := sentry.StartSpan(req.Context(), "http.client")
	span.Description = req.Method + " " + req.URL.Host
	defer span.Finish()

	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}
	span.SetData("http.status_code", resp.StatusCode)
	return resp, nil
}
