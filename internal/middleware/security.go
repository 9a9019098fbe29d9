package middleware

import (
	"net/http"
	"strconv"
)

// SecurityHeadersConfig lists the hardening headers sent on every response.
// Empty or zero fields are omitted.
type SecurityHeadersConfig struct {
	ContentSecurityPolicy string
	FrameOptions          string
	ReferrerPolicy        string
	ContentTypeNosniff    bool

	// HSTSMaxAge is in seconds. HSTS is only sent on requests that arrived
	// over TLS, directly or per X-Forwarded-Proto.
	HSTSMaxAge int
}

// DefaultSecurityHeadersConfig suits a JSON API that never serves pages.
func DefaultSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		FrameOptions:          "DENY",
		ReferrerPolicy:        "no-referrer",
		ContentTypeNosniff:    true,
		HSTSMaxAge:            365 * 24 * 60 * 60,
	}
}

// SecurityHeaders sets the configured headers and marks responses
// uncacheable; carts and payments must never be served from a cache.
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	static := map[string]string{"Cache-Control": "no-store"}
	if config.ContentSecurityPolicy != "" {
		static["Content-Security-Policy"] = config.ContentSecurityPolicy
	}
	if config.FrameOptions != "" {
		static["X-Frame-Options"] = config.FrameOptions
	}
	if config.ReferrerPolicy != "" {
		static["Referrer-Policy"] = config.ReferrerPolicy
	}
	if config.ContentTypeNosniff {
		static["X-Content-Type-Options"] = "nosniff"
	}
	var hsts string
	if config.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(config.HSTSMaxAge) + "; includeSubDomains"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range static {
				h.Set(k, v)
			}
			if hsts != "" && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}
