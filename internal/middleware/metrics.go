package middleware

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP collectors. Every vector is labelled by method,
// route pattern and status code.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	responseSize     *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
}

var httpLabels = []string{"method", "route", "code"}

// NewMetrics registers the HTTP collectors with reg, or with the default
// registerer when reg is nil.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "motorworks"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, httpLabels),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency. Payment routes include the provider round trip.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15},
		}, httpLabels),
		responseSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response body size.",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 6),
		}, httpLabels),
		requestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests being served.",
		}),
	}
}

// Middleware instruments next with promhttp, pinning the route label to the
// matched pattern. It must run inside the mux so r.Pattern is set.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := prometheus.Labels{"route": routeLabel(r)}
		h := promhttp.InstrumentHandlerInFlight(m.requestsInFlight,
			promhttp.InstrumentHandlerDuration(m.requestDuration.MustCurryWith(route),
				promhttp.InstrumentHandlerCounter(m.requestsTotal.MustCurryWith(route),
					promhttp.InstrumentHandlerResponseSize(m.responseSize.MustCurryWith(route), next),
				),
			),
		)
		h.ServeHTTP(w, r)
	})
}

// routeLabel strips the method from the mux pattern
// ("POST /api/orders/{id}/cancel") so ids never become label values.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	if _, path, ok := strings.Cut(r.Pattern, " "); ok {
		return path
	}
	return r.Pattern
}
