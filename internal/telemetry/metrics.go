package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkflowMetrics holds Prometheus metrics for the commerce workflows.
type WorkflowMetrics struct {
	// Cart
	CartUpdated *prometheus.CounterVec
	CartsSwept  prometheus.Counter

	// Orders
	OrdersCreated    prometheus.Counter
	OrderValue       prometheus.Histogram
	OrderTransitions *prometheus.CounterVec
	OrderRejected    *prometheus.CounterVec
	NumberCollisions *prometheus.CounterVec

	// Bookings
	BookingsCreated   prometheus.Counter
	BookingsCancelled *prometheus.CounterVec
	SlotConflicts     *prometheus.CounterVec

	// Payments
	PaymentAttempts *prometheus.CounterVec
	PaymentOutcomes *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec
	RefundsIssued   *prometheus.CounterVec
	RefundAmount    *prometheus.CounterVec

	// Webhooks
	WebhookReceived *prometheus.CounterVec
	WebhookFailed   *prometheus.CounterVec
	WebhookLatency  *prometheus.HistogramVec

	// Background jobs
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
}

// NewWorkflowMetrics creates all workflow metrics and registers them with reg.
// A nil reg uses the default registerer.
func NewWorkflowMetrics(namespace string, reg prometheus.Registerer) *WorkflowMetrics {
	if namespace == "" {
		namespace = "motorworks"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	m := &WorkflowMetrics{
		// =======================================================================
		// Cart
		// =======================================================================
		CartUpdated: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cart",
				Name:      "updates_total",
				Help:      "Cart mutations by action",
			},
			[]string{"action"}, // add, update, remove, clear, merge, convert
		),
		CartsSwept: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cart",
				Name:      "expired_removed_total",
				Help:      "Expired carts deleted by the sweep",
			},
		),

		// =======================================================================
		// Orders
		// =======================================================================
		OrdersCreated: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orders",
				Name:      "created_total",
				Help:      "Orders created from carts",
			},
		),
		OrderValue: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "orders",
				Name:      "value_dollars",
				Help:      "Order total in dollars",
				Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 50000},
			},
		),
		OrderTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orders",
				Name:      "transitions_total",
				Help:      "Order status transitions",
			},
			[]string{"from", "to"},
		),
		OrderRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orders",
				Name:      "rejected_total",
				Help:      "Cart conversions rejected, by reason",
			},
			[]string{"reason"},
		),
		NumberCollisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "numbering",
				Name:      "collisions_total",
				Help:      "Reference number collisions that forced a retry",
			},
			[]string{"scope"},
		),

		// =======================================================================
		// Bookings
		// =======================================================================
		BookingsCreated: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bookings",
				Name:      "created_total",
				Help:      "Service bookings created",
			},
		),
		BookingsCancelled: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bookings",
				Name:      "cancelled_total",
				Help:      "Booking cancellations by refund tier",
			},
			[]string{"refund_percent", "actor"}, // actor: customer, staff
		),
		SlotConflicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bookings",
				Name:      "slot_conflicts_total",
				Help:      "Booking attempts for an unavailable slot",
			},
			[]string{"stage"}, // precheck, constraint
		),

		// =======================================================================
		// Payments
		// =======================================================================
		PaymentAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "attempts_total",
				Help:      "Charge attempts sent to a provider",
			},
			[]string{"provider", "kind"}, // kind: process, retry
		),
		PaymentOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "outcomes_total",
				Help:      "Charge outcomes",
			},
			[]string{"provider", "outcome"}, // completed, failed, requires_action, timeout
		),
		ProviderLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "provider_duration_seconds",
				Help:      "Payment provider call duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider", "operation"}, // charge, refund, webhook
		),
		RefundsIssued: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "refunds_total",
				Help:      "Refunds forwarded to a provider",
			},
			[]string{"provider"},
		),
		RefundAmount: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "refunded_cents_total",
				Help:      "Refunded amount in cents",
			},
			[]string{"provider"},
		),

		// =======================================================================
		// Webhooks
		// =======================================================================
		WebhookReceived: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhooks",
				Name:      "received_total",
				Help:      "Provider webhooks received",
			},
			[]string{"provider", "event_type"},
		),
		WebhookFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhooks",
				Name:      "failed_total",
				Help:      "Provider webhooks rejected or failed",
			},
			[]string{"provider", "reason"},
		),
		WebhookLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "webhooks",
				Name:      "duration_seconds",
				Help:      "Webhook handling duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		// =======================================================================
		// Background Jobs
		// =======================================================================
		JobsProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "processed_total",
				Help:      "Background job runs completed",
			},
			[]string{"job"},
		),
		JobsFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "failed_total",
				Help:      "Background job runs that returned an error",
			},
			[]string{"job"},
		),
		JobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "duration_seconds",
				Help:      "Background job run duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"job"},
		),
	}

	return m
}

// Business is the global instance used by services and handlers. It stays nil
// until InitWorkflowMetrics runs, so callers must nil-check it.
var Business *WorkflowMetrics

// InitWorkflowMetrics initializes the global metrics instance.
func InitWorkflowMetrics(namespace string, reg prometheus.Registerer) *WorkflowMetrics {
	Business = NewWorkflowMetrics(namespace, reg)
	return Business
}
