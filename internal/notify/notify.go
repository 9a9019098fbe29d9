// Package notify publishes workflow trigger events (order created, booking
// cancelled, payment completed, ...) for downstream consumers such as email
// and SMS senders. Delivery of the notifications themselves happens elsewhere.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	OrderCreated         = "order.created"
	OrderStatusChanged   = "order.status_changed"
	OrderCancelled       = "order.cancelled"
	BookingCreated       = "booking.created"
	BookingStatusChanged = "booking.status_changed"
	BookingCancelled     = "booking.cancelled"
	PaymentCompleted     = "payment.completed"
	PaymentFailed        = "payment.failed"
	PaymentActionNeeded  = "payment.requires_action"
	PaymentRefunded      = "payment.refunded"
)

// Event is one trigger point. AggregateID orders events per entity.
type Event struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"type"`
	AggregateID string         `json:"aggregate_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Data        map[string]any `json:"data,omitempty"`
}

// NewEvent stamps an event with a fresh id.
func NewEvent(eventType, aggregateID string, at time.Time, data map[string]any) Event {
	return Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		OccurredAt:  at.UTC(),
		Data:        data,
	}
}

func (e Event) payload() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher emits events to a transport.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to a structured logger. It is the default when
// no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger.With("component", "notify")}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.InfoContext(ctx, "event published",
		"event_id", e.ID,
		"type", e.Type,
		"aggregate_id", e.AggregateID,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// MultiPublisher fans an event out to several publishers. Every publisher is
// attempted; the errors are joined.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types lists recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
