// Package service implements the commerce workflows: cart, order, booking
// and payment. Each mutating call runs as one repository.Store transaction;
// provider calls happen outside any transaction.
package service

import (
	"context"

	"github.com/dukerupert/motorworks/internal/notify"
)

// publish emits a trigger event after a unit of work has committed.
// Delivery failures are logged and never fail the workflow.
func (o Options) publish(ctx context.Context, eventType, aggregateID string, data map[string]any) {
	ev := notify.NewEvent(eventType, aggregateID, o.Now(), data)
	if err := o.Events.Publish(ctx, ev); err != nil {
		o.Logger.WarnContext(ctx, "failed to publish event",
			"event_type", eventType,
			"aggregate_id", aggregateID,
			"error", err,
		)
	}
}

func ptr[T any](v T) *T {
	return &v
}
