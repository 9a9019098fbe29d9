package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/dukerupert/motorworks/internal/telemetry"
)

// Reference numbers are PREFIX-YYYYMMDD-NNNN with an independent daily
// sequence per scope.
const (
	orderNumberPrefix   = "ORD"
	bookingNumberPrefix = "BKG"

	scopeOrder   = "order"
	scopeBooking = "booking"

	maxNumberAttempts = 3
)

// errNumberTaken signals that the insert lost a race on the unique number
// index and the unit should be retried with a fresh number.
var errNumberTaken = errors.New("reference number already taken")

// FormatNumber renders a reference number for the given civil day.
func FormatNumber(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), seq)
}

// numberer allocates reference numbers from the store's per-day counter.
// Counter increments are not rolled back with a failed unit, so numbers
// may have gaps but are never handed out twice.
type numberer struct {
	q      repository.Querier
	loc    *time.Location
	logger *slog.Logger
}

func (n numberer) next(ctx context.Context, scope, prefix string, now time.Time) (string, error) {
	day := domain.CivilDate(now.In(n.loc))
	seq, err := n.q.NextSequence(ctx, scope, day)
	if err != nil {
		return "", err
	}
	return FormatNumber(prefix, day, seq), nil
}

// withNumber runs unit with freshly allocated numbers until it stops
// reporting errNumberTaken, up to maxNumberAttempts.
func (n numberer) withNumber(ctx context.Context, op, scope, prefix string, now time.Time, unit func(number string) error) error {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := n.next(ctx, scope, prefix, now)
		if err != nil {
			return domain.Internal(err, op, "failed to allocate reference number")
		}

		err = unit(number)
		if !errors.Is(err, errNumberTaken) {
			return err
		}

		if telemetry.Business != nil {
			telemetry.Business.NumberCollisions.WithLabelValues(scope).Inc()
		}
		n.logger.WarnContext(ctx, "reference number collision",
			"scope", scope,
			"number", number,
			"attempt", attempt,
		)
	}
	return domain.ErrNumberCollision.With(op, nil)
}
