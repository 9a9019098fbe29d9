package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/motorworks/internal/repository"
	"github.com/dukerupert/motorworks/internal/telemetry"
)

// Job name constants for cleanup jobs
const (
	JobCartSweep = "cleanup:expired_carts"
)

// DefaultSweepBatchSize bounds one delete statement so a large backlog does
// not hold row locks for long.
const DefaultSweepBatchSize = 500

// SweepResult holds the result of a cleanup operation
type SweepResult struct {
	CartsDeleted int `json:"carts_deleted"`
	Batches      int `json:"batches"`
}

// CartSweeper deletes carts whose expiry has passed, together with their
// items. Carts locked by an in-flight checkout are skipped and picked up by
// a later run, so running it repeatedly or concurrently is safe.
type CartSweeper struct {
	q         repository.Querier
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// NewCartSweeper creates a sweeper. A batchSize of 0 uses DefaultSweepBatchSize.
func NewCartSweeper(q repository.Querier, batchSize int, now func() time.Time, logger *slog.Logger) *CartSweeper {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CartSweeper{q: q, batchSize: batchSize, now: now, logger: logger}
}

// Name identifies the job in logs and metrics.
func (s *CartSweeper) Name() string {
	return JobCartSweep
}

// Run deletes expired carts in batches until a batch comes back short.
func (s *CartSweeper) Run(ctx context.Context) error {
	_, err := s.Sweep(ctx)
	return err
}

// Sweep is Run with the per-run counts.
func (s *CartSweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}
	cutoff := s.now()

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		n, err := s.q.DeleteExpiredCarts(ctx, cutoff, s.batchSize)
		if err != nil {
			return result, fmt.Errorf("failed to delete expired carts: %w", err)
		}
		result.Batches++
		result.CartsDeleted += n
		if telemetry.Business != nil {
			telemetry.Business.CartsSwept.Add(float64(n))
		}

		if n < s.batchSize {
			break
		}
	}

	if result.CartsDeleted > 0 {
		s.logger.InfoContext(ctx, "expired carts swept",
			"deleted", result.CartsDeleted,
			"batches", result.Batches,
		)
	}
	return result, nil
}
