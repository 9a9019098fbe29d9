package worker

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/motorworks/internal/telemetry"
)

// Job is a unit of periodic background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Config holds scheduler configuration
type Config struct {
	// WorkerID uniquely identifies this scheduler instance in logs
	WorkerID string

	// Interval is the default time between runs of a job
	Interval time.Duration

	// Timeout bounds a single run (0 = Interval)
	Timeout time.Duration

	// MaxConcurrency is the maximum number of jobs running at once
	MaxConcurrency int

	// ShutdownTimeout is how long Start waits for in-flight runs after
	// the context is cancelled
	ShutdownTimeout time.Duration
}

type entry struct {
	job      Job
	interval time.Duration
	running  sync.Mutex
}

// Scheduler runs registered jobs on their own tickers. A job never overlaps
// with itself; a tick that arrives while the previous run is still going is
// skipped.
type Scheduler struct {
	config  Config
	logger  *slog.Logger
	entries []*entry
	wg      sync.WaitGroup
}

// NewScheduler creates a new background job scheduler
func NewScheduler(config Config, logger *slog.Logger) *Scheduler {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.Interval == 0 {
		config.Interval = 5 * time.Minute
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 2
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{config: config, logger: logger}
}

// Register adds a job. A zero interval uses Config.Interval. Register must
// be called before Start.
func (s *Scheduler) Register(job Job, interval time.Duration) {
	if interval <= 0 {
		interval = s.config.Interval
	}
	s.entries = append(s.entries, &entry{job: job, interval: interval})
}

// Start runs every registered job once immediately and then on its ticker,
// until ctx is cancelled. It returns ctx.Err() after in-flight runs finish
// or ShutdownTimeout elapses.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("worker starting",
		"worker_id", s.config.WorkerID,
		"jobs", len(s.entries),
		"max_concurrency", s.config.MaxConcurrency,
	)

	// Semaphore for concurrency control
	sem := make(chan struct{}, s.config.MaxConcurrency)

	var loops sync.WaitGroup
	for _, e := range s.entries {
		loops.Add(1)
		go func() {
			defer loops.Done()
			s.loop(ctx, e, sem)
		}()
	}

	<-ctx.Done()
	s.logger.Info("worker shutting down", "worker_id", s.config.WorkerID)
	loops.Wait()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.config.ShutdownTimeout):
		s.logger.Warn("worker shutdown timed out with jobs still running",
			"worker_id", s.config.WorkerID,
			"timeout", s.config.ShutdownTimeout,
		)
	}
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, e *entry, sem chan struct{}) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	s.dispatch(ctx, e, sem)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx, e, sem)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry, sem chan struct{}) {
	if !e.running.TryLock() {
		s.logger.Debug("job still running, skipping tick", "job", e.job.Name())
		return
	}
	select {
	case sem <- struct{}{}:
	default:
		// At max concurrency, skip this tick
		e.running.Unlock()
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-sem }()
		defer e.running.Unlock()
		_ = s.RunOnce(ctx, e.job)
	}()
}

// RunOnce runs a single job synchronously with the configured timeout,
// recording metrics and converting a panic into an error.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) (err error) {
	name := job.Name()
	timeout := cmp.Or(s.config.Timeout, s.config.Interval)
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
			telemetry.CaptureError(err, map[string]any{"job": name})
		}

		if telemetry.Business != nil {
			telemetry.Business.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			if err != nil {
				telemetry.Business.JobsFailed.WithLabelValues(name).Inc()
			} else {
				telemetry.Business.JobsProcessed.WithLabelValues(name).Inc()
			}
		}

		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("job failed",
				"worker_id", s.config.WorkerID,
				"job", name,
				"duration", time.Since(start),
				"error", err,
			)
			return
		}
		s.logger.Debug("job completed", "job", name, "duration", time.Since(start))
	}()

	return job.Run(jobCtx)
}
