package dietjob

import (
	"context"
	"errors"
	"time"

	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Processor handles one trigger.
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

// WorkerConfig tunes the consumer loop and the recovery sweep.
type WorkerConfig struct {
	Concurrency   int
	PollWait      time.Duration
	SweepInterval time.Duration
	// IdleAfter is how long a job must sit untouched before the sweep
	// re-enqueues it.
	IdleAfter  time.Duration
	Lease      time.Duration
	SweepLimit int
}

// DefaultWorkerConfig returns the production defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Concurrency:   4,
		PollWait:      2 * time.Second,
		SweepInterval: time.Minute,
		IdleAfter:     time.Minute,
		Lease:         DefaultLease,
		SweepLimit:    100,
	}
}

// Worker consumes job triggers and periodically recovers stalled jobs.
type Worker struct {
	queue     outbound.JobQueue
	jobs      outbound.JobRepository
	processor Processor
	cfg       WorkerConfig
	now       func() time.Time
	logger    *zap.Logger
}

// NewWorker creates a worker.
func NewWorker(queue outbound.JobQueue, jobs outbound.JobRepository, processor Processor, cfg WorkerConfig, logger *zap.Logger) *Worker {
	def := DefaultWorkerConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PollWait <= 0 {
		cfg.PollWait = def.PollWait
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = def.IdleAfter
	}
	if cfg.Lease <= 0 {
		cfg.Lease = def.Lease
	}
	if cfg.SweepLimit <= 0 {
		cfg.SweepLimit = def.SweepLimit
	}
	return &Worker{
		queue:     queue,
		jobs:      jobs,
		processor: processor,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.Named("job-worker"),
	}
}

// Run blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Job worker started",
		zap.Int("concurrency", w.cfg.Concurrency),
		zap.Duration("sweep_interval", w.cfg.SweepInterval))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error { return w.consume(ctx) })
	}
	g.Go(func() error { return w.sweepLoop(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	w.logger.Info("Job worker stopped")
	return err
}

func (w *Worker) consume(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, err := w.queue.Dequeue(ctx, w.cfg.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("Dequeue failed", zap.Error(err))
			sleep(ctx, w.cfg.PollWait)
			continue
		}
		if id == "" {
			continue
		}
		if err := w.processor.Process(ctx, id); err != nil && ctx.Err() == nil {
			// The claim lease expires and the sweep picks the job up again.
			w.logger.Error("Job trigger failed", zap.String("job_id", id), zap.Error(err))
		}
	}
}

func (w *Worker) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("Sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep re-enqueues unfinished jobs that stalled and returns how many.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	now := w.now()
	ids, err := w.jobs.FindResumable(ctx, now.Add(-w.cfg.IdleAfter), now.Add(-w.cfg.Lease), w.cfg.SweepLimit)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := w.queue.Enqueue(ctx, id); err != nil {
			return 0, err
		}
	}
	if len(ids) > 0 {
		w.logger.Info("Stalled jobs re-enqueued", zap.Int("count", len(ids)))
	}
	return len(ids), nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
