package dietjob

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/job"
	"github.com/alchemorsel/dietgen/internal/domain/shared"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultLease is how long a step claim blocks other deliveries without
// being renewed. A running stage renews its claim every third of the lease.
const DefaultLease = 5 * time.Minute

// Step outcomes reported to Metrics.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeSkipped   = "skipped"
)

// Metrics records pipeline activity.
type Metrics interface {
	ObserveStep(status job.Status, outcome string, duration time.Duration)
	JobFinished(status job.Status)
}

type nopMetrics struct{}

func (nopMetrics) ObserveStep(job.Status, string, time.Duration) {}
func (nopMetrics) JobFinished(job.Status)                        {}

// Orchestrator executes one step per trigger. It is the only writer of
// step results.
type Orchestrator struct {
	jobs    outbound.JobRepository
	queue   outbound.JobQueue
	stages  StageRunner
	events  shared.EventDispatcher
	metrics Metrics
	tracer  trace.Tracer
	lease   time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) OrchestratorOption {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithLease sets the step claim lease.
func WithLease(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.lease = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(
	jobs outbound.JobRepository,
	queue outbound.JobQueue,
	stages StageRunner,
	events shared.EventDispatcher,
	logger *zap.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		jobs:    jobs,
		queue:   queue,
		stages:  stages,
		events:  events,
		metrics: nopMetrics{},
		tracer:  otel.Tracer("github.com/alchemorsel/dietgen/pipeline"),
		lease:   DefaultLease,
		now:     time.Now,
		logger:  logger.Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process handles one trigger for jobID. Finished jobs and steps already
// claimed by another delivery are no-ops.
func (o *Orchestrator) Process(ctx context.Context, jobID string) error {
	j, err := o.jobs.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			o.logger.Warn("Trigger for unknown job dropped", zap.String("job_id", jobID))
			return nil
		}
		return err
	}
	if j.Finished {
		return nil
	}

	status := j.Status
	log := o.logger.With(zap.String("job_id", j.ID), zap.String("status", string(status)))

	claimedAt := o.claimTime()
	claimed, err := o.jobs.ClaimStep(ctx, j.ID, status, claimedAt, o.lease)
	if err != nil {
		return err
	}
	if !claimed {
		log.Debug("Step already claimed, skipping")
		o.metrics.ObserveStep(status, OutcomeSkipped, 0)
		return nil
	}

	start := time.Now()
	var ev job.Event
	if j.IsCancelled {
		ev = job.Event{Kind: job.EventCancelObserved}
	} else {
		stageCtx, release := o.holdClaim(ctx, j.ID, status, claimedAt)
		ev, err = o.runStage(stageCtx, j)
		lost := release()
		if err != nil {
			if lost && ctx.Err() == nil {
				log.Warn("Step claim lost while the stage ran, result discarded")
				o.metrics.ObserveStep(status, OutcomeSkipped, time.Since(start))
				return nil
			}
			// Shutdown mid-stage: leave the claim to expire so the sweep resumes it.
			return err
		}
		if ev.DietID != "" {
			ev = o.observeLateCancel(ctx, j, ev)
		}
	}

	next, effects := job.Transition(j.State(), ev)
	j.Apply(next, effects, o.now())

	if err := o.jobs.CommitStep(ctx, j, status); err != nil {
		if errors.Is(err, job.ErrStaleJobUpdate) {
			log.Warn("Job moved on while the step ran, result discarded")
			o.discard(ctx, j.ID, ev.DietID)
			return nil
		}
		return err
	}

	o.metrics.ObserveStep(status, outcome(ev.Kind), time.Since(start))
	o.events.Dispatch(j.Events()...)

	if j.Finished {
		o.metrics.JobFinished(j.Status)
		log.Info("Job finished", zap.String("final_status", string(j.Status)), zap.String("diet_id", j.DietID))
		return nil
	}
	return o.queue.Enqueue(ctx, j.ID)
}

func (o *Orchestrator) claimTime() time.Time {
	return o.now().UTC().Truncate(time.Microsecond)
}

// holdClaim renews the step claim every third of the lease until release
// is called. When the claim is taken by another delivery the returned
// context is cancelled and release reports true.
func (o *Orchestrator) holdClaim(ctx context.Context, id string, status job.Status, claimedAt time.Time) (context.Context, func() bool) {
	stageCtx, cancel := context.WithCancel(ctx)
	interval := o.lease / 3
	if interval <= 0 {
		return stageCtx, func() bool { cancel(); return false }
	}

	var lost atomic.Bool
	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				next := o.claimTime()
				ok, err := o.jobs.RenewClaim(ctx, id, status, claimedAt, next)
				if err != nil {
					o.logger.Warn("Failed to renew step claim", zap.String("job_id", id), zap.Error(err))
					continue
				}
				if !ok {
					lost.Store(true)
					cancel()
					return
				}
				claimedAt = next
			}
		}
	}()

	return stageCtx, func() bool {
		close(stop)
		<-stopped
		cancel()
		return lost.Load()
	}
}

// observeLateCancel turns a finished diet into a cancellation when the
// user cancelled while the diet was being emitted.
func (o *Orchestrator) observeLateCancel(ctx context.Context, j *job.Job, ev job.Event) job.Event {
	cur, err := o.jobs.FindByID(ctx, j.ID)
	if err != nil {
		o.logger.Warn("Failed to re-read job after emitting diet", zap.String("job_id", j.ID), zap.Error(err))
		return ev
	}
	if !cur.IsCancelled {
		return ev
	}
	o.logger.Info("Job cancelled while the diet was emitted", zap.String("job_id", j.ID), zap.String("diet_id", ev.DietID))
	o.compensate(ctx, ev.DietID)
	j.IsCancelled = true
	return job.Event{Kind: job.EventCancelObserved}
}

// discard compensates a diet emitted by a step whose commit lost, unless
// the committed job points at the same diet.
func (o *Orchestrator) discard(ctx context.Context, jobID, dietID string) {
	if dietID == "" {
		return
	}
	cur, err := o.jobs.FindByID(ctx, jobID)
	if err != nil {
		o.logger.Warn("Failed to re-read job after stale commit", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if cur.DietID == dietID {
		return
	}
	o.compensate(ctx, dietID)
}

func (o *Orchestrator) compensate(ctx context.Context, dietID string) {
	if c, ok := o.stages.(Compensator); ok {
		c.Compensate(ctx, dietID)
	}
}

// runStage returns a failure event for every stage error except a done
// context, which it returns as an error.
func (o *Orchestrator) runStage(ctx context.Context, j *job.Job) (ev job.Event, err error) {
	ctx, span := o.tracer.Start(ctx, "dietjob.stage",
		trace.WithAttributes(
			attribute.String("job.id", j.ID),
			attribute.String("job.status", string(j.Status)),
			attribute.String("ai.provider", j.Input.AIProvider),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Stage panicked",
				zap.String("job_id", j.ID),
				zap.String("status", string(j.Status)),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			ev, err = failed(apperrors.NewInternalError(fmt.Sprintf("stage panicked: %v", r))), nil
			span.SetStatus(codes.Error, "panic")
		}
	}()

	ev, stageErr := o.stages.Run(ctx, j)
	if stageErr == nil {
		return ev, nil
	}
	if ctx.Err() != nil {
		return job.Event{}, ctx.Err()
	}

	span.RecordError(stageErr)
	span.SetStatus(codes.Error, string(apperrors.GetCode(stageErr)))
	o.logger.Error("Stage failed",
		zap.String("job_id", j.ID),
		zap.String("status", string(j.Status)),
		zap.String("user_id", j.UserID),
		zap.String("code", string(apperrors.GetCode(stageErr))),
		zap.Error(stageErr))
	return failed(stageErr), nil
}

// failed classifies err into a failure event. Only AppErrors keep their
// message; anything else is stored with the generic one.
func failed(err error) job.Event {
	f := &job.Failure{
		Code:    string(apperrors.CodeInternal),
		Message: apperrors.GenericMessage,
		Details: err.Error(),
	}
	if appErr, ok := apperrors.As(err); ok {
		f.Code = string(appErr.Code)
		f.Message = appErr.Message
		f.Details = appErr.Details
	}
	return job.Event{Kind: job.EventStepFailed, Failure: f}
}

func outcome(k job.EventKind) string {
	switch k {
	case job.EventStepFailed:
		return OutcomeFailed
	case job.EventCancelObserved:
		return OutcomeCancelled
	}
	return OutcomeSucceeded
}
