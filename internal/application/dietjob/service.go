package dietjob

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/job"
	"github.com/alchemorsel/dietgen/internal/domain/shared"
	"github.com/alchemorsel/dietgen/internal/ports/inbound"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service implements the job entry points.
type Service struct {
	jobs      outbound.JobRepository
	diets     outbound.DietRepository
	queue     outbound.JobQueue
	catalog   FoodCatalog
	filter    FoodFilter
	planner   *Planner
	explainer Explainer
	payments  outbound.PaymentGateway
	events    shared.EventDispatcher
	validate  *validator.Validate
	now       func() time.Time
	logger    *zap.Logger
}

var _ inbound.DietJobService = (*Service)(nil)

// ServiceDeps groups the collaborators of Service.
type ServiceDeps struct {
	Jobs      outbound.JobRepository
	Diets     outbound.DietRepository
	Queue     outbound.JobQueue
	Catalog   FoodCatalog
	Filter    FoodFilter
	Planner   *Planner
	Explainer Explainer
	Payments  outbound.PaymentGateway
	Events    shared.EventDispatcher
	Now       func() time.Time
}

// NewService creates the job service.
func NewService(deps ServiceDeps, logger *zap.Logger) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		jobs:      deps.Jobs,
		diets:     deps.Diets,
		queue:     deps.Queue,
		catalog:   deps.Catalog,
		filter:    deps.Filter,
		planner:   deps.Planner,
		explainer: deps.Explainer,
		payments:  deps.Payments,
		events:    deps.Events,
		validate:  validator.New(),
		now:       now,
		logger:    logger.Named("diet-job-service"),
	}
}

// CreateJob validates the request, seeds a job and triggers its first step.
func (s *Service) CreateJob(ctx context.Context, cmd inbound.CreateJobCommand) (*inbound.CreateJobResult, error) {
	cmd.AIProvider = strings.ToUpper(strings.TrimSpace(cmd.AIProvider))
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := cmd.HealthProfile.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	id := cmd.JobID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := s.jobs.FindByID(ctx, id); err == nil {
		return nil, apperrors.NewConflictError("Já existe um pedido com este identificador.")
	} else if !errors.Is(err, job.ErrJobNotFound) {
		return nil, apperrors.NewDatabaseError("find job", err)
	}

	j, err := job.New(id, cmd.UserID, job.Input{
		HealthProfile: cmd.HealthProfile,
		Address:       cmd.Address,
		SelectedGoals: cmd.SelectedGoals,
		AIProvider:    cmd.AIProvider,
	}, s.now())
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	if err := s.jobs.Create(ctx, j); err != nil {
		return nil, apperrors.NewDatabaseError("create job", err)
	}
	s.events.Dispatch(j.Events()...)

	if err := s.queue.Enqueue(ctx, j.ID); err != nil {
		// The sweep picks up jobs whose first trigger was lost.
		s.logger.Warn("Failed to enqueue new job", zap.String("job_id", j.ID), zap.Error(err))
	}

	s.logger.Info("Diet job created",
		zap.String("job_id", j.ID),
		zap.String("user_id", j.UserID),
		zap.String("provider", j.Input.AIProvider))
	return &inbound.CreateJobResult{Success: true, JobID: j.ID}, nil
}

// GetJob returns the job if userID owns it.
func (s *Service) GetJob(ctx context.Context, jobID, userID string) (*inbound.JobDTO, error) {
	j, err := s.ownedJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	return inbound.NewJobDTO(j), nil
}

// CancelJob flags the job and cancels any charge already issued for it.
// The running step is not interrupted.
func (s *Service) CancelJob(ctx context.Context, jobID, userID string) error {
	j, err := s.ownedJob(ctx, jobID, userID)
	if err != nil {
		return err
	}
	if err := j.Cancel(userID, s.now()); err != nil {
		if errors.Is(err, job.ErrAlreadyDone) {
			return apperrors.NewConflictError("O pedido já foi finalizado.")
		}
		return apperrors.Wrap(err, "cancel job")
	}

	if err := s.jobs.MarkCancelled(ctx, j.ID, s.now()); err != nil {
		return apperrors.NewDatabaseError("mark job cancelled", err)
	}
	s.events.Dispatch(j.Events()...)
	s.cancelIssuedCharge(ctx, j.ID)

	if err := s.queue.Enqueue(ctx, j.ID); err != nil {
		s.logger.Warn("Failed to enqueue cancelled job", zap.String("job_id", j.ID), zap.Error(err))
	}
	s.logger.Info("Diet job cancellation requested", zap.String("job_id", j.ID))
	return nil
}

func (s *Service) cancelIssuedCharge(ctx context.Context, jobID string) {
	if s.payments == nil {
		return
	}
	d, err := s.diets.FindByJobID(ctx, jobID)
	if err != nil || d == nil || d.Charge == nil {
		return
	}
	if err := s.payments.CancelCharge(ctx, d.Charge.ID); err != nil {
		s.logger.Warn("Failed to cancel issued charge",
			zap.String("job_id", jobID),
			zap.String("charge_id", d.Charge.ID),
			zap.Error(err))
	}
}

// GetDiet returns the diet if userID owns it.
func (s *Service) GetDiet(ctx context.Context, dietID, userID string) (*diet.Diet, error) {
	return s.ownedDiet(ctx, dietID, userID)
}

// RecalculateDiet re-plans an existing diet with the budget flag forced on
// and replaces its charge.
func (s *Service) RecalculateDiet(ctx context.Context, dietID, userID string) (*diet.Diet, error) {
	d, err := s.ownedDiet(ctx, dietID, userID)
	if err != nil {
		return nil, err
	}

	provider := job.ProviderGemini
	if j, err := s.jobs.FindByID(ctx, d.JobID); err == nil && j.Input.AIProvider != "" {
		provider = j.Input.AIProvider
	}

	foods, err := s.catalog.ListAllFoods(ctx)
	if err != nil {
		return nil, err
	}
	allowed, err := s.filter.Filter(ctx, foods, d.HealthProfile, provider)
	if err != nil {
		return nil, err
	}
	if minimum := s.planner.Minimum(); len(allowed) < minimum {
		return nil, apperrors.NewInsufficientFoodsError(len(allowed), minimum)
	}

	prompt := d.InterpretedPrompt.WithBudgetFriendly()
	items, err := s.planner.Plan(allowed, prompt, d.Targets, d.HealthProfile.NormalizedSex())
	if err != nil {
		return nil, err
	}
	items = s.explainer.ExplainItems(ctx, items, prompt.GoalText(), provider)
	explanation := s.explainer.ExplainDiet(ctx, items, prompt, provider)

	previous := d.Charge
	if err := d.Recalculate(prompt, items, explanation, nil, s.now()); err != nil {
		return nil, apperrors.NewOptimizationFailedError(err.Error())
	}

	if s.payments != nil {
		charge, err := s.payments.CreateCharge(ctx, outbound.ChargeRequest{
			Reference:   d.ID,
			Amount:      d.TotalPrice,
			Description: "Pedido recalculado",
			UserID:      d.UserID,
		})
		if err != nil {
			return nil, apperrors.NewExternalServiceError("payment", err)
		}
		d.Charge = charge
	}

	if err := s.diets.Save(ctx, d); err != nil {
		return nil, apperrors.NewDatabaseError("save diet", err)
	}
	s.events.Dispatch(d.Events()...)

	if previous != nil && s.payments != nil {
		if err := s.payments.CancelCharge(ctx, previous.ID); err != nil {
			s.logger.Warn("Failed to cancel superseded charge", zap.String("charge_id", previous.ID), zap.Error(err))
		}
	}

	s.logger.Info("Diet recalculated",
		zap.String("diet_id", d.ID),
		zap.Int("items", len(items)),
		zap.Float64("total_price", d.TotalPrice))
	return d, nil
}

func (s *Service) ownedJob(ctx context.Context, jobID, userID string) (*job.Job, error) {
	j, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return nil, apperrors.NewNotFoundError("Pedido")
		}
		return nil, apperrors.NewDatabaseError("find job", err)
	}
	if j.UserID != "" && j.UserID != userID {
		return nil, apperrors.NewForbiddenError("")
	}
	return j, nil
}

func (s *Service) ownedDiet(ctx context.Context, dietID, userID string) (*diet.Diet, error) {
	d, err := s.diets.FindByID(ctx, dietID)
	if err != nil {
		if errors.Is(err, diet.ErrDietNotFound) {
			return nil, apperrors.NewNotFoundError("Dieta")
		}
		return nil, apperrors.NewDatabaseError("find diet", err)
	}
	if !d.OwnedBy(userID) {
		return nil, apperrors.NewForbiddenError("")
	}
	return d, nil
}

