// Package dietjob drives diet generation jobs: the per-status stages, the
// orchestrator that runs one stage per trigger, the worker that consumes
// triggers, and the service behind the public entry points.
package dietjob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/job"
	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
	"github.com/alchemorsel/dietgen/internal/domain/profile"
	"github.com/alchemorsel/dietgen/internal/domain/shared"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderCounter names the global sequence behind diet order numbers.
const OrderCounter = "orders"

// PromptInterpreter structures the free-text request.
type PromptInterpreter interface {
	Interpret(ctx context.Context, prompt, provider string) (*diet.InterpretedPrompt, error)
}

// TargetCalculator derives daily nutritional targets.
type TargetCalculator interface {
	Calculate(p profile.HealthProfile, goals []nutrition.GoalKey) (*nutrition.Targets, error)
}

// FoodCatalog lists every catalog food.
type FoodCatalog interface {
	ListAllFoods(ctx context.Context) ([]food.Food, error)
}

// FoodFilter removes foods that conflict with the profile's restrictions.
type FoodFilter interface {
	Filter(ctx context.Context, foods []food.Food, p profile.HealthProfile, provider string) ([]food.Food, error)
}

// Explainer writes rationale text. It never fails.
type Explainer interface {
	ExplainItems(ctx context.Context, items []food.Item, goal, provider string) []food.Item
	ExplainDiet(ctx context.Context, items []food.Item, prompt diet.InterpretedPrompt, provider string) string
}

// SafetyChecker cross-checks the final list against restrictions.
type SafetyChecker interface {
	Check(ctx context.Context, items []food.Item, p profile.HealthProfile, provider string) error
}

// StageRunner executes the work bound to a job's current status.
type StageRunner interface {
	Run(ctx context.Context, j *job.Job) (job.Event, error)
}

// Compensator undoes the side effects of a step result that was not
// committed. The orchestrator calls it with the diet the result named.
type Compensator interface {
	Compensate(ctx context.Context, dietID string)
}

// Delivery quotes the store-to-address ride. Both collaborators are optional.
type Delivery struct {
	Geocoder  outbound.Geocoder
	Rides     outbound.RideEstimator
	StoreFrom outbound.Coordinates
}

// Stages holds the collaborators of every pipeline step.
type Stages struct {
	Interpreter PromptInterpreter
	Calculator  TargetCalculator
	Catalog     FoodCatalog
	Filter      FoodFilter
	Planner     *Planner
	Explainer   Explainer
	Safety      SafetyChecker
	Delivery    Delivery
	Payments    outbound.PaymentGateway
	Counters    outbound.CounterRepository
	Diets       outbound.DietRepository
	Events      shared.EventDispatcher
	Now         func() time.Time
	Logger      *zap.Logger
}

var (
	_ StageRunner = (*Stages)(nil)
	_ Compensator = (*Stages)(nil)
)

// Run executes the stage for j.Status and reports its outcome as an event.
func (s *Stages) Run(ctx context.Context, j *job.Job) (job.Event, error) {
	switch j.Status {
	case job.StatusStarting:
		return succeeded(job.IntermediateData{}, "Iniciando a geração da sua dieta."), nil
	case job.StatusInterpreting:
		return s.interpret(ctx, j)
	case job.StatusAnalyzing:
		return s.analyze(j)
	case job.StatusSelecting:
		return s.filter(ctx, j)
	case job.StatusConsulting:
		return s.consult(ctx, j)
	case job.StatusFinalizing:
		return s.finalize(ctx, j)
	}
	return job.Event{}, apperrors.NewInternalError(fmt.Sprintf("%v: %q", job.ErrUnknownStatus, j.Status))
}

func succeeded(data job.IntermediateData, lines ...string) job.Event {
	return job.Event{Kind: job.EventStepSucceeded, Data: data, Log: lines}
}

func (s *Stages) interpret(ctx context.Context, j *job.Job) (job.Event, error) {
	p, err := s.Interpreter.Interpret(ctx, j.Input.Prompt(), j.Input.AIProvider)
	if err != nil {
		return job.Event{}, err
	}
	line := "Pedido interpretado."
	if p.Explanation != "" {
		line = "Pedido interpretado: " + p.Explanation
	}
	return succeeded(job.IntermediateData{InterpretedPrompt: p}, line), nil
}

func (s *Stages) analyze(j *job.Job) (job.Event, error) {
	prompt, err := j.Intermediate.RequirePrompt()
	if err != nil {
		return job.Event{}, err
	}
	targets, err := s.Calculator.Calculate(j.Input.HealthProfile, prompt.ApplicableGoalKeys)
	if err != nil {
		return job.Event{}, classifyTargetsError(err)
	}
	return succeeded(job.IntermediateData{Targets: targets},
		fmt.Sprintf("Metas calculadas: %.0f kcal e %.0f g de proteína por dia.", targets.Daily.EnergyKcal, targets.Daily.ProteinG),
	), nil
}

func classifyTargetsError(err error) error {
	switch {
	case errors.Is(err, nutrition.ErrInvalidProfile):
		return apperrors.NewValidationError(err.Error())
	case errors.Is(err, nutrition.ErrNegativeMacro):
		return apperrors.NewTargetsInvalidError(err.Error())
	}
	return apperrors.Wrap(err, "target calculation failed")
}

func (s *Stages) filter(ctx context.Context, j *job.Job) (job.Event, error) {
	foods, err := s.Catalog.ListAllFoods(ctx)
	if err != nil {
		return job.Event{}, err
	}
	allowed, err := s.Filter.Filter(ctx, foods, j.Input.HealthProfile, j.Input.AIProvider)
	if err != nil {
		return job.Event{}, err
	}
	if minimum := s.Planner.Minimum(); len(allowed) < minimum {
		return job.Event{}, apperrors.NewInsufficientFoodsError(len(allowed), minimum)
	}
	return succeeded(
		job.IntermediateData{Allowed: &job.AllowList{FoodIDs: food.IDs(allowed), Filtered: j.Input.HealthProfile.HasRestrictions()}},
		fmt.Sprintf("%d alimentos compatíveis com o seu perfil.", len(allowed)),
	), nil
}

func (s *Stages) consult(ctx context.Context, j *job.Job) (job.Event, error) {
	prompt, err := j.Intermediate.RequirePrompt()
	if err != nil {
		return job.Event{}, err
	}
	targets, err := j.Intermediate.RequireTargets()
	if err != nil {
		return job.Event{}, err
	}
	allow, err := j.Intermediate.RequireAllowed()
	if err != nil {
		return job.Event{}, err
	}

	foods, err := s.Catalog.ListAllFoods(ctx)
	if err != nil {
		return job.Event{}, err
	}
	items, err := s.Planner.Plan(food.FilterByIDs(foods, allow.FoodIDs), prompt, targets, j.Input.HealthProfile.NormalizedSex())
	if err != nil {
		return job.Event{}, err
	}

	provider := j.Input.AIProvider
	items = s.Explainer.ExplainItems(ctx, items, prompt.GoalText(), provider)
	explanation := s.Explainer.ExplainDiet(ctx, items, prompt, provider)

	return succeeded(
		job.IntermediateData{Selection: &job.Selection{Items: items, Explanation: explanation}},
		fmt.Sprintf("%d alimentos selecionados e quantificados para a semana.", len(items)),
	), nil
}

func (s *Stages) finalize(ctx context.Context, j *job.Job) (job.Event, error) {
	if ev, done, err := s.emitted(ctx, j); done || err != nil {
		return ev, err
	}

	prompt, err := j.Intermediate.RequirePrompt()
	if err != nil {
		return job.Event{}, err
	}
	targets, err := j.Intermediate.RequireTargets()
	if err != nil {
		return job.Event{}, err
	}
	sel, err := j.Intermediate.RequireSelection()
	if err != nil {
		return job.Event{}, err
	}

	if err := s.Safety.Check(ctx, sel.Items, j.Input.HealthProfile, j.Input.AIProvider); err != nil {
		return job.Event{}, err
	}

	delivery, err := s.quoteDelivery(ctx, j.Input.Address)
	if err != nil {
		return job.Event{}, err
	}

	// The checks above can outlast a claim; look again before charging.
	if ev, done, err := s.emitted(ctx, j); done || err != nil {
		return ev, err
	}

	number, err := s.Counters.Next(ctx, OrderCounter)
	if err != nil {
		return job.Event{}, apperrors.NewDatabaseError("issue order number", err)
	}

	now := s.Now()
	d, err := diet.New(diet.Draft{
		ID:                uuid.NewString(),
		OrderNumber:       number,
		UserID:            j.UserID,
		JobID:             j.ID,
		HealthProfile:     j.Input.HealthProfile,
		Address:           j.Input.Address,
		Targets:           targets,
		InterpretedPrompt: prompt,
		Items:             sel.Items,
		Explanation:       sel.Explanation,
		Delivery:          delivery,
	}, now)
	if err != nil {
		return job.Event{}, apperrors.NewOptimizationFailedError(err.Error())
	}

	if s.Payments != nil {
		charge, err := s.Payments.CreateCharge(ctx, outbound.ChargeRequest{
			Reference:   j.ID,
			Amount:      d.TotalPrice,
			Description: fmt.Sprintf("Pedido #%d", number),
			UserID:      j.UserID,
		})
		if err != nil {
			return job.Event{}, apperrors.NewExternalServiceError("payment", err)
		}
		d.Charge = charge
	}

	if err := s.Diets.Save(ctx, d); err != nil {
		s.voidCharge(ctx, j.ID, d.Charge)
		if errors.Is(err, diet.ErrDietExists) {
			if ev, done, findErr := s.emitted(ctx, j); done || findErr != nil {
				return ev, findErr
			}
		}
		return job.Event{}, apperrors.NewDatabaseError("save diet", err)
	}
	if s.Events != nil {
		s.Events.Dispatch(d.Events()...)
	}

	return job.Event{
		Kind:   job.EventStepSucceeded,
		DietID: d.ID,
		Log:    []string{fmt.Sprintf("Pedido #%d criado. Total: R$ %.2f.", number, d.TotalPrice)},
	}, nil
}

// emitted reports the diet already saved for j, if any.
func (s *Stages) emitted(ctx context.Context, j *job.Job) (job.Event, bool, error) {
	existing, err := s.Diets.FindByJobID(ctx, j.ID)
	if errors.Is(err, diet.ErrDietNotFound) {
		return job.Event{}, false, nil
	}
	if err != nil {
		return job.Event{}, false, apperrors.NewDatabaseError("find diet by job", err)
	}
	s.Logger.Info("Diet already emitted for job", zap.String("job_id", j.ID), zap.String("diet_id", existing.ID))
	return job.Event{
		Kind:   job.EventStepSucceeded,
		DietID: existing.ID,
		Log:    []string{fmt.Sprintf("Pedido #%d criado.", existing.OrderNumber)},
	}, true, nil
}

// Compensate cancels the payment hold of a diet the job did not end up
// pointing at.
func (s *Stages) Compensate(ctx context.Context, dietID string) {
	d, err := s.Diets.FindByID(ctx, dietID)
	if err != nil {
		if !errors.Is(err, diet.ErrDietNotFound) {
			s.Logger.Warn("Failed to load diet to compensate", zap.String("diet_id", dietID), zap.Error(err))
		}
		return
	}
	s.voidCharge(ctx, d.JobID, d.Charge)
}

func (s *Stages) voidCharge(ctx context.Context, jobID string, charge *diet.Charge) {
	if s.Payments == nil || charge == nil {
		return
	}
	// The step context may be the reason we are here.
	if err := s.Payments.CancelCharge(context.WithoutCancel(ctx), charge.ID); err != nil {
		s.Logger.Warn("Failed to cancel charge",
			zap.String("job_id", jobID),
			zap.String("charge_id", charge.ID),
			zap.Error(err))
		return
	}
	s.Logger.Info("Charge cancelled", zap.String("job_id", jobID), zap.String("charge_id", charge.ID))
}

func (s *Stages) quoteDelivery(ctx context.Context, addr profile.Address) (*diet.Delivery, error) {
	if s.Delivery.Geocoder == nil || s.Delivery.Rides == nil {
		return nil, nil
	}
	to, err := s.Delivery.Geocoder.Geocode(ctx, addr)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("geocoder", err)
	}
	quote, err := s.Delivery.Rides.Estimate(ctx, s.Delivery.StoreFrom, to)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("ride estimator", err)
	}
	return &quote, nil
}
