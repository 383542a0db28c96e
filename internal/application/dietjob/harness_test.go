package dietjob

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/job"
	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
	"github.com/alchemorsel/dietgen/internal/domain/profile"
	"github.com/alchemorsel/dietgen/internal/domain/selection"
	"github.com/alchemorsel/dietgen/internal/infrastructure/events"
	"github.com/alchemorsel/dietgen/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/dietgen/internal/infrastructure/queue"
	"github.com/alchemorsel/dietgen/internal/ports/inbound"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"github.com/alchemorsel/dietgen/internal/testutils"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

type staticCatalog []food.Food

func (c staticCatalog) ListAllFoods(context.Context) ([]food.Food, error) {
	return append([]food.Food(nil), c...), nil
}

type fakeInterpreter struct {
	err   error
	calls int
}

func (f *fakeInterpreter) Interpret(_ context.Context, prompt, _ string) (*diet.InterpretedPrompt, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &diet.InterpretedPrompt{OriginalPrompt: prompt, Explanation: "dieta equilibrada"}, nil
}

// dairyFilter drops dairy when the profile mentions lactose.
type dairyFilter struct{}

func (dairyFilter) Filter(_ context.Context, foods []food.Food, p profile.HealthProfile, _ string) ([]food.Food, error) {
	if !p.HasRestrictions() {
		return foods, nil
	}
	var out []food.Food
	for _, f := range foods {
		if f.Category != food.CategoryDairy {
			out = append(out, f)
		}
	}
	return out, nil
}

type cannedExplainer struct{}

func (cannedExplainer) ExplainItems(_ context.Context, items []food.Item, _, _ string) []food.Item {
	out := append([]food.Item(nil), items...)
	for i := range out {
		out[i].Explanation = "bom para " + out[i].Food.StandardName
	}
	return out
}

func (cannedExplainer) ExplainDiet(_ context.Context, _ []food.Item, p diet.InterpretedPrompt, _ string) string {
	if p.IsBudgetFriendly {
		return "Uma semana econômica."
	}
	return "Uma semana equilibrada."
}

type passSafety struct{ err error }

func (s passSafety) Check(context.Context, []food.Item, profile.HealthProfile, string) error {
	return s.err
}

type fakePayments struct {
	mu        sync.Mutex
	n         int
	requests  []outbound.ChargeRequest
	cancelled []string
}

func (f *fakePayments) CreateCharge(_ context.Context, req outbound.ChargeRequest) (*diet.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	f.requests = append(f.requests, req)
	return &diet.Charge{ID: fmt.Sprintf("ch-%d", f.n), Amount: req.Amount, CreatedAt: fixedNow}, nil
}

func (f *fakePayments) CancelCharge(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

type harness struct {
	jobs        *memory.JobRepository
	diets       *memory.DietRepository
	queue       *queue.MemoryQueue
	events      *events.Dispatcher
	interpreter *fakeInterpreter
	payments    *fakePayments
	stages      *Stages
	orch        *Orchestrator
	svc         *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()
	now := func() time.Time { return fixedNow }

	h := &harness{
		jobs:        memory.NewJobRepository(),
		diets:       memory.NewDietRepository(),
		queue:       queue.NewMemoryQueue(64),
		events:      events.NewDispatcher(logger),
		interpreter: &fakeInterpreter{},
		payments:    &fakePayments{},
	}
	t.Cleanup(func() { _ = h.queue.Close() })

	catalog := staticCatalog(testutils.SampleCatalog())
	planner := NewPlanner(selection.NewSelector(), selection.NewQuantifier(), NewRandSource(42))

	h.stages = &Stages{
		Interpreter: h.interpreter,
		Calculator:  &nutrition.Calculator{Now: now},
		Catalog:     catalog,
		Filter:      dairyFilter{},
		Planner:     planner,
		Explainer:   cannedExplainer{},
		Safety:      passSafety{},
		Payments:    h.payments,
		Counters:    memory.NewCounterRepository(),
		Diets:       h.diets,
		Events:      h.events,
		Now:         now,
		Logger:      logger,
	}
	h.orch = NewOrchestrator(h.jobs, h.queue, h.stages, h.events, logger, WithClock(now))
	h.svc = NewService(ServiceDeps{
		Jobs:      h.jobs,
		Diets:     h.diets,
		Queue:     h.queue,
		Catalog:   catalog,
		Filter:    dairyFilter{},
		Planner:   planner,
		Explainer: cannedExplainer{},
		Payments:  h.payments,
		Events:    h.events,
		Now:       now,
	}, logger)
	return h
}

func (h *harness) create(t *testing.T, p profile.HealthProfile) string {
	t.Helper()
	res, err := h.svc.CreateJob(context.Background(), inbound.CreateJobCommand{
		UserID:        "user-1",
		HealthProfile: p,
		Address:       testutils.RandomAddress(1),
		SelectedGoals: []string{"quero ganhar massa muscular"},
		AIProvider:    "gemini",
	})
	require.NoError(t, err)
	return res.JobID
}

// drain processes triggers until the queue stays empty.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		id, err := h.queue.Dequeue(ctx, 5*time.Millisecond)
		require.NoError(t, err)
		if id == "" {
			return
		}
		require.NoError(t, h.orch.Process(ctx, id))
	}
	t.Fatal("queue did not settle")
}

func (h *harness) job(t *testing.T, id string) *job.Job {
	t.Helper()
	j, err := h.jobs.FindByID(context.Background(), id)
	require.NoError(t, err)
	return j
}
