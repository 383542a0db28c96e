package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"github.com/alchemorsel/dietgen/internal/testutils"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockCompleter is a mock implementation of outbound.Completer
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, provider string, req outbound.CompletionRequest) (string, error) {
	args := m.Called(ctx, provider, req)
	return args.String(0), args.Error(1)
}

type staticNames []string

func (s staticNames) ListFoodNames(context.Context) ([]string, error) { return s, nil }

// scriptedProvider replies with errs in order, then with reply.
type scriptedProvider struct {
	name  string
	reply string
	errs  []error
	mu    sync.Mutex
	calls int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(ctx context.Context, _ outbound.CompletionRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= len(p.errs) {
		return "", p.errs[p.calls-1]
	}
	return p.reply, nil
}

type blockingProvider struct{}

func (blockingProvider) Name() string { return "ollama" }

func (blockingProvider) Complete(ctx context.Context, _ outbound.CompletionRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type countingObserver struct {
	mu     sync.Mutex
	failed int
	ok     int
}

func (o *countingObserver) ObserveCompletion(_ string, _ int, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failed++
	} else {
		o.ok++
	}
}

var fastRetry = RetryPolicy{MaxAttempts: 3}

func TestCompletionServiceRetriesTransientFailures(t *testing.T) {
	p := &scriptedProvider{name: "gemini", reply: "ok", errs: []error{errors.New("503"), errors.New("timeout")}}
	obs := &countingObserver{}
	svc := NewCompletionService([]outbound.CompletionProvider{p}, Options{Retry: fastRetry, Observer: obs}, zap.NewNop())

	out, err := svc.Complete(context.Background(), "GEMINI", outbound.CompletionRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, 2, obs.failed)
	assert.Equal(t, 1, obs.ok)
}

func TestCompletionServiceGivesUpAfterMaxAttempts(t *testing.T) {
	boom := errors.New("connection refused")
	p := &scriptedProvider{name: "openai", errs: []error{boom, boom, boom, boom}}
	svc := NewCompletionService([]outbound.CompletionProvider{p}, Options{Retry: fastRetry}, zap.NewNop())

	_, err := svc.Complete(context.Background(), "openai", outbound.CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeExternalServiceError, apperrors.GetCode(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, p.calls)
}

func TestCompletionServiceRetriesEmptyReplies(t *testing.T) {
	p := &scriptedProvider{name: "gemini", reply: "   "}
	svc := NewCompletionService([]outbound.CompletionProvider{p}, Options{Retry: RetryPolicy{MaxAttempts: 2}}, zap.NewNop())

	_, err := svc.Complete(context.Background(), "gemini", outbound.CompletionRequest{})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
	assert.Equal(t, 2, p.calls)
}

func TestCompletionServiceRejectsUnknownProvider(t *testing.T) {
	svc := NewCompletionService(nil, Options{Retry: fastRetry}, zap.NewNop())
	_, err := svc.Complete(context.Background(), "CLAUDIUS", outbound.CompletionRequest{})
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.GetCode(err))
}

func TestCompletionServiceBoundsEachCall(t *testing.T) {
	svc := NewCompletionService(
		[]outbound.CompletionProvider{blockingProvider{}},
		Options{Retry: RetryPolicy{MaxAttempts: 1}, Timeout: 20 * time.Millisecond},
		zap.NewNop(),
	)
	start := time.Now()
	_, err := svc.Complete(context.Background(), "OLLAMA", outbound.CompletionRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRetryPolicyStopsOnPermanentError(t *testing.T) {
	bad := errors.New("bad request")
	attempts, err := fastRetry.Do(context.Background(), func(int) error { return Permanent(bad) })
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, bad)
}

func TestInterpreterForcesBudgetFlagFromPrompt(t *testing.T) {
	c := new(MockCompleter)
	c.On("Complete", mock.Anything, "GEMINI", mock.MatchedBy(func(r outbound.CompletionRequest) bool { return r.JSON })).
		Return("```json\n"+`{"interpretationStatus":"SUCCESS","applicableGoalKeys":["weight_maintenance","fly"],`+
			`"prioritizedNutrients":["proteína","unobtainium"],"foodsToInclude":[" arroz "],"foodsToAvoid":[],`+
			`"explanation":"Dieta econômica.","isBudgetFriendly":false}`+"\n```", nil)

	in := NewInterpreter(c, staticNames{"Arroz Branco", "Feijão Preto"}, 10, zap.NewNop())
	got, err := in.Interpret(context.Background(), "quero uma dieta bem barata", "GEMINI")
	require.NoError(t, err)

	assert.True(t, got.IsBudgetFriendly)
	assert.Equal(t, "quero uma dieta bem barata", got.OriginalPrompt)
	assert.Equal(t, []nutrition.GoalKey{nutrition.GoalWeightMaintenance}, got.ApplicableGoalKeys)
	assert.Equal(t, []string{nutrition.Protein}, got.PrioritizedNutrients)
	assert.Equal(t, []string{"arroz"}, got.FoodsToInclude)
	c.AssertExpectations(t)
}

func TestInterpreterFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		code  apperrors.ErrorCode
	}{
		{"failure status", `{"interpretationStatus":"FAILURE","explanation":"sem relação"}`, apperrors.CodePromptNotUnderstood},
		{"missing status", `{"applicableGoalKeys":[]}`, apperrors.CodeInternal},
		{"invalid status", `{"interpretationStatus":"MAYBE"}`, apperrors.CodeInternal},
		{"not json", `desculpe, não entendi`, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := new(MockCompleter)
			c.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(tt.reply, nil)

			_, err := NewInterpreter(c, staticNames{}, 0, zap.NewNop()).Interpret(context.Background(), "algo", "OPENAI")
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetCode(err))
		})
	}
}

func TestSampleUsesEvenStride(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	assert.Equal(t, []string{"a", "c", "e", "g"}, sample(names, 4))
	assert.Equal(t, names, sample(names, 20))
}

func lactoseCatalog() []food.Food {
	return []food.Food{
		{ID: "leite", StandardName: "Leite Integral", Category: food.CategoryDairy},
		{ID: "queijo", StandardName: "Queijo Minas", Category: food.CategoryDairy},
		{ID: "maca", StandardName: "Maçã", Category: food.CategoryFruit},
	}
}

func TestRestrictionFilterSkipsCallWithoutRestrictions(t *testing.T) {
	c := new(MockCompleter)
	catalog := testutils.SampleCatalog()

	got, err := NewRestrictionFilter(c, zap.NewNop()).Filter(context.Background(), catalog, testutils.NewProfileBuilder().Build(), "GEMINI")
	require.NoError(t, err)
	assert.Equal(t, catalog, got)
	c.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestRestrictionFilterExcludesDairyForLactose(t *testing.T) {
	p := testutils.NewProfileBuilder().WithAllergies("lactose").Build()

	for _, reply := range []string{`["Maçã"]`, `["Leite Integral","Queijo Minas","maca"]`} {
		c := new(MockCompleter)
		c.On("Complete", mock.Anything, "GEMINI", mock.Anything).Return(reply, nil)

		got, err := NewRestrictionFilter(c, zap.NewNop()).Filter(context.Background(), lactoseCatalog(), p, "GEMINI")
		require.NoError(t, err)
		assert.Equal(t, []string{"maca"}, food.IDs(got), reply)
	}
}

func TestRestrictionFilterMatchesSynonyms(t *testing.T) {
	c := new(MockCompleter)
	c.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(`["aipim", "Arroz Branco"]`, nil)

	catalog := testutils.SampleCatalog()
	p := testutils.NewProfileBuilder().WithAllergies("amendoim").Build()
	got, err := NewRestrictionFilter(c, zap.NewNop()).Filter(context.Background(), catalog, p, "GEMINI")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"arroz-branco", "mandioca"}, food.IDs(got))
}

func TestRestrictionFilterRejectsNonArray(t *testing.T) {
	c := new(MockCompleter)
	c.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(`{"allowed": "tudo"}`, nil)

	p := testutils.NewProfileBuilder().WithRestrictions("vegano").Build()
	_, err := NewRestrictionFilter(c, zap.NewNop()).Filter(context.Background(), lactoseCatalog(), p, "GEMINI")
	assert.Equal(t, apperrors.CodeInternal, apperrors.GetCode(err))
}

func sampleItems() []food.Item {
	catalog := testutils.SampleCatalog()
	return []food.Item{
		food.NewItem("1", catalog[0], 700),
		food.NewItem("2", catalog[1], 300),
	}
}

func TestExplainItemsUsesReplyAndFallsBackPerItem(t *testing.T) {
	items := sampleItems()
	c := new(MockCompleter)
	c.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"`+items[0].Food.ID+`": "Fonte magra de proteína para ganho de massa."}`, nil)

	got := NewExplainer(c, zap.NewNop()).ExplainItems(context.Background(), items, "ganhar massa", "GEMINI")
	require.Len(t, got, 2)
	assert.Equal(t, "Fonte magra de proteína para ganho de massa.", got[0].Explanation)
	assert.Equal(t, FallbackItemExplanation, got[1].Explanation)
	assert.Empty(t, items[0].Explanation)
}

func TestExplainerNeverFails(t *testing.T) {
	items := sampleItems()
	c := new(MockCompleter)
	c.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", apperrors.NewExternalServiceError("GEMINI", errors.New("down")))

	e := NewExplainer(c, zap.NewNop())
	for _, it := range e.ExplainItems(context.Background(), items, "x", "GEMINI") {
		assert.Equal(t, FallbackItemExplanation, it.Explanation)
	}
	assert.Equal(t, FallbackDietExplanation, e.ExplainDiet(context.Background(), items, diet.InterpretedPrompt{}, "GEMINI"))
}

func TestExplainDietReturnsProse(t *testing.T) {
	c := new(MockCompleter)
	c.On("Complete", mock.Anything, "OPENAI", mock.MatchedBy(func(r outbound.CompletionRequest) bool { return !r.JSON })).
		Return("  Sua dieta prioriza frango e ovos.  ", nil)

	got := NewExplainer(c, zap.NewNop()).ExplainDiet(context.Background(), sampleItems(), diet.InterpretedPrompt{OriginalPrompt: "massa"}, "OPENAI")
	assert.Equal(t, "Sua dieta prioriza frango e ovos.", got)
}

func TestSafetyChecker(t *testing.T) {
	p := testutils.NewProfileBuilder().WithAllergies("lactose").Build()

	t.Run("conflict", func(t *testing.T) {
		c := new(MockCompleter)
		c.On("Complete", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"hasConflict":true,"conflictingFoods":["Queijo Minas"],"reason":"laticínio"}`, nil)
		err := NewSafetyChecker(c, zap.NewNop()).Check(context.Background(), sampleItems(), p, "GEMINI")
		assert.Equal(t, apperrors.CodeSafetyConflict, apperrors.GetCode(err))
	})

	t.Run("clean", func(t *testing.T) {
		c := new(MockCompleter)
		c.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(`{"hasConflict":false}`, nil)
		assert.NoError(t, NewSafetyChecker(c, zap.NewNop()).Check(context.Background(), sampleItems(), p, "GEMINI"))
	})

	t.Run("no restrictions", func(t *testing.T) {
		c := new(MockCompleter)
		assert.NoError(t, NewSafetyChecker(c, zap.NewNop()).Check(context.Background(), sampleItems(), testutils.NewProfileBuilder().Build(), "GEMINI"))
		c.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
	})
}
