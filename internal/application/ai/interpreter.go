package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
	"github.com/alchemorsel/dietgen/internal/domain/text"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"go.uber.org/zap"
)

// DefaultSampleSize bounds the catalog names sent with an interpretation request.
const DefaultSampleSize = 60

// budgetTerms force the budget flag regardless of what the provider says.
var budgetTerms = []string{"barat", "econom", "baixo custo", "pouco dinheiro", "cheap", "budget"}

// FoodNameSource lists catalog food names.
type FoodNameSource interface {
	ListFoodNames(ctx context.Context) ([]string, error)
}

// Interpreter turns the free-text request into an InterpretedPrompt.
type Interpreter struct {
	completer  outbound.Completer
	names      FoodNameSource
	sampleSize int
	logger     *zap.Logger
}

// NewInterpreter creates an interpreter. A sampleSize <= 0 uses DefaultSampleSize.
func NewInterpreter(completer outbound.Completer, names FoodNameSource, sampleSize int, logger *zap.Logger) *Interpreter {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Interpreter{
		completer:  completer,
		names:      names,
		sampleSize: sampleSize,
		logger:     logger.Named("prompt-interpreter"),
	}
}

type interpretationReply struct {
	InterpretationStatus string   `json:"interpretationStatus"`
	ApplicableGoalKeys   []string `json:"applicableGoalKeys"`
	PrioritizedNutrients []string `json:"prioritizedNutrients"`
	FoodsToInclude       []string `json:"foodsToInclude"`
	FoodsToAvoid         []string `json:"foodsToAvoid"`
	Explanation          string   `json:"explanation"`
	IsBudgetFriendly     bool     `json:"isBudgetFriendly"`
}

// Interpret asks provider to structure prompt. A FAILURE status becomes
// PROMPT_NOT_UNDERSTOOD; a malformed reply is an internal error.
func (i *Interpreter) Interpret(ctx context.Context, prompt, provider string) (*diet.InterpretedPrompt, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apperrors.NewValidationError("prompt is empty")
	}

	names, err := i.names.ListFoodNames(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list catalog names")
	}

	reply, err := i.completer.Complete(ctx, provider, outbound.CompletionRequest{
		Prompt: buildInterpretationPrompt(prompt, sample(names, i.sampleSize)),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	var r interpretationReply
	if err := decodeObject(reply, &r); err != nil {
		i.logger.Error("Interpretation reply is not valid JSON", zap.Error(err), zap.String("reply", reply))
		return nil, apperrors.NewInternalError("interpretation reply is not valid JSON").WithCause(err)
	}

	switch strings.ToUpper(strings.TrimSpace(r.InterpretationStatus)) {
	case "SUCCESS":
	case "FAILURE":
		return nil, apperrors.NewPromptNotUnderstoodError(r.Explanation)
	default:
		return nil, apperrors.NewInternalError(fmt.Sprintf("invalid interpretationStatus %q", r.InterpretationStatus))
	}

	out := &diet.InterpretedPrompt{
		OriginalPrompt:       prompt,
		PrioritizedNutrients: nutrition.ResolveKeys(r.PrioritizedNutrients),
		FoodsToInclude:       clean(r.FoodsToInclude),
		FoodsToAvoid:         clean(r.FoodsToAvoid),
		Explanation:          strings.TrimSpace(r.Explanation),
		IsBudgetFriendly:     r.IsBudgetFriendly || text.ContainsAny(prompt, budgetTerms...),
	}
	seen := map[nutrition.GoalKey]bool{}
	for _, k := range r.ApplicableGoalKeys {
		k = strings.ToLower(strings.TrimSpace(k))
		if nutrition.IsGoalKey(k) && !seen[nutrition.GoalKey(k)] {
			seen[nutrition.GoalKey(k)] = true
			out.ApplicableGoalKeys = append(out.ApplicableGoalKeys, nutrition.GoalKey(k))
		}
	}

	i.logger.Debug("Prompt interpreted",
		zap.Int("goals", len(out.ApplicableGoalKeys)),
		zap.Strings("nutrients", out.PrioritizedNutrients),
		zap.Bool("budget", out.IsBudgetFriendly))
	return out, nil
}

func buildInterpretationPrompt(prompt string, names []string) string {
	goals := make([]string, len(nutrition.GoalKeys))
	for i, k := range nutrition.GoalKeys {
		goals[i] = string(k)
	}

	var b strings.Builder
	b.WriteString("Você é um nutricionista que interpreta pedidos de dieta semanal.\n")
	b.WriteString("Pedido do usuário: \"")
	b.WriteString(prompt)
	b.WriteString("\"\n\n")
	b.WriteString("Objetivos permitidos (use apenas estas chaves): ")
	b.WriteString(strings.Join(goals, ", "))
	b.WriteString("\nNutrientes permitidos: ")
	b.WriteString(strings.Join(nutrition.Keys(), ", "))
	b.WriteString("\nExemplos de alimentos do catálogo: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n\nResponda APENAS com um objeto JSON no formato:\n")
	b.WriteString(`{"interpretationStatus":"SUCCESS|FAILURE","applicableGoalKeys":[],"prioritizedNutrients":[],` +
		`"foodsToInclude":[],"foodsToAvoid":[],"explanation":"uma frase","isBudgetFriendly":false}`)
	b.WriteString("\nUse FAILURE somente se o pedido não tiver relação com alimentação ou dieta.")
	return b.String()
}

// sample picks up to n names at an even stride so the prompt stays bounded.
func sample(names []string, n int) []string {
	if len(names) <= n {
		return names
	}
	out := make([]string, 0, n)
	step := float64(len(names)) / float64(n)
	for i := 0; i < n; i++ {
		out = append(out, names[int(float64(i)*step)])
	}
	return out
}

func clean(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
