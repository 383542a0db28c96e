package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"go.uber.org/zap"
)

const (
	// FallbackItemExplanation is attached to every item when the batch call fails.
	FallbackItemExplanation = "Escolhido para equilibrar sua dieta semanal conforme suas metas nutricionais."

	// FallbackDietExplanation replaces the overall explanation on failure.
	FallbackDietExplanation = "Esta lista de compras foi montada para atender às suas metas nutricionais da semana. " +
		"Combinamos proteínas, vegetais, frutas e carboidratos em quantidades calculadas para o seu perfil. " +
		"As escolhas respeitam suas restrições e priorizam variedade ao longo dos dias."

	topFoodsForExplanation = 15
)

// Explainer writes per-item and overall rationale. It never fails; provider
// problems degrade to fixed text.
type Explainer struct {
	completer outbound.Completer
	logger    *zap.Logger
}

// NewExplainer creates an explainer.
func NewExplainer(completer outbound.Completer, logger *zap.Logger) *Explainer {
	return &Explainer{completer: completer, logger: logger.Named("explainer")}
}

type itemBrief struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Category food.Category `json:"category"`
}

// ExplainItems returns a copy of items with Explanation set on each.
func (e *Explainer) ExplainItems(ctx context.Context, items []food.Item, goal, provider string) []food.Item {
	out := append([]food.Item(nil), items...)
	texts := e.itemTexts(ctx, out, goal, provider)
	for i := range out {
		if t := strings.TrimSpace(texts[out[i].Food.ID]); t != "" {
			out[i].Explanation = t
		} else {
			out[i].Explanation = FallbackItemExplanation
		}
	}
	return out
}

func (e *Explainer) itemTexts(ctx context.Context, items []food.Item, goal, provider string) map[string]string {
	briefs := make([]itemBrief, len(items))
	for i, it := range items {
		briefs[i] = itemBrief{ID: it.Food.ID, Name: it.Food.StandardName, Category: it.Food.Category}
	}
	payload, err := json.Marshal(briefs)
	if err != nil {
		return nil
	}

	var b strings.Builder
	b.WriteString("Objetivo da dieta: ")
	b.WriteString(goal)
	b.WriteString("\nAlimentos selecionados (JSON): ")
	b.Write(payload)
	b.WriteString("\n\nPara cada alimento escreva uma frase curta (cerca de 20 palavras) explicando por que ele ajuda no objetivo. ")
	b.WriteString("Não repita frases e não cite o nome do alimento. ")
	b.WriteString("Responda APENAS com um objeto JSON cujas chaves são os ids e os valores são as frases.")

	reply, err := e.completer.Complete(ctx, provider, outbound.CompletionRequest{Prompt: b.String(), JSON: true})
	if err != nil {
		e.logger.Warn("Item explanations unavailable, using fallback", zap.Error(err))
		return nil
	}
	texts := map[string]string{}
	if err := decodeObject(reply, &texts); err != nil {
		e.logger.Warn("Item explanation reply is not valid JSON, using fallback", zap.Error(err))
		return nil
	}
	return texts
}

// ExplainDiet writes the overall 3-4 sentence rationale.
func (e *Explainer) ExplainDiet(ctx context.Context, items []food.Item, prompt diet.InterpretedPrompt, provider string) string {
	info, _, _ := food.Totals(items)
	daily := info.Scale(1.0 / 7)

	var b strings.Builder
	b.WriteString("Escreva de 3 a 4 frases em texto simples, sem markdown e sem repetir números, ")
	b.WriteString("explicando ao usuário como esta lista de compras semanal atende ao pedido dele. ")
	b.WriteString("Cite 2 ou 3 dos principais alimentos.\n")
	fmt.Fprintf(&b, "Pedido: %s\n", prompt.GoalText())
	if len(prompt.PrioritizedNutrients) > 0 {
		fmt.Fprintf(&b, "Nutrientes priorizados: %s\n", strings.Join(prompt.PrioritizedNutrients, ", "))
	}
	if len(prompt.FoodsToInclude) > 0 {
		fmt.Fprintf(&b, "Incluir: %s\n", strings.Join(prompt.FoodsToInclude, ", "))
	}
	if len(prompt.FoodsToAvoid) > 0 {
		fmt.Fprintf(&b, "Evitar: %s\n", strings.Join(prompt.FoodsToAvoid, ", "))
	}
	fmt.Fprintf(&b, "Principais alimentos: %s\n", strings.Join(diet.TopFoodNames(items, topFoodsForExplanation), ", "))
	fmt.Fprintf(&b, "Energia diária: %.0f kcal. Proteína diária: %.0f g.", daily.EnergyKcal, daily.ProteinG)

	reply, err := e.completer.Complete(ctx, provider, outbound.CompletionRequest{Prompt: b.String()})
	if err != nil {
		e.logger.Warn("Diet explanation unavailable, using fallback", zap.Error(err))
		return FallbackDietExplanation
	}
	reply = strings.TrimSpace(strings.Trim(strings.TrimSpace(reply), "`"))
	if reply == "" {
		return FallbackDietExplanation
	}
	return reply
}
