package ai

import (
	"context"
	"strings"

	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/profile"
	"github.com/alchemorsel/dietgen/internal/domain/text"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"go.uber.org/zap"
)

// exclusionRule removes whole categories when a restriction mentions a term.
// It backs up the provider, never replaces it.
type exclusionRule struct {
	terms      []string
	categories []food.Category
}

var exclusionRules = []exclusionRule{
	{terms: []string{"lactose", "leite", "lacteo", "dairy"}, categories: []food.Category{food.CategoryDairy}},
	{terms: []string{"vegan", "vegano", "vegana"}, categories: []food.Category{food.CategoryAnimalProtein, food.CategoryDairy}},
}

// RestrictionFilter removes foods that conflict with allergies and dietary
// restrictions.
type RestrictionFilter struct {
	completer outbound.Completer
	logger    *zap.Logger
}

// NewRestrictionFilter creates a restriction filter.
func NewRestrictionFilter(completer outbound.Completer, logger *zap.Logger) *RestrictionFilter {
	return &RestrictionFilter{completer: completer, logger: logger.Named("restriction-filter")}
}

// Filter returns the allowed subset of foods in catalog order. Without
// restrictions it returns foods unchanged and makes no call.
func (f *RestrictionFilter) Filter(ctx context.Context, foods []food.Food, p profile.HealthProfile, provider string) ([]food.Food, error) {
	if !p.HasRestrictions() {
		return foods, nil
	}

	names := make([]string, len(foods))
	for i, fd := range foods {
		names[i] = fd.StandardName
	}

	reply, err := f.completer.Complete(ctx, provider, outbound.CompletionRequest{
		Prompt: buildRestrictionPrompt(p.RestrictionText(), names),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	allowedNames, err := decodeStringArray(reply)
	if err != nil {
		f.logger.Error("Restriction reply is not a JSON array", zap.Error(err), zap.String("reply", reply))
		return nil, apperrors.NewInternalError("restriction filter reply is not a JSON array").WithCause(err)
	}

	allowed := make(map[string]bool, len(allowedNames))
	for _, n := range allowedNames {
		allowed[text.Normalize(n)] = true
	}

	excluded := excludedCategories(p)
	var out []food.Food
	for _, fd := range foods {
		if excluded[fd.Category] {
			continue
		}
		for _, n := range fd.Names() {
			if allowed[text.Normalize(n)] {
				out = append(out, fd)
				break
			}
		}
	}

	f.logger.Info("Foods filtered by restrictions",
		zap.Int("catalog", len(foods)),
		zap.Int("allowed", len(out)))
	return out, nil
}

func excludedCategories(p profile.HealthProfile) map[food.Category]bool {
	out := map[food.Category]bool{}
	restrictions := strings.Join(append(append([]string{}, p.Allergies...), p.DietaryRestrictions...), " ")
	for _, r := range exclusionRules {
		if text.ContainsAny(restrictions, r.terms...) {
			for _, c := range r.categories {
				out[c] = true
			}
		}
	}
	return out
}

func buildRestrictionPrompt(restrictions string, names []string) string {
	var b strings.Builder
	b.WriteString("Você é um nutricionista rigoroso com segurança alimentar.\n")
	b.WriteString(restrictions)
	b.WriteString("\n\nDa lista abaixo, remova todo alimento que conflite com as restrições. ")
	b.WriteString("Seja conservador: na dúvida, remova. Intolerância à lactose remove todos os laticínios.\n")
	b.WriteString("Alimentos: ")
	b.WriteString(strings.Join(names, "; "))
	b.WriteString("\n\nResponda APENAS com um array JSON com os nomes permitidos, exatamente como escritos acima.")
	return b.String()
}
