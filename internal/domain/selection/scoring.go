// Package selection picks a balanced food set from the allowed pool and
// computes weekly quantities that meet the energy and protein targets.
package selection

import (
	"math/rand"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
)

// Score weights.
const (
	IncludeBonus     = 100.0
	AvoidPenalty     = -100.0
	PurityWeight     = 20.0
	BudgetAdjustment = 50.0
)

// DefaultLowCostIDs and DefaultHighCostIDs are the catalog ids nudged by
// the budget flag.
var (
	DefaultLowCostIDs = []string{
		"arroz-branco", "feijao-carioca", "feijao-preto", "ovo-galinha", "banana-nanica",
		"batata-inglesa", "mandioca", "repolho", "cenoura", "aveia-flocos", "oleo-soja",
		"frango-coxa", "laranja-pera", "lentilha", "macarrao",
	}
	DefaultHighCostIDs = []string{
		"salmao", "castanha-para", "file-mignon", "azeite-oliva", "abacate",
		"amendoa", "queijo-parmesao", "mirtilo", "camarao", "quinoa",
	}
)

// Scorer ranks foods against an interpreted prompt. Rand adds the tie-break
// jitter; a nil Rand disables it.
type Scorer struct {
	Prompt      diet.InterpretedPrompt
	Baseline    nutrition.Info
	LowCostIDs  map[string]struct{}
	HighCostIDs map[string]struct{}
	Rand        *rand.Rand

	priorities []string
}

// NewScorer resolves the prompt's prioritized nutrients once.
func NewScorer(p diet.InterpretedPrompt, baseline nutrition.Info, rng *rand.Rand) *Scorer {
	return &Scorer{
		Prompt:      p,
		Baseline:    baseline,
		LowCostIDs:  idSet(DefaultLowCostIDs),
		HighCostIDs: idSet(DefaultHighCostIDs),
		Rand:        rng,
		priorities:  nutrition.ResolveKeys(p.PrioritizedNutrients),
	}
}

// Score returns the food's rank value; higher sorts first.
func (s *Scorer) Score(f food.Food) float64 {
	score := 0.0
	if len(s.Prompt.FoodsToInclude) > 0 && f.MatchesAny(s.Prompt.FoodsToInclude) {
		score += IncludeBonus
	}
	if len(s.Prompt.FoodsToAvoid) > 0 && f.MatchesAny(s.Prompt.FoodsToAvoid) {
		score += AvoidPenalty
	}
	for _, key := range s.priorities {
		score += Purity(f, key, s.Baseline) * PurityWeight
	}
	if s.Prompt.IsBudgetFriendly {
		if _, ok := s.LowCostIDs[f.ID]; ok {
			score += BudgetAdjustment
		}
		if _, ok := s.HighCostIDs[f.ID]; ok {
			score -= BudgetAdjustment
		}
	}
	if s.Rand != nil {
		score += s.Rand.Float64()
	}
	return score
}

// Purity is how much of a food is the given nutrient. Energy-bearing
// macros use their share of calories, fiber uses grams per 100 g, and every
// other nutrient uses its fraction of the baseline intake per 100 g.
func Purity(f food.Food, key string, baseline nutrition.Info) float64 {
	n := f.NutritionPer100g
	value, ok := n.Get(key)
	if !ok || value <= 0 {
		return 0
	}

	switch key {
	case nutrition.Protein, nutrition.Carbohydrate:
		return caloricShare(value*4, n.EnergyKcal)
	case nutrition.TotalFat, nutrition.SaturatedFat, nutrition.MonounsaturatedFat, nutrition.PolyunsaturatedFat:
		return caloricShare(value*9, n.EnergyKcal)
	case nutrition.Fiber:
		return value
	}

	ref, _ := baseline.Get(key)
	if ref <= 0 {
		return 0
	}
	return value / ref
}

func caloricShare(kcal, energy float64) float64 {
	if energy <= 0 {
		return 0
	}
	share := kcal / energy
	if share > 1 {
		return 1
	}
	return share
}

func idSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
