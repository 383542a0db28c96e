package selection

import (
	"math/rand"
	"testing"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
	"github.com/alchemorsel/dietgen/internal/domain/profile"
	"github.com/alchemorsel/dietgen/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scorerFor(p diet.InterpretedPrompt, seed int64) *Scorer {
	return NewScorer(p, nutrition.Baseline(profile.SexMale), rand.New(rand.NewSource(seed)))
}

func byID(foods []food.Food) map[string]food.Food {
	out := make(map[string]food.Food, len(foods))
	for _, f := range foods {
		out[f.ID] = f
	}
	return out
}

func TestSelectFillsTemplateWithDistinctBaseNames(t *testing.T) {
	catalog := testutils.SampleCatalog()
	got, err := NewSelector().Select(catalog, scorerFor(diet.InterpretedPrompt{}, 1))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(got), MinimumFoods)

	bases := map[food.Category]map[string]int{}
	for _, f := range got {
		c := f.SelectionCategory()
		if bases[c] == nil {
			bases[c] = map[string]int{}
		}
		bases[c][food.BaseName(f.StandardName)]++
	}
	for c, names := range bases {
		for name, n := range names {
			assert.Equal(t, 1, n, "category %s picked %q twice", c, name)
		}
	}
	assert.Len(t, bases[food.CategoryLegume], 3)
}

func TestSelectBackfillsWhenBaseNamesRunOut(t *testing.T) {
	catalog := testutils.SampleCatalog()
	var pool []food.Food
	for _, f := range catalog {
		if f.Category == food.CategoryLegume && f.ID != "feijao-carioca" && f.ID != "feijao-preto" {
			continue
		}
		pool = append(pool, f)
	}
	pool = append(pool, food.Food{ID: "feijao-branco", StandardName: "Feijão Branco", Category: food.CategoryLegume})

	got, err := NewSelector().Select(pool, scorerFor(diet.InterpretedPrompt{}, 2))
	require.NoError(t, err)

	legumes := 0
	for _, f := range got {
		if f.Category == food.CategoryLegume {
			legumes++
		}
	}
	assert.Equal(t, 3, legumes)
}

func TestSelectTopsUpFromOtherCategories(t *testing.T) {
	factory := testutils.NewFoodFactory(3)
	var pool []food.Food
	for i := 0; i < 16; i++ {
		pool = append(pool, factory.Food(food.CategoryVegetable))
	}
	got, err := NewSelector().Select(pool, scorerFor(diet.InterpretedPrompt{}, 3))
	require.NoError(t, err)
	assert.Len(t, got, MinimumFoods)
}

func TestSelectFailsBelowMinimum(t *testing.T) {
	_, err := NewSelector().Select(testutils.SampleCatalog()[:10], scorerFor(diet.InterpretedPrompt{}, 4))
	assert.ErrorIs(t, err, ErrNotEnoughFoods)
}

func TestSelectHonoursIncludeAndAvoid(t *testing.T) {
	p := diet.InterpretedPrompt{
		FoodsToInclude: []string{"salmão", "tilápia"},
		FoodsToAvoid:   []string{"frango"},
	}
	got, err := NewSelector().Select(testutils.SampleCatalog(), scorerFor(p, 5))
	require.NoError(t, err)

	ids := byID(got)
	assert.Contains(t, ids, "salmao")
	assert.Contains(t, ids, "tilapia")
	assert.NotContains(t, ids, "frango-peito")
	assert.NotContains(t, ids, "frango-coxa")
}

func TestSeededSelectionIsReproducible(t *testing.T) {
	catalog := testutils.SampleCatalog()
	a, err := NewSelector().Select(catalog, scorerFor(diet.InterpretedPrompt{}, 42))
	require.NoError(t, err)
	b, err := NewSelector().Select(catalog, scorerFor(diet.InterpretedPrompt{}, 42))
	require.NoError(t, err)
	assert.Equal(t, food.IDs(a), food.IDs(b))
}

func TestBudgetFlagShiftsScores(t *testing.T) {
	catalog := byID(testutils.SampleCatalog())
	plain := NewScorer(diet.InterpretedPrompt{}, nutrition.Info{}, nil)
	budget := NewScorer(diet.InterpretedPrompt{IsBudgetFriendly: true}, nutrition.Info{}, nil)

	assert.Equal(t, plain.Score(catalog["arroz-branco"])+BudgetAdjustment, budget.Score(catalog["arroz-branco"]))
	assert.Equal(t, plain.Score(catalog["salmao"])-BudgetAdjustment, budget.Score(catalog["salmao"]))
	assert.Equal(t, plain.Score(catalog["brocolis"]), budget.Score(catalog["brocolis"]))
}

func TestPurity(t *testing.T) {
	chicken := byID(testutils.SampleCatalog())["frango-peito"]
	baseline := nutrition.Baseline(profile.SexMale)

	assert.InDelta(t, 32.0*4/159, Purity(chicken, nutrition.Protein, baseline), 1e-9)
	assert.Equal(t, 0.0, Purity(chicken, nutrition.Fiber, baseline))

	beans := byID(testutils.SampleCatalog())["feijao-preto"]
	assert.Equal(t, 21.0, Purity(beans, nutrition.Fiber, baseline))

	iron := food.Food{NutritionPer100g: nutrition.Info{IronMg: 4}}
	assert.InDelta(t, 0.5, Purity(iron, nutrition.Iron, baseline), 1e-9)

	s := NewScorer(diet.InterpretedPrompt{PrioritizedNutrients: []string{"proteína"}}, baseline, nil)
	assert.InDelta(t, Purity(chicken, nutrition.Protein, baseline)*PurityWeight, s.Score(chicken), 1e-9)
}

func referenceTargets(t *testing.T) nutrition.Targets {
	t.Helper()
	targets, err := nutrition.NewCalculator().Calculate(testutils.NewProfileBuilder().Build(), []nutrition.GoalKey{nutrition.GoalMuscleGain})
	require.NoError(t, err)
	return *targets
}

func totalEnergy(items []food.Item) float64 {
	var total float64
	for _, it := range items {
		total += it.Energy()
	}
	return total
}

func TestQuantifyHitsWeeklyEnergyWithinCaps(t *testing.T) {
	targets := referenceTargets(t)
	for seed := int64(0); seed < 20; seed++ {
		selected, err := NewSelector().Select(testutils.SampleCatalog(), scorerFor(diet.InterpretedPrompt{}, seed))
		require.NoError(t, err)

		items, err := NewQuantifier().Quantify(selected, targets)
		require.NoError(t, err)

		weekly := targets.Daily.EnergyKcal * 7
		assert.InDelta(t, weekly, totalEnergy(items), weekly*0.02, "seed %d", seed)

		for _, it := range items {
			assert.Greater(t, it.Grams, 0.0, it.Food.ID)
			assert.NotEmpty(t, it.OrderItemID)
			if it.Food.HasCap() {
				assert.LessOrEqual(t, it.Grams, it.Food.MaxWeeklyGPerPerson, it.Food.ID)
			}
			if !it.Food.VariableWeight {
				assert.Equal(t, it.Food.PackageGrams(), it.Grams, it.Food.ID)
				assert.Equal(t, it.Food.Quantity, it.Quantity, it.Food.ID)
			} else {
				assert.Zero(t, int(it.Grams)%5, it.Food.ID)
			}
		}
	}
}

func TestLeverOverflowIsRedistributed(t *testing.T) {
	catalog := byID(testutils.SampleCatalog())
	rice := catalog["arroz-branco"]
	rice.MaxWeeklyGPerPerson = 0
	oil := catalog["oleo-soja"]
	oil.MaxWeeklyGPerPerson = 100
	eggs := catalog["ovo-galinha"]

	targets := nutrition.Targets{Daily: nutrition.Info{EnergyKcal: 2000}}
	items, err := NewQuantifier().Quantify([]food.Food{rice, oil, eggs}, targets)
	require.NoError(t, err)

	got := map[string]food.Item{}
	for _, it := range items {
		got[it.Food.ID] = it
	}
	assert.LessOrEqual(t, got["oleo-soja"].Grams, 100.0)
	assert.Equal(t, 600.0, got["ovo-galinha"].Grams)
	assert.Equal(t, 12.0, got["ovo-galinha"].Quantity)
	assert.InDelta(t, 14000, totalEnergy(items), 14000*0.02)
}

func TestPreferredLeverID(t *testing.T) {
	catalog := byID(testutils.SampleCatalog())
	foods := []food.Food{catalog["arroz-branco"], catalog["oleo-soja"], catalog["amendoim"]}
	q := NewQuantifier("amendoim")
	assert.Equal(t, 2, q.pickLever(foods))
	assert.Equal(t, 1, NewQuantifier().pickLever(foods))
}

func TestQuantifyFailsWhenNothingSurvives(t *testing.T) {
	jar := food.Food{
		ID: "mel", StandardName: "Mel", Category: food.CategoryOther,
		DefaultUnit: food.UnitGram, Quantity: 500, MaxWeeklyGPerPerson: 100,
		NutritionPer100g: nutrition.Info{EnergyKcal: 304},
	}
	_, err := NewQuantifier().Quantify([]food.Food{jar}, nutrition.Targets{Daily: nutrition.Info{EnergyKcal: 2000}})
	assert.ErrorIs(t, err, ErrOptimizationFailed)
}
