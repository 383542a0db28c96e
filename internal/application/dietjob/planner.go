package dietjob

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
	"github.com/alchemorsel/dietgen/internal/domain/profile"
	"github.com/alchemorsel/dietgen/internal/domain/selection"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
)

// RandSource hands out the RNG used for scoring jitter.
type RandSource func() *rand.Rand

// NewRandSource returns a time-seeded source for seed 0 and a fixed-seed
// source otherwise, so every plan with the same seed jitters identically.
func NewRandSource(seed int64) RandSource {
	if seed != 0 {
		return func() *rand.Rand { return rand.New(rand.NewSource(seed)) }
	}
	var mu sync.Mutex
	return func() *rand.Rand {
		mu.Lock()
		defer mu.Unlock()
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

// Planner runs selection and quantification.
type Planner struct {
	selector   *selection.Selector
	quantifier *selection.Quantifier
	rand       RandSource
}

// NewPlanner creates a planner. A nil source disables jitter.
func NewPlanner(selector *selection.Selector, quantifier *selection.Quantifier, rnd RandSource) *Planner {
	return &Planner{selector: selector, quantifier: quantifier, rand: rnd}
}

// Minimum is the smallest pool the selector accepts.
func (p *Planner) Minimum() int {
	if p.selector.Minimum > 0 {
		return p.selector.Minimum
	}
	return selection.MinimumFoods
}

// Plan picks and quantifies foods from the allowed pool.
func (p *Planner) Plan(allowed []food.Food, prompt diet.InterpretedPrompt, targets nutrition.Targets, sex profile.Sex) ([]food.Item, error) {
	var rng *rand.Rand
	if p.rand != nil {
		rng = p.rand()
	}
	scorer := selection.NewScorer(prompt, nutrition.Baseline(sex), rng)

	picked, err := p.selector.Select(allowed, scorer)
	if err != nil {
		if errors.Is(err, selection.ErrNotEnoughFoods) {
			return nil, apperrors.NewInternalError(err.Error()).WithCause(err)
		}
		return nil, apperrors.Wrap(err, "selection failed")
	}

	items, err := p.quantifier.Quantify(picked, targets)
	if err != nil {
		if errors.Is(err, selection.ErrOptimizationFailed) {
			return nil, apperrors.NewOptimizationFailedError(err.Error())
		}
		return nil, apperrors.Wrap(err, "quantification failed")
	}
	return items, nil
}
