package selection

import (
	"errors"
	"fmt"
	"sort"

	"github.com/alchemorsel/dietgen/internal/domain/food"
)

// MinimumFoods is the smallest pool, and the smallest selection, the
// pipeline accepts.
const MinimumFoods = 15

// ErrNotEnoughFoods is returned when selection cannot reach the minimum.
var ErrNotEnoughFoods = errors.New("deterministic selection could not find enough foods")

// Slot is one category entry of the template.
type Slot struct {
	Category food.Category
	Count    int
}

// DefaultTemplate totals 31 foods.
var DefaultTemplate = []Slot{
	{food.CategoryAnimalProtein, 4},
	{food.CategoryVegetable, 10},
	{food.CategoryFruit, 6},
	{food.CategoryLegume, 3},
	{food.CategoryCereal, 3},
	{food.CategoryNut, 2},
	{food.CategoryFat, 1},
	{food.CategoryDairy, 2},
}

// Selector fills the category template by score.
type Selector struct {
	Template []Slot
	Minimum  int
}

// NewSelector uses the default template and minimum.
func NewSelector() *Selector {
	return &Selector{Template: DefaultTemplate, Minimum: MinimumFoods}
}

type scored struct {
	food  food.Food
	score float64
	base  string
}

// Select returns foods in template order. Within a category, foods with a
// repeated base name are only taken once the distinct names run out.
func (s *Selector) Select(foods []food.Food, scorer *Scorer) ([]food.Food, error) {
	minimum := s.Minimum
	if minimum <= 0 {
		minimum = MinimumFoods
	}

	all := make([]scored, len(foods))
	pools := make(map[food.Category][]int)
	for i, f := range foods {
		all[i] = scored{food: f, score: scorer.Score(f), base: food.BaseName(f.StandardName)}
		c := f.SelectionCategory()
		pools[c] = append(pools[c], i)
	}
	byScore := func(idx []int) {
		sort.SliceStable(idx, func(a, b int) bool {
			if all[idx[a]].score != all[idx[b]].score {
				return all[idx[a]].score > all[idx[b]].score
			}
			return all[idx[a]].food.ID < all[idx[b]].food.ID
		})
	}

	taken := make(map[int]bool, len(foods))
	var picked []int

	for _, slot := range s.Template {
		pool := pools[slot.Category]
		byScore(pool)

		count := 0
		bases := make(map[string]struct{}, slot.Count)
		for _, i := range pool {
			if count == slot.Count {
				break
			}
			if _, dup := bases[all[i].base]; dup {
				continue
			}
			bases[all[i].base] = struct{}{}
			taken[i] = true
			picked = append(picked, i)
			count++
		}
		for _, i := range pool {
			if count == slot.Count {
				break
			}
			if taken[i] {
				continue
			}
			taken[i] = true
			picked = append(picked, i)
			count++
		}
	}

	if len(picked) < minimum {
		var rest []int
		for i := range all {
			if !taken[i] {
				rest = append(rest, i)
			}
		}
		byScore(rest)
		for _, i := range rest {
			if len(picked) >= minimum {
				break
			}
			picked = append(picked, i)
		}
	}

	if len(picked) < minimum {
		return nil, fmt.Errorf("%w: selected %d of %d", ErrNotEnoughFoods, len(picked), minimum)
	}

	out := make([]food.Food, len(picked))
	for n, i := range picked {
		out[n] = all[i].food
	}
	return out, nil
}
