package selection

import (
	"errors"
	"math"

	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
	"github.com/google/uuid"
)

// ErrOptimizationFailed is returned when no item survives quantification.
var ErrOptimizationFailed = errors.New("targets too restrictive, no viable quantities")

const (
	baseCapShare  = 0.6
	roundStepG    = 5.0
	minScale      = 0.25
	maxScale      = 3.0
	redistributeN = 10
	defaultBaseG  = 150.0
	leverTagOil   = "oleo"
	leverTagLever = "lever"
)

// DefaultBaseGrams are weekly starting amounts for variable items without a cap.
var DefaultBaseGrams = map[food.Category]float64{
	food.CategoryAnimalProtein: 600,
	food.CategoryVegetable:     300,
	food.CategoryFruit:         400,
}

// Quantifier turns selected foods into weekly grams.
type Quantifier struct {
	// LeverIDs are catalog ids preferred as the lever food, in order.
	LeverIDs  []string
	BaseGrams map[food.Category]float64
	NewID     func() string
}

// NewQuantifier creates a quantifier with the default base amounts.
func NewQuantifier(leverIDs ...string) *Quantifier {
	return &Quantifier{LeverIDs: leverIDs, BaseGrams: DefaultBaseGrams, NewID: uuid.NewString}
}

type line struct {
	f     food.Food
	grams float64
	fixed bool
	lever bool
}

func (l *line) energy() float64 { return l.f.EnergyPerGram() * l.grams }

// headroom is how many grams the line can still take; +Inf without a cap.
func (l *line) headroom() float64 {
	if !l.f.HasCap() {
		return math.Inf(1)
	}
	return math.Max(0, l.f.MaxWeeklyGPerPerson-l.grams)
}

// Quantify computes weekly quantities for foods against daily targets.
func (q *Quantifier) Quantify(foods []food.Food, t nutrition.Targets) ([]food.Item, error) {
	weeklyEnergy := t.Daily.EnergyKcal * 7
	weeklyProtein := t.Daily.ProteinG * 7

	lines := make([]*line, 0, len(foods))
	leverIdx := q.pickLever(foods)
	for i, f := range foods {
		l := &line{f: f, fixed: !f.VariableWeight, lever: i == leverIdx}
		switch {
		case l.fixed:
			l.grams = fixedGrams(f)
		case f.HasCap():
			l.grams = f.MaxWeeklyGPerPerson * baseCapShare
		default:
			l.grams = q.baseGrams(f.SelectionCategory())
		}
		lines = append(lines, l)
	}

	var lever *line
	if leverIdx >= 0 {
		lever = lines[leverIdx]
	}

	var protein, others []*line
	for _, l := range lines {
		if l.fixed || l.lever {
			continue
		}
		if l.f.SelectionCategory() == food.CategoryAnimalProtein {
			protein = append(protein, l)
		} else {
			others = append(others, l)
		}
	}
	variable := append(append([]*line(nil), protein...), others...)

	// protein sources first, toward the weekly protein target
	var proteinTotal, proteinFromSources float64
	for _, l := range lines {
		proteinTotal += l.f.ProteinPerGram() * l.grams
	}
	for _, l := range protein {
		proteinFromSources += l.f.ProteinPerGram() * l.grams
	}
	if proteinFromSources > 0 {
		scale(protein, (proteinFromSources+weeklyProtein-proteinTotal)/proteinFromSources)
	}

	// the remaining variable items toward energy, leaving the lever its base share
	fixedEnergy := sumEnergy(lines, func(l *line) bool { return l.fixed || l.lever || contains(protein, l) })
	othersEnergy := sumEnergy(others, nil)
	if othersEnergy > 0 {
		scale(others, (weeklyEnergy-fixedEnergy)/othersEnergy)
	}

	// safety caps, moving clamped energy onto items with headroom
	var clamped float64
	for _, l := range variable {
		if h := l.f.MaxWeeklyGPerPerson; l.f.HasCap() && l.grams > h {
			clamped += (l.grams - h) * l.f.EnergyPerGram()
			l.grams = h
		}
	}
	redistribute(variable, clamped)

	q.tuneLever(lever, lines, variable, weeklyEnergy)

	for _, l := range variable {
		l.grams = roundGrams(l.grams, l.f)
	}
	if lever != nil {
		q.tuneLever(lever, lines, nil, weeklyEnergy)
		lever.grams = roundGrams(lever.grams, lever.f)
	}

	items := make([]food.Item, 0, len(lines))
	for _, l := range lines {
		if l.grams <= 0 {
			continue
		}
		items = append(items, food.NewItem(q.NewID(), l.f, l.grams))
	}
	if len(items) == 0 {
		return nil, ErrOptimizationFailed
	}
	return items, nil
}

// tuneLever sets the lever to close the energy gap. Overflow past the
// lever's cap goes to spill; a surplus is taken off spill proportionally.
func (q *Quantifier) tuneLever(lever *line, lines, spill []*line, weeklyEnergy float64) {
	rest := sumEnergy(lines, func(l *line) bool { return !l.lever })
	gap := weeklyEnergy - rest

	if lever == nil || lever.f.EnergyPerGram() <= 0 {
		redistribute(spill, gap)
		return
	}
	if gap < 0 {
		redistribute(spill, gap)
		lever.grams = 0
		return
	}

	lever.grams = gap / lever.f.EnergyPerGram()
	if lever.f.HasCap() && lever.grams > lever.f.MaxWeeklyGPerPerson {
		overflow := (lever.grams - lever.f.MaxWeeklyGPerPerson) * lever.f.EnergyPerGram()
		lever.grams = lever.f.MaxWeeklyGPerPerson
		redistribute(spill, overflow)
	}
}

// redistribute spreads delta kcal over lines in proportion to their energy,
// converting through each line's energy density. Positive deltas respect
// caps; negative deltas never push below zero.
func redistribute(lines []*line, delta float64) {
	for pass := 0; pass < redistributeN && math.Abs(delta) > 1e-6; pass++ {
		var receivers []*line
		var total float64
		for _, l := range lines {
			if l.f.EnergyPerGram() <= 0 || l.grams <= 0 {
				continue
			}
			if delta > 0 && l.headroom() <= 0 {
				continue
			}
			receivers = append(receivers, l)
			total += l.energy()
		}
		if total <= 0 {
			return
		}

		var left float64
		for _, l := range receivers {
			share := delta * l.energy() / total
			grams := share / l.f.EnergyPerGram()
			if delta > 0 && grams > l.headroom() {
				left += (grams - l.headroom()) * l.f.EnergyPerGram()
				grams = l.headroom()
			}
			if l.grams+grams < 0 {
				left += (l.grams + grams) * l.f.EnergyPerGram()
				grams = -l.grams
			}
			l.grams += grams
		}
		delta = left
	}
}

func (q *Quantifier) pickLever(foods []food.Food) int {
	for _, id := range q.LeverIDs {
		for i, f := range foods {
			if f.ID == id && f.VariableWeight {
				return i
			}
		}
	}
	for _, tag := range []string{leverTagLever, leverTagOil} {
		for i, f := range foods {
			if f.VariableWeight && f.HasTag(tag) {
				return i
			}
		}
	}
	for i, f := range foods {
		if f.VariableWeight && f.Category == food.CategoryFat {
			return i
		}
	}
	return -1
}

func (q *Quantifier) baseGrams(c food.Category) float64 {
	if g, ok := q.BaseGrams[c]; ok {
		return g
	}
	return defaultBaseG
}

// fixedGrams is one package, or zero when a single package breaks the cap.
func fixedGrams(f food.Food) float64 {
	pkg := f.PackageGrams()
	packages := 1.0
	if f.HasCap() {
		packages = math.Min(packages, math.Floor(f.MaxWeeklyGPerPerson/pkg))
	}
	return packages * pkg
}

// roundGrams rounds to the nearest 5 g, flooring when rounding up would
// break the cap.
func roundGrams(g float64, f food.Food) float64 {
	if g <= 0 {
		return 0
	}
	r := math.Round(g/roundStepG) * roundStepG
	if f.HasCap() && r > f.MaxWeeklyGPerPerson {
		r = math.Floor(f.MaxWeeklyGPerPerson/roundStepG) * roundStepG
	}
	return r
}

func scale(lines []*line, factor float64) {
	factor = math.Max(minScale, math.Min(maxScale, factor))
	for _, l := range lines {
		l.grams *= factor
	}
}

func sumEnergy(lines []*line, keep func(*line) bool) float64 {
	var total float64
	for _, l := range lines {
		if keep == nil || keep(l) {
			total += l.energy()
		}
	}
	return total
}

func contains(lines []*line, target *line) bool {
	for _, l := range lines {
		if l == target {
			return true
		}
	}
	return false
}
