package nutrition

import "github.com/alchemorsel/dietgen/internal/domain/text"

// GoalKey is a wellness objective the interpreter can map a request onto.
type GoalKey string

const (
	GoalMuscleGain        GoalKey = "muscle_gain"
	GoalFatLoss           GoalKey = "fat_loss"
	GoalWeightMaintenance GoalKey = "weight_maintenance"
	GoalHeartHealth       GoalKey = "heart_health"
	GoalGutHealth         GoalKey = "gut_health"
	GoalImmunity          GoalKey = "immunity_boost"
	GoalEnergy            GoalKey = "energy_boost"
	GoalBoneHealth        GoalKey = "bone_health"
	GoalBloodSugarControl GoalKey = "blood_sugar_control"
	GoalSkinHealth        GoalKey = "skin_health"
	GoalMentalFocus       GoalKey = "mental_focus"
	GoalSleepQuality      GoalKey = "sleep_quality"
)

// GoalKeys is the enum handed to the interpreter, in a stable order.
var GoalKeys = []GoalKey{
	GoalMuscleGain, GoalFatLoss, GoalWeightMaintenance, GoalHeartHealth,
	GoalGutHealth, GoalImmunity, GoalEnergy, GoalBoneHealth,
	GoalBloodSugarControl, GoalSkinHealth, GoalMentalFocus, GoalSleepQuality,
}

// IsGoalKey reports whether k belongs to the enum.
func IsGoalKey(k string) bool {
	_, ok := goalModifiers[GoalKey(k)]
	return ok
}

// Modifier changes targets. Within one modifier, multiplications run
// first, then additions, then sets, so a set always wins.
type Modifier struct {
	Multiply map[string]float64
	Add      map[string]float64
	Set      map[string]float64
}

// Apply mutates info in place.
func (m Modifier) Apply(info *Info) {
	for k, f := range m.Multiply {
		if v, ok := info.Get(k); ok {
			info.Set(k, v*f)
		}
	}
	for k, d := range m.Add {
		if v, ok := info.Get(k); ok {
			info.Set(k, v+d)
		}
	}
	for k, v := range m.Set {
		info.Set(k, v)
	}
}

var goalModifiers = map[GoalKey]Modifier{
	GoalMuscleGain: {
		Multiply: map[string]float64{Energy: 1.10, Protein: 1.3, Carbohydrate: 1.1},
		Add:      map[string]float64{Magnesium: 50, Zinc: 2},
	},
	GoalFatLoss: {
		Multiply: map[string]float64{Energy: 0.82, Carbohydrate: 0.75, TotalFat: 0.9, Protein: 1.15},
		Add:      map[string]float64{Fiber: 5},
	},
	GoalWeightMaintenance: {},
	GoalHeartHealth: {
		Multiply: map[string]float64{SaturatedFat: 0.7, Sodium: 0.8, Omega3: 1.5},
		Add:      map[string]float64{Fiber: 5, Potassium: 300},
		Set:      map[string]float64{TransFat: 0, Cholesterol: 200},
	},
	GoalGutHealth: {
		Add: map[string]float64{Fiber: 8, Water: 500},
	},
	GoalImmunity: {
		Multiply: map[string]float64{VitaminC: 1.5, Zinc: 1.2, VitaminD: 1.3},
		Add:      map[string]float64{Selenium: 10},
	},
	GoalEnergy: {
		Multiply: map[string]float64{Iron: 1.2, VitaminB12: 1.3, Thiamin: 1.2, Riboflavin: 1.2, Niacin: 1.2},
	},
	GoalBoneHealth: {
		Multiply: map[string]float64{Calcium: 1.2, VitaminD: 1.3, VitaminK: 1.2},
		Add:      map[string]float64{Magnesium: 40},
	},
	GoalBloodSugarControl: {
		Multiply: map[string]float64{Carbohydrate: 0.85, Sugars: 0.6, AddedSugars: 0.5},
		Add:      map[string]float64{Fiber: 6},
	},
	GoalSkinHealth: {
		Multiply: map[string]float64{VitaminA: 1.2, VitaminC: 1.3, VitaminE: 1.3},
		Add:      map[string]float64{Water: 500},
	},
	GoalMentalFocus: {
		Multiply: map[string]float64{Omega3: 1.4, Choline: 1.2, VitaminB6: 1.2, Folate: 1.1},
	},
	GoalSleepQuality: {
		Multiply: map[string]float64{Magnesium: 1.2, VitaminB6: 1.1},
		Set:      map[string]float64{AddedSugars: 20},
	},
}

// restriction is a health condition or diet style that overrides goals.
type restriction struct {
	name     string
	keywords []string
	modifier Modifier
}

// restrictions apply in this fixed order, after every goal.
var restrictions = []restriction{
	{
		name:     "diabetes",
		keywords: []string{"diabet"},
		modifier: Modifier{
			Multiply: map[string]float64{Carbohydrate: 0.8},
			Add:      map[string]float64{Fiber: 5},
			Set:      map[string]float64{Sugars: 25, AddedSugars: 10},
		},
	},
	{
		name:     "hypertension",
		keywords: []string{"hipertens", "hypertens", "pressao alta"},
		modifier: Modifier{
			Add: map[string]float64{Potassium: 700},
			Set: map[string]float64{Sodium: 1500},
		},
	},
	{
		name:     "vegan",
		keywords: []string{"vegan"},
		modifier: Modifier{
			Multiply: map[string]float64{Iron: 1.8, Zinc: 1.5, Protein: 1.1},
			Set:      map[string]float64{Cholesterol: 0, VitaminB12: 4},
		},
	},
	{
		name:     "vegetarian",
		keywords: []string{"vegetarian"},
		modifier: Modifier{
			Multiply: map[string]float64{Iron: 1.4, Zinc: 1.2},
		},
	},
}

// matchingRestrictions returns restriction names matched by the
// conditions, in application order.
func matchingRestrictions(conditions []string) []restriction {
	var out []restriction
	for _, r := range restrictions {
		for _, c := range conditions {
			if text.ContainsAny(c, r.keywords...) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
