// Package food holds the read-only catalog model and the quantified
// grocery items built from it.
package food

import (
	"strings"

	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
	"github.com/alchemorsel/dietgen/internal/domain/text"
)

// Category groups foods for template-based selection.
type Category string

const (
	CategoryAnimalProtein Category = "animal_protein"
	CategoryVegetable     Category = "vegetable"
	CategoryFruit         Category = "fruit"
	CategoryLegume        Category = "legume"
	CategoryCereal        Category = "cereal"
	CategoryTuber         Category = "tuber"
	CategoryNut           Category = "nut"
	CategoryFat           Category = "fat"
	CategoryDairy         Category = "dairy"
	CategoryOther         Category = "other"
)

// Unit is the unit a food is sold in.
type Unit string

const (
	UnitGram       Unit = "g"
	UnitMilliliter Unit = "ml"
	UnitKilogram   Unit = "kg"
	UnitLiter      Unit = "l"
	UnitPiece      Unit = "unit"
)

// ProcessingType follows the NOVA classification.
type ProcessingType string

const (
	ProcessingInNatura       ProcessingType = "in_natura"
	ProcessingMinimal        ProcessingType = "minimally_processed"
	ProcessingProcessed      ProcessingType = "processed"
	ProcessingUltraProcessed ProcessingType = "ultra_processed"
)

// default grams for a piece when the catalog omits weight_per_unit_in_g
const defaultPieceGrams = 100

// Food is one catalog entry. Nutrition is per 100 g (or 100 ml).
type Food struct {
	ID                  string         `json:"id"`
	StandardName        string         `json:"standard_name"`
	Synonyms            []string       `json:"synonyms"`
	Category            Category       `json:"category"`
	Tags                []string       `json:"tags"`
	ProcessingType      ProcessingType `json:"processing_type"`
	NutritionPer100g    nutrition.Info `json:"nutritional_info_per_100g"`
	EstimatedPrice      float64        `json:"estimatedPrice"`
	DefaultUnit         Unit           `json:"default_unit"`
	Quantity            float64        `json:"quantity"`
	VariableWeight      bool           `json:"variableWeight"`
	WeightPerUnitG      float64        `json:"weight_per_unit_in_g"`
	MaxWeeklyGPerPerson float64        `json:"max_weekly_g_per_person"`
}

// Names returns the standard name followed by the synonyms.
func (f Food) Names() []string {
	return append([]string{f.StandardName}, f.Synonyms...)
}

// MatchesAny reports whether any of the food's names loosely matches any term.
func (f Food) MatchesAny(terms []string) bool {
	for _, term := range terms {
		for _, name := range f.Names() {
			if text.Matches(name, term) {
				return true
			}
		}
	}
	return false
}

// HasTag reports whether the food carries the tag, ignoring case and accents.
func (f Food) HasTag(tag string) bool {
	want := text.Normalize(tag)
	for _, t := range f.Tags {
		if text.Normalize(t) == want {
			return true
		}
	}
	return false
}

// GramsPerUnit converts one DefaultUnit into grams. Liquids assume a density of 1.
func (f Food) GramsPerUnit() float64 {
	switch Unit(strings.ToLower(string(f.DefaultUnit))) {
	case UnitKilogram, UnitLiter:
		return 1000
	case UnitPiece:
		if f.WeightPerUnitG > 0 {
			return f.WeightPerUnitG
		}
		return defaultPieceGrams
	default:
		return 1
	}
}

// PackageGrams is the weight of one catalog package.
func (f Food) PackageGrams() float64 {
	q := f.Quantity
	if q <= 0 {
		q = 1
	}
	return q * f.GramsPerUnit()
}

// EnergyPerGram is kcal per gram.
func (f Food) EnergyPerGram() float64 {
	return f.NutritionPer100g.EnergyKcal / 100
}

// ProteinPerGram is protein grams per gram.
func (f Food) ProteinPerGram() float64 {
	return f.NutritionPer100g.ProteinG / 100
}

// PricePerGram spreads the package price over its weight.
func (f Food) PricePerGram() float64 {
	g := f.PackageGrams()
	if g <= 0 {
		return 0
	}
	return f.EstimatedPrice / g
}

// HasCap reports whether a weekly safety cap is set.
func (f Food) HasCap() bool {
	return f.MaxWeeklyGPerPerson > 0
}

// SelectionCategory folds tubers into cereals, the starchy pool.
func (f Food) SelectionCategory() Category {
	if f.Category == CategoryTuber {
		return CategoryCereal
	}
	return f.Category
}
