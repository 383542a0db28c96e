package food

import (
	"math"

	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
)

// Item pairs a food with a weekly quantity.
//
// Quantity is expressed in the food's DefaultUnit; Grams is the same amount
// in grams and drives every nutrition and price total.
type Item struct {
	OrderItemID  string  `json:"orderItemId"`
	Food         Food    `json:"food"`
	Quantity     float64 `json:"quantity"`
	Unit         Unit    `json:"unit"`
	Grams        float64 `json:"grams"`
	Substituted  bool    `json:"substituted"`
	OriginalFood *Food   `json:"originalFood,omitempty"`
	Explanation  string  `json:"explanation"`
}

// NewItem builds an item from grams, deriving the unit quantity.
func NewItem(orderItemID string, f Food, grams float64) Item {
	it := Item{OrderItemID: orderItemID, Food: f, Unit: f.DefaultUnit}
	it.SetGrams(grams)
	return it
}

// SetGrams updates grams and the derived unit quantity.
func (it *Item) SetGrams(grams float64) {
	if grams < 0 {
		grams = 0
	}
	it.Grams = grams
	it.Quantity = nutrition.Round2(grams / it.Food.GramsPerUnit())
}

// Nutrition is the absolute nutrition of the item.
func (it Item) Nutrition() nutrition.Info {
	return it.Food.NutritionPer100g.Scale(it.Grams / 100)
}

// Energy is the item's kcal.
func (it Item) Energy() float64 {
	return it.Food.EnergyPerGram() * it.Grams
}

// Price is the estimated price for the item's grams.
func (it Item) Price() float64 {
	return math.Round(it.Food.PricePerGram()*it.Grams*100) / 100
}

// Totals sums nutrition, price and weight over items.
func Totals(items []Item) (info nutrition.Info, price, grams float64) {
	for _, it := range items {
		info = info.Add(it.Nutrition())
		price += it.Price()
		grams += it.Grams
	}
	return info.Round(), nutrition.Round2(price), nutrition.Round2(grams)
}
