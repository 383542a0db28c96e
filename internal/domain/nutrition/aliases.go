package nutrition

import (
	"strings"

	"github.com/alchemorsel/dietgen/internal/domain/text"
)

// aliases map common Portuguese and English nutrient names onto keys
var aliases = map[string]string{
	"energia": Energy, "calorias": Energy, "energy": Energy, "calories": Energy,
	"proteina": Protein, "proteinas": Protein, "protein": Protein,
	"carboidrato": Carbohydrate, "carboidratos": Carbohydrate, "carbohydrate": Carbohydrate, "carbs": Carbohydrate,
	"gordura": TotalFat, "gorduras": TotalFat, "fat": TotalFat, "lipidios": TotalFat,
	"fibra": Fiber, "fibras": Fiber, "fiber": Fiber, "fibre": Fiber,
	"ferro": Iron, "iron": Iron,
	"calcio": Calcium, "calcium": Calcium,
	"magnesio": Magnesium, "magnesium": Magnesium,
	"potassio": Potassium, "potassium": Potassium,
	"zinco": Zinc, "zinc": Zinc,
	"omega 3": Omega3, "omega-3": Omega3, "omega3": Omega3,
	"vitamina c": VitaminC, "vitamin c": VitaminC,
	"vitamina d": VitaminD, "vitamin d": VitaminD,
	"vitamina a": VitaminA, "vitamin a": VitaminA,
	"vitamina b12": VitaminB12, "vitamin b12": VitaminB12, "b12": VitaminB12,
	"folato": Folate, "acido folico": Folate, "folate": Folate,
}

// ResolveKey maps a key or a common nutrient name onto a nutrient key.
func ResolveKey(name string) (string, bool) {
	raw := strings.TrimSpace(name)
	if IsKey(raw) {
		return raw, true
	}
	if k, ok := aliases[text.Normalize(raw)]; ok {
		return k, true
	}
	return "", false
}

// ResolveKeys resolves names in order, dropping unknown and duplicate ones.
func ResolveKeys(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		k, ok := ResolveKey(n)
		if !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
