// Package nutrition contains nutrient value objects and the daily target
// calculator. Values are per 100 g on foods and absolute on targets.
package nutrition

import "math"

// Nutrient keys. These are the JSON names and the keys used by modifiers,
// interpreted prompts and scoring.
const (
	Energy             = "energy_kcal"
	Protein            = "protein_g"
	Carbohydrate       = "carbohydrate_g"
	TotalFat           = "total_fat_g"
	SaturatedFat       = "saturated_fat_g"
	MonounsaturatedFat = "monounsaturated_fat_g"
	PolyunsaturatedFat = "polyunsaturated_fat_g"
	TransFat           = "trans_fat_g"
	Cholesterol        = "cholesterol_mg"
	Fiber              = "fiber_g"
	Sugars             = "sugars_g"
	AddedSugars        = "added_sugars_g"
	Omega3             = "omega3_g"
	Omega6             = "omega6_g"
	Water              = "water_ml"
	Sodium             = "sodium_mg"
	Potassium          = "potassium_mg"
	Calcium            = "calcium_mg"
	Iron               = "iron_mg"
	Magnesium          = "magnesium_mg"
	Phosphorus         = "phosphorus_mg"
	Zinc               = "zinc_mg"
	Copper             = "copper_mg"
	Manganese          = "manganese_mg"
	Selenium           = "selenium_mcg"
	Iodine             = "iodine_mcg"
	VitaminA           = "vitamin_a_mcg"
	VitaminC           = "vitamin_c_mg"
	VitaminD           = "vitamin_d_mcg"
	VitaminE           = "vitamin_e_mg"
	VitaminK           = "vitamin_k_mcg"
	Thiamin            = "thiamin_mg"
	Riboflavin         = "riboflavin_mg"
	Niacin             = "niacin_mg"
	PantothenicAcid    = "pantothenic_acid_mg"
	VitaminB6          = "vitamin_b6_mg"
	Biotin             = "biotin_mcg"
	Folate             = "folate_mcg"
	VitaminB12         = "vitamin_b12_mcg"
	Choline            = "choline_mg"
)

// Info is the fixed set of nutrient fields. All fields are always present
// in JSON; a missing value is zero.
type Info struct {
	EnergyKcal          float64 `json:"energy_kcal"`
	ProteinG            float64 `json:"protein_g"`
	CarbohydrateG       float64 `json:"carbohydrate_g"`
	TotalFatG           float64 `json:"total_fat_g"`
	SaturatedFatG       float64 `json:"saturated_fat_g"`
	MonounsaturatedFatG float64 `json:"monounsaturated_fat_g"`
	PolyunsaturatedFatG float64 `json:"polyunsaturated_fat_g"`
	TransFatG           float64 `json:"trans_fat_g"`
	CholesterolMg       float64 `json:"cholesterol_mg"`
	FiberG              float64 `json:"fiber_g"`
	SugarsG             float64 `json:"sugars_g"`
	AddedSugarsG        float64 `json:"added_sugars_g"`
	Omega3G             float64 `json:"omega3_g"`
	Omega6G             float64 `json:"omega6_g"`
	WaterMl             float64 `json:"water_ml"`
	SodiumMg            float64 `json:"sodium_mg"`
	PotassiumMg         float64 `json:"potassium_mg"`
	CalciumMg           float64 `json:"calcium_mg"`
	IronMg              float64 `json:"iron_mg"`
	MagnesiumMg         float64 `json:"magnesium_mg"`
	PhosphorusMg        float64 `json:"phosphorus_mg"`
	ZincMg              float64 `json:"zinc_mg"`
	CopperMg            float64 `json:"copper_mg"`
	ManganeseMg         float64 `json:"manganese_mg"`
	SeleniumMcg         float64 `json:"selenium_mcg"`
	IodineMcg           float64 `json:"iodine_mcg"`
	VitaminAMcg         float64 `json:"vitamin_a_mcg"`
	VitaminCMg          float64 `json:"vitamin_c_mg"`
	VitaminDMcg         float64 `json:"vitamin_d_mcg"`
	VitaminEMg          float64 `json:"vitamin_e_mg"`
	VitaminKMcg         float64 `json:"vitamin_k_mcg"`
	ThiaminMg           float64 `json:"thiamin_mg"`
	RiboflavinMg        float64 `json:"riboflavin_mg"`
	NiacinMg            float64 `json:"niacin_mg"`
	PantothenicAcidMg   float64 `json:"pantothenic_acid_mg"`
	VitaminB6Mg         float64 `json:"vitamin_b6_mg"`
	BiotinMcg           float64 `json:"biotin_mcg"`
	FolateMcg           float64 `json:"folate_mcg"`
	VitaminB12Mcg       float64 `json:"vitamin_b12_mcg"`
	CholineMg           float64 `json:"choline_mg"`
}

type field struct {
	key string
	ptr func(*Info) *float64
}

var fields = []field{
	{Energy, func(i *Info) *float64 { return &i.EnergyKcal }},
	{Protein, func(i *Info) *float64 { return &i.ProteinG }},
	{Carbohydrate, func(i *Info) *float64 { return &i.CarbohydrateG }},
	{TotalFat, func(i *Info) *float64 { return &i.TotalFatG }},
	{SaturatedFat, func(i *Info) *float64 { return &i.SaturatedFatG }},
	{MonounsaturatedFat, func(i *Info) *float64 { return &i.MonounsaturatedFatG }},
	{PolyunsaturatedFat, func(i *Info) *float64 { return &i.PolyunsaturatedFatG }},
	{TransFat, func(i *Info) *float64 { return &i.TransFatG }},
	{Cholesterol, func(i *Info) *float64 { return &i.CholesterolMg }},
	{Fiber, func(i *Info) *float64 { return &i.FiberG }},
	{Sugars, func(i *Info) *float64 { return &i.SugarsG }},
	{AddedSugars, func(i *Info) *float64 { return &i.AddedSugarsG }},
	{Omega3, func(i *Info) *float64 { return &i.Omega3G }},
	{Omega6, func(i *Info) *float64 { return &i.Omega6G }},
	{Water, func(i *Info) *float64 { return &i.WaterMl }},
	{Sodium, func(i *Info) *float64 { return &i.SodiumMg }},
	{Potassium, func(i *Info) *float64 { return &i.PotassiumMg }},
	{Calcium, func(i *Info) *float64 { return &i.CalciumMg }},
	{Iron, func(i *Info) *float64 { return &i.IronMg }},
	{Magnesium, func(i *Info) *float64 { return &i.MagnesiumMg }},
	{Phosphorus, func(i *Info) *float64 { return &i.PhosphorusMg }},
	{Zinc, func(i *Info) *float64 { return &i.ZincMg }},
	{Copper, func(i *Info) *float64 { return &i.CopperMg }},
	{Manganese, func(i *Info) *float64 { return &i.ManganeseMg }},
	{Selenium, func(i *Info) *float64 { return &i.SeleniumMcg }},
	{Iodine, func(i *Info) *float64 { return &i.IodineMcg }},
	{VitaminA, func(i *Info) *float64 { return &i.VitaminAMcg }},
	{VitaminC, func(i *Info) *float64 { return &i.VitaminCMg }},
	{VitaminD, func(i *Info) *float64 { return &i.VitaminDMcg }},
	{VitaminE, func(i *Info) *float64 { return &i.VitaminEMg }},
	{VitaminK, func(i *Info) *float64 { return &i.VitaminKMcg }},
	{Thiamin, func(i *Info) *float64 { return &i.ThiaminMg }},
	{Riboflavin, func(i *Info) *float64 { return &i.RiboflavinMg }},
	{Niacin, func(i *Info) *float64 { return &i.NiacinMg }},
	{PantothenicAcid, func(i *Info) *float64 { return &i.PantothenicAcidMg }},
	{VitaminB6, func(i *Info) *float64 { return &i.VitaminB6Mg }},
	{Biotin, func(i *Info) *float64 { return &i.BiotinMcg }},
	{Folate, func(i *Info) *float64 { return &i.FolateMcg }},
	{VitaminB12, func(i *Info) *float64 { return &i.VitaminB12Mcg }},
	{Choline, func(i *Info) *float64 { return &i.CholineMg }},
}

var fieldIndex = func() map[string]field {
	idx := make(map[string]field, len(fields))
	for _, f := range fields {
		idx[f.key] = f
	}
	return idx
}()

// Keys returns every nutrient key in declaration order.
func Keys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// IsKey reports whether key names a nutrient field.
func IsKey(key string) bool {
	_, ok := fieldIndex[key]
	return ok
}

// Get returns the value for key and whether the key exists.
func (i *Info) Get(key string) (float64, bool) {
	f, ok := fieldIndex[key]
	if !ok {
		return 0, false
	}
	return *f.ptr(i), true
}

// Set assigns the value for key. Unknown keys are ignored and reported.
func (i *Info) Set(key string, value float64) bool {
	f, ok := fieldIndex[key]
	if !ok {
		return false
	}
	*f.ptr(i) = value
	return true
}

// Add returns i + other, field by field.
func (i Info) Add(other Info) Info {
	out := i
	for _, f := range fields {
		*f.ptr(&out) += *f.ptr(&other)
	}
	return out
}

// Scale returns i multiplied by factor, field by field.
func (i Info) Scale(factor float64) Info {
	out := i
	for _, f := range fields {
		*f.ptr(&out) *= factor
	}
	return out
}

// Round returns a copy with every field rounded to two decimals.
func (i Info) Round() Info {
	out := i
	for _, f := range fields {
		p := f.ptr(&out)
		*p = Round2(*p)
	}
	return out
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
