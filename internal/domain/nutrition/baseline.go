package nutrition

import "github.com/alchemorsel/dietgen/internal/domain/profile"

// Baseline returns the adult daily micronutrient reference intakes.
// Energy and macros are left at zero for the calculator to fill.
func Baseline(sex profile.Sex) Info {
	b := Info{
		TransFatG:         2,
		CholesterolMg:     300,
		SugarsG:           50,
		AddedSugarsG:      25,
		SodiumMg:          2000,
		CalciumMg:         1000,
		PhosphorusMg:      700,
		CopperMg:          0.9,
		SeleniumMcg:       55,
		IodineMcg:         150,
		VitaminDMcg:       15,
		VitaminEMg:        15,
		PantothenicAcidMg: 5,
		VitaminB6Mg:       1.3,
		BiotinMcg:         30,
		FolateMcg:         400,
		VitaminB12Mcg:     2.4,
	}

	if sex == profile.SexFemale {
		b.FiberG = 25
		b.Omega3G = 1.1
		b.Omega6G = 12
		b.WaterMl = 2700
		b.PotassiumMg = 2600
		b.IronMg = 18
		b.MagnesiumMg = 320
		b.ZincMg = 8
		b.ManganeseMg = 1.8
		b.VitaminAMcg = 700
		b.VitaminCMg = 75
		b.VitaminKMcg = 90
		b.ThiaminMg = 1.1
		b.RiboflavinMg = 1.1
		b.NiacinMg = 14
		b.CholineMg = 425
		return b
	}

	b.FiberG = 38
	b.Omega3G = 1.6
	b.Omega6G = 17
	b.WaterMl = 3700
	b.PotassiumMg = 3400
	b.IronMg = 8
	b.MagnesiumMg = 420
	b.ZincMg = 11
	b.ManganeseMg = 2.3
	b.VitaminAMcg = 900
	b.VitaminCMg = 90
	b.VitaminKMcg = 120
	b.ThiaminMg = 1.2
	b.RiboflavinMg = 1.3
	b.NiacinMg = 16
	b.CholineMg = 550
	return b
}
