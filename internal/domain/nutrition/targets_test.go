package nutrition

import (
	"testing"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CalculatorTestSuite struct {
	suite.Suite
	calc *Calculator
}

func (s *CalculatorTestSuite) SetupTest() {
	s.calc = &Calculator{Now: func() time.Time {
		return time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	}}
}

func referenceProfile() profile.HealthProfile {
	return profile.HealthProfile{
		Sex:           "male",
		WeightKg:      80,
		HeightCm:      180,
		DateOfBirth:   "15/05/1990",
		ActivityLevel: "3",
		BodyFatLevel:  "2",
	}
}

func (s *CalculatorTestSuite) TestMuscleGainScenario() {
	baseline, err := s.calc.Calculate(referenceProfile(), nil)
	require.NoError(s.T(), err)

	// 15% body fat -> LBM 68 kg -> Katch-McArdle 1838.8 kcal, x1.55 activity
	assert.InDelta(s.T(), 2850.14, baseline.Daily.EnergyKcal, 0.01)
	assert.InDelta(s.T(), 128.0, baseline.Daily.ProteinG, 0.01)
	assert.Equal(s.T(), 34, baseline.AgeYears)
	assert.Equal(s.T(), 15.0, baseline.BodyFatPercentage)

	gain, err := s.calc.Calculate(referenceProfile(), []GoalKey{GoalMuscleGain})
	require.NoError(s.T(), err)

	assert.InDelta(s.T(), 1.10, gain.Daily.EnergyKcal/baseline.Daily.EnergyKcal, 0.001)
	assert.InDelta(s.T(), 166.4, gain.Daily.ProteinG, 0.01)
	assert.Equal(s.T(), []GoalKey{GoalMuscleGain}, gain.AppliedGoals)
}

func (s *CalculatorTestSuite) TestDeterministic() {
	p := referenceProfile()
	p.HealthConditions = []string{"Diabetes tipo 2"}
	goals := []GoalKey{GoalFatLoss, GoalHeartHealth}

	a, err := s.calc.Calculate(p, goals)
	require.NoError(s.T(), err)
	b, err := s.calc.Calculate(p, goals)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), a, b)
}

func (s *CalculatorTestSuite) TestMifflinWithoutBodyFat() {
	p := referenceProfile()
	p.BodyFatLevel = ""
	p.ActivityLevel = "1"

	got, err := s.calc.Calculate(p, nil)
	require.NoError(s.T(), err)

	// 10*80 + 6.25*180 - 5*34 + 5 = 1760
	assert.InDelta(s.T(), 1760.0, got.RestingEnergyKcal, 0.01)
	assert.InDelta(s.T(), 2112.0, got.Daily.EnergyKcal, 0.01)
}

func (s *CalculatorTestSuite) TestDirectBodyFatWinsOverLevel() {
	p := referenceProfile()
	pct := 20.0
	p.BodyFatPercentage = &pct

	got, err := s.calc.Calculate(p, nil)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 20.0, got.BodyFatPercentage)
	assert.InDelta(s.T(), 370+21.6*64, got.RestingEnergyKcal, 0.01)
}

func (s *CalculatorTestSuite) TestRestrictionsOverrideGoals() {
	p := referenceProfile()
	p.HealthConditions = []string{"Hipertensão"}
	p.DietaryRestrictions = []string{"vegano"}

	got, err := s.calc.Calculate(p, []GoalKey{GoalHeartHealth})
	require.NoError(s.T(), err)

	// heart_health scales sodium to 1600 and sets cholesterol to 200;
	// hypertension and vegan run afterwards and win.
	assert.Equal(s.T(), 1500.0, got.Daily.SodiumMg)
	assert.Equal(s.T(), 0.0, got.Daily.CholesterolMg)
	assert.Equal(s.T(), []string{"hypertension", "vegan"}, got.AppliedRestrictions)
}

func (s *CalculatorTestSuite) TestUnknownGoalsIgnored() {
	got, err := s.calc.Calculate(referenceProfile(), []GoalKey{"levitation"})
	require.NoError(s.T(), err)
	assert.Empty(s.T(), got.AppliedGoals)
}

func (s *CalculatorTestSuite) TestMissingFieldsAreInvalid() {
	for _, mutate := range []func(*profile.HealthProfile){
		func(p *profile.HealthProfile) { p.WeightKg = 0 },
		func(p *profile.HealthProfile) { p.HeightCm = 0 },
		func(p *profile.HealthProfile) { p.DateOfBirth = "" },
		func(p *profile.HealthProfile) { p.Sex = "" },
	} {
		p := referenceProfile()
		mutate(&p)
		_, err := s.calc.Calculate(p, nil)
		assert.ErrorIs(s.T(), err, ErrInvalidProfile)
	}
}

func (s *CalculatorTestSuite) TestNegativeCarbohydrateFails() {
	p := referenceProfile()
	p.WeightKg = 1000
	pct := 69.0
	p.BodyFatPercentage = &pct
	p.ActivityLevel = "1"

	_, err := s.calc.Calculate(p, nil)
	assert.ErrorIs(s.T(), err, ErrNegativeMacro)
}

func (s *CalculatorTestSuite) TestMacrosNeverNegativeOnSuccess() {
	for _, g := range GoalKeys {
		got, err := s.calc.Calculate(referenceProfile(), []GoalKey{g})
		require.NoError(s.T(), err, g)
		assert.GreaterOrEqual(s.T(), got.Daily.ProteinG, 0.0)
		assert.GreaterOrEqual(s.T(), got.Daily.TotalFatG, 0.0)
		assert.GreaterOrEqual(s.T(), got.Daily.CarbohydrateG, 0.0)
	}
}

func TestCalculatorTestSuite(t *testing.T) {
	suite.Run(t, new(CalculatorTestSuite))
}

func TestInfoAccessors(t *testing.T) {
	var info Info
	assert.Len(t, Keys(), 40)

	require.True(t, info.Set(Protein, 10))
	v, ok := info.Get(Protein)
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)

	assert.False(t, info.Set("unobtainium_mg", 1))
	assert.False(t, IsKey("unobtainium_mg"))

	sum := info.Add(info).Scale(0.5)
	assert.Equal(t, 10.0, sum.ProteinG)

	info.EnergyKcal = 1.005001
	assert.Equal(t, 1.01, info.Round().EnergyKcal)
}

func TestModifierSetWinsWithinModifier(t *testing.T) {
	info := Info{SodiumMg: 2000}
	Modifier{
		Multiply: map[string]float64{Sodium: 2},
		Add:      map[string]float64{Sodium: 100},
		Set:      map[string]float64{Sodium: 1500},
	}.Apply(&info)
	assert.Equal(t, 1500.0, info.SodiumMg)
}
