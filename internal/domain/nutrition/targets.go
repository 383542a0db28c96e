package nutrition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/profile"
)

var (
	// ErrInvalidProfile wraps profile validation failures.
	ErrInvalidProfile = errors.New("invalid health profile")
	// ErrNegativeMacro is returned when a macro target resolves below zero.
	ErrNegativeMacro = errors.New("macro target resolved negative")
)

var activityFactors = map[int]float64{1: 1.2, 2: 1.375, 3: 1.55, 4: 1.725, 5: 1.9}

// body fat percentage by ordinal level 1..5
var bodyFatByLevel = map[profile.Sex][]float64{
	profile.SexMale:   {10, 15, 20, 25, 30},
	profile.SexFemale: {18, 23, 28, 33, 38},
}

// Targets is the result of a calculation. Daily holds absolute daily values.
type Targets struct {
	Daily               Info      `json:"daily"`
	AgeYears            int       `json:"ageYears"`
	BodyFatPercentage   float64   `json:"bodyFatPercentage"`
	RestingEnergyKcal   float64   `json:"restingEnergyKcal"`
	TotalEnergyKcal     float64   `json:"totalEnergyKcal"`
	AppliedGoals        []GoalKey `json:"appliedGoals"`
	AppliedRestrictions []string  `json:"appliedRestrictions"`
}

// Weekly returns the daily targets multiplied by seven.
func (t Targets) Weekly() Info {
	return t.Daily.Scale(7)
}

// Calculator derives daily targets. It has no randomness; Now is the only
// input besides its arguments.
type Calculator struct {
	Now func() time.Time
}

// NewCalculator creates a calculator on the wall clock.
func NewCalculator() *Calculator {
	return &Calculator{Now: time.Now}
}

// Calculate computes targets for the profile and goal keys. Goal modifiers
// apply first, in the order given, then restriction modifiers in their
// fixed order.
func (c *Calculator) Calculate(p profile.HealthProfile, goals []GoalKey) (*Targets, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	age, err := p.AgeAt(now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	sex := p.NormalizedSex()
	bodyFat, hasBodyFat := estimateBodyFat(p, sex)

	var ree float64
	if hasBodyFat {
		lbm := p.WeightKg * (1 - bodyFat/100)
		ree = 370 + 21.6*lbm
	} else {
		ree = 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(age)
		if sex == profile.SexMale {
			ree += 5
		} else {
			ree -= 161
		}
	}
	tdee := ree * activityFactors[p.Activity()]

	daily := Baseline(sex)
	daily.EnergyKcal = tdee
	daily.ProteinG = 1.6 * p.WeightKg
	daily.TotalFatG = tdee * 0.25 / 9
	daily.CarbohydrateG = (tdee - daily.ProteinG*4 - daily.TotalFatG*9) / 4
	daily.SaturatedFatG = tdee * 0.10 / 9
	daily.MonounsaturatedFatG = daily.TotalFatG * 0.45
	daily.PolyunsaturatedFatG = daily.TotalFatG * 0.25

	applied := make([]GoalKey, 0, len(goals))
	for _, g := range goals {
		m, ok := goalModifiers[g]
		if !ok {
			continue
		}
		m.Apply(&daily)
		applied = append(applied, g)
	}

	var appliedRestrictions []string
	for _, r := range matchingRestrictions(p.Conditions()) {
		r.modifier.Apply(&daily)
		appliedRestrictions = append(appliedRestrictions, r.name)
	}

	for _, k := range []string{Protein, TotalFat, Carbohydrate} {
		if v, _ := daily.Get(k); v < 0 {
			return nil, fmt.Errorf("%w: %s=%.2f", ErrNegativeMacro, k, v)
		}
	}

	return &Targets{
		Daily:               daily.Round(),
		AgeYears:            age,
		BodyFatPercentage:   Round2(bodyFat),
		RestingEnergyKcal:   Round2(ree),
		TotalEnergyKcal:     Round2(daily.EnergyKcal),
		AppliedGoals:        applied,
		AppliedRestrictions: appliedRestrictions,
	}, nil
}

// estimateBodyFat prefers a direct percentage, then the ordinal level.
func estimateBodyFat(p profile.HealthProfile, sex profile.Sex) (float64, bool) {
	if p.BodyFatPercentage != nil && *p.BodyFatPercentage > 0 && *p.BodyFatPercentage < 70 {
		return *p.BodyFatPercentage, true
	}
	level, err := strconv.Atoi(strings.TrimSpace(p.BodyFatLevel))
	if err != nil || level < 1 {
		return 0, false
	}
	table := bodyFatByLevel[sex]
	if level > len(table) {
		level = len(table)
	}
	return table[level-1], true
}
