// Package profile holds the user's health profile and delivery address,
// the immutable inputs of a diet generation job.
package profile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sex values accepted on a profile
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

var (
	ErrMissingSex         = errors.New("sex is required")
	ErrMissingWeight      = errors.New("weight must be greater than 0")
	ErrMissingHeight      = errors.New("height must be greater than 0")
	ErrMissingDateOfBirth = errors.New("date of birth is required")
	ErrInvalidDateOfBirth = errors.New("date of birth must be dd/mm/yyyy or yyyy-mm-dd")
)

// HealthProfile is never mutated once a job starts.
type HealthProfile struct {
	Sex                 Sex      `json:"sex" validate:"required"`
	DateOfBirth         string   `json:"dateOfBirth" validate:"required"`
	HeightCm            float64  `json:"height" validate:"required,gt=0"`
	WeightKg            float64  `json:"weight" validate:"required,gt=0"`
	ActivityLevel       string   `json:"activityLevel"`
	BodyFatLevel        string   `json:"bodyFatLevel,omitempty"`
	BodyFatPercentage   *float64 `json:"bodyFatPercentage,omitempty"`
	Allergies           []string `json:"allergies"`
	DietaryRestrictions []string `json:"dietaryRestrictions"`
	HealthConditions    []string `json:"healthConditions"`
	Medications         []string `json:"medications"`
}

// Address is forwarded to geocoding in the final stage.
type Address struct {
	Street       string  `json:"street"`
	Number       string  `json:"number"`
	Complement   string  `json:"complement,omitempty"`
	Neighborhood string  `json:"neighborhood"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	ZipCode      string  `json:"zipCode"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
}

// OneLine formats the address for geocoders.
func (a Address) OneLine() string {
	parts := []string{}
	street := strings.TrimSpace(strings.Join([]string{a.Street, a.Number}, " "))
	for _, p := range []string{street, a.Neighborhood, a.City, a.State, a.ZipCode} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// NormalizedSex maps Portuguese and English spellings onto Sex.
func (p HealthProfile) NormalizedSex() Sex {
	switch strings.ToLower(strings.TrimSpace(string(p.Sex))) {
	case "male", "m", "masculino", "homem":
		return SexMale
	case "female", "f", "feminino", "mulher":
		return SexFemale
	}
	return ""
}

// Validate checks the fields the calculator cannot work without.
func (p HealthProfile) Validate() error {
	if p.NormalizedSex() == "" {
		return ErrMissingSex
	}
	if p.WeightKg <= 0 {
		return ErrMissingWeight
	}
	if p.HeightCm <= 0 {
		return ErrMissingHeight
	}
	if strings.TrimSpace(p.DateOfBirth) == "" {
		return ErrMissingDateOfBirth
	}
	if _, err := ParseDateOfBirth(p.DateOfBirth); err != nil {
		return err
	}
	return nil
}

// ParseDateOfBirth accepts dd/mm/yyyy and yyyy-mm-dd.
func ParseDateOfBirth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"02/01/2006", "2/1/2006", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDateOfBirth
}

// AgeAt returns full years between the date of birth and now.
func (p HealthProfile) AgeAt(now time.Time) (int, error) {
	dob, err := ParseDateOfBirth(p.DateOfBirth)
	if err != nil {
		return 0, err
	}
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0, fmt.Errorf("date of birth %q is in the future", p.DateOfBirth)
	}
	return age, nil
}

// Activity returns the 1..5 activity ordinal, defaulting to 1.
func (p HealthProfile) Activity() int {
	n, err := strconv.Atoi(strings.TrimSpace(p.ActivityLevel))
	if err != nil || n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}

// HasRestrictions reports whether the restriction filter has any work to do.
func (p HealthProfile) HasRestrictions() bool {
	return len(nonEmpty(p.Allergies)) > 0 || len(nonEmpty(p.DietaryRestrictions)) > 0
}

// RestrictionText lists allergies and dietary restrictions for prompts.
func (p HealthProfile) RestrictionText() string {
	var parts []string
	if a := nonEmpty(p.Allergies); len(a) > 0 {
		parts = append(parts, "Alergias/intolerâncias: "+strings.Join(a, ", "))
	}
	if r := nonEmpty(p.DietaryRestrictions); len(r) > 0 {
		parts = append(parts, "Restrições alimentares: "+strings.Join(r, ", "))
	}
	return strings.Join(parts, ". ")
}

// Conditions returns health conditions and dietary restrictions lowercased,
// the inputs of restriction-based target modifiers.
func (p HealthProfile) Conditions() []string {
	var out []string
	for _, s := range append(append([]string{}, p.HealthConditions...), p.DietaryRestrictions...) {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
