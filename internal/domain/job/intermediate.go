package job

import (
	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
)

// AllowList is the restriction filter output.
type AllowList struct {
	FoodIDs  []string `json:"foodIds"`
	Filtered bool     `json:"filtered"`
}

// Selection is the quantified, explained food list.
type Selection struct {
	Items       []food.Item `json:"items"`
	Explanation string      `json:"explanation"`
}

// IntermediateData accumulates stage outputs. Each field is written by
// exactly one step and read by the steps after it.
type IntermediateData struct {
	InterpretedPrompt *diet.InterpretedPrompt `json:"interpretedPrompt,omitempty"`
	Targets           *nutrition.Targets      `json:"targets,omitempty"`
	Allowed           *AllowList              `json:"allowed,omitempty"`
	Selection         *Selection              `json:"selection,omitempty"`
}

// Merge returns d with every non-nil field of other copied over.
func (d IntermediateData) Merge(other IntermediateData) IntermediateData {
	if other.InterpretedPrompt != nil {
		d.InterpretedPrompt = other.InterpretedPrompt
	}
	if other.Targets != nil {
		d.Targets = other.Targets
	}
	if other.Allowed != nil {
		d.Allowed = other.Allowed
	}
	if other.Selection != nil {
		d.Selection = other.Selection
	}
	return d
}

func (d IntermediateData) RequirePrompt() (diet.InterpretedPrompt, error) {
	if d.InterpretedPrompt == nil {
		return diet.InterpretedPrompt{}, apperrors.NewMissingPrerequisiteError("interpretedPrompt")
	}
	return *d.InterpretedPrompt, nil
}

func (d IntermediateData) RequireTargets() (nutrition.Targets, error) {
	if d.Targets == nil {
		return nutrition.Targets{}, apperrors.NewMissingPrerequisiteError("targets")
	}
	return *d.Targets, nil
}

func (d IntermediateData) RequireAllowed() (AllowList, error) {
	if d.Allowed == nil {
		return AllowList{}, apperrors.NewMissingPrerequisiteError("allowed")
	}
	return *d.Allowed, nil
}

func (d IntermediateData) RequireSelection() (Selection, error) {
	if d.Selection == nil || len(d.Selection.Items) == 0 {
		return Selection{}, apperrors.NewMissingPrerequisiteError("selection")
	}
	return *d.Selection, nil
}
