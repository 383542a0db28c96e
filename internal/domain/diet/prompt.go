package diet

import "github.com/alchemorsel/dietgen/internal/domain/nutrition"

// InterpretedPrompt is the structured intent read from a free-text request.
// It is produced once per job and treated as immutable afterwards.
type InterpretedPrompt struct {
	OriginalPrompt       string              `json:"originalPrompt"`
	ApplicableGoalKeys   []nutrition.GoalKey `json:"applicableGoalKeys"`
	PrioritizedNutrients []string            `json:"prioritizedNutrients"`
	FoodsToInclude       []string            `json:"foodsToInclude"`
	FoodsToAvoid         []string            `json:"foodsToAvoid"`
	Explanation          string              `json:"explanation"`
	IsBudgetFriendly     bool                `json:"isBudgetFriendly"`
}

// WithBudgetFriendly returns a copy with the budget flag forced on.
func (p InterpretedPrompt) WithBudgetFriendly() InterpretedPrompt {
	out := p
	out.ApplicableGoalKeys = append([]nutrition.GoalKey(nil), p.ApplicableGoalKeys...)
	out.PrioritizedNutrients = append([]string(nil), p.PrioritizedNutrients...)
	out.FoodsToInclude = append([]string(nil), p.FoodsToInclude...)
	out.FoodsToAvoid = append([]string(nil), p.FoodsToAvoid...)
	out.IsBudgetFriendly = true
	return out
}

// GoalText is a short description of the intent, used in explanation prompts.
func (p InterpretedPrompt) GoalText() string {
	if p.Explanation != "" {
		return p.Explanation
	}
	return p.OriginalPrompt
}
