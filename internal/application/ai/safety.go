package ai

import (
	"context"
	"strings"

	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/profile"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"go.uber.org/zap"
)

// SafetyChecker re-validates the final food list against the user's
// restrictions. It fails closed.
type SafetyChecker struct {
	completer outbound.Completer
	logger    *zap.Logger
}

// NewSafetyChecker creates a safety checker.
func NewSafetyChecker(completer outbound.Completer, logger *zap.Logger) *SafetyChecker {
	return &SafetyChecker{completer: completer, logger: logger.Named("safety-checker")}
}

type conflictReport struct {
	HasConflict      bool     `json:"hasConflict"`
	ConflictingFoods []string `json:"conflictingFoods"`
	Reason           string   `json:"reason"`
}

// Check returns SAFETY_CONFLICT when the provider reports a conflict.
func (s *SafetyChecker) Check(ctx context.Context, items []food.Item, p profile.HealthProfile, provider string) error {
	if !p.HasRestrictions() || len(items) == 0 {
		return nil
	}

	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Food.StandardName
	}

	var b strings.Builder
	b.WriteString("Verifique se algum alimento da lista conflita com as restrições do usuário.\n")
	b.WriteString(p.RestrictionText())
	b.WriteString("\nAlimentos: ")
	b.WriteString(strings.Join(names, "; "))
	b.WriteString("\n\nResponda APENAS com JSON no formato ")
	b.WriteString(`{"hasConflict":false,"conflictingFoods":[],"reason":""}`)

	reply, err := s.completer.Complete(ctx, provider, outbound.CompletionRequest{Prompt: b.String(), JSON: true})
	if err != nil {
		return err
	}

	var report conflictReport
	if err := decodeObject(reply, &report); err != nil {
		return apperrors.NewInternalError("safety check reply is not valid JSON").WithCause(err)
	}
	if report.HasConflict {
		s.logger.Warn("Safety check found a conflict",
			zap.Strings("foods", report.ConflictingFoods),
			zap.String("reason", report.Reason))
		return apperrors.NewSafetyConflictError(report.ConflictingFoods, report.Reason)
	}
	return nil
}
