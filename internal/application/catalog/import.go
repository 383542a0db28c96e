package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alchemorsel/dietgen/internal/domain/food"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"go.uber.org/zap"
)

// DecodeFoods reads a JSON array of foods and rejects entries the
// selector cannot use.
func DecodeFoods(r io.Reader) ([]food.Food, error) {
	var foods []food.Food
	if err := json.NewDecoder(r).Decode(&foods); err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("malformed catalog: %v", err))
	}

	seen := make(map[string]bool, len(foods))
	for i, f := range foods {
		switch {
		case strings.TrimSpace(f.ID) == "":
			return nil, apperrors.NewValidationError(fmt.Sprintf("food #%d has no id", i))
		case seen[f.ID]:
			return nil, apperrors.NewValidationError(fmt.Sprintf("duplicate food id %q", f.ID))
		case strings.TrimSpace(f.StandardName) == "":
			return nil, apperrors.NewValidationError(fmt.Sprintf("food %q has no standard_name", f.ID))
		case f.EstimatedPrice < 0:
			return nil, apperrors.NewValidationError(fmt.Sprintf("food %q has a negative price", f.ID))
		}
		seen[f.ID] = true
	}
	return foods, nil
}

// Import replaces the stored index with the foods read from r.
func (s *Service) Import(ctx context.Context, r io.Reader) (food.CatalogIndex, error) {
	foods, err := DecodeFoods(r)
	if err != nil {
		return food.CatalogIndex{}, err
	}
	return s.Refresh(ctx, foods)
}

// SeedIfEmpty imports from r only when no index is stored yet. It reports
// whether an import happened.
func (s *Service) SeedIfEmpty(ctx context.Context, r io.Reader) (bool, error) {
	existing, err := s.repo.Load(ctx)
	if err != nil {
		return false, apperrors.NewDatabaseError("load catalog index", err)
	}
	if existing != nil {
		s.logger.Debug("Catalog index already present, skipping seed", zap.Int("foods", len(existing.AllFoods)))
		return false, nil
	}
	if _, err := s.Import(ctx, r); err != nil {
		return false, err
	}
	return true, nil
}
