// Package catalog serves the precomputed food catalog index through a
// time-boxed in-process cache.
package catalog

import (
	"context"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"go.uber.org/zap"
)

// DefaultTTL is how long a loaded index is served before it is re-read.
const DefaultTTL = 10 * time.Minute

const indexKey = "catalog:index"

// Service reads the catalog index. The cache is shared by every job.
type Service struct {
	repo   outbound.CatalogIndexRepository
	cache  outbound.CatalogCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewService creates a catalog service.
func NewService(repo outbound.CatalogIndexRepository, cache outbound.CatalogCache, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, logger: logger.Named("catalog-service")}
}

// ListFoodNames returns every catalog name, sorted.
func (s *Service) ListFoodNames(ctx context.Context) ([]string, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	return idx.AllNames, nil
}

// ListAllFoods returns the full catalog.
func (s *Service) ListAllFoods(ctx context.Context) ([]food.Food, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	return idx.AllFoods, nil
}

// Invalidate drops the cached index so the next read hits the repository.
func (s *Service) Invalidate() {
	s.cache.Delete(indexKey)
}

// Refresh replaces the stored index with one built from foods.
func (s *Service) Refresh(ctx context.Context, foods []food.Food) (food.CatalogIndex, error) {
	idx := food.NewCatalogIndex(foods, time.Now())
	if err := s.repo.Store(ctx, idx); err != nil {
		return idx, apperrors.NewDatabaseError("store catalog index", err)
	}
	s.Invalidate()
	s.logger.Info("Catalog index refreshed", zap.Int("foods", len(idx.AllFoods)), zap.Int("names", len(idx.AllNames)))
	return idx, nil
}

func (s *Service) index(ctx context.Context) (*food.CatalogIndex, error) {
	if v, ok := s.cache.Get(indexKey); ok {
		if idx, ok := v.(*food.CatalogIndex); ok {
			return idx, nil
		}
	}

	idx, err := s.repo.Load(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load catalog index", err)
	}
	if idx == nil {
		// Not cached, so a fresh import is picked up on the next read.
		s.logger.Warn("Catalog index is missing, serving an empty catalog")
		return &food.CatalogIndex{AllNames: []string{}, AllFoods: []food.Food{}}, nil
	}

	s.cache.Set(indexKey, idx, s.ttl)
	s.logger.Debug("Catalog index loaded", zap.Int("foods", len(idx.AllFoods)), zap.Time("updated_at", idx.UpdatedAt))
	return idx, nil
}
