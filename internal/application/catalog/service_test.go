package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/infrastructure/cache"
	"github.com/alchemorsel/dietgen/internal/testutils"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryIndexRepo struct {
	idx   *food.CatalogIndex
	err   error
	loads int
}

func (r *memoryIndexRepo) Load(context.Context) (*food.CatalogIndex, error) {
	r.loads++
	return r.idx, r.err
}

func (r *memoryIndexRepo) Store(_ context.Context, idx food.CatalogIndex) error {
	r.idx = &idx
	return nil
}

func TestServiceCachesIndexUntilTTL(t *testing.T) {
	now := time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	idx := food.NewCatalogIndex(testutils.SampleCatalog(), now)
	repo := &memoryIndexRepo{idx: &idx}
	svc := NewService(repo, cache.NewLocalCache(10, clock), DefaultTTL, zap.NewNop())

	names, err := svc.ListFoodNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, idx.AllNames, names)

	foods, err := svc.ListAllFoods(context.Background())
	require.NoError(t, err)
	assert.Len(t, foods, len(testutils.SampleCatalog()))
	assert.Equal(t, 1, repo.loads)

	now = now.Add(DefaultTTL)
	_, err = svc.ListAllFoods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.loads)

	svc.Invalidate()
	_, err = svc.ListFoodNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, repo.loads)
}

func TestServiceDegradesToEmptyCatalog(t *testing.T) {
	repo := &memoryIndexRepo{}
	svc := NewService(repo, cache.NewLocalCache(10, nil), 0, zap.NewNop())

	names, err := svc.ListFoodNames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)

	foods, err := svc.ListAllFoods(context.Background())
	require.NoError(t, err)
	assert.Empty(t, foods)
	assert.Equal(t, 2, repo.loads)
}

func TestServiceReportsRepositoryFailure(t *testing.T) {
	svc := NewService(&memoryIndexRepo{err: errors.New("disk")}, cache.NewLocalCache(10, nil), 0, zap.NewNop())
	_, err := svc.ListAllFoods(context.Background())
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetCode(err))
}

func TestRefreshStoresAndInvalidates(t *testing.T) {
	repo := &memoryIndexRepo{}
	svc := NewService(repo, cache.NewLocalCache(10, nil), 0, zap.NewNop())

	_, err := svc.ListFoodNames(context.Background())
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), testutils.SampleCatalog()[:3])
	require.NoError(t, err)

	names, err := svc.ListFoodNames(context.Background())
	require.NoError(t, err)
	assert.Len(t, names, 3)
}
