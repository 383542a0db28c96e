package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alchemorsel/dietgen/internal/infrastructure/cache"
	"github.com/alchemorsel/dietgen/internal/testutils"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func catalogJSON(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(testutils.SampleCatalog())
	require.NoError(t, err)
	return raw
}

func TestDecodeFoodsRejectsUnusableEntries(t *testing.T) {
	cases := map[string]string{
		"malformed":  `[{"id":`,
		"no id":      `[{"standard_name":"Arroz"}]`,
		"duplicate":  `[{"id":"a","standard_name":"Arroz"},{"id":"a","standard_name":"Feijão"}]`,
		"no name":    `[{"id":"a"}]`,
		"negative $": `[{"id":"a","standard_name":"Arroz","estimatedPrice":-1}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeFoods(strings.NewReader(body))
			assert.True(t, apperrors.Is(err, apperrors.CodeInvalidArgument), err)
		})
	}
}

func TestImportAndSeedIfEmpty(t *testing.T) {
	repo := &memoryIndexRepo{}
	svc := NewService(repo, cache.NewLocalCache(4, time.Now), DefaultTTL, zap.NewNop())
	ctx := context.Background()

	seeded, err := svc.SeedIfEmpty(ctx, bytes.NewReader(catalogJSON(t)))
	require.NoError(t, err)
	assert.True(t, seeded)
	require.NotNil(t, repo.idx)
	assert.Len(t, repo.idx.AllFoods, len(testutils.SampleCatalog()))

	seeded, err = svc.SeedIfEmpty(ctx, strings.NewReader(`not even json`))
	require.NoError(t, err)
	assert.False(t, seeded, "an existing index is left alone")

	idx, err := svc.Import(ctx, strings.NewReader(`[{"id":"x","standard_name":"Aveia"}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Aveia"}, idx.AllNames)

	foods, err := svc.ListAllFoods(ctx)
	require.NoError(t, err)
	assert.Len(t, foods, 1)
}
