package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/pkg/timeutil"
	"github.com/claimsight/claimsight/internal/repo"
	"github.com/claimsight/claimsight/test/testutil"
)

func TestEmbeddingCacheRepoRoundTrip(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cache := repo.NewEmbeddingCacheRepo(db)
	hash := uuid.NewString()
	embedding := testutil.TestEmbedding(5)

	_, found, err := cache.Get(context.Background(), "embed-model", "RETRIEVAL_DOCUMENT", hash)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, cache.Save(context.Background(), &model.EmbeddingCache{
		ModelName:   "embed-model",
		TaskType:    "RETRIEVAL_DOCUMENT",
		ContentHash: hash,
		Embedding:   embedding,
		Ctime:       timeutil.NowUnix(),
	}))

	stored, found, err := cache.Get(context.Background(), "embed-model", "RETRIEVAL_DOCUMENT", hash)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, stored, len(embedding))
	require.InDelta(t, embedding[10], stored[10], 0.0001)

	// Different task type is a different cache entry.
	_, found, err = cache.Get(context.Background(), "embed-model", "RETRIEVAL_QUERY", hash)
	require.NoError(t, err)
	require.False(t, found)

	// Upsert replaces in place.
	require.NoError(t, cache.Save(context.Background(), &model.EmbeddingCache{
		ModelName:   "embed-model",
		TaskType:    "RETRIEVAL_DOCUMENT",
		ContentHash: hash,
		Embedding:   testutil.TestEmbedding(6),
		Ctime:       timeutil.NowUnix(),
	}))
}

func TestEmbeddingCacheRepoDeleteBefore(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cache := repo.NewEmbeddingCacheRepo(db)
	now := timeutil.NowUnix()
	oldHash := uuid.NewString()
	newHash := uuid.NewString()

	require.NoError(t, cache.Save(context.Background(), &model.EmbeddingCache{
		ModelName:   "embed-model",
		TaskType:    "RETRIEVAL_DOCUMENT",
		ContentHash: oldHash,
		Embedding:   testutil.TestEmbedding(1),
		Ctime:       now - 10000,
	}))
	require.NoError(t, cache.Save(context.Background(), &model.EmbeddingCache{
		ModelName:   "embed-model",
		TaskType:    "RETRIEVAL_DOCUMENT",
		ContentHash: newHash,
		Embedding:   testutil.TestEmbedding(2),
		Ctime:       now,
	}))

	deleted, err := cache.DeleteBefore(context.Background(), now-5000)
	require.NoError(t, err)
	require.GreaterOrEqual(t, deleted, int64(1))

	_, found, err := cache.Get(context.Background(), "embed-model", "RETRIEVAL_DOCUMENT", oldHash)
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = cache.Get(context.Background(), "embed-model", "RETRIEVAL_DOCUMENT", newHash)
	require.NoError(t, err)
	require.True(t, found)
}
