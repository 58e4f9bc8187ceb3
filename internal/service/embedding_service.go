package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/claimsight/claimsight/internal/ai"
	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/pkg/timeutil"
	"github.com/claimsight/claimsight/internal/repo"
)

// EmbeddingService fronts the AI manager's embedding call with two
// cache layers: an in-process LRU for hot texts and the Postgres
// embedding_cache table for anything re-uploaded across restarts.
type EmbeddingService struct {
	manager *ai.Manager
	store   *repo.EmbeddingCacheRepo
	cache   *expirable.LRU[string, []float32]
}

func NewEmbeddingService(manager *ai.Manager, store *repo.EmbeddingCacheRepo) *EmbeddingService {
	cache := expirable.NewLRU[string, []float32](10000, nil, 2*time.Hour)
	return &EmbeddingService{
		manager: manager,
		store:   store,
		cache:   cache,
	}
}

func (s *EmbeddingService) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	contentHash := hashText(text)
	key := taskType + ":" + contentHash
	if embedding, ok := s.cache.Get(key); ok {
		return embedding, nil
	}
	modelName := s.manager.EmbeddingModelName()
	if s.store != nil {
		embedding, ok, err := s.store.Get(ctx, modelName, taskType, contentHash)
		if err != nil {
			logutil.GetLogger(ctx).Warn("read embedding cache failed", zap.Error(err))
		} else if ok {
			s.cache.Add(key, embedding)
			return embedding, nil
		}
	}
	embedding, err := s.manager.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, embedding)
	if s.store != nil {
		item := &model.EmbeddingCache{
			ModelName:   modelName,
			TaskType:    taskType,
			ContentHash: contentHash,
			Embedding:   embedding,
			Ctime:       timeutil.NowUnix(),
		}
		if err := s.store.Save(ctx, item); err != nil {
			logutil.GetLogger(ctx).Warn("persist embedding cache failed", zap.Error(err))
		}
	}
	return embedding, nil
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
