package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/claimsight/claimsight/internal/pkg/timeutil"
	"github.com/claimsight/claimsight/internal/repo"
)

// EmbeddingCacheCleanupJob prunes cached embeddings older than the
// configured TTL. Anything evicted is simply recomputed on demand.
type EmbeddingCacheCleanupJob struct {
	repo       *repo.EmbeddingCacheRepo
	maxAgeDays int
}

func NewEmbeddingCacheCleanupJob(repo *repo.EmbeddingCacheRepo, maxAgeDays int) *EmbeddingCacheCleanupJob {
	return &EmbeddingCacheCleanupJob{repo: repo, maxAgeDays: maxAgeDays}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	maxAgeDays := j.maxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	deleted, err := j.repo.DeleteBefore(ctx, timeutil.DaysAgoUnix(maxAgeDays))
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("pruned embedding cache", zap.Int64("deleted", deleted))
	}
	return nil
}
