package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/claimsight/claimsight/internal/pkg/timeutil"
	"github.com/claimsight/claimsight/internal/repo"
)

// SessionCleanupJob drops chat sessions whose latest message is older
// than the configured TTL.
type SessionCleanupJob struct {
	repo       *repo.ChatRepo
	maxAgeDays int
}

func NewSessionCleanupJob(repo *repo.ChatRepo, maxAgeDays int) *SessionCleanupJob {
	return &SessionCleanupJob{repo: repo, maxAgeDays: maxAgeDays}
}

func (j *SessionCleanupJob) Name() string {
	return "chat_session_cleanup"
}

func (j *SessionCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	maxAgeDays := j.maxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = 7
	}
	deleted, err := j.repo.DeleteIdleBefore(ctx, timeutil.DaysAgoUnix(maxAgeDays))
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("pruned idle chat sessions", zap.Int64("deleted_messages", deleted))
	}
	return nil
}
