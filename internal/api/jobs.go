package api

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"academyCards/internal/database"
)

// TaskEnqueuer 是 *asynq.Client 的入队能力，测试中可替换。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// enqueueArtifact 先落库一条 pending 导出记录，再用其 id 构造任务入队。
// 入队失败时记录被标记为 failed，避免前端一直等待。
func enqueueArtifact(
	ctx context.Context,
	db *gorm.DB,
	enqueuer TaskEnqueuer,
	artifact *database.Artifact,
	build func(artifactID uint) (*asynq.Task, error),
) (string, error) {
	artifact.Status = database.ArtifactPending
	if err := db.WithContext(ctx).Create(artifact).Error; err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}

	task, err := build(artifact.ID)
	if err == nil {
		var info *asynq.TaskInfo
		info, err = enqueuer.EnqueueContext(ctx, task)
		if err == nil {
			return info.ID, nil
		}
	}

	_ = db.WithContext(ctx).Model(artifact).Updates(map[string]any{
		"status":        database.ArtifactFailed,
		"error_message": "enqueue failed",
	}).Error
	return "", fmt.Errorf("enqueue %s: %w", artifact.Kind, err)
}
