package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"academyCards/internal/tasks"
)

// 通知状态。
const (
	StatusCompleted  = "completed"
	StatusError      = "error"
	StatusNoTemplate = "no-template"
)

// JobNotifyMessage 是通过 Redis Pub/Sub 转发到 WebSocket 的任务结果。
type JobNotifyMessage struct {
	Status        string   `json:"status"`
	Kind          string   `json:"kind"`
	ArtifactID    uint     `json:"artifact_id,omitempty"`
	TemplateID    string   `json:"template_id,omitempty"`
	CorrelationID string   `json:"correlation_id"`
	DownloadURL   string   `json:"download_url,omitempty"`
	ErrorCode     int      `json:"error_code"`
	ErrorMessage  string   `json:"error_message"`
	MissingKeys   []string `json:"missing_keys,omitempty"`
}

// Notifier 把任务结果推送给某个会话。
type Notifier interface {
	Notify(ctx context.Context, sessionID string, msg JobNotifyMessage) error
}

// RedisNotifier 发布到 session_notify:<session> 频道。
type RedisNotifier struct {
	client redis.UniversalClient
}

func NewRedisNotifier(client redis.UniversalClient) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Notify(ctx context.Context, sessionID string, msg JobNotifyMessage) error {
	if sessionID == "" {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := tasks.NotifyChannel(sessionID)
	if err := n.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
