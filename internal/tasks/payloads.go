package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"academyCards/internal/sheet"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeCardExport      = "card:export"
	TypeSheetPrint      = "sheet:print"
	TypeTemplatePreview = "template:preview"
)

// 默认重试次数；最后一次失败时 worker 会推送错误通知。
const DefaultMaxRetry = 3

// CardExportPayload 描述单张卡片 PNG 导出。
type CardExportPayload struct {
	ArtifactID         uint    `json:"artifact_id"`
	RegistrationNumber string  `json:"registration_number"`
	Scale              float64 `json:"scale"`
	SessionID          string  `json:"session_id"`
	CorrelationID      string  `json:"correlation_id"`
}

// SheetPrintPayload 描述整页打印 PDF 生成；RegistrationNumbers 即排版顺序。
type SheetPrintPayload struct {
	ArtifactID          uint           `json:"artifact_id"`
	RegistrationNumbers []string       `json:"registration_numbers"`
	Settings            sheet.Settings `json:"settings"`
	SessionID           string         `json:"session_id"`
	CorrelationID       string         `json:"correlation_id"`
}

// TemplatePreviewPayload 描述模板缩略图生成。
type TemplatePreviewPayload struct {
	TemplateID    string `json:"template_id"`
	CorrelationID string `json:"correlation_id"`
}

// NotifyChannel 是会话通知的 Redis 频道名，API 的 WebSocket 订阅同一频道。
func NotifyChannel(sessionID string) string {
	return fmt.Sprintf("session_notify:%s", sessionID)
}

func newTask(taskType string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, data, asynq.MaxRetry(DefaultMaxRetry)), nil
}

// NewCardExportTask 构造单卡导出任务。
func NewCardExportTask(p CardExportPayload) (*asynq.Task, error) {
	return newTask(TypeCardExport, p)
}

// NewSheetPrintTask 构造整页打印任务。
func NewSheetPrintTask(p SheetPrintPayload) (*asynq.Task, error) {
	return newTask(TypeSheetPrint, p)
}

// NewTemplatePreviewTask 构造模板缩略图任务。
func NewTemplatePreviewTask(templateID, correlationID string) (*asynq.Task, error) {
	return newTask(TypeTemplatePreview, TemplatePreviewPayload{
		TemplateID:    templateID,
		CorrelationID: correlationID,
	})
}

// PreviewTaskID 让同一模板同时最多只有一个待处理的缩略图任务。
func PreviewTaskID(templateID string) string {
	return "template-preview:" + templateID
}
