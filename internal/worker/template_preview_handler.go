package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"academyCards/internal/card"
	"academyCards/internal/database"
	"academyCards/internal/repository"
	"academyCards/internal/tasks"
)

// TemplatePreviewHandler 负责模板缩略图生成任务：用空记录渲染（字段显示标签）。
type TemplatePreviewHandler struct {
	deps *Deps
}

func NewTemplatePreviewHandler(deps *Deps) *TemplatePreviewHandler {
	return &TemplatePreviewHandler{deps: deps}
}

func (h *TemplatePreviewHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	d := h.deps
	log := d.Logger

	var payload tasks.TemplatePreviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal template preview payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal template preview payload: %w", asynq.SkipRetry)
	}

	log = log.With(
		slog.String("template_id", payload.TemplateID),
		slog.String("correlation_id", payload.CorrelationID),
	)
	log.Info("Starting template preview generation task...")

	tpl, err := d.Templates.Get(ctx, payload.TemplateID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("template not found, skipping task")
		return nil
	}
	if err != nil {
		log.Error("query template failed", slog.Any("error", err))
		return err
	}

	res := d.Renderer.Render(ctx, tpl, card.Record{Category: tpl.Category}, 1)
	previewBytes, err := d.Rasterizer.PNG(res.Card)
	if err != nil {
		log.Error("rasterize template preview failed", slog.Any("error", err))
		return err
	}

	objectName := fmt.Sprintf("thumbnails/template/%s/preview.png", tpl.ID)
	if _, err := d.Storage.UploadFile(ctx, objectName, bytes.NewReader(previewBytes), int64(len(previewBytes)), "image/png"); err != nil {
		log.Error("upload template preview failed", slog.Any("error", err))
		return err
	}

	const presignTTL = 7 * 24 * time.Hour
	url, err := d.Storage.PresignedDownloadURL(ctx, objectName, "", presignTTL)
	if err != nil {
		log.Error("generate template preview url failed", slog.Any("error", err))
		return err
	}

	if err := d.DB.WithContext(ctx).
		Model(&database.CardTemplate{}).
		Where("id = ?", tpl.ID).
		UpdateColumn("preview_image_url", url).Error; err != nil {
		log.Error("update template preview url failed", slog.Any("error", err))
		return err
	}

	log.Info("Template preview generation completed.")
	return nil
}
