package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"academyCards/internal/errcode"
	"academyCards/internal/people"
	"academyCards/internal/repository"
	"academyCards/internal/storage"
	"academyCards/internal/tasks"
)

// CardExportHandler 消费单卡 PNG 导出任务。
type CardExportHandler struct {
	deps *Deps
}

func NewCardExportHandler(deps *Deps) *CardExportHandler {
	return &CardExportHandler{deps: deps}
}

// ProcessTask 实现 asynq.Handler。
func (h *CardExportHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	d := h.deps
	log := d.Logger

	var payload tasks.CardExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal card export payload: %w", asynq.SkipRetry)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("artifact_id", uint64(payload.ArtifactID)),
		slog.String("registration_number", payload.RegistrationNumber),
	)
	log.Info("Starting card export task...")

	artifact, err := d.loadArtifact(ctx, payload.ArtifactID)
	if err != nil {
		log.Error("query artifact failed", slog.Any("error", err))
		return err
	}
	if artifact == nil {
		log.Warn("artifact not found, skipping task")
		return nil
	}

	base := JobNotifyMessage{
		Kind:          tasks.TypeCardExport,
		ArtifactID:    artifact.ID,
		CorrelationID: payload.CorrelationID,
	}
	fail := func(status string, code int, reason string) {
		d.failArtifact(ctx, log, artifact, reason)
		msg := base
		msg.Status, msg.ErrorCode, msg.ErrorMessage = status, code, reason
		d.notify(ctx, log, payload.SessionID, msg)
	}

	defer func() {
		if retErr == nil || !isFinalAsynqAttempt(ctx) {
			return
		}
		fail(StatusError, errcode.SystemError, retErr.Error())
	}()

	rec, err := d.People.ByRegistration(ctx, payload.RegistrationNumber)
	if errors.Is(err, people.ErrNotFound) {
		log.Warn("person not found")
		fail(StatusError, errcode.ResourceMissing, "person not found")
		return nil
	}
	if err != nil {
		log.Error("query person failed", slog.Any("error", err))
		return err
	}

	tpl, err := repository.ForCategory(ctx, d.Templates, rec.Category)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("no template for category", slog.String("category", string(rec.Category)))
		fail(StatusNoTemplate, errcode.TemplateMissing, "no template for category "+string(rec.Category))
		return nil
	}
	if err != nil {
		log.Error("load template failed", slog.Any("error", err))
		return err
	}

	res := d.Renderer.Render(ctx, tpl, rec, payload.Scale)
	png, err := d.Rasterizer.PNG(res.Card)
	if err != nil {
		log.Error("rasterize card failed", slog.Any("error", err))
		return err
	}

	objectName := storage.ExportKey("card", uuid.NewString(), ".png")
	if _, err := d.Storage.UploadFile(ctx, objectName, bytes.NewReader(png), int64(len(png)), "image/png"); err != nil {
		log.Error("upload png to minio failed", slog.Any("error", err))
		return err
	}

	downloadURL, err := d.Storage.PresignedDownloadURL(ctx, objectName, rec.ID()+".png", downloadTTL)
	if err != nil {
		log.Error("presign png failed", slog.Any("error", err))
		return err
	}

	if err := d.completeArtifact(ctx, artifact, objectName); err != nil {
		log.Error("update artifact failed", slog.Any("error", err))
		return err
	}

	msg := base
	msg.Status = StatusCompleted
	msg.DownloadURL = downloadURL
	if len(res.Card.Warnings) > 0 {
		msg.ErrorCode = errcode.ResourceMissing
		msg.ErrorMessage = "部分字段资源缺失，已留空"
		msg.MissingKeys = warningKeys(res.Card.Warnings)
		log.Warn("card exported with missing resources", slog.Any("missing_keys", msg.MissingKeys))
	}
	d.notify(ctx, log, payload.SessionID, msg)

	log.Info("Card export task completed.")
	return nil
}
