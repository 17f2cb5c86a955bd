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
	"academyCards/internal/pdf"
	"academyCards/internal/repository"
	"academyCards/internal/sheet"
	"academyCards/internal/storage"
	"academyCards/internal/tasks"
)

// SheetPrintHandler 把选中的卡片排到整页并导出 PDF。打印本身交给用户的打印环境。
type SheetPrintHandler struct {
	deps *Deps
}

func NewSheetPrintHandler(deps *Deps) *SheetPrintHandler {
	return &SheetPrintHandler{deps: deps}
}

// ProcessTask 实现 asynq.Handler。
func (h *SheetPrintHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	d := h.deps
	log := d.Logger

	var payload tasks.SheetPrintPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal sheet print payload: %w", asynq.SkipRetry)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("artifact_id", uint64(payload.ArtifactID)),
		slog.Int("cards", len(payload.RegistrationNumbers)),
	)
	log.Info("Starting sheet print task...")

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
		Kind:          tasks.TypeSheetPrint,
		ArtifactID:    artifact.ID,
		CorrelationID: payload.CorrelationID,
	}
	fail := func(code int, reason string) {
		d.failArtifact(ctx, log, artifact, reason)
		msg := base
		msg.Status, msg.ErrorCode, msg.ErrorMessage = StatusError, code, reason
		d.notify(ctx, log, payload.SessionID, msg)
	}

	defer func() {
		if retErr == nil || !isFinalAsynqAttempt(ctx) {
			return
		}
		fail(errcode.SystemError, retErr.Error())
	}()

	layout, err := sheet.ComputeLayout(payload.Settings)
	if err != nil {
		log.Warn("invalid sheet settings", slog.Any("error", err))
		fail(errcode.SystemError, err.Error())
		return nil
	}

	records, missingPeople, err := d.People.ByRegistrations(ctx, payload.RegistrationNumbers)
	if err != nil {
		log.Error("query people failed", slog.Any("error", err))
		return err
	}

	templates, missingTemplates, err := repository.ForRecords(ctx, d.Templates, records)
	if err != nil {
		log.Error("load templates failed", slog.Any("error", err))
		return err
	}

	composed, err := d.Composer.Compose(ctx, templates, records, layout)
	if errors.Is(err, sheet.ErrCapacityExceeded) {
		log.Warn("sheet capacity exceeded", slog.Int("capacity", layout.Capacity))
		fail(errcode.CapacityExceeded, err.Error())
		return nil
	}
	if err != nil {
		log.Error("compose sheet failed", slog.Any("error", err))
		return err
	}

	html, err := composed.HTML()
	if err != nil {
		log.Error("render sheet html failed", slog.Any("error", err))
		return err
	}

	data, err := d.PDF.GeneratePDF(ctx, html, pdf.PageSize{
		WidthMM:  layout.Settings.SheetWidthMM,
		HeightMM: layout.Settings.SheetHeightMM,
	})
	if err != nil {
		log.Error("generate pdf failed", slog.Any("error", err))
		return err
	}

	objectName := storage.ExportKey("sheet", uuid.NewString(), ".pdf")
	if _, err := d.Storage.UploadFile(ctx, objectName, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	downloadURL, err := d.Storage.PresignedDownloadURL(ctx, objectName, "cards.pdf", downloadTTL)
	if err != nil {
		log.Error("presign pdf failed", slog.Any("error", err))
		return err
	}

	if err := d.completeArtifact(ctx, artifact, objectName); err != nil {
		log.Error("update artifact failed", slog.Any("error", err))
		return err
	}

	msg := base
	msg.Status = StatusCompleted
	msg.DownloadURL = downloadURL
	missing := append([]string{}, missingPeople...)
	missing = append(missing, missingTemplates...)
	for _, cell := range composed.Cells {
		if cell.Result.Card != nil {
			missing = append(missing, warningKeys(cell.Result.Card.Warnings)...)
		}
	}
	if len(missing) > 0 {
		msg.ErrorCode = errcode.ResourceMissing
		msg.ErrorMessage = "部分卡片或资源缺失，已跳过并继续生成"
		msg.MissingKeys = missing
		log.Warn("sheet printed with missing resources", slog.Any("missing_keys", missing))
	}
	d.notify(ctx, log, payload.SessionID, msg)

	log.Info("Sheet print task completed.")
	return nil
}
