package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"academyCards/internal/card"
	"academyCards/internal/database"
	"academyCards/internal/errcode"
	"academyCards/internal/pdf"
	"academyCards/internal/render"
	"academyCards/internal/repository"
	"academyCards/internal/sheet"
)

const downloadTTL = 24 * time.Hour

// ObjectStore 是 worker 使用的对象存储能力。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	PresignedDownloadURL(ctx context.Context, objectKey, filename string, duration time.Duration) (string, error)
}

// RecordSource 提供只读的人员记录。
type RecordSource interface {
	ByRegistration(ctx context.Context, registrationNumber string) (card.Record, error)
	ByRegistrations(ctx context.Context, numbers []string) ([]card.Record, []string, error)
}

// Deps 汇总所有任务处理器共享的依赖。
type Deps struct {
	DB         *gorm.DB
	Templates  repository.Store
	People     RecordSource
	Storage    ObjectStore
	Notifier   Notifier
	Renderer   *render.Renderer
	Rasterizer *render.Rasterizer
	Composer   *sheet.Composer
	PDF        pdf.Generator
	Logger     *slog.Logger
}

func (d *Deps) loadArtifact(ctx context.Context, id uint) (*database.Artifact, error) {
	var artifact database.Artifact
	if err := d.DB.WithContext(ctx).First(&artifact, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query artifact %d: %w", id, err)
	}
	return &artifact, nil
}

func (d *Deps) completeArtifact(ctx context.Context, artifact *database.Artifact, objectKey string) error {
	err := d.DB.WithContext(ctx).Model(artifact).Updates(map[string]any{
		"status":        database.ArtifactCompleted,
		"object_key":    objectKey,
		"error_message": "",
	}).Error
	if err != nil {
		return fmt.Errorf("update artifact %d: %w", artifact.ID, err)
	}
	return nil
}

func (d *Deps) failArtifact(ctx context.Context, log *slog.Logger, artifact *database.Artifact, reason string) {
	if len(reason) > 500 {
		reason = reason[:500]
	}
	err := d.DB.WithContext(ctx).Model(artifact).Updates(map[string]any{
		"status":        database.ArtifactFailed,
		"error_message": reason,
	}).Error
	if err != nil {
		log.Error("mark artifact failed", slog.Any("error", err))
	}
}

func (d *Deps) notify(ctx context.Context, log *slog.Logger, sessionID string, msg JobNotifyMessage) {
	if d.Notifier == nil {
		return
	}
	msg.ErrorMessage = strings.TrimSpace(msg.ErrorMessage)
	if msg.ErrorMessage == "" && msg.ErrorCode != errcode.OK {
		msg.ErrorMessage = errcode.Text(msg.ErrorCode)
	}
	if err := d.Notifier.Notify(ctx, sessionID, msg); err != nil {
		log.Error("publish job notification failed", slog.Any("error", err))
	}
}

func warningKeys(warnings []render.Warning) []string {
	keys := make([]string, 0, len(warnings))
	for _, w := range warnings {
		if w.FieldID != "" {
			keys = append(keys, w.FieldID)
		} else {
			keys = append(keys, w.Message)
		}
	}
	return keys
}
