package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"

	"academyCards/internal/storage"
)

// 背景与照片上传上限。
const maxAssetBytes = 5 << 20

// AssetStorage 是素材端点用到的对象存储能力。
type AssetStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	ListObjects(ctx context.Context, prefix string, limit int) ([]storage.ObjectMeta, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// AssetHandler 负责卡片背景与照片的上传与访问。
type AssetHandler struct {
	Storage AssetStorage
	Scanner VirusScanner
	Logger  *slog.Logger
}

// NewAssetHandler 返回 AssetHandler 实例。
func NewAssetHandler(storageClient AssetStorage, scanner VirusScanner, logger *slog.Logger) *AssetHandler {
	if scanner == nil {
		scanner = noopScanner{}
	}
	return &AssetHandler{
		Storage: storageClient,
		Scanner: scanner,
		Logger:  logger,
	}
}

// UploadAsset 处理图片上传：校验扩展名与内容类型、扫描病毒，再写入对象存储。
// 返回的 objectKey 可直接作为模板背景或人员照片引用。
func (h *AssetHandler) UploadAsset(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size > maxAssetBytes {
		Error(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	objectKey, err := storage.NewAssetKey(file.Filename)
	if err != nil {
		BadRequest(c, "unsupported file type")
		return
	}
	contentType, _ := storage.ImageContentType(file.Filename)

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	data, err := io.ReadAll(io.LimitReader(reader, maxAssetBytes+1))
	reader.Close()
	if err != nil {
		Internal(c, "failed to read file")
		return
	}
	if len(data) > maxAssetBytes {
		Error(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	if sniffed := http.DetectContentType(data); sniffed != contentType {
		BadRequest(c, "file content does not match extension")
		return
	}

	if err := h.Scanner.Scan(bytes.NewReader(data)); err != nil {
		if errors.Is(err, ErrInfected) {
			h.Logger.Warn("infected upload rejected", slog.String("filename", file.Filename), slog.Any("error", err))
			BadRequest(c, "malicious file detected")
			return
		}
		h.Logger.Error("scan file", slog.String("error", err.Error()))
		Internal(c, "failed to scan file")
		return
	}

	if _, err := h.Storage.UploadFile(c.Request.Context(), objectKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		h.Logger.Error("upload file", slog.String("error", err.Error()))
		Internal(c, "failed to upload file")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"objectKey": objectKey})
}

// ListAssets 列出已上传的素材，最新的在前。
func (h *AssetHandler) ListAssets(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "60")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 60
	}
	if limit > 200 {
		limit = 200
	}

	objects, err := h.Storage.ListObjects(c.Request.Context(), storage.AssetPrefix, limit)
	if err != nil {
		h.Logger.Error("list assets", slog.String("error", err.Error()))
		Internal(c, "failed to list assets")
		return
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})

	items := make([]gin.H, 0, len(objects))
	for _, obj := range objects {
		url, err := h.Storage.GeneratePresignedURL(c.Request.Context(), obj.Key, 10*time.Minute)
		if err != nil {
			h.Logger.Error("generate asset url", slog.String("objectKey", obj.Key), slog.String("error", err.Error()))
			continue
		}
		items = append(items, gin.H{
			"objectKey":    obj.Key,
			"previewUrl":   url,
			"size":         obj.Size,
			"lastModified": obj.LastModified,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetAssetURL 返回素材的临时预签名 URL。
func (h *AssetHandler) GetAssetURL(c *gin.Context) {
	objectKey := c.Query("key")
	if objectKey == "" {
		BadRequest(c, "missing key")
		return
	}
	if !storage.IsValidAssetKey(objectKey) {
		Forbidden(c, "access denied")
		return
	}

	signedURL, err := h.Storage.GeneratePresignedURL(c.Request.Context(), objectKey, 15*time.Minute)
	if err != nil {
		h.Logger.Error("generate presigned url", slog.String("error", err.Error()))
		Internal(c, "failed to generate url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

// DeleteAsset 删除素材；仍被模板引用的背景会在渲染时降级为缺失告警。
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	objectKey := c.Query("key")
	if !storage.IsValidAssetKey(objectKey) {
		Forbidden(c, "access denied")
		return
	}
	if err := h.Storage.DeleteObject(c.Request.Context(), objectKey); err != nil {
		h.Logger.Error("delete asset", slog.String("objectKey", objectKey), slog.String("error", err.Error()))
		Internal(c, "failed to delete asset")
		return
	}
	c.Status(http.StatusNoContent)
}
