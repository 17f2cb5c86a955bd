package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
)

var (
	// ErrAssetNotFound 表示素材或导出产物在 Bucket 中不存在。
	ErrAssetNotFound = errors.New("asset not found")
	// ErrAssetTooLarge 表示素材超过内联上限。
	ErrAssetTooLarge = errors.New("asset too large to inline")
	// ErrNotImage 表示素材内容不是图片，不能作为背景或照片。
	ErrNotImage = errors.New("asset is not an image")
)

// missingCodes 是 S3/MinIO 表示对象不存在的错误码（小写）。
var missingCodes = map[string]bool{
	"nosuchkey":    true,
	"notfound":     true,
	"nosuchbucket": true,
}

// IsNoSuchKey 判断 err 是否表示对象（或其所在 Bucket）不存在。
func IsNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAssetNotFound) {
		return true
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return missingCodes[strings.ToLower(strings.TrimSpace(resp.Code))]
	}
	// 部分网关只返回文本。
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "specified key does not exist") ||
		strings.Contains(lower, "specified bucket does not exist")
}

// objectError 为存储操作包一层上下文，对象缺失时统一为 ErrAssetNotFound。
func objectError(op, key string, err error) error {
	if IsNoSuchKey(err) {
		return fmt.Errorf("%s %q: %w", op, key, ErrAssetNotFound)
	}
	return fmt.Errorf("%s %q: %w", op, key, err)
}
