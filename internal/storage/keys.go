package storage

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// 对象 key 前缀。
const (
	AssetPrefix  = "card-assets/"
	ExportPrefix = "exports/"
)

const maxKeyLength = 200

var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// ImageContentType 返回扩展名对应的 MIME 类型，不支持的扩展名返回 false。
func ImageContentType(filename string) (string, bool) {
	ct, ok := imageExtensions[strings.ToLower(path.Ext(strings.TrimSpace(filename)))]
	return ct, ok
}

// NewAssetKey 为上传的背景或照片生成对象 key。
func NewAssetKey(filename string) (string, error) {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	if _, ok := imageExtensions[ext]; !ok {
		return "", fmt.Errorf("unsupported image extension %q", ext)
	}
	return AssetPrefix + uuid.NewString() + ext, nil
}

// ExportKey 生成导出产物的 key，例如 exports/card/<id>.png。
func ExportKey(kind, id, ext string) string {
	return fmt.Sprintf("%s%s/%s%s", ExportPrefix, kind, id, ext)
}

// IsValidAssetKey 检查客户端提交的素材 key：必须位于素材前缀下、无路径穿越、扩展名为图片。
func IsValidAssetKey(key string) bool {
	if key == "" || !utf8.ValidString(key) {
		return false
	}
	if !strings.HasPrefix(key, AssetPrefix) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	if len(key) > maxKeyLength {
		return false
	}
	_, ok := ImageContentType(key)
	return ok
}
