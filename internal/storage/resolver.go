package storage

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"academyCards/internal/render"
)

// maxInlineBytes 限制内联到卡片中的单个图片大小。
const maxInlineBytes = 8 << 20

// ObjectReader 是 Resolver 需要的最小存储能力。
type ObjectReader interface {
	ReadObject(ctx context.Context, objectKey string, maxBytes int64) ([]byte, string, error)
}

// Resolver 把素材 key 读出并内联为 data URI，渲染结果因此不依赖存储的可访问性。
type Resolver struct {
	objects ObjectReader
}

func NewResolver(objects ObjectReader) *Resolver {
	return &Resolver{objects: objects}
}

// Resolve implements render.AssetResolver.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if render.IsDataURI(ref) {
		return ref, nil
	}
	if !IsValidAssetKey(ref) {
		return "", fmt.Errorf("resolve asset: invalid key %q", ref)
	}
	data, contentType, err := r.objects.ReadObject(ctx, ref, maxInlineBytes)
	if err != nil {
		return "", fmt.Errorf("resolve asset: %w", err)
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("resolve asset %q (%s): %w", ref, contentType, ErrNotImage)
	}
	return render.EncodeDataURI(contentType, data), nil
}
