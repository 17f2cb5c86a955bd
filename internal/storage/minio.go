package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"academyCards/internal/config"
)

// Client 封装 MinIO 客户端：卡片素材（背景、照片）与导出产物（PNG/PDF）都存放在同一私有 Bucket。
type Client struct {
	internalClient *minio.Client
	publicClient   *minio.Client
	bucketName     string
}

// ObjectMeta 描述 Bucket 中对象的关键信息。
type ObjectMeta struct {
	Key          string
	Size         int64
	LastModified time.Time
}

var bucketLookups = map[string]minio.BucketLookupType{
	"":     minio.BucketLookupAuto,
	"auto": minio.BucketLookupAuto,
	"dns":  minio.BucketLookupDNS,
	"path": minio.BucketLookupPath,
}

// NewClient 连接 MinIO 并确保卡片 Bucket 存在。
// 预签名链接使用 PublicEndpoint 签发，浏览器才能直接下载导出产物。
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	lookup, ok := bucketLookups[strings.ToLower(strings.TrimSpace(cfg.BucketLookup))]
	if !ok {
		return nil, fmt.Errorf("invalid minio bucket lookup %q", cfg.BucketLookup)
	}
	newMinio := func(endpoint string, secure bool) (*minio.Client, error) {
		return minio.New(endpoint, &minio.Options{
			Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			Secure:       secure,
			Region:       cfg.Region,
			BucketLookup: lookup,
		})
	}

	internalClient, err := newMinio(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	public, err := url.Parse(cfg.PublicEndpoint)
	if err != nil || public.Host == "" {
		return nil, fmt.Errorf("invalid minio public endpoint %q", cfg.PublicEndpoint)
	}
	publicClient, err := newMinio(public.Host, public.Scheme == "https")
	if err != nil {
		return nil, fmt.Errorf("init public minio client: %w", err)
	}

	c := &Client{
		internalClient: internalClient,
		publicClient:   publicClient,
		bucketName:     cfg.Bucket,
	}
	if err := c.ensureBucket(cfg.Region, cfg.AutoCreateBucket); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) ensureBucket(region string, autoCreate bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := c.internalClient.BucketExists(ctx, c.bucketName)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", c.bucketName, err)
	}
	if exists {
		return nil
	}
	if !autoCreate {
		return fmt.Errorf("bucket %q does not exist and auto create is disabled", c.bucketName)
	}
	if err := c.internalClient.MakeBucket(ctx, c.bucketName, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("make bucket %q: %w", c.bucketName, err)
	}
	return nil
}

// UploadFile 写入素材或导出产物。素材 key 含随机 UUID，内容不会被覆盖，可长期缓存。
func (c *Client) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error) {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if strings.HasPrefix(objectName, AssetPrefix) {
		opts.CacheControl = "private, max-age=31536000, immutable"
	}
	info, err := c.internalClient.PutObject(ctx, c.bucketName, objectName, reader, size, opts)
	if err != nil {
		return nil, objectError("put object", objectName, err)
	}
	return &info, nil
}

// ReadObject 读取整个对象并返回其 Content-Type；超过 maxBytes 时返回 ErrAssetTooLarge。
func (c *Client) ReadObject(ctx context.Context, objectKey string, maxBytes int64) ([]byte, string, error) {
	obj, err := c.internalClient.GetObject(ctx, c.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", objectError("get object", objectKey, err)
	}
	defer obj.Close()

	// GetObject 是惰性的，对象不存在要到 Stat 才会暴露。
	info, err := obj.Stat()
	if err != nil {
		return nil, "", objectError("stat object", objectKey, err)
	}
	if maxBytes > 0 && info.Size > maxBytes {
		return nil, "", fmt.Errorf("read object %q (%d bytes): %w", objectKey, info.Size, ErrAssetTooLarge)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", objectError("read object", objectKey, err)
	}
	return data, info.ContentType, nil
}

// GeneratePresignedURL 生成对象的限时下载链接。
func (c *Client) GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error) {
	presignedURL, err := c.publicClient.PresignedGetObject(ctx, c.bucketName, objectKey, duration, nil)
	if err != nil {
		return "", fmt.Errorf("generate presigned url for %q: %w", objectKey, err)
	}
	return presignedURL.String(), nil
}

// PresignedDownloadURL 生成带下载文件名的限时链接，供导出完成通知使用。
func (c *Client) PresignedDownloadURL(ctx context.Context, objectKey, filename string, duration time.Duration) (string, error) {
	v := url.Values{}
	if filename != "" {
		v.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	presignedURL, err := c.publicClient.PresignedGetObject(ctx, c.bucketName, objectKey, duration, v)
	if err != nil {
		return "", fmt.Errorf("generate presigned download url for %q: %w", objectKey, err)
	}
	return presignedURL.String(), nil
}

// ListObjects 列出 prefix 下最多 limit 个对象。
func (c *Client) ListObjects(ctx context.Context, prefix string, limit int) ([]ObjectMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel() // 提前 break 时停止后台列举

	var result []ObjectMeta
	for object := range c.internalClient.ListObjects(ctx, c.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
		MaxKeys:   limit,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, object.Err)
		}
		result = append(result, ObjectMeta{Key: object.Key, Size: object.Size, LastModified: object.LastModified})
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// DeleteObject 删除指定对象。
// 若对象不存在会被视为成功（幂等）。
func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	objectKey = strings.TrimSpace(objectKey)
	if objectKey == "" {
		return nil
	}
	if err := c.internalClient.RemoveObject(ctx, c.bucketName, objectKey, minio.RemoveObjectOptions{}); err != nil {
		if err = objectError("remove object", objectKey, err); errors.Is(err, ErrAssetNotFound) {
			return nil
		}
		return err
	}
	return nil
}
