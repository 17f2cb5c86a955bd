package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateCounter 是固定窗口计数用到的 Redis 命令。
type RateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// VerifyLimiter 按客户端 IP 限制每小时的卡片验证次数。
// nil 的 VerifyLimiter 不做限制。
type VerifyLimiter struct {
	counter RateCounter
	limit   int64
	window  time.Duration
	now     func() time.Time
}

// NewVerifyLimiter 在 counter 为空或 perHour<=0 时返回 nil。
func NewVerifyLimiter(counter RateCounter, perHour int) *VerifyLimiter {
	if counter == nil || perHour <= 0 {
		return nil
	}
	return &VerifyLimiter{counter: counter, limit: int64(perHour), window: time.Hour, now: time.Now}
}

// Allow 计入一次验证并判断是否仍在额度内。
func (l *VerifyLimiter) Allow(ctx context.Context, clientIP string) (bool, error) {
	if l == nil {
		return true, nil
	}
	slot := l.now().UTC().Truncate(l.window).Unix()
	key := fmt.Sprintf("rate:verify:%s:%d", clientIP, slot)

	count, err := l.counter.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("count verify attempts: %w", err)
	}
	if count == 1 {
		// 过期失败只会让 key 多留一会，窗口号已经区分了时段。
		_ = l.counter.Expire(ctx, key, l.window).Err()
	}
	return count <= l.limit, nil
}
