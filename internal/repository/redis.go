package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"academyCards/internal/card"
)

const lastEditedKey = "card_template:last_edited"

// RedisSlot 把"最近编辑"模板存成单个 Redis 键，无过期时间。
type RedisSlot struct {
	client redis.UniversalClient
}

func NewRedisSlot(client redis.UniversalClient) *RedisSlot {
	return &RedisSlot{client: client}
}

func (s *RedisSlot) SetLastEdited(ctx context.Context, t *card.Template) error {
	data, err := card.Marshal(t)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, lastEditedKey, data, 0).Err(); err != nil {
		return fmt.Errorf("set last edited template: %w", err)
	}
	return nil
}

func (s *RedisSlot) LastEdited(ctx context.Context) (*card.Template, error) {
	data, err := s.client.Get(ctx, lastEditedKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get last edited template: %w", err)
	}
	return card.Unmarshal(data)
}

// ClearLastEdited 在 WATCH 事务里比较 id 再删除，避免误删并发写入的新模板。
func (s *RedisSlot) ClearLastEdited(ctx context.Context, id string) error {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, lastEditedKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &head); err != nil || head.ID != id {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, lastEditedKey)
			return nil
		})
		return err
	}, lastEditedKey)
	if err != nil {
		return fmt.Errorf("clear last edited template: %w", err)
	}
	return nil
}
