// Package repository 持久化卡片模板：按 id 的键控集合，加一个"最近编辑"快速预览槽。
package repository

import (
	"context"
	"errors"
	"fmt"

	"academyCards/internal/card"
)

// ErrNotFound 表示模板（或最近编辑槽）不存在。
var ErrNotFound = errors.New("template not found")

// Store 是编辑器与渲染器共用的模板仓库。Save 按 id 覆盖（最后写入者胜出）。
type Store interface {
	Get(ctx context.Context, id string) (*card.Template, error)
	Save(ctx context.Context, t *card.Template) error
	Delete(ctx context.Context, id string) error
	// ListByCategory 返回该类别的模板，最近保存的在前。
	ListByCategory(ctx context.Context, category card.Category) ([]*card.Template, error)
}

// LastEditedSlot 保存最近一次编辑的模板，独立于键控集合。
type LastEditedSlot interface {
	SetLastEdited(ctx context.Context, t *card.Template) error
	LastEdited(ctx context.Context) (*card.Template, error)
	// ClearLastEdited 仅当槽中模板的 id 为 id 时清空，否则不做任何事。
	ClearLastEdited(ctx context.Context, id string) error
}

// ForCategory returns the template used to render cards of the category:
// the most recently saved one. It returns ErrNotFound when none exists.
func ForCategory(ctx context.Context, store Store, category card.Category) (*card.Template, error) {
	list, err := store.ListByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

// ForRecords 为记录涉及的每个类别取 ForCategory 的模板。没有模板的类别映射为 nil，
// 并按首次出现的顺序出现在 missing 中。
func ForRecords(ctx context.Context, store Store, records []card.Record) (map[card.Category]*card.Template, []string, error) {
	out := make(map[card.Category]*card.Template)
	var missing []string
	for _, rec := range records {
		if _, seen := out[rec.Category]; seen {
			continue
		}
		tpl, err := ForCategory(ctx, store, rec.Category)
		if errors.Is(err, ErrNotFound) {
			out[rec.Category] = nil
			missing = append(missing, string(rec.Category))
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("load template for %s: %w", rec.Category, err)
		}
		out[rec.Category] = tpl
	}
	return out, missing, nil
}
