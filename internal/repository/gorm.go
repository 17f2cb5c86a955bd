package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"academyCards/internal/card"
	"academyCards/internal/database"
)

// GormStore 把模板保存在 card_templates 表中，Content 为完整模板 JSON。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, id string) (*card.Template, error) {
	var model database.CardTemplate
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query template %s: %w", id, err)
	}
	return decodeModel(model)
}

// Save upserts by primary key so a second save with the same id overwrites the first.
func (s *GormStore) Save(ctx context.Context, t *card.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	data, err := card.Marshal(t)
	if err != nil {
		return err
	}
	model := database.CardTemplate{
		ID:       t.ID,
		Name:     t.Name,
		Category: string(t.Category),
		Content:  datatypes.JSON(data),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category", "content", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("save template %s: %w", t.ID, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&database.CardTemplate{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete template %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListByCategory(ctx context.Context, category card.Category) ([]*card.Template, error) {
	var models []database.CardTemplate
	if err := s.db.WithContext(ctx).
		Where("category = ?", string(category)).
		Order("updated_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list templates for %s: %w", category, err)
	}
	out := make([]*card.Template, 0, len(models))
	for _, m := range models {
		t, err := decodeModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func decodeModel(m database.CardTemplate) (*card.Template, error) {
	t, err := card.Unmarshal(m.Content)
	if err != nil {
		return nil, fmt.Errorf("decode template %s: %w", m.ID, err)
	}
	return t, nil
}
