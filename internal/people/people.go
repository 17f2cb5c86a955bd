// Package people 提供人员记录的只读查询与验证（按注册号 + 出生日期），以及 CLI 使用的导入。
package people

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"academyCards/internal/card"
	"academyCards/internal/database"
)

var (
	ErrNotFound          = errors.New("person not found")
	ErrBirthDateMismatch = errors.New("birth date does not match")
)

// RecordKey 由类别与注册号派生记录键；注册号忽略首尾空白与大小写。
func RecordKey(category card.Category, registrationNumber string) string {
	return string(category) + "/" + normalizeRegistration(registrationNumber)
}

func normalizeRegistration(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

var birthDateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "2006/01/02", time.RFC3339}

// NormalizeDate 把常见日期写法统一成 yyyy-mm-dd，无法解析时返回错误。
func NormalizeDate(v string) (string, error) {
	v = strings.TrimSpace(v)
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognised date %q", v)
}

// Store 基于 GORM 的人员记录访问。
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ByRegistration 按注册号查找记录。
func (s *Store) ByRegistration(ctx context.Context, registrationNumber string) (card.Record, error) {
	var p database.Person
	err := s.db.WithContext(ctx).
		Where("registration_number = ?", normalizeRegistration(registrationNumber)).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return card.Record{}, ErrNotFound
	}
	if err != nil {
		return card.Record{}, fmt.Errorf("query person: %w", err)
	}
	return toRecord(p)
}

// ByRegistrations 按给定顺序返回记录，缺失的注册号被跳过并单独返回。
func (s *Store) ByRegistrations(ctx context.Context, numbers []string) ([]card.Record, []string, error) {
	if len(numbers) == 0 {
		return nil, nil, nil
	}
	normalized := make([]string, len(numbers))
	for i, n := range numbers {
		normalized[i] = normalizeRegistration(n)
	}

	var rows []database.Person
	if err := s.db.WithContext(ctx).Where("registration_number IN ?", normalized).Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("query people: %w", err)
	}
	byNumber := make(map[string]database.Person, len(rows))
	for _, p := range rows {
		byNumber[p.RegistrationNumber] = p
	}

	var (
		records []card.Record
		missing []string
	)
	for i, n := range normalized {
		p, ok := byNumber[n]
		if !ok {
			missing = append(missing, numbers[i])
			continue
		}
		rec, err := toRecord(p)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
	}
	return records, missing, nil
}

// Verify 校验注册号与出生日期，两者都匹配时返回记录。
func (s *Store) Verify(ctx context.Context, registrationNumber, birthDate string) (card.Record, error) {
	rec, err := s.ByRegistration(ctx, registrationNumber)
	if err != nil {
		return card.Record{}, err
	}
	want, err := NormalizeDate(birthDate)
	if err != nil {
		return card.Record{}, fmt.Errorf("%w: %v", ErrBirthDateMismatch, err)
	}
	got, err := NormalizeDate(rec.Get(card.KeyBirthDate))
	if err != nil || got != want {
		return card.Record{}, ErrBirthDateMismatch
	}
	return rec, nil
}

// Import 按注册号写入或覆盖记录，返回写入条数。
// 同一批次内重复的注册号以最后一条为准（同一 upsert 语句不能两次命中同一行）。
func (s *Store) Import(ctx context.Context, records []card.Record) (int, error) {
	rows := make([]database.Person, 0, len(records))
	seen := make(map[string]int, len(records))
	for i, rec := range records {
		if !rec.Category.Valid() {
			return 0, fmt.Errorf("record %d: unknown category %q", i, rec.Category)
		}
		number := normalizeRegistration(rec.ID())
		if number == "" {
			return 0, fmt.Errorf("record %d: registration number is required", i)
		}
		values, err := json.Marshal(rec.Values)
		if err != nil {
			return 0, fmt.Errorf("record %d: marshal values: %w", i, err)
		}
		birth := ""
		if v := rec.Get(card.KeyBirthDate); v != "" {
			if birth, err = NormalizeDate(v); err != nil {
				return 0, fmt.Errorf("record %d: %w", i, err)
			}
		}
		row := database.Person{
			RecordKey:          RecordKey(rec.Category, number),
			RegistrationNumber: number,
			Category:           string(rec.Category),
			BirthDate:          birth,
			Values:             values,
		}
		if idx, dup := seen[number]; dup {
			rows[idx] = row
			continue
		}
		seen[number] = len(rows)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "registration_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"record_key", "category", "birth_date", "payload", "updated_at"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return 0, fmt.Errorf("import people: %w", err)
	}
	return len(rows), nil
}

func toRecord(p database.Person) (card.Record, error) {
	values := map[string]string{}
	if len(p.Values) > 0 {
		if err := json.Unmarshal(p.Values, &values); err != nil {
			return card.Record{}, fmt.Errorf("decode person %s: %w", p.RegistrationNumber, err)
		}
	}
	values[card.KeyRegistrationNumber] = p.RegistrationNumber
	if p.BirthDate != "" {
		values[card.KeyBirthDate] = p.BirthDate
	}
	return card.Record{Category: card.Category(p.Category), Values: values}, nil
}
