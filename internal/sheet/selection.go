package sheet

import (
	"errors"
	"fmt"

	"academyCards/internal/card"
)

var (
	// ErrCapacityExceeded 表示纸张已满，选择保持不变。
	ErrCapacityExceeded = errors.New("sheet capacity exceeded")
	// ErrMissingIdentity 表示记录没有注册号，无法去重。
	ErrMissingIdentity = errors.New("record has no registration number")
)

// Selection 是待打印卡片的有序集合，容量由 Layout 决定，按注册号去重。
type Selection struct {
	layout  Layout
	records []card.Record
}

func NewSelection(layout Layout) *Selection {
	return &Selection{layout: layout}
}

func (s *Selection) Layout() Layout { return s.layout }

func (s *Selection) Len() int { return len(s.records) }

// Records returns the selection in insertion order.
func (s *Selection) Records() []card.Record {
	out := make([]card.Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Selection) index(id string) int {
	for i, rec := range s.records {
		if rec.ID() == id {
			return i
		}
	}
	return -1
}

// AddCard appends rec. A record already present is a no-op (added=false);
// a full sheet yields ErrCapacityExceeded and leaves the selection unchanged.
func (s *Selection) AddCard(rec card.Record) (bool, error) {
	id := rec.ID()
	if id == "" {
		return false, ErrMissingIdentity
	}
	if s.index(id) >= 0 {
		return false, nil
	}
	if len(s.records) >= s.layout.Capacity {
		return false, fmt.Errorf("add card %s: %w (capacity %d)", id, ErrCapacityExceeded, s.layout.Capacity)
	}
	s.records = append(s.records, rec)
	return true, nil
}

// RemoveCard 按注册号移除。
func (s *Selection) RemoveCard(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	return true
}
