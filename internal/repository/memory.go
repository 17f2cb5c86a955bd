package repository

import (
	"context"
	"sort"
	"sync"

	"academyCards/internal/card"
)

// MemoryStore 是进程内实现，供测试与 CLI 预览使用。保存与读取都会深拷贝。
type MemoryStore struct {
	mu         sync.RWMutex
	seq        int64
	items      map[string]memoryEntry
	lastEdited *card.Template
}

type memoryEntry struct {
	template *card.Template
	savedAt  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*card.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return entry.template.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, t *card.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.items[t.ID] = memoryEntry{template: t.Clone(), savedAt: s.seq}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) ListByCategory(_ context.Context, category card.Category) ([]*card.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]memoryEntry, 0)
	for _, entry := range s.items {
		if entry.template.Category == category {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].savedAt > entries[j].savedAt
	})
	out := make([]*card.Template, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.template.Clone())
	}
	return out, nil
}

func (s *MemoryStore) SetLastEdited(_ context.Context, t *card.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEdited = t.Clone()
	return nil
}

func (s *MemoryStore) LastEdited(_ context.Context) (*card.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastEdited == nil {
		return nil, ErrNotFound
	}
	return s.lastEdited.Clone(), nil
}

func (s *MemoryStore) ClearLastEdited(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastEdited != nil && s.lastEdited.ID == id {
		s.lastEdited = nil
	}
	return nil
}
