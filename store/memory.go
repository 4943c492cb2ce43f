package store

import (
	"context"
	"slices"
	"sync"

	"github.com/rushteam/reclite/core"
)

// MemoryStore 是内存实现的 SetStore，用于测试与单机部署；进程重启后数据丢失。
type MemoryStore struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

var _ core.SetStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string]map[string]struct{})}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) SAdd(_ context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.sets[key]
	if set == nil {
		set = make(map[string]struct{}, len(members))
		m.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) SRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.sets[key]
	for _, member := range members {
		delete(set, member)
	}
	if len(set) == 0 {
		delete(m.sets, key)
	}
	return nil
}

// SMembers 按字典序返回成员。
func (m *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.sets[key]
	out := make([]string, 0, len(set))
	for member := range set {
		out = append(out, member)
	}
	slices.Sort(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
