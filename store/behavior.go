package store

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rushteam/reclite/core"
)

// BehaviorStore 是进程内的行为日志：一条追加写的日志，外加按用户、按物品两个索引。
//
// 所有状态由同一把读写锁保护，Add 在一次写锁内同时写入日志与两个索引，
// 因此任意读操作都不会看到“日志已写、索引未写”的中间状态。
// 读操作一律返回副本，调用方可以随意修改。
type BehaviorStore struct {
	mu        sync.RWMutex
	log       []core.UserBehavior
	byUser    map[string][]core.UserBehavior
	byItem    map[string][]core.UserBehavior
	userOrder []string // 用户首次出现顺序
	itemOrder []string // 物品首次出现顺序

	now func() time.Time
}

// BehaviorStoreOption 配置 BehaviorStore。
type BehaviorStoreOption func(*BehaviorStore)

// WithClock 替换写入时使用的时钟（测试用）。
func WithClock(now func() time.Time) BehaviorStoreOption {
	return func(s *BehaviorStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewBehaviorStore(opts ...BehaviorStoreOption) *BehaviorStore {
	s := &BehaviorStore{
		byUser: make(map[string][]core.UserBehavior),
		byItem: make(map[string][]core.UserBehavior),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add 校验并写入一条行为，返回实际存储的记录（Timestamp 已补齐）。
// 校验失败时什么都不写入，返回 INVALID_INPUT 的 DomainError。
func (s *BehaviorStore) Add(b core.UserBehavior) (core.UserBehavior, error) {
	if err := core.ValidateBehavior(b); err != nil {
		return core.UserBehavior{}, err
	}
	b.UserID = strings.TrimSpace(b.UserID)
	b.ItemID = strings.TrimSpace(b.ItemID)
	if b.Timestamp == 0 {
		b.Timestamp = s.now().UnixMilli()
	}
	b.Metadata = maps.Clone(b.Metadata)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.log = append(s.log, b)
	if _, ok := s.byUser[b.UserID]; !ok {
		s.userOrder = append(s.userOrder, b.UserID)
	}
	s.byUser[b.UserID] = append(s.byUser[b.UserID], b)
	if _, ok := s.byItem[b.ItemID]; !ok {
		s.itemOrder = append(s.itemOrder, b.ItemID)
	}
	s.byItem[b.ItemID] = append(s.byItem[b.ItemID], b)

	stored := b
	stored.Metadata = maps.Clone(b.Metadata)
	return stored, nil
}

// UserBehaviors 返回用户的全部行为（写入顺序）；未知用户返回空切片。
func (s *BehaviorStore) UserBehaviors(userID string) []core.UserBehavior {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBehaviors(s.byUser[userID])
}

// ItemBehaviors 返回物品的全部行为（写入顺序）；未知物品返回空切片。
func (s *BehaviorStore) ItemBehaviors(itemID string) []core.UserBehavior {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBehaviors(s.byItem[itemID])
}

// AllBehaviors 返回全部行为的副本（写入顺序）。
func (s *BehaviorStore) AllBehaviors() []core.UserBehavior {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBehaviors(s.log)
}

// ItemStats 返回物品统计；物品没有任何行为时 ok 为 false。
func (s *BehaviorStore) ItemStats(itemID string) (core.ItemStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	behaviors := s.byItem[itemID]
	if len(behaviors) == 0 {
		return core.ItemStats{}, false
	}
	return *itemStats(itemID, behaviors), true
}

// AllItemStats 返回每个物品的统计，按物品首次出现顺序。
func (s *BehaviorStore) AllItemStats() []core.ItemStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.ItemStats, 0, len(s.itemOrder))
	for _, itemID := range s.itemOrder {
		out = append(out, *itemStats(itemID, s.byItem[itemID]))
	}
	return out
}

// UserStats 返回用户统计；用户没有任何行为时 ok 为 false。
func (s *BehaviorStore) UserStats(userID string) (core.UserStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	behaviors := s.byUser[userID]
	if len(behaviors) == 0 {
		return core.UserStats{}, false
	}
	stats := core.NewUserStats(userID)
	items := make(map[string]struct{}, len(behaviors))
	for _, b := range behaviors {
		stats.TotalBehaviors++
		stats.BehaviorCounts[b.Type]++
		items[b.ItemID] = struct{}{}
	}
	stats.ItemCount = len(items)
	return *stats, true
}

// UserItemMatrix 每次调用都从日志重新构建用户-物品加权矩阵。
// 同一 (user, item) 的多次行为权重累加。
func (s *BehaviorStore) UserItemMatrix() core.UserItemMatrix {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matrix := make(core.UserItemMatrix, len(s.byUser))
	for userID, behaviors := range s.byUser {
		row := make(map[string]float64)
		for _, b := range behaviors {
			row[b.ItemID] += b.Weight()
		}
		matrix[userID] = row
	}
	return matrix
}

// UserIDs 返回全部用户 ID（首次出现顺序）。
func (s *BehaviorStore) UserIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.userOrder)
}

// ItemIDs 返回全部物品 ID（首次出现顺序）。
func (s *BehaviorStore) ItemIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.itemOrder)
}

func (s *BehaviorStore) Stats() core.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Stats{
		TotalBehaviors: len(s.log),
		TotalUsers:     len(s.byUser),
		TotalItems:     len(s.byItem),
	}
}

// Clear 清空日志与索引。
func (s *BehaviorStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log = nil
	s.byUser = make(map[string][]core.UserBehavior)
	s.byItem = make(map[string][]core.UserBehavior)
	s.userOrder = nil
	s.itemOrder = nil
}

func itemStats(itemID string, behaviors []core.UserBehavior) *core.ItemStats {
	stats := core.NewItemStats(itemID)
	for _, b := range behaviors {
		stats.Add(b)
	}
	return stats
}

// cloneBehaviors 连同 Metadata 一起复制，调用方修改返回值不会影响已存储的行为。
func cloneBehaviors(in []core.UserBehavior) []core.UserBehavior {
	out := make([]core.UserBehavior, len(in))
	for i, b := range in {
		b.Metadata = maps.Clone(b.Metadata)
		out[i] = b
	}
	return out
}
