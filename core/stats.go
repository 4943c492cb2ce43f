package core

// ItemStats 是物品维度的行为统计，每次查询时从行为日志重新计算。
type ItemStats struct {
	ItemID          string
	TotalBehaviors  int
	BehaviorCounts  map[BehaviorType]int
	WeightedScore   float64 // Σ count[type] × weight[type]
	LastInteraction int64   // 最近一次交互的毫秒时间戳
}

// NewItemStats 创建一个空的物品统计，各行为类型计数初始化为 0。
func NewItemStats(itemID string) *ItemStats {
	return &ItemStats{
		ItemID:         itemID,
		BehaviorCounts: newBehaviorCounts(),
	}
}

// Add 把一次行为累加到统计中。
func (s *ItemStats) Add(b UserBehavior) {
	s.TotalBehaviors++
	s.BehaviorCounts[b.Type]++
	s.WeightedScore += b.Weight()
	if b.Timestamp > s.LastInteraction {
		s.LastInteraction = b.Timestamp
	}
}

// UserStats 是用户维度的行为统计。
type UserStats struct {
	UserID         string
	TotalBehaviors int
	ItemCount      int // 交互过的不同物品数
	BehaviorCounts map[BehaviorType]int
}

// NewUserStats 创建一个空的用户统计。
func NewUserStats(userID string) *UserStats {
	return &UserStats{
		UserID:         userID,
		BehaviorCounts: newBehaviorCounts(),
	}
}

// Stats 是行为存储的全局规模统计。
type Stats struct {
	TotalBehaviors int `json:"totalBehaviors"`
	TotalUsers     int `json:"totalUsers"`
	TotalItems     int `json:"totalItems"`
}

// UserItemMatrix 是稀疏的用户-物品加权矩阵：userID → (itemID → 累积权重)。
type UserItemMatrix map[string]map[string]float64

func newBehaviorCounts() map[BehaviorType]int {
	counts := make(map[BehaviorType]int, len(behaviorNames))
	for _, t := range BehaviorTypes() {
		counts[t] = 0
	}
	return counts
}
