package recall

import (
	"context"

	"github.com/rushteam/reclite/core"
)

// Source 表示一个可复用的召回源（热门/CF/子 Pipeline/...）。
// 你可以把它理解为“可并发 fan-out 的策略单元”。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// CFStore 是协同过滤的存储接口，用于获取用户-物品交互数据。
type CFStore interface {
	// UserItems 获取用户交互过的物品及其累积行为权重，返回 map[itemID]weight
	UserItems(ctx context.Context, userID string) (map[string]float64, error)

	// ItemUsers 获取与物品交互过的用户及其交互次数，返回 map[userID]count
	ItemUsers(ctx context.Context, itemID string) (map[string]float64, error)

	// AllUsers 获取所有用户 ID 列表（用于用户协同过滤）
	AllUsers(ctx context.Context) ([]string, error)

	// AllItems 获取所有物品 ID 列表（用于物品协同过滤）
	AllItems(ctx context.Context) ([]string, error)
}

// PopularStore 提供热门召回需要的物品统计。
type PopularStore interface {
	PopularItems(ctx context.Context) ([]core.ItemStats, error)
}
