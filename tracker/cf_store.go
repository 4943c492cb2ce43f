package tracker

import (
	"context"

	"github.com/rushteam/reclite/core"
)

// 以下方法让 Tracker 直接充当召回节点的数据源。
// 数据都来自进程内存，错误返回值恒为 nil。

// UserItems 返回用户交互过的物品及其累积行为权重（矩阵的一行）。
func (t *Tracker) UserItems(ctx context.Context, userID string) (map[string]float64, error) {
	behaviors := t.store.UserBehaviors(userID)
	out := make(map[string]float64, len(behaviors))
	for _, b := range behaviors {
		out[b.ItemID] += b.Weight()
	}
	return out, nil
}

// ItemUsers 返回与物品交互过的用户及其交互次数。
func (t *Tracker) ItemUsers(ctx context.Context, itemID string) (map[string]float64, error) {
	behaviors := t.store.ItemBehaviors(itemID)
	out := make(map[string]float64, len(behaviors))
	for _, b := range behaviors {
		out[b.UserID]++
	}
	return out, nil
}

func (t *Tracker) AllUsers(ctx context.Context) ([]string, error) {
	return t.store.UserIDs(), nil
}

func (t *Tracker) AllItems(ctx context.Context) ([]string, error) {
	return t.store.ItemIDs(), nil
}

// PopularItems 返回全部物品统计（首次出现顺序）。
func (t *Tracker) PopularItems(ctx context.Context) ([]core.ItemStats, error) {
	return t.store.AllItemStats(), nil
}
