package filter

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/rushteam/reclite/core"
)

// BlacklistFilter 是黑名单过滤器，过滤掉黑名单中的物品。
// 黑名单来自内存列表 ItemIDs 与 Store 中 Key 对应的集合的并集。
type BlacklistFilter struct {
	// ItemIDs 是内存中的黑名单物品 ID 列表
	ItemIDs []string

	// Store 用于从存储中读取黑名单（可选）
	Store core.SetStore

	// Key 是 Store 中的黑名单集合 key（可选）
	Key string
}

// NewBlacklistFilter 创建一个黑名单过滤器。
func NewBlacklistFilter(itemIDs []string, store core.SetStore, key string) *BlacklistFilter {
	return &BlacklistFilter{
		ItemIDs: itemIDs,
		Store:   store,
		Key:     key,
	}
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

// Prepare 每个请求读取一次黑名单。读取 Store 失败时只使用内存列表。
func (f *BlacklistFilter) Prepare(ctx context.Context, _ *core.RecommendContext) (Filter, error) {
	set := mapset.NewThreadUnsafeSet(f.ItemIDs...)
	if f.Store != nil && f.Key != "" {
		members, err := f.Store.SMembers(ctx, f.Key)
		if err == nil {
			set.Append(members...)
		}
	}
	return &setFilter{name: f.Name(), set: set}, nil
}

func (f *BlacklistFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	prepared, err := f.Prepare(ctx, rctx)
	if err != nil {
		return false, err
	}
	return prepared.ShouldFilter(ctx, rctx, item)
}

type setFilter struct {
	name string
	set  mapset.Set[string]
}

func (f *setFilter) Name() string { return f.name }

func (f *setFilter) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	return f.set.Contains(item.ID), nil
}
