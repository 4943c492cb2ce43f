package rerank

import (
	"cmp"
	"context"
	"slices"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/pipeline"
)

// SortNode 按分数降序排序，同分按物品 ID 升序，保证结果稳定可复现。
type SortNode struct{}

func (n *SortNode) Name() string {
	return "rerank.sort"
}

func (n *SortNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *SortNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	SortItems(items)
	return items, nil
}

// SortItems 原地排序：分数降序，同分按 ID 升序。
func SortItems(items []*core.Item) {
	slices.SortStableFunc(items, func(a, b *core.Item) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
