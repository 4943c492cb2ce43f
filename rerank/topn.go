package rerank

import (
	"context"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，用于在排序后截取前 N 个物品。
//
// 示例：
//
//	p := pipeline.New("popular",
//	    &recall.Popular{Store: tracker},
//	    &rerank.SortNode{},
//	    &rerank.TopNNode{},     // 截取 rctx.Limit 个
//	)
type TopNNode struct {
	// N 要保留的物品数量（Top N）
	// 如果 N <= 0，则使用请求上下文的 Limit；两者都 <= 0 时不截断
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if limit <= 0 && rctx != nil {
		limit = rctx.Limit
	}
	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
