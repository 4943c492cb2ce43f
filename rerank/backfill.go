package rerank

import (
	"context"

	"github.com/samber/lo"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/pipeline"
	"github.com/rushteam/reclite/recall"
)

// BackfillNode 在结果不足 rctx.Limit 时用 Source 的结果补位。
//
// 补位请求的上下文由 rctx 派生：limit 为缺口数量，剔除列表追加已选中的物品，
// 因此补位结果不会与已有结果重复，也不会包含被剔除的物品。补位物品保留各自的推荐理由。
type BackfillNode struct {
	Source recall.Source
}

func (n *BackfillNode) Name() string {
	return "rerank.backfill"
}

func (n *BackfillNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *BackfillNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Source == nil || rctx == nil || len(items) >= rctx.Limit {
		return items, nil
	}

	need := rctx.Limit - len(items)
	chosen := lo.Map(items, func(it *core.Item, _ int) string { return it.ID })
	sub := rctx.Derive(need, chosen...)

	extra, err := n.Source.Recall(ctx, sub)
	if err != nil {
		return items, nil
	}
	extra = lo.Filter(extra, func(it *core.Item, _ int) bool {
		return it != nil && !sub.IsExcluded(it.ID)
	})
	if len(extra) > need {
		extra = extra[:need]
	}
	return append(items, extra...), nil
}
