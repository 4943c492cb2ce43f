package filter

import (
	"context"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/pkg/conv"
	"github.com/rushteam/reclite/recall"
)

// ExcludeFilter 过滤请求上下文中指定剔除的物品。
type ExcludeFilter struct{}

func (ExcludeFilter) Name() string { return "filter.exclude" }

func (ExcludeFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	return rctx.IsExcluded(item.ID), nil
}

// MinBehaviorsFilter 过滤交互次数少于 Min 的物品。
// 交互次数来自召回阶段写入的 Meta（recall.MetaTotalBehaviors），没有该信息的物品保留。
type MinBehaviorsFilter struct {
	Min int
}

func (f *MinBehaviorsFilter) Name() string { return "filter.min_behaviors" }

func (f *MinBehaviorsFilter) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	if f.Min <= 0 || item.Meta == nil {
		return false, nil
	}
	n, ok := conv.ToInt(item.Meta[recall.MetaTotalBehaviors])
	if !ok {
		return false, nil
	}
	return n < f.Min, nil
}

// MinScoreFilter 过滤分数低于阈值的物品。
// Threshold 为 0 时使用请求上下文的 MinScore；两者都为 0 时不过滤。
type MinScoreFilter struct {
	Threshold float64
}

func (f *MinScoreFilter) Name() string { return "filter.min_score" }

func (f *MinScoreFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	threshold := f.Threshold
	if threshold == 0 && rctx != nil {
		threshold = rctx.MinScore
	}
	if threshold <= 0 {
		return false, nil
	}
	return item.Score < threshold, nil
}
