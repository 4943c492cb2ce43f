package recall

import (
	"context"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/pipeline"
)

// PipelineSource 把一条子 Pipeline 包装成召回源，用于混合推荐、补位等场景。
//
// 子 Pipeline 在派生的上下文中运行：limit 为 rctx.Limit × OverFetch，
// 剔除列表继承自 rctx；ResetMinScore 为 true 时子 Pipeline 不按最低分过滤，
// 由外层在合并之后统一过滤。
type PipelineSource struct {
	Label    string
	Pipeline *pipeline.Pipeline

	// OverFetch 超取倍数，<= 1 时不超取
	OverFetch int

	ResetMinScore bool
}

func (s *PipelineSource) Name() string {
	if s.Label != "" {
		return s.Label
	}
	if s.Pipeline != nil && s.Pipeline.Name != "" {
		return s.Pipeline.Name
	}
	return "recall.pipeline"
}

func (s *PipelineSource) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if s.Pipeline == nil || rctx == nil {
		return nil, nil
	}
	limit := rctx.Limit
	if s.OverFetch > 1 {
		limit *= s.OverFetch
	}
	sub := rctx.Derive(limit)
	if s.ResetMinScore {
		sub.MinScore = 0
	}
	return s.Pipeline.Run(ctx, sub, nil)
}
