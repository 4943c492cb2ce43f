package recall

import (
	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/pkg/utils"
)

// ReasonHybrid 是同时出现在多个召回源中的物品的推荐理由。
const ReasonHybrid = "hybrid: popular + personalized"

// WeightedMerge 按召回源加权合并：score = Σ weight[i] × score_i。
//
// 只出现在一个召回源中的物品保留原推荐理由；出现在多个召回源中的物品
// 分数累加，推荐理由改为 BlendReason。输出保持首次出现顺序，排序交给 rerank。
type WeightedMerge struct {
	// Weights 与 Fanout.Sources 一一对应，缺省权重为 1
	Weights []float64

	// BlendReason 为空时取 ReasonHybrid
	BlendReason string
}

func (m WeightedMerge) Merge(results [][]*core.Item) []*core.Item {
	reason := m.BlendReason
	if reason == "" {
		reason = ReasonHybrid
	}

	merged := make(map[string]*core.Item)
	out := make([]*core.Item, 0)
	for i, items := range results {
		weight := 1.0
		if i < len(m.Weights) {
			weight = m.Weights[i]
		}
		for _, it := range items {
			if it == nil {
				continue
			}
			contribution := it.Score * weight
			if old, ok := merged[it.ID]; ok {
				old.Score += contribution
				if src, ok := it.Labels[core.LabelRecallSource]; ok {
					old.PutLabel(core.LabelRecallSource, src)
				}
				old.SetLabel(core.LabelReason, utils.Label{Value: reason, Source: utils.SourceMerge})
				continue
			}
			it.Score = contribution
			merged[it.ID] = it
			out = append(out, it)
		}
	}
	return out
}
