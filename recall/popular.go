package recall

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/pipeline"
	"github.com/rushteam/reclite/pkg/utils"
)

// MetaTotalBehaviors 是 Popular 写入 Item.Meta 的交互次数 key，供 min_behaviors 过滤使用。
const MetaTotalBehaviors = "total_behaviors"

// Decay 是热门分的时间衰减：score × max(Floor, 1 − 距最近交互天数 / Days)。
type Decay struct {
	Days  float64 // 衰减到 Floor 所需天数，默认 30
	Floor float64 // 衰减下限，默认 0.5
}

// Factor 返回 lastInteraction（毫秒时间戳）在 now 时刻的衰减系数。
func (d Decay) Factor(lastInteraction int64, now time.Time) float64 {
	days := d.Days
	if days <= 0 {
		days = 30
	}
	floor := d.Floor
	if floor <= 0 {
		floor = 0.5
	}
	elapsed := float64(now.UnixMilli()-lastInteraction) / float64(24*time.Hour/time.Millisecond)
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Max(floor, 1-elapsed/days)
}

// Popular 是热门召回源：每个有行为的物品都是候选，分数为加权行为分。
// 开启 Decay 时分数乘以时间衰减系数。
// Popular 同时实现了 Source 和 Node 接口，可以直接在 Pipeline 中使用。
type Popular struct {
	Store PopularStore

	// Decay 为 nil 时不衰减
	Decay *Decay

	// Now 衰减计算使用的时钟，默认 time.Now
	Now func() time.Time
}

func (r *Popular) Name() string        { return "recall.popular" }
func (r *Popular) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *Popular) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口
func (r *Popular) Recall(
	ctx context.Context,
	_ *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Store == nil {
		return nil, nil
	}
	stats, err := r.Store.PopularItems(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	out := make([]*core.Item, 0, len(stats))
	for _, s := range stats {
		it := core.NewItem(s.ItemID)
		it.Score = s.WeightedScore
		if r.Decay != nil {
			it.Score *= r.Decay.Factor(s.LastInteraction, now())
		}
		it.Meta[MetaTotalBehaviors] = s.TotalBehaviors
		it.PutLabel(core.LabelRecallSource, utils.Label{Value: "popular", Source: utils.SourceRecall})
		it.SetLabel(core.LabelReason, utils.Label{
			Value:  fmt.Sprintf("popular item, %d interactions", s.TotalBehaviors),
			Source: utils.SourceRecall,
		})
		out = append(out, it)
	}
	return out, nil
}
