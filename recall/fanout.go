package recall

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/pipeline"
	"github.com/rushteam/reclite/pkg/utils"
)

// Merger 合并多个召回源的结果；results 与 Sources 顺序一一对应。
type Merger interface {
	Merge(results [][]*core.Item) []*core.Item
}

// Fanout 是一个 Recall Node：并发执行多个召回源，并合并结果。
// 单个召回源出错或超时只会让它贡献空结果，不中断其他召回源。
type Fanout struct {
	Sources       []Source
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）

	// Merger 为 nil 时按 ID 去重，保留 Sources 顺序中第一次出现的物品
	Merger Merger
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return n.Recall(ctx, rctx)
}

// Recall 让 Fanout 本身也可以作为 Source 嵌套使用。
func (n *Fanout) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	results := make([][]*core.Item, len(n.Sources))
	eg, egCtx := errgroup.WithContext(ctx)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		eg.Go(func() error {
			recallCtx := egCtx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(egCtx, n.Timeout)
				defer cancel()
			}

			items, err := src.Recall(recallCtx, rctx)
			if err != nil {
				return nil
			}
			for _, it := range items {
				if it != nil && it.Labels[core.LabelRecallSource].Value == "" {
					it.PutLabel(core.LabelRecallSource, utils.Label{Value: src.Name(), Source: utils.SourceRecall})
				}
			}
			results[i] = items
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if n.Merger != nil {
		return n.Merger.Merge(results), nil
	}
	return FirstMerge{}.Merge(results), nil
}

// FirstMerge 按 ID 去重，保留第一个出现的物品，后出现的只合并 Label。
type FirstMerge struct{}

func (FirstMerge) Merge(results [][]*core.Item) []*core.Item {
	seen := make(map[string]*core.Item)
	out := make([]*core.Item, 0)
	for _, items := range results {
		for _, it := range items {
			if it == nil {
				continue
			}
			if old, ok := seen[it.ID]; ok {
				for k, v := range it.Labels {
					if k == core.LabelReason {
						continue
					}
					old.PutLabel(k, v)
				}
				continue
			}
			seen[it.ID] = it
			out = append(out, it)
		}
	}
	return out
}
