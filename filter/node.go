package filter

import (
	"context"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/pipeline"
)

// FilterNode 是过滤 Node，可以组合多个过滤器进行过滤。
// 如果任何一个过滤器返回 true，该物品就会被过滤掉；过滤器出错时跳过该过滤器。
type FilterNode struct {
	Filters []Filter
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	filters := make([]Filter, 0, len(n.Filters))
	for _, f := range n.Filters {
		if p, ok := f.(Preparer); ok {
			prepared, err := p.Prepare(ctx, rctx)
			if err != nil {
				continue
			}
			f = prepared
		}
		filters = append(filters, f)
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if !shouldFilter(ctx, rctx, filters, item) {
			out = append(out, item)
		}
	}
	return out, nil
}

func shouldFilter(ctx context.Context, rctx *core.RecommendContext, filters []Filter, item *core.Item) bool {
	for _, f := range filters {
		ok, err := f.ShouldFilter(ctx, rctx, item)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
