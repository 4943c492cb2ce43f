package filter

import (
	"context"

	"github.com/rushteam/reclite/core"
)

// Filter 是过滤器的抽象接口，用于判断一个 Item 是否应该被过滤掉。
// 返回 true 表示应该过滤（移除），false 表示保留。
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// ShouldFilter 判断 item 是否应该被过滤
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// Preparer 由需要按请求预加载数据的过滤器实现（例如从存储读取黑名单）。
// FilterNode 每次 Process 调用一次 Prepare，用返回的 Filter 检查全部物品。
type Preparer interface {
	Prepare(ctx context.Context, rctx *core.RecommendContext) (Filter, error)
}

// FilterFunc 把普通函数适配为 Filter。
type FilterFunc struct {
	Label string
	Fn    func(rctx *core.RecommendContext, item *core.Item) bool
}

func (f FilterFunc) Name() string { return f.Label }

func (f FilterFunc) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	return f.Fn(rctx, item), nil
}
