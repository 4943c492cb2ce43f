package filter

import (
	"context"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/pkg/dsl"
)

// ExprFilter 过滤满足 CEL 表达式的物品，例如：
//
//	item.score < 1.0
//	label.recall_source == "popular" && item.meta.total_behaviors < 2
//
// 表达式求值出错（例如访问不存在的 label）时保留物品。
type ExprFilter struct {
	program *dsl.Program
}

// NewExprFilter 编译表达式，语法错误返回 INVALID_INPUT。
func NewExprFilter(expr string) (*ExprFilter, error) {
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{program: p}, nil
}

func (f *ExprFilter) Name() string { return "filter.expr" }

func (f *ExprFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	return f.program.Match(item, rctx)
}
