package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/reclite/core"
)

// Pipeline 把推荐逻辑拆成可组合的 Node 链，按顺序执行。
// Pipeline 本身无状态，可以被多个请求并发 Run。
type Pipeline struct {
	Name  string
	Nodes []Node
}

// New 创建 Pipeline。
func New(name string, nodes ...Node) *Pipeline {
	return &Pipeline{Name: name, Nodes: nodes}
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: node %s: %w", p.Name, node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}
