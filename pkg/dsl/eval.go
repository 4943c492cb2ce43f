// Package dsl 提供基于 CEL (Common Expression Language) 的 Item 规则表达式。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/reclite/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once

	// programs 缓存编译后的表达式：expr → *Program
	programs sync.Map
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的布尔表达式，可被多个 goroutine 并发求值。
//
// 表达式语法（CEL 标准语法）：
//   - 基础：label.recall_source == "popular"
//   - 数值：item.score > 0.7 / item.meta.total_behaviors >= 3
//   - 逻辑：label.recall_source == "u2i" && item.score < 1.0
//   - 存在性：has(label.cf_metric)
//   - 包含：label.recall_source.contains("popular")
//   - 上下文：rctx.user_id == "u1" / item.id in rctx.exclude
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，结果按表达式文本缓存。
func Compile(expr string) (*Program, error) {
	if cached, ok := programs.Load(expr); ok {
		return cached.(*Program), nil
	}

	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput,
			fmt.Sprintf("dsl: compile %q: %v", expr, issues.Err()))
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("dsl: program %q: %w", expr, err)
	}

	p := &Program{expr: expr, prg: prg}
	actual, _ := programs.LoadOrStore(expr, p)
	return actual.(*Program), nil
}

func (p *Program) String() string { return p.expr }

// Match 对 item 求值，返回布尔结果。
// 访问不存在的 label 会返回错误，请先用 has(label.key) 判断。
func (p *Program) Match(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("dsl: eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("dsl: expression %q must return boolean, got %T", p.expr, out.Value())
	}
	return result, nil
}

func buildInput(it *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any)
	labelValues := make(map[string]any)
	item := map[string]any{}
	if it != nil {
		for k, v := range it.Labels {
			labels[k] = map[string]any{"value": v.Value, "source": v.Source}
			labelValues[k] = v.Value
		}
		meta := it.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		item = map[string]any{
			"id":     it.ID,
			"score":  it.Score,
			"meta":   meta,
			"labels": labels,
		}
	}

	ctxMap := map[string]any{}
	if rctx != nil {
		params := rctx.Params
		if params == nil {
			params = map[string]any{}
		}
		exclude := rctx.ExcludeItemIDs
		if exclude == nil {
			exclude = []string{}
		}
		ctxMap = map[string]any{
			"user_id": rctx.UserID,
			"scene":   rctx.Scene,
			"limit":   rctx.Limit,
			"exclude": exclude,
			"params":  params,
		}
	}

	return map[string]any{
		"item":  item,
		"label": labelValues,
		"rctx":  ctxMap,
	}
}
