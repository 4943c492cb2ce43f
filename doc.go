// Package reclite 是一个进程内的轻量推荐引擎。
//
// 行为数据（view / click / like / share / purchase）写入 Tracker，推荐由 Pipeline 生成：
//
//	Recall（popular / u2i / i2i / fanout）→ Filter（排除、黑名单、规则）→ ReRank（排序、补齐、截断）
//
// 内置四种策略：Popular、UserBased、ItemBased、Hybrid；没有行为历史的用户一律回退到 Popular。
// 自定义 Pipeline 可以用 YAML 描述，见 config 包。
//
//	engine, _ := reclite.New()
//	engine.AddBehavior(ctx, core.UserBehavior{UserID: "u1", ItemID: "i1", Type: core.BehaviorView})
//	items := engine.Hybrid(ctx, "u1", core.Options{Limit: 10})
package reclite

import (
	"github.com/rushteam/reclite/pipeline"
	"github.com/rushteam/reclite/recommend"
)

// 轻量 facade：便于直接 import "reclite" 使用核心抽象。
type (
	Engine   = recommend.Engine
	Strategy = recommend.Strategy
	Option   = recommend.Option
	Pipeline = pipeline.Pipeline
	Node     = pipeline.Node
	Kind     = pipeline.Kind
)

const (
	StrategyPopular = recommend.StrategyPopular
	StrategyUser    = recommend.StrategyUser
	StrategyItem    = recommend.StrategyItem
	StrategyHybrid  = recommend.StrategyHybrid
)

const (
	KindRecall = pipeline.KindRecall
	KindFilter = pipeline.KindFilter
	KindReRank = pipeline.KindReRank
)

// New 创建推荐引擎，等同于 recommend.New。
func New(opts ...Option) (*Engine, error) {
	return recommend.New(opts...)
}
