package config

import (
	"fmt"
	"time"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/filter"
	"github.com/rushteam/reclite/pipeline"
	"github.com/rushteam/reclite/pkg/conv"
	"github.com/rushteam/reclite/recall"
	"github.com/rushteam/reclite/rerank"
	"github.com/rushteam/reclite/similarity"
)

// BehaviorSource 是内置召回 Node 读取的行为数据，tracker.Tracker 实现了它。
type BehaviorSource interface {
	recall.CFStore
	recall.PopularStore
}

// Deps 是内置 Node 的运行时依赖。
type Deps struct {
	Behaviors BehaviorSource

	// SetStore 供 blacklist 过滤器按 key 读取黑名单集合，可为 nil
	SetStore core.SetStore

	// Now 热门时间衰减使用的时钟，默认 time.Now
	Now func() time.Time
}

// DefaultFactory 返回一个包含所有内置 Node 以及 Register 注册的自定义 Node 的工厂。
//
// 内置类型：
//
//	recall.popular   decay, decay_days, decay_floor
//	recall.u2i       similarity_threshold, max_neighbors, metric, min_common_items
//	recall.i2i       metric
//	recall.fanout    sources[{type, ...}], timeout_ms, max_concurrent, merge(first|weighted), weights
//	filter           filters[{type: exclude|min_behaviors|min_score|blacklist|expr, ...}]
//	rerank.sort
//	rerank.topn      n
//	rerank.backfill  source(popular)
func DefaultFactory(deps Deps) *pipeline.NodeFactory {
	b := &builders{deps: deps}
	factory := pipeline.NewNodeFactory()

	// 注册 Recall Nodes
	factory.Register("recall.popular", b.node(b.popular))
	factory.Register("recall.u2i", b.node(b.userCF))
	factory.Register("recall.i2i", b.node(b.itemCF))
	factory.Register("recall.fanout", b.fanout)

	// 注册 Filter Nodes
	factory.Register("filter", b.filter)

	// 注册 ReRank Nodes
	factory.Register("rerank.sort", func(map[string]any) (pipeline.Node, error) {
		return &rerank.SortNode{}, nil
	})
	factory.Register("rerank.topn", func(cfg map[string]any) (pipeline.Node, error) {
		return &rerank.TopNNode{N: conv.ConfigGetInt(cfg, "n", 0)}, nil
	})
	factory.Register("rerank.backfill", b.backfill)

	registerCustom(factory)
	return factory
}

type builders struct {
	deps Deps
}

// sourceNode 是同时实现 Source 与 Node 的召回组件。
type sourceNode interface {
	recall.Source
	pipeline.Node
}

func (b *builders) node(build func(map[string]any) (sourceNode, error)) pipeline.BuilderFunc {
	return func(cfg map[string]any) (pipeline.Node, error) {
		return build(cfg)
	}
}

func (b *builders) requireBehaviors(nodeType string) error {
	if b.deps.Behaviors == nil {
		return core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput,
			fmt.Sprintf("pipeline: %s requires a behavior source", nodeType))
	}
	return nil
}

func (b *builders) popular(cfg map[string]any) (sourceNode, error) {
	if err := b.requireBehaviors("recall.popular"); err != nil {
		return nil, err
	}
	p := &recall.Popular{Store: b.deps.Behaviors, Now: b.deps.Now}
	if conv.ConfigGet(cfg, "decay", false) {
		p.Decay = &recall.Decay{
			Days:  conv.ConfigGetFloat64(cfg, "decay_days", 30),
			Floor: conv.ConfigGetFloat64(cfg, "decay_floor", 0.5),
		}
	}
	return p, nil
}

func (b *builders) userCF(cfg map[string]any) (sourceNode, error) {
	if err := b.requireBehaviors("recall.u2i"); err != nil {
		return nil, err
	}
	metric, err := similarity.ParseMetric(conv.ConfigGet(cfg, "metric", ""))
	if err != nil {
		return nil, err
	}
	return &recall.UserBasedCF{
		Store:               b.deps.Behaviors,
		SimilarityThreshold: conv.ConfigGetFloat64(cfg, "similarity_threshold", 0.1),
		MaxNeighbors:        conv.ConfigGetInt(cfg, "max_neighbors", 11),
		Metric:              metric,
		MinCommonItems:      conv.ConfigGetInt(cfg, "min_common_items", 0),
	}, nil
}

func (b *builders) itemCF(cfg map[string]any) (sourceNode, error) {
	if err := b.requireBehaviors("recall.i2i"); err != nil {
		return nil, err
	}
	metric, err := similarity.ParseMetric(conv.ConfigGet(cfg, "metric", ""))
	if err != nil {
		return nil, err
	}
	return &recall.ItemBasedCF{Store: b.deps.Behaviors, Metric: metric}, nil
}

func (b *builders) source(cfg map[string]any) (recall.Source, error) {
	sourceType := conv.ConfigGet(cfg, "type", "")
	switch sourceType {
	case "popular":
		return b.popular(cfg)
	case "u2i":
		return b.userCF(cfg)
	case "i2i":
		return b.itemCF(cfg)
	default:
		return nil, fmt.Errorf("unknown source type: %q", sourceType)
	}
}

func (b *builders) fanout(cfg map[string]any) (pipeline.Node, error) {
	sourcesConfig := conv.ConfigGetMaps(cfg, "sources")
	if len(sourcesConfig) == 0 {
		return nil, fmt.Errorf("sources not found or invalid")
	}

	sources := make([]recall.Source, 0, len(sourcesConfig))
	for _, sc := range sourcesConfig {
		src, err := b.source(sc)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	fanout := &recall.Fanout{Sources: sources}
	if ms := conv.ConfigGetInt(cfg, "timeout_ms", 0); ms > 0 {
		fanout.Timeout = time.Duration(ms) * time.Millisecond
	}
	if n := conv.ConfigGetInt(cfg, "max_concurrent", 0); n > 0 {
		fanout.MaxConcurrent = n
	}
	switch merge := conv.ConfigGet(cfg, "merge", "first"); merge {
	case "", "first":
		fanout.Merger = recall.FirstMerge{}
	case "weighted":
		weights := conv.ConvertSlice(conv.ConfigGet[[]any](cfg, "weights", nil), conv.ToFloat64)
		fanout.Merger = recall.WeightedMerge{
			Weights:     weights,
			BlendReason: conv.ConfigGet(cfg, "blend_reason", ""),
		}
	default:
		return nil, fmt.Errorf("unknown merge: %q", merge)
	}
	return fanout, nil
}

func (b *builders) filter(cfg map[string]any) (pipeline.Node, error) {
	filtersConfig := conv.ConfigGetMaps(cfg, "filters")
	if len(filtersConfig) == 0 {
		return nil, fmt.Errorf("filters not found or invalid")
	}

	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterType := conv.ConfigGet(fc, "type", "")
		switch filterType {
		case "exclude":
			filters = append(filters, filter.ExcludeFilter{})

		case "min_behaviors":
			filters = append(filters, &filter.MinBehaviorsFilter{Min: conv.ConfigGetInt(fc, "min", 1)})

		case "min_score":
			filters = append(filters, &filter.MinScoreFilter{Threshold: conv.ConfigGetFloat64(fc, "threshold", 0)})

		case "blacklist":
			ids := conv.SliceAnyToString(fc["item_ids"])
			key := conv.ConfigGet(fc, "key", "")
			filters = append(filters, filter.NewBlacklistFilter(ids, b.deps.SetStore, key))

		case "expr":
			f, err := filter.NewExprFilter(conv.ConfigGet(fc, "expr", ""))
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)

		default:
			return nil, fmt.Errorf("unknown filter type: %q", filterType)
		}
	}

	return &filter.FilterNode{Filters: filters}, nil
}

// backfill 的补位源是一条排好序的热门子 Pipeline。
func (b *builders) backfill(cfg map[string]any) (pipeline.Node, error) {
	if src := conv.ConfigGet(cfg, "source", "popular"); src != "popular" {
		return nil, fmt.Errorf("unsupported backfill source: %q", src)
	}
	popular, err := b.popular(cfg)
	if err != nil {
		return nil, err
	}
	sub := pipeline.New("backfill",
		popular,
		&filter.FilterNode{Filters: []filter.Filter{filter.ExcludeFilter{}}},
		&rerank.SortNode{},
		&rerank.TopNNode{},
	)
	return &rerank.BackfillNode{Source: &recall.PipelineSource{Label: "popular", Pipeline: sub}}, nil
}
