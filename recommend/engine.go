package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/filter"
	"github.com/rushteam/reclite/logging"
	"github.com/rushteam/reclite/metrics"
	"github.com/rushteam/reclite/pipeline"
	"github.com/rushteam/reclite/recall"
	"github.com/rushteam/reclite/rerank"
	"github.com/rushteam/reclite/similarity"
	"github.com/rushteam/reclite/tracker"
)

const tracerName = "github.com/rushteam/reclite/recommend"

// Strategy 是推荐策略。
type Strategy string

const (
	StrategyPopular Strategy = "popular"
	StrategyUser    Strategy = "user"
	StrategyHybrid  Strategy = "hybrid"
	StrategyItem    Strategy = "item"
)

// ParseStrategy 解析策略名称（大小写不敏感），空字符串取 popular。
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StrategyPopular, nil
	case StrategyPopular, StrategyUser, StrategyHybrid, StrategyItem:
		return st, nil
	default:
		return "", core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput,
			fmt.Sprintf("recommend: unknown strategy %q", s))
	}
}

// Engine 是推荐引擎：拥有自己的 Tracker，按策略运行预先组装好的 Pipeline。
// Engine 构建后只读，可并发使用。
type Engine struct {
	cfg     Config
	tracker *tracker.Tracker
	logger  zerolog.Logger
	tracer  trace.Tracer

	blacklistStore core.SetStore
	now            func() time.Time

	popular   *pipeline.Pipeline
	userBased *pipeline.Pipeline
	itemBased *pipeline.Pipeline
	hybrid    *pipeline.Pipeline
}

// Option 配置 Engine。
type Option func(*Engine)

// WithConfig 替换默认配置。
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithTracker 使用外部创建的 Tracker（例如与事件消费者共享）。
func WithTracker(t *tracker.Tracker) Option {
	return func(e *Engine) { e.tracker = t }
}

// WithLogger 设置日志器。
//
//nolint:gocritic // zerolog.Logger 按值传递
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTracerProvider 设置 OpenTelemetry TracerProvider，默认使用全局 Provider。
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// WithBlacklistStore 设置黑名单集合的存储，key 由 Config.Filter.BlacklistKey 指定。
func WithBlacklistStore(s core.SetStore) Option {
	return func(e *Engine) { e.blacklistStore = s }
}

// WithClock 替换时间衰减使用的时钟。
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New 创建推荐引擎。配置非法时返回错误。
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:    DefaultConfig(),
		logger: logging.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if e.tracker == nil {
		e.tracker = tracker.New(tracker.WithLogger(e.logger))
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	e.logger = e.logger.With().Str("component", "recommend").Logger()

	if err := e.buildPipelines(); err != nil {
		return nil, err
	}
	return e, nil
}

// Tracker 返回引擎持有的行为采集器。
func (e *Engine) Tracker() *tracker.Tracker { return e.tracker }

// Config 返回引擎配置的副本。
func (e *Engine) Config() Config { return e.cfg }

// commonFilters 是所有策略共享的过滤器：请求剔除、黑名单、CEL 规则、最低分。
func (e *Engine) commonFilters() ([]filter.Filter, error) {
	filters := []filter.Filter{filter.ExcludeFilter{}}
	if len(e.cfg.Filter.Blacklist) > 0 || e.blacklistEnabled() {
		filters = append(filters, filter.NewBlacklistFilter(e.cfg.Filter.Blacklist, e.blacklistStore, e.cfg.Filter.BlacklistKey))
	}
	for _, rule := range e.cfg.Filter.Rules {
		f, err := filter.NewExprFilter(rule)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return append(filters, &filter.MinScoreFilter{}), nil
}

func (e *Engine) buildPipelines() error {
	filters, err := e.commonFilters()
	if err != nil {
		return err
	}
	userMetric, _ := similarity.ParseMetric(e.cfg.UserCF.Metric)
	itemMetric, _ := similarity.ParseMetric(e.cfg.ItemCF.Metric)

	popularRecall := &recall.Popular{Store: e.tracker, Now: e.now}
	if e.cfg.Popularity.TimeDecay {
		popularRecall.Decay = &recall.Decay{Days: e.cfg.Popularity.DecayDays, Floor: e.cfg.Popularity.DecayFloor}
	}
	popularFilters := append([]filter.Filter{&filter.MinBehaviorsFilter{Min: e.cfg.Popularity.MinBehaviors}}, filters...)

	e.popular = pipeline.New("popular",
		popularRecall,
		&filter.FilterNode{Filters: popularFilters},
		&rerank.SortNode{},
		&rerank.TopNNode{},
	)
	backfill := &rerank.BackfillNode{Source: &recall.PipelineSource{Label: "popular", Pipeline: e.popular}}

	e.userBased = pipeline.New("user",
		&recall.UserBasedCF{
			Store:               e.tracker,
			SimilarityThreshold: e.cfg.UserCF.SimilarityThreshold,
			MaxNeighbors:        e.cfg.UserCF.MaxNeighbors,
			Metric:              userMetric,
		},
		&filter.FilterNode{Filters: filters},
		&rerank.SortNode{},
		&rerank.TopNNode{},
		backfill,
	)

	e.itemBased = pipeline.New("item",
		&recall.ItemBasedCF{Store: e.tracker, Metric: itemMetric},
		&filter.FilterNode{Filters: filters},
		&rerank.SortNode{},
		&rerank.TopNNode{},
		backfill,
	)

	e.hybrid = pipeline.New("hybrid",
		&recall.Fanout{
			Sources: []recall.Source{
				&recall.PipelineSource{Label: "popular", Pipeline: e.popular, OverFetch: e.cfg.Hybrid.OverFetch, ResetMinScore: true},
				&recall.PipelineSource{Label: "user", Pipeline: e.userBased, OverFetch: e.cfg.Hybrid.OverFetch, ResetMinScore: true},
			},
			Merger: recall.WeightedMerge{
				Weights: []float64{e.cfg.Hybrid.PopularWeight, e.cfg.Hybrid.PersonalWeight},
			},
		},
		&filter.FilterNode{Filters: []filter.Filter{&filter.MinScoreFilter{}}},
		&rerank.SortNode{},
		&rerank.TopNNode{},
	)
	return nil
}

// AddBehavior 写入一条行为；校验失败返回 INVALID_INPUT 的 DomainError，这是引擎唯一会返回的错误。
func (e *Engine) AddBehavior(ctx context.Context, b core.UserBehavior) (core.UserBehavior, error) {
	return e.tracker.AddBehavior(ctx, b)
}

// Popular 返回热门推荐：分数降序，同分按物品 ID 升序。
func (e *Engine) Popular(ctx context.Context, opts core.Options) core.Results {
	return e.run(ctx, StrategyPopular, "", opts)
}

// UserBased 返回基于用户协同过滤的推荐；用户没有行为时完全回退到热门推荐。
// 结果不足 limit 时用热门结果补位。
func (e *Engine) UserBased(ctx context.Context, userID string, opts core.Options) core.Results {
	return e.run(ctx, StrategyUser, userID, opts)
}

// Hybrid 返回热门与协同过滤的加权混合推荐；用户没有行为时回退到热门推荐。
func (e *Engine) Hybrid(ctx context.Context, userID string, opts core.Options) core.Results {
	return e.run(ctx, StrategyHybrid, userID, opts)
}

// ItemBased 返回基于物品协同过滤的推荐；用户没有行为时回退到热门推荐。
func (e *Engine) ItemBased(ctx context.Context, userID string, opts core.Options) core.Results {
	return e.run(ctx, StrategyItem, userID, opts)
}

// Recommend 按策略分发。未知策略返回 INVALID_INPUT 的 DomainError。
func (e *Engine) Recommend(ctx context.Context, strategy Strategy, userID string, opts core.Options) (core.Results, error) {
	switch strategy {
	case StrategyPopular, StrategyUser, StrategyHybrid, StrategyItem:
		return e.run(ctx, strategy, userID, opts), nil
	default:
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput,
			fmt.Sprintf("recommend: unknown strategy %q", strategy))
	}
}

// Stats 返回行为存储的规模统计。
func (e *Engine) Stats() core.Stats {
	return e.tracker.Stats()
}

// Clear 清空全部行为。
func (e *Engine) Clear() {
	e.tracker.Clear()
}

func (e *Engine) pipelineFor(strategy Strategy) *pipeline.Pipeline {
	switch strategy {
	case StrategyUser:
		return e.userBased
	case StrategyHybrid:
		return e.hybrid
	case StrategyItem:
		return e.itemBased
	default:
		return e.popular
	}
}

func (e *Engine) run(ctx context.Context, strategy Strategy, userID string, opts core.Options) core.Results {
	start := time.Now()
	rctx := core.NewRecommendContext(userID, string(strategy), opts)

	ctx, span := e.tracer.Start(ctx, "recommend."+string(strategy),
		trace.WithAttributes(
			attribute.String("recommend.strategy", string(strategy)),
			attribute.String("recommend.user_id", userID),
			attribute.Int("recommend.limit", rctx.Limit),
			attribute.Int("recommend.exclude", len(rctx.ExcludeItemIDs)),
		),
	)
	defer span.End()

	effective := strategy
	if strategy != StrategyPopular && len(e.tracker.UserBehaviors(userID)) == 0 {
		effective = StrategyPopular
		metrics.RecordFallback(string(strategy))
		l := logging.Ctx(ctx, e.logger)
		l.Debug().
			Str("strategy", string(strategy)).
			Str("user_id", userID).
			Msg("no behavior history, falling back to popular")
	}
	span.SetAttributes(attribute.Bool("recommend.fallback", effective != strategy))

	items, err := e.pipelineFor(effective).Run(ctx, rctx, nil)
	if err != nil {
		span.RecordError(err)
		l := logging.Ctx(ctx, e.logger)
		l.Error().Err(err).Str("strategy", string(strategy)).Msg("pipeline failed")
		items = nil
	}

	results := core.ToResults(items)
	span.SetAttributes(attribute.Int("recommend.results", len(results)))
	metrics.RecordRecommendation(string(strategy), len(results), time.Since(start))
	return results
}

// RunPipeline 运行一条自定义 Pipeline（例如从 YAML 加载的），不做回退。
// 与内置策略不同，Pipeline 的错误会返回给调用方。
func (e *Engine) RunPipeline(ctx context.Context, p *pipeline.Pipeline, userID string, opts core.Options) (core.Results, error) {
	start := time.Now()
	rctx := core.NewRecommendContext(userID, p.Name, opts)

	ctx, span := e.tracer.Start(ctx, "recommend.pipeline",
		trace.WithAttributes(
			attribute.String("recommend.pipeline", p.Name),
			attribute.String("recommend.user_id", userID),
			attribute.Int("recommend.limit", rctx.Limit),
		),
	)
	defer span.End()

	items, err := p.Run(ctx, rctx, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	results := core.ToResults(items)
	if len(results) > rctx.Limit {
		results = results[:rctx.Limit]
	}
	metrics.RecordRecommendation("pipeline:"+p.Name, len(results), time.Since(start))
	return results, nil
}
