// Package server 是推荐引擎的 HTTP 适配层。
//
//	GET    /api/recommendation          获取推荐（userId, type, limit, excludeItemIds, minScore）
//	POST   /api/recommendation          记录一条用户行为
//	DELETE /api/recommendation          清空行为数据
//	POST   /api/recommendation/events   批量发布行为事件到消息流（异步写入）
//	GET    /api/recommendation/stats    行为规模统计
//	GET    /api/pipelines/{name}        运行 YAML 定义的自定义 Pipeline
//	GET    /api/blacklist               当前生效的黑名单
//	POST   /api/blacklist/{itemId}      加入黑名单
//	DELETE /api/blacklist/{itemId}      移出黑名单
//	GET    /metrics                     Prometheus 指标
//	GET    /healthz                     存活检查
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/reclite/feedback"
	"github.com/rushteam/reclite/logging"
	"github.com/rushteam/reclite/pipeline"
	"github.com/rushteam/reclite/recommend"
)

// Config 是 HTTP 层的限流配置。
type Config struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// Server 持有引擎与路由。
type Server struct {
	engine    *recommend.Engine
	logger    zerolog.Logger
	cfg       Config
	pipelines map[string]*pipeline.Pipeline
	collector *feedback.Collector
	router    chi.Router
}

// Option 配置 Server。
type Option func(*Server)

//nolint:gocritic // zerolog.Logger 按值传递
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithConfig(cfg Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithPipelines 注册可通过 /api/pipelines/{name} 调用的自定义 Pipeline。
func WithPipelines(pipelines map[string]*pipeline.Pipeline) Option {
	return func(s *Server) { s.pipelines = pipelines }
}

// WithCollector 启用 /api/recommendation/events，事件经消息流异步写入。
func WithCollector(c *feedback.Collector) Option {
	return func(s *Server) { s.collector = c }
}

func New(engine *recommend.Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: logging.Nop(),
		cfg: Config{
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		pipelines: map[string]*pipeline.Pipeline{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "server").Logger()
	s.router = s.routes()
	return s
}

// Handler 返回根 http.Handler。
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit())

		r.Route("/api/recommendation", func(r chi.Router) {
			r.Get("/", s.handleRecommend)
			r.Post("/", s.handleAddBehavior)
			r.Delete("/", s.handleClear)
			r.Get("/stats", s.handleStats)
			r.Post("/events", s.handlePublishEvents)
		})
		r.Get("/api/pipelines/{name}", s.handlePipeline)

		r.Route("/api/blacklist", func(r chi.Router) {
			r.Get("/", s.handleListBlacklist)
			r.Post("/{itemId}", s.handleBlockItem)
			r.Delete("/{itemId}", s.handleUnblockItem)
		})
	})
	return r
}

func (s *Server) rateLimit() func(http.Handler) http.Handler {
	if s.cfg.RateLimitDisabled || s.cfg.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		s.cfg.RateLimitRequests,
		s.cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}
