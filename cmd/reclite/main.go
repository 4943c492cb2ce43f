// Package main 是 reclite 推荐服务的入口。
//
// 启动顺序：
//
//  1. 配置：默认值 → 配置文件 → RECLITE_ 环境变量
//  2. 黑名单集合：Redis（redis.enabled）或进程内 MemoryStore
//  3. 行为跟踪器与推荐引擎
//  4. 自定义 Pipeline：server.pipelines_dir 下的 YAML
//  5. 行为事件流（stream.enabled）：进程内 gochannel pub/sub + 消费者
//  6. HTTP 服务
//
// HTTP 服务与事件消费运行在 suture 监督树中，SIGINT / SIGTERM 触发优雅关闭。
//
//	RECLITE_ADDR=:8080 RECLITE_LOG_FORMAT=console ./reclite
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/rushteam/reclite/config"
	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/feedback"
	"github.com/rushteam/reclite/logging"
	"github.com/rushteam/reclite/recommend"
	"github.com/rushteam/reclite/server"
	"github.com/rushteam/reclite/service"
	"github.com/rushteam/reclite/settings"
	"github.com/rushteam/reclite/store"
	"github.com/rushteam/reclite/tracker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reclite: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := settings.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	logger := logging.New(cfg.Logging)

	blacklist, closeBlacklist, err := openSetStore(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeBlacklist()

	tr := tracker.New(tracker.WithLogger(logger))
	engine, err := recommend.New(
		recommend.WithConfig(cfg.Recommend),
		recommend.WithTracker(tr),
		recommend.WithLogger(logger),
		recommend.WithBlacklistStore(blacklist),
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	factory := config.DefaultFactory(config.Deps{Behaviors: tr, SetStore: blacklist})
	pipelines, err := config.LoadPipelines(cfg.Server.PipelinesDir, factory)
	if err != nil {
		return fmt.Errorf("load pipelines: %w", err)
	}

	tree := service.NewTree(logger, service.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout})
	serverOpts := []server.Option{
		server.WithLogger(logger),
		server.WithConfig(server.Config{
			RateLimitRequests: cfg.Server.RateLimitRequests,
			RateLimitWindow:   cfg.Server.RateLimitWindow,
			RateLimitDisabled: cfg.Server.RateLimitDisabled,
		}),
		server.WithPipelines(pipelines),
	}

	if cfg.Stream.Enabled {
		pubSub := gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: cfg.Stream.BufferSize},
			feedback.NewLogger(logger),
		)
		defer func() { _ = pubSub.Close() }()

		topic := cfg.Stream.Topic
		ingest := service.NewIngestService(func() (*feedback.Consumer, error) {
			return feedback.NewConsumer(pubSub, topic, tr, logger, cfg.Server.ShutdownTimeout)
		})
		tree.AddMessagingService(ingest)
		collector := feedback.NewCollector(pubSub, topic, feedback.WithReadyCheck(ingest.Ready))
		serverOpts = append(serverOpts, server.WithCollector(collector))
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(engine, serverOpts...).Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	tree.AddAPIService(service.NewHTTPService(httpServer, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Bool("stream", cfg.Stream.Enabled).
		Bool("redis", cfg.Redis.Enabled).
		Int("pipelines", len(pipelines)).
		Msg("reclite starting")

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		logger.Warn().Int("count", len(report)).Msg("services did not stop in time")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	logger.Info().Msg("reclite stopped")
	return nil
}

//nolint:gocritic // zerolog.Logger 按值传递
func openSetStore(cfg settings.RedisConfig, logger zerolog.Logger) (core.SetStore, func(), error) {
	if !cfg.Enabled {
		ms := store.NewMemoryStore()
		return ms, func() { _ = ms.Close() }, nil
	}
	rs, err := store.NewRedisStore(cfg.Addr, cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("blacklist store: redis")
	return rs, func() { _ = rs.Close() }, nil
}
