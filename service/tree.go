// Package service 用 suture 监督 reclite 进程内的长期运行组件：
// HTTP 服务（api 层）与行为事件消费（messaging 层）。
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// TreeConfig 是监督树的重启策略。
type TreeConfig struct {
	// FailureThreshold 进入退避前允许的失败次数，默认 5
	FailureThreshold float64

	// FailureDecay 失败计数的衰减时间（秒），默认 30
	FailureDecay float64

	// FailureBackoff 超过阈值后的等待时间，默认 15s
	FailureBackoff time.Duration

	// ShutdownTimeout 等待服务停止的最长时间，默认 10s
	ShutdownTimeout time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree 是两层监督树：root → {messaging, api}。
type Tree struct {
	root      *suture.Supervisor
	messaging *suture.Supervisor
	api       *suture.Supervisor
}

//nolint:gocritic // zerolog.Logger 按值传递
func NewTree(logger zerolog.Logger, cfg TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	logger = logger.With().Str("component", "supervisor").Logger()
	rootSpec := suture.Spec{
		EventHook:        eventHook(logger),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}

	root := suture.New("reclite", rootSpec)
	messaging := suture.New("messaging-layer", childSpec)
	api := suture.New("api-layer", childSpec)
	root.Add(messaging)
	root.Add(api)

	return &Tree{root: root, messaging: messaging, api: api}
}

// eventHook 把 suture 事件写入 zerolog：服务失败与退避为 warn，其余为 info。
//
//nolint:gocritic // zerolog.Logger 按值传递
func eventHook(logger zerolog.Logger) suture.EventHook {
	return func(e suture.Event) {
		ev := logger.Info()
		switch e.Type() {
		case suture.EventTypeServicePanic, suture.EventTypeServiceTerminate,
			suture.EventTypeBackoff, suture.EventTypeStopTimeout:
			ev = logger.Warn()
		}
		ev.Fields(e.Map()).Msg(e.String())
	}
}

func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

func (t *Tree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.messaging.Add(svc)
}

// Serve 运行监督树，阻塞直到 ctx 取消。
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
