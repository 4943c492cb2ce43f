package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/rushteam/reclite/logging"
	"github.com/rushteam/reclite/metrics"
	"github.com/rushteam/reclite/tracker"
)

const handlerName = "behavior_ingest"

// Consumer 订阅行为事件并写入 Tracker。
//
// 无法解析或校验失败的事件会被确认并丢弃（记录日志与指标），不会重试：
// 同一条坏消息重投只会得到同样的结果。
type Consumer struct {
	router  *message.Router
	tracker *tracker.Tracker
	logger  zerolog.Logger
}

// NewConsumer 创建消费者。CloseTimeout 为 0 时取 10s。
//
//nolint:gocritic // zerolog.Logger 按值传递
func NewConsumer(
	subscriber message.Subscriber,
	topic string,
	t *tracker.Tracker,
	logger zerolog.Logger,
	closeTimeout time.Duration,
) (*Consumer, error) {
	if closeTimeout <= 0 {
		closeTimeout = 10 * time.Second
	}
	logger = logger.With().Str("component", "feedback").Logger()

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: closeTimeout}, NewLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	c := &Consumer{router: router, tracker: t, logger: logger}
	router.AddConsumerHandler(handlerName, topic, subscriber, c.Handle)
	return c, nil
}

// Handle 处理一条消息；返回 nil 表示确认。
func (c *Consumer) Handle(msg *message.Message) error {
	ctx := msg.Context()
	if id := msg.Metadata.Get(MetadataRequestID); id != "" {
		ctx = logging.ContextWithRequestID(ctx, id)
	}
	l := logging.Ctx(ctx, c.logger)

	event, err := decodeEvent(msg.Payload)
	if err != nil {
		metrics.RecordStreamMessage("malformed")
		metrics.RecordReject("stream", "malformed")
		l.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping malformed behavior event")
		return nil
	}

	b, err := event.Behavior()
	if err != nil {
		metrics.RecordStreamMessage("rejected")
		metrics.RecordReject("stream", "invalid_input")
		l.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping behavior event")
		return nil
	}
	if _, err := c.tracker.AddBehavior(tracker.ContextWithSource(ctx, "stream"), b); err != nil {
		metrics.RecordStreamMessage("rejected")
		return nil
	}
	metrics.RecordStreamMessage("accepted")
	return nil
}

// Run 启动路由并阻塞，直到 ctx 取消或 Close。
func (c *Consumer) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running 在路由开始处理消息后关闭。
func (c *Consumer) Running() <-chan struct{} {
	return c.router.Running()
}

func (c *Consumer) Close() error {
	return c.router.Close()
}
