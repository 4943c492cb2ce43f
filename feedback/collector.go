package feedback

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/logging"
)

// MetadataRequestID 是消息 metadata 中携带请求 ID 的 key。
const MetadataRequestID = "request_id"

// Collector 把行为事件发布到消息流（异步，不等待消费）。
//
// 进程内 gochannel 不持久化：发布时没有订阅者的消息会被直接丢弃。
// 配置 WithReadyCheck 后，消费者未就绪时 Record 返回 UNAVAILABLE，
// 调用方可以据此重试或改走同步写入。消费者在处理途中退出时，
// 缓冲中的消息仍可能丢失（至多一次）。
type Collector struct {
	publisher message.Publisher
	topic     string
	ready     func() bool
}

type CollectorOption func(*Collector)

// WithReadyCheck 设置发布前的就绪检查，通常是 IngestService.Ready。
func WithReadyCheck(ready func() bool) CollectorOption {
	return func(c *Collector) {
		c.ready = ready
	}
}

func NewCollector(publisher message.Publisher, topic string, opts ...CollectorOption) *Collector {
	c := &Collector{publisher: publisher, topic: topic}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Record 发布行为事件。ctx 中的请求 ID 会随消息传递。
func (c *Collector) Record(ctx context.Context, events ...Event) error {
	if c.ready != nil && !c.ready() {
		return core.NewDomainError(core.ModuleStream, core.ErrorCodeUnavailable,
			"behavior consumer is not running")
	}
	msgs := make([]*message.Message, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		if id := logging.RequestIDFromContext(ctx); id != "" {
			msg.Metadata.Set(MetadataRequestID, id)
		}
		msgs = append(msgs, msg)
	}
	if err := c.publisher.Publish(c.topic, msgs...); err != nil {
		return fmt.Errorf("publish to %s: %w", c.topic, err)
	}
	return nil
}
