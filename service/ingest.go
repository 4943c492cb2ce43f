package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rushteam/reclite/feedback"
)

// ConsumerFactory 每次启动创建一个新的消费者；watermill Router 关闭后不能再次运行。
type ConsumerFactory func() (*feedback.Consumer, error)

// IngestService 把行为事件消费包装为 suture.Service，失败后由监督树重启。
type IngestService struct {
	newConsumer ConsumerFactory
	ready       atomic.Bool
}

func NewIngestService(factory ConsumerFactory) *IngestService {
	return &IngestService{newConsumer: factory}
}

func (s *IngestService) Serve(ctx context.Context) error {
	consumer, err := s.newConsumer()
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	stop, watched := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(watched)
		select {
		case <-consumer.Running():
			s.ready.Store(true)
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		<-watched
		s.ready.Store(false)
	}()

	if err := consumer.Run(ctx); err != nil {
		return fmt.Errorf("behavior consumer: %w", err)
	}
	return ctx.Err()
}

// Ready 报告消费者是否已订阅并在处理消息。
func (s *IngestService) Ready() bool {
	return s.ready.Load()
}

func (s *IngestService) String() string {
	return "behavior-ingest"
}
