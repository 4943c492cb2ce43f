// Package feedback 通过消息流采集用户行为。
//
// 业务侧用 Collector 把行为事件发布到 topic，Consumer 订阅该 topic 并写入 Tracker。
// 默认使用 watermill 的进程内 gochannel pub/sub；换成 Kafka / NATS 只需要替换
// message.Publisher / message.Subscriber 实现。
package feedback

import (
	"github.com/goccy/go-json"

	"github.com/rushteam/reclite/core"
)

// Event 是消息流中的行为事件，字段与 HTTP 接口的请求体一致。
type Event struct {
	UserID       string         `json:"userId"`
	ItemID       string         `json:"itemId"`
	BehaviorType string         `json:"behaviorType"`
	Timestamp    int64          `json:"timestamp,omitempty"` // 毫秒，0 表示写入时取当前时间
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Behavior 把事件转换为 UserBehavior；行为类型非法时返回 INVALID_INPUT。
// 其余字段的校验留给 Tracker。
func (e Event) Behavior() (core.UserBehavior, error) {
	typ, err := core.ParseBehaviorType(e.BehaviorType)
	if err != nil {
		return core.UserBehavior{}, err
	}
	return core.UserBehavior{
		UserID:    e.UserID,
		ItemID:    e.ItemID,
		Type:      typ,
		Timestamp: e.Timestamp,
		Metadata:  e.Metadata,
	}, nil
}

// EventFromBehavior 把 UserBehavior 转换为事件。
func EventFromBehavior(b core.UserBehavior) Event {
	return Event{
		UserID:       b.UserID,
		ItemID:       b.ItemID,
		BehaviorType: b.Type.String(),
		Timestamp:    b.Timestamp,
		Metadata:     b.Metadata,
	}
}

func decodeEvent(payload []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(payload, &e)
	return e, err
}
