package core

import (
	"fmt"
	"strings"
)

// BehaviorType 是用户行为类型，一个封闭的枚举：view / click / like / purchase / share。
// 零值 BehaviorUnknown 不是合法的行为类型，写入时会被校验拒绝。
type BehaviorType uint8

const (
	BehaviorUnknown  BehaviorType = iota
	BehaviorView                  // 浏览
	BehaviorClick                 // 点击
	BehaviorLike                  // 点赞
	BehaviorPurchase              // 购买
	BehaviorShare                 // 分享
)

// BehaviorTypes 按声明顺序返回全部合法行为类型。
func BehaviorTypes() []BehaviorType {
	return []BehaviorType{BehaviorView, BehaviorClick, BehaviorLike, BehaviorPurchase, BehaviorShare}
}

var behaviorNames = map[BehaviorType]string{
	BehaviorView:     "view",
	BehaviorClick:    "click",
	BehaviorLike:     "like",
	BehaviorPurchase: "purchase",
	BehaviorShare:    "share",
}

// behaviorWeights 行为权重：权重越高，表示该行为对推荐的影响越大。
// purchase > share > like > click > view 的顺序是所有打分公式的前提。
var behaviorWeights = map[BehaviorType]float64{
	BehaviorView:     1,
	BehaviorClick:    2,
	BehaviorLike:     3,
	BehaviorPurchase: 5,
	BehaviorShare:    4,
}

// ParseBehaviorType 将字符串解析为 BehaviorType（大小写不敏感）。
func ParseBehaviorType(s string) (BehaviorType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range behaviorNames {
		if name == s {
			return t, nil
		}
	}
	return BehaviorUnknown, NewDomainError(ModuleBehavior, ErrorCodeInvalidInput,
		fmt.Sprintf("behavior: invalid behavior type %q", s))
}

// Valid 报告 t 是否属于五种合法行为类型之一。
func (t BehaviorType) Valid() bool {
	_, ok := behaviorNames[t]
	return ok
}

// Weight 返回行为权重；非法类型返回 0。
func (t BehaviorType) Weight() float64 {
	return behaviorWeights[t]
}

func (t BehaviorType) String() string {
	if name, ok := behaviorNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalText 实现 encoding.TextMarshaler，JSON 中以字符串形式出现。
func (t BehaviorType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, NewDomainError(ModuleBehavior, ErrorCodeInvalidInput, "behavior: invalid behavior type")
	}
	return []byte(t.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler，未知字符串直接报错。
func (t *BehaviorType) UnmarshalText(text []byte) error {
	parsed, err := ParseBehaviorType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// UserBehavior 是一次用户-物品交互事件，写入后不可变。
type UserBehavior struct {
	UserID    string         `json:"userId" validate:"required"`
	ItemID    string         `json:"itemId" validate:"required"`
	Type      BehaviorType   `json:"behaviorType" validate:"behavior_type"`
	Timestamp int64          `json:"timestamp"` // 毫秒时间戳，写入时为 0 则取当前时间
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Weight 返回该行为的权重。
func (b UserBehavior) Weight() float64 {
	return b.Type.Weight()
}
