// Package tracker 是行为存储之上的门面：写入行为、查询统计、构建用户-物品矩阵，
// 同时作为召回节点的数据源（recall.CFStore / recall.PopularStore）。
package tracker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/logging"
	"github.com/rushteam/reclite/metrics"
	"github.com/rushteam/reclite/store"
)

// Tracker 是行为采集门面，可并发使用。
type Tracker struct {
	store  *store.BehaviorStore
	logger zerolog.Logger
}

// Option 配置 Tracker。
type Option func(*Tracker)

// WithStore 使用外部提供的行为存储。
func WithStore(s *store.BehaviorStore) Option {
	return func(t *Tracker) {
		if s != nil {
			t.store = s
		}
	}
}

// WithLogger 设置日志器。
//
//nolint:gocritic // zerolog.Logger 按值传递
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithClock 替换行为时间戳使用的时钟（测试用）。
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.store = store.NewBehaviorStore(store.WithClock(now))
	}
}

func New(opts ...Option) *Tracker {
	t := &Tracker{logger: logging.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	if t.store == nil {
		t.store = store.NewBehaviorStore()
	}
	t.logger = t.logger.With().Str("component", "tracker").Logger()
	return t
}

type sourceKey struct{}

// ContextWithSource 标记行为来源（api / stream / direct），用于日志与指标。
func ContextWithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFromContext(ctx context.Context) string {
	if ctx != nil {
		if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
			return s
		}
	}
	return "direct"
}

// AddBehavior 校验并写入一条行为，返回实际存储的记录。
// 校验失败返回 INVALID_INPUT 的 DomainError，存储不变。
func (t *Tracker) AddBehavior(ctx context.Context, b core.UserBehavior) (core.UserBehavior, error) {
	source := sourceFromContext(ctx)
	stored, err := t.store.Add(b)
	if err != nil {
		metrics.RecordReject(source, "invalid_input")
		l := logging.Ctx(ctx, t.logger)
		l.Warn().
			Err(err).
			Str("source", source).
			Str("user_id", b.UserID).
			Str("item_id", b.ItemID).
			Msg("behavior rejected")
		return core.UserBehavior{}, err
	}

	metrics.RecordIngest(stored.Type.String())
	t.refreshGauges()
	l := logging.Ctx(ctx, t.logger)
	l.Debug().
		Str("source", source).
		Str("user_id", stored.UserID).
		Str("item_id", stored.ItemID).
		Stringer("behavior_type", stored.Type).
		Msg("behavior recorded")
	return stored, nil
}

func (t *Tracker) UserBehaviors(userID string) []core.UserBehavior {
	return t.store.UserBehaviors(userID)
}

func (t *Tracker) ItemBehaviors(itemID string) []core.UserBehavior {
	return t.store.ItemBehaviors(itemID)
}

func (t *Tracker) AllBehaviors() []core.UserBehavior {
	return t.store.AllBehaviors()
}

func (t *Tracker) UserStats(userID string) (core.UserStats, bool) {
	return t.store.UserStats(userID)
}

func (t *Tracker) ItemStats(itemID string) (core.ItemStats, bool) {
	return t.store.ItemStats(itemID)
}

func (t *Tracker) AllItemStats() []core.ItemStats {
	return t.store.AllItemStats()
}

func (t *Tracker) UserItemMatrix() core.UserItemMatrix {
	return t.store.UserItemMatrix()
}

// UserInteractedItems 返回用户交互过的不同物品（首次交互顺序）。
func (t *Tracker) UserInteractedItems(userID string) []string {
	behaviors := t.store.UserBehaviors(userID)
	seen := make(map[string]struct{}, len(behaviors))
	out := make([]string, 0, len(behaviors))
	for _, b := range behaviors {
		if _, ok := seen[b.ItemID]; ok {
			continue
		}
		seen[b.ItemID] = struct{}{}
		out = append(out, b.ItemID)
	}
	return out
}

func (t *Tracker) AllUserIDs() []string {
	return t.store.UserIDs()
}

func (t *Tracker) AllItemIDs() []string {
	return t.store.ItemIDs()
}

func (t *Tracker) Stats() core.Stats {
	return t.store.Stats()
}

// Clear 清空全部行为。
func (t *Tracker) Clear() {
	t.store.Clear()
	t.refreshGauges()
	t.logger.Info().Msg("behavior store cleared")
}

func (t *Tracker) refreshGauges() {
	st := t.store.Stats()
	metrics.UpdateStoreGauges(st.TotalBehaviors, st.TotalUsers, st.TotalItems)
}
