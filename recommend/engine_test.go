package recommend

import (
	"context"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/store"
)

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e
}

func add(t *testing.T, e *Engine, user, item string, typ core.BehaviorType) {
	t.Helper()
	if _, err := e.AddBehavior(context.Background(), core.UserBehavior{UserID: user, ItemID: item, Type: typ}); err != nil {
		t.Fatalf("AddBehavior(%s, %s, %s) error: %v", user, item, typ, err)
	}
}

// seedBlend 写入两用户场景：user1 {view item1 ×2, purchase item2}，user2 {view item1, like item3}。
func seedBlend(t *testing.T, e *Engine) {
	add(t, e, "user1", "item1", core.BehaviorView)
	add(t, e, "user1", "item1", core.BehaviorView)
	add(t, e, "user1", "item2", core.BehaviorPurchase)
	add(t, e, "user2", "item1", core.BehaviorView)
	add(t, e, "user2", "item3", core.BehaviorLike)
}

func TestEngine_IngestionCompleteness(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	for i, typ := range core.BehaviorTypes() {
		before := e.Stats().TotalBehaviors
		stored, err := e.AddBehavior(ctx, core.UserBehavior{UserID: "u1", ItemID: "i1", Type: typ})
		if err != nil {
			t.Fatalf("AddBehavior(%s) error: %v", typ, err)
		}
		if got := e.Stats().TotalBehaviors; got != before+1 {
			t.Errorf("TotalBehaviors = %d, want %d", got, before+1)
		}
		same := func(b core.UserBehavior) bool {
			return b.Type == stored.Type && b.Timestamp == stored.Timestamp
		}
		if !slices.ContainsFunc(e.Tracker().UserBehaviors("u1"), same) {
			t.Errorf("behavior %d missing from user index", i)
		}
		if !slices.ContainsFunc(e.Tracker().ItemBehaviors("i1"), same) {
			t.Errorf("behavior %d missing from item index", i)
		}
	}
}

func TestEngine_Rejection(t *testing.T) {
	e := newEngine(t)
	add(t, e, "u1", "i1", core.BehaviorView)
	before := e.Stats()

	_, err := e.AddBehavior(context.Background(), core.UserBehavior{UserID: "", ItemID: "x", Type: core.BehaviorView})
	if !core.IsValidationError(err) {
		t.Fatalf("AddBehavior(empty user) error = %v, want validation error", err)
	}
	if got := e.Stats(); got != before {
		t.Errorf("Stats changed after rejection: %+v -> %+v", before, got)
	}
}

func TestEngine_WeightedScoreMonotonicity(t *testing.T) {
	purchase := newEngine(t)
	view := newEngine(t)
	add(t, purchase, "u1", "X", core.BehaviorView)
	add(t, view, "u1", "X", core.BehaviorView)

	add(t, purchase, "u2", "X", core.BehaviorPurchase)
	add(t, view, "u2", "X", core.BehaviorView)

	p, _ := purchase.Tracker().ItemStats("X")
	v, _ := view.Tracker().ItemStats("X")
	if p.WeightedScore-1 <= v.WeightedScore-1 {
		t.Errorf("purchase increment %v not greater than view increment %v", p.WeightedScore-1, v.WeightedScore-1)
	}
}

func TestEngine_Popular(t *testing.T) {
	e := newEngine(t)
	seedBlend(t, e)

	got := e.Popular(context.Background(), core.Options{Limit: 3})
	if want := []string{"item2", "item1", "item3"}; !slices.Equal(got.ItemIDs(), want) {
		t.Fatalf("Popular() = %v, want %v", got.ItemIDs(), want)
	}
	if got[0].Score != 5 || got[1].Score != 3 || got[2].Score != 3 {
		t.Errorf("scores = %v", got)
	}
	if got[1].Reason != "popular item, 3 interactions" {
		t.Errorf("reason = %q", got[1].Reason)
	}
}

func TestEngine_PopularDefaultLimit(t *testing.T) {
	e := newEngine(t)
	for i := 0; i < 15; i++ {
		add(t, e, "u1", string(rune('a'+i)), core.BehaviorView)
	}
	for _, limit := range []int{0, -3} {
		if got := e.Popular(context.Background(), core.Options{Limit: limit}); len(got) != core.DefaultLimit {
			t.Errorf("Popular(limit=%d) len = %d, want %d", limit, len(got), core.DefaultLimit)
		}
	}
}

func TestEngine_ExclusionRespected(t *testing.T) {
	e := newEngine(t)
	seedBlend(t, e)
	ctx := context.Background()
	opts := core.Options{Limit: 5, ExcludeItemIDs: []string{"item2"}}

	for name, results := range map[string]core.Results{
		"popular": e.Popular(ctx, opts),
		"user":    e.UserBased(ctx, "user2", opts),
		"hybrid":  e.Hybrid(ctx, "user1", opts),
		"item":    e.ItemBased(ctx, "user2", opts),
	} {
		if len(results) == 0 {
			t.Errorf("%s: empty result", name)
		}
		if slices.Contains(results.ItemIDs(), "item2") {
			t.Errorf("%s: excluded item2 returned: %v", name, results.ItemIDs())
		}
	}
}

func TestEngine_UserBasedFallback(t *testing.T) {
	e := newEngine(t)
	add(t, e, "userA", "i1", core.BehaviorView)
	add(t, e, "userA", "i2", core.BehaviorPurchase)
	add(t, e, "userA", "i3", core.BehaviorLike)
	ctx := context.Background()

	popular := e.Popular(ctx, core.Options{Limit: 5})
	for _, got := range []core.Results{
		e.UserBased(ctx, "unknownUser", core.Options{Limit: 5}),
		e.Hybrid(ctx, "unknownUser", core.Options{Limit: 5}),
		e.ItemBased(ctx, "unknownUser", core.Options{Limit: 5}),
		e.Hybrid(ctx, "", core.Options{Limit: 5}),
	} {
		if !slices.Equal(got, popular) {
			t.Errorf("fallback = %v, want %v", got, popular)
		}
	}
}

func TestEngine_UserBased(t *testing.T) {
	e := newEngine(t)
	seedBlend(t, e)

	got := e.UserBased(context.Background(), "user1", core.Options{Limit: 3})
	if want := []string{"item3", "item2", "item1"}; !slices.Equal(got.ItemIDs(), want) {
		t.Fatalf("UserBased() = %v, want %v", got.ItemIDs(), want)
	}
	wantSim := 2 / (math.Sqrt(29) * math.Sqrt(10))
	if math.Abs(got[0].Score-wantSim*3) > 1e-9 {
		t.Errorf("item3 score = %v, want %v", got[0].Score, wantSim*3)
	}
	if got[0].Reason != "based on similar users' preferences" {
		t.Errorf("item3 reason = %q", got[0].Reason)
	}
	if got[1].Reason != "popular item, 1 interactions" {
		t.Errorf("padded reason = %q", got[1].Reason)
	}
}

func TestEngine_HybridBlending(t *testing.T) {
	e := newEngine(t)
	seedBlend(t, e)

	got := e.Hybrid(context.Background(), "user1", core.Options{Limit: 3})
	if want := []string{"item2", "item1", "item3"}; !slices.Equal(got.ItemIDs(), want) {
		t.Fatalf("Hybrid() = %v, want %v", got.ItemIDs(), want)
	}

	sim := 2 / (math.Sqrt(29) * math.Sqrt(10))
	wantScores := []float64{0.3*5 + 0.7*5, 0.3*3 + 0.7*3, 0.3*3 + 0.7*sim*3}
	for i, r := range got {
		if math.Abs(r.Score-wantScores[i]) > 1e-9 {
			t.Errorf("%s score = %v, want %v", r.ItemID, r.Score, wantScores[i])
		}
		if r.Reason != "hybrid: popular + personalized" {
			t.Errorf("%s reason = %q", r.ItemID, r.Reason)
		}
	}
}

func TestEngine_HybridSingleSourceReason(t *testing.T) {
	e := newEngine(t, WithConfig(func() Config {
		cfg := DefaultConfig()
		cfg.Hybrid.OverFetch = 1
		return cfg
	}()))
	add(t, e, "u1", "a", core.BehaviorView)
	add(t, e, "u2", "a", core.BehaviorView)
	add(t, e, "u2", "b", core.BehaviorView)
	add(t, e, "u3", "c", core.BehaviorPurchase)
	add(t, e, "u3", "d", core.BehaviorPurchase)

	// 热门取 c d a；协同过滤召回 b，补位 c d。a 只来自热门
	got := e.Hybrid(context.Background(), "u1", core.Options{Limit: 3})
	if want := []string{"c", "d", "a"}; !slices.Equal(got.ItemIDs(), want) {
		t.Fatalf("Hybrid() = %v, want %v", got.ItemIDs(), want)
	}
	if got[0].Reason != "hybrid: popular + personalized" {
		t.Errorf("c reason = %q", got[0].Reason)
	}
	if got[2].Reason != "popular item, 2 interactions" {
		t.Errorf("a reason = %q, want the popular reason", got[2].Reason)
	}
	if math.Abs(got[2].Score-0.6) > 1e-9 {
		t.Errorf("a score = %v, want 0.6", got[2].Score)
	}
}

func TestEngine_ItemBased(t *testing.T) {
	e := newEngine(t)
	add(t, e, "u1", "a", core.BehaviorPurchase)
	add(t, e, "u2", "a", core.BehaviorView)
	add(t, e, "u2", "b", core.BehaviorView)
	add(t, e, "u3", "c", core.BehaviorView)

	// b 与 a 共享 u2；c 与 a 无交集，不参与打分。补位来自热门，不排除用户交互过的物品
	got := e.ItemBased(context.Background(), "u1", core.Options{Limit: 2})
	if want := []string{"b", "a"}; !slices.Equal(got.ItemIDs(), want) {
		t.Fatalf("ItemBased() = %v, want %v", got.ItemIDs(), want)
	}
	if want := 5 / math.Sqrt(2); math.Abs(got[0].Score-want) > 1e-9 {
		t.Errorf("b score = %v, want %v", got[0].Score, want)
	}
	if got[0].Reason != "similar to items you interacted with" {
		t.Errorf("reason = %q", got[0].Reason)
	}
	if got[1].Reason != "popular item, 2 interactions" {
		t.Errorf("padded reason = %q", got[1].Reason)
	}
}

func TestEngine_MinScore(t *testing.T) {
	e := newEngine(t)
	seedBlend(t, e)

	got := e.Popular(context.Background(), core.Options{MinScore: 4})
	if !slices.Equal(got.ItemIDs(), []string{"item2"}) {
		t.Errorf("Popular(minScore=4) = %v", got.ItemIDs())
	}
	for r := range e.Hybrid(context.Background(), "user1", core.Options{MinScore: 2}).All() {
		if r.Score < 2 {
			t.Errorf("hybrid result below min score: %+v", r)
		}
	}
}

func TestEngine_ClearIdempotent(t *testing.T) {
	e := newEngine(t)
	seedBlend(t, e)
	e.Clear()
	e.Clear()

	if got := e.Stats(); got != (core.Stats{}) {
		t.Fatalf("Stats after Clear = %+v", got)
	}
	ctx := context.Background()
	for _, strategy := range []Strategy{StrategyPopular, StrategyUser, StrategyHybrid, StrategyItem} {
		got, err := e.Recommend(ctx, strategy, "user1", core.Options{})
		if err != nil || len(got) != 0 {
			t.Errorf("%s after Clear = %v, %v; want empty", strategy, got, err)
		}
	}
}

func TestEngine_Recommend(t *testing.T) {
	e := newEngine(t)
	seedBlend(t, e)

	if _, err := e.Recommend(context.Background(), Strategy("random"), "user1", core.Options{}); !core.IsValidationError(err) {
		t.Errorf("Recommend(random) error = %v, want validation error", err)
	}
	got, err := e.Recommend(context.Background(), StrategyHybrid, "user1", core.Options{Limit: 3})
	if err != nil || !slices.Equal(got, e.Hybrid(context.Background(), "user1", core.Options{Limit: 3})) {
		t.Errorf("Recommend(hybrid) = %v, %v", got, err)
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{in: "", want: StrategyPopular},
		{in: "USER", want: StrategyUser},
		{in: "hybrid", want: StrategyHybrid},
		{in: "item", want: StrategyItem},
		{in: "random", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseStrategy(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestEngine_TimeDecay(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	now := start
	cfg := DefaultConfig()
	cfg.Popularity.TimeDecay = true
	e := newEngine(t, WithConfig(cfg), WithClock(func() time.Time { return now }))

	_, _ = e.AddBehavior(context.Background(), core.UserBehavior{UserID: "u1", ItemID: "old", Type: core.BehaviorPurchase, Timestamp: start.UnixMilli()})
	_, _ = e.AddBehavior(context.Background(), core.UserBehavior{UserID: "u1", ItemID: "new", Type: core.BehaviorLike, Timestamp: start.Add(30 * 24 * time.Hour).UnixMilli()})
	now = start.Add(30 * 24 * time.Hour)

	got := e.Popular(context.Background(), core.Options{})
	if !slices.Equal(got.ItemIDs(), []string{"new", "old"}) {
		t.Fatalf("Popular() = %v, want decayed order [new old]", got.ItemIDs())
	}
	if got[1].Score != 2.5 {
		t.Errorf("old score = %v, want 2.5", got[1].Score)
	}
}

func TestEngine_BlacklistAndRules(t *testing.T) {
	ctx := context.Background()
	bl := store.NewMemoryStore()
	defer bl.Close()
	_ = bl.SAdd(ctx, "blacklist", "item2")

	cfg := DefaultConfig()
	cfg.Filter.BlacklistKey = "blacklist"
	cfg.Filter.Rules = []string{`item.score < 3.0`}
	e := newEngine(t, WithConfig(cfg), WithBlacklistStore(bl))
	seedBlend(t, e)

	got := e.Popular(ctx, core.Options{})
	if !slices.Equal(got.ItemIDs(), []string{"item1", "item3"}) {
		t.Errorf("Popular() = %v, want [item1 item3]", got.ItemIDs())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "threshold", mutate: func(c *Config) { c.UserCF.SimilarityThreshold = 1.5 }},
		{name: "neighbors", mutate: func(c *Config) { c.UserCF.MaxNeighbors = 0 }},
		{name: "metric", mutate: func(c *Config) { c.UserCF.Metric = "euclid" }},
		{name: "weights", mutate: func(c *Config) { c.Hybrid.PopularWeight, c.Hybrid.PersonalWeight = 0, 0 }},
		{name: "over fetch", mutate: func(c *Config) { c.Hybrid.OverFetch = 0 }},
		{name: "decay floor", mutate: func(c *Config) { c.Popularity.DecayFloor = 2 }},
		{name: "rule", mutate: func(c *Config) { c.Filter.Rules = []string{"item.score <"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := New(WithConfig(cfg)); err == nil {
				t.Error("New() accepted an invalid config")
			}
		})
	}
}

func TestEngine_Tracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	e := newEngine(t, WithTracerProvider(tp))
	seedBlend(t, e)
	e.UserBased(context.Background(), "ghost", core.Options{})

	spans := sr.Ended()
	if len(spans) != 1 || spans[0].Name() != "recommend.user" {
		t.Fatalf("spans = %v", spans)
	}
	var fallback bool
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "recommend.fallback" {
			fallback = attr.Value.AsBool()
		}
	}
	if !fallback {
		t.Error("fallback attribute not recorded")
	}
}

func TestEngine_Concurrent(t *testing.T) {
	e := newEngine(t)
	seedBlend(t, e)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = e.AddBehavior(ctx, core.UserBehavior{UserID: "user1", ItemID: "item4", Type: core.BehaviorClick})
				_ = e.Hybrid(ctx, "user1", core.Options{Limit: 3})
				_ = e.Popular(ctx, core.Options{})
			}
		}(w)
	}
	wg.Wait()

	if got := e.Stats().TotalBehaviors; got != 5+8*50 {
		t.Errorf("TotalBehaviors = %d, want %d", got, 5+8*50)
	}
}
