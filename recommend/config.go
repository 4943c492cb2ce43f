package recommend

import (
	"fmt"

	"github.com/rushteam/reclite/pkg/dsl"
	"github.com/rushteam/reclite/similarity"
)

// Config 是推荐引擎的调优参数。零值不可用，请从 DefaultConfig 开始修改。
type Config struct {
	Popularity PopularityConfig `koanf:"popularity" json:"popularity"`
	UserCF     UserCFConfig     `koanf:"user_cf" json:"user_cf"`
	ItemCF     ItemCFConfig     `koanf:"item_cf" json:"item_cf"`
	Hybrid     HybridConfig     `koanf:"hybrid" json:"hybrid"`
	Filter     FilterConfig     `koanf:"filter" json:"filter"`
}

// PopularityConfig 热门分配置。
//
// 热门分 = 加权行为分；开启 TimeDecay 后乘以 max(DecayFloor, 1 − 距最近交互天数 / DecayDays)。
// 所有用到热门结果的路径（热门、回退、补位、混合）都经过同一个召回节点，口径一致。
type PopularityConfig struct {
	TimeDecay    bool    `koanf:"time_decay" json:"time_decay"`
	DecayDays    float64 `koanf:"decay_days" json:"decay_days"`
	DecayFloor   float64 `koanf:"decay_floor" json:"decay_floor"`
	MinBehaviors int     `koanf:"min_behaviors" json:"min_behaviors"`
}

// UserCFConfig 基于用户的协同过滤配置。
type UserCFConfig struct {
	SimilarityThreshold float64 `koanf:"similarity_threshold" json:"similarity_threshold"`
	MaxNeighbors        int     `koanf:"max_neighbors" json:"max_neighbors"`
	Metric              string  `koanf:"metric" json:"metric"`
}

// ItemCFConfig 基于物品的协同过滤配置。
type ItemCFConfig struct {
	Metric string `koanf:"metric" json:"metric"`
}

// HybridConfig 混合推荐配置：两路结果各超取 limit × OverFetch 后加权合并。
type HybridConfig struct {
	PopularWeight  float64 `koanf:"popular_weight" json:"popular_weight"`
	PersonalWeight float64 `koanf:"personal_weight" json:"personal_weight"`
	OverFetch      int     `koanf:"over_fetch" json:"over_fetch"`
}

// DefaultBlacklistKey 是黑名单集合的默认 key。
const DefaultBlacklistKey = "reclite:blacklist"

// FilterConfig 对所有策略生效的过滤规则。
type FilterConfig struct {
	// BlacklistKey 是黑名单集合在 SetStore 中的 key，需配合 WithBlacklistStore 使用
	BlacklistKey string `koanf:"blacklist_key" json:"blacklist_key"`

	// Blacklist 是静态黑名单
	Blacklist []string `koanf:"blacklist" json:"blacklist"`

	// Rules 是 CEL 表达式，命中的物品被过滤，例如 `item.score < 1.0`
	Rules []string `koanf:"rules" json:"rules"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		Popularity: PopularityConfig{
			TimeDecay:    false,
			DecayDays:    30,
			DecayFloor:   0.5,
			MinBehaviors: 1,
		},
		UserCF: UserCFConfig{
			SimilarityThreshold: 0.1,
			MaxNeighbors:        11,
			Metric:              string(similarity.MetricCosine),
		},
		ItemCF: ItemCFConfig{
			Metric: string(similarity.MetricCosine),
		},
		Hybrid: HybridConfig{
			PopularWeight:  0.3,
			PersonalWeight: 0.7,
			OverFetch:      2,
		},
		Filter: FilterConfig{
			BlacklistKey: DefaultBlacklistKey,
		},
	}
}

// Validate 校验配置。
func (c Config) Validate() error {
	if c.Popularity.DecayDays <= 0 {
		return fmt.Errorf("popularity.decay_days must be positive, got %f", c.Popularity.DecayDays)
	}
	if c.Popularity.DecayFloor < 0 || c.Popularity.DecayFloor > 1 {
		return fmt.Errorf("popularity.decay_floor must be in [0, 1], got %f", c.Popularity.DecayFloor)
	}
	if c.Popularity.MinBehaviors < 0 {
		return fmt.Errorf("popularity.min_behaviors must be non-negative, got %d", c.Popularity.MinBehaviors)
	}
	if c.UserCF.SimilarityThreshold <= 0 || c.UserCF.SimilarityThreshold > 1 {
		return fmt.Errorf("user_cf.similarity_threshold must be in (0, 1], got %f", c.UserCF.SimilarityThreshold)
	}
	if c.UserCF.MaxNeighbors < 1 {
		return fmt.Errorf("user_cf.max_neighbors must be positive, got %d", c.UserCF.MaxNeighbors)
	}
	if _, err := similarity.ParseMetric(c.UserCF.Metric); err != nil {
		return fmt.Errorf("user_cf.metric: %w", err)
	}
	if _, err := similarity.ParseMetric(c.ItemCF.Metric); err != nil {
		return fmt.Errorf("item_cf.metric: %w", err)
	}
	if c.Hybrid.PopularWeight < 0 || c.Hybrid.PersonalWeight < 0 {
		return fmt.Errorf("hybrid weights must be non-negative, got %f/%f", c.Hybrid.PopularWeight, c.Hybrid.PersonalWeight)
	}
	if c.Hybrid.PopularWeight+c.Hybrid.PersonalWeight == 0 {
		return fmt.Errorf("hybrid weights must not both be zero")
	}
	if c.Hybrid.OverFetch < 1 {
		return fmt.Errorf("hybrid.over_fetch must be at least 1, got %d", c.Hybrid.OverFetch)
	}
	for _, rule := range c.Filter.Rules {
		if _, err := dsl.Compile(rule); err != nil {
			return fmt.Errorf("filter.rules: %w", err)
		}
	}
	return nil
}
