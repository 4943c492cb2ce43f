package core

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/rushteam/reclite/pkg/utils"
)

// DefaultLimit 是未指定或指定了非法 limit 时的推荐数量。
const DefaultLimit = 10

// Options 是推荐请求的选项。
type Options struct {
	// Limit 推荐数量上限，<= 0 时取 DefaultLimit
	Limit int `json:"limit"`

	// ExcludeItemIDs 需要从所有打分路径中剔除的物品
	ExcludeItemIDs []string `json:"excludeItemIds"`

	// MinScore 最低分数，低于该分数的结果被丢弃；0 表示不过滤
	MinScore float64 `json:"minScore"`
}

// NormalizedLimit 返回规范化后的 limit。
func (o Options) NormalizedLimit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

// RecommendContext 承载用户/场景/请求选项，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID string
	Scene  string // popular / user / hybrid / item，用于日志与观测

	// Limit 本次请求期望的结果数量（已规范化）
	Limit int

	// ExcludeItemIDs 需要剔除的物品
	ExcludeItemIDs []string

	// MinScore 最低分数
	MinScore float64

	// Labels 是用户级标签，可驱动整个 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级上下文参数
	Params map[string]any

	excludeSet mapset.Set[string]
}

// NewRecommendContext 根据用户与选项构建上下文，limit 在此处规范化。
func NewRecommendContext(userID, scene string, opts Options) *RecommendContext {
	exclude := append([]string(nil), opts.ExcludeItemIDs...)
	return &RecommendContext{
		UserID:         userID,
		Scene:          scene,
		Limit:          opts.NormalizedLimit(),
		ExcludeItemIDs: exclude,
		MinScore:       opts.MinScore,
		excludeSet:     mapset.NewThreadUnsafeSet(exclude...),
	}
}

// ExcludeSet 返回剔除物品集合；通过字面量构造的上下文在首次调用时构建。
func (rctx *RecommendContext) ExcludeSet() mapset.Set[string] {
	if rctx.excludeSet == nil {
		rctx.excludeSet = mapset.NewThreadUnsafeSet(rctx.ExcludeItemIDs...)
	}
	return rctx.excludeSet
}

// IsExcluded 判断物品是否在剔除列表中。
func (rctx *RecommendContext) IsExcluded(itemID string) bool {
	if rctx == nil || len(rctx.ExcludeItemIDs) == 0 {
		return false
	}
	return rctx.ExcludeSet().Contains(itemID)
}

// Derive 复制一份上下文，并把 limit 换成 limit；剔除列表额外追加 extraExclude。
// 用于补位、混合推荐时的子 Pipeline 调用，不影响原上下文。
func (rctx *RecommendContext) Derive(limit int, extraExclude ...string) *RecommendContext {
	exclude := make([]string, 0, len(rctx.ExcludeItemIDs)+len(extraExclude))
	exclude = append(exclude, rctx.ExcludeItemIDs...)
	exclude = append(exclude, extraExclude...)
	return &RecommendContext{
		UserID:         rctx.UserID,
		Scene:          rctx.Scene,
		Limit:          limit,
		ExcludeItemIDs: exclude,
		MinScore:       rctx.MinScore,
		Labels:         rctx.Labels,
		Params:         rctx.Params,
		excludeSet:     mapset.NewThreadUnsafeSet(exclude...),
	}
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
