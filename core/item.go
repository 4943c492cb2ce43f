package core

import (
	"iter"

	"github.com/rushteam/reclite/pkg/utils"
)

// 推荐链路中常用的 Label key。
const (
	LabelReason       = "reason"        // 推荐理由，最终透出到 Result.Reason
	LabelRecallSource = "recall_source" // 召回来源：popular / u2i / i2i / ...
	LabelCFMetric     = "cf_metric"     // 协同过滤使用的相似度度量
)

// Item 是推荐链路中的统一承载结构：分数、元信息、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策。
type Item struct {
	ID     string
	Score  float64
	Meta   map[string]any
	Labels map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:     id,
		Score:  0,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// SetLabel 直接覆盖 Label（推荐理由这类单值标签使用）。
func (it *Item) SetLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	it.Labels[key] = lbl
}

// Reason 返回推荐理由。
func (it *Item) Reason() string {
	if it.Labels == nil {
		return ""
	}
	return it.Labels[LabelReason].Value
}

// Result 是推荐引擎对外返回的结果。Score 只用于相对排序，不做归一化。
type Result struct {
	ItemID string  `json:"itemId"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Results 是一组已经排好序的推荐结果。
type Results []Result

// All 返回一个有限、可重复遍历的惰性序列，遍历的是已经完整计算并排序的结果。
func (rs Results) All() iter.Seq[Result] {
	return func(yield func(Result) bool) {
		for _, r := range rs {
			if !yield(r) {
				return
			}
		}
	}
}

// ItemIDs 返回结果中的物品 ID（保持顺序）。
func (rs Results) ItemIDs() []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ItemID
	}
	return ids
}

// ToResults 把 Pipeline 输出转换为对外结果。
func ToResults(items []*Item) Results {
	out := make(Results, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, Result{ItemID: it.ID, Score: it.Score, Reason: it.Reason()})
	}
	return out
}
