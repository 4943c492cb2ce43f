// Package utils 放推荐链路共用的小工具。
package utils

import (
	"slices"
	"strings"
)

// Label 的 Source 取值：写入 Label 的链路阶段。
const (
	SourceRecall = "recall"
	SourceMerge  = "merge"
	SourceFilter = "filter"
	SourceRerank = "rerank"
)

const (
	valueSep  = "|"
	sourceSep = ","
)

// Label 记录物品在链路中的解释信息（召回来源、相似度度量、推荐理由）。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Values 返回累积的全部取值。
func (l Label) Values() []string {
	if l.Value == "" {
		return nil
	}
	return strings.Split(l.Value, valueSep)
}

// Has 判断 v 是否已累积在 Label 中。
func (l Label) Has(v string) bool {
	return slices.Contains(l.Values(), v)
}

// MergeLabel 合并同名 Label：Value 以 '|' 累积，Source 以 ',' 累积，已存在的值不重复写入。
// 同一物品被多路召回时，recall_source 会得到 "popular|u2i" 这样的取值。
func MergeLabel(existing, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" || existing.Has(incoming.Value) {
		return existing
	}

	merged := Label{Value: existing.Value + valueSep + incoming.Value, Source: existing.Source}
	switch {
	case merged.Source == "":
		merged.Source = incoming.Source
	case incoming.Source != "" && !slices.Contains(strings.Split(merged.Source, sourceSep), incoming.Source):
		merged.Source += sourceSep + incoming.Source
	}
	return merged
}
